package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soopfest/balloonwatch/internal/logger"
	"github.com/soopfest/balloonwatch/internal/record"
	"github.com/soopfest/balloonwatch/internal/store"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Collapse near-duplicate records in a snapshot",
	Long: `Dedupe compacts an existing snapshot: records with the same donor and
amount whose timestamps fall within the window are collapsed to one,
keeping the classified copy when only one side carries a target name.

Snapshots imported from sources that recorded broadcast-relative times can
be anchored first with --broadcast-start, which resolves each record's
relative time against the given start before compaction.

Useful for snapshots that accumulated duplicates before fuzzy merging, or
after importing scrapes from a second source.`,
	RunE: runDedupe,
}

func init() {
	rootCmd.AddCommand(dedupeCmd)

	flags := dedupeCmd.Flags()
	flags.String("store", "data/crawl_data.json", "snapshot file path")
	flags.Duration("window", store.CleanupWindow, "duplicate time window")
	flags.String("broadcast-start", "", `broadcast start ("2006-01-02 15:04:05") for anchoring relative times`)
	flags.Bool("dry-run", false, "report what would change without saving")
}

func runDedupe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	storePath, _ := flags.GetString("store")
	window, _ := flags.GetDuration("window")
	startStr, _ := flags.GetString("broadcast-start")
	dryRun, _ := flags.GetBool("dry-run")

	st := store.New(storePath)
	data, err := st.Load()
	if err != nil {
		return err
	}

	anchored := 0
	if startStr != "" {
		start, err := time.ParseInLocation(record.DateLayout, startStr, time.Local)
		if err != nil {
			return fmt.Errorf("parse broadcast start: %w", err)
		}
		anchored = anchorRelativeTimes(data, start)
		logger.Info("relative times anchored", "start", startStr, "records", anchored)
	}

	cleaned := store.Compact(data, window)
	logger.Info("compaction complete",
		"before", len(data),
		"after", len(cleaned),
		"removed", len(data)-len(cleaned),
		"window", window.String())

	if (len(cleaned) == len(data) && anchored == 0) || dryRun {
		return nil
	}
	return st.Save(cleaned)
}

// anchorRelativeTimes resolves broadcast-relative timestamps to absolute
// ones and rederives the identity key, so a following compaction sees the
// records in their real positions.
func anchorRelativeTimes(data []record.Donation, start time.Time) int {
	anchored := 0
	for i := range data {
		if data[i].RelativeTime == "" {
			continue
		}
		abs, ok := record.RelativeToAbsolute(data[i].RelativeTime, start)
		if !ok {
			continue
		}
		data[i].CreateDate = abs
		data[i].MessageID = record.IdentityKey(abs, data[i].DonorName, data[i].Amount)
		anchored++
	}
	return anchored
}
