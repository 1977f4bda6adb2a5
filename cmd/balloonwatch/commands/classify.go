package commands

import (
	"github.com/spf13/cobra"

	"github.com/soopfest/balloonwatch/internal/classify"
	"github.com/soopfest/balloonwatch/internal/logger"
	"github.com/soopfest/balloonwatch/internal/store"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Re-run message classification over a snapshot",
	Long: `Classify runs the batch re-pass over an existing snapshot: records whose
target name is empty are matched against the keyword registry using their
donor message. Already-classified records are left alone, so the pass is
safe to repeat as the registry grows.`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	flags := classifyCmd.Flags()
	flags.String("store", "data/crawl_data.json", "snapshot file path")
	flags.String("keywords", "data/keywords.json", "keyword registry file")
	flags.Bool("dry-run", false, "report what would change without saving")
}

func runClassify(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	storePath, _ := flags.GetString("store")
	keywordsPath, _ := flags.GetString("keywords")
	dryRun, _ := flags.GetBool("dry-run")

	mappings, err := classify.LoadRegistry(keywordsPath)
	if err != nil {
		return err
	}

	st := store.New(storePath)
	data, err := st.Load()
	if err != nil {
		return err
	}

	classified := classify.New(mappings).Reclassify(data)
	logger.Info("classification pass complete",
		"records", len(data),
		"newly_classified", classified,
		"streamers", len(mappings))

	if classified == 0 || dryRun {
		return nil
	}
	return st.Save(data)
}
