package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/soopfest/balloonwatch/internal/classify"
	"github.com/soopfest/balloonwatch/internal/output"
	"github.com/soopfest/balloonwatch/internal/stats"
	"github.com/soopfest/balloonwatch/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the donation leaderboard from a snapshot",
	Long: `Stats aggregates a snapshot into per-streamer and per-donor totals.
Records without a stored target are attributed through message keyword
matching, the same resolution the festival board applies. The text format
prints a ranking table; json and yaml emit the full report.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	flags := statsCmd.Flags()
	flags.String("store", "data/crawl_data.json", "snapshot file path")
	flags.String("keywords", "data/keywords.json", "keyword registry file")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "text", "output format: text, json, yaml")
	flags.Int("top", 10, "number of donors shown in text format")
}

func runStats(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	storePath, _ := flags.GetString("store")
	keywordsPath, _ := flags.GetString("keywords")
	outputPath, _ := flags.GetString("output")
	format, _ := flags.GetString("format")
	top, _ := flags.GetInt("top")

	mappings, err := classify.LoadRegistry(keywordsPath)
	if err != nil {
		return err
	}

	data, err := store.New(storePath).Load()
	if err != nil {
		return err
	}

	report := stats.Aggregate(data, mappings)

	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if format == "text" {
		printReport(out, report, top)
		return nil
	}

	w, err := output.NewWriter(out, output.Format(format))
	if err != nil {
		return err
	}
	if err := w.Write(report); err != nil {
		return err
	}
	return w.Close()
}

func printReport(w io.Writer, report stats.Report, top int) {
	fmt.Fprintf(w, "Donations: %s events, %s balloons (%d unclassified)\n\n",
		humanize.Comma(int64(report.TotalDonations)),
		humanize.Comma(int64(report.TotalBalloons)),
		report.Unclassified)

	fmt.Fprintln(w, "Streamers:")
	for i, s := range report.Streamers {
		fmt.Fprintf(w, "%3d. %-12s %12s balloons  (%s events, top donor %s)\n",
			i+1, s.Name,
			humanize.Comma(int64(s.TotalBalloons)),
			humanize.Comma(int64(s.DonationCount)),
			s.TopDonor)
	}

	if top <= 0 || len(report.Donors) == 0 {
		return
	}
	if top > len(report.Donors) {
		top = len(report.Donors)
	}
	fmt.Fprintf(w, "\nTop %d donors:\n", top)
	for i, d := range report.Donors[:top] {
		fmt.Fprintf(w, "%3d. %-12s %12s balloons  (%s events)\n",
			i+1, d.Name,
			humanize.Comma(int64(d.TotalBalloons)),
			humanize.Comma(int64(d.DonationCount)))
	}
}
