// Package commands implements the CLI commands for balloonwatch.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soopfest/balloonwatch/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "balloonwatch",
	Short: "Donation scraper and leaderboard pipeline for festival streams",
	Long: `Balloonwatch polls a streaming-platform monitoring dashboard, extracts
donation events from its network responses and rendered grid, deduplicates
them into a JSON snapshot, and attributes each event to a registered
streamer by keyword matching.

Examples:
  # Poll a monitor page into the default snapshot
  balloonwatch watch -u "https://bcraping.kr/monitor/pyh3646/289919534"

  # Re-run message classification over an existing snapshot
  balloonwatch classify --store data/crawl_data.json --keywords data/keywords.json

  # Collapse near-duplicate records accumulated in a snapshot
  balloonwatch dedupe --store data/crawl_data.json

  # Print the leaderboard
  balloonwatch stats --store data/crawl_data.json --keywords data/keywords.json`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
			JSON:  viper.GetBool("log-json"),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.balloonwatch.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log-json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".balloonwatch")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("BALLOONWATCH")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
