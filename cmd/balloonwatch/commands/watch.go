package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soopfest/balloonwatch/internal/classify"
	"github.com/soopfest/balloonwatch/internal/fetcher"
	"github.com/soopfest/balloonwatch/internal/logger"
	"github.com/soopfest/balloonwatch/internal/poller"
	"github.com/soopfest/balloonwatch/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll a monitoring dashboard into a snapshot store",
	Long: `Watch runs the polling loop against a monitoring dashboard URL. Each
cycle loads the page in a headless browser, captures JSON network
responses, deep-scrolls the donation grid, scrapes the rendered rows, and
merges everything into the snapshot file.

The loop polls at a short interval while donations are coming in and
backs off to a long interval when the source goes quiet. It only stops on
SIGINT/SIGTERM.

Examples:
  balloonwatch watch -u "https://bcraping.kr/monitor/pyh3646/289919534"

  # With inline classification and a custom snapshot path
  balloonwatch watch -u "https://bcraping.kr/monitor/pyh3646" \
      --store data/crawl_data.json --keywords data/keywords.json

  # Plain HTTP probing for sources that render server-side
  balloonwatch watch -u "https://example.com/api/donations" --fetch-mode static`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	flags := watchCmd.Flags()
	flags.StringP("url", "u", "", "monitoring dashboard URL (required)")
	flags.String("store", "data/crawl_data.json", "snapshot file path")
	flags.String("keywords", "", "keyword registry file for inline classification")
	flags.String("fetch-mode", "monitor", "fetch mode: monitor (headless browser), static")
	flags.Duration("interval", 15*time.Second, "poll interval while the source is active")
	flags.Duration("idle-interval", 60*time.Second, "poll interval while the source is quiet")
	flags.Duration("quiet-period", 2*time.Minute, "time without new records before throttling")
	flags.Duration("timeout", 30*time.Second, "per-navigation timeout")
	flags.Duration("fuzzy-window", store.OnlineWindow, "fuzzy duplicate time window")

	_ = viper.BindPFlag("store", flags.Lookup("store"))
	_ = viper.BindPFlag("keywords", flags.Lookup("keywords"))
	_ = viper.BindPFlag("fetch_mode", flags.Lookup("fetch-mode"))
	_ = viper.BindPFlag("interval", flags.Lookup("interval"))
	_ = viper.BindPFlag("idle_interval", flags.Lookup("idle-interval"))
	_ = viper.BindPFlag("quiet_period", flags.Lookup("quiet-period"))
	_ = viper.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("fuzzy_window", flags.Lookup("fuzzy-window"))

	_ = watchCmd.MarkFlagRequired("url")
}

// watchConfig is the resolved watch configuration after flags, config file
// and environment are merged.
type watchConfig struct {
	URL          string        `validate:"required,url"`
	Store        string        `validate:"required"`
	Keywords     string
	Mode         string        `validate:"oneof=monitor static"`
	Interval     time.Duration `validate:"gt=0"`
	IdleInterval time.Duration `validate:"gt=0"`
	QuietPeriod  time.Duration `validate:"gt=0"`
	Timeout      time.Duration `validate:"gt=0"`
	FuzzyWindow  time.Duration `validate:"gte=0"`
}

var validate = validator.New()

func runWatch(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	cfg := watchConfig{
		URL:          url,
		Store:        viper.GetString("store"),
		Keywords:     viper.GetString("keywords"),
		Mode:         viper.GetString("fetch_mode"),
		Interval:     viper.GetDuration("interval"),
		IdleInterval: viper.GetDuration("idle_interval"),
		QuietPeriod:  viper.GetDuration("quiet_period"),
		Timeout:      viper.GetDuration("timeout"),
		FuzzyWindow:  viper.GetDuration("fuzzy_window"),
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid watch configuration: %w", err)
	}

	fcfg := fetcher.DefaultConfig()
	fcfg.Timeout = cfg.Timeout

	var src fetcher.Source
	if cfg.Mode == "monitor" {
		m, err := fetcher.NewMonitor(fcfg)
		if err != nil {
			return fmt.Errorf("create monitor fetcher: %w", err)
		}
		src = m
	} else {
		src = fetcher.NewStatic(fcfg)
	}
	defer src.Close()

	var clf *classify.Classifier
	if cfg.Keywords != "" {
		mappings, err := classify.LoadRegistry(cfg.Keywords)
		if err != nil {
			return err
		}
		clf = classify.New(mappings)
		logger.Info("inline classification enabled", "registry", cfg.Keywords, "streamers", len(mappings))
	}

	st := store.New(cfg.Store).WithWindow(cfg.FuzzyWindow)

	p := poller.New(poller.Config{
		URL:            cfg.URL,
		ActiveInterval: cfg.Interval,
		IdleInterval:   cfg.IdleInterval,
		QuietPeriod:    cfg.QuietPeriod,
	}, src, st, clf)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := p.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("poller stopped")
		return nil
	}
	return err
}
