package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/soopfest/balloonwatch/internal/logger"
	"github.com/soopfest/balloonwatch/internal/record"
)

// deepScrollScript drives the virtualized grid to its full extent and back,
// forcing lazy rows to mount before the DOM scan.
const deepScrollScript = `(async () => {
	const el = document.querySelector('.tui-grid-rside-area .tui-grid-body-area');
	if (!el) return 0;
	const total = el.scrollHeight;
	let cur = 0;
	while (cur < total) {
		cur += 500;
		el.scrollTop = cur;
		await new Promise(r => setTimeout(r, 100));
	}
	await new Promise(r => setTimeout(r, 500));
	el.scrollTop = 0;
	return total;
})()`

// Monitor fetches the dashboard with a headless browser. One Monitor holds
// one browser allocator; each Fetch runs in a fresh tab.
type Monitor struct {
	config    Config
	allocCtx  context.Context
	cancelCtx context.CancelFunc
}

// NewMonitor creates a monitor fetcher with a browser instance.
func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultConfig().SettleDelay
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Debug("monitor fetcher created",
		"user_agent", cfg.UserAgent,
		"timeout", cfg.Timeout)

	return &Monitor{
		config:    cfg,
		allocCtx:  allocCtx,
		cancelCtx: cancelAlloc,
	}, nil
}

// Fetch loads the dashboard, captures JSON network responses as they
// arrive, deep-scrolls the grid, and scrapes the final DOM. A navigation
// timeout is non-fatal: whatever state exists is scanned anyway, and the
// network channel may already hold records.
func (m *Monitor) Fetch(ctx context.Context, url string) ([]record.Donation, error) {
	browserCtx, cancelBrowser := chromedp.NewContext(m.allocCtx)
	defer cancelBrowser()

	// Stop the tab when the caller's context does.
	go func() {
		select {
		case <-ctx.Done():
			cancelBrowser()
		case <-browserCtx.Done():
		}
	}()

	col := newCollector(browserCtx)
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		return nil, fmt.Errorf("enable network capture: %w", err)
	}
	col.attach()

	navCtx, cancelNav := context.WithTimeout(browserCtx, m.config.Timeout)
	defer cancelNav()

	logger.Debug("navigating", "url", url)
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("navigate: %w", err)
		}
		logger.Warn("navigation timed out, scanning current DOM state", "url", url)
	}

	var html string
	scanCtx, cancelScan := context.WithTimeout(browserCtx, m.config.Timeout)
	defer cancelScan()

	err := chromedp.Run(scanCtx,
		chromedp.Sleep(m.config.SettleDelay),
		chromedp.Evaluate(deepScrollScript, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.Sleep(time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		// The network channel may still have produced records.
		logger.Warn("DOM scan failed", "url", url, "error", err)
	}

	now := time.Now()
	batch := col.drain()
	networkCount := len(batch)

	if html != "" {
		rows := RowsFromHTML(html, now)
		batch = append(batch, rows...)
		logger.Debug("fetch pass complete",
			"url", url,
			"network_records", networkCount,
			"dom_records", len(rows))
	}

	return batch, nil
}

// Close releases browser resources.
func (m *Monitor) Close() error {
	if m.cancelCtx != nil {
		m.cancelCtx()
	}
	return nil
}

// Type returns the fetcher type.
func (m *Monitor) Type() string {
	return "monitor"
}
