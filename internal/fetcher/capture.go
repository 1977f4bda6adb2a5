package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/soopfest/balloonwatch/internal/logger"
	"github.com/soopfest/balloonwatch/internal/record"
)

// assetTypes are resource types that never carry donation data.
var assetTypes = map[network.ResourceType]bool{
	network.ResourceTypeImage:      true,
	network.ResourceTypeStylesheet: true,
	network.ResourceTypeFont:       true,
	network.ResourceTypeScript:     true,
	network.ResourceTypeMedia:      true,
}

// collector intercepts network responses on a tab and extracts donation
// records from every JSON body. Bodies are fetched asynchronously as the
// events fire; drain flushes whatever has accumulated.
type collector struct {
	ctx context.Context

	mu  sync.Mutex
	out []record.Donation
}

func newCollector(ctx context.Context) *collector {
	return &collector{ctx: ctx}
}

// attach registers the response listener on the tab. Must be called after
// network.Enable.
func (c *collector) attach() {
	chromedp.ListenTarget(c.ctx, func(ev any) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		if assetTypes[e.Type] {
			return
		}

		// Body retrieval must not block the event loop.
		go c.capture(e.RequestID, e.Response.URL)
	})
}

func (c *collector) capture(reqID network.RequestID, respURL string) {
	var body []byte
	err := chromedp.Run(c.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(reqID).Do(ctx)
		return err
	}))
	if err != nil || !looksLikeJSON(body) {
		// Bodies evaporate when the tab navigates; losing one is fine,
		// the next cycle sees the same data again.
		return
	}

	recs := record.FromPayload(body, time.Now())
	if len(recs) == 0 {
		return
	}
	logger.Debug("captured response", "url", respURL, "records", len(recs))

	c.mu.Lock()
	c.out = append(c.out, recs...)
	c.mu.Unlock()
}

// drain returns the captured records and resets the batch.
func (c *collector) drain() []record.Donation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.out
	c.out = nil
	return out
}
