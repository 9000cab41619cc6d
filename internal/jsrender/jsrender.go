// Package jsrender drives a headless browser for providers whose page images
// only exist after JavaScript runs. It navigates, scrolls the full page to
// trigger lazy loading, snapshots the final DOM and hands back every
// intercepted image response body keyed by URL without its query string.
package jsrender

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/errs"
)

// RenderRequest describes one page render.
type RenderRequest struct {
	URL string
	// ExpectedImages scales the scroll time budget (>=10ms per image).
	ExpectedImages int
	// SettleWait is the pause before the DOM snapshot; defaults to 3s.
	SettleWait time.Duration
}

// RenderResult is the final DOM plus intercepted image bodies.
type RenderResult struct {
	HTML string
	// Images maps URL-without-query-string to response body. Last write
	// wins when a URL is served twice.
	Images map[string][]byte
}

// Driver renders pages. Implementations need not be re-entrant; the driver
// serializes renders internally and the task runner additionally routes
// JS-mode work onto a single worker.
type Driver interface {
	Render(ctx context.Context, req RenderRequest) (*RenderResult, error)
	Close() error
}

const (
	minScrollPerImage = 10 * time.Millisecond
	scrollFloor       = 400 * time.Millisecond
	defaultSettle     = 3 * time.Second
	scrollSteps       = 20
)

var chromeCandidates = []string{
	"google-chrome", "google-chrome-stable", "chromium", "chromium-browser",
	"chrome", "msedge", "brave-browser",
}

// Available reports whether a headless browser binary can be found on this
// host. JS-render providers return false from CanWork when it cannot.
func Available() bool {
	for _, name := range chromeCandidates {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// ChromeDriver is the chromedp-backed Driver. The browser process is
// launched lazily on first render and shared until Close.
type ChromeDriver struct {
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewChromeDriver() *ChromeDriver {
	return &ChromeDriver{}
}

func (d *ChromeDriver) allocator() (context.Context, error) {
	if d.allocCtx != nil {
		return d.allocCtx, nil
	}
	if !Available() {
		return nil, errs.New(errs.KindDriverMissing, "no headless browser found on PATH")
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("blink-settings", "imagesEnabled=true"),
		chromedp.WindowSize(1280, 2400),
	)
	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return d.allocCtx, nil
}

// Render runs one navigation in a fresh tab. Renders serialize on the
// driver's mutex because the underlying browser session is not re-entrant.
func (d *ChromeDriver) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	alloc, err := d.allocator()
	if err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(alloc)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		tabCtx, dcancel = context.WithDeadline(tabCtx, deadline)
		defer dcancel()
	}

	settle := req.SettleWait
	if settle <= 0 {
		settle = defaultSettle
	}
	budget := scrollBudget(req.ExpectedImages)

	// Collect the request id of every image response as it arrives. Bodies
	// are pulled after the scroll phase, when loading has finished.
	var capMu sync.Mutex
	imageRequests := make(map[network.RequestID]string)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeImage {
			return
		}
		capMu.Lock()
		imageRequests[resp.RequestID] = stripQuery(resp.Response.URL)
		capMu.Unlock()
	})

	result := &RenderResult{Images: make(map[string][]byte)}

	actions := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(req.URL),
		scrollThrough(budget),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &result.HTML),
		chromedp.ActionFunc(func(cctx context.Context) error {
			capMu.Lock()
			requests := make(map[network.RequestID]string, len(imageRequests))
			for id, u := range imageRequests {
				requests[id] = u
			}
			capMu.Unlock()

			for id, u := range requests {
				body, err := network.GetResponseBody(id).Do(cctx)
				if err != nil {
					// Evicted from the browser cache; the HTTP pool
					// can still pick this one up later.
					log.Debug().Str("url", u).Err(err).Msg("image body unavailable")
					continue
				}
				result.Images[u] = body
			}
			return nil
		}),
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.KindCancelled, ctx.Err(), "render cancelled")
		}
		return nil, errs.Wrap(errs.KindUnreachable, err, "render of %s failed", req.URL)
	}
	return result, nil
}

// scrollBudget scales the scroll time with the expected image count so long
// chapters give every lazy-load observer time to fire; short chapters still
// get the floor.
func scrollBudget(expectedImages int) time.Duration {
	budget := time.Duration(expectedImages) * minScrollPerImage
	if budget < scrollFloor {
		budget = scrollFloor
	}
	return budget
}

// scrollThrough walks the page top to bottom in fixed steps so every lazy
// image observer fires, spending the whole time budget.
func scrollThrough(budget time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		pause := budget / scrollSteps
		for i := 1; i <= scrollSteps; i++ {
			script := `window.scrollTo(0, document.body.scrollHeight * ` + fraction(i, scrollSteps) + `);`
			if err := chromedp.Evaluate(script, nil).Do(ctx); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
		// Back to the top so the snapshot matches a fresh view.
		return chromedp.Evaluate(`window.scrollTo(0, 0);`, nil).Do(ctx)
	})
}

func fraction(i, n int) string {
	return fmt.Sprintf("(%d/%d)", i, n)
}

// Close tears the shared browser process down.
func (d *ChromeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.allocCancel != nil {
		d.allocCancel()
		d.allocCtx = nil
		d.allocCancel = nil
	}
	return nil
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
