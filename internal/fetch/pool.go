// Package fetch is the shared HTTP download pool: batch GETs with bounded
// concurrency, bounded retries with exponential backoff, per-request timeouts
// and a per-host robots.txt pre-check. Responses come back in memory, in
// input order; writing to disk is the caller's job.
package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/errs"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Options tune a Pool. Zero values fall back to the defaults.
type Options struct {
	Concurrency    int
	Retries        int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.Retries <= 0 {
		o.Retries = 5
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 30 * time.Second
	}
	return o
}

// Pool is a bounded-concurrency GET pool sharing one connection pool.
type Pool struct {
	opts   Options
	client *http.Client
	sem    chan struct{}
	robots *robotsCache

	closeOnce sync.Once
}

// NewPool creates a download pool with the given options.
func NewPool(opts Options) *Pool {
	opts = opts.withDefaults()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:          opts.Concurrency * 2,
		MaxIdleConnsPerHost:   opts.Concurrency,
		ResponseHeaderTimeout: opts.ReadTimeout,
	}

	return &Pool{
		opts: opts,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.ConnectTimeout + opts.ReadTimeout,
		},
		sem:    make(chan struct{}, opts.Concurrency),
		robots: newRobotsCache(opts.ConnectTimeout),
	}
}

// Result is the outcome for one URL in a batch.
type Result struct {
	URL  string
	Body []byte
	Err  error
}

// RequestMany fetches every URL with bounded concurrency and returns results
// in input order. Failures are per-URL; one bad URL never fails the batch.
// onDone, when non-nil, is invoked once per finished URL for progress
// accounting.
func (p *Pool) RequestMany(ctx context.Context, urls []string, onDone func(done, total int)) []Result {
	results := make([]Result, len(urls))

	var wg sync.WaitGroup
	var doneMu sync.Mutex
	completed := 0

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()

			select {
			case p.sem <- struct{}{}:
				defer func() { <-p.sem }()
			case <-ctx.Done():
				results[i] = Result{URL: u, Err: errs.Wrap(errs.KindCancelled, ctx.Err(), "fetch cancelled")}
				return
			}

			body, err := p.Request(ctx, u)
			results[i] = Result{URL: u, Body: body, Err: err}

			if onDone != nil {
				doneMu.Lock()
				completed++
				onDone(completed, len(urls))
				doneMu.Unlock()
			}
		}(i, u)
	}
	wg.Wait()

	return results
}

// Request fetches a single URL, honoring robots.txt and the retry policy.
// The full body is read before returning so callers never see a torn file.
func (p *Pool) Request(ctx context.Context, url string) ([]byte, error) {
	return p.do(ctx, url, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// PostForm submits an urlencoded form, with the same robots and retry
// policy as Request. Some sites hide search behind an AJAX endpoint.
func (p *Pool) PostForm(ctx context.Context, url string, form neturl.Values) ([]byte, error) {
	encoded := form.Encode()
	return p.do(ctx, url, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (p *Pool) do(ctx context.Context, url string, makeReq func() (*http.Request, error)) ([]byte, error) {
	allowed, err := p.robots.Allowed(url)
	if err != nil {
		return nil, errs.Wrap(errs.KindPermanent, err, "bad request url")
	}
	if !allowed {
		return nil, errs.New(errs.KindDisallowed, "robots.txt disallows %s", url)
	}

	var lastErr error
	for attempt := 0; attempt < p.opts.Retries; attempt++ {
		if attempt > 0 {
			// Exponential backoff, capped so a flaky host cannot stall
			// the whole batch.
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			if backoff > 15*time.Second {
				backoff = 15 * time.Second
			}
			select {
			case <-ctx.Done():
				return nil, errs.Wrap(errs.KindCancelled, ctx.Err(), "fetch cancelled")
			case <-time.After(backoff):
			}
		}

		body, err := p.once(ctx, url, makeReq)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !errs.Retryable(err) {
			return nil, err
		}
		log.Debug().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("retrying fetch")
	}
	return nil, lastErr
}

func (p *Pool) once(ctx context.Context, url string, makeReq func() (*http.Request, error)) ([]byte, error) {
	req, err := makeReq()
	if err != nil {
		return nil, errs.Wrap(errs.KindPermanent, err, "failed to create request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.KindCancelled, ctx.Err(), "fetch cancelled")
		}
		if isUnreachable(err) {
			return nil, errs.Wrap(errs.KindUnreachable, err, "host unreachable")
		}
		return nil, errs.Wrap(errs.KindTransient, err, "request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, errs.New(errs.KindTransient, "server error %d for %s", resp.StatusCode, url)
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return nil, errs.New(errs.KindPermanent, "client error %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, err, "failed to read body")
	}
	return body, nil
}

// Probe performs a cheap liveness check against a base URL. It answers
// within the given timeout. A host that accepted the connection counts as
// alive even when the response is slow; one that never completed the dial
// (refused, unresolvable, or a SYN that went unanswered) does not.
func (p *Pool) Probe(baseURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		// The dialer wraps every dial-phase failure, including a timeout
		// waiting for the handshake, in an OpError with Op "dial".
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return false
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return false
		}
		// Past the dial phase a timeout means slow, not dead.
		if ctx.Err() == context.DeadlineExceeded {
			return true
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return false
	}
	resp.Body.Close()
	return true
}

// Shutdown closes idle connections. In-flight requests finish on their own
// contexts.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		if t, ok := p.client.Transport.(*http.Transport); ok {
			t.CloseIdleConnections()
		}
	})
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
