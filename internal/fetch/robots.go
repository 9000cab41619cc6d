package fetch

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsCache keeps one parsed robots.txt verdict per host so a batch of
// page downloads costs a single pre-check.
type robotsCache struct {
	mu     sync.Mutex
	client *http.Client
	groups map[string]*robotstxt.Group // host -> "*" group, nil means unknown/allow
}

func newRobotsCache(timeout time.Duration) *robotsCache {
	return &robotsCache{
		client: &http.Client{Timeout: timeout},
		groups: make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether the URL may be fetched under the wildcard agent.
// A robots.txt that cannot be retrieved because of a network error counts as
// unknown and allows the fetch; only an explicit disallow blocks.
func (rc *robotsCache) Allowed(rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	rc.mu.Lock()
	group, seen := rc.groups[u.Host]
	rc.mu.Unlock()

	if !seen {
		group = rc.fetchGroup(u)
		rc.mu.Lock()
		rc.groups[u.Host] = group
		rc.mu.Unlock()
	}

	if group == nil {
		return true, nil
	}
	return group.Test(u.Path), nil
}

func (rc *robotsCache) fetchGroup(u *url.URL) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	resp, err := rc.client.Get(robotsURL)
	if err != nil {
		// Treat a transient outage as unknown rather than locking the
		// host out permanently.
		return nil
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return robots.FindGroup("*")
}
