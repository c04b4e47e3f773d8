package preflight

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/maypok86/otter"
	"github.com/temoto/robotstxt"
)

/*
Responsibilities
- Fetch robots.txt per host with a short timeout
- 4xx or unreachable means "no rules, allow"
- Cache parsed rules per host with TTL; stale entries refresh on lease

The fetcher returns parsed rules; it does not decide URL permissions.
*/

const robotsMaxBytes = 512 * 1024

type RobotsFetcher interface {
	Rules(host string) (*robotstxt.RobotsData, error)
}

type CachedRobotsFetcher struct {
	httpClient *http.Client
	userAgent  string
	cache      otter.Cache[string, *robotstxt.RobotsData]
}

func NewCachedRobotsFetcher(userAgent string, timeout, cacheTTL time.Duration) (*CachedRobotsFetcher, error) {
	cache, err := otter.MustBuilder[string, *robotstxt.RobotsData](4096).
		WithTTL(cacheTTL).
		Build()
	if err != nil {
		return nil, err
	}
	return &CachedRobotsFetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		cache:      cache,
	}, nil
}

// NewCachedRobotsFetcherWithClient injects a custom HTTP client for tests.
func NewCachedRobotsFetcherWithClient(userAgent string, client *http.Client, cacheTTL time.Duration) (*CachedRobotsFetcher, error) {
	f, err := NewCachedRobotsFetcher(userAgent, 10*time.Second, cacheTTL)
	if err != nil {
		return nil, err
	}
	f.httpClient = client
	return f, nil
}

// Rules returns the parsed robots.txt for the host, from cache when fresh.
// A nil return with nil error means no rules apply (allow everything).
func (f *CachedRobotsFetcher) Rules(host string) (*robotstxt.RobotsData, error) {
	if data, ok := f.cache.Get(host); ok {
		return data, nil
	}

	data := f.fetch(host)
	f.cache.Set(host, data)
	return data, nil
}

func (f *CachedRobotsFetcher) fetch(host string) *robotstxt.RobotsData {
	for _, scheme := range []string{"https", "http"} {
		req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s://%s/robots.txt", scheme, host), nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", f.userAgent)
		resp, err := f.httpClient.Do(req)
		if err != nil {
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
		_ = resp.Body.Close()
		if readErr != nil {
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			data, parseErr := robotstxt.FromBytes(body)
			if parseErr != nil {
				return nil
			}
			return data
		}
		// 4xx means no rules published; anything else falls through to
		// the http attempt, then to "allow".
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil
		}
	}
	return nil
}

func (f *CachedRobotsFetcher) Close() {
	f.cache.Close()
}
