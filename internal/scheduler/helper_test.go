package scheduler_test

import (
	"context"
	"sync"
	"time"

	"github.com/corvid-labs/legalscout/internal/fetcher"
	"github.com/corvid-labs/legalscout/internal/preflight"
	"github.com/corvid-labs/legalscout/internal/store"
	"github.com/corvid-labs/legalscout/pkg/failure"
	"github.com/corvid-labs/legalscout/pkg/retry"
)

// queueStub serves a scripted sequence of entries and records every status
// transition. Once the script is exhausted it cancels the run so worker
// loops exit instead of spinning on an empty queue.
type queueStub struct {
	mu       sync.Mutex
	pending  []store.QueueEntry
	released []string
	failed   map[string]store.Status
	results  map[string]store.CrawlResult
	leaseErr error
	onEmpty  context.CancelFunc
}

func newQueueStub(cancel context.CancelFunc, domains ...string) *queueStub {
	q := &queueStub{
		failed:  map[string]store.Status{},
		results: map[string]store.CrawlResult{},
		onEmpty: cancel,
	}
	for _, domain := range domains {
		q.pending = append(q.pending, store.QueueEntry{
			Domain: domain,
			Source: "test",
			Status: store.StatusPending,
		})
	}
	return q
}

func (q *queueStub) Lease(ctx context.Context, n int, ttl time.Duration) ([]store.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.leaseErr != nil {
		return nil, q.leaseErr
	}
	if len(q.pending) == 0 {
		if q.onEmpty != nil {
			q.onEmpty()
		}
		return nil, nil
	}
	entry := q.pending[0]
	q.pending = q.pending[1:]
	entry.Status = store.StatusProcessing
	entry.Attempts++
	return []store.QueueEntry{entry}, nil
}

func (q *queueStub) Complete(ctx context.Context, domain string, result store.CrawlResult, terminal store.Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results[domain] = result
	q.failed[domain] = terminal
	return nil
}

func (q *queueStub) Fail(ctx context.Context, domain string, terminal store.Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[domain] = terminal
	return nil
}

func (q *queueStub) Release(ctx context.Context, domain string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.released = append(q.released, domain)
	return nil
}

func (q *queueStub) statusOf(domain string) (store.Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status, ok := q.failed[domain]
	return status, ok
}

func (q *queueStub) resultOf(domain string) (store.CrawlResult, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	result, ok := q.results[domain]
	return result, ok
}

func (q *queueStub) releasedDomains() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.released...)
}

// checkerStub allows every domain with a fixed host policy unless a
// scripted decision overrides it.
type checkerStub struct {
	decisions map[string]preflight.Decision
}

func (c *checkerStub) Check(domain string) (preflight.Decision, failure.ClassifiedError) {
	if c.decisions != nil {
		if decision, ok := c.decisions[domain]; ok {
			return decision, nil
		}
	}
	return preflight.Decision{
		Allowed:      true,
		Reason:       preflight.NoRobotsRules,
		ResolvedHost: domain,
		Policy:       preflight.HostPolicy{Host: domain, UserAgent: "test-agent"},
	}, nil
}

// fetcherStub serves scripted bodies per URL path and records fetches.
type fetcherStub struct {
	mu      sync.Mutex
	pages   map[string][]byte
	errs    map[string]*fetcher.FetchError
	fetched []string
	block   chan struct{}
}

func (f *fetcherStub) Fetch(
	ctx context.Context,
	fetchParam fetcher.FetchParam,
	policy preflight.HostPolicy,
	retryParam retry.RetryParam,
) (fetcher.FetchResult, failure.ClassifiedError) {
	u := fetchParam.FetchURL()
	f.mu.Lock()
	f.fetched = append(f.fetched, u.String())
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	key := u.Host + u.Path
	if f.errs != nil {
		if err, ok := f.errs[key]; ok {
			return fetcher.FetchResult{}, err
		}
	}
	body, ok := f.pages[key]
	if !ok {
		return fetcher.FetchResult{}, &fetcher.FetchError{
			Message: "no scripted page for " + key, Retryable: false,
			Cause: fetcher.ErrCauseHttpClient, StatusCode: 404,
		}
	}
	return fetcher.NewFetchResultForTest(u, body, 200, fetcher.TierDirect, time.Now()), nil
}

func (f *fetcherStub) fetchedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

const impressumHomeHTML = `<html><body>
<p>Willkommen bei Beispiel.</p>
<footer><a href="/impressum">Impressum</a></footer>
</body></html>`

const impressumPageHTML = `<html><body><main>
<h1>Impressum</h1>
<p>Beispiel GmbH<br>Musterweg 7<br>80333 München</p>
<p>Geschäftsführer: Max Mustermann</p>
<p>HRB 12345 Amtsgericht München</p>
</main></body></html>`

const structuredHomeHTML = `<html><head>
<script type="application/ld+json">
{"@type":"Organization","legalName":"Example GmbH","telephone":"+49 30 1234567",
"address":{"streetAddress":"Musterstr. 1","postalCode":"10115","addressLocality":"Berlin"}}
</script>
</head><body><p>Welcome</p></body></html>`

const garbageHomeHTML = `<html><body><main>
<p>Kontakt · Menü · Warenkorb (0)</p>
<p>80333 München</p>
</main></body></html>`
