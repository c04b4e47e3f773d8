package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvid-labs/legalscout/internal/config"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/internal/preflight"
	"github.com/corvid-labs/legalscout/internal/render"
	"github.com/corvid-labs/legalscout/pkg/failure"
	"github.com/corvid-labs/legalscout/pkg/limiter"
	"github.com/corvid-labs/legalscout/pkg/retry"
	"github.com/corvid-labs/legalscout/pkg/timeutil"
)

/*
Responsibilities

- Perform HTTP requests under the per-host politeness window
- Apply rotated headers and timeouts
- Handle redirects safely (hop limit, cycle detection, no scheme downgrade)
- Classify responses into the pipeline error taxonomy
- Walk the fallback ladder: direct -> proxy pool -> archive snapshot

Fetch Semantics

- Only HTML responses within the byte cap are processed
- Non-HTML content is discarded unless the path looks like a legal document
- An empty or script-dominated body goes to the renderer when one is wired

The fetcher never parses content; it only returns bytes and metadata.
*/

const (
	maxRedirectHops = 10
	proxyCooldown   = 5 * time.Minute
)

var documentPathPattern = regexp.MustCompile(`(?i)\.(pdf|txt)$`)

type LadderFetcher struct {
	sink         legallog.Sink
	directClient *http.Client
	archive      *archiveClient
	archiveOn    bool
	proxies      *proxyPool
	proxyClients sync.Map
	rateLimiter  limiter.RateLimiter
	sleeper      timeutil.Sleeper
	renderer     render.Renderer
	uaPool       []string
	uaCursor     atomic.Uint64

	fetchTimeout        time.Duration
	maxBodyBytes        int64
	allowedContentTypes []string
}

func NewLadderFetcher(
	sink legallog.Sink,
	cfg config.Config,
	rateLimiter limiter.RateLimiter,
	sleeper timeutil.Sleeper,
	renderer render.Renderer,
) *LadderFetcher {
	direct := &http.Client{
		Timeout:       cfg.FetchTimeout(),
		CheckRedirect: checkRedirect,
	}
	return &LadderFetcher{
		sink:                sink,
		directClient:        direct,
		archive:             newArchiveClient(&http.Client{Timeout: cfg.FetchTimeout(), CheckRedirect: checkRedirect}),
		archiveOn:           cfg.ArchiveFallback(),
		proxies:             newProxyPool(cfg.ProxyPool(), proxyCooldown),
		rateLimiter:         rateLimiter,
		sleeper:             sleeper,
		renderer:            renderer,
		uaPool:              cfg.UserAgentPool(),
		fetchTimeout:        cfg.FetchTimeout(),
		maxBodyBytes:        cfg.MaxBodyBytes(),
		allowedContentTypes: cfg.AllowedContentTypes(),
	}
}

// checkRedirect bounds hop count, refuses cross-scheme downgrades, and
// detects cycles through the via chain.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirectHops {
		return &FetchError{
			Message:   fmt.Sprintf("more than %d hops", maxRedirectHops),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}
	if len(via) > 0 && via[0].URL.Scheme == "https" && req.URL.Scheme == "http" {
		return &FetchError{
			Message:   fmt.Sprintf("refusing https -> http redirect to %s", req.URL),
			Retryable: false,
			Cause:     ErrCauseSchemeDowngrade,
		}
	}
	target := req.URL.String()
	for _, prev := range via {
		if prev.URL.String() == target {
			return &FetchError{
				Message:   fmt.Sprintf("redirect cycle through %s", target),
				Retryable: false,
				Cause:     ErrCauseRedirectCycle,
			}
		}
	}
	return nil
}

func (l *LadderFetcher) Fetch(
	ctx context.Context,
	fetchParam FetchParam,
	policy preflight.HostPolicy,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	startTime := time.Now()
	result, err := l.fetchLadder(ctx, fetchParam, policy, retryParam)
	duration := time.Since(startTime)

	if err != nil {
		l.sink.RecordFetch(fetchParam.fetchUrl.String(), statusCodeOf(err), duration, "", retryParam.MaxAttempts)
		l.recordFetchError(fetchParam.fetchUrl, err)
		return FetchResult{}, err
	}
	l.sink.RecordFetch(fetchParam.fetchUrl.String(), result.Code(), duration, string(result.Tier()), 0)
	return result, nil
}

func (l *LadderFetcher) fetchLadder(
	ctx context.Context,
	fetchParam FetchParam,
	policy preflight.HostPolicy,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	// Tier 1: direct.
	result, directErr := l.doRequest(ctx, l.directClient, fetchParam.fetchUrl, policy, TierDirect)
	if directErr == nil {
		return l.maybeRender(result, policy)
	}
	if !escalatesToProxy(directErr) {
		return FetchResult{}, directErr
	}

	// Tier 2: proxy pool with exponential backoff.
	var lastErr failure.ClassifiedError = directErr
	if !l.proxies.empty() {
		proxyResult := retry.Retry(retryParam, func() (FetchResult, failure.ClassifiedError) {
			proxyURL := l.proxies.acquire()
			if proxyURL == nil {
				return FetchResult{}, &FetchError{
					Message:   "every proxy endpoint is quarantined",
					Retryable: false,
					Cause:     ErrCauseConnectionFailed,
				}
			}
			res, err := l.doRequest(ctx, l.proxyClient(proxyURL), fetchParam.fetchUrl, policy, TierProxy)
			if err != nil {
				l.proxies.reportFailure(proxyURL)
				return FetchResult{}, err
			}
			l.proxies.reportSuccess(proxyURL)
			return res, nil
		})
		if value, err := proxyResult.Unpack(); err == nil {
			return l.maybeRender(value, policy)
		} else {
			lastErr = err
		}
	}

	// Tier 3: archive snapshot.
	if l.archiveOn {
		if res, archiveErr := l.fetchArchive(ctx, fetchParam.fetchUrl, policy); archiveErr == nil {
			return res, nil
		}
	}
	return FetchResult{}, lastErr
}

func (l *LadderFetcher) fetchArchive(
	ctx context.Context,
	target url.URL,
	policy preflight.HostPolicy,
) (FetchResult, failure.ClassifiedError) {
	snapshot, err := l.archive.snapshotURL(target)
	if err != nil {
		return FetchResult{}, err
	}
	// The snapshot host is the archive, not the target; politeness applies
	// to the archive host.
	archivePolicy := policy
	archivePolicy.Host = snapshot.Host
	result, fetchErr := l.doRequest(ctx, l.directClient, *snapshot, archivePolicy, TierArchive)
	if fetchErr != nil {
		return FetchResult{}, fetchErr
	}
	result.url = target
	return result, nil
}

// doRequest performs one politeness-gated request and classifies the outcome.
func (l *LadderFetcher) doRequest(
	ctx context.Context,
	client *http.Client,
	fetchUrl url.URL,
	policy preflight.HostPolicy,
	tier Tier,
) (FetchResult, failure.ClassifiedError) {
	host := policy.Host
	if host == "" {
		host = fetchUrl.Host
	}
	if l.rateLimiter != nil {
		l.sleeper.Sleep(l.rateLimiter.ResolveDelay(host))
		l.rateLimiter.MarkLastFetchAsNow(host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseConnectionFailed,
		}
	}
	req.Header.Set("User-Agent", l.nextUserAgent(policy))
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "de,en;q=0.8,fr;q=0.6")

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if fetchErr := l.classifyStatus(resp.StatusCode, host); fetchErr != nil {
		return FetchResult{}, fetchErr
	}
	if l.rateLimiter != nil {
		l.rateLimiter.ResetBackoff(host)
	}

	contentType := resp.Header.Get("Content-Type")
	if !l.contentTypeAllowed(contentType, fetchUrl.Path) {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("content type %q for %s", contentType, fetchUrl.String()),
			Retryable:  false,
			Cause:      ErrCauseContentTypeInvalid,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBodyBytes+1))
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}
	if int64(len(body)) > l.maxBodyBytes {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("body over %d bytes", l.maxBodyBytes),
			Retryable:  false,
			Cause:      ErrCauseBodyTooLarge,
			StatusCode: resp.StatusCode,
		}
	}

	finalURL := fetchUrl
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
	}
	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}
	return FetchResult{
		url:       fetchUrl,
		finalUrl:  finalURL,
		body:      body,
		tier:      tier,
		fetchedAt: time.Now(),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: headers,
		},
	}, nil
}

func (l *LadderFetcher) classifyStatus(statusCode int, host string) *FetchError {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests:
		if l.rateLimiter != nil {
			l.rateLimiter.Backoff(host)
		}
		return &FetchError{
			Message:    "429",
			Retryable:  true,
			Cause:      ErrCauseTooManyRequests,
			StatusCode: statusCode,
		}
	case statusCode == http.StatusServiceUnavailable:
		if l.rateLimiter != nil {
			l.rateLimiter.Backoff(host)
		}
		return &FetchError{
			Message:    "503",
			Retryable:  true,
			Cause:      ErrCauseHttpServer,
			StatusCode: statusCode,
		}
	case statusCode >= 500:
		return &FetchError{
			Message:    fmt.Sprintf("status %d", statusCode),
			Retryable:  true,
			Cause:      ErrCauseHttpServer,
			StatusCode: statusCode,
		}
	default:
		return &FetchError{
			Message:    fmt.Sprintf("status %d", statusCode),
			Retryable:  false,
			Cause:      ErrCauseHttpClient,
			StatusCode: statusCode,
		}
	}
}

// maybeRender falls back to the browser renderer when the body carries no
// usable markup: empty, or dominated by script payloads.
func (l *LadderFetcher) maybeRender(result FetchResult, policy preflight.HostPolicy) (FetchResult, failure.ClassifiedError) {
	if l.renderer == nil {
		return result, nil
	}
	if !needsRender(result.body) {
		return result, nil
	}
	html, err := l.renderer.Render(result.finalUrl.String(), l.fetchTimeout)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   err.Error(),
			Retryable: failure.IsRetryable(err),
			Cause:     ErrCauseUnrenderable,
		}
	}
	result.body = []byte(html)
	result.rendered = true
	return result, nil
}

var scriptBlockPattern = regexp.MustCompile(`(?is)<script\b.*?</script>`)

func needsRender(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return true
	}
	withoutScripts := scriptBlockPattern.ReplaceAllString(trimmed, "")
	return len(withoutScripts)*2 < len(trimmed)
}

func (l *LadderFetcher) contentTypeAllowed(contentType, path string) bool {
	if documentPathPattern.MatchString(path) {
		return true
	}
	for _, allowed := range l.allowedContentTypes {
		if strings.HasPrefix(strings.ToLower(contentType), allowed) {
			return true
		}
	}
	return false
}

// nextUserAgent rotates through the curated pool; the host policy's agent
// is only a fallback when the pool is empty.
func (l *LadderFetcher) nextUserAgent(policy preflight.HostPolicy) string {
	if len(l.uaPool) == 0 {
		return policy.UserAgent
	}
	idx := l.uaCursor.Add(1)
	return l.uaPool[int(idx)%len(l.uaPool)]
}

func (l *LadderFetcher) proxyClient(proxyURL *url.URL) *http.Client {
	if cached, ok := l.proxyClients.Load(proxyURL.String()); ok {
		return cached.(*http.Client)
	}
	client := &http.Client{
		Timeout:       l.fetchTimeout,
		CheckRedirect: checkRedirect,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
	}
	actual, _ := l.proxyClients.LoadOrStore(proxyURL.String(), client)
	return actual.(*http.Client)
}

func classifyTransportError(err error) *FetchError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var fetchErr *FetchError
		if errors.As(urlErr.Err, &fetchErr) {
			// redirect-policy errors surface wrapped in url.Error
			return fetchErr
		}
		if urlErr.Timeout() {
			return &FetchError{
				Message:   urlErr.Error(),
				Retryable: true,
				Cause:     ErrCauseTimeout,
			}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseTimeout,
		}
	}
	return &FetchError{
		Message:   err.Error(),
		Retryable: true,
		Cause:     ErrCauseConnectionFailed,
	}
}

// escalatesToProxy decides whether a direct-tier failure moves to the
// proxy rung: 403, 429, 503 and transport failures do; other 4xx do not.
func escalatesToProxy(err failure.ClassifiedError) bool {
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		return false
	}
	switch fetchErr.Cause {
	case ErrCauseTimeout, ErrCauseConnectionFailed, ErrCauseHttpServer, ErrCauseTooManyRequests:
		return true
	case ErrCauseHttpClient:
		return fetchErr.StatusCode == http.StatusForbidden
	default:
		return false
	}
}

func statusCodeOf(err failure.ClassifiedError) int {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	return 0
}

func (l *LadderFetcher) recordFetchError(fetchUrl url.URL, err failure.ClassifiedError) {
	cause := failure.CauseConnectionFailure
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		cause = fetchErr.FailureCause()
	}
	l.sink.RecordError(
		time.Now(),
		"fetcher",
		"LadderFetcher.Fetch",
		cause,
		err.Error(),
		[]legallog.Attribute{
			legallog.NewAttr(legallog.AttrURL, fetchUrl.String()),
		},
	)
}
