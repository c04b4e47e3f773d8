/*
Responsibilities
- First-paint rendering for pages whose raw HTTP body is empty or
  script-dominated
- One synchronous operation: render(url, timeout) -> html

The renderer is optional; when absent the fetcher uses raw HTTP only. A
semaphore caps concurrent renders so headless pages cannot spike memory.
*/
package render

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/corvid-labs/legalscout/pkg/failure"
)

type Renderer interface {
	Render(rawURL string, timeout time.Duration) (string, failure.ClassifiedError)
}

type RenderError struct {
	Message   string
	Retryable bool
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error: %s", e.Message)
}

func (e *RenderError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RenderError) IsRetryable() bool {
	return e.Retryable
}

// RodRenderer drives a headless browser over the DevTools protocol.
type RodRenderer struct {
	browser *rod.Browser
	slots   chan struct{}
}

// NewRodRenderer connects to a browser and caps concurrent renders at
// maxConcurrent.
func NewRodRenderer(maxConcurrent int) (*RodRenderer, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	browser := rod.New()
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	return &RodRenderer{
		browser: browser,
		slots:   make(chan struct{}, maxConcurrent),
	}, nil
}

func (r *RodRenderer) Render(rawURL string, timeout time.Duration) (string, failure.ClassifiedError) {
	r.slots <- struct{}{}
	defer func() { <-r.slots }()

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: rawURL})
	if err != nil {
		return "", &RenderError{Message: err.Error(), Retryable: true}
	}
	defer func() { _ = page.Close() }()

	page = page.Timeout(timeout)
	if err := page.WaitLoad(); err != nil {
		return "", &RenderError{Message: err.Error(), Retryable: true}
	}
	html, err := page.HTML()
	if err != nil {
		return "", &RenderError{Message: err.Error(), Retryable: false}
	}
	return html, nil
}

func (r *RodRenderer) Close() error {
	return r.browser.Close()
}
