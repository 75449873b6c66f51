// Package collyfetcher implements fetcher.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/douban-harvester/internal/fetcher"
	"github.com/JakeFAU/douban-harvester/internal/metrics"
)

// Browser-like defaults attached to every request.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/93.0.4577.63 Safari/537.36 Edg/93.0.961.44"
	DefaultOrigin  = "https://movie.douban.com"
	DefaultReferer = "https://movie.douban.com/"
	DefaultTimeout = 20 * time.Second
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Origin    string
	Referer   string
	Timeout   time.Duration
	// Jar carries the session cookies. It is shared by every request.
	Jar http.CookieJar
	// Classifier marks risk-control responses; nil disables block detection.
	Classifier fetcher.Classifier
	// Transport overrides the pooled default transport.
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Fetcher implements fetcher.Fetcher using the Colly collector.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	logger    *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		logger:    logger,
	}
}

// Fetch executes a single HTTP GET using Colly and classifies the response.
// Transport failures and cancellation are returned as errors; any response
// that arrived, whatever its status, is returned as a Page.
func (f *Fetcher) Fetch(ctx context.Context, request fetcher.Request) (fetcher.Page, error) {
	if err := ctx.Err(); err != nil {
		return fetcher.Page{}, fmt.Errorf("colly fetch canceled: %w", err)
	}

	var (
		result   fetcher.Page
		fetchErr error
	)
	start := time.Now()
	transport := newContextTransport(ctx, f.transport)
	defer transport.release()

	collector := f.buildCollector(transport)
	f.configureCollectorHooks(collector, request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		metrics.ObserveFetch(request.Operation, request.URL, "error", 0, time.Since(start))
		return fetcher.Page{}, err
	}

	result.URL = request.URL
	result.Outcome, result.BlockReason = fetcher.Classify(f.cfg.Classifier, result.StatusCode, result.FinalURL, result.Body)
	metrics.ObserveFetch(request.Operation, request.URL, string(result.Outcome), len(result.Body), result.Duration)
	f.logger.Debug("Fetched page",
		zap.String("operation", request.Operation),
		zap.String("url", request.URL),
		zap.String("final_url", result.FinalURL),
		zap.Int("status", result.StatusCode),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// buildCollector creates a collector for a single fetch. Collectors cloned from
// a shared base share one HTTP backend, so each fetch gets its own.
func (f *Fetcher) buildCollector(transport http.RoundTripper) *colly.Collector {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(transport)
	if f.cfg.Jar != nil {
		collector.SetCookieJar(f.cfg.Jar)
	}
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request fetcher.Request,
	start time.Time,
	result *fetcher.Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.applyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = fetcher.Page{
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("colly fetch canceled: %w", ctxErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) applyHeaders(request fetcher.Request, r *colly.Request) {
	r.Headers.Set("User-Agent", f.cfg.UserAgent)
	r.Headers.Set("Origin", f.cfg.Origin)
	r.Headers.Set("Referer", f.cfg.Referer)
	for key, values := range request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

// contextTransport binds every round trip of one fetch to the caller's
// context while keeping the client's own timeout in force.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper

	mu       sync.Mutex
	releases []func()
}

func newContextTransport(ctx context.Context, base http.RoundTripper) *contextTransport {
	return &contextTransport{ctx: ctx, base: base}
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqCtx, cancel := context.WithCancelCause(req.Context())
	stop := context.AfterFunc(t.ctx, func() {
		cancel(context.Cause(t.ctx))
	})
	t.mu.Lock()
	t.releases = append(t.releases, func() {
		stop()
		cancel(nil)
	})
	t.mu.Unlock()
	return t.base.RoundTrip(req.WithContext(reqCtx))
}

// release frees per-request contexts once the body has been consumed.
func (t *contextTransport) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, fn := range t.releases {
		fn()
	}
	t.releases = nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
