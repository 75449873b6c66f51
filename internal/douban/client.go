// Package douban is the public lookup surface of the harvester.
//
// Every lookup follows the same path: consult the result cache, wait for
// rate-limit admission, fetch, classify, extract, and cache the outcome.
// Failed and blocked fetches are cached as negative results so a lookup that
// could not be served is not retried until its TTL lapses. Cancellation is the
// only error most lookups return, and a canceled lookup never writes the cache.
package douban

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/douban-harvester/internal/fetcher"
	"github.com/JakeFAU/douban-harvester/internal/metrics"
	"github.com/JakeFAU/douban-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/douban-harvester/internal/storage/memory"
)

// Default endpoints and cache lifetimes.
const (
	DefaultBaseURL            = "https://www.douban.com"
	DefaultMovieBaseURL       = "https://movie.douban.com"
	DefaultSearchTTL          = 5 * time.Minute
	DefaultCelebritySearchTTL = 30 * time.Minute
	DefaultDetailTTL          = 30 * time.Minute
)

// Operation names used for cache keys, metrics, and logs.
const (
	opSearch          = "search"
	opSuggest         = "suggest"
	opSubject         = "movie"
	opCelebrities     = "celebrities"
	opCelebrity       = "celebrity"
	opCelebrityPhotos = "celebrity_photo"
	opSubjectPhotos   = "photo"
	opSearchCelebrity = "search_celebrity"
	opLogin           = "login"
)

// Config holds client configuration.
type Config struct {
	BaseURL            string
	MovieBaseURL       string
	SearchTTL          time.Duration
	CelebritySearchTTL time.Duration
	DetailTTL          time.Duration
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MovieBaseURL == "" {
		c.MovieBaseURL = DefaultMovieBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.MovieBaseURL = strings.TrimRight(c.MovieBaseURL, "/")
	if c.SearchTTL <= 0 {
		c.SearchTTL = DefaultSearchTTL
	}
	if c.CelebritySearchTTL <= 0 {
		c.CelebritySearchTTL = DefaultCelebritySearchTTL
	}
	if c.DetailTTL <= 0 {
		c.DetailTTL = DefaultDetailTTL
	}
}

// Limiter admits outbound requests under a policy.
type Limiter interface {
	Admit(ctx context.Context, policy ratelimit.Policy) error
}

// CookieLoader rebuilds the session cookie set.
type CookieLoader interface {
	Load(raw string) (int, error)
}

// Deps are the collaborators a Client is built from.
type Deps struct {
	Fetcher  fetcher.Fetcher
	Limiter  Limiter
	Cache    *memory.ResultCache
	Session  CookieLoader
	Settings SettingsSource
	Logger   *zap.Logger
}

// Client performs Douban lookups.
type Client struct {
	cfg     Config
	fetcher fetcher.Fetcher
	limiter Limiter
	cache   *memory.ResultCache
	session CookieLoader
	logger  *zap.Logger
	group   singleflight.Group

	mu       sync.RWMutex
	settings Settings
	applied  bool
}

// New wires a Client and subscribes it to settings changes.
func New(cfg Config, deps Deps) (*Client, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("douban: fetcher is required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("douban: limiter is required")
	}
	cfg.setDefaults()
	cache := deps.Cache
	if cache == nil {
		cache = memory.NewResultCache(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:     cfg,
		fetcher: deps.Fetcher,
		limiter: deps.Limiter,
		cache:   cache,
		session: deps.Session,
		logger:  logger,
	}
	if deps.Settings != nil {
		c.applySettings(deps.Settings.Current())
		deps.Settings.Subscribe(c.applySettings)
	}
	return c, nil
}

// applySettings swaps in new settings and reloads the cookie jar when the
// cookie changed.
func (c *Client) applySettings(next Settings) {
	next = next.normalized()

	c.mu.Lock()
	reload := !c.applied || c.settings.Cookie != next.Cookie
	c.settings = next
	c.applied = true
	c.mu.Unlock()

	if c.session != nil && reload {
		n, err := c.session.Load(next.Cookie)
		if err != nil {
			c.logger.Error("Failed to reload session cookies", zap.Error(err))
			return
		}
		c.logger.Info("Session cookies reloaded", zap.Int("count", n))
	}
	c.logger.Info("Douban settings applied",
		zap.Bool("avoid_risk_control", next.AvoidRiskControl),
		zap.Bool("authenticated", next.Cookie != ""),
		zap.String("policy", string(ratelimit.Select(next.AvoidRiskControl, next.Cookie))),
	)
}

// Settings returns the settings currently in force.
func (c *Client) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

func (c *Client) policy() ratelimit.Policy {
	s := c.Settings()
	return ratelimit.Select(s.AvoidRiskControl, s.Cookie)
}

type flightResult[T any] struct {
	value T
	found bool
}

// remember serves key from the cache or runs load once for all concurrent
// callers and caches what it returns. A load error is returned uncached.
func remember[T any](
	ctx context.Context,
	c *Client,
	op, key string,
	ttl time.Duration,
	load func(ctx context.Context) (T, bool, error),
) (T, bool, error) {
	var zero T
	if v, found, hit := memory.Lookup[T](c.cache, key); hit {
		metrics.ObserveCacheLookup(op, true)
		return v, found, nil
	}
	metrics.ObserveCacheLookup(op, false)

	for {
		ch := c.group.DoChan(key, func() (any, error) {
			if v, found, hit := memory.Lookup[T](c.cache, key); hit {
				return flightResult[T]{value: v, found: found}, nil
			}
			v, found, err := load(ctx)
			if err != nil {
				return nil, err
			}
			c.cache.Set(key, v, found, ttl)
			return flightResult[T]{value: v, found: found}, nil
		})

		select {
		case <-ctx.Done():
			return zero, false, fmt.Errorf("%s: %w", op, ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				// The flight belonged to a caller that gave up; ours is still live.
				if isContextError(res.Err) && ctx.Err() == nil {
					continue
				}
				return zero, false, res.Err
			}
			r := res.Val.(flightResult[T])
			return r.value, r.found, nil
		}
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// fetch waits for admission and performs one request. The error is non-nil
// for cancellation and transport failures only.
func (c *Client) fetch(ctx context.Context, op, target string, headers http.Header) (fetcher.Page, error) {
	if err := c.limiter.Admit(ctx, c.policy()); err != nil {
		return fetcher.Page{}, fmt.Errorf("%s: %w", op, err)
	}
	page, err := c.fetcher.Fetch(ctx, fetcher.Request{URL: target, Headers: headers, Operation: op})
	if err != nil {
		return fetcher.Page{}, fmt.Errorf("%s: %w", op, err)
	}
	return page, nil
}

// fetchOK applies the lenient policy shared by most lookups: transport
// failures, blocks, and bad statuses are logged and reported as !ok. Only
// cancellation comes back as an error.
func (c *Client) fetchOK(ctx context.Context, op, arg, target string, headers http.Header) (fetcher.Page, bool, error) {
	page, err := c.fetch(ctx, op, target, headers)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fetcher.Page{}, false, fmt.Errorf("%s: %w", op, ctxErr)
		}
		c.logger.Warn("Douban request failed",
			zap.String("operation", op),
			zap.String("argument", arg),
			zap.Error(err),
		)
		return fetcher.Page{}, false, nil
	}
	switch page.Outcome {
	case fetcher.OutcomeSuccess:
		return page, true, nil
	case fetcher.OutcomeBlocked:
		c.warnBlocked(op, arg, page)
	default:
		c.logger.Warn("Douban request returned an error status",
			zap.String("operation", op),
			zap.String("argument", arg),
			zap.Int("status", page.StatusCode),
			zap.String("url", page.URL),
		)
	}
	return page, false, nil
}

func (c *Client) warnBlocked(op, arg string, page fetcher.Page) {
	c.logger.Warn("Douban risk control triggered; enable avoid_risk_control or configure a session cookie",
		zap.String("operation", op),
		zap.String("argument", arg),
		zap.String("final_url", page.FinalURL),
		zap.String("reason", page.BlockReason),
		zap.String("policy", string(c.policy())),
	)
}

// warnEmpty is logged when a lookup that should have produced results did
// not and no block signal was seen. Many of these in a row usually still
// mean the crawler was flagged.
func (c *Client) warnEmpty(op, arg string) {
	c.logger.Warn("Douban returned no results; frequent occurrences may indicate risk control",
		zap.String("operation", op),
		zap.String("argument", arg),
	)
}

func cacheKey(op, arg string) string {
	return op + "_" + arg
}
