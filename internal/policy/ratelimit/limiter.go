// Package ratelimit implements the tiered admission policies that gate every
// outbound Douban request.
//
// A policy is a set of constraints that must all hold at the moment of
// admission. Each constraint reports how long a caller would have to wait;
// the limiter sleeps for the largest of those waits and re-checks, so a
// caller is only admitted once every window has room.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/douban-harvester/internal/clock/system"
	"github.com/JakeFAU/douban-harvester/internal/metrics"
)

// Policy names an admission tier.
type Policy string

// Admission tiers selected from the session and risk-avoidance settings.
const (
	PolicyDefault       Policy = "default"
	PolicyGuest         Policy = "guest"
	PolicyAuthenticated Policy = "authenticated"
)

// Rule allows at most Count admissions in any rolling Interval.
type Rule struct {
	Count    int
	Interval time.Duration
}

// DefaultPolicies mirrors the limits Douban tolerates before flagging traffic:
// unauthenticated clients get banned after ~10 requests a minute and logged-in
// sessions start seeing bot checks past ~20.
func DefaultPolicies() map[Policy][]Rule {
	return map[Policy][]Rule{
		PolicyDefault: {
			{Count: 1, Interval: 200 * time.Millisecond},
		},
		PolicyGuest: {
			{Count: 10, Interval: time.Minute},
			{Count: 1, Interval: 5000 * time.Millisecond},
		},
		PolicyAuthenticated: {
			{Count: 20, Interval: time.Minute},
			{Count: 1, Interval: 3000 * time.Millisecond},
		},
	}
}

// Select picks the policy for the current settings. Risk avoidance off always
// means the flat default; on, a configured cookie upgrades guest to authenticated.
func Select(avoidRiskControl bool, cookie string) Policy {
	if !avoidRiskControl {
		return PolicyDefault
	}
	if cookie != "" {
		return PolicyAuthenticated
	}
	return PolicyGuest
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Config holds rate limiter configuration.
type Config struct {
	// Policies overrides DefaultPolicies when non-nil.
	Policies map[Policy][]Rule
	Clock    Clock
	Logger   *zap.Logger
}

// Limiter admits requests under one of several composite policies.
type Limiter struct {
	mu       sync.Mutex
	policies map[Policy][]constraint
	clock    Clock
	logger   *zap.Logger
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	rules := cfg.Policies
	if rules == nil {
		rules = DefaultPolicies()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = system.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policies := make(map[Policy][]constraint, len(rules))
	for name, rs := range rules {
		cs := make([]constraint, 0, len(rs))
		for _, r := range rs {
			if c := newConstraint(r); c != nil {
				cs = append(cs, c)
			}
		}
		policies[name] = cs
	}
	return &Limiter{
		policies: policies,
		clock:    clk,
		logger:   logger,
	}
}

// Admit blocks until the policy has capacity, respecting the context. It never
// rejects; a canceled wait returns the context error and records nothing.
func (l *Limiter) Admit(ctx context.Context, policy Policy) error {
	start := l.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		l.mu.Lock()
		constraints, ok := l.policies[policy]
		if !ok {
			constraints = l.policies[PolicyDefault]
		}
		now := l.clock.Now()
		var wait time.Duration
		for _, c := range constraints {
			if d := c.wait(now); d > wait {
				wait = d
			}
		}
		if wait <= 0 {
			for _, c := range constraints {
				c.record(now)
			}
			l.mu.Unlock()

			if delay := now.Sub(start); delay > time.Millisecond {
				metrics.ObserveRateLimitDelay(string(policy), delay)
				l.logger.Debug("Admitted after rate limit wait",
					zap.String("policy", string(policy)),
					zap.Duration("delay", delay),
				)
			}
			return nil
		}
		l.mu.Unlock()

		if err := l.clock.Sleep(ctx, wait); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
}

// constraint is one rolling window. wait reports how long until a slot frees
// up; record consumes a slot. Both are called with Limiter.mu held.
type constraint interface {
	wait(now time.Time) time.Duration
	record(now time.Time)
}

func newConstraint(r Rule) constraint {
	switch {
	case r.Count <= 0 || r.Interval <= 0:
		return nil
	case r.Count == 1:
		return &spacingConstraint{
			interval: r.Interval,
			limiter:  rate.NewLimiter(rate.Every(r.Interval), 1),
		}
	default:
		return &windowConstraint{count: r.Count, interval: r.Interval}
	}
}

// spacingConstraint enforces a minimum gap between admissions. A token bucket
// with burst 1 is exactly "one per rolling interval".
type spacingConstraint struct {
	interval time.Duration
	limiter  *rate.Limiter
}

func (c *spacingConstraint) wait(now time.Time) time.Duration {
	tokens := c.limiter.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	return time.Duration(math.Ceil((1 - tokens) * float64(c.interval)))
}

func (c *spacingConstraint) record(now time.Time) {
	c.limiter.AllowN(now, 1)
}

// windowConstraint keeps the admission times inside the rolling window.
type windowConstraint struct {
	count    int
	interval time.Duration
	stamps   []time.Time
}

func (c *windowConstraint) prune(now time.Time) {
	cutoff := now.Add(-c.interval)
	i := 0
	for i < len(c.stamps) && !c.stamps[i].After(cutoff) {
		i++
	}
	c.stamps = c.stamps[i:]
}

func (c *windowConstraint) wait(now time.Time) time.Duration {
	c.prune(now)
	if len(c.stamps) < c.count {
		return 0
	}
	return c.stamps[0].Add(c.interval).Sub(now)
}

func (c *windowConstraint) record(now time.Time) {
	c.stamps = append(c.stamps, now)
}
