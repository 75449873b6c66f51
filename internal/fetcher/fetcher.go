// Package fetcher defines the request/response contract between the Douban
// client and the HTTP layer, and how a completed response is classified.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Outcome classifies a completed response.
type Outcome string

// Response outcomes.
const (
	// OutcomeSuccess is a 2xx response with no risk-control markers.
	OutcomeSuccess Outcome = "success"
	// OutcomeBlocked means the site diverted the request to its anti-bot checkpoint.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeFailure is any other non-2xx response. Callers treat it as "no data".
	OutcomeFailure Outcome = "failure"
)

// ErrBlocked is returned by Page.Err for blocked responses.
var ErrBlocked = errors.New("request blocked by risk control")

// Request describes one GET.
type Request struct {
	URL string
	// Headers override the fetcher's browser-like defaults.
	Headers http.Header
	// Operation labels metrics and logs.
	Operation string
}

// Page is a completed response. Transport failures never produce a Page.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	Duration    time.Duration
	Outcome     Outcome
	BlockReason string
}

// StatusError reports a non-2xx response without block markers.
type StatusError struct {
	URL        string
	FinalURL   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// Err converts a non-success outcome into an error.
func (p Page) Err() error {
	switch p.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeBlocked:
		return fmt.Errorf("%s: %w", p.URL, ErrBlocked)
	default:
		return &StatusError{URL: p.URL, FinalURL: p.FinalURL, StatusCode: p.StatusCode}
	}
}

// Fetcher fetches a URL and returns the classified page.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Page, error)
}

// Classifier decides whether a response is a risk-control page.
type Classifier interface {
	Blocked(finalURL string, body []byte) (bool, string)
}

// Classify applies the outcome rules: a block signal wins over any status,
// then 2xx is success and everything else is failure.
func Classify(c Classifier, statusCode int, finalURL string, body []byte) (Outcome, string) {
	if c != nil {
		if blocked, reason := c.Blocked(finalURL, body); blocked {
			return OutcomeBlocked, reason
		}
	}
	if statusCode >= 200 && statusCode < 300 {
		return OutcomeSuccess, ""
	}
	return OutcomeFailure, ""
}
