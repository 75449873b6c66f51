// Package detector recognizes Douban's risk-control responses.
//
// A blocked response usually still carries a 200 status: the site redirects to
// its security checkpoint or serves a captcha page in place of the content. The
// detector therefore looks at the final URL after redirects, the body, and
// optionally at selectors that only appear on checkpoint pages. All three are
// configurable since the markers are a best-effort heuristic.
package detector

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Default markers for Douban's security checkpoint.
var (
	DefaultBlockHosts   = []string{"sec.douban.com"}
	DefaultBlockMarkers = []string{"sec.douban.com"}
)

// Config configures a BlockDetector.
type Config struct {
	// Hosts are final-URL hosts that mean the request was diverted. Entries
	// may be exact hosts or "*.suffix" wildcards.
	Hosts []string
	// Markers are case-insensitive substrings whose presence in the body
	// marks a block.
	Markers []string
	// Selectors mark a block when any of them matches the document.
	Selectors []string
}

// Reasons reported by Blocked, naming the signal that tripped.
const (
	ReasonNone     = ""
	ReasonHost     = "redirect"
	ReasonMarker   = "marker"
	ReasonSelector = "selector"
)

// BlockDetector classifies fetched pages as blocked or not.
type BlockDetector struct {
	hosts     *hostPatterns
	markers   [][]byte
	selectors []string
}

// New builds a BlockDetector. Nil Hosts and Markers fall back to the defaults;
// pass empty non-nil slices to disable a signal.
func New(cfg Config) *BlockDetector {
	hosts := cfg.Hosts
	if hosts == nil {
		hosts = DefaultBlockHosts
	}
	markers := cfg.Markers
	if markers == nil {
		markers = DefaultBlockMarkers
	}
	lowered := make([][]byte, 0, len(markers))
	for _, m := range markers {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(m)))
	}
	selectors := make([]string, 0, len(cfg.Selectors))
	for _, s := range cfg.Selectors {
		if s = strings.TrimSpace(s); s != "" {
			selectors = append(selectors, s)
		}
	}
	return &BlockDetector{
		hosts:     newHostPatterns(hosts),
		markers:   lowered,
		selectors: selectors,
	}
}

// Blocked reports whether a response that ended at finalURL with body is a
// risk-control page, and why.
func (d *BlockDetector) Blocked(finalURL string, body []byte) (bool, string) {
	if d == nil {
		return false, ReasonNone
	}
	if d.redirected(finalURL) {
		return true, ReasonHost
	}
	if d.containsMarker(body) {
		return true, ReasonMarker
	}
	if d.matchesSelector(body) {
		return true, ReasonSelector
	}
	return false, ReasonNone
}

func (d *BlockDetector) redirected(finalURL string) bool {
	if finalURL == "" || d.hosts == nil {
		return false
	}
	u, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	return d.hosts.match(u.Hostname())
}

func (d *BlockDetector) containsMarker(body []byte) bool {
	if len(body) == 0 || len(d.markers) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, m := range d.markers {
		if bytes.Contains(lowerBody, m) {
			return true
		}
	}
	return false
}

func (d *BlockDetector) matchesSelector(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	for _, sel := range d.selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
