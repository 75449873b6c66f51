// Package session owns the cookie set attached to every outbound Douban request.
package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/JakeFAU/douban-harvester/internal/hash/sha256"
)

// DefaultDomain is the cookie domain used when none is configured.
const DefaultDomain = "douban.com"

// Store is a thread-safe http.CookieJar that can be rebuilt from a raw
// "k=v; k=v" cookie string. Readers never see a half-applied reload.
type Store struct {
	mu          sync.RWMutex
	jar         *cookiejar.Jar
	fingerprint string
	domain      string
	origin      *url.URL
	hasher      *sha256.Hasher
	logger      *zap.Logger
}

// NewStore creates an empty store for the given cookie domain.
func NewStore(domain string, logger *zap.Logger) (*Store, error) {
	if domain == "" {
		domain = DefaultDomain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Store{
		jar:    jar,
		domain: domain,
		origin: &url.URL{Scheme: "https", Host: domain, Path: "/"},
		hasher: sha256.New(),
		logger: logger,
	}, nil
}

// Load replaces the configured cookies. Every cookie held before, including
// ones the server set, is dropped with the old jar; malformed pairs are skipped
// individually.
func (s *Store) Load(raw string) (int, error) {
	cookies := ParseCookies(raw, s.logger)
	for _, c := range cookies {
		c.Domain = s.domain
		c.Path = "/"
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return 0, fmt.Errorf("create cookie jar: %w", err)
	}
	jar.SetCookies(s.origin, cookies)
	fingerprint := s.hasher.Fingerprint(strings.TrimSpace(raw))

	s.mu.Lock()
	s.jar = jar
	s.fingerprint = fingerprint
	s.mu.Unlock()

	s.logger.Debug("Session cookies loaded",
		zap.String("domain", s.domain),
		zap.Int("count", len(cookies)),
		zap.String("fingerprint", fingerprint),
	)
	return len(cookies), nil
}

// SetCookies implements http.CookieJar so server-issued cookies are kept.
func (s *Store) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar and returns a snapshot for u.
func (s *Store) Cookies(u *url.URL) []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jar.Cookies(u)
}

// Fingerprint identifies the loaded cookie string without revealing it.
// It is empty for an anonymous session.
func (s *Store) Fingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint
}

// Domain reports the cookie domain configured cookies are installed under.
func (s *Store) Domain() string {
	return s.domain
}

// ParseCookies splits a semicolon separated cookie string. A pair that does not
// split into exactly one name and one value on "=" is skipped.
func ParseCookies(raw string, logger *zap.Logger) []*http.Cookie {
	if logger == nil {
		logger = zap.NewNop()
	}
	var cookies []*http.Cookie
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, "=")
		if len(parts) != 2 {
			logger.Debug("Skipping malformed cookie pair", zap.String("pair", pair))
			continue
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			logger.Debug("Skipping cookie with empty name", zap.String("pair", pair))
			continue
		}
		value, quoted := unquote(strings.TrimSpace(parts[1]))
		cookies = append(cookies, &http.Cookie{
			Name:   name,
			Value:  value,
			Quoted: quoted,
		})
	}
	return cookies
}

// unquote strips one pair of surrounding double quotes. The quotes are put
// back when the Cookie header is written.
func unquote(v string) (string, bool) {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1], true
	}
	return v, false
}
