package douban

import (
	"slices"
	"strings"
	"sync"
)

// Settings is the host-controlled configuration the client reacts to.
type Settings struct {
	// Cookie is the raw "k=v; k=v" session cookie. Empty means anonymous.
	Cookie string
	// AvoidRiskControl switches from the flat default throttle to the tiered
	// guest/authenticated policies.
	AvoidRiskControl bool
}

func (s Settings) normalized() Settings {
	s.Cookie = strings.TrimSpace(s.Cookie)
	return s
}

// SettingsSource supplies the current settings and pushes later changes.
type SettingsSource interface {
	Current() Settings
	Subscribe(fn func(Settings))
}

// StaticSettings is a SettingsSource whose value only changes through Set.
type StaticSettings struct {
	mu        sync.RWMutex
	settings  Settings
	listeners []func(Settings)
}

// NewStaticSettings returns a source holding s.
func NewStaticSettings(s Settings) *StaticSettings {
	return &StaticSettings{settings: s}
}

// Current implements SettingsSource.
func (s *StaticSettings) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Subscribe implements SettingsSource.
func (s *StaticSettings) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Set replaces the settings and notifies subscribers synchronously.
func (s *StaticSettings) Set(next Settings) {
	s.mu.Lock()
	s.settings = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
}
