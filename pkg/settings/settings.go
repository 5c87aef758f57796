// Package settings holds the runtime chat configuration that the /config
// endpoint edits and every chat run reads.
//
// The configuration is an immutable snapshot behind an atomic pointer. A run
// loads the snapshot once and uses it throughout, so a concurrent update
// never produces a half-written view. Updates replace the whole snapshot and
// the last writer wins; there is no versioning or compare-and-swap.
package settings

import (
	"strings"
	"sync/atomic"
)

type ChatConfig struct {
	OpenRouterKey string `json:"openRouterKey"`
	Model         string `json:"model"`
	SystemPrompt  string `json:"systemPrompt"`
}

// Masked returns a copy safe to show to clients: only the last four
// characters of the key survive.
func (c ChatConfig) Masked() ChatConfig {
	c.OpenRouterKey = MaskKey(c.OpenRouterKey)
	return c
}

func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "***"
	}
	return "***" + key[len(key)-4:]
}

type Store struct {
	current atomic.Pointer[ChatConfig]
}

func NewStore(initial ChatConfig) *Store {
	s := &Store{}
	s.Replace(initial)
	return s
}

// Snapshot returns the current configuration by value.
func (s *Store) Snapshot() ChatConfig {
	return *s.current.Load()
}

// Replace overwrites the configuration in full.
func (s *Store) Replace(cfg ChatConfig) {
	cfg.OpenRouterKey = strings.TrimSpace(cfg.OpenRouterKey)
	s.current.Store(&cfg)
}
