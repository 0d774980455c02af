// Package tuning holds the economy parameters (rates, thresholds, windows)
// loaded from economy.yaml, plus the environment-provided endpoints.
package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TokenID   string `yaml:"token_id"`
	ChatID    int64  `yaml:"chat_id"`
	AdminChat int64  `yaml:"admin_chat_id"`

	Economy    Economy    `yaml:"economy"`
	RateLimits RateLimits `yaml:"rate_limits"`
	Ledger     Ledger     `yaml:"ledger"`
}

// Economy amounts are in token atoms.
type Economy struct {
	ClaimAtoms uint64 `yaml:"claim_atoms"`
	LikeAtoms  uint64 `yaml:"like_atoms"`

	DislikeReactorAtoms uint64 `yaml:"dislike_reactor_atoms"`
	DislikeAuthorAtoms  uint64 `yaml:"dislike_author_atoms"`

	RespawnTarget    uint64 `yaml:"respawn_target"`
	RespawnThreshold uint64 `yaml:"respawn_threshold"`

	BottleAuthorRate uint64 `yaml:"bottle_author_rate"`
	BottleSenderRate uint64 `yaml:"bottle_sender_rate"`
	ChiliRate        uint64 `yaml:"chili_rate"`
	MaxGlyphs        int    `yaml:"max_glyphs"`
}

type RateLimits struct {
	RespawnWindowSec  int `yaml:"respawn_window_sec"`
	WithdrawWindowSec int `yaml:"withdraw_window_sec"`
	DislikeWindowSec  int `yaml:"dislike_window_sec"`
	MaxDislikes       int `yaml:"max_dislikes"`
}

type Ledger struct {
	HistoryPageSize   int     `yaml:"history_page_size"`
	HTTPTimeoutMs     int     `yaml:"http_timeout_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

func Defaults() Tuning {
	return Tuning{
		Economy: Economy{
			ClaimAtoms:          100,
			LikeAtoms:           1,
			DislikeReactorAtoms: 1,
			DislikeAuthorAtoms:  2,
			RespawnTarget:       100,
			RespawnThreshold:    75,
			BottleAuthorRate:    10,
			BottleSenderRate:    3,
			ChiliRate:           1,
			MaxGlyphs:           5,
		},
		RateLimits: RateLimits{
			RespawnWindowSec:  86400,
			WithdrawWindowSec: 86400,
			DislikeWindowSec:  86400,
			MaxDislikes:       3,
		},
		Ledger: Ledger{
			HistoryPageSize:   25,
			HTTPTimeoutMs:     10000,
			RequestsPerSecond: 10,
			Burst:             5,
		},
	}
}

// Load reads economy.yaml on top of Defaults. An empty path yields defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("economy.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("economy.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	t.TokenID = strings.ToLower(strings.TrimSpace(t.TokenID))
	if t.Economy.MaxGlyphs <= 0 {
		t.Economy.MaxGlyphs = 5
	}
	if t.Ledger.HistoryPageSize <= 0 {
		t.Ledger.HistoryPageSize = 25
	}
	if t.Ledger.HTTPTimeoutMs <= 0 {
		t.Ledger.HTTPTimeoutMs = 10000
	}
	if t.RateLimits.RespawnWindowSec <= 0 {
		t.RateLimits.RespawnWindowSec = 86400
	}
	if t.RateLimits.WithdrawWindowSec <= 0 {
		t.RateLimits.WithdrawWindowSec = 86400
	}
	if t.RateLimits.DislikeWindowSec <= 0 {
		t.RateLimits.DislikeWindowSec = 86400
	}
}

func (t Tuning) Validate() error {
	e := t.Economy
	if e.RespawnThreshold > e.RespawnTarget {
		return fmt.Errorf("respawn_threshold %d exceeds respawn_target %d", e.RespawnThreshold, e.RespawnTarget)
	}
	if e.BottleSenderRate == 0 || e.ChiliRate == 0 {
		return fmt.Errorf("bottle_sender_rate and chili_rate must be positive")
	}
	if t.RateLimits.MaxDislikes < 0 {
		return fmt.Errorf("max_dislikes must be >= 0")
	}
	return nil
}

func (r RateLimits) RespawnWindow() time.Duration {
	return time.Duration(r.RespawnWindowSec) * time.Second
}

func (r RateLimits) WithdrawWindow() time.Duration {
	return time.Duration(r.WithdrawWindowSec) * time.Second
}

func (r RateLimits) DislikeWindow() time.Duration {
	return time.Duration(r.DislikeWindowSec) * time.Second
}
