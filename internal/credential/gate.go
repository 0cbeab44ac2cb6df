// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrMissingCredential is returned when an operation needs the API key and
// none is configured.
var ErrMissingCredential = errors.New("API key not configured")

// Prober checks a key against the provider.
type Prober interface {
	ValidateCredential(ctx context.Context) bool
}

// ValidationState is the outcome of the last probe.
type ValidationState int

const (
	// Unchecked means no probe has run since the key was last set.
	Unchecked ValidationState = iota
	Valid
	Invalid
)

// String returns the display form of the state.
func (s ValidationState) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unchecked"
	}
}

// Status is a point-in-time view of the gate.
type Status struct {
	Configured  bool
	Fingerprint string
	State       ValidationState
	CheckedAt   time.Time
}

// Gate holds the bearer credential. The zero value is a closed gate.
type Gate struct {
	mu        sync.RWMutex
	key       string
	prober    Prober
	state     ValidationState
	checkedAt time.Time
}

// NewGate returns a gate holding key (which may be empty).
func NewGate(key string) *Gate {
	return &Gate{key: strings.TrimSpace(key)}
}

// SetProber attaches the provider used by Validate.
func (g *Gate) SetProber(p Prober) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prober = p
}

// Set replaces the key and forgets the previous validation result.
func (g *Gate) Set(key string) {
	key = strings.TrimSpace(key)

	g.mu.Lock()
	changed := key != g.key
	g.key = key
	if changed {
		g.state = Unchecked
		g.checkedAt = time.Time{}
	}
	g.mu.Unlock()

	if changed {
		slog.Info("api key updated", "configured", key != "", "fingerprint", Fingerprint(key))
	}
}

// APIKey returns the current key. Callers must never log it.
func (g *Gate) APIKey() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.key
}

// Configured reports whether a key is present.
func (g *Gate) Configured() bool {
	return g.APIKey() != ""
}

// Check returns ErrMissingCredential when no key is present.
func (g *Gate) Check() error {
	if !g.Configured() {
		return ErrMissingCredential
	}
	return nil
}

// Validate probes the provider with the current key and caches the result.
// Without a key or prober it reports false without probing.
func (g *Gate) Validate(ctx context.Context) bool {
	g.mu.RLock()
	key, prober := g.key, g.prober
	g.mu.RUnlock()

	if key == "" || prober == nil {
		return false
	}

	ok := prober.ValidateCredential(ctx)

	g.mu.Lock()
	// A key swapped in during the probe keeps its own Unchecked state.
	if g.key == key {
		g.checkedAt = time.Now()
		if ok {
			g.state = Valid
		} else {
			g.state = Invalid
		}
	}
	g.mu.Unlock()

	slog.DebugContext(ctx, "api key probed", "fingerprint", Fingerprint(key), "valid", ok)
	return ok
}

// Status returns the current state of the gate.
func (g *Gate) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Status{
		Configured:  g.key != "",
		Fingerprint: Fingerprint(g.key),
		State:       g.state,
		CheckedAt:   g.checkedAt,
	}
}

// Fingerprint returns the first 8 hex characters of the key's SHA-256, for
// logs and status lines. Empty keys give "none".
func Fingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

// Masked returns a display form that reveals nothing about the key.
func Masked(key string) string {
	if key == "" {
		return "(not set)"
	}
	return "sha256:" + Fingerprint(key) + "..."
}
