// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProber struct {
	mu    sync.Mutex
	ok    bool
	calls int
}

func (p *stubProber) ValidateCredential(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.ok
}

func TestGate_ClosedByDefault(t *testing.T) {
	var g Gate
	assert.False(t, g.Configured())
	assert.True(t, errors.Is(g.Check(), ErrMissingCredential))
}

func TestGate_SetOpens(t *testing.T) {
	g := NewGate("")
	g.Set("  sk-or-test  ")
	assert.True(t, g.Configured())
	assert.NoError(t, g.Check())
	assert.Equal(t, "sk-or-test", g.APIKey())

	g.Set("")
	assert.ErrorIs(t, g.Check(), ErrMissingCredential)
}

func TestGate_Validate(t *testing.T) {
	p := &stubProber{ok: true}
	g := NewGate("sk-a")
	g.SetProber(p)

	assert.Equal(t, Unchecked, g.Status().State)
	assert.True(t, g.Validate(context.Background()))

	st := g.Status()
	assert.Equal(t, Valid, st.State)
	assert.False(t, st.CheckedAt.IsZero())

	p.ok = false
	assert.False(t, g.Validate(context.Background()))
	assert.Equal(t, Invalid, g.Status().State)
}

func TestGate_SetResetsValidation(t *testing.T) {
	g := NewGate("sk-a")
	g.SetProber(&stubProber{ok: true})
	require.True(t, g.Validate(context.Background()))

	g.Set("sk-b")
	assert.Equal(t, Unchecked, g.Status().State)

	g.Set("sk-b")
	assert.Equal(t, Unchecked, g.Status().State)
}

func TestGate_ValidateWithoutKeyDoesNotProbe(t *testing.T) {
	p := &stubProber{ok: true}
	g := NewGate("")
	g.SetProber(p)
	assert.False(t, g.Validate(context.Background()))
	assert.Equal(t, 0, p.calls)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "none", Fingerprint(""))
	fp := Fingerprint("sk-secret")
	assert.Len(t, fp, 8)
	assert.Equal(t, fp, Fingerprint("sk-secret"))
	assert.NotEqual(t, fp, Fingerprint("sk-other"))
	assert.NotContains(t, Masked("sk-secret"), "secret")
}

func TestGate_StatusNeverExposesKey(t *testing.T) {
	g := NewGate("sk-very-secret")
	st := g.Status()
	assert.True(t, st.Configured)
	assert.NotContains(t, st.Fingerprint, "secret")
}
