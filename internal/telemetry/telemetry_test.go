// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koharyou1215/multi-chat/internal/config"
)

func TestSetup_DisabledReturnsNil(t *testing.T) {
	tel, err := Setup(context.Background(), config.TelemetryConfig{}, "test")
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetup_EnabledInstallsProviders(t *testing.T) {
	tel, err := Setup(context.Background(), config.TelemetryConfig{
		Endpoint:    "http://127.0.0.1:4318/",
		ServiceName: "multichat-test",
	}, "test")
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.NotNil(t, tel.tracerProvider)
	assert.NotNil(t, tel.loggerProvider)

	// Nothing was recorded, so shutdown has nothing to flush.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tel.Shutdown(ctx)
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		in   string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"a=1", map[string]string{"a": "1"}},
		{" a = 1 , b=x=y ", map[string]string{"a": "1", "b": "x=y"}},
		{"novalue,=empty,c=3", map[string]string{"c": "3"}},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseHeaders(tc.in))
		})
	}
}
