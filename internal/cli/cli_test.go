// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koharyou1215/multi-chat/internal/cloud"
	"github.com/koharyou1215/multi-chat/internal/config"
	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/credential"
	"github.com/koharyou1215/multi-chat/internal/model"
	"github.com/koharyou1215/multi-chat/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// echoProvider answers each chat completion with "reply from <model>" and
// rejects requests for the model named "bad/model".
func echoProvider(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/models" {
		w.Write([]byte(`{"data":[{"id":"openai/gpt-4o","name":"GPT-4o","context_length":128000}]}`))
		return
	}
	var req struct {
		Model string `json:"model"`
	}
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &req)
	if req.Model == "bad/model" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"no such model","code":400}}`))
		return
	}
	fmt.Fprintf(w, `{"id":"gen","model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`,
		req.Model, "reply from "+req.Model)
}

func isolateHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MULTICHAT_HOME", dir)
	t.Setenv("MULTICHAT_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("MULTICHAT_BASE_URL", "")
	t.Setenv("MULTICHAT_BACKEND", "")
	t.Setenv("MULTICHAT_PANELS", "")
	t.Setenv("MULTICHAT_LOG_LEVEL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	return dir
}

func newTestConfig(t *testing.T, key string, handler http.HandlerFunc) (*config.Config, string) {
	t.Helper()
	dir := isolateHome(t)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Cloud.BaseURL = server.URL
	cfg.Cloud.APIKey = key
	cfg.Storage.DatabasePath = filepath.Join(dir, "test.db")
	cfg.Storage.TranscriptDir = filepath.Join(dir, "transcripts")
	return cfg, filepath.Join(dir, "config.toml")
}

func newTestApp(t *testing.T, key string, handler http.HandlerFunc) *App {
	t.Helper()
	cfg, path := newTestConfig(t, key, handler)
	app, err := Open(context.Background(), cfg, path, OpenOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func newTestSession(t *testing.T, key string) (*Session, *App, *bytes.Buffer) {
	t.Helper()
	app := newTestApp(t, key, echoProvider)
	var out bytes.Buffer
	return NewSession(app, &out), app, &out
}

func exec(t *testing.T, s *Session, line string) {
	t.Helper()
	quit, err := s.Execute(context.Background(), line)
	require.NoError(t, err, line)
	require.False(t, quit, line)
}

// runRoot executes the command tree with args and returns stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(func(context.Context, *App) error { return nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestSession_SendBroadcastsToAllPanels(t *testing.T) {
	s, app, out := newTestSession(t, "sk-or-test")

	exec(t, s, "/panels 2")
	exec(t, s, "/model 2 openai/gpt-4o")
	exec(t, s, "hello there")

	text := out.String()
	assert.Contains(t, text, "reply from "+model.DefaultModelID)
	assert.Contains(t, text, "reply from openai/gpt-4o")

	for _, p := range app.Store.Panels() {
		require.Len(t, p.Messages, 2, p.ID)
		assert.Equal(t, model.RoleUser, p.Messages[0].Role)
		assert.Equal(t, "hello there", p.Messages[0].Content)
		assert.Equal(t, "reply from "+p.ModelID, p.Messages[1].Content)
		assert.False(t, p.Loading)
	}
}

func TestSession_SendDisabledWithoutKey(t *testing.T) {
	s, app, _ := newTestSession(t, "")

	_, err := s.Execute(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrSendDisabled)
	p, ok := app.Store.Panel(conversation.PanelID(1))
	require.True(t, ok)
	assert.Empty(t, p.Messages)
}

func TestSession_FailedPanelDoesNotAffectOthers(t *testing.T) {
	s, app, out := newTestSession(t, "sk-or-test")

	exec(t, s, "/panels 2")
	exec(t, s, "/model 1 bad/model")
	exec(t, s, "hi")

	assert.Contains(t, out.String(), model.ErrorPrefix)

	bad, _ := app.Store.Panel(conversation.PanelID(1))
	require.Len(t, bad.Messages, 2)
	assert.True(t, bad.Messages[1].IsError)

	good, _ := app.Store.Panel(conversation.PanelID(2))
	require.Len(t, good.Messages, 2)
	assert.Equal(t, "reply from "+model.DefaultModelID, good.Messages[1].Content)
}

func TestSession_TargetSelected(t *testing.T) {
	s, app, out := newTestSession(t, "sk-or-test")

	exec(t, s, "/panels 3")
	exec(t, s, "/target selected")
	exec(t, s, "nobody listens")
	assert.Contains(t, out.String(), "No panels targeted")

	exec(t, s, "/select 3")
	exec(t, s, "only three")
	for _, p := range app.Store.Panels() {
		if p.ID == conversation.PanelID(3) {
			assert.Len(t, p.Messages, 2)
		} else {
			assert.Empty(t, p.Messages, p.ID)
		}
	}
}

func TestSession_MultiSend(t *testing.T) {
	s, app, _ := newTestSession(t, "sk-or-test")

	exec(t, s, "/panels 4")
	exec(t, s, "/multi 2 4")
	exec(t, s, "/target multi")
	exec(t, s, "to two and four")

	assert.Equal(t, []string{conversation.PanelID(2), conversation.PanelID(4)}, app.Store.MultiSendIDs())
	for _, p := range app.Store.Panels() {
		want := 0
		if p.ID == conversation.PanelID(2) || p.ID == conversation.PanelID(4) {
			want = 2
		}
		assert.Len(t, p.Messages, want, p.ID)
	}
}

func TestSession_Attachments(t *testing.T) {
	s, _, out := newTestSession(t, "sk-or-test")

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("remember this"), 0600))

	exec(t, s, "/attach "+path)
	require.Len(t, s.Staged(), 1)
	assert.Equal(t, "notes.txt", s.Staged()[0].Name)
	assert.Contains(t, out.String(), "Staged notes.txt")

	exec(t, s, "see attached")
	assert.Empty(t, s.Staged(), "staging is cleared after the send settles")
}

func TestSession_PromptApplyAndHistory(t *testing.T) {
	s, app, out := newTestSession(t, "sk-or-test")
	ctx := context.Background()

	_, err := app.DB.AddPrompt(ctx, model.NewPrompt("Reviewer", "Review the code.", []string{"code"}))
	require.NoError(t, err)

	exec(t, s, "/panels 2")
	exec(t, s, "/prompt apply reviewer")
	assert.Contains(t, out.String(), `Applied "Reviewer"`)

	for _, p := range app.Store.Panels() {
		assert.Equal(t, "Review the code.", p.SystemPrompt(), p.ID)
	}

	history, err := app.DB.PromptUsage(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Reviewer", history[0].Title)
	assert.Len(t, history[0].PanelIDs, 2)

	exec(t, s, "/prompt clear")
	for _, p := range app.Store.Panels() {
		assert.Empty(t, p.SystemPrompt(), p.ID)
	}
}

func TestSession_ExportWritesTranscript(t *testing.T) {
	s, app, out := newTestSession(t, "sk-or-test")

	exec(t, s, "ping")
	exec(t, s, "/export 1 json")

	entries, err := os.ReadDir(app.Config.Storage.TranscriptDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".json"))
	assert.Contains(t, out.String(), "Exported panel-1")
}

func TestSession_KeySetOpensGate(t *testing.T) {
	s, app, out := newTestSession(t, "")

	exec(t, s, "/key set sk-or-new-key-1234")
	assert.True(t, app.Gate.Configured())
	assert.NotContains(t, out.String(), "sk-or-new-key-1234")

	data, err := os.ReadFile(app.ConfigPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sk-or-new-key-1234")
}

func TestSession_UnknownCommandSuggests(t *testing.T) {
	s, _, _ := newTestSession(t, "sk-or-test")

	_, err := s.Execute(context.Background(), "/hepl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean /help?")

	_, err = s.Execute(context.Background(), "/zzzzzz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "try /help")
}

func TestSession_Quit(t *testing.T) {
	s, _, _ := newTestSession(t, "")
	for _, line := range []string{"/quit", "/q", "/exit"} {
		quit, err := s.Execute(context.Background(), line)
		require.NoError(t, err)
		assert.True(t, quit, line)
	}
}

func TestSession_HelpListsPrimaryNamesOnly(t *testing.T) {
	s, _, out := newTestSession(t, "")
	exec(t, s, "/help")

	text := out.String()
	assert.Contains(t, text, "/panels [1-4]")
	assert.Equal(t, 1, strings.Count(text, "/quit"))
}

// =============================================================================
// APP TESTS
// =============================================================================

func TestApp_ViewStateSurvivesReopen(t *testing.T) {
	cfg, path := newTestConfig(t, "", echoProvider)
	app, err := Open(context.Background(), cfg, path, OpenOptions{})
	require.NoError(t, err)
	app.Store.SetPanelCount(3)
	app.Store.SetModel(conversation.PanelID(2), "openai/gpt-4o")
	app.Store.SetSelected(conversation.PanelID(3))
	require.NoError(t, app.Close())

	reopened, err := Open(context.Background(), cfg, path, OpenOptions{Ephemeral: true})
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 3, reopened.Store.PanelCount())
	assert.Equal(t, conversation.PanelID(3), reopened.Store.Selected())
	p, _ := reopened.Store.Panel(conversation.PanelID(2))
	assert.Equal(t, "openai/gpt-4o", p.ModelID)
}

func TestApp_SaveKeyKeepsEnvOverridesOut(t *testing.T) {
	app := newTestApp(t, "", echoProvider)
	require.NoError(t, config.SaveTOML(config.Default(), app.ConfigPath))

	app.Config.Cloud.BaseURL = "http://env-override.invalid"
	require.NoError(t, app.SaveKey("sk-or-saved"))

	fileCfg := config.Default()
	require.NoError(t, config.LoadTOML(fileCfg, app.ConfigPath))
	assert.Equal(t, "sk-or-saved", fileCfg.Cloud.APIKey)
	assert.Equal(t, config.Default().Cloud.BaseURL, fileCfg.Cloud.BaseURL)
}

func TestApp_ReloadKeepsSessionKeyWhenEnvKeySet(t *testing.T) {
	app := newTestApp(t, "", echoProvider)
	t.Setenv("MULTICHAT_API_KEY", "sk-or-from-env")
	require.NoError(t, app.SaveKey("sk-or-typed-in"))

	reloaded := config.Default()
	reloaded.Cloud.APIKey = "sk-or-from-env"
	reloaded.Panels.DefaultModel = "openai/gpt-4o"
	app.reload(reloaded)

	assert.Equal(t, "sk-or-typed-in", app.Gate.APIKey())
	assert.Equal(t, "openai/gpt-4o", app.Store.DefaultModel())
}

func TestApp_ReloadAppliesFileKeyWithoutEnvKey(t *testing.T) {
	app := newTestApp(t, "", echoProvider)

	reloaded := config.Default()
	reloaded.Cloud.APIKey = "sk-or-edited-file"
	app.reload(reloaded)

	assert.Equal(t, "sk-or-edited-file", app.Gate.APIKey())
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestRunAsk_JSON(t *testing.T) {
	app := newTestApp(t, "sk-or-test", echoProvider)
	var out bytes.Buffer

	opts := &askOptions{models: []string{"openai/gpt-4o", "x-ai/grok-4"}, target: "all"}
	require.NoError(t, runAsk(context.Background(), app, opts, "compare", &out, true))

	var resp struct {
		Success bool        `json:"success"`
		Data    []askResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "reply from openai/gpt-4o", resp.Data[0].Reply)
	assert.Equal(t, "reply from x-ai/grok-4", resp.Data[1].Reply)
	assert.Equal(t, "delivered", strings.ToLower(resp.Data[0].Outcome))
}

func TestRunAsk_AllFailedReturnsError(t *testing.T) {
	app := newTestApp(t, "sk-or-test", echoProvider)
	opts := &askOptions{models: []string{"bad/model"}, target: "all"}

	err := runAsk(context.Background(), app, opts, "x", io.Discard, false)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, cloud.StatusCode(err))
}

func TestRunAsk_EmptyMessage(t *testing.T) {
	app := newTestApp(t, "sk-or-test", echoProvider)
	err := runAsk(context.Background(), app, &askOptions{target: "all"}, "   ", io.Discard, false)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunAsk_MissingKey(t *testing.T) {
	app := newTestApp(t, "", echoProvider)
	err := runAsk(context.Background(), app, &askOptions{target: "all"}, "hi", io.Discard, false)
	assert.ErrorIs(t, err, credential.ErrMissingCredential)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

// =============================================================================
// COMMAND TREE TESTS
// =============================================================================

func TestConfigCmd_SetThenGet(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runRoot(t, "--config", path, "config", "set", "panels.count", "3")
	require.NoError(t, err)

	got, err := runRoot(t, "--config", path, "config", "get", "panels.count")
	require.NoError(t, err)
	assert.Equal(t, "3", strings.TrimSpace(got))
}

func TestConfigCmd_SetRejectsInvalid(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runRoot(t, "--config", path, "config", "set", "panels.count", "9")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "invalid values are not written")
}

func TestConfigCmd_GetMasksKey(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()
	cfg.Cloud.APIKey = "sk-or-secret-value-9876"
	require.NoError(t, config.SaveTOML(cfg, path))

	got, err := runRoot(t, "--config", path, "config", "get", "cloud.api_key")
	require.NoError(t, err)
	assert.NotContains(t, got, "secret-value")
}

func TestConfigCmd_ResetRequiresConfirmation(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()
	cfg.Panels.Count = 4
	require.NoError(t, config.SaveTOML(cfg, path))

	got, err := runRoot(t, "--config", path, "config", "reset")
	require.NoError(t, err)
	assert.Contains(t, got, "Cancelled.")

	_, err = runRoot(t, "--config", path, "config", "reset", "--yes")
	require.NoError(t, err)
	reloaded := config.Default()
	require.NoError(t, config.LoadTOML(reloaded, path))
	assert.Equal(t, 1, reloaded.Panels.Count)
}

func TestPromptsCmd_AddListDelete(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runRoot(t, "--config", path, "prompts", "add", "--title", "Translator", "--content", "Translate to French.", "--tag", "lang")
	require.NoError(t, err)

	got, err := runRoot(t, "--config", path, "prompts", "list")
	require.NoError(t, err)
	assert.Contains(t, got, "Translator")

	_, err = runRoot(t, "--config", path, "prompts", "delete", "translator", "--yes")
	require.NoError(t, err)

	_, err = runRoot(t, "--config", path, "prompts", "show", "translator")
	assert.ErrorIs(t, err, storage.ErrPromptNotFound)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestKeyCmd_StatusJSON(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	got, err := runRoot(t, "--config", path, "--json", "key", "status")
	require.NoError(t, err)

	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(got), &resp))
	assert.Equal(t, false, resp.Data["configured"])
}

func TestDoctor_OfflineJSON(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	got, err := runRoot(t, "--config", path, "--json", "doctor", "--offline")
	require.NoError(t, err, "a missing key is a warning, not a failure")

	var resp struct {
		Data struct {
			Checks []struct {
				Name   string `json:"name"`
				Status string `json:"status"`
			} `json:"checks"`
			Summary doctorSummary `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(got), &resp))
	assert.True(t, resp.Data.Summary.Healthy)

	statuses := map[string]string{}
	for _, c := range resp.Data.Checks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, "pass", statuses["config"])
	assert.Equal(t, "pass", statuses["storage"])
	assert.Equal(t, "warn", statuses["api_key"])
	assert.NotContains(t, statuses, "api_key_valid")
}

func TestRoot_PanelsFlagValidated(t *testing.T) {
	isolateHome(t)
	_, err := runRoot(t, "--panels", "7", "config", "show")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestParsePanelRef(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1", "panel-1", false},
		{"panel-4", "panel-4", false},
		{" 2 ", "panel-2", false},
		{"0", "", true},
		{"5", "", true},
		{"panel-x", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := parsePanelRef(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSuggestCommand(t *testing.T) {
	names := []string{"help", "panels", "model", "models", "quit", "prompt"}
	assert.Equal(t, "help", SuggestCommand("hepl", names))
	assert.Equal(t, "panels", SuggestCommand("panles", names))
	assert.Equal(t, "", SuggestCommand("help", names))
	assert.Equal(t, "", SuggestCommand("x", names))
	assert.Equal(t, "", SuggestCommand("screenshotting", names))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("x", "y", "bad"), ExitUsageError},
		{"tty", &NotTerminalError{Operation: "x"}, ExitUsageError},
		{"missing key", fmt.Errorf("send: %w", credential.ErrMissingCredential), ExitAuthError},
		{"not found", storage.ErrPromptNotFound, ExitNotFoundError},
		{"deadline", context.DeadlineExceeded, ExitTimeoutError},
		{"explicit", &CommandError{Command: "c", Action: "a", Reason: "r", exit: ExitConfigError}, ExitConfigError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayErrorJSON(&buf, NewValidationError("--panels", "9", "must be between 1 and 4"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Contains(t, resp["error"], "--panels")
}
