// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/koharyou1215/multi-chat/internal/model"
	"github.com/koharyou1215/multi-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete multichat configuration.
type Config struct {
	Cloud     CloudConfig     `toml:"cloud" json:"cloud"`
	Panels    PanelsConfig    `toml:"panels" json:"panels"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
	UI        UIConfig        `toml:"ui" json:"ui"`
}

// Backend names accepted in cloud.backend.
const (
	BackendOpenRouter = "openrouter"
	BackendOpenAISDK  = "openai-sdk"
)

// CloudConfig contains provider connection settings.
type CloudConfig struct {
	// APIKey is the single bearer credential used for every request.
	APIKey string `toml:"api_key" json:"api_key"`

	BaseURL string `toml:"base_url" json:"base_url"`

	// Backend selects the wire client: "openrouter" or "openai-sdk".
	Backend string `toml:"backend" json:"backend"`

	// SiteURL and SiteName are sent as HTTP-Referer and X-Title.
	SiteURL  string `toml:"site_url" json:"site_url"`
	SiteName string `toml:"site_name" json:"site_name"`

	// TimeoutSecs bounds a single HTTP exchange. 0 means no timeout.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// RequestsPerSecond paces outbound requests. 0 disables pacing.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
}

// PanelsConfig controls the panel grid at start-up.
type PanelsConfig struct {
	Count        int    `toml:"count" json:"count"`
	DefaultModel string `toml:"default_model" json:"default_model"`
}

// StorageConfig locates local persistent state.
type StorageConfig struct {
	DatabasePath  string `toml:"database_path" json:"database_path"`
	TranscriptDir string `toml:"transcript_dir" json:"transcript_dir"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	// File receives log output. Empty means the default log file; "-" means stderr.
	File string `toml:"file" json:"file"`
}

// TelemetryConfig enables OTLP export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `toml:"endpoint" json:"endpoint"`
	Headers     string `toml:"headers" json:"headers"`
	ServiceName string `toml:"service_name" json:"service_name"`
}

// Enabled reports whether an OTLP endpoint is configured.
func (t TelemetryConfig) Enabled() bool {
	return t.Endpoint != ""
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" json:"theme"`
	// WordWrap is the markdown wrap width. 0 follows the panel width.
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
}

// Limits on the panel grid.
const (
	MinPanels = 1
	MaxPanels = 4
)

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with default values. Paths are left empty and
// resolved by fillDefaults.
func Default() *Config {
	return &Config{
		Cloud: CloudConfig{
			BaseURL:  "https://openrouter.ai/api/v1",
			Backend:  BackendOpenRouter,
			SiteURL:  "http://localhost:3000",
			SiteName: "MultiChat AI",
		},
		Panels: PanelsConfig{
			Count:        1,
			DefaultModel: model.DefaultModelID,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "multichat",
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the multichat state directory. MULTICHAT_HOME overrides
// the default ~/.multichat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("MULTICHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".multichat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// tighten drops group and other access from a file that may hold the API
// key. It returns the mode the file had before.
func tighten(path string) (fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	was := info.Mode().Perm()
	if was&0o077 == 0 {
		return was, nil
	}
	return was, os.Chmod(path, was&^0o077)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads .env from the working directory, then the config file if it
// exists, then environment overrides. A missing file yields defaults.
func Load() (*Config, error) {
	loadDotEnv(".env")

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadOrDefault(path)
}

// LoadOrDefault is LoadFromPath, except that a missing file yields defaults
// with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with
// environment overrides and validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", path, err)
	}
}

// LoadTOML decodes a TOML file into cfg. Keys the file does not set keep
// their current values. Readable-by-others files are tightened first.
func LoadTOML(cfg *Config, path string) error {
	if was, err := tighten(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s is mode %o and could not be restricted: %v\n", path, was, err)
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if extra := md.Undecoded(); len(extra) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %s: ignoring unknown keys %v\n", path, extra)
	}
	return nil
}

// fillDefaults fills in missing values and resolves storage paths.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	// Cloud
	if cfg.Cloud.BaseURL == "" {
		cfg.Cloud.BaseURL = defaults.Cloud.BaseURL
	}
	cfg.Cloud.BaseURL = strings.TrimRight(cfg.Cloud.BaseURL, "/")
	if cfg.Cloud.Backend == "" {
		cfg.Cloud.Backend = defaults.Cloud.Backend
	}
	if cfg.Cloud.SiteName == "" {
		cfg.Cloud.SiteName = defaults.Cloud.SiteName
	}

	// Panels
	if cfg.Panels.Count == 0 {
		cfg.Panels.Count = defaults.Panels.Count
	}
	if cfg.Panels.DefaultModel == "" {
		cfg.Panels.DefaultModel = defaults.Panels.DefaultModel
	}

	// Storage
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(dir, "multichat.db")
	}
	if cfg.Storage.TranscriptDir == "" {
		cfg.Storage.TranscriptDir = filepath.Join(dir, "transcripts")
	}
	cfg.Storage.DatabasePath = expandHome(cfg.Storage.DatabasePath)
	cfg.Storage.TranscriptDir = expandHome(cfg.Storage.TranscriptDir)

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(dir, "multichat.log")
	}
	if cfg.Logging.File != "-" {
		cfg.Logging.File = expandHome(cfg.Logging.File)
	}

	// Telemetry
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = defaults.Telemetry.ServiceName
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration atomically with 0600 permissions, since
// the file holds the API key.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# multichat configuration file\n")
	buf.WriteString("# Generated by multichat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := util.WritePrivateFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// FieldError is one rejected setting, addressed by its dot-notation key.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// FieldErrors collects every rejected setting of one Validate call.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	var b strings.Builder
	for i, fe := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(fe.Error())
	}
	return b.String()
}

// Validate checks every setting and reports all problems at once as
// FieldErrors.
func (c *Config) Validate() error {
	var errs FieldErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Cloud
	if u, err := url.Parse(c.Cloud.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("cloud.base_url", "invalid URL '%s', must be an absolute http(s) URL", c.Cloud.BaseURL)
	}
	switch strings.ToLower(c.Cloud.Backend) {
	case BackendOpenRouter, BackendOpenAISDK:
	default:
		add("cloud.backend", "invalid backend '%s', must be one of: %s, %s", c.Cloud.Backend, BackendOpenRouter, BackendOpenAISDK)
	}
	if c.Cloud.TimeoutSecs < 0 {
		add("cloud.timeout_secs", "must not be negative")
	}
	if c.Cloud.RequestsPerSecond < 0 {
		add("cloud.requests_per_second", "must not be negative")
	}

	// Panels
	if c.Panels.Count < MinPanels || c.Panels.Count > MaxPanels {
		add("panels.count", "must be between %d and %d, got %d", MinPanels, MaxPanels, c.Panels.Count)
	}
	if strings.TrimSpace(c.Panels.DefaultModel) == "" {
		add("panels.default_model", "must not be empty")
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("logging.format", "invalid format '%s', must be one of: text, json", c.Logging.Format)
	}

	// Telemetry
	if c.Telemetry.Endpoint != "" {
		if u, err := url.Parse(c.Telemetry.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			add("telemetry.endpoint", "invalid URL '%s'", c.Telemetry.Endpoint)
		}
	}

	// UI
	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// EnvAPIKey returns the API key set in the environment, or "".
// MULTICHAT_API_KEY wins over the provider-generic name.
func EnvAPIKey() string {
	if key := os.Getenv("MULTICHAT_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("OPENROUTER_API_KEY")
}

// ApplyEnvOverrides applies environment variable overrides:
//   - MULTICHAT_API_KEY (or OPENROUTER_API_KEY): cloud.api_key
//   - MULTICHAT_BASE_URL: cloud.base_url
//   - MULTICHAT_BACKEND: cloud.backend
//   - MULTICHAT_PANELS: panels.count
//   - MULTICHAT_LOG_LEVEL: logging.level
//   - OTEL_EXPORTER_OTLP_ENDPOINT: telemetry.endpoint
func (c *Config) ApplyEnvOverrides() {
	if key := EnvAPIKey(); key != "" {
		c.Cloud.APIKey = key
	}
	if u := os.Getenv("MULTICHAT_BASE_URL"); u != "" {
		c.Cloud.BaseURL = u
	}
	if backend := os.Getenv("MULTICHAT_BACKEND"); backend != "" {
		c.Cloud.Backend = backend
	}
	if panels := os.Getenv("MULTICHAT_PANELS"); panels != "" {
		if n, err := strconv.Atoi(panels); err == nil {
			c.Panels.Count = n
		}
	}
	if level := os.Getenv("MULTICHAT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Telemetry.Endpoint = endpoint
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get returns the value at a dot-notation key such as "panels.count".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set stores value at a dot-notation key. String values are parsed into the
// field's type, so "3" works for panels.count.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if err := assign(field, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field := fieldByTag(v, part)
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds a struct field by its toml tag name.
func fieldByTag(v reflect.Value, name string) reflect.Value {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

// assign stores value into field. Strings are parsed according to the
// field's kind; other values must be assignable or convertible.
func assign(field reflect.Value, value any) error {
	if text, ok := value.(string); ok && field.Kind() != reflect.String {
		var err error
		switch field.Kind() {
		case reflect.Int, reflect.Int64:
			var n int64
			if n, err = strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
				field.SetInt(n)
			}
		case reflect.Float64:
			var f float64
			if f, err = strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
				field.SetFloat(f)
			}
		case reflect.Bool:
			var v bool
			if v, err = strconv.ParseBool(strings.TrimSpace(text)); err == nil {
				field.SetBool(v)
			}
		default:
			err = fmt.Errorf("unsupported kind %s", field.Kind())
		}
		if err != nil {
			return fmt.Errorf("%q is not a valid %s", text, field.Type())
		}
		return nil
	}

	v := reflect.ValueOf(value)
	switch {
	case !v.IsValid():
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	case v.Type().AssignableTo(field.Type()):
		field.Set(v)
	case v.Type().ConvertibleTo(field.Type()):
		field.Set(v.Convert(field.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, field.Type())
	}
	return nil
}

// Keys returns every settable key in dot notation, in struct order.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := strings.Split(section.Tag.Get("toml"), ",")[0]
		for j := 0; j < section.Type.NumField(); j++ {
			name := strings.Split(section.Type.Field(j).Tag.Get("toml"), ",")[0]
			keys = append(keys, prefix+"."+name)
		}
	}
	return keys
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a copy of the configuration. All fields are values.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// String renders the config as JSON with secrets masked.
func (c *Config) String() string {
	cp := c.Clone()
	for _, secret := range []*string{&cp.Cloud.APIKey, &cp.Telemetry.Headers} {
		if *secret != "" {
			*secret = "[REDACTED]"
		}
	}
	data, _ := json.MarshalIndent(cp, "", "  ")
	return string(data)
}
