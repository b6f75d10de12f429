// Package config loads EmojiArt settings from a YAML or TOML file with
// EMOJIART_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"EmojiArt/internal/state"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EMOJIART_"

// Storage backends.
const (
	BackendSQLite      = "sqlite"
	BackendMemory      = "memory"
	BackendPreferences = "preferences"
)

var (
	ErrUnknownFormat = errors.New("config: unknown file format")
	ErrInvalid       = errors.New("config: invalid")
)

// Duration is a time.Duration written as "500ms" or "30s" in files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Store struct {
	Name    string `yaml:"name" toml:"name"`
	Backend string `yaml:"backend" toml:"backend"`
	// Path is the SQLite database file. Empty means the user config dir.
	Path string `yaml:"path" toml:"path"`
}

type Editor struct {
	AutosaveDelay Duration `yaml:"autosave_delay" toml:"autosave_delay"`
	EmojiSize     int      `yaml:"emoji_size" toml:"emoji_size"`
	KeepSelection bool     `yaml:"keep_selection" toml:"keep_selection"`
}

type Fetch struct {
	Timeout   Duration `yaml:"timeout" toml:"timeout"`
	MaxBytes  int64    `yaml:"max_bytes" toml:"max_bytes"`
	UserAgent string   `yaml:"user_agent" toml:"user_agent"`
}

type Share struct {
	Port      int    `yaml:"port" toml:"port"`
	Advertise bool   `yaml:"advertise" toml:"advertise"`
	Instance  string `yaml:"instance" toml:"instance"`
}

type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Config is the full application configuration.
type Config struct {
	Store    Store           `yaml:"store" toml:"store"`
	Editor   Editor          `yaml:"editor" toml:"editor"`
	Fetch    Fetch           `yaml:"fetch" toml:"fetch"`
	Share    Share           `yaml:"share" toml:"share"`
	Log      Log             `yaml:"log" toml:"log"`
	Palettes []state.Palette `yaml:"palettes" toml:"palettes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: Store{Name: "Emoji Art", Backend: BackendSQLite},
		Editor: Editor{
			AutosaveDelay: Duration(500 * time.Millisecond),
			EmojiSize:     40,
		},
		Fetch: Fetch{
			Timeout:   Duration(30 * time.Second),
			MaxBytes:  10 << 20,
			UserAgent: "EmojiArt/1.0",
		},
		Share: Share{Port: 8888, Advertise: true},
		Log:   Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := c.Decode(data, filepath.Ext(path)); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode merges a file body into c. ext picks the format.
func (c *Config) Decode(data []byte, ext string) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".toml":
		return toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// ApplyEnv applies EMOJIART_* overrides found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STORE_NAME":       &c.Store.Name,
		"STORE_BACKEND":    &c.Store.Backend,
		"STORE_PATH":       &c.Store.Path,
		"FETCH_USER_AGENT": &c.Fetch.UserAgent,
		"SHARE_INSTANCE":   &c.Share.Instance,
		"LOG_LEVEL":        &c.Log.Level,
		"LOG_FORMAT":       &c.Log.Format,
	}
	for k, p := range strs {
		if v, ok := lookup(EnvPrefix + k); ok {
			*p = v
		}
	}

	durs := map[string]*Duration{
		"AUTOSAVE_DELAY": &c.Editor.AutosaveDelay,
		"FETCH_TIMEOUT":  &c.Fetch.Timeout,
	}
	for k, p := range durs {
		if v, ok := lookup(EnvPrefix + k); ok {
			if err := p.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, k, err)
			}
		}
	}

	ints := map[string]*int{
		"EMOJI_SIZE": &c.Editor.EmojiSize,
		"SHARE_PORT": &c.Share.Port,
	}
	for k, p := range ints {
		if v, ok := lookup(EnvPrefix + k); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, k, err)
			}
			*p = n
		}
	}

	if v, ok := lookup(EnvPrefix + "FETCH_MAX_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sFETCH_MAX_BYTES: %w", EnvPrefix, err)
		}
		c.Fetch.MaxBytes = n
	}

	bools := map[string]*bool{
		"KEEP_SELECTION":  &c.Editor.KeepSelection,
		"SHARE_ADVERTISE": &c.Share.Advertise,
	}
	for k, p := range bools {
		if v, ok := lookup(EnvPrefix + k); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, k, err)
			}
			*p = b
		}
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Store.Name) == "":
		return fmt.Errorf("%w: store name is empty", ErrInvalid)
	case c.Store.Backend != BackendSQLite && c.Store.Backend != BackendMemory && c.Store.Backend != BackendPreferences:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalid, c.Store.Backend)
	case c.Editor.AutosaveDelay <= 0:
		return fmt.Errorf("%w: autosave delay must be positive", ErrInvalid)
	case c.Editor.EmojiSize < 1:
		return fmt.Errorf("%w: emoji size must be at least 1", ErrInvalid)
	case c.Fetch.Timeout <= 0:
		return fmt.Errorf("%w: fetch timeout must be positive", ErrInvalid)
	case c.Fetch.MaxBytes <= 0:
		return fmt.Errorf("%w: fetch max bytes must be positive", ErrInvalid)
	case c.Share.Port < 0 || c.Share.Port > 65535:
		return fmt.Errorf("%w: share port %d out of range", ErrInvalid, c.Share.Port)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// DatabasePath returns Store.Path or the default file under the user's
// config directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return filepath.Join(dir, "EmojiArt", "emojiart.db"), nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, s)
	}
	return l, nil
}

// NewLogger builds the process logger. level is shared so a reload can
// change it in place.
func (c *Config) NewLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	if l, err := ParseLevel(c.Log.Level); err == nil {
		level.Set(l)
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
