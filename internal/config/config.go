// Package config loads host configuration from TOML files with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the host configuration.
type Config struct {
	// Engine holds sandboxed-module settings.
	Engine EngineConfig `toml:"engine"`

	// Session holds protocol-session settings.
	Session SessionConfig `toml:"session"`

	// Logging holds log output settings.
	Logging LoggingConfig `toml:"logging"`
}

// EngineConfig configures the sandboxed module boundary.
type EngineConfig struct {
	// Path locates the precompiled module image on disk.
	Path string `toml:"path"`

	// ChannelCapacity is the shared channel's fixed buffer size in bytes.
	ChannelCapacity int `toml:"channel_capacity"`

	// WatchImage enables restart signaling when the image changes on disk.
	WatchImage bool `toml:"watch_image"`
}

// SessionConfig configures the protocol client.
type SessionConfig struct {
	// RequestTimeout bounds individual requests issued by the host binary.
	RequestTimeout time.Duration `toml:"request_timeout"`

	// AutoClose shuts the session down when its last subscriber detaches.
	AutoClose bool `toml:"auto_close"`

	// CompletionMaxResults caps the completion options handed to the editor.
	CompletionMaxResults int `toml:"completion_max_results"`

	// LanguageID is the language identifier reported on document open.
	LanguageID string `toml:"language_id"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			ChannelCapacity: 64 * 1024,
			WatchImage:      false,
		},
		Session: SessionConfig{
			RequestTimeout:       10 * time.Second,
			AutoClose:            false,
			CompletionMaxResults: 100,
			LanguageID:           "plaintext",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layered over the defaults and under
// environment overrides. A missing file is not an error; the defaults
// apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Engine.ChannelCapacity <= 0 {
		return cfg, fmt.Errorf("engine.channel_capacity must be positive, got %d", cfg.Engine.ChannelCapacity)
	}
	return cfg, nil
}

// applyEnv overlays LSPHOST_* environment variables.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("LSPHOST_ENGINE_PATH"); ok {
		cfg.Engine.Path = v
	}
	if v, ok := os.LookupEnv("LSPHOST_CHANNEL_CAPACITY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.ChannelCapacity = n
		}
	}
	if v, ok := os.LookupEnv("LSPHOST_WATCH_IMAGE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Engine.WatchImage = b
		}
	}
	if v, ok := os.LookupEnv("LSPHOST_REQUEST_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.RequestTimeout = d
		}
	}
	if v, ok := os.LookupEnv("LSPHOST_AUTO_CLOSE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.AutoClose = b
		}
	}
	if v, ok := os.LookupEnv("LSPHOST_LANGUAGE_ID"); ok {
		cfg.Session.LanguageID = v
	}
	if v, ok := os.LookupEnv("LSPHOST_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
}
