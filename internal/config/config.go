// Package config loads the sessiondb YAML configuration and maps it onto
// sessionstore.Options.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/sessiondb/internal/dto"
	"github.com/aretw0/sessiondb/pkg/persistence/middleware"
	"github.com/aretw0/sessiondb/pkg/sessionstore"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultAddr is the admin API listen address.
const DefaultAddr = "127.0.0.1:8080"

// Default returns the configuration used when no file is given.
func Default() dto.FileConfig {
	return dto.FileConfig{
		Log:    dto.LogConfig{Level: "info"},
		Server: dto.ServerConfig{Addr: DefaultAddr},
	}
}

// Load reads the YAML file at path over the defaults.
// An empty path returns Default().
func Load(path string) (dto.FileConfig, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return dto.FileConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults.
func Parse(data []byte) (dto.FileConfig, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return dto.FileConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	if err := Decode(raw, &cfg); err != nil {
		return dto.FileConfig{}, err
	}
	return cfg, nil
}

// Decode maps a generic document onto out. Unknown keys are rejected.
func Decode(raw map[string]any, out *dto.FileConfig) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			durationHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook decodes strings ("36h", "14d", "off") and plain numbers
// (milliseconds) into time.Duration.
func durationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return ParseDuration(v)
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	default:
		return data, nil
	}
}

// ParseDuration extends time.ParseDuration with a leading day component
// ("14d", "1d12h") and the words "off" and "disabled", which map to
// sessionstore.DisableAutoCompaction.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "off", "disabled":
		return sessionstore.DisableAutoCompaction, nil
	case "":
		return 0, nil
	}

	var days time.Duration
	if i := strings.IndexByte(s, 'd'); i > 0 {
		n, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		days = time.Duration(n * float64(24*time.Hour))
		s = s[i+1:]
		if s == "" {
			return days, nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	return days + d, nil
}

// StoreOptions builds store options from the store section, wiring the
// payload hooks it asks for.
func StoreOptions(cfg dto.StoreConfig, logger *slog.Logger) (sessionstore.Options, error) {
	opts := sessionstore.Options{
		DefaultExpiry:         cfg.DefaultExpiry,
		InMemoryOnly:          cfg.InMemoryOnly,
		Filename:              cfg.Filename,
		RedisURL:              cfg.RedisURL,
		RedisPrefix:           cfg.RedisPrefix,
		AutoCompactInterval:   cfg.AutoCompactInterval,
		CorruptAlertThreshold: cfg.CorruptAlertThreshold,
		Logger:                logger,
	}

	hooks, err := payloadHooks(cfg)
	if err != nil {
		return sessionstore.Options{}, err
	}
	if hooks != nil {
		opts.AfterSerialization = hooks.After
		opts.BeforeDeserialization = hooks.Before
	}
	return opts, nil
}

func payloadHooks(cfg dto.StoreConfig) (*middleware.Hooks, error) {
	var pairs []middleware.Hooks

	if cfg.Compression {
		h, err := middleware.NewCompressionHooks()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, h)
	}

	if cfg.Encryption.ActiveKey != "" {
		active, err := middleware.DecodeKey(cfg.Encryption.ActiveKey)
		if err != nil {
			return nil, fmt.Errorf("active key: %w", err)
		}
		var fallback [][]byte
		for i, k := range cfg.Encryption.FallbackKeys {
			key, err := middleware.DecodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("fallback key %d: %w", i, err)
			}
			fallback = append(fallback, key)
		}
		h, err := middleware.NewEncryptionHooks(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, h)
	} else if len(cfg.Encryption.FallbackKeys) > 0 {
		return nil, errors.New("fallback keys require an active key")
	}

	switch len(pairs) {
	case 0:
		return nil, nil
	case 1:
		return &pairs[0], nil
	default:
		h := middleware.Chain(pairs...)
		return &h, nil
	}
}
