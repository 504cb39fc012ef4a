package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	allowed []string // kString only; empty allows anything
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// LogLevels are the accepted values of log.level.
var LogLevels = []string{"debug", "info", "warn", "error"}

var specs = []keySpec{
	{
		key: "storage.data_dir", typ: kString, env: "AMBRIDGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.legacy_file", typ: kString, env: "AMBRIDGE_LEGACY_FILE",
		apply:   func(cfg *Config, v any) { cfg.Storage.LegacyFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.LegacyFile },
	},
	{
		key: "log.level", typ: kString, env: "AMBRIDGE_LOG_LEVEL", allowed: LogLevels,
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "secure.iterations", typ: kInt, env: "AMBRIDGE_HASH_ITERATIONS",
		apply:   func(cfg *Config, v any) { cfg.Secure.Iterations = v.(int) },
		extract: func(cfg Config) any { return cfg.Secure.Iterations },
	},
	{
		key: "secure.output_length", typ: kInt, env: "AMBRIDGE_HASH_OUTPUT_LENGTH",
		apply:   func(cfg *Config, v any) { cfg.Secure.OutputLength = v.(int) },
		extract: func(cfg Config) any { return cfg.Secure.OutputLength },
	},
}

func lookup(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts a raw string for s, rejecting values the key cannot hold.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
		}
		return i, nil
	default:
		if len(s.allowed) > 0 && !slices.Contains(s.allowed, strings.ToLower(raw)) {
			return nil, fmt.Errorf("invalid value %q for %s (allowed: %s)", raw, s.key, strings.Join(s.allowed, ", "))
		}
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("ignoring env var", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
