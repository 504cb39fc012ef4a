package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// ConfigBackend is where persisted settings live. The JSON file is the only
// implementation; tests point it at a temp dir.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

// xdgDir resolves an XDG base directory, falling back to home/rel and then
// to the working directory.
func xdgDir(env, rel string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, rel)
}

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "ambridge")
}

// FilePath returns the location of the JSON config file.
func FilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "ambridge", "config.json")
}

// fileBackend stores config as a flat JSON object. Values are kept raw so
// keys this version does not know survive a rewrite untouched.
type fileBackend struct {
	path string
	data map[string]json.RawMessage
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]json.RawMessage)}
	b.load()
	return b
}

func (b *fileBackend) load() {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		slog.Warn("config file unreadable, using defaults", "path", b.path, "error", err)
		return
	}
	if err := json.Unmarshal(raw, &b.data); err != nil {
		slog.Warn("config file is not a JSON object, using defaults", "path", b.path, "error", err)
		b.data = make(map[string]json.RawMessage)
	}
}

// save replaces the file atomically.
func (b *fileBackend) save() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp.Name(), b.path)
}

// GetString returns string values as-is and any other JSON value as its
// literal text.
func (b *fileBackend) GetString(key string) (string, bool, error) {
	raw, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true, nil
	}
	return s, true, nil
}

// GetInt accepts both JSON numbers and numeric strings.
func (b *fileBackend) GetInt(key string) (int, bool, error) {
	raw, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, true, fmt.Errorf("%s: %s is not an integer", key, raw)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

func (b *fileBackend) set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.data[key] = raw
	return b.save()
}

func (b *fileBackend) SetString(key, val string) error { return b.set(key, val) }

func (b *fileBackend) SetInt(key string, val int) error { return b.set(key, val) }

func (b *fileBackend) Delete(key string) error {
	if _, ok := b.data[key]; !ok {
		return nil
	}
	delete(b.data, key)
	return b.save()
}
