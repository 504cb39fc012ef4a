package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/ambridge/internal/events"
)

// ConfigTable is the SQLite implementation of ConfigRepository.
type ConfigTable struct {
	s *Store
}

var _ ConfigRepository = (*ConfigTable)(nil)

func normalizeValue(v json.RawMessage) (string, error) {
	if len(v) == 0 {
		return "null", nil
	}
	if !json.Valid(v) {
		return "", fmt.Errorf("config value is not valid JSON")
	}
	return string(v), nil
}

// Create inserts e and fails with ErrDuplicateKey if the key already exists.
func (c *ConfigTable) Create(ctx context.Context, e ConfigEntry) error {
	value, err := normalizeValue(e.Value)
	if err != nil {
		return err
	}
	_, err = c.s.db.ExecContext(ctx, `INSERT INTO config (key, value) VALUES (?, ?)`, e.Key, value)
	if isUniqueViolation(err) {
		return fmt.Errorf("config %q: %w", e.Key, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("inserting config %q: %w", e.Key, err)
	}
	c.s.publish(TableConfig, events.OpPut, e.Key)
	return nil
}

// Get returns the entry for key. A missing key is reported with ok == false.
func (c *ConfigTable) Get(ctx context.Context, key string) (ConfigEntry, bool, error) {
	var value string
	err := c.s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ConfigEntry{}, false, nil
	}
	if err != nil {
		return ConfigEntry{}, false, fmt.Errorf("reading config %q: %w", key, err)
	}
	return ConfigEntry{Key: key, Value: json.RawMessage(value)}, true, nil
}

// GetJSON decodes the value stored under key into dst.
func (c *ConfigTable) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	e, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(e.Value, dst); err != nil {
		return false, fmt.Errorf("decoding config %q: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and upserts it under key.
func (c *ConfigTable) PutJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding config %q: %w", key, err)
	}
	return c.Put(ctx, ConfigEntry{Key: key, Value: raw})
}

func (c *ConfigTable) List(ctx context.Context) ([]ConfigEntry, error) {
	rows, err := c.s.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing config: %w", err)
	}
	return scanConfig(rows)
}

// Put inserts or replaces e.
func (c *ConfigTable) Put(ctx context.Context, e ConfigEntry) error {
	value, err := normalizeValue(e.Value)
	if err != nil {
		return err
	}
	if _, err := c.s.db.ExecContext(ctx, upsertConfigSQL, e.Key, value); err != nil {
		return fmt.Errorf("writing config %q: %w", e.Key, err)
	}
	c.s.publish(TableConfig, events.OpPut, e.Key)
	return nil
}

const upsertConfigSQL = `
	INSERT INTO config (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// Patch merges fields into the JSON object stored under key (RFC 7396
// semantics). It reports false without writing when the key does not exist.
// An empty patch leaves the value untouched.
func (c *ConfigTable) Patch(ctx context.Context, key string, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		_, ok, err := c.Get(ctx, key)
		return ok, err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return false, fmt.Errorf("encoding patch for %q: %w", key, err)
	}
	res, err := c.s.db.ExecContext(ctx,
		`UPDATE config SET value = json_patch(value, ?) WHERE key = ?`, string(patch), key)
	if err != nil {
		return false, fmt.Errorf("patching config %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	c.s.publish(TableConfig, events.OpPut, key)
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *ConfigTable) Delete(ctx context.Context, key string) error {
	res, err := c.s.db.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting config %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		c.s.publish(TableConfig, events.OpDelete, key)
	}
	return nil
}

func (c *ConfigTable) PutMany(ctx context.Context, entries []ConfigEntry) error {
	if len(entries) == 0 {
		return nil
	}
	keys := make([]string, 0, len(entries))
	err := c.s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			value, err := normalizeValue(e.Value)
			if err != nil {
				return fmt.Errorf("config %q: %w", e.Key, err)
			}
			if _, err := tx.ExecContext(ctx, upsertConfigSQL, e.Key, value); err != nil {
				return fmt.Errorf("writing config %q: %w", e.Key, err)
			}
			keys = append(keys, e.Key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.s.publish(TableConfig, events.OpPut, keys...)
	return nil
}

func (c *ConfigTable) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	err := c.s.withTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, k); err != nil {
				return fmt.Errorf("deleting config %q: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.s.publish(TableConfig, events.OpDelete, keys...)
	return nil
}

func (c *ConfigTable) Clear(ctx context.Context) error {
	if _, err := c.s.db.ExecContext(ctx, `DELETE FROM config`); err != nil {
		return fmt.Errorf("clearing config: %w", err)
	}
	c.s.publish(TableConfig, events.OpClear)
	return nil
}

func (c *ConfigTable) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM config`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting config: %w", err)
	}
	return n, nil
}

// Query returns entries whose JSON value has the top-level field equal to
// value. Only scalar values (string, number, bool) compare meaningfully.
func (c *ConfigTable) Query(ctx context.Context, field string, value any) ([]ConfigEntry, error) {
	if field == "" || strings.ContainsAny(field, `."[]$`) {
		return nil, fmt.Errorf("invalid config field %q", field)
	}
	if b, ok := value.(bool); ok {
		value = boolToInt(b)
	}
	rows, err := c.s.db.QueryContext(ctx,
		`SELECT key, value FROM config WHERE json_valid(value) AND json_extract(value, ?) = ? ORDER BY key`,
		"$."+field, value)
	if err != nil {
		return nil, fmt.Errorf("querying config by %q: %w", field, err)
	}
	return scanConfig(rows)
}

// Where scans the whole table and keeps the entries for which keep returns true.
func (c *ConfigTable) Where(ctx context.Context, keep func(ConfigEntry) bool) ([]ConfigEntry, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []ConfigEntry
	for _, e := range all {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func scanConfig(rows *sql.Rows) ([]ConfigEntry, error) {
	defer rows.Close()

	var out []ConfigEntry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out = append(out, ConfigEntry{Key: key, Value: json.RawMessage(value)})
	}
	return out, rows.Err()
}
