package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tables lists the user tables the inspection helpers accept, in display order.
var Tables = []string{TableConfig, TableAppState}

// TableInfo is a table name with its current row count.
type TableInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TableInfos returns every known table with its row count.
func (s *Store) TableInfos(ctx context.Context) ([]TableInfo, error) {
	out := make([]TableInfo, 0, len(Tables))
	for _, name := range Tables {
		n, err := s.TableCount(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, TableInfo{Name: name, Count: n})
	}
	return out, nil
}

// TableCount returns the row count of a known table.
func (s *Store) TableCount(ctx context.Context, name string) (int, error) {
	switch name {
	case TableConfig:
		return s.config.Count(ctx)
	case TableAppState:
		return s.appState.Count(ctx)
	}
	return 0, fmt.Errorf("%q: %w", name, ErrTableNotFound)
}

// TableRows returns every row of a known table as generic JSON objects.
func (s *Store) TableRows(ctx context.Context, name string) ([]map[string]any, error) {
	switch name {
	case TableConfig:
		entries, err := s.config.List(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			var v any
			if err := json.Unmarshal(e.Value, &v); err != nil {
				v = string(e.Value)
			}
			rows = append(rows, map[string]any{"key": e.Key, "value": v})
		}
		return rows, nil
	case TableAppState:
		states, err := s.appState.List(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(states))
		for _, a := range states {
			rows = append(rows, map[string]any{
				"appId":       a.AppID,
				"isFavorite":  a.IsFavorite,
				"isInstalled": a.IsInstalled,
			})
		}
		return rows, nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrTableNotFound)
}

// ClearTable deletes every row of a known table.
func (s *Store) ClearTable(ctx context.Context, name string) error {
	switch name {
	case TableConfig:
		return s.config.Clear(ctx)
	case TableAppState:
		return s.appState.Clear(ctx)
	}
	return fmt.Errorf("%q: %w", name, ErrTableNotFound)
}

// SampleAppStates is the fixture the database viewer seeds. It writes rows
// directly, so crm (favorite, not installed) and billing (no flags) are
// states the façade never produces; they exist to exercise the viewer.
var SampleAppStates = []AppState{
	{AppID: "inventory", IsFavorite: true, IsInstalled: true},
	{AppID: "analytics", IsInstalled: true},
	{AppID: "crm", IsFavorite: true},
	{AppID: "billing"},
	{AppID: "catalog", IsFavorite: true, IsInstalled: true},
}

// SeedSampleData upserts SampleAppStates.
func (s *Store) SeedSampleData(ctx context.Context) error {
	return s.appState.PutMany(ctx, SampleAppStates)
}
