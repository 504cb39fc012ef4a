package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kalambet/ambridge/internal/events"
)

// AppStateTable is the SQLite implementation of AppStateRepository. Flags are
// stored as 0/1 integers so the flag indexes serve equality reads.
type AppStateTable struct {
	s *Store
}

var _ AppStateRepository = (*AppStateTable)(nil)

const upsertAppStateSQL = `
	INSERT INTO app_state (app_id, is_favorite, is_installed) VALUES (?, ?, ?)
	ON CONFLICT(app_id) DO UPDATE SET
		is_favorite = excluded.is_favorite,
		is_installed = excluded.is_installed`

const selectAppStateSQL = `SELECT app_id, is_favorite, is_installed FROM app_state`

// Create inserts a and fails with ErrDuplicateKey if the app already has a row.
func (t *AppStateTable) Create(ctx context.Context, a AppState) error {
	_, err := t.s.db.ExecContext(ctx,
		`INSERT INTO app_state (app_id, is_favorite, is_installed) VALUES (?, ?, ?)`,
		a.AppID, boolToInt(a.IsFavorite), boolToInt(a.IsInstalled))
	if isUniqueViolation(err) {
		return fmt.Errorf("app state %q: %w", a.AppID, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("inserting app state %q: %w", a.AppID, err)
	}
	t.s.publish(TableAppState, events.OpPut, a.AppID)
	return nil
}

// Get returns the row for appID. A missing row is reported with ok == false.
func (t *AppStateTable) Get(ctx context.Context, appID string) (AppState, bool, error) {
	a, err := scanAppState(t.s.db.QueryRowContext(ctx, selectAppStateSQL+` WHERE app_id = ?`, appID))
	if errors.Is(err, sql.ErrNoRows) {
		return AppState{}, false, nil
	}
	if err != nil {
		return AppState{}, false, fmt.Errorf("reading app state %q: %w", appID, err)
	}
	return a, true, nil
}

func (t *AppStateTable) List(ctx context.Context) ([]AppState, error) {
	return t.list(ctx, selectAppStateSQL+` ORDER BY app_id`)
}

// Put inserts or replaces a with both flags.
func (t *AppStateTable) Put(ctx context.Context, a AppState) error {
	if _, err := t.s.db.ExecContext(ctx, upsertAppStateSQL,
		a.AppID, boolToInt(a.IsFavorite), boolToInt(a.IsInstalled)); err != nil {
		return fmt.Errorf("writing app state %q: %w", a.AppID, err)
	}
	t.s.publish(TableAppState, events.OpPut, a.AppID)
	return nil
}

// Patch updates only the flags set in p. It reports false when the row does
// not exist.
func (t *AppStateTable) Patch(ctx context.Context, appID string, p AppStatePatch) (bool, error) {
	var fav, inst any
	if p.IsFavorite != nil {
		fav = boolToInt(*p.IsFavorite)
	}
	if p.IsInstalled != nil {
		inst = boolToInt(*p.IsInstalled)
	}
	res, err := t.s.db.ExecContext(ctx, `
		UPDATE app_state SET
			is_favorite = COALESCE(?, is_favorite),
			is_installed = COALESCE(?, is_installed)
		WHERE app_id = ?`, fav, inst, appID)
	if err != nil {
		return false, fmt.Errorf("patching app state %q: %w", appID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	t.s.publish(TableAppState, events.OpPut, appID)
	return true, nil
}

// Delete removes the row for appID. Deleting a missing row is not an error.
func (t *AppStateTable) Delete(ctx context.Context, appID string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM app_state WHERE app_id = ?`, appID)
	if err != nil {
		return fmt.Errorf("deleting app state %q: %w", appID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		t.s.publish(TableAppState, events.OpDelete, appID)
	}
	return nil
}

// PutMany upserts all states in one transaction.
func (t *AppStateTable) PutMany(ctx context.Context, states []AppState) error {
	if len(states) == 0 {
		return nil
	}
	ids := make([]string, 0, len(states))
	err := t.s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range states {
			if _, err := tx.ExecContext(ctx, upsertAppStateSQL,
				a.AppID, boolToInt(a.IsFavorite), boolToInt(a.IsInstalled)); err != nil {
				return fmt.Errorf("writing app state %q: %w", a.AppID, err)
			}
			ids = append(ids, a.AppID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.s.publish(TableAppState, events.OpPut, ids...)
	return nil
}

func (t *AppStateTable) DeleteMany(ctx context.Context, appIDs []string) error {
	if len(appIDs) == 0 {
		return nil
	}
	err := t.s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range appIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM app_state WHERE app_id = ?`, id); err != nil {
				return fmt.Errorf("deleting app state %q: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.s.publish(TableAppState, events.OpDelete, appIDs...)
	return nil
}

func (t *AppStateTable) Clear(ctx context.Context) error {
	if _, err := t.s.db.ExecContext(ctx, `DELETE FROM app_state`); err != nil {
		return fmt.Errorf("clearing app state: %w", err)
	}
	t.s.publish(TableAppState, events.OpClear)
	return nil
}

func (t *AppStateTable) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM app_state`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting app state: %w", err)
	}
	return n, nil
}

// Query returns rows whose flag equals value, using the flag's index.
func (t *AppStateTable) Query(ctx context.Context, flag Flag, value bool) ([]AppState, error) {
	if !flag.valid() {
		return nil, fmt.Errorf("unknown app state flag %q", flag)
	}
	return t.list(ctx, selectAppStateSQL+` WHERE `+string(flag)+` = ? ORDER BY app_id`, boolToInt(value))
}

// Where scans the whole table and keeps the rows for which keep returns true.
func (t *AppStateTable) Where(ctx context.Context, keep func(AppState) bool) ([]AppState, error) {
	all, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []AppState
	for _, a := range all {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Favorites returns the ids of favorited apps in ascending order.
func (t *AppStateTable) Favorites(ctx context.Context) ([]string, error) {
	return t.ids(ctx, FlagFavorite)
}

// Installed returns the ids of installed apps in ascending order.
func (t *AppStateTable) Installed(ctx context.Context) ([]string, error) {
	return t.ids(ctx, FlagInstalled)
}

func (t *AppStateTable) ids(ctx context.Context, flag Flag) ([]string, error) {
	rows, err := t.s.db.QueryContext(ctx,
		`SELECT app_id FROM app_state WHERE `+string(flag)+` = 1 ORDER BY app_id`)
	if err != nil {
		return nil, fmt.Errorf("listing apps by %s: %w", flag, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ToggleFavorite flips the favorite flag of appID, carrying the installed flag
// through, and returns the new value. A missing row counts as both flags false.
func (t *AppStateTable) ToggleFavorite(ctx context.Context, appID string) (bool, error) {
	return t.update(ctx, appID, func(a *AppState) bool {
		a.IsFavorite = !a.IsFavorite
		return a.IsFavorite
	})
}

// ToggleInstalled flips the installed flag of appID and returns the new value.
func (t *AppStateTable) ToggleInstalled(ctx context.Context, appID string) (bool, error) {
	return t.update(ctx, appID, func(a *AppState) bool {
		a.IsInstalled = !a.IsInstalled
		return a.IsInstalled
	})
}

func (t *AppStateTable) SetFavorite(ctx context.Context, appID string, v bool) error {
	_, err := t.update(ctx, appID, func(a *AppState) bool {
		a.IsFavorite = v
		return v
	})
	return err
}

func (t *AppStateTable) SetInstalled(ctx context.Context, appID string, v bool) error {
	_, err := t.update(ctx, appID, func(a *AppState) bool {
		a.IsInstalled = v
		return v
	})
	return err
}

// update reads the current row, applies fn and upserts the full row in one
// transaction.
func (t *AppStateTable) update(ctx context.Context, appID string, fn func(*AppState) bool) (bool, error) {
	var result bool
	err := t.s.withTx(ctx, func(tx *sql.Tx) error {
		a, err := scanAppState(tx.QueryRowContext(ctx, selectAppStateSQL+` WHERE app_id = ?`, appID))
		if errors.Is(err, sql.ErrNoRows) {
			a = AppState{AppID: appID}
		} else if err != nil {
			return fmt.Errorf("reading app state %q: %w", appID, err)
		}
		result = fn(&a)
		if _, err := tx.ExecContext(ctx, upsertAppStateSQL,
			appID, boolToInt(a.IsFavorite), boolToInt(a.IsInstalled)); err != nil {
			return fmt.Errorf("writing app state %q: %w", appID, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	t.s.publish(TableAppState, events.OpPut, appID)
	return result, nil
}

func (t *AppStateTable) list(ctx context.Context, query string, args ...any) ([]AppState, error) {
	rows, err := t.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing app state: %w", err)
	}
	defer rows.Close()

	var out []AppState
	for rows.Next() {
		a, err := scanAppState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppState(r rowScanner) (AppState, error) {
	var a AppState
	var fav, inst int
	if err := r.Scan(&a.AppID, &fav, &inst); err != nil {
		return AppState{}, err
	}
	a.IsFavorite = fav != 0
	a.IsInstalled = inst != 0
	return a, nil
}
