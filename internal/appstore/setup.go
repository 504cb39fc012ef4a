package appstore

import (
	"context"
	"fmt"

	"github.com/kalambet/ambridge/internal/secure"
	"github.com/kalambet/ambridge/internal/storage"
)

// ReadFirstTimeSetup returns the stored setup record, or nil if the wizard
// never saved one.
func (f *Facade) ReadFirstTimeSetup(ctx context.Context) (*storage.FirstTimeSetup, error) {
	if err := f.Migrate(ctx); err != nil {
		return nil, err
	}
	return f.readSetup(ctx)
}

func (f *Facade) readSetup(ctx context.Context) (*storage.FirstTimeSetup, error) {
	var rec storage.FirstTimeSetup
	ok, err := f.config.GetJSON(ctx, storage.KeyFirstTimeSetup, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// WriteFirstTimeSetup stores rec with SchoolPass and Password hashed. Values
// that already carry the hash format are stored unchanged.
func (f *Facade) WriteFirstTimeSetup(ctx context.Context, rec storage.FirstTimeSetup) error {
	if err := f.Migrate(ctx); err != nil {
		return err
	}
	return f.writeSetup(ctx, rec)
}

func (f *Facade) writeSetup(ctx context.Context, rec storage.FirstTimeSetup) error {
	var err error
	if rec.SchoolPass, err = f.hashSecret(rec.SchoolPass); err != nil {
		return fmt.Errorf("hashing school pass: %w", err)
	}
	if rec.Password, err = f.hashSecret(rec.Password); err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return f.config.PutJSON(ctx, storage.KeyFirstTimeSetup, rec)
}

func (f *Facade) hashSecret(v string) (string, error) {
	if v == "" || secure.LooksHashed(v) {
		return v, nil
	}
	return secure.Hash(v, f.iterations, f.outputLength)
}

// IsFirstTimeSetupNeeded reports whether the wizard has not been completed.
func (f *Facade) IsFirstTimeSetupNeeded(ctx context.Context) (bool, error) {
	rec, err := f.ReadFirstTimeSetup(ctx)
	if err != nil {
		return false, err
	}
	return rec == nil || !rec.IsFirstTimeSetupDone, nil
}

// CompleteFirstTimeSetup marks the wizard done and drops the obsolete
// onboarding key. With a nil rec the stored record is kept and only flagged.
func (f *Facade) CompleteFirstTimeSetup(ctx context.Context, rec *storage.FirstTimeSetup) error {
	if err := f.Migrate(ctx); err != nil {
		return err
	}
	if rec == nil {
		stored, err := f.readSetup(ctx)
		if err != nil {
			return err
		}
		if stored == nil {
			stored = &storage.FirstTimeSetup{}
		}
		rec = stored
	}
	done := *rec
	done.IsFirstTimeSetupDone = true
	if err := f.writeSetup(ctx, done); err != nil {
		return err
	}
	return f.config.Delete(ctx, storage.KeyOnboarding)
}

// ToggleFirstTimeSetupDone flips the done flag, creating an empty record when
// none exists, and returns the new value.
func (f *Facade) ToggleFirstTimeSetupDone(ctx context.Context) (bool, error) {
	if err := f.Migrate(ctx); err != nil {
		return false, err
	}
	rec, err := f.readSetup(ctx)
	if err != nil {
		return false, err
	}
	if rec == nil {
		rec = &storage.FirstTimeSetup{}
	}
	rec.IsFirstTimeSetupDone = !rec.IsFirstTimeSetupDone
	if err := f.config.PutJSON(ctx, storage.KeyFirstTimeSetup, rec); err != nil {
		return false, err
	}
	return rec.IsFirstTimeSetupDone, nil
}

// VerifyFirstTimeSetup checks username and password against the stored record.
func (f *Facade) VerifyFirstTimeSetup(ctx context.Context, username, password string) (bool, error) {
	rec, err := f.ReadFirstTimeSetup(ctx)
	if err != nil || rec == nil {
		return false, err
	}
	return rec.Username == username && secure.Verify(password, rec.Password, f.iterations), nil
}

// VerifySchoolPass checks the school credentials against the stored record.
func (f *Facade) VerifySchoolPass(ctx context.Context, schoolID, pass string) (bool, error) {
	rec, err := f.ReadFirstTimeSetup(ctx)
	if err != nil || rec == nil {
		return false, err
	}
	return rec.SchoolID == schoolID && secure.Verify(pass, rec.SchoolPass, f.iterations), nil
}
