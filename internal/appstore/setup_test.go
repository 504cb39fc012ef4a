package appstore

import (
	"context"
	"strings"
	"testing"

	"github.com/kalambet/ambridge/internal/secure"
	"github.com/kalambet/ambridge/internal/storage"
)

func TestWriteFirstTimeSetupHashesSecrets(t *testing.T) {
	f, s, _ := newTestFacade(t, nil)
	ctx := context.Background()

	in := storage.FirstTimeSetup{SchoolID: "S-42", SchoolPass: "school-secret", Username: "admin", Password: "plainpassword123"}
	if err := f.WriteFirstTimeSetup(ctx, in); err != nil {
		t.Fatalf("WriteFirstTimeSetup: %v", err)
	}

	raw, ok, err := s.Config().Get(ctx, storage.KeyFirstTimeSetup)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	for _, secret := range []string{"school-secret", "plainpassword123"} {
		if strings.Contains(string(raw.Value), secret) {
			t.Errorf("stored record contains plaintext %q", secret)
		}
	}

	rec, err := f.ReadFirstTimeSetup(ctx)
	if err != nil || rec == nil {
		t.Fatalf("ReadFirstTimeSetup = %+v, %v", rec, err)
	}
	if !secure.LooksHashed(rec.SchoolPass) || !secure.LooksHashed(rec.Password) {
		t.Errorf("secrets not hashed: %+v", rec)
	}
	if rec.SchoolID != "S-42" || rec.Username != "admin" {
		t.Errorf("plain fields changed: %+v", rec)
	}

	ok, err = f.VerifyFirstTimeSetup(ctx, "admin", "plainpassword123")
	if err != nil || !ok {
		t.Errorf("VerifyFirstTimeSetup(correct) = %v, %v", ok, err)
	}
	if ok, _ := f.VerifyFirstTimeSetup(ctx, "admin", "wrong"); ok {
		t.Error("VerifyFirstTimeSetup accepted a wrong password")
	}
	if ok, _ := f.VerifyFirstTimeSetup(ctx, "root", "plainpassword123"); ok {
		t.Error("VerifyFirstTimeSetup accepted a wrong username")
	}
	if ok, _ := f.VerifySchoolPass(ctx, "S-42", "school-secret"); !ok {
		t.Error("VerifySchoolPass rejected the correct pass")
	}
}

func TestWriteFirstTimeSetupDoesNotRehash(t *testing.T) {
	f, _, _ := newTestFacade(t, nil)
	ctx := context.Background()

	if err := f.WriteFirstTimeSetup(ctx, storage.FirstTimeSetup{Username: "u", Password: "pw-one"}); err != nil {
		t.Fatal(err)
	}
	first, _ := f.ReadFirstTimeSetup(ctx)

	// The wizard saves the whole record again on every step.
	step := *first
	step.SchoolID = "S-1"
	if err := f.WriteFirstTimeSetup(ctx, step); err != nil {
		t.Fatal(err)
	}
	second, _ := f.ReadFirstTimeSetup(ctx)
	if second.Password != first.Password {
		t.Errorf("Password rehashed: %q -> %q", first.Password, second.Password)
	}
	if second.SchoolPass != "" {
		t.Errorf("empty SchoolPass stored as %q", second.SchoolPass)
	}
}

func TestFirstTimeSetupLifecycle(t *testing.T) {
	f, s, _ := newTestFacade(t, nil)
	ctx := context.Background()

	needed, err := f.IsFirstTimeSetupNeeded(ctx)
	if err != nil || !needed {
		t.Fatalf("IsFirstTimeSetupNeeded on empty store = %v, %v", needed, err)
	}
	if rec, _ := f.ReadFirstTimeSetup(ctx); rec != nil {
		t.Fatalf("ReadFirstTimeSetup = %+v, want nil", rec)
	}

	if err := f.WriteFirstTimeSetup(ctx, storage.FirstTimeSetup{Username: "admin", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	if needed, _ := f.IsFirstTimeSetupNeeded(ctx); !needed {
		t.Error("setup reported done before completion")
	}

	if err := s.Config().PutJSON(ctx, storage.KeyOnboarding, map[string]int{"step": 2}); err != nil {
		t.Fatal(err)
	}
	if err := f.CompleteFirstTimeSetup(ctx, nil); err != nil {
		t.Fatalf("CompleteFirstTimeSetup: %v", err)
	}
	if needed, _ := f.IsFirstTimeSetupNeeded(ctx); needed {
		t.Error("setup still needed after completion")
	}
	if _, ok, _ := s.Config().Get(ctx, storage.KeyOnboarding); ok {
		t.Error("onboarding key survived completion")
	}
	rec, _ := f.ReadFirstTimeSetup(ctx)
	if rec.Username != "admin" || !secure.Verify("pw", rec.Password, testIterations) {
		t.Errorf("completion lost the stored record: %+v", rec)
	}

	done, err := f.ToggleFirstTimeSetupDone(ctx)
	if err != nil || done {
		t.Fatalf("ToggleFirstTimeSetupDone = %v, %v, want false", done, err)
	}
	if needed, _ := f.IsFirstTimeSetupNeeded(ctx); !needed {
		t.Error("toggle did not reopen the wizard")
	}
}

func TestCompleteFirstTimeSetupWithRecord(t *testing.T) {
	f, _, _ := newTestFacade(t, nil)
	ctx := context.Background()

	in := &storage.FirstTimeSetup{SchoolID: "S", SchoolPass: "sp", Username: "u", Password: "p"}
	if err := f.CompleteFirstTimeSetup(ctx, in); err != nil {
		t.Fatal(err)
	}
	if in.IsFirstTimeSetupDone || in.Password != "p" {
		t.Error("CompleteFirstTimeSetup modified the caller's record")
	}
	rec, _ := f.ReadFirstTimeSetup(ctx)
	if !rec.IsFirstTimeSetupDone || !secure.LooksHashed(rec.SchoolPass) || !secure.LooksHashed(rec.Password) {
		t.Errorf("stored record = %+v", rec)
	}
}

func TestToggleFirstTimeSetupDoneCreatesRecord(t *testing.T) {
	f, _, _ := newTestFacade(t, nil)

	done, err := f.ToggleFirstTimeSetupDone(context.Background())
	if err != nil || !done {
		t.Fatalf("ToggleFirstTimeSetupDone = %v, %v, want true", done, err)
	}
	rec, _ := f.ReadFirstTimeSetup(context.Background())
	if rec == nil || !rec.IsFirstTimeSetupDone {
		t.Errorf("record = %+v", rec)
	}
}
