package pii

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type memProfiles struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.WorkerProfile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: make(map[uuid.UUID]*models.WorkerProfile)}
}

func (m *memProfiles) Upsert(_ context.Context, p *models.WorkerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.rows[p.UserID] = &cp
	return nil
}

func (m *memProfiles) Get(_ context.Context, id uuid.UUID) (*models.WorkerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, errProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) FindByNationalIDHash(_ context.Context, hash string) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for id, p := range m.rows {
		if p.NationalIDHash == hash {
			out = append(out, id)
		}
	}
	return out, nil
}

type memAccess struct {
	mu      sync.Mutex
	entries []AccessEntry
}

func (m *memAccess) LogAccess(_ context.Context, e AccessEntry) {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
}

func newTestProfileService(t *testing.T) (*ProfileService, *memProfiles, *memAccess) {
	t.Helper()
	enc := newTestEncryptor(t, LegacySHA256)
	store := newMemProfiles()
	access := &memAccess{}
	return NewProfileService(store, enc, NewReader(enc, access, nil), nil), store, access
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestDecryptFields_PartialFailure(t *testing.T) {
	enc := newTestEncryptor(t, LegacySHA256)
	access := &memAccess{}
	r := NewReader(enc, access, nil)

	good, _ := enc.Encrypt("110-123-456789")
	actor, subject := uuid.New(), uuid.New()
	res := r.DecryptFields(context.Background(), actor, subject, "test", map[string]string{
		"bank_account": good,
		"national_id":  "corrupted",
	})

	if !res["bank_account"].OK() || res["bank_account"].Value != "110-123-456789" {
		t.Errorf("bank_account = %+v", res["bank_account"])
	}
	if res["national_id"].OK() || !errors.Is(res["national_id"].Err, ErrDecrypt) {
		t.Errorf("national_id should fail with ErrDecrypt, got %+v", res["national_id"])
	}
	if len(access.entries) != 2 {
		t.Fatalf("access entries = %d, want 2", len(access.entries))
	}
	for _, e := range access.entries {
		if e.ActorID != actor || e.SubjectID != subject {
			t.Errorf("entry not attributed: %+v", e)
		}
		if e.Succeeded != (e.Field == "bank_account") {
			t.Errorf("entry %s succeeded=%v", e.Field, e.Succeeded)
		}
	}
}

func TestProfile_SaveAndGet(t *testing.T) {
	svc, store, access := newTestProfileService(t)
	ctx := context.Background()
	worker := auth.Actor{UserID: uuid.New(), Role: auth.RoleUser}

	view, err := svc.Save(ctx, worker, ProfileInput{NationalID: "900101-1234567", BankName: "KB", BankAccount: "110123456789"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if view.NationalID != "900101-1******" || view.BankAccount != "********6789" {
		t.Errorf("masked view = %+v", view)
	}

	stored := store.rows[worker.UserID]
	if stored.NationalIDEncrypted == "9001011234567" || stored.BankAccountEncrypted == "110123456789" {
		t.Fatal("plaintext persisted")
	}

	got, err := svc.Get(ctx, worker, worker.UserID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.NationalID != "900101-1******" || len(got.Unavailable) != 0 {
		t.Errorf("Get view = %+v", got)
	}
	if len(access.entries) != 2 {
		t.Errorf("access entries = %d, want 2", len(access.entries))
	}
}

func TestProfile_GetReportsUnavailableField(t *testing.T) {
	svc, store, _ := newTestProfileService(t)
	ctx := context.Background()
	worker := auth.Actor{UserID: uuid.New()}
	svc.Save(ctx, worker, ProfileInput{NationalID: "9001011234567", BankName: "KB", BankAccount: "110123456789"})
	store.rows[worker.UserID].BankAccountEncrypted = "garbage"

	got, err := svc.Get(ctx, worker, worker.UserID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BankAccount != "" || len(got.Unavailable) != 1 || got.Unavailable[0] != FieldBankAccount {
		t.Errorf("view = %+v", got)
	}
	if got.NationalID == "" {
		t.Error("national id should still be returned")
	}
}

func TestProfile_Authorization(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	ctx := context.Background()
	owner := auth.Actor{UserID: uuid.New()}
	svc.Save(ctx, owner, ProfileInput{NationalID: "9001011234567", BankName: "KB", BankAccount: "110123456789"})

	_, err := svc.Get(ctx, auth.Actor{UserID: uuid.New(), Role: auth.RoleUser}, owner.UserID)
	if !errors.Is(err, apperr.ErrAuthorization) {
		t.Errorf("stranger: expected authorization error, got %v", err)
	}
	if _, err := svc.Get(ctx, auth.Actor{UserID: uuid.New(), Role: auth.RoleAdmin}, owner.UserID); err != nil {
		t.Errorf("admin: %v", err)
	}
	if _, err := svc.Get(ctx, auth.Actor{UserID: uuid.New(), Role: auth.RoleAdmin}, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing profile: expected not found, got %v", err)
	}
}

func TestProfile_SaveValidation(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	_, err := svc.Save(context.Background(), auth.Actor{UserID: uuid.New()}, ProfileInput{NationalID: "12345", BankName: "KB", BankAccount: "1"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProfile_FindDuplicates(t *testing.T) {
	svc, _, _ := newTestProfileService(t)
	ctx := context.Background()
	a, b := auth.Actor{UserID: uuid.New()}, auth.Actor{UserID: uuid.New()}
	svc.Save(ctx, a, ProfileInput{NationalID: "9001011234567", BankName: "KB", BankAccount: "1111111"})
	svc.Save(ctx, b, ProfileInput{NationalID: "8505052234567", BankName: "KB", BankAccount: "2222222"})

	ids, err := svc.FindDuplicates(ctx, "900101-1000000")
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(ids) != 1 || ids[0] != a.UserID {
		t.Errorf("ids = %v, want [%s]", ids, a.UserID)
	}
}

func TestMask(t *testing.T) {
	if got := MaskNationalID("9001011234567"); got != "900101-1******" {
		t.Errorf("MaskNationalID = %q", got)
	}
	if got := MaskAccount("1234"); got != "****" {
		t.Errorf("MaskAccount short = %q", got)
	}
}
