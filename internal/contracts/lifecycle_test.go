package contracts

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/models"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func tp(t time.Time) *time.Time { return &t }

func TestNext_TotalFunction(t *testing.T) {
	legal := map[string]map[Event]string{
		models.ContractStatusDraft:   {EventSubmit: models.ContractStatusPending},
		models.ContractStatusPending: {EventComplete: models.ContractStatusCompleted, EventExpire: models.ContractStatusExpired},
	}
	for _, st := range Statuses {
		for _, ev := range Events {
			got, err := Next(st, ev)
			want, ok := legal[st][ev]
			if ok {
				if err != nil || got != want {
					t.Errorf("Next(%s, %s) = %q, %v; want %q", st, ev, got, err, want)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Next(%s, %s) err = %v, want ErrInvalidTransition", st, ev, err)
			}
			if got != "" {
				t.Errorf("Next(%s, %s) returned state %q alongside error", st, ev, got)
			}
		}
	}
}

func TestNext_UnknownInputs(t *testing.T) {
	if _, err := Next("archived", EventSubmit); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unknown status: %v", err)
	}
	if _, err := Next(models.ContractStatusDraft, "reopen"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unknown event: %v", err)
	}
}

func TestExpiredIsTerminal(t *testing.T) {
	c := &models.Contract{Status: models.ContractStatusExpired}
	sigs := []*models.Signature{{Role: models.RoleEmployer}, {Role: models.RoleWorker}}
	for _, ev := range Events {
		if _, err := Plan(c, sigs, ev, now); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expired + %s: %v", ev, err)
		}
	}
}

func TestPlan_Submit(t *testing.T) {
	c := &models.Contract{Status: models.ContractStatusDraft}

	if _, err := Plan(c, nil, EventSubmit, now); !errors.Is(err, ErrSignatureRequired) {
		t.Fatalf("submit without employer signature: %v", err)
	}

	ch, err := Plan(c, []*models.Signature{{Role: models.RoleEmployer}}, EventSubmit, now)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if ch.From != models.ContractStatusDraft || ch.To != models.ContractStatusPending {
		t.Errorf("change = %+v", ch)
	}
	if ch.ExpiresAt == nil || !ch.ExpiresAt.Equal(now.Add(7*24*time.Hour)) {
		t.Errorf("ExpiresAt = %v", ch.ExpiresAt)
	}
	if c.Status != models.ContractStatusDraft {
		t.Error("Plan must not mutate the contract")
	}
}

func TestPlan_Complete(t *testing.T) {
	c := &models.Contract{Status: models.ContractStatusPending, ExpiresAt: tp(now.Add(time.Hour))}

	if _, err := Plan(c, []*models.Signature{{Role: models.RoleEmployer}}, EventComplete, now); !errors.Is(err, ErrSignatureRequired) {
		t.Fatalf("complete without worker signature: %v", err)
	}
	ch, err := Plan(c, []*models.Signature{{Role: models.RoleEmployer}, {Role: models.RoleWorker}}, EventComplete, now)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	Apply(c, ch)
	if c.Status != models.ContractStatusCompleted || c.ExpiresAt != nil {
		t.Errorf("after complete: status=%s expires_at=%v", c.Status, c.ExpiresAt)
	}
	if c.CompletedAt == nil || !c.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v", c.CompletedAt)
	}
}

func TestPlan_Expire(t *testing.T) {
	c := &models.Contract{Status: models.ContractStatusPending, ExpiresAt: tp(now)}
	if _, err := Plan(c, nil, EventExpire, now); !errors.Is(err, ErrNotYetExpired) {
		t.Errorf("expire at exactly expires_at must wait: %v", err)
	}
	ch, err := Plan(c, nil, EventExpire, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	Apply(c, ch)
	if c.Status != models.ContractStatusExpired || c.ExpiresAt != nil {
		t.Errorf("after expire: %+v", c)
	}
}

func TestPlan_DeletedBlocksEverything(t *testing.T) {
	for _, st := range Statuses {
		c := &models.Contract{ID: uuid.New(), Status: st, DeletedAt: tp(now)}
		for _, ev := range Events {
			if _, err := Plan(c, nil, ev, now); !errors.Is(err, ErrContractDeleted) {
				t.Errorf("deleted %s + %s: %v", st, ev, err)
			}
		}
	}
}

func TestCanEdit(t *testing.T) {
	completedAt := now.Add(-3 * 24 * time.Hour)
	cases := []struct {
		name string
		c    models.Contract
		at   time.Time
		want error
	}{
		{"draft", models.Contract{Status: models.ContractStatusDraft}, now, nil},
		{"pending", models.Contract{Status: models.ContractStatusPending}, now, nil},
		{"completed inside window", models.Contract{Status: models.ContractStatusCompleted, CompletedAt: &completedAt}, now, nil},
		{"completed at window edge", models.Contract{Status: models.ContractStatusCompleted, CompletedAt: &completedAt}, completedAt.Add(EditWindow), nil},
		{"completed after window", models.Contract{Status: models.ContractStatusCompleted, CompletedAt: &completedAt}, completedAt.Add(EditWindow + time.Second), ErrEditWindowClosed},
		{"expired", models.Contract{Status: models.ContractStatusExpired}, now, ErrEditWindowClosed},
		{"deleted", models.Contract{Status: models.ContractStatusDraft, DeletedAt: tp(now)}, now, ErrContractDeleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CanEdit(&tc.c, tc.at)
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCanDelete(t *testing.T) {
	for st, ok := range map[string]bool{
		models.ContractStatusDraft:     true,
		models.ContractStatusPending:   true,
		models.ContractStatusCompleted: false,
		models.ContractStatusExpired:   false,
	} {
		err := CanDelete(&models.Contract{Status: st})
		if (err == nil) != ok {
			t.Errorf("CanDelete(%s) = %v", st, err)
		}
	}
}
