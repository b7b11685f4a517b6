package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- TxBeginner mock ---

type mockPool struct{ beginErr error }

func (p mockPool) Begin(context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return noopTx{}, nil
}

// --- Store mock ---

// memPayments holds no row locks; concurrent confirmations are settled by the
// compare-and-set in SetStatus.
type memPayments struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*models.Payment
	clock time.Time
}

func newMemPayments() *memPayments {
	return &memPayments{rows: make(map[uuid.UUID]*models.Payment)}
}

func (m *memPayments) Create(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.OrderID == p.OrderID {
			return ErrDuplicateOrder
		}
	}
	cp := *p
	cp.CreatedAt = time.Now()
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPayments) Get(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPayments) ListForUser(_ context.Context, userID uuid.UUID) ([]*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Payment
	for _, p := range m.rows {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPayments) LockByOrderID(_ context.Context, _ pgx.Tx, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errNotFound
}

// Complete stamps paid_at from the store's own clock, as the database does.
func (m *memPayments) Complete(_ context.Context, _ pgx.Tx, id uuid.UUID, key string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return time.Time{}, false, nil
	}
	paidAt := m.clock
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	p.Status = models.PaymentStatusCompleted
	p.PaymentKey = &key
	p.PaidAt = &paidAt
	return paidAt, true, nil
}

func (m *memPayments) SetStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

// --- Issuer mock ---

type memIssuer struct {
	mu      sync.Mutex
	issued  map[string]int
	balance map[string]int
}

func newMemIssuer() *memIssuer {
	return &memIssuer{issued: make(map[string]int), balance: make(map[string]int)}
}

func (m *memIssuer) IssueTx(_ context.Context, _ pgx.Tx, userID uuid.UUID, creditType string, amount int, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := reference + "/" + creditType
	if _, ok := m.issued[key]; ok {
		return false, nil
	}
	m.issued[key] = amount
	m.balance[userID.String()+"/"+creditType] += amount
	return true, nil
}

func (m *memIssuer) balanceOf(userID uuid.UUID, creditType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance[userID.String()+"/"+creditType]
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fixture struct {
	svc    *Service
	store  *memPayments
	ledger *memIssuer
	user   auth.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemPayments()
	ledger := newMemIssuer()
	return &fixture{
		svc:    NewService(mockPool{}, store, ledger, nil),
		store:  store,
		ledger: ledger,
		user:   auth.Actor{UserID: uuid.New(), Role: auth.RoleUser},
	}
}

func (f *fixture) pending(t *testing.T, orderID string) *models.Payment {
	t.Helper()
	p, err := f.svc.CreatePending(context.Background(), f.user, CreateInput{
		OrderID: orderID, Amount: 12900, CreditsContract: 10, CreditsAIReview: 5,
	})
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	return p
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreatePending_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []CreateInput{
		{OrderID: " ", Amount: 1000, CreditsContract: 1},
		{OrderID: "o-1", Amount: 0, CreditsContract: 1},
		{OrderID: "o-1", Amount: 1000},
		{OrderID: "o-1", Amount: 1000, CreditsContract: -1, CreditsAIReview: 2},
	}
	for _, in := range cases {
		if _, err := f.svc.CreatePending(context.Background(), f.user, in); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%+v: expected validation error, got %v", in, err)
		}
	}
}

func TestCreatePending_DuplicateOrder(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "order-1")
	_, err := f.svc.CreatePending(context.Background(), f.user, CreateInput{OrderID: "order-1", Amount: 500, CreditsContract: 1})
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("expected ErrDuplicateOrder, got %v", err)
	}
}

func TestConfirm_IssuesCredits(t *testing.T) {
	f := newFixture(t)
	p := f.pending(t, "order-1")

	c, err := f.svc.Confirm(context.Background(), "order-1", 12900, "pk_1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if c.Replayed || c.Payment.Status != models.PaymentStatusCompleted || c.Payment.PaidAt == nil {
		t.Fatalf("unexpected confirmation: %+v", c.Payment)
	}
	if got := f.ledger.balanceOf(p.UserID, models.CreditTypeContract); got != 10 {
		t.Errorf("contract balance = %d, want 10", got)
	}
	if got := f.ledger.balanceOf(p.UserID, models.CreditTypeAIReview); got != 5 {
		t.Errorf("ai_review balance = %d, want 5", got)
	}
	if _, ok := f.ledger.issued[p.ID.String()+"/"+models.CreditTypeContract]; !ok {
		t.Error("issuance should be referenced by payment id")
	}
}

func TestConfirm_ReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	p := f.pending(t, "order-1")

	if _, err := f.svc.Confirm(context.Background(), "order-1", 12900, "pk_1"); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	c, err := f.svc.Confirm(context.Background(), "order-1", 12900, "pk_1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !c.Replayed {
		t.Error("second confirmation should be reported as replayed")
	}
	if got := f.ledger.balanceOf(p.UserID, models.CreditTypeContract); got != 10 {
		t.Errorf("replay issued again: balance = %d", got)
	}
}

func TestConfirm_ConcurrentCallbacksIssueOnce(t *testing.T) {
	f := newFixture(t)
	p := f.pending(t, "order-1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.Confirm(context.Background(), "order-1", 12900, "pk_1")
		}()
	}
	wg.Wait()
	if got := f.ledger.balanceOf(p.UserID, models.CreditTypeContract); got != 10 {
		t.Fatalf("balance = %d, want 10", got)
	}
}

func TestConfirm_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	p := f.pending(t, "order-1")

	_, err := f.svc.Confirm(context.Background(), "order-1", 100, "pk_1")
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	got, _ := f.svc.Get(context.Background(), p.ID)
	if got.Status != models.PaymentStatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if f.ledger.balanceOf(p.UserID, models.CreditTypeContract) != 0 {
		t.Error("no credits should be issued on mismatch")
	}
}

func TestConfirm_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Confirm(context.Background(), "missing", 100, "pk"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirm_AfterFailureIsConflict(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "order-1")
	if _, err := f.svc.Fail(context.Background(), "order-1", models.PaymentStatusFailed); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	_, err := f.svc.Confirm(context.Background(), "order-1", 12900, "pk")
	if !errors.Is(err, ErrPaymentClosed) {
		t.Fatalf("expected ErrPaymentClosed, got %v", err)
	}
}

func TestFail(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "order-1")

	p, err := f.svc.Fail(context.Background(), "order-1", models.PaymentStatusCancelled)
	if err != nil || p.Status != models.PaymentStatusCancelled {
		t.Fatalf("Fail: %v %+v", err, p)
	}
	if _, err := f.svc.Fail(context.Background(), "order-1", models.PaymentStatusCancelled); err != nil {
		t.Errorf("repeated Fail should be a no-op, got %v", err)
	}
	if _, err := f.svc.Fail(context.Background(), "order-1", models.PaymentStatusCompleted); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unsupported status, got %v", err)
	}
}

func TestFail_CompletedPaymentIsConflict(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "order-1")
	if _, err := f.svc.Confirm(context.Background(), "order-1", 12900, "pk"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := f.svc.Fail(context.Background(), "order-1", models.PaymentStatusFailed); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestConfirm_BeginFailureIsExternal(t *testing.T) {
	f := newFixture(t)
	f.svc.pool = mockPool{beginErr: errors.New("pool closed")}
	_, err := f.svc.Confirm(context.Background(), "order-1", 12900, "pk")
	if apperr.KindOf(err) != apperr.KindExternal {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestConfirm_PaidAtComesFromStore(t *testing.T) {
	f := newFixture(t)
	p := f.pending(t, "order-1")
	storeClock := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	f.store.clock = storeClock

	c, err := f.svc.Confirm(context.Background(), "order-1", 12900, "pk_1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if c.Payment.PaidAt == nil || !c.Payment.PaidAt.Equal(storeClock) {
		t.Fatalf("paid_at = %v, want store clock %v", c.Payment.PaidAt, storeClock)
	}
	stored, _ := f.store.Get(context.Background(), p.ID)
	if !stored.PaidAt.Equal(*c.Payment.PaidAt) {
		t.Errorf("returned paid_at %v differs from stored %v", c.Payment.PaidAt, stored.PaidAt)
	}
}
