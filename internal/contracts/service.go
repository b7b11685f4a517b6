package contracts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/ledger"
	"github.com/lemonmilkceo/final-sub001/internal/metrics"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

const dateLayout = "2006-01-02"

// Store is the persistence contract. Every mutating method is conditioned on
// the row's current status and reports false when that precondition no longer holds.
type Store interface {
	Create(ctx context.Context, c *models.Contract) error
	Get(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Contract, error)
	UpdateTerms(ctx context.Context, c *models.Contract, status string) (bool, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, ch Change) (bool, error)
	ExpireIfDue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	SetResignationDate(ctx context.Context, id uuid.UUID, date time.Time) (bool, error)
	Signatures(ctx context.Context, contractID uuid.UUID) ([]*models.Signature, error)
	AddSignature(ctx context.Context, s *models.Signature, status string) (bool, error)
	ListDueForExpiry(ctx context.Context, now time.Time, skip []uuid.UUID, limit int) ([]uuid.UUID, error)
}

// Credits is the slice of the ledger used to charge for contract creation.
type Credits interface {
	Consume(ctx context.Context, userID uuid.UUID, creditType string, amount int, reference string) (*ledger.Consumption, error)
	Issue(ctx context.Context, userID uuid.UUID, creditType string, amount int, reference string) (bool, error)
}

type Terms struct {
	Title      *string `json:"title"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	HourlyWage *int64  `json:"hourly_wage"`
}

type Service struct {
	store   Store
	credits Credits
	log     *slog.Logger
	now     func() time.Time
}

// NewService wires the lifecycle service. credits may be nil, in which case
// creating a contract is free.
func NewService(store Store, credits Credits, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, credits: credits, log: log, now: time.Now}
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	c, err := s.store.Get(ctx, id)
	if errors.Is(err, errNotFound) {
		return nil, apperr.NotFound("contract")
	}
	if err != nil {
		return nil, apperr.External("load contract", err)
	}
	return c, nil
}

// loadVisible hides soft-deleted contracts and contracts the actor is not party to.
func (s *Service) loadVisible(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Contract, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.DeletedAt != nil {
		return nil, apperr.NotFound("contract")
	}
	if !c.IsParty(actor.UserID) && actor.Role != auth.RoleAdmin {
		return nil, apperr.Forbidden("not a party to this contract")
	}
	return c, nil
}

func parseDate(field, v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

// applyTerms copies non-nil terms onto c and checks the result.
func applyTerms(c *models.Contract, t Terms) error {
	if t.Title != nil {
		c.Title = strings.TrimSpace(*t.Title)
	}
	if t.StartDate != nil {
		d, err := parseDate("start_date", *t.StartDate)
		if err != nil {
			return err
		}
		c.StartDate = d
	}
	if t.EndDate != nil {
		d, err := parseDate("end_date", *t.EndDate)
		if err != nil {
			return err
		}
		c.EndDate = &d
	}
	if t.HourlyWage != nil {
		c.HourlyWage = *t.HourlyWage
	}
	if c.Title == "" {
		return apperr.Validation("title is required")
	}
	if c.StartDate.IsZero() {
		return apperr.Validation("start_date is required")
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return apperr.Validation("end_date is before start_date")
	}
	if c.HourlyWage < 0 {
		return apperr.Validation("hourly_wage must be >= 0")
	}
	return nil
}

// Create saves a new draft owned by the actor and charges one contract credit.
func (s *Service) Create(ctx context.Context, actor auth.Actor, t Terms) (*models.Contract, error) {
	c := &models.Contract{ID: uuid.New(), EmployerID: actor.UserID, Status: models.ContractStatusDraft}
	if err := applyTerms(c, t); err != nil {
		return nil, err
	}

	ref := "contract:" + c.ID.String()
	if s.credits != nil {
		if _, err := s.credits.Consume(ctx, actor.UserID, models.CreditTypeContract, 1, ref); err != nil {
			return nil, err
		}
	}
	if err := s.store.Create(ctx, c); err != nil {
		s.reverseCharge(ctx, actor.UserID, c.ID)
		return nil, apperr.External("create contract", err)
	}
	s.log.Info("contract created", "contract_id", c.ID, "employer_id", actor.UserID)
	return c, nil
}

// reverseCharge gives back the creation credit when the insert failed.
func (s *Service) reverseCharge(ctx context.Context, userID, contractID uuid.UUID) {
	if s.credits == nil {
		return
	}
	if _, err := s.credits.Issue(ctx, userID, models.CreditTypeContract, 1, "contract-reversal:"+contractID.String()); err != nil {
		s.log.Error("credit reversal failed", "contract_id", contractID, "user_id", userID, "error", err)
	}
}

// Lookup loads a contract without an actor check. For system jobs only.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return s.load(ctx, id)
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Contract, error) {
	return s.loadVisible(ctx, actor, id)
}

func (s *Service) List(ctx context.Context, actor auth.Actor) ([]*models.Contract, error) {
	list, err := s.store.ListForUser(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.External("list contracts", err)
	}
	return list, nil
}

// Update changes the terms. Only the employer may edit, and only while CanEdit allows.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, t Terms) (*models.Contract, error) {
	c, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.EmployerID != actor.UserID {
		return nil, apperr.Forbidden("only the employer can edit the contract")
	}
	if err := CanEdit(c, s.now()); err != nil {
		return nil, err
	}
	if err := applyTerms(c, t); err != nil {
		return nil, err
	}
	ok, err := s.store.UpdateTerms(ctx, c, c.Status)
	if err != nil {
		return nil, apperr.External("update contract", err)
	}
	if !ok {
		return nil, s.concurrentChange(ctx, id)
	}
	return c, nil
}

// Sign records the actor's signature for role. The employer signs a draft; the
// worker signs a pending contract, which binds them as its worker.
func (s *Service) Sign(ctx context.Context, actor auth.Actor, id uuid.UUID, role, payload string) (*models.Signature, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.DeletedAt != nil {
		return nil, ErrContractDeleted
	}
	var want string
	switch role {
	case models.RoleEmployer:
		if c.EmployerID != actor.UserID {
			return nil, apperr.Forbidden("only the employer can sign as employer")
		}
		want = models.ContractStatusDraft
	case models.RoleWorker:
		if c.EmployerID == actor.UserID {
			return nil, apperr.Forbidden("the employer cannot sign as worker")
		}
		if c.WorkerID != nil && *c.WorkerID != actor.UserID {
			return nil, apperr.Forbidden("contract is bound to another worker")
		}
		want = models.ContractStatusPending
	default:
		return nil, apperr.Validation("unknown role %q", role)
	}
	if c.Status != want {
		return nil, ErrInvalidTransition.Withf("%s can only sign a %s contract", role, want)
	}
	if strings.TrimSpace(payload) == "" {
		return nil, apperr.Validation("signature payload is required")
	}

	now := s.now()
	sig := &models.Signature{ID: uuid.New(), ContractID: id, Role: role, SignerID: actor.UserID, SignedAt: &now, Payload: payload}
	ok, err := s.store.AddSignature(ctx, sig, want)
	if errors.Is(err, ErrDuplicateSignature) {
		return nil, err
	}
	if err != nil {
		return nil, apperr.External("add signature", err)
	}
	if !ok {
		return nil, s.concurrentChange(ctx, id)
	}
	s.log.Info("contract signed", "contract_id", id, "role", role, "signer_id", actor.UserID)
	return sig, nil
}

// Transition applies event on behalf of actor. Submitting is the employer's
// call; completing may be done by the signed worker or the employer. Expire is
// reserved for admins and the expiry job.
func (s *Service) Transition(ctx context.Context, actor auth.Actor, id uuid.UUID, event Event) (*models.Contract, error) {
	c, err := s.transition(ctx, actor, id, event)
	metrics.ContractTransitions.WithLabelValues(string(event), metrics.Result(err)).Inc()
	return c, err
}

func (s *Service) transition(ctx context.Context, actor auth.Actor, id uuid.UUID, event Event) (*models.Contract, error) {
	c, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	switch event {
	case EventSubmit:
		if c.EmployerID != actor.UserID {
			return nil, apperr.Forbidden("only the employer can submit the contract")
		}
	case EventComplete:
		if !c.IsParty(actor.UserID) {
			return nil, apperr.Forbidden("only a party can complete the contract")
		}
	case EventExpire:
		if actor.Role != auth.RoleAdmin {
			return nil, apperr.Forbidden("only an admin can expire a contract")
		}
		if c.DeletedAt != nil {
			return nil, ErrContractDeleted
		}
		if _, err := Next(c.Status, EventExpire); err != nil {
			return nil, err
		}
		ok, err := s.Expire(ctx, id, s.now())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotYetExpired
		}
		return s.load(ctx, id)
	}

	sigs, err := s.store.Signatures(ctx, id)
	if err != nil {
		return nil, apperr.External("load signatures", err)
	}
	ch, err := Plan(c, sigs, event, s.now())
	if err != nil {
		return nil, err
	}
	ok, err := s.store.CompareAndSetStatus(ctx, id, ch)
	if err != nil {
		return nil, apperr.External("transition contract", err)
	}
	if !ok {
		return nil, s.concurrentChange(ctx, id)
	}
	Apply(c, ch)
	s.log.Info("contract transitioned", "contract_id", id, "event", event, "from", ch.From, "to", ch.To)
	return c, nil
}

// Expire moves a pending contract past its deadline to expired. A contract that
// is no longer pending (completed, deleted, already expired) is a no-op and
// reports false without error.
func (s *Service) Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	ok, err := s.store.ExpireIfDue(ctx, id, now)
	if err != nil {
		metrics.ContractTransitions.WithLabelValues(string(EventExpire), "external").Inc()
		return false, apperr.External("expire contract", err)
	}
	result := "ok"
	if !ok {
		result = "noop"
	}
	metrics.ContractTransitions.WithLabelValues(string(EventExpire), result).Inc()
	return ok, nil
}

// DueForExpiry lists pending contracts whose deadline passed before now,
// excluding skip.
func (s *Service) DueForExpiry(ctx context.Context, now time.Time, skip []uuid.UUID, limit int) ([]uuid.UUID, error) {
	ids, err := s.store.ListDueForExpiry(ctx, now, skip, limit)
	if err != nil {
		return nil, apperr.External("list contracts due for expiry", err)
	}
	return ids, nil
}

// SetResignationDate is the worker's only post-completion edit.
func (s *Service) SetResignationDate(ctx context.Context, actor auth.Actor, id uuid.UUID, date string) (*models.Contract, error) {
	d, err := parseDate("resignation_date", date)
	if err != nil {
		return nil, err
	}
	c, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.WorkerID == nil || *c.WorkerID != actor.UserID {
		return nil, apperr.Forbidden("only the worker can set the resignation date")
	}
	if c.Status != models.ContractStatusCompleted {
		return nil, ErrInvalidTransition.Withf("resignation date requires a completed contract")
	}
	if d.Before(c.StartDate) {
		return nil, apperr.Validation("resignation_date is before start_date")
	}
	ok, err := s.store.SetResignationDate(ctx, id, d)
	if err != nil {
		return nil, apperr.External("set resignation date", err)
	}
	if !ok {
		return nil, s.concurrentChange(ctx, id)
	}
	c.ResignationDate = &d
	return c, nil
}

// Delete soft-deletes a draft or pending contract. Only the employer may delete.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	c, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return err
	}
	if c.EmployerID != actor.UserID {
		return apperr.Forbidden("only the employer can delete the contract")
	}
	if err := CanDelete(c); err != nil {
		return err
	}
	ok, err := s.store.SoftDelete(ctx, id)
	if err != nil {
		return apperr.External("delete contract", err)
	}
	if !ok {
		return s.concurrentChange(ctx, id)
	}
	s.log.Info("contract deleted", "contract_id", id)
	return nil
}

// concurrentChange reports a lost CAS with the status the row has now.
func (s *Service) concurrentChange(ctx context.Context, id uuid.UUID) error {
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if c.DeletedAt != nil {
		return ErrContractDeleted
	}
	return ErrInvalidTransition.Withf("contract changed concurrently; now %s", c.Status).WithMeta("status", c.Status)
}
