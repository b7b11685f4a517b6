package pii

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

// NationalIDHashPrefix is the number of leading digits (birth date and the
// gender digit) covered by the national id lookup hash. Matches are candidates
// for review, not proof of identity.
const NationalIDHashPrefix = 7

// Field names used in access logs and FieldResult maps.
const (
	FieldNationalID  = "national_id"
	FieldBankAccount = "bank_account"
)

const purposeProfileView = "profile_view"

type ProfileStore interface {
	Upsert(ctx context.Context, p *models.WorkerProfile) error
	Get(ctx context.Context, userID uuid.UUID) (*models.WorkerProfile, error)
	FindByNationalIDHash(ctx context.Context, hash string) ([]uuid.UUID, error)
}

type ProfileInput struct {
	NationalID  string `json:"national_id"`
	BankName    string `json:"bank_name"`
	BankAccount string `json:"bank_account"`
}

// ProfileView is what callers see: masked values only. Fields that failed to
// decrypt are omitted and listed in Unavailable.
type ProfileView struct {
	UserID      uuid.UUID `json:"user_id"`
	NationalID  string    `json:"national_id,omitempty"`
	BankName    string    `json:"bank_name"`
	BankAccount string    `json:"bank_account,omitempty"`
	Unavailable []string  `json:"unavailable,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProfileService struct {
	store  ProfileStore
	enc    *Encryptor
	reader *Reader
	log    *slog.Logger
}

func NewProfileService(store ProfileStore, enc *Encryptor, reader *Reader, log *slog.Logger) *ProfileService {
	if log == nil {
		log = slog.Default()
	}
	return &ProfileService{store: store, enc: enc, reader: reader, log: log}
}

// NormalizeNationalID strips surrounding space and the birth-date dash.
func NormalizeNationalID(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "-", "")
}

// Save encrypts the worker's national id and bank account and stores them with
// the national id lookup hash.
func (s *ProfileService) Save(ctx context.Context, actor auth.Actor, in ProfileInput) (*ProfileView, error) {
	nid := NormalizeNationalID(in.NationalID)
	if len(nid) != 13 {
		return nil, apperr.Validation("national id must have 13 digits")
	}
	account := strings.TrimSpace(in.BankAccount)
	if account == "" || strings.TrimSpace(in.BankName) == "" {
		return nil, apperr.Validation("bank name and account are required")
	}

	nidBlob, err := s.enc.Encrypt(nid)
	if err != nil {
		return nil, err
	}
	accBlob, err := s.enc.Encrypt(account)
	if err != nil {
		return nil, err
	}
	p := &models.WorkerProfile{
		UserID:               actor.UserID,
		NationalIDEncrypted:  nidBlob,
		NationalIDHash:       s.enc.LookupHash(nid, NationalIDHashPrefix),
		BankAccountEncrypted: accBlob,
		BankName:             strings.TrimSpace(in.BankName),
	}
	if err := s.store.Upsert(ctx, p); err != nil {
		return nil, apperr.External("save worker profile", err)
	}
	s.log.Info("worker profile saved", "user_id", actor.UserID)
	return &ProfileView{
		UserID:      p.UserID,
		NationalID:  MaskNationalID(nid),
		BankName:    p.BankName,
		BankAccount: MaskAccount(account),
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

// Get returns the masked profile of userID. Only the owner or an admin may read it.
func (s *ProfileService) Get(ctx context.Context, actor auth.Actor, userID uuid.UUID) (*ProfileView, error) {
	if actor.UserID != userID && actor.Role != auth.RoleAdmin {
		return nil, apperr.Forbidden("profile belongs to another user")
	}
	p, err := s.store.Get(ctx, userID)
	if errors.Is(err, errProfileNotFound) {
		return nil, apperr.NotFound("worker profile")
	}
	if err != nil {
		return nil, apperr.External("load worker profile", err)
	}

	res := s.reader.DecryptFields(ctx, actor.UserID, userID, purposeProfileView, map[string]string{
		FieldNationalID:  p.NationalIDEncrypted,
		FieldBankAccount: p.BankAccountEncrypted,
	})
	view := &ProfileView{UserID: p.UserID, BankName: p.BankName, UpdatedAt: p.UpdatedAt}
	if r := res[FieldNationalID]; r.OK() {
		view.NationalID = MaskNationalID(r.Value)
	} else {
		view.Unavailable = append(view.Unavailable, FieldNationalID)
	}
	if r := res[FieldBankAccount]; r.OK() {
		view.BankAccount = MaskAccount(r.Value)
	} else {
		view.Unavailable = append(view.Unavailable, FieldBankAccount)
	}
	return view, nil
}

// FindDuplicates lists users whose national id shares the hashed prefix of nationalID.
func (s *ProfileService) FindDuplicates(ctx context.Context, nationalID string) ([]uuid.UUID, error) {
	nid := NormalizeNationalID(nationalID)
	if len(nid) < NationalIDHashPrefix {
		return nil, apperr.Validation("national id too short")
	}
	ids, err := s.store.FindByNationalIDHash(ctx, s.enc.LookupHash(nid, NationalIDHashPrefix))
	if err != nil {
		return nil, apperr.External("find profiles by hash", err)
	}
	return ids, nil
}

// MaskNationalID keeps the birth date and gender digit: 900101-1******.
func MaskNationalID(nid string) string {
	nid = NormalizeNationalID(nid)
	if len(nid) < NationalIDHashPrefix {
		return strings.Repeat("*", len(nid))
	}
	return nid[:6] + "-" + nid[6:7] + strings.Repeat("*", len(nid)-7)
}

// MaskAccount keeps the last four characters.
func MaskAccount(acc string) string {
	if len(acc) <= 4 {
		return strings.Repeat("*", len(acc))
	}
	return strings.Repeat("*", len(acc)-4) + acc[len(acc)-4:]
}
