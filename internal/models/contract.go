package models

import (
	"time"

	"github.com/google/uuid"
)

// Contract status values. Soft delete is tracked by DeletedAt, not by status.
const (
	ContractStatusDraft     = "draft"
	ContractStatusPending   = "pending"
	ContractStatusCompleted = "completed"
	ContractStatusExpired   = "expired"
)

// Signature roles.
const (
	RoleEmployer = "employer"
	RoleWorker   = "worker"
)

type Contract struct {
	ID              uuid.UUID  `json:"id"`
	EmployerID      uuid.UUID  `json:"employer_id"`
	WorkerID        *uuid.UUID `json:"worker_id,omitempty"`
	Status          string     `json:"status"`
	Title           string     `json:"title"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	HourlyWage      int64      `json:"hourly_wage"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ResignationDate *time.Time `json:"resignation_date,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsParty reports whether userID is the employer or the signed worker.
func (c *Contract) IsParty(userID uuid.UUID) bool {
	if c.EmployerID == userID {
		return true
	}
	return c.WorkerID != nil && *c.WorkerID == userID
}

type Signature struct {
	ID         uuid.UUID  `json:"id"`
	ContractID uuid.UUID  `json:"contract_id"`
	Role       string     `json:"role"`
	SignerID   uuid.UUID  `json:"signer_id"`
	SignedAt   *time.Time `json:"signed_at,omitempty"`
	Payload    string     `json:"-"`
}
