package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkerProfile holds a worker's PII as ciphertext blobs. Plaintext is never stored.
type WorkerProfile struct {
	UserID               uuid.UUID `json:"user_id"`
	NationalIDEncrypted  string    `json:"-"`
	NationalIDHash       string    `json:"-"`
	BankAccountEncrypted string    `json:"-"`
	BankName             string    `json:"bank_name"`
	UpdatedAt            time.Time `json:"updated_at"`
}
