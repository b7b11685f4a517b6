package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Notification types emitted by the core.
const (
	NotificationContractExpired = "contract_expired"
)

type Notification struct {
	UserID  uuid.UUID       `json:"user_id"`
	Type    string          `json:"type"`
	Title   string          `json:"title"`
	Body    string          `json:"body"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
