package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of an authentication attempt.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// Attempt is one append-only audit record. Records are never mutated and
// outlive the identities they reference (the FK is set to NULL on delete).
type Attempt struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Timestamp  time.Time  `json:"timestamp" db:"timestamp"`
	Outcome    Outcome    `json:"outcome" db:"outcome"`
	IdentityID *uuid.UUID `json:"identity_id,omitempty" db:"identity_id"`
	// IdentityName is denormalized at read time for display; empty once the
	// identity has been removed.
	IdentityName string `json:"identity_name,omitempty" db:"-"`
	// Similarity is the best score observed during matching. Nil when no
	// probe embedding existed (no face detected, provider unavailable).
	Similarity *float32 `json:"similarity,omitempty" db:"similarity"`
	Details    string   `json:"details" db:"details"`
	// ImageKey is the object-store key of the captured frame; empty if the
	// upload failed.
	ImageKey  string    `json:"image_key,omitempty" db:"image_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AttemptEvent is the message published to NATS after each ledger write,
// consumed by the API to feed the live WebSocket dashboard.
type AttemptEvent struct {
	AttemptID    uuid.UUID  `json:"attempt_id"`
	Timestamp    time.Time  `json:"timestamp"`
	Outcome      Outcome    `json:"outcome"`
	IdentityID   *uuid.UUID `json:"identity_id,omitempty"`
	IdentityName string     `json:"identity_name,omitempty"`
	Similarity   *float32   `json:"similarity,omitempty"`
	Details      string     `json:"details"`
}
