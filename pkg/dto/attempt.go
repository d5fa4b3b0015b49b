package dto

import "github.com/google/uuid"

type AttemptResponse struct {
	ID           uuid.UUID  `json:"id"`
	Timestamp    string     `json:"timestamp"`
	Outcome      string     `json:"outcome"`
	IdentityID   *uuid.UUID `json:"identity_id,omitempty"`
	IdentityName string     `json:"identity_name,omitempty"`
	Similarity   *float32   `json:"similarity,omitempty"`
	Details      string     `json:"details"`
	ImageURL     string     `json:"image_url,omitempty"`
	CreatedAt    string     `json:"created_at"`
}

type AttemptListResponse struct {
	Attempts []AttemptResponse `json:"attempts"`
	Total    int               `json:"total"`
}

// WSEvent is a WebSocket message for the live attempt feed.
type WSEvent struct {
	Type    string          `json:"type"` // attempt
	Outcome string          `json:"outcome"`
	Data    AttemptResponse `json:"data"`
}
