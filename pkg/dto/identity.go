package dto

import "github.com/google/uuid"

type IdentityResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

type IdentityListResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Total      int                `json:"total"`
}
