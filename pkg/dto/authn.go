package dto

// AuthenticateResponse is the result of one authentication attempt.
// Similarity is omitted when no probe embedding existed.
type AuthenticateResponse struct {
	Outcome     string   `json:"outcome"` // granted, denied, error
	Message     string   `json:"message"`
	MatchedName string   `json:"matched_name,omitempty"`
	Similarity  *float32 `json:"similarity,omitempty"`
	// Token is the grant credential for the session layer, set on grant only.
	Token  string `json:"token,omitempty"`
	Reason string `json:"reason,omitempty"`
}
