package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegate/internal/authn"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/pkg/dto"
)

type AuthenticateHandler struct {
	svc *authn.Service
}

func NewAuthenticateHandler(svc *authn.Service) *AuthenticateHandler {
	return &AuthenticateHandler{svc: svc}
}

// Authenticate accepts a captured frame as a multipart image upload and
// returns the access decision. Every call, whatever the outcome, appends
// exactly one attempt record.
func (h *AuthenticateHandler) Authenticate(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	dec, err := h.svc.Authenticate(c.Request.Context(), imageData)
	if err != nil {
		// The decision stands; a ledger failure only degrades the audit trail.
		slog.Error("attempt ledger write failed", "error", err, "outcome", dec.Outcome)
	}

	resp := dto.AuthenticateResponse{
		Outcome: string(dec.Outcome),
		Reason:  string(dec.Reason),
	}
	if dec.HasScore {
		score := dec.Score
		resp.Similarity = &score
	}

	switch dec.Outcome {
	case models.OutcomeGranted:
		resp.MatchedName = dec.Identity.Name
		resp.Token = dec.Token
		resp.Message = "Welcome, " + dec.Identity.Name + ". Access granted."
	case models.OutcomeDenied:
		resp.Message = "Access denied. " + dec.Details
	default:
		resp.Message = dec.Details
	}

	c.JSON(statusFor(dec.Reason), resp)
}

// statusFor maps error reasons onto HTTP statuses. A clean grant/deny and
// operational errors like "no face" are normal 200 responses; only
// infrastructure failures surface as 5xx.
func statusFor(reason authn.Reason) int {
	switch reason {
	case authn.ReasonProviderUnavailable, authn.ReasonStoreUnavailable:
		return http.StatusServiceUnavailable
	case authn.ReasonDecodeFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}
