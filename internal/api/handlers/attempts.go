package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/authn"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/pkg/dto"
)

type AttemptHandler struct {
	svc      *authn.Service
	attempts *storage.PostgresStore
	captures *storage.MinIOStore
}

func NewAttemptHandler(svc *authn.Service, attempts *storage.PostgresStore, captures *storage.MinIOStore) *AttemptHandler {
	return &AttemptHandler{svc: svc, attempts: attempts, captures: captures}
}

// List returns the most recent attempts, newest first.
func (h *AttemptHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	attempts, err := h.svc.ListAttempts(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AttemptResponse, 0, len(attempts))
	for i := range attempts {
		resp = append(resp, AttemptToDTO(&attempts[i]))
	}

	c.JSON(http.StatusOK, dto.AttemptListResponse{Attempts: resp, Total: len(resp)})
}

// Image proxies the stored capture frame for an attempt out of object
// storage, so clients never talk to MinIO directly.
func (h *AttemptHandler) Image(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt id"})
		return
	}

	attempt, err := h.attempts.GetAttempt(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if attempt.ImageKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no capture stored for this attempt"})
		return
	}

	data, err := h.captures.GetObject(c.Request.Context(), attempt.ImageKey)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "capture fetch failed"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

// AttemptToDTO converts a ledger record into its API shape. Shared with the
// WebSocket feed so both surfaces stay in sync.
func AttemptToDTO(a *models.Attempt) dto.AttemptResponse {
	resp := dto.AttemptResponse{
		ID:           a.ID,
		Timestamp:    a.Timestamp.Format(time.RFC3339),
		Outcome:      string(a.Outcome),
		IdentityID:   a.IdentityID,
		IdentityName: a.IdentityName,
		Similarity:   a.Similarity,
		Details:      a.Details,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
	if a.ImageKey != "" {
		resp.ImageURL = "/v1/attempts/" + a.ID.String() + "/image"
	}
	return resp
}
