package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/authn"
	"github.com/your-org/facegate/internal/recognizer"
	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/pkg/dto"
)

type IdentityHandler struct {
	svc *authn.Service
}

func NewIdentityHandler(svc *authn.Service) *IdentityHandler {
	return &IdentityHandler{svc: svc}
}

// Enroll accepts a multipart upload (name + image), extracts the face
// embedding, and adds the identity to the gallery.
func (h *IdentityHandler) Enroll(c *gin.Context) {
	name := c.PostForm("name")

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

	ident, err := h.svc.Enroll(c.Request.Context(), name, imageData)
	if err != nil {
		status, msg := enrollError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusCreated, dto.IdentityResponse{
		ID:        ident.ID,
		Name:      ident.Name,
		CreatedAt: ident.CreatedAt.Format(time.RFC3339),
		UpdatedAt: ident.UpdatedAt.Format(time.RFC3339),
	})
}

// enrollError keeps the failure modes distinguishable for the client.
func enrollError(err error) (int, string) {
	switch {
	case errors.Is(err, authn.ErrEmptyName):
		return http.StatusBadRequest, "name must not be empty"
	case errors.Is(err, recognizer.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity, "no face detected in the uploaded image"
	case errors.Is(err, recognizer.ErrMultipleFaces):
		return http.StatusUnprocessableEntity, "more than one face in the uploaded image"
	case errors.Is(err, recognizer.ErrDecodeFailed):
		return http.StatusUnprocessableEntity, "could not decode the uploaded image"
	case errors.Is(err, recognizer.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "face recognition service unavailable"
	case errors.Is(err, authn.ErrInvalidEmbedding):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (h *IdentityHandler) List(c *gin.Context) {
	identities, err := h.svc.ListIdentities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.IdentityResponse, 0, len(identities))
	for _, ident := range identities {
		resp = append(resp, dto.IdentityResponse{
			ID:        ident.ID,
			Name:      ident.Name,
			CreatedAt: ident.CreatedAt.Format(time.RFC3339),
			UpdatedAt: ident.UpdatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, dto.IdentityListResponse{Identities: resp, Total: len(resp)})
}

// Remove deletes an identity. A missing id is reported, not fatal; prior
// attempt records keep their audit data either way.
func (h *IdentityHandler) Remove(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	if err := h.svc.RemoveIdentity(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
