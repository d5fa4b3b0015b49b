package authn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/match"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
)

var (
	// ErrEmptyName rejects enrollment without a display name.
	ErrEmptyName = errors.New("name must not be empty")

	// ErrInvalidEmbedding rejects an embedding that is empty, has the wrong
	// dimension, or is not unit-length. Distinct from a storage failure.
	ErrInvalidEmbedding = errors.New("invalid embedding")

	// ErrGalleryUnavailable wraps a gallery read failure during matching.
	ErrGalleryUnavailable = errors.New("gallery unavailable")
)

// EmbeddingProvider extracts the probe embedding from captured image bytes.
type EmbeddingProvider interface {
	Embed(ctx context.Context, imageData []byte) ([]float32, error)
}

// Gallery is the enrolled-identity store. It holds no matching logic.
type Gallery interface {
	CreateIdentity(ctx context.Context, name string, embedding []float32) (*models.Identity, error)
	ListIdentities(ctx context.Context) ([]models.Identity, error)
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
}

// Ledger is the append-only attempt store.
type Ledger interface {
	CreateAttempt(ctx context.Context, a *models.Attempt) error
	ListAttempts(ctx context.Context, limit int) ([]models.Attempt, error)
}

// CaptureStore keeps the raw captured frames referenced by attempts.
type CaptureStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// AttemptPublisher feeds the live attempt dashboard. Publishing is
// best-effort everywhere it is used.
type AttemptPublisher interface {
	PublishAttempt(ctx context.Context, outcome string, data interface{}) error
}

// Service drives the authentication and enrollment pipelines.
type Service struct {
	provider  EmbeddingProvider
	gallery   Gallery
	ledger    Ledger
	captures  CaptureStore     // optional
	publisher AttemptPublisher // optional
	threshold float32
	embDim    int
}

type ServiceConfig struct {
	Provider       EmbeddingProvider
	Gallery        Gallery
	Ledger         Ledger
	Captures       CaptureStore
	Publisher      AttemptPublisher
	MatchThreshold float32
	EmbeddingDim   int
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = match.DefaultThreshold
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 512
	}
	return &Service{
		provider:  cfg.Provider,
		gallery:   cfg.Gallery,
		ledger:    cfg.Ledger,
		captures:  cfg.Captures,
		publisher: cfg.Publisher,
		threshold: cfg.MatchThreshold,
		embDim:    cfg.EmbeddingDim,
	}
}

// Authenticate runs the full pipeline for one captured frame and appends
// exactly one ledger record whatever the outcome.
//
// The returned error is the ledger write failure, if any: the decision is
// already made and must still be acted on, so callers log it and degrade
// observability, never the authorization result.
func (s *Service) Authenticate(ctx context.Context, imageData []byte) (Decision, error) {
	probe, probeErr := s.provider.Embed(ctx, imageData)

	var res match.Result
	if probeErr == nil {
		identities, err := s.gallery.ListIdentities(ctx)
		if err != nil {
			probeErr = fmt.Errorf("%w: %v", ErrGalleryUnavailable, err)
		} else {
			observability.GallerySize.Set(float64(len(identities)))
			res = match.Best(probe, identities, s.threshold)
		}
	}

	dec := Decide(probeErr, res)
	observability.AttemptsTotal.WithLabelValues(string(dec.Outcome)).Inc()

	attempt := &models.Attempt{
		Outcome:  dec.Outcome,
		Details:  dec.Details,
		ImageKey: s.storeCapture(ctx, imageData),
	}
	if dec.Identity != nil {
		id := dec.Identity.ID
		attempt.IdentityID = &id
		attempt.IdentityName = dec.Identity.Name
	}
	if dec.HasScore {
		score := dec.Score
		attempt.Similarity = &score
	}

	if err := s.ledger.CreateAttempt(ctx, attempt); err != nil {
		observability.LedgerWriteFailures.Inc()
		return dec, fmt.Errorf("record attempt: %w", err)
	}

	s.publish(ctx, attempt)
	return dec, nil
}

// storeCapture uploads the frame best-effort and returns its key, or ""
// when storage is unconfigured or the upload failed.
func (s *Service) storeCapture(ctx context.Context, imageData []byte) string {
	if s.captures == nil || len(imageData) == 0 {
		return ""
	}
	key := "captures/" + uuid.NewString() + ".jpg"
	if err := s.captures.PutObject(ctx, key, imageData, "image/jpeg"); err != nil {
		slog.Warn("store capture", "error", err)
		return ""
	}
	return key
}

func (s *Service) publish(ctx context.Context, a *models.Attempt) {
	if s.publisher == nil {
		return
	}
	event := models.AttemptEvent{
		AttemptID:    a.ID,
		Timestamp:    a.Timestamp,
		Outcome:      a.Outcome,
		IdentityID:   a.IdentityID,
		IdentityName: a.IdentityName,
		Similarity:   a.Similarity,
		Details:      a.Details,
	}
	if err := s.publisher.PublishAttempt(ctx, string(a.Outcome), event); err != nil {
		slog.Warn("publish attempt event", "error", err)
	}
}

// Enroll extracts an embedding from imageData and adds name to the gallery.
// Failures are typed: empty name, no face, multiple faces (under the single
// policy), decode failure, provider unavailable, and storage failures are
// all distinguishable.
func (s *Service) Enroll(ctx context.Context, name string, imageData []byte) (*models.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	embedding, err := s.provider.Embed(ctx, imageData)
	if err != nil {
		return nil, err
	}

	// Stored embeddings must be unit-length: the matcher's dot product is
	// only cosine similarity under that invariant.
	if err := match.ValidateEmbedding(embedding, s.embDim); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmbedding, err)
	}

	ident, err := s.gallery.CreateIdentity(ctx, name, embedding)
	if err != nil {
		return nil, err
	}

	observability.IdentitiesEnrolled.Inc()
	slog.Info("identity enrolled", "id", ident.ID, "name", ident.Name)
	return ident, nil
}

// RemoveIdentity deletes an enrolled identity. Prior attempt records keep
// their audit data; their identity reference becomes null in the store.
func (s *Service) RemoveIdentity(ctx context.Context, id uuid.UUID) error {
	return s.gallery.DeleteIdentity(ctx, id)
}

// ListIdentities returns the gallery ordered by name.
func (s *Service) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	return s.gallery.ListIdentities(ctx)
}

// ListAttempts returns the most recent attempts, newest first.
func (s *Service) ListAttempts(ctx context.Context, limit int) ([]models.Attempt, error) {
	return s.ledger.ListAttempts(ctx, limit)
}
