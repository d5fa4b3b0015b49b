package authn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facegate/internal/match"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/recognizer"
	"github.com/your-org/facegate/internal/storage"
)

type fakeProvider struct {
	embedding []float32
	err       error
}

func (f *fakeProvider) Embed(context.Context, []byte) ([]float32, error) {
	return f.embedding, f.err
}

type fakeGallery struct {
	identities []models.Identity
	listErr    error
	createErr  error
}

func (f *fakeGallery) CreateIdentity(_ context.Context, name string, embedding []float32) (*models.Identity, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	ident := models.Identity{ID: uuid.New(), Name: name, Embedding: embedding, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.identities = append(f.identities, ident)
	return &ident, nil
}

func (f *fakeGallery) ListIdentities(context.Context) ([]models.Identity, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.identities, nil
}

func (f *fakeGallery) DeleteIdentity(_ context.Context, id uuid.UUID) error {
	for i := range f.identities {
		if f.identities[i].ID == id {
			f.identities = append(f.identities[:i], f.identities[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

type fakeLedger struct {
	attempts []models.Attempt
	err      error
}

func (f *fakeLedger) CreateAttempt(_ context.Context, a *models.Attempt) error {
	if f.err != nil {
		return f.err
	}
	a.ID = uuid.New()
	a.Timestamp = time.Now()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeLedger) ListAttempts(_ context.Context, limit int) ([]models.Attempt, error) {
	if limit > len(f.attempts) {
		limit = len(f.attempts)
	}
	out := make([]models.Attempt, 0, limit)
	for i := len(f.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.attempts[i])
	}
	return out, nil
}

type fakeCaptures struct {
	keys []string
	err  error
}

func (f *fakeCaptures) PutObject(_ context.Context, key string, _ []byte, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	return nil
}

type fakePublisher struct {
	events []models.AttemptEvent
	err    error
}

func (f *fakePublisher) PublishAttempt(_ context.Context, _ string, data interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, data.(models.AttemptEvent))
	return nil
}

func unitVec(lead float32) []float32 {
	v := []float32{lead, 0, 0}
	match.Normalize(v)
	return v
}

func newTestService(provider EmbeddingProvider, gallery *fakeGallery, ledger *fakeLedger) *Service {
	return NewService(ServiceConfig{
		Provider:       provider,
		Gallery:        gallery,
		Ledger:         ledger,
		MatchThreshold: 0.40,
		EmbeddingDim:   3,
	})
}

func TestAuthenticateExactMatchGranted(t *testing.T) {
	e := unitVec(1)
	gallery := &fakeGallery{identities: []models.Identity{{ID: uuid.New(), Name: "Alice", Embedding: e}}}
	ledger := &fakeLedger{}
	svc := newTestService(&fakeProvider{embedding: e}, gallery, ledger)

	dec, err := svc.Authenticate(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeGranted, dec.Outcome)
	require.NotNil(t, dec.Identity)
	assert.Equal(t, "Alice", dec.Identity.Name)
	assert.InDelta(t, 1.0, float64(dec.Score), 1e-6)
	assert.NotEmpty(t, dec.Token)

	require.Len(t, ledger.attempts, 1)
	rec := ledger.attempts[0]
	assert.Equal(t, models.OutcomeGranted, rec.Outcome)
	require.NotNil(t, rec.IdentityID)
	require.NotNil(t, rec.Similarity)
	assert.InDelta(t, 1.0, float64(*rec.Similarity), 1e-6)
}

func TestAuthenticateBelowThresholdDenied(t *testing.T) {
	enrolled := []float32{1, 0, 0}
	probe := []float32{0.1, 0.99498744, 0} // similarity 0.10
	gallery := &fakeGallery{identities: []models.Identity{{ID: uuid.New(), Name: "Alice", Embedding: enrolled}}}
	ledger := &fakeLedger{}
	svc := newTestService(&fakeProvider{embedding: probe}, gallery, ledger)

	dec, err := svc.Authenticate(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeDenied, dec.Outcome)
	assert.Nil(t, dec.Identity)
	assert.Empty(t, dec.Token)
	assert.InDelta(t, 0.10, float64(dec.Score), 1e-6)

	require.Len(t, ledger.attempts, 1)
	rec := ledger.attempts[0]
	assert.Equal(t, models.OutcomeDenied, rec.Outcome)
	assert.Nil(t, rec.IdentityID)
	require.NotNil(t, rec.Similarity)
	assert.InDelta(t, 0.10, float64(*rec.Similarity), 1e-6)
}

func TestAuthenticateNoFaceIsErrorOutcome(t *testing.T) {
	ledger := &fakeLedger{}
	svc := newTestService(&fakeProvider{err: recognizer.ErrNoFaceDetected}, &fakeGallery{}, ledger)

	dec, err := svc.Authenticate(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeError, dec.Outcome)
	assert.Equal(t, ReasonNoFace, dec.Reason)
	assert.Contains(t, dec.Details, "no face detected")

	require.Len(t, ledger.attempts, 1)
	rec := ledger.attempts[0]
	assert.Equal(t, models.OutcomeError, rec.Outcome)
	assert.Nil(t, rec.IdentityID)
	// No probe embedding existed, so similarity is not applicable.
	assert.Nil(t, rec.Similarity)
}

func TestAuthenticateEmptyGalleryDenied(t *testing.T) {
	ledger := &fakeLedger{}
	svc := newTestService(&fakeProvider{embedding: unitVec(1)}, &fakeGallery{}, ledger)

	dec, err := svc.Authenticate(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeDenied, dec.Outcome)
	assert.Equal(t, match.ScoreNone, dec.Score)
	require.Len(t, ledger.attempts, 1)
	require.NotNil(t, ledger.attempts[0].Similarity)
	assert.Equal(t, match.ScoreNone, *ledger.attempts[0].Similarity)
}

func TestAuthenticateErrorReasons(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason Reason
	}{
		{"provider unavailable", recognizer.ErrProviderUnavailable, ReasonProviderUnavailable},
		{"decode failed", recognizer.ErrDecodeFailed, ReasonDecodeFailed},
		{"multiple faces", recognizer.ErrMultipleFaces, ReasonMultipleFaces},
		{"internal fault", errors.New("tensor shape mismatch"), ReasonExtractionFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &fakeLedger{}
			svc := newTestService(&fakeProvider{err: tc.err}, &fakeGallery{}, ledger)

			dec, err := svc.Authenticate(context.Background(), []byte("frame"))
			require.NoError(t, err)

			assert.Equal(t, models.OutcomeError, dec.Outcome)
			assert.Equal(t, tc.reason, dec.Reason)
			assert.Len(t, ledger.attempts, 1)
		})
	}
}

func TestAuthenticateGalleryUnavailable(t *testing.T) {
	ledger := &fakeLedger{}
	gallery := &fakeGallery{listErr: storage.ErrUnavailable}
	svc := newTestService(&fakeProvider{embedding: unitVec(1)}, gallery, ledger)

	dec, err := svc.Authenticate(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeError, dec.Outcome)
	assert.Equal(t, ReasonStoreUnavailable, dec.Reason)
	assert.Len(t, ledger.attempts, 1)
}

func TestAuthenticateLedgerFailureDoesNotBlockDecision(t *testing.T) {
	e := unitVec(1)
	gallery := &fakeGallery{identities: []models.Identity{{ID: uuid.New(), Name: "Alice", Embedding: e}}}
	ledger := &fakeLedger{err: storage.ErrUnavailable}
	svc := newTestService(&fakeProvider{embedding: e}, gallery, ledger)

	dec, err := svc.Authenticate(context.Background(), []byte("frame"))

	// The ledger failure is surfaced, but the decision is still usable.
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Equal(t, models.OutcomeGranted, dec.Outcome)
	assert.NotEmpty(t, dec.Token)
}

func TestAuthenticateOneLedgerRecordPerCall(t *testing.T) {
	e := unitVec(1)
	gallery := &fakeGallery{identities: []models.Identity{{ID: uuid.New(), Name: "Alice", Embedding: e}}}
	ledger := &fakeLedger{}

	granted := newTestService(&fakeProvider{embedding: e}, gallery, ledger)
	denied := newTestService(&fakeProvider{embedding: []float32{0, 1, 0}}, gallery, ledger)
	errored := newTestService(&fakeProvider{err: recognizer.ErrNoFaceDetected}, gallery, ledger)

	for _, svc := range []*Service{granted, denied, errored} {
		_, err := svc.Authenticate(context.Background(), []byte("frame"))
		require.NoError(t, err)
	}

	assert.Len(t, ledger.attempts, 3)
}

func TestAuthenticateStoresCaptureAndPublishes(t *testing.T) {
	e := unitVec(1)
	gallery := &fakeGallery{identities: []models.Identity{{ID: uuid.New(), Name: "Alice", Embedding: e}}}
	ledger := &fakeLedger{}
	captures := &fakeCaptures{}
	publisher := &fakePublisher{}

	svc := NewService(ServiceConfig{
		Provider:       &fakeProvider{embedding: e},
		Gallery:        gallery,
		Ledger:         ledger,
		Captures:       captures,
		Publisher:      publisher,
		MatchThreshold: 0.40,
		EmbeddingDim:   3,
	})

	_, err := svc.Authenticate(context.Background(), []byte("frame"))
	require.NoError(t, err)

	require.Len(t, captures.keys, 1)
	assert.Contains(t, captures.keys[0], "captures/")
	require.Len(t, ledger.attempts, 1)
	assert.Equal(t, captures.keys[0], ledger.attempts[0].ImageKey)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, models.OutcomeGranted, publisher.events[0].Outcome)
	assert.Equal(t, "Alice", publisher.events[0].IdentityName)
}

func TestAuthenticateCaptureFailureIsBestEffort(t *testing.T) {
	e := unitVec(1)
	gallery := &fakeGallery{identities: []models.Identity{{ID: uuid.New(), Name: "Alice", Embedding: e}}}
	ledger := &fakeLedger{}

	svc := NewService(ServiceConfig{
		Provider:       &fakeProvider{embedding: e},
		Gallery:        gallery,
		Ledger:         ledger,
		Captures:       &fakeCaptures{err: errors.New("bucket gone")},
		MatchThreshold: 0.40,
		EmbeddingDim:   3,
	})

	dec, err := svc.Authenticate(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeGranted, dec.Outcome)
	require.Len(t, ledger.attempts, 1)
	assert.Empty(t, ledger.attempts[0].ImageKey)
}

func TestEnrollThenAuthenticate(t *testing.T) {
	e := unitVec(1)
	gallery := &fakeGallery{}
	ledger := &fakeLedger{}
	svc := newTestService(&fakeProvider{embedding: e}, gallery, ledger)

	ident, err := svc.Enroll(context.Background(), "Bob", []byte("face"))
	require.NoError(t, err)
	assert.Equal(t, "Bob", ident.Name)
	assert.InDelta(t, 1.0, float64(match.Norm(ident.Embedding)), 1e-3)

	dec, err := svc.Authenticate(context.Background(), []byte("frame"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeGranted, dec.Outcome)
	assert.Equal(t, "Bob", dec.Identity.Name)
}

func TestEnrollValidation(t *testing.T) {
	tests := []struct {
		name     string
		personal string
		provider *fakeProvider
		wantErr  error
	}{
		{"empty name", "  ", &fakeProvider{embedding: unitVec(1)}, ErrEmptyName},
		{"no face", "Bob", &fakeProvider{err: recognizer.ErrNoFaceDetected}, recognizer.ErrNoFaceDetected},
		{"multiple faces", "Bob", &fakeProvider{err: recognizer.ErrMultipleFaces}, recognizer.ErrMultipleFaces},
		{"provider down", "Bob", &fakeProvider{err: recognizer.ErrProviderUnavailable}, recognizer.ErrProviderUnavailable},
		{"non-normalized embedding", "Bob", &fakeProvider{embedding: []float32{2, 0, 0}}, ErrInvalidEmbedding},
		{"empty embedding", "Bob", &fakeProvider{embedding: []float32{}}, ErrInvalidEmbedding},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gallery := &fakeGallery{}
			svc := newTestService(tc.provider, gallery, &fakeLedger{})

			_, err := svc.Enroll(context.Background(), tc.personal, []byte("face"))
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, gallery.identities)
		})
	}
}

func TestRemoveIdentityIdempotentOnMissing(t *testing.T) {
	gallery := &fakeGallery{}
	ledger := &fakeLedger{}
	svc := newTestService(&fakeProvider{embedding: unitVec(1)}, gallery, ledger)

	ident, err := svc.Enroll(context.Background(), "Alice", []byte("face"))
	require.NoError(t, err)

	// One attempt references Alice before removal.
	_, err = svc.Authenticate(context.Background(), []byte("frame"))
	require.NoError(t, err)

	require.NoError(t, svc.RemoveIdentity(context.Background(), ident.ID))

	// Removing again reports not-found both times, without side effects.
	err = svc.RemoveIdentity(context.Background(), ident.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	err = svc.RemoveIdentity(context.Background(), ident.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The audit record survives the identity's removal.
	attempts, err := svc.ListAttempts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].IdentityID)
	assert.Equal(t, ident.ID, *attempts[0].IdentityID)
}

func TestDecideGrantedMintsToken(t *testing.T) {
	ident := models.Identity{ID: uuid.New(), Name: "Alice"}
	res := match.Result{Identity: &ident, BestScore: 0.8}

	a := Decide(nil, res)
	b := Decide(nil, res)

	assert.NotEmpty(t, a.Token)
	assert.NotEqual(t, a.Token, b.Token)
}
