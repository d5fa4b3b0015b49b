package match

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facegate/internal/models"
)

func ident(name string, emb []float32) models.Identity {
	return models.Identity{ID: uuid.New(), Name: name, Embedding: emb}
}

func TestBestIdenticalEmbedding(t *testing.T) {
	e := []float32{1, 0, 0}
	gallery := []models.Identity{ident("Alice", e)}

	res := Best(e, gallery, DefaultThreshold)

	require.True(t, res.Matched())
	assert.Equal(t, "Alice", res.Identity.Name)
	assert.InDelta(t, 1.0, res.BestScore, 1e-6)
}

func TestBestEmptyGallery(t *testing.T) {
	res := Best([]float32{1, 0, 0}, nil, DefaultThreshold)

	assert.False(t, res.Matched())
	assert.Equal(t, ScoreNone, res.BestScore)
}

func TestBestSkipsEmptyEmbeddings(t *testing.T) {
	gallery := []models.Identity{
		ident("NoEmbedding", nil),
		ident("AlsoEmpty", []float32{}),
	}

	res := Best([]float32{1, 0, 0}, gallery, DefaultThreshold)

	assert.False(t, res.Matched())
	assert.Equal(t, ScoreNone, res.BestScore)
}

func TestBestThresholdIsStrict(t *testing.T) {
	probe := []float32{1, 0, 0}

	tests := []struct {
		name      string
		embedding []float32
		want      bool
	}{
		// Similarity exactly at the threshold must not match.
		{"exactly at threshold", []float32{0.5, 0.8660254, 0}, false},
		{"just above threshold", []float32{0.51, 0.8602325, 0}, true},
		{"well below threshold", []float32{0.1, 0.99498744, 0}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Best(probe, []models.Identity{ident("X", tc.embedding)}, 0.5)
			assert.Equal(t, tc.want, res.Matched())
			// Best score is reported even without a match.
			assert.InDelta(t, float64(tc.embedding[0]), float64(res.BestScore), 1e-6)
		})
	}
}

func TestBestTieBreakFirstWins(t *testing.T) {
	e := []float32{0, 1, 0}
	gallery := []models.Identity{
		ident("First", e),
		ident("Second", append([]float32(nil), e...)),
	}

	res := Best(e, gallery, DefaultThreshold)

	require.True(t, res.Matched())
	assert.Equal(t, "First", res.Identity.Name)
}

func TestBestHighestScoreWins(t *testing.T) {
	probe := []float32{1, 0, 0}
	gallery := []models.Identity{
		ident("Close", []float32{0.9, 0.43588989, 0}),
		ident("Closer", []float32{0.99, 0.14106736, 0}),
		ident("Far", []float32{0.5, 0.8660254, 0}),
	}

	res := Best(probe, gallery, DefaultThreshold)

	require.True(t, res.Matched())
	assert.Equal(t, "Closer", res.Identity.Name)
	assert.InDelta(t, 0.99, res.BestScore, 1e-6)
}

func TestBestBelowThresholdReportsScore(t *testing.T) {
	probe := []float32{1, 0, 0}
	gallery := []models.Identity{ident("Alice", []float32{0.1, 0.99498744, 0})}

	res := Best(probe, gallery, DefaultThreshold)

	assert.False(t, res.Matched())
	assert.InDelta(t, 0.10, res.BestScore, 1e-6)
}

func TestBestNilProbe(t *testing.T) {
	gallery := []models.Identity{ident("Alice", []float32{1, 0, 0})}

	res := Best(nil, gallery, DefaultThreshold)

	assert.False(t, res.Matched())
	assert.Equal(t, ScoreNone, res.BestScore)
}

func TestBestOppositeVectors(t *testing.T) {
	res := Best([]float32{1, 0, 0}, []models.Identity{ident("Anti", []float32{-1, 0, 0})}, DefaultThreshold)

	assert.False(t, res.Matched())
	assert.InDelta(t, -1.0, res.BestScore, 1e-6)
}
