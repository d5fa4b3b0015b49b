// Package match implements the nearest-identity decision over an enrolled
// gallery: cosine similarity via dot product of L2-normalized embeddings,
// a strict-greater-than threshold, and a deterministic first-seen tie-break.
package match

import (
	"github.com/your-org/facegate/internal/models"
)

// ScoreNone is reported when no gallery candidate was compared at all
// (empty gallery, or every stored embedding was unusable).
const ScoreNone float32 = -1

// DefaultThreshold is the default operating point for ArcFace-family
// embeddings: cosine similarities of 0.31/0.40/0.48/0.54 correspond roughly
// to false-accept rates of 1e-3/1e-4/1e-5/1e-6.
const DefaultThreshold float32 = 0.40

// Result holds the outcome of scanning the gallery for a probe.
type Result struct {
	// Identity is the matched identity, nil when no candidate's similarity
	// strictly exceeded the threshold.
	Identity *models.Identity
	// BestScore is the highest similarity seen, even below threshold
	// (reported for audit). ScoreNone when nothing was compared.
	BestScore float32
}

// Matched reports whether the scan produced a match.
func (r Result) Matched() bool { return r.Identity != nil }

// Best scans the gallery and returns the best match for probe.
//
// Every identity with a non-empty embedding is scored by dot product. The
// running best is updated on strict '>', so at equal score the identity seen
// first in gallery order wins. An identity only counts as a match when its
// score strictly exceeds threshold; a below-threshold best is still reported.
func Best(probe []float32, gallery []models.Identity, threshold float32) Result {
	res := Result{BestScore: ScoreNone}
	if len(probe) == 0 {
		return res
	}

	bestIdx := -1
	for i := range gallery {
		if len(gallery[i].Embedding) == 0 {
			continue
		}
		score := Dot(probe, gallery[i].Embedding)
		if bestIdx == -1 || score > res.BestScore {
			res.BestScore = score
			bestIdx = i
		}
	}

	if bestIdx >= 0 && res.BestScore > threshold {
		res.Identity = &gallery[bestIdx]
	}
	return res
}
