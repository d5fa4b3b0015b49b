// Package authn composes the recognizer and matcher into grant/deny
// decisions and writes the attempt ledger.
package authn

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/match"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/recognizer"
)

// Reason classifies why an attempt ended in the error outcome.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonNoFace              Reason = "no_face"
	ReasonDecodeFailed        Reason = "decode_failed"
	ReasonProviderUnavailable Reason = "provider_unavailable"
	ReasonMultipleFaces       Reason = "multiple_faces"
	ReasonStoreUnavailable    Reason = "store_unavailable"
	ReasonExtractionFailed    Reason = "extraction_failed"
)

// Decision is the outcome of one authentication attempt. It is the only
// thing the pipeline hands to the external session layer; no ambient
// session state is touched.
type Decision struct {
	Outcome  models.Outcome
	Identity *models.Identity
	// Score is the best similarity observed; match.ScoreNone when the
	// gallery produced no comparisons. Meaningless when HasScore is false.
	Score float32
	// HasScore is false when no probe embedding existed (no face, decode
	// failure, provider down), in which case the ledger stores NULL.
	HasScore bool
	Reason   Reason
	Details  string
	// Token is a fresh credential for the session layer, set only on grant.
	Token string
}

// Decide turns the probe error (if any) and the match result into a
// Decision. It is a pure function of its inputs apart from token minting.
func Decide(probeErr error, res match.Result) Decision {
	if probeErr != nil {
		return Decision{
			Outcome: models.OutcomeError,
			Reason:  classify(probeErr),
			Details: describe(probeErr),
		}
	}

	if res.Matched() {
		return Decision{
			Outcome:  models.OutcomeGranted,
			Identity: res.Identity,
			Score:    res.BestScore,
			HasScore: true,
			Details:  fmt.Sprintf("recognized %s (similarity %.4f)", res.Identity.Name, res.BestScore),
			Token:    uuid.NewString(),
		}
	}

	details := "face detected, but no enrolled match found"
	if res.BestScore > match.ScoreNone {
		details += fmt.Sprintf(" (best similarity %.4f)", res.BestScore)
	}
	return Decision{
		Outcome:  models.OutcomeDenied,
		Score:    res.BestScore,
		HasScore: true,
		Details:  details,
	}
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, recognizer.ErrNoFaceDetected):
		return ReasonNoFace
	case errors.Is(err, recognizer.ErrDecodeFailed):
		return ReasonDecodeFailed
	case errors.Is(err, recognizer.ErrProviderUnavailable):
		return ReasonProviderUnavailable
	case errors.Is(err, recognizer.ErrMultipleFaces):
		return ReasonMultipleFaces
	case errors.Is(err, ErrGalleryUnavailable):
		return ReasonStoreUnavailable
	default:
		return ReasonExtractionFailed
	}
}

func describe(err error) string {
	switch classify(err) {
	case ReasonNoFace:
		return "no face detected in the captured image"
	case ReasonDecodeFailed:
		return "could not decode the captured image"
	case ReasonProviderUnavailable:
		return "face recognition service unavailable"
	case ReasonMultipleFaces:
		return "more than one face in the captured image"
	case ReasonStoreUnavailable:
		return "identity gallery unavailable"
	default:
		return "embedding extraction failed"
	}
}
