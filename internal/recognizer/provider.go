// Package recognizer turns captured image bytes into face embeddings.
//
// The Provider owns the lifecycle of the underlying ONNX extractor: it is
// initialized exactly once, lazily, under a guard, and an initialization
// failure is latched so later requests fail fast instead of re-loading the
// models on every call.
package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/facegate/internal/observability"
)

// Face is one detected face with its embedding, in detector output order.
type Face struct {
	Embedding  []float32
	Confidence float32
	// Area is the bounding-box area in pixels, used by the largest policy.
	Area float32
}

// Extractor produces all detected faces from raw image bytes.
// Implementations are not assumed safe for concurrent use; the Provider
// serializes access.
type Extractor interface {
	Extract(imageData []byte) ([]Face, error)
	Close()
}

// Policy selects the probe face when the detector returns more than one.
type Policy string

const (
	// PolicyFirst takes the first face in detector output order.
	PolicyFirst Policy = "first"
	// PolicyLargest takes the face with the largest bounding box.
	PolicyLargest Policy = "largest"
	// PolicyConfidence takes the face with the highest detector score.
	PolicyConfidence Policy = "confidence"
	// PolicySingle rejects images containing more than one face.
	PolicySingle Policy = "single"
)

// ParsePolicy validates a configured policy string.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyFirst, PolicyLargest, PolicyConfidence, PolicySingle:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown primary face policy %q", s)
}

// Provider wraps an Extractor with guarded one-time initialization.
type Provider struct {
	factory     func() (Extractor, error)
	initTimeout time.Duration
	policy      Policy

	started chan struct{} // drained by the one caller that initializes
	done    chan struct{} // closed when initialization finished
	ext     Extractor
	initErr error

	// extMu serializes Extract calls: the ONNX sessions reuse bound
	// input/output tensors and are not safe for concurrent Run.
	extMu sync.Mutex
}

// NewProvider returns a Provider that will build its Extractor via factory
// on first use. Callers waiting on initialization give up after initTimeout
// (or their context deadline, whichever comes first).
func NewProvider(factory func() (Extractor, error), initTimeout time.Duration, policy Policy) *Provider {
	p := &Provider{
		factory:     factory,
		initTimeout: initTimeout,
		policy:      policy,
		started:     make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	p.started <- struct{}{}
	return p
}

// initialize runs the factory exactly once. The buffered started channel is
// the guard: only one caller ever drains it.
func (p *Provider) initialize() {
	select {
	case <-p.started:
	default:
		return // someone else is initializing or already did
	}

	go func() {
		slog.Info("initializing embedding provider")
		start := time.Now()
		ext, err := p.factory()
		if err != nil {
			p.initErr = err
			slog.Error("embedding provider init failed", "error", err)
		} else {
			p.ext = ext
			observability.ProviderReady.Set(1)
			slog.Info("embedding provider ready", "took", time.Since(start).String())
		}
		close(p.done)
	}()
}

// extractor blocks until initialization completes, the context is done, or
// the init timeout elapses.
func (p *Provider) extractor(ctx context.Context) (Extractor, error) {
	p.initialize()

	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for initialization: %v", ErrProviderUnavailable, ctx.Err())
	case <-time.After(p.initTimeout):
		return nil, fmt.Errorf("%w: initialization timed out after %s", ErrProviderUnavailable, p.initTimeout)
	}

	if p.initErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, p.initErr)
	}
	return p.ext, nil
}

// Warm triggers initialization ahead of the first request and waits for it.
func (p *Provider) Warm(ctx context.Context) error {
	_, err := p.extractor(ctx)
	return err
}

// Ready reports readiness without blocking.
func (p *Provider) Ready() bool {
	select {
	case <-p.done:
		return p.initErr == nil
	default:
		return false
	}
}

// Embed returns the probe embedding for the primary face in imageData.
// Failure modes map onto the package sentinel errors; internal extractor
// faults are returned as errors, never panics.
func (p *Provider) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	ext, err := p.extractor(ctx)
	if err != nil {
		return nil, err
	}

	p.extMu.Lock()
	faces, err := ext.Extract(imageData)
	p.extMu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	primary, err := selectPrimary(faces, p.policy)
	if err != nil {
		return nil, err
	}
	return primary.Embedding, nil
}

// selectPrimary applies the multi-face policy. Ties keep the earlier face,
// so the result is deterministic for a given detector output.
func selectPrimary(faces []Face, policy Policy) (Face, error) {
	switch policy {
	case PolicySingle:
		if len(faces) > 1 {
			return Face{}, fmt.Errorf("%w: %d faces", ErrMultipleFaces, len(faces))
		}
		return faces[0], nil
	case PolicyLargest:
		best := faces[0]
		for _, f := range faces[1:] {
			if f.Area > best.Area {
				best = f
			}
		}
		return best, nil
	case PolicyConfidence:
		best := faces[0]
		for _, f := range faces[1:] {
			if f.Confidence > best.Confidence {
				best = f
			}
		}
		return best, nil
	default: // PolicyFirst, the inherited detector-order contract
		return faces[0], nil
	}
}

// Close releases the extractor if it was ever built.
func (p *Provider) Close() {
	select {
	case <-p.done:
		if p.ext != nil {
			p.ext.Close()
		}
		observability.ProviderReady.Set(0)
	default:
	}
}
