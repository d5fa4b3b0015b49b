package recognizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	faces  []Face
	err    error
	closed bool
}

func (f *fakeExtractor) Extract([]byte) ([]Face, error) { return f.faces, f.err }
func (f *fakeExtractor) Close()                         { f.closed = true }

func unitFace(conf, area float32, lead float32) Face {
	return Face{Embedding: []float32{lead, 0, 0}, Confidence: conf, Area: area}
}

func TestProviderInitializesExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	ext := &fakeExtractor{faces: []Face{unitFace(0.9, 100, 1)}}
	p := NewProvider(func() (Extractor, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond) // widen the first-call race window
		return ext, nil
	}, time.Second, PolicyFirst)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Embed(context.Background(), []byte("img"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, p.Ready())
}

func TestProviderInitFailureIsLatched(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(func() (Extractor, error) {
		calls.Add(1)
		return nil, errors.New("model file missing")
	}, time.Second, PolicyFirst)

	for i := 0; i < 3; i++ {
		_, err := p.Embed(context.Background(), []byte("img"))
		require.ErrorIs(t, err, ErrProviderUnavailable)
	}

	// Failed init must not be re-attempted per request.
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, p.Ready())
}

func TestProviderInitTimeout(t *testing.T) {
	release := make(chan struct{})
	p := NewProvider(func() (Extractor, error) {
		<-release
		return &fakeExtractor{}, nil
	}, 10*time.Millisecond, PolicyFirst)
	defer close(release)

	_, err := p.Embed(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestProviderContextCancelledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	p := NewProvider(func() (Extractor, error) {
		<-release
		return &fakeExtractor{}, nil
	}, time.Minute, PolicyFirst)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Embed(ctx, []byte("img"))
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestProviderNoFace(t *testing.T) {
	p := NewProvider(func() (Extractor, error) {
		return &fakeExtractor{}, nil
	}, time.Second, PolicyFirst)

	_, err := p.Embed(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrNoFaceDetected)
}

func TestProviderExtractErrorPropagates(t *testing.T) {
	p := NewProvider(func() (Extractor, error) {
		return &fakeExtractor{err: ErrDecodeFailed}, nil
	}, time.Second, PolicyFirst)

	_, err := p.Embed(context.Background(), []byte("not an image"))
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestSelectPrimaryPolicies(t *testing.T) {
	faces := []Face{
		unitFace(0.80, 900, 1), // first in detector order
		unitFace(0.95, 400, 2), // most confident
		unitFace(0.70, 2500, 3), // largest
	}

	tests := []struct {
		policy   Policy
		wantLead float32
	}{
		{PolicyFirst, 1},
		{PolicyConfidence, 2},
		{PolicyLargest, 3},
	}

	for _, tc := range tests {
		t.Run(string(tc.policy), func(t *testing.T) {
			face, err := selectPrimary(faces, tc.policy)
			require.NoError(t, err)
			assert.Equal(t, tc.wantLead, face.Embedding[0])
		})
	}
}

func TestSelectPrimarySingle(t *testing.T) {
	one := []Face{unitFace(0.9, 100, 1)}
	face, err := selectPrimary(one, PolicySingle)
	require.NoError(t, err)
	assert.Equal(t, float32(1), face.Embedding[0])

	two := append(one, unitFace(0.8, 50, 2))
	_, err = selectPrimary(two, PolicySingle)
	assert.ErrorIs(t, err, ErrMultipleFaces)
}

func TestSelectPrimaryTieKeepsEarlierFace(t *testing.T) {
	faces := []Face{
		unitFace(0.9, 400, 1),
		unitFace(0.9, 400, 2),
	}

	for _, policy := range []Policy{PolicyLargest, PolicyConfidence} {
		face, err := selectPrimary(faces, policy)
		require.NoError(t, err)
		assert.Equal(t, float32(1), face.Embedding[0], "policy %s", policy)
	}
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"first", "largest", "confidence", "single"} {
		_, err := ParsePolicy(s)
		assert.NoError(t, err)
	}

	_, err := ParsePolicy("biggest")
	assert.Error(t, err)
}

func TestProviderCloseReleasesExtractor(t *testing.T) {
	ext := &fakeExtractor{faces: []Face{unitFace(0.9, 100, 1)}}
	p := NewProvider(func() (Extractor, error) { return ext, nil }, time.Second, PolicyFirst)

	require.NoError(t, p.Warm(context.Background()))
	p.Close()
	assert.True(t, ext.closed)
}
