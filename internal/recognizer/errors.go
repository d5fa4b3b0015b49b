package recognizer

import "errors"

var (
	// ErrProviderUnavailable is returned when the embedding provider failed
	// to initialize, or a caller timed out waiting for initialization. Once
	// initialization has failed it is not retried automatically.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrDecodeFailed means the image bytes could not be decoded.
	ErrDecodeFailed = errors.New("could not decode image")

	// ErrNoFaceDetected means the detector found no face in the image.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrMultipleFaces is returned under the "single" primary-face policy
	// when more than one face is present.
	ErrMultipleFaces = errors.New("multiple faces detected")
)
