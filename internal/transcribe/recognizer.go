// Package transcribe turns user audio into text: a continuous on-device
// recognition contract for interactive sessions, and a server-side batch
// path that cleans noise before transcribing.
package transcribe

import "errors"

// Result is one recognition update. Interim results update the live
// transcript for display only and must never reach the dialogue step.
type Result struct {
	Text  string
	Final bool
}

// Recognizer is the continuous recognition contract. Implementations stream
// interim and final results until Stop; they never block indefinitely.
type Recognizer interface {
	// Start begins recognition, acquiring the capture device.
	Start() error

	// Stop ends recognition and releases the capture device. Safe to call
	// when not started.
	Stop()

	// Results streams recognition updates. Closed after Stop.
	Results() <-chan Result

	// Errors streams classified recognition errors. Closed after Stop.
	Errors() <-chan error
}

var (
	// ErrPermissionDenied means microphone access was refused. It is
	// user-actionable and does not end the session.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrRecognition is a generic recognition failure; recognition stops.
	ErrRecognition = errors.New("speech recognition failed")
)

// ClassifyError maps a provider error code onto the package taxonomy.
// no-speech is silence, not an error: it returns nil and callers ignore it.
func ClassifyError(code string) error {
	switch code {
	case "not-allowed", "permission-denied":
		return ErrPermissionDenied
	case "no-speech":
		return nil
	default:
		return ErrRecognition
	}
}
