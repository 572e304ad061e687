package audio

import "errors"

var (
	// ErrSinkClosed is returned when writing to a closed playback sink.
	ErrSinkClosed = errors.New("playback sink closed")

	// ErrSinkSuspended is returned when the output context is suspended by a
	// platform policy. The bridge resumes the sink and retries; callers never
	// see this error.
	ErrSinkSuspended = errors.New("playback sink suspended")
)
