package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrSynthesisUnavailable means both the primary and fallback synthesizers
// failed. The turn still completes; only the spoken rendering is skipped.
var ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")

// Fallback chains a primary synthesizer with an on-device secondary. The
// primary can be disabled outright by configuration, in which case every
// call goes straight to the secondary.
type Fallback struct {
	primary         Synthesizer
	secondary       Synthesizer
	primaryDisabled bool
	logger          zerolog.Logger
}

// NewFallback builds the chain. secondary may be nil when no local
// synthesizer exists on the host.
func NewFallback(primary, secondary Synthesizer, primaryDisabled bool, logger zerolog.Logger) *Fallback {
	return &Fallback{
		primary:         primary,
		secondary:       secondary,
		primaryDisabled: primaryDisabled,
		logger:          logger.With().Str("component", "speech").Logger(),
	}
}

// Synthesize implements Synthesizer.
func (f *Fallback) Synthesize(ctx context.Context, text string, profile VoiceProfile) ([]byte, error) {
	if !f.primaryDisabled && f.primary != nil {
		audio, err := f.primary.Synthesize(ctx, text, profile)
		if err == nil {
			return audio, nil
		}
		f.logger.Warn().Err(err).Msg("primary synthesis failed, trying local fallback")
	}

	if f.secondary == nil {
		return nil, ErrSynthesisUnavailable
	}
	audio, err := f.secondary.Synthesize(ctx, text, profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisUnavailable, err)
	}
	return audio, nil
}
