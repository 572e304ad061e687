package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Local is the on-device fallback synthesizer. It spawns a local TTS
// process that writes WAV to stdout, so the session keeps a voice when the
// network provider is down.
type Local struct {
	binary string
}

// NewLocal creates the fallback synthesizer. An empty binary defaults to
// espeak-ng.
func NewLocal(binary string) *Local {
	if binary == "" {
		binary = "espeak-ng"
	}
	return &Local{binary: binary}
}

// Available reports whether the local TTS binary can be found.
func (l *Local) Available() bool {
	_, err := exec.LookPath(l.binary)
	return err == nil
}

// Synthesize implements Synthesizer. The profile's language selects the
// local voice; gender variants are not available locally.
func (l *Local) Synthesize(ctx context.Context, text string, profile VoiceProfile) ([]byte, error) {
	args := []string{"--stdout"}
	if profile.Language == "sw" {
		args = append(args, "-v", "sw")
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, l.binary, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("local synthesis: %w: %s", err, stderr.String())
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("local synthesis produced no audio")
	}
	return out.Bytes(), nil
}
