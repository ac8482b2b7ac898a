package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Prober runs a listing command and returns everything it printed.
type Prober interface {
	Probe(ctx context.Context, name string, args ...string) (string, error)
}

// ExecProber runs probes as local processes.
type ExecProber struct{}

// Probe returns the combined output of the command. A non-zero exit is not an
// error: ffmpeg always fails when asked to list devices. Failing to start and
// running past the context deadline are.
func (ExecProber) Probe(ctx context.Context, name string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s did not finish: %w", name, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to run %s: %w", name, err)
		}
	}
	return out.String(), nil
}
