package audio

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/audiocast/internal/config"
	"github.com/audiolibrelab/audiocast/internal/metrics"
)

// ResponseSink is the response a stream is written to.
type ResponseSink interface {
	http.ResponseWriter
	http.Flusher
}

// Manager binds one capture process to each stream request.
type Manager struct {
	launcher  Launcher
	stats     *metrics.Stats
	killGrace time.Duration

	active atomic.Int64
}

// NewManager returns a manager. killGrace bounds how long a process may
// outlive its output before it is interrupted and then killed; zero disables
// the escalation.
func NewManager(launcher Launcher, stats *metrics.Stats, killGrace time.Duration) *Manager {
	return &Manager{
		launcher:  launcher,
		stats:     stats,
		killGrace: killGrace,
	}
}

// Active returns the number of streams currently running.
func (m *Manager) Active() int64 {
	return m.active.Load()
}

// Stream launches a capture process for cfg and copies its output to sink
// until ctx is done or the process stops. Without a selected device it fails
// with ErrNoDeviceSelected before writing anything. Once headers are sent the
// response is committed, so a launch failure ends it with an empty body and
// returns ErrSubprocessLaunch.
func (m *Manager) Stream(ctx context.Context, cfg config.Configuration, sink ResponseSink) error {
	if !cfg.HasDevice() {
		return ErrNoDeviceSelected
	}
	cfg = cfg.Clone()
	args := cfg.InvocationArgs

	h := sink.Header()
	h.Set("Content-Type", ContentType(args))
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	sink.WriteHeader(http.StatusOK)
	sink.Flush()

	sess := newSession(sink, m.killGrace)
	sess.log.Info("Starting capture process", "device", cfg.Device(), "args", strings.Join(args, " "))

	proc, err := m.launcher.Launch(args)
	if err != nil {
		m.stats.LaunchFailed()
		sess.setState(StateClosed)
		sess.log.Error("Capture process failed to start", "error", err)
		return fmt.Errorf("%w: %v", ErrSubprocessLaunch, err)
	}

	m.active.Add(1)
	m.stats.SessionStarted()
	outcome := sess.run(ctx, proc)
	m.stats.SessionEnded(outcome, sess.Bytes())
	m.active.Add(-1)

	return nil
}
