package audio

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/audiocast/internal/metrics"
)

const chunkSize = 32 * 1024

// State is the lifecycle position of a Session.
type State int32

const (
	StateStarting State = iota
	StateStreaming
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session pairs one capture process with one response. It is owned by the
// request that created it.
type Session struct {
	ID      string
	Created time.Time

	proc      Process
	sink      ResponseSink
	killGrace time.Duration
	log       *slog.Logger

	state         atomic.Int32
	interruptOnce sync.Once
	closing       atomic.Bool
	bytes         atomic.Int64
}

func newSession(sink ResponseSink, killGrace time.Duration) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		Created:   time.Now(),
		sink:      sink,
		killGrace: killGrace,
		log:       slog.With("session", id),
	}
	s.setState(StateStarting)
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Bytes returns how much audio has been written to the response.
func (s *Session) Bytes() int64 {
	return s.bytes.Load()
}

// run forwards output until the client goes away or the process stops, then
// reaps the process. It returns the metrics outcome.
func (s *Session) run(ctx context.Context, proc Process) string {
	s.proc = proc
	s.setState(StateStreaming)

	copyDone := make(chan error, 1)
	var g errgroup.Group
	g.Go(func() error {
		copyDone <- s.forward()
		return nil
	})
	g.Go(func() error {
		s.pumpStderr()
		return nil
	})

	var outcome string
	select {
	case <-ctx.Done():
		outcome = metrics.OutcomeClientGone
		s.terminate("client disconnected")
		<-copyDone
	case err := <-copyDone:
		if err != nil {
			outcome = metrics.OutcomeWriteError
			s.log.Debug("Response write failed", "error", err)
			s.terminate("response write failed")
		} else {
			outcome = metrics.OutcomeProcessExit
		}
	}

	s.setState(StateDraining)
	waitErr := s.reap(&g)
	s.setState(StateClosed)

	switch {
	case waitErr == nil:
		s.log.Debug("Capture process exited", "pid", proc.Pid())
	case s.closing.Load():
		// stdout was closed under it, so SIGPIPE or an interrupt status is expected
		s.log.Debug("Capture process exited after stop", "pid", proc.Pid(), "status", waitErr)
	default:
		s.log.Warn("Capture process exited with error", "pid", proc.Pid(), "error", waitErr)
	}

	s.log.Info("Stream ended",
		"outcome", outcome,
		"bytes", humanize.Bytes(uint64(s.Bytes())),
		"duration", time.Since(s.Created).Round(time.Millisecond))
	return outcome
}

// forward copies stdout to the response one chunk at a time, flushing after
// every write. A write error is returned; read errors end the copy.
func (s *Session) forward() error {
	buf := make([]byte, chunkSize)
	stdout := s.proc.Stdout()
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if s.closing.Load() {
				return nil
			}
			if _, werr := s.sink.Write(buf[:n]); werr != nil {
				return werr
			}
			s.sink.Flush()
			if s.bytes.Add(int64(n)) == int64(n) {
				s.log.Debug("First audio bytes sent", "latency", time.Since(s.Created).Round(time.Millisecond))
			}
		}
		if err != nil {
			return nil
		}
	}
}

// pumpStderr logs every diagnostic line. Lines mentioning an error are
// logged at error level.
func (s *Session) pumpStderr() {
	stderr := s.proc.Stderr()
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLinesCR)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "error") {
			s.log.Error("ffmpeg", "line", line)
		} else {
			s.log.Debug("ffmpeg", "line", line)
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Debug("Stopped reading ffmpeg diagnostics", "error", err)
		// keep the pipe empty so the process never blocks on stderr
		_, _ = io.Copy(io.Discard, stderr)
	}
}

// terminate interrupts the process and closes its stdout. Only the first call
// has any effect; it reports whether this call sent the interrupt.
func (s *Session) terminate(reason string) bool {
	sent := false
	s.interruptOnce.Do(func() {
		sent = true
		s.closing.Store(true)
		s.log.Info("Stopping capture process", "reason", reason, "pid", s.proc.Pid())
		if err := s.proc.Interrupt(); err != nil {
			s.log.Debug("Failed to interrupt capture process", "error", err)
		}
		_ = s.proc.Stdout().Close()
	})
	return sent
}

// reap waits for the pumps and then the process. With a positive kill grace
// a process that outlives its output is interrupted, and killed if it is
// still running one grace period after the interrupt.
func (s *Session) reap(g *errgroup.Group) error {
	done := make(chan error, 1)
	go func() {
		_ = g.Wait()
		done <- s.proc.Wait()
	}()

	if s.killGrace <= 0 {
		return <-done
	}

	timer := time.NewTimer(s.killGrace)
	defer timer.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-timer.C:
			if s.terminate("process still running after output ended") {
				timer.Reset(s.killGrace)
				continue
			}
			s.log.Warn("Capture process did not exit after interrupt, killing", "pid", s.proc.Pid())
			if err := s.proc.Kill(); err != nil {
				s.log.Error("Failed to kill capture process", "pid", s.proc.Pid(), "error", err)
			}
			return <-done
		}
	}
}

// scanLinesCR is bufio.ScanLines that also breaks on a bare carriage return,
// which ffmpeg uses for its progress line.
func scanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
