// Package keypress watches the controlling terminal for a quit key while the
// server runs in the foreground.
package keypress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

const ctrlC = 0x03

// ErrNotTerminal is returned by Start when stdin is not a terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// Console wraps an output stream so that lines written while the terminal is
// in raw mode still start at column zero.
type Console struct {
	w   io.Writer
	mu  sync.Mutex
	raw atomic.Bool
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) SetRaw(raw bool) {
	c.raw.Store(raw)
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.raw.Load() {
		return c.w.Write(p)
	}
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Options configures Start.
type Options struct {
	// QuitKeys lists the keys that trigger onQuit. Ctrl-C always does.
	QuitKeys string
	Console  *Console
}

// Start puts the terminal behind in into raw mode and calls onQuit once when a quit key is
// pressed. The returned stop function restores the terminal and is safe to
// call more than once.
func Start(in *os.File, opts Options, onQuit func(key byte)) (stop func(), err error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, ErrNotTerminal
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}, fmt.Errorf("set terminal raw mode: %w", err)
	}
	if opts.Console != nil {
		opts.Console.SetRaw(true)
	}

	var once sync.Once
	stop = func() {
		once.Do(func() {
			if opts.Console != nil {
				opts.Console.SetRaw(false)
			}
			if err := term.Restore(fd, oldState); err != nil {
				slog.Warn("Failed to restore terminal", "error", err)
			}
		})
	}

	// The read blocks until a key arrives, so the goroutine outlives stop
	// when nothing is pressed. It is reaped when the process exits.
	go func() {
		if err := Watch(in, opts.QuitKeys, onQuit); err != nil {
			slog.Debug("Keypress watcher stopped", "error", err)
		}
	}()

	slog.Info("Press a quit key to stop the server", "keys", describe(opts.QuitKeys))
	return stop, nil
}

// Watch reads r one byte at a time until a quit key or Ctrl-C arrives, then
// calls onQuit with that key and returns nil. Other keys are ignored. Read
// errors other than io.EOF are returned.
func Watch(r io.Reader, quitKeys string, onQuit func(key byte)) error {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 && isQuitKey(buf[0], quitKeys) {
			onQuit(buf[0])
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func isQuitKey(b byte, quitKeys string) bool {
	return b == ctrlC || strings.IndexByte(quitKeys, b) >= 0
}

func describe(quitKeys string) string {
	keys := make([]string, 0, len(quitKeys)+1)
	for _, k := range []byte(quitKeys) {
		keys = append(keys, string(k))
	}
	return strings.Join(append(keys, "Ctrl-C"), ", ")
}
