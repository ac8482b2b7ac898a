package keypress

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func TestWatch_QuitKey(t *testing.T) {
	var got []byte
	err := Watch(strings.NewReader("abqzq"), "q", func(key byte) {
		got = append(got, key)
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if string(got) != "q" {
		t.Errorf("Expected a single q, got %q", got)
	}
}

func TestWatch_CtrlCAlwaysQuits(t *testing.T) {
	called := false
	if err := Watch(bytes.NewReader([]byte{'x', ctrlC}), "", func(key byte) {
		called = key == ctrlC
	}); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if !called {
		t.Errorf("Expected Ctrl-C to trigger quit")
	}
}

func TestWatch_EOFWithoutQuit(t *testing.T) {
	called := false
	if err := Watch(strings.NewReader("hello"), "q", func(byte) { called = true }); err != nil {
		t.Errorf("Expected nil on EOF, got %v", err)
	}
	if called {
		t.Errorf("Expected no quit without a quit key")
	}
}

func TestWatch_ReadError(t *testing.T) {
	r, w := io.Pipe()
	boom := errors.New("boom")
	w.CloseWithError(boom)

	if err := Watch(r, "q", func(byte) {}); !errors.Is(err, boom) {
		t.Errorf("Expected read error, got %v", err)
	}
}

func TestWatch_Pipe(t *testing.T) {
	r, w := io.Pipe()
	quit := make(chan byte, 1)
	go Watch(r, "qQ", func(key byte) { quit <- key })

	w.Write([]byte("x"))
	w.Write([]byte("Q"))

	select {
	case key := <-quit:
		if key != 'Q' {
			t.Errorf("Expected Q, got %q", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected quit callback")
	}
	w.Close()
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)

	c.Write([]byte("one\n"))
	c.SetRaw(true)
	n, err := c.Write([]byte("two\nthree\n"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len("two\nthree\n") {
		t.Errorf("Expected caller length, got %d", n)
	}
	c.SetRaw(false)
	c.Write([]byte("four\n"))

	if out.String() != "one\ntwo\r\nthree\r\nfour\n" {
		t.Errorf("Unexpected console output %q", out.String())
	}
}

func TestStart_NotTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	stop, err := Start(f, Options{QuitKeys: "q"}, func(byte) {})
	if !errors.Is(err, ErrNotTerminal) {
		t.Errorf("Expected ErrNotTerminal, got %v", err)
	}
	stop()
}

func TestDescribe(t *testing.T) {
	if got := describe("qx"); got != "q, x, Ctrl-C" {
		t.Errorf("Expected key list, got %q", got)
	}
}
