package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a running capture process.
type Process interface {
	Stdout() io.ReadCloser
	Stderr() io.ReadCloser
	// Interrupt asks the process to stop and finalize its output.
	Interrupt() error
	Kill() error
	// Wait must only be called once Stdout and Stderr have been drained.
	Wait() error
	Pid() int
}

// Launcher starts capture processes.
type Launcher interface {
	Launch(args []string) (Process, error)
}

// ExecLauncher starts the capture binary as a child process.
type ExecLauncher struct {
	Binary string
}

func NewExecLauncher(binary string) *ExecLauncher {
	return &ExecLauncher{Binary: binary}
}

func (l *ExecLauncher) Launch(args []string) (Process, error) {
	if len(args) == 0 {
		return nil, errors.New("empty argument list")
	}

	cmd := exec.Command(l.Binary, args...)
	setProcAttr(cmd)

	stdout, stderr, err := pipes(cmd)
	if err != nil {
		return nil, err
	}

	release, err := startProcess(cmd)
	if err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, fmt.Errorf("failed to start %s: %w", l.Binary, err)
	}

	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr, release: release}, nil
}

// pipes prepares stdout and stderr for cmd. If the second pipe cannot be
// created the first one is closed so no descriptor leaks.
func pipes(cmd *exec.Cmd) (io.ReadCloser, io.ReadCloser, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe creation failure: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		return nil, nil, fmt.Errorf("stderr pipe creation failure: %w", err)
	}

	return stdout, stderr, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	release func()
}

func (p *execProcess) Stdout() io.ReadCloser { return p.stdout }
func (p *execProcess) Stderr() io.ReadCloser { return p.stderr }
func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }

func (p *execProcess) Wait() error {
	defer p.release()
	return p.cmd.Wait()
}

// Interrupt sends SIGINT asking the process to stop. Its stdout is closed at
// the same time, so nothing it writes afterwards reaches the client.
// Platforms without interrupt delivery fall back to a kill.
func (p *execProcess) Interrupt() error {
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return p.Kill()
	}
	return nil
}

func (p *execProcess) Kill() error {
	err := killProcess(p.cmd)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
