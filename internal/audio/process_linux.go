package audio

import (
	"os/exec"
	"runtime"
	"sync"
	"syscall"
)

// setProcAttr puts the child in its own process group and asks for SIGKILL
// when its parent goes away. Pdeathsig tracks the OS thread that forked the
// child, not the whole process, so startProcess pins that thread.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

// startProcess starts cmd from a goroutine locked to its OS thread and keeps
// that thread alive until release is called, after the child was reaped.
func startProcess(cmd *exec.Cmd) (release func(), err error) {
	started := make(chan error, 1)
	reaped := make(chan struct{})

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		err := cmd.Start()
		started <- err
		if err == nil {
			<-reaped
		}
	}()

	if err := <-started; err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { close(reaped) }) }, nil
}

// killProcess kills the whole process group.
func killProcess(cmd *exec.Cmd) error {
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
