//go:build !linux

package audio

import "os/exec"

func setProcAttr(cmd *exec.Cmd) {}

func startProcess(cmd *exec.Cmd) (release func(), err error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return func() {}, nil
}

func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
