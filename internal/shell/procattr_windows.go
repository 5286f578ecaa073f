//go:build windows

package shell

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	return p.Signal(sig)
}

func killGroup(p *os.Process) error {
	return p.Kill()
}

func signalPgid(pgid int, sig syscall.Signal) {}

func foregroundGroup(ptmx *os.File) int { return 0 }

func killSession(sid int) {}
