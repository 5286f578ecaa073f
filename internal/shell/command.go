package shell

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// ResolveShell returns the absolute path of the shell to launch. A configured
// shell is used as-is; otherwise $SHELL and the platform defaults are tried in order.
func ResolveShell(configured string) (string, error) {
	candidates := []string{configured}
	if configured == "" {
		candidates = defaultShells()
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrShellNotFound, candidates)
}

func defaultShells() []string {
	if runtime.GOOS == "windows" {
		return []string{os.Getenv("COMSPEC"), "powershell.exe", "cmd.exe"}
	}
	return []string{os.Getenv("SHELL"), "/bin/bash", "/bin/sh"}
}

// buildCommand resolves the shell and validates the working directory.
func buildCommand(opts Options, dir string, extraEnv ...string) (*exec.Cmd, error) {
	shellPath, err := ResolveShell(opts.Shell)
	if err != nil {
		return nil, &SpawnError{Shell: opts.Shell, Dir: dir, Err: err}
	}

	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, &SpawnError{Shell: shellPath, Dir: dir, Err: fmt.Errorf("%w: %v", ErrInvalidWorkDir, err)}
		}
		if !info.IsDir() {
			return nil, &SpawnError{Shell: shellPath, Dir: dir, Err: fmt.Errorf("%w: not a directory", ErrInvalidWorkDir)}
		}
	}

	cmd := exec.Command(shellPath, opts.Args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Env = append(cmd.Env, extraEnv...)
	return cmd, nil
}
