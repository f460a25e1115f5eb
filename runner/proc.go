package runner

// This file contains the subprocess lifecycle: spawn with an environment
// overlay, wait with a timeout, escalate to kill and wait again, and
// synthesize diagnostics when even the kill does not take.

import (
	"bytes"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

const (
	killedTrailer = "\n\nKilled due timeout\n"
	zombieStderr  = "Zombie detected?! Proc can't be killed due timeout!"
)

// Outcome is the captured result of one subprocess invocation.
type Outcome struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is nil when the process could not be killed after two full
	// timeout cycles
	ExitCode *int
}

// Ok reports whether the process exited on its own with status zero.
func (o Outcome) Ok() bool {
	return o.ExitCode != nil && *o.ExitCode == 0
}

// Priority is the artifact priority derived from this outcome: the exit
// code when known, otherwise 1 so an unkillable process still ranks as a
// failure.
func (o Outcome) Priority() int {
	if o.ExitCode == nil {
		return 1
	}
	return *o.ExitCode
}

// procSpec describes one subprocess invocation.
type procSpec struct {
	argv []string
	dir  string
	// env entries layered over os.Environ; never a full replacement
	env     []string
	timeout time.Duration
	// combined merges stderr into stdout; kphp interleaves its errors on
	// stdout so the build stage captures a single stream
	combined bool
}

// runProc starts the process and waits up to spec.timeout. On expiry it
// kills the process and waits up to the same timeout again; a process that
// survives both cycles is reported as a zombie with a nil exit code.
func runProc(logger zerolog.Logger, spec procSpec) (Outcome, error) {
	cmd := exec.Command(spec.argv[0], spec.argv[1:]...)
	cmd.Dir = spec.dir
	if len(spec.env) > 0 {
		cmd.Env = append(os.Environ(), spec.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if spec.combined {
		cmd.Stderr = &stdout
	} else {
		cmd.Stderr = &stderr
	}

	logger.Debug().
		Str("command", shellescape.QuoteCommand(spec.argv)).
		Str("dir", spec.dir).
		Msg("Starting process")

	if err := cmd.Start(); err != nil {
		return Outcome{}, err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	killed := false
	select {
	case <-done:
	case <-time.After(spec.timeout):
		logger.Debug().
			Str("command", spec.argv[0]).
			Dur("timeout", spec.timeout).
			Msg("Process timed out, killing")
		_ = cmd.Process.Kill()
		select {
		case <-done:
			killed = true
		case <-time.After(spec.timeout):
			return Outcome{Stderr: []byte(zombieStderr)}, nil
		}
	}

	code := cmd.ProcessState.ExitCode()
	out := Outcome{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: &code,
	}
	if killed {
		out.Stderr = append(out.Stderr, killedTrailer...)
	}
	return out, nil
}

// clearDir recreates dir empty. Some tests drop permissions on their own
// scratch files, so a failed removal forces 0777 over the subtree and
// retries once.
func clearDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			_ = os.Chmod(path, 0o777)
			return nil
		})
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return os.MkdirAll(dir, 0o755)
}

// removeDirIfEmpty drops dir when the stage left nothing behind in it.
func removeDirIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		_ = os.RemoveAll(dir)
	}
}
