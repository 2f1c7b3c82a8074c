package harness

import (
	"fmt"
	"io"
	"log/slog"
)

// Host is the set of process capabilities the embedding program hands to
// the harness. It replaces probing ambient globals: whatever is nil here is
// simply not available to hosted scripts.
type Host struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// StdinProvider answers reads of standard input made by hosted scripts.
type StdinProvider interface {
	// ReadLine returns the next line without its terminator. ok is false
	// when there is no more data.
	ReadLine() (line string, ok bool)
}

// NoopStdin never returns data. Every read is logged so that scripts which
// unexpectedly depend on stdin are visible in the run log.
type NoopStdin struct {
	Logger *slog.Logger
}

func (s NoopStdin) ReadLine() (string, bool) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Debug("stdin read", "provider", "noop")
	return "", false
}

// hostIO is the IO abstraction sessions read and write through. It only
// exists after a successful Boot.
type hostIO struct {
	stdin  StdinProvider
	stdout io.Writer
	stderr io.Writer
}

// Boot is the one-time initialization hook. It must be called before any
// script runs; it verifies the host capabilities and installs the stdin
// provider. Calling it twice returns ErrAlreadyBooted.
func (h *Harness) Boot() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.io != nil {
		return ErrAlreadyBooted
	}
	if h.host.Stdin == nil {
		return &BootError{Capability: "stdin", Err: ErrMissingCapability}
	}
	if h.host.Stdout == nil {
		return &BootError{Capability: "stdout", Err: ErrMissingCapability}
	}

	stdin := h.stdin
	if stdin == nil {
		stdin = NoopStdin{Logger: h.logger}
	}
	stderr := h.host.Stderr
	if stderr == nil {
		stderr = h.host.Stdout
	}
	h.io = &hostIO{
		stdin:  stdin,
		stdout: h.host.Stdout,
		stderr: stderr,
	}
	h.logger.Debug("harness booted", "stdin", fmt.Sprintf("%T", stdin))
	return nil
}
