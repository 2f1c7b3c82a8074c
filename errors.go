package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

var (
	// ErrMissingCapability is returned by Boot when the Host lacks a required stream.
	ErrMissingCapability = errors.New("missing host capability")
	ErrAlreadyBooted     = errors.New("harness is already booted")
	ErrNotBooted         = errors.New("harness is not booted")
)

const (
	ExitFailure   = 1
	ExitConfig    = 2
	ExitException = 64
)

// AssertionError is the fatal outcome of a failed assertion primitive.
type AssertionError struct {
	Assertion string
	Expected  string
	Actual    string
	Message   string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Assertion)
	b.WriteString(" failed")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, " (expected %s, got %s)", e.Expected, e.Actual)
	}
	return b.String()
}

func (e *AssertionError) ExitCode() int {
	return ExitFailure
}

// ExitError is raised by the exit() global.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit(%d)", e.Code)
}

func (e *ExitError) ExitCode() int {
	return e.Code
}

// BootError reports a failed bootstrap precondition.
type BootError struct {
	Capability string
	Err        error
}

func (e *BootError) Error() string {
	return fmt.Sprintf("bootstrap: %s: %v", e.Capability, e.Err)
}

func (e *BootError) Unwrap() error {
	return e.Err
}

func (e *BootError) ExitCode() int {
	return ExitConfig
}

// fatalOf extracts the fatal error carried by err, looking inside engine
// interrupts as well as wrapped chains.
func fatalOf(err error) error {
	if err == nil {
		return nil
	}
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if v, ok := ie.Value().(error); ok {
			if f := fatalOf(v); f != nil {
				return f
			}
		}
	}
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee
	}
	return nil
}

// IsFatal reports whether err terminates the script: a failed assertion or
// an explicit exit(). Fatal errors are never treated as recoverable suite errors.
func IsFatal(err error) bool {
	return fatalOf(err) != nil
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if f := fatalOf(err); f != nil {
		err = f
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return ExitException
	}
	var syn *goja.CompilerSyntaxError
	if errors.As(err, &syn) {
		return ExitException
	}
	return ExitFailure
}
