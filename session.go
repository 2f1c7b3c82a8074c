package harness

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// Session is one engine runtime with the hosted globals installed. It is
// only valid inside the function passed to Harness.Run and must not be used
// from other goroutines.
type Session struct {
	h    *Harness
	io   *hostIO
	loop *eventloop.EventLoop
	vm   *goja.Runtime

	fatal    error
	uncaught error
	sources  map[string]string
	dirs     []string
}

func (s *Session) Runtime() *goja.Runtime {
	return s.vm
}

func (s *Session) Harness() *Harness {
	return s.h
}

// Fatal returns the error that terminated the script, if any.
func (s *Session) Fatal() error {
	return s.fatal
}

// Source returns the source text of a script previously run in this session.
func (s *Session) Source(name string) (string, bool) {
	src, ok := s.sources[name]
	return src, ok
}

// Compile compiles src without running it. A compile error is an early
// (parse phase) error.
func (s *Session) Compile(name, src string, strict bool) (*goja.Program, error) {
	s.sources[name] = src
	return goja.Compile(name, src, strict)
}

func (s *Session) RunProgram(p *goja.Program) (goja.Value, error) {
	if s.fatal != nil {
		return nil, s.fatal
	}
	v, err := s.vm.RunProgram(p)
	if s.fatal != nil {
		s.rearm()
		return v, s.fatal
	}
	return v, err
}

func (s *Session) RunScript(name, src string) (goja.Value, error) {
	p, err := s.Compile(name, src, false)
	if err != nil {
		return nil, err
	}
	return s.RunProgram(p)
}

// RunFile runs the script at path. Relative loads made by the script are
// resolved against its directory.
func (s *Session) RunFile(path string) error {
	_, err := s.runFile(path)
	return err
}

func (s *Session) runFile(path string) (goja.Value, error) {
	prg, src, err := s.h.compile(path, false)
	s.sources[path] = src
	if err != nil {
		return nil, err
	}
	s.dirs = append(s.dirs, filepath.Dir(path))
	defer func() {
		s.dirs = s.dirs[:len(s.dirs)-1]
	}()
	return s.RunProgram(prg)
}

// resolve maps a path given by a script to a file, trying the directory of
// the script currently running first.
func (s *Session) resolve(p string) string {
	if filepath.IsAbs(p) || len(s.dirs) == 0 {
		return p
	}
	candidate := filepath.Join(s.dirs[len(s.dirs)-1], p)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return p
}

// abort terminates the running script with a fatal error. The interrupt is
// not catchable by script code, and the event loop is told to stop so no
// pending timer runs afterwards.
func (s *Session) abort(err error) {
	if s.fatal == nil {
		s.fatal = err
		s.h.logger.Debug("script aborted", "error", err)
	}
	s.vm.Interrupt(s.fatal)
	s.loop.StopNoWait()
}

// halted reports whether no more script code may run in the session.
func (s *Session) halted() bool {
	return s.fatal != nil || s.uncaught != nil
}

// rearm interrupts the runtime again with the recorded fatal error. The
// engine clears the interrupt once it has been delivered.
func (s *Session) rearm() {
	if s.fatal != nil {
		s.vm.Interrupt(s.fatal)
	}
}

// Rethrow raises err from a native function into the calling script. Compile
// errors become SyntaxError and ReferenceError objects and other Go errors
// become GoError objects, so the script can catch them. A fatal error is not
// catchable: the interrupt is re-armed and Rethrow returns, and the script
// stops at its next instruction.
func (s *Session) Rethrow(err error) goja.Value {
	if s.fatal != nil {
		s.rearm()
		return goja.Undefined()
	}
	var (
		exc *goja.Exception
		ie  *goja.InterruptedError
		syn *goja.CompilerSyntaxError
		ref *goja.CompilerReferenceError
	)
	switch {
	case errors.As(err, &exc):
		panic(exc)
	case errors.As(err, &ie):
		panic(ie)
	case errors.As(err, &syn):
		panic(s.newError("SyntaxError", syn.Error()))
	case errors.As(err, &ref):
		panic(s.newError("ReferenceError", ref.Error()))
	}
	panic(s.vm.NewGoError(err))
}

func (s *Session) newError(ctor, msg string) *goja.Object {
	obj, err := s.vm.New(s.vm.Get(ctor), s.vm.ToValue(msg))
	if err != nil {
		panic(err)
	}
	return obj
}

func (s *Session) install() error {
	if err := s.installGlobals(); err != nil {
		return err
	}
	if err := s.installTimers(); err != nil {
		return err
	}
	if err := s.installAssertions(); err != nil {
		return err
	}
	for _, f := range s.h.globals {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}
