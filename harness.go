package harness

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
)

// Harness owns the host capabilities and per-process state shared by all
// sessions: the booted IO abstraction and the compiled-program cache.
type Harness struct {
	host    Host
	logger  *slog.Logger
	stdin   StdinProvider
	globals []func(*Session) error

	mu       sync.Mutex
	io       *hostIO
	prgCache map[string]cachedProgram
}

type cachedProgram struct {
	prg *goja.Program
	src string
}

type Option func(*Harness)

func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithStdin replaces the default NoopStdin provider installed by Boot.
func WithStdin(p StdinProvider) Option {
	return func(h *Harness) {
		h.stdin = p
	}
}

// WithGlobals registers a function that installs extra globals into every
// session after the built-in ones.
func WithGlobals(f func(*Session) error) Option {
	return func(h *Harness) {
		h.globals = append(h.globals, f)
	}
}

func New(host Host, opts ...Option) *Harness {
	h := &Harness{
		host:     host,
		logger:   slog.Default(),
		prgCache: make(map[string]cachedProgram),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Harness) Logger() *slog.Logger {
	return h.logger
}

func (h *Harness) booted() *hostIO {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.io
}

// Run creates a fresh runtime on its own event loop, installs the hosted
// globals and calls fn on the loop. Once fn returns the loop is drained of
// pending timers, then terminated. A fatal error raised by the script
// (failed assertion or exit()) takes precedence over whatever fn returned,
// which in turn takes precedence over an exception escaping a timer callback.
func (h *Harness) Run(fn func(*Session) error) (err error) {
	hio := h.booted()
	if hio == nil {
		return ErrNotBooted
	}

	registry := require.NewRegistry()
	loop := eventloop.NewEventLoop(eventloop.WithRegistry(registry), eventloop.EnableConsole(false))
	s := &Session{
		h:       h,
		io:      hio,
		loop:    loop,
		sources: make(map[string]string),
	}
	registerConsole(h, registry, hio)

	var fnErr error
	func() {
		defer func() {
			if x := recover(); x != nil {
				if e, ok := x.(error); ok && IsFatal(e) {
					fnErr = e
					return
				}
				fnErr = fmt.Errorf("panic while running session: %v", x)
			}
		}()
		loop.Run(func(vm *goja.Runtime) {
			s.vm = vm
			if err := s.install(); err != nil {
				fnErr = err
				return
			}
			fnErr = fn(s)
			if fnErr != nil {
				loop.StopNoWait()
			}
		})
	}()
	loop.Terminate()

	switch {
	case s.fatal != nil:
		return s.fatal
	case fnErr != nil:
		return fnErr
	}
	return s.uncaught
}

// RunFile boots a session and runs a single script file in it.
func (h *Harness) RunFile(path string) error {
	return h.Run(func(s *Session) error {
		return s.RunFile(path)
	})
}

// compile returns the cached program for path, compiling it on first use.
// The source is returned alongside so sessions can render code frames.
func (h *Harness) compile(path string, strict bool) (*goja.Program, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := path
	if strict {
		key = "strict:" + path
	}
	if c, ok := h.prgCache[key]; ok {
		return c.prg, c.src, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	src := string(b)
	prg, err := goja.Compile(path, src, strict)
	if err != nil {
		return nil, src, err
	}
	h.prgCache[key] = cachedProgram{prg: prg, src: src}
	return prg, src, nil
}
