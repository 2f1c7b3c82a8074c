package harness

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

func (s *Session) installGlobals() error {
	vm := s.vm
	globals := map[string]interface{}{
		"print":    s.print,
		"exit":     s.exit,
		"readline": s.readline,
		"load":     s.load,
		"readFile": s.readFile,
	}
	for name, v := range globals {
		if err := vm.Set(name, v); err != nil {
			return err
		}
	}
	console.Enable(vm)
	return nil
}

// print writes its arguments joined by single spaces, followed by a newline.
func (s *Session) print(call goja.FunctionCall) goja.Value {
	var b strings.Builder
	for i, arg := range call.Arguments {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(arg.String())
	}
	b.WriteByte('\n')
	s.h.write(s.io.stdout, b.String())
	return goja.Undefined()
}

func (s *Session) exit(call goja.FunctionCall) goja.Value {
	code := 0
	if arg := call.Argument(0); !goja.IsUndefined(arg) {
		code = int(arg.ToInteger())
	}
	if code < 0 || code > 255 {
		code = ExitFailure
	}
	s.abort(&ExitError{Code: code})
	return goja.Undefined()
}

func (s *Session) readline(goja.FunctionCall) goja.Value {
	line, ok := s.io.stdin.ReadLine()
	if !ok {
		return goja.Null()
	}
	return s.vm.ToValue(line)
}

func (s *Session) load(call goja.FunctionCall) goja.Value {
	p := s.resolve(call.Argument(0).String())
	v, err := s.runFile(p)
	if err == nil {
		return v
	}
	if os.IsNotExist(err) {
		panic(s.vm.ToValue(fmt.Sprintf("Could not read %s: %v", p, err)))
	}
	return s.Rethrow(err)
}

func isStdin(name string) bool {
	return name == "-" || name == "/dev/stdin"
}

func (s *Session) readFile(name string) (string, error) {
	if isStdin(name) {
		var lines []string
		for {
			line, ok := s.io.stdin.ReadLine()
			if !ok {
				break
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n"), nil
	}
	b, err := os.ReadFile(s.resolve(name))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// consolePrinter routes console.log to stdout and console.warn/error to
// stderr of the host.
type consolePrinter struct {
	h  *Harness
	io *hostIO
}

func (p consolePrinter) Log(s string) {
	p.h.write(p.io.stdout, s+"\n")
}

func (p consolePrinter) Warn(s string) {
	p.h.write(p.io.stderr, s+"\n")
}

func (p consolePrinter) Error(s string) {
	p.h.write(p.io.stderr, s+"\n")
}

func registerConsole(h *Harness, registry *require.Registry, hio *hostIO) {
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(consolePrinter{h: h, io: hio}))
}

// write sends script output to a host stream. Output errors do not stop the
// script; they are logged.
func (h *Harness) write(w io.Writer, s string) {
	if _, err := io.WriteString(w, s); err != nil {
		h.logger.Warn("script output failed", "error", err)
	}
}
