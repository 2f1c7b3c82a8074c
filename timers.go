package harness

import (
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// installTimers replaces the event loop's timer globals. Callbacks do not
// run once the script has been terminated, and an exception escaping a
// callback ends the session instead of being dropped.
func (s *Session) installTimers() error {
	vm := s.vm
	timers := map[string]interface{}{
		"setTimeout": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(s.loop.SetTimeout(s.callback(call, 2), delay(call.Argument(1))))
		},
		"setInterval": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(s.loop.SetInterval(s.callback(call, 2), delay(call.Argument(1))))
		},
		"setImmediate": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(s.loop.SetImmediate(s.callback(call, 1)))
		},
		"clearTimeout": func(call goja.FunctionCall) goja.Value {
			if t, ok := call.Argument(0).Export().(*eventloop.Timer); ok {
				s.loop.ClearTimeout(t)
			}
			return goja.Undefined()
		},
		"clearInterval": func(call goja.FunctionCall) goja.Value {
			if i, ok := call.Argument(0).Export().(*eventloop.Interval); ok {
				s.loop.ClearInterval(i)
			}
			return goja.Undefined()
		},
		"clearImmediate": func(call goja.FunctionCall) goja.Value {
			if i, ok := call.Argument(0).Export().(*eventloop.Immediate); ok {
				s.loop.ClearImmediate(i)
			}
			return goja.Undefined()
		},
	}
	for name, fn := range timers {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// callback binds the function argument of a timer call and the extra
// arguments starting at index rest.
func (s *Session) callback(call goja.FunctionCall, rest int) func(*goja.Runtime) {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(s.vm.NewTypeError("callback must be a function"))
	}
	var args []goja.Value
	if len(call.Arguments) > rest {
		args = append(args, call.Arguments[rest:]...)
	}
	return func(*goja.Runtime) {
		s.invoke(fn, args)
	}
}

// invoke runs a loop callback unless the session has already ended.
func (s *Session) invoke(fn goja.Callable, args []goja.Value) {
	if s.halted() {
		return
	}
	if _, err := fn(goja.Undefined(), args...); err != nil && s.fatal == nil {
		s.h.logger.Debug("uncaught error in callback", "error", err)
		s.uncaught = err
		s.loop.StopNoWait()
	}
}

func delay(v goja.Value) time.Duration {
	ms := v.ToInteger()
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}
