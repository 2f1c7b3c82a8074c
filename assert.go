package harness

import (
	"github.com/dop251/goja"
)

// The assertion primitives compare with strict equality: no coercion, so
// assertTrue(1) and assertEquals(1, "1") both fail. A failure aborts the
// whole script; it cannot be caught by try/catch in the script.

func (s *Session) installAssertions() error {
	vm := s.vm
	valueTrue := vm.ToValue(true)
	valueFalse := vm.ToValue(false)

	prims := map[string]func(goja.FunctionCall) goja.Value{
		"assert": func(call goja.FunctionCall) goja.Value {
			v := call.Argument(0)
			if !v.StrictEquals(valueTrue) {
				msg := ""
				if m := call.Argument(1); !goja.IsUndefined(m) {
					msg = m.String()
				}
				s.fail("assert", "true", v, msg)
			}
			return goja.Undefined()
		},
		"assertTrue": func(call goja.FunctionCall) goja.Value {
			if v := call.Argument(0); !v.StrictEquals(valueTrue) {
				s.fail("assertTrue", "true", v, "")
			}
			return goja.Undefined()
		},
		"assertFalse": func(call goja.FunctionCall) goja.Value {
			if v := call.Argument(0); !v.StrictEquals(valueFalse) {
				s.fail("assertFalse", "false", v, "")
			}
			return goja.Undefined()
		},
		"assertNull": func(call goja.FunctionCall) goja.Value {
			if v := call.Argument(0); !goja.IsNull(v) {
				s.fail("assertNull", "null", v, "")
			}
			return goja.Undefined()
		},
		"assertNotNull": func(call goja.FunctionCall) goja.Value {
			if v := call.Argument(0); goja.IsNull(v) {
				s.fail("assertNotNull", "not null", v, "")
			}
			return goja.Undefined()
		},
		"assertEquals": func(call goja.FunctionCall) goja.Value {
			a, b := call.Argument(0), call.Argument(1)
			if !a.StrictEquals(b) {
				s.fail("assertEquals", describe(b), a, "")
			}
			return goja.Undefined()
		},
		"assertUnreachable": func(call goja.FunctionCall) goja.Value {
			s.abort(&AssertionError{Assertion: "assertUnreachable", Message: "reached unreachable code"})
			return goja.Undefined()
		},
	}

	for name, fn := range prims {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) fail(assertion, expected string, actual goja.Value, msg string) {
	s.abort(&AssertionError{
		Assertion: assertion,
		Expected:  expected,
		Actual:    describe(actual),
		Message:   msg,
	})
}

// describe renders a value for failure messages, keeping strings quoted so
// that 1 and "1" are distinguishable.
func describe(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if _, ok := v.Export().(string); ok {
		return `"` + v.String() + `"`
	}
	return v.String()
}
