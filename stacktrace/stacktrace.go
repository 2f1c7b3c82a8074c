// Package stacktrace turns engine errors into the one-line descriptions and
// stack details printed by the harness reports.
package stacktrace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/dop251/goja"
)

// Frame is one parsed line of an engine stack trace.
type Frame struct {
	Func   string
	File   string
	Line   int
	Column int
	Native bool
}

func (f Frame) String() string {
	var loc string
	if f.Native {
		loc = "native"
	} else {
		loc = f.File + ":" + strconv.Itoa(f.Line) + ":" + strconv.Itoa(f.Column)
	}
	if f.Func != "" {
		return "at " + f.Func + " (" + loc + ")"
	}
	return "at " + loc
}

type Trace []Frame

// String renders the trace one frame per line, tab-indented.
func (t Trace) String() string {
	var b strings.Builder
	for i, f := range t {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('\t')
		b.WriteString(f.String())
	}
	return b.String()
}

var (
	frameWithFunc = regexp2.MustCompile(`^at (.+?) \((.*)\)$`, regexp2.None)
	framePosition = regexp2.MustCompile(`^(.*):(\d+):(\d+)(?:\(\d+\))?$`, regexp2.None)
)

// submatch returns the text of every group of the first match, or nil.
func submatch(re *regexp2.Regexp, s string) []string {
	m, err := re.FindStringMatch(s)
	if err != nil || m == nil {
		return nil
	}
	groups := m.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.String()
	}
	return out
}

// Parse extracts frames from the "\tat ..." lines of an engine stack dump.
// Lines that are not frames are ignored.
func Parse(s string) Trace {
	var t Trace
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "at ") {
			continue
		}
		var f Frame
		loc := strings.TrimPrefix(line, "at ")
		if m := submatch(frameWithFunc, line); m != nil {
			f.Func, loc = m[1], m[2]
		}
		if loc == "native" {
			f.Native = true
		} else if m := submatch(framePosition, loc); m != nil {
			f.File = m[1]
			f.Line, _ = strconv.Atoi(m[2])
			f.Column, _ = strconv.Atoi(m[3])
		} else {
			f.File = loc
		}
		t = append(t, f)
	}
	return t
}

// Describe returns a single-line description of err and, when the error
// carries a JavaScript stack, the parsed trace. For a thrown value the
// description is the value itself: throw "boom" describes as "boom".
func Describe(err error) (string, Trace) {
	if err == nil {
		return "", nil
	}
	var (
		desc  string
		trace Trace
	)
	var ie *goja.InterruptedError
	var exc *goja.Exception
	switch {
	case errors.As(err, &ie):
		desc = fmt.Sprint(ie.Value())
		trace = Parse(ie.String())
	case errors.As(err, &exc):
		if v := exc.Value(); v != nil {
			desc = v.String()
		} else {
			desc = exc.Error()
		}
		trace = Parse(exc.String())
	default:
		desc = err.Error()
	}
	return oneLine(desc), trace
}

func oneLine(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
}
