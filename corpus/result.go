package corpus

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Status int

const (
	Pass Status = iota
	Fail
	Skip
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case Skip:
		return "SKIP"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result is the outcome of one script, covering all of its runs.
type Result struct {
	Name     string
	Status   Status
	Reason   string
	Detail   string
	Duration time.Duration
}

// Observer is told about every result as soon as it is known.
type Observer interface {
	Observe(Result)
}

type ObserverFunc func(Result)

func (f ObserverFunc) Observe(r Result) {
	f(r)
}

type Summary struct {
	Passed, Failed, Skipped int
	Elapsed                 time.Duration
}

func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Skipped
}

func (s *Summary) add(r Result) {
	switch r.Status {
	case Pass:
		s.Passed++
	case Fail:
		s.Failed++
	case Skip:
		s.Skipped++
	}
}

// FailedError is returned by Runner.Run when at least one script failed.
type FailedError struct {
	Failed int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%d script(s) failed", e.Failed)
}

func (e *FailedError) ExitCode() int {
	return 1
}

var summaryPrinter = message.NewPrinter(language.English)

func (s Summary) String() string {
	return summaryPrinter.Sprintf("%d scripts: %d passed, %d failed, %d skipped (%v)",
		s.Total(), s.Passed, s.Failed, s.Skipped, s.Elapsed.Round(time.Millisecond))
}

func writeResult(w io.Writer, r Result) {
	switch r.Status {
	case Pass:
		fmt.Fprintf(w, "PASS %s\n", r.Name)
		return
	default:
		fmt.Fprintf(w, "%s %s: %s\n", r.Status, r.Name, r.Reason)
	}
	if r.Detail == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(r.Detail, "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", strings.TrimLeft(line, "\t"))
	}
}
