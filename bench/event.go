package bench

import "strconv"

type EventKind int

const (
	Progress EventKind = iota
	Error
	Result
	Score
)

func (k EventKind) String() string {
	switch k {
	case Progress:
		return "PROGRESS"
	case Error:
		return "ERROR"
	case Result:
		return "RESULT"
	case Score:
		return "SCORE"
	}
	return "EventKind(" + strconv.Itoa(int(k)) + ")"
}

// Event is one suite lifecycle notification. Which fields are set depends
// on Kind:
//
//	Progress  Suite
//	Error     Suite, Err
//	Result    Suite, Name, Value
//	Score     Suite, Value
type Event struct {
	Kind  EventKind
	Suite string
	Name  string
	Value float64
	Err   error
}

// FormatValue renders a measurement the way report lines print it.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
