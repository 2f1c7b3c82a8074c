package bench

import (
	"errors"
	"fmt"
)

var ErrDuplicateSuite = errors.New("duplicate suite name")

// Reporter is handed to a running suite to publish its measurements.
type Reporter interface {
	Result(name string, value float64)
	Score(value float64)
}

// Suite is a named unit of benchmark work.
type Suite interface {
	Name() string
	Run(r Reporter) error
}

// Collection yields the suites of a run in the order they must execute.
type Collection interface {
	Suites() ([]Suite, error)
}

type CollectionFunc func() ([]Suite, error)

func (f CollectionFunc) Suites() ([]Suite, error) {
	return f()
}

type funcSuite struct {
	name string
	fn   func(Reporter) error
}

func (s *funcSuite) Name() string {
	return s.name
}

func (s *funcSuite) Run(r Reporter) error {
	return s.fn(r)
}

// NewSuite returns a Suite backed by a Go function.
func NewSuite(name string, fn func(Reporter) error) Suite {
	return &funcSuite{name: name, fn: fn}
}

// Registry is an ordered collection of uniquely named suites.
type Registry struct {
	suites []Suite
	names  map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

func (r *Registry) Add(s Suite) error {
	name := s.Name()
	if _, exists := r.names[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSuite, name)
	}
	r.names[name] = struct{}{}
	r.suites = append(r.suites, s)
	return nil
}

func (r *Registry) Len() int {
	return len(r.suites)
}

func (r *Registry) Suites() ([]Suite, error) {
	return append([]Suite(nil), r.suites...), nil
}
