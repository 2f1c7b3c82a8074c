// Package profiling samples the JS call stacks of all running sessions and
// summarizes the result.
package profiling

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/pprof/profile"
)

// Profiler is an active JS profile. Only one can be active at a time.
type Profiler struct {
	path string
	buf  bytes.Buffer

	once sync.Once
	prof *profile.Profile
	err  error
}

// Start starts sampling. The profile is written to path in pprof format
// when the profiler is stopped.
func Start(path string) (*Profiler, error) {
	p := &Profiler{path: path}
	if err := goja.StartProfile(&p.buf); err != nil {
		return nil, err
	}
	return p, nil
}

// Stop ends sampling, writes the profile file and returns the parsed
// profile. Calling Stop again returns the same result.
func (p *Profiler) Stop() (*profile.Profile, error) {
	p.once.Do(func() {
		goja.StopProfile()
		p.prof, p.err = p.finish()
	})
	return p.prof, p.err
}

func (p *Profiler) finish() (*profile.Profile, error) {
	data := p.buf.Bytes()
	if p.path != "" {
		if err := os.WriteFile(p.path, data, 0644); err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		// nothing was sampled
		return &profile.Profile{}, nil
	}
	prof, err := profile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse JS profile: %w", err)
	}
	return prof, nil
}

// Entry is the time attributed to one function.
type Entry struct {
	Func    string
	File    string
	Flat    int64
	FlatPct float64
}

// Top returns the n functions with the most samples at the top of the
// stack, using the first sample value.
func Top(p *profile.Profile, n int) []Entry {
	if p == nil || len(p.SampleType) == 0 {
		return nil
	}
	type fn struct{ name, file string }
	flat := make(map[fn]int64)
	var total int64
	for _, s := range p.Sample {
		if len(s.Value) == 0 {
			continue
		}
		v := s.Value[0]
		total += v
		if len(s.Location) == 0 || len(s.Location[0].Line) == 0 {
			continue
		}
		f := s.Location[0].Line[0].Function
		if f == nil {
			continue
		}
		flat[fn{f.Name, f.Filename}] += v
	}

	entries := make([]Entry, 0, len(flat))
	for f, v := range flat {
		e := Entry{Func: f.name, File: f.file, Flat: v}
		if total > 0 {
			e.FlatPct = float64(v) * 100 / float64(total)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Flat != entries[j].Flat {
			return entries[i].Flat > entries[j].Flat
		}
		return entries[i].Func < entries[j].Func
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// WriteTop prints entries as a small table.
func WriteTop(w io.Writer, entries []Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%8d %6.2f%%  %s (%s)\n", e.Flat, e.FlatPct, e.Func, e.File)
	}
}
