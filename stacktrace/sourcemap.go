package stacktrace

import (
	"os"
	"sync"

	"github.com/go-sourcemap/sourcemap"
)

// Remapper rewrites frame positions of generated scripts to their original
// sources using "<script>.map" files found next to the scripts.
type Remapper struct {
	// Load reads the source map for a script; it defaults to reading
	// file+".map" from disk. A nil slice with a nil error means no map.
	Load func(file string) ([]byte, error)

	mu        sync.Mutex
	consumers map[string]*sourcemap.Consumer
}

func NewRemapper() *Remapper {
	return &Remapper{}
}

func loadAdjacent(file string) ([]byte, error) {
	b, err := os.ReadFile(file + ".map")
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

func (r *Remapper) consumer(file string) *sourcemap.Consumer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.consumers[file]; ok {
		return c
	}
	if r.consumers == nil {
		r.consumers = make(map[string]*sourcemap.Consumer)
	}
	load := r.Load
	if load == nil {
		load = loadAdjacent
	}
	var c *sourcemap.Consumer
	if b, err := load(file); err == nil && b != nil {
		c, _ = sourcemap.Parse(file+".map", b)
	}
	r.consumers[file] = c
	return c
}

// Remap returns a copy of t with every frame that has a source map pointing
// at its original position. Frames without a map are left unchanged.
func (r *Remapper) Remap(t Trace) Trace {
	if r == nil || len(t) == 0 {
		return t
	}
	out := make(Trace, len(t))
	for i, f := range t {
		out[i] = f
		if f.Native || f.File == "" {
			continue
		}
		c := r.consumer(f.File)
		if c == nil {
			continue
		}
		source, name, line, col, ok := c.Source(f.Line, f.Column)
		if !ok {
			continue
		}
		out[i].File, out[i].Line, out[i].Column = source, line, col
		if name != "" && f.Func != "" {
			out[i].Func = name
		}
	}
	return out
}
