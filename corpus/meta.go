package corpus

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidFormat = errors.New("invalid frontmatter format")

type Negative struct {
	Phase string `yaml:"phase"`
	Type  string `yaml:"type"`
}

// Meta is the frontmatter of a script.
type Meta struct {
	Description string   `yaml:"description"`
	Negative    Negative `yaml:"negative"`
	Includes    []string `yaml:"includes"`
	Flags       []string `yaml:"flags"`
	Features    []string `yaml:"features"`
	// Engine is a semver constraint on the engine version.
	Engine string `yaml:"engine"`
	Esid   string `yaml:"esid"`
}

func (m *Meta) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

type Script struct {
	Path   string
	Source string
	Meta   Meta
}

// ParseFile reads a script and its frontmatter. A script without
// frontmatter gets an empty Meta.
func ParseFile(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, string(b))
}

func Parse(path, src string) (*Script, error) {
	sc := &Script{Path: path, Source: src}

	metaStart := strings.Index(src, "/*---")
	if metaStart == -1 {
		return sc, nil
	}
	metaStart += 5
	metaEnd := strings.Index(src, "---*/")
	if metaEnd == -1 || metaEnd < metaStart {
		return nil, ErrInvalidFormat
	}

	if err := yaml.Unmarshal([]byte(src[metaStart:metaEnd]), &sc.Meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	neg := sc.Meta.Negative
	if neg.Type != "" && neg.Phase == "" {
		return nil, errors.New("negative type is set, but phase isn't")
	}
	if neg.Phase != "" {
		if neg.Type == "" {
			return nil, errors.New("negative phase is set, but type isn't")
		}
		switch neg.Phase {
		case "parse", "early", "resolution", "runtime":
		default:
			return nil, fmt.Errorf("unknown negative phase %q", neg.Phase)
		}
	}
	return sc, nil
}
