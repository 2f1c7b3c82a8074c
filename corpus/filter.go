package corpus

import (
	"path/filepath"

	"github.com/dlclark/regexp2"
)

// PrefixList matches strings against a set of prefixes, grouped by length.
type PrefixList struct {
	prefixes map[int]map[string]struct{}
}

func (pl *PrefixList) Add(prefix string) {
	l := pl.prefixes[len(prefix)]
	if l == nil {
		l = make(map[string]struct{})
		if pl.prefixes == nil {
			pl.prefixes = make(map[int]map[string]struct{})
		}
		pl.prefixes[len(prefix)] = l
	}
	l[prefix] = struct{}{}
}

func (pl *PrefixList) Match(s string) bool {
	for l, prefixes := range pl.prefixes {
		if len(s) >= l {
			if _, exists := prefixes[s[:l]]; exists {
				return true
			}
		}
	}
	return false
}

// Filter decides which scripts are skipped. A nil *Filter skips nothing.
type Filter struct {
	pattern  *regexp2.Regexp
	prefixes PrefixList
	features map[string]struct{}
}

// NewFilter builds a filter. pattern uses ECMAScript regular expression
// syntax and is matched against the slash-separated script path; an empty
// pattern matches everything.
func NewFilter(pattern string, skipPrefixes, skipFeatures []string) (*Filter, error) {
	f := &Filter{features: make(map[string]struct{})}
	if pattern != "" {
		re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
		if err != nil {
			return nil, err
		}
		f.pattern = re
	}
	for _, p := range skipPrefixes {
		f.prefixes.Add(filepath.ToSlash(p))
	}
	for _, feat := range skipFeatures {
		f.features[feat] = struct{}{}
	}
	return f, nil
}

// Skip reports whether sc should be skipped, and why.
func (f *Filter) Skip(sc *Script) (string, bool) {
	if f == nil {
		return "", false
	}
	name := filepath.ToSlash(sc.Path)
	if f.pattern != nil {
		ok, err := f.pattern.MatchString(name)
		if err != nil {
			return "filter: " + err.Error(), true
		}
		if !ok {
			return "does not match filter", true
		}
	}
	if f.prefixes.Match(name) {
		return "excluded", true
	}
	for _, feat := range sc.Meta.Features {
		if _, ok := f.features[feat]; ok {
			return "feature " + feat + " is not supported", true
		}
	}
	return "", false
}
