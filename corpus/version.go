package corpus

import (
	"errors"
	"runtime/debug"

	"github.com/Masterminds/semver/v3"
)

const enginePath = "github.com/dop251/goja"

var ErrUnknownEngineVersion = errors.New("engine version is not known")

// EngineVersion returns the version of the engine module this binary was
// built with.
func EngineVersion() (*semver.Version, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, ErrUnknownEngineVersion
	}
	for _, dep := range bi.Deps {
		if dep.Path != enginePath {
			continue
		}
		if dep.Replace != nil {
			dep = dep.Replace
		}
		if dep.Version == "" || dep.Version == "(devel)" {
			break
		}
		return semver.NewVersion(dep.Version)
	}
	return nil, ErrUnknownEngineVersion
}

// Satisfies reports whether v meets constraint. Pseudo-versions carry a
// prerelease part that would exclude them from every plain range, so only
// the release part of v is compared.
func Satisfies(constraint string, v *semver.Version) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, err
	}
	if v.Prerelease() != "" && !c.Check(v) {
		core, err := v.SetPrerelease("")
		if err != nil {
			return false, err
		}
		return c.Check(&core), nil
	}
	return c.Check(v), nil
}
