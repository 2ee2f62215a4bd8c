package sandbox

import (
	"fmt"
	"os/exec"
)

// ExecutableLocator resolves the interpreter for a language to a path.
// A failure makes the execution fail with ErrLaunch before anything runs.
type ExecutableLocator interface {
	Locate(language string) (string, error)
}

// defaultCandidates are tried on PATH in order.
var defaultCandidates = map[string][]string{
	LanguagePython: {"python3", "python"},
}

// PathLocator searches PATH. Overrides, when present for a language, are
// the only name or path tried for it.
type PathLocator struct {
	overrides  map[string]string
	candidates map[string][]string
}

// NewPathLocator creates a locator with the built-in candidate names.
func NewPathLocator(overrides map[string]string) *PathLocator {
	return &PathLocator{overrides: overrides, candidates: defaultCandidates}
}

// Locate implements ExecutableLocator.
func (l *PathLocator) Locate(language string) (string, error) {
	if name, ok := l.overrides[language]; ok && name != "" {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, name, err)
		}
		return path, nil
	}

	names := l.candidates[language]
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no interpreter for %s (tried %v)", ErrExecutableNotFound, language, names)
}

// StaticLocator maps languages to fixed paths.
type StaticLocator map[string]string

// Locate implements ExecutableLocator.
func (l StaticLocator) Locate(language string) (string, error) {
	path, ok := l[language]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: no interpreter for %s", ErrExecutableNotFound, language)
	}
	return path, nil
}
