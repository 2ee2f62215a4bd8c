package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Executable runs code for one language. Implementations stop promptly
// when ctx is done and return errors built with newError.
type Executable interface {
	Run(ctx context.Context, code string) (string, error)
}

// Sandbox dispatches code to the Executable registered for its language.
type Sandbox struct {
	policy Policy
	log    zerolog.Logger

	mu      sync.RWMutex
	runners map[string]Executable
}

// New creates a sandbox with no languages registered.
func New(policy Policy, log zerolog.Logger) *Sandbox {
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultPolicy().Timeout
	}
	return &Sandbox{
		policy:  policy,
		log:     log,
		runners: make(map[string]Executable),
	}
}

// NewDefault registers the built-in languages: javascript in-process and
// python as a subprocess resolved through locator.
func NewDefault(policy Policy, locator ExecutableLocator, log zerolog.Logger) *Sandbox {
	s := New(policy, log)
	s.Register(LanguageJavaScript, NewScript(policy))
	s.Register(LanguagePython, NewProcess(Python, locator, policy))
	return s
}

// Register binds language to e, replacing any previous binding.
func (s *Sandbox) Register(language string, e Executable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runners[language] = e
}

// Languages lists the registered language tags in order.
func (s *Sandbox) Languages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.runners))
	for lang := range s.runners {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether language is registered.
func (s *Sandbox) Supports(language string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.runners[language]
	return ok
}

// Timeout returns the per-execution limit.
func (s *Sandbox) Timeout() time.Duration {
	return s.policy.Timeout
}

// Execute runs code and returns its captured output, or
// NoOutputPlaceholder when it printed nothing. Every run is bounded by the
// policy timeout.
func (s *Sandbox) Execute(ctx context.Context, language, code string) (string, error) {
	s.mu.RLock()
	runner, ok := s.runners[language]
	s.mu.RUnlock()

	if !ok {
		return "", newError(language, ErrUnsupportedLanguage, fmt.Sprintf("unsupported language: %s", language))
	}

	ctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()

	start := time.Now()
	out, err := runner.Run(ctx, code)
	log := s.log.With().Str("language", language).Dur("elapsed", time.Since(start)).Logger()

	if err != nil {
		var serr *Error
		if !errors.As(err, &serr) {
			err = newError(language, ErrExecution, err.Error())
		}
		log.Debug().Err(err).Msg("Execution failed")
		return "", err
	}

	log.Debug().Int("bytes", len(out)).Msg("Execution finished")
	if out == "" {
		return NoOutputPlaceholder, nil
	}
	return out, nil
}

// contextError converts the end of ctx into a sandbox error.
func contextError(ctx context.Context, language string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(language, ErrTimeout, "")
	}
	return newError(language, ctx.Err(), "execution cancelled")
}
