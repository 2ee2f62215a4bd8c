package sandbox

import "errors"

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrExecution           = errors.New("execution failed")
	ErrTimeout             = errors.New("execution timeout")
	ErrLaunch              = errors.New("failed to start interpreter")
	ErrExecutableNotFound  = errors.New("executable not found")
)

// Error is returned by Execute. Err is one of the sentinels above; Message,
// when set, is the text shown to the user in place of Err.
type Error struct {
	Language string
	Err      error
	Message  string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(language string, err error, message string) *Error {
	return &Error{Language: language, Err: err, Message: message}
}
