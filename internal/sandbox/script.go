package sandbox

import (
	"context"
	"errors"
	"strings"

	"github.com/dop251/goja"
)

const LanguageJavaScript = "javascript"

// Script evaluates JavaScript in a fresh goja runtime per call. The only
// host capability exposed is printing: console.log/info/warn/error and
// print. There is no filesystem, network, module loader or timer.
type Script struct {
	maxOutput int
}

// NewScript creates the in-process JavaScript variant.
func NewScript(policy Policy) *Script {
	return &Script{maxOutput: policy.MaxOutputBytes}
}

// Run evaluates code until it completes or ctx ends. When ctx ends the
// runtime is interrupted at the next instruction, so a busy loop cannot
// outlive the deadline.
func (s *Script) Run(ctx context.Context, code string) (string, error) {
	if ctx.Err() != nil {
		return "", contextError(ctx, LanguageJavaScript)
	}

	vm := goja.New()
	out := newLimitedBuffer(s.maxOutput)

	printFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		out.writeString(strings.Join(parts, " ") + "\n")
		return goja.Undefined()
	}

	console := vm.NewObject()
	for _, name := range []string{"log", "info", "warn", "error"} {
		if err := console.Set(name, printFn); err != nil {
			return "", newError(LanguageJavaScript, ErrLaunch, err.Error())
		}
	}
	if err := vm.Set("console", console); err != nil {
		return "", newError(LanguageJavaScript, ErrLaunch, err.Error())
	}
	if err := vm.Set("print", printFn); err != nil {
		return "", newError(LanguageJavaScript, ErrLaunch, err.Error())
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	if _, err := vm.RunString(code); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return "", contextError(ctx, LanguageJavaScript)
		}
		return "", newError(LanguageJavaScript, ErrExecution, scriptErrorMessage(err))
	}

	return out.String(), nil
}

// scriptErrorMessage reduces a goja error to the JavaScript error text,
// without the stack trace.
func scriptErrorMessage(err error) string {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if v := exc.Value(); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			return v.String()
		}
	}
	return err.Error()
}
