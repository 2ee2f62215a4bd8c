package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const LanguagePython = "python"

// waitDelay bounds how long Run waits for output pipes after the child
// was killed.
const waitDelay = 2 * time.Second

// Interpreter describes how to run a source file for one language.
type Interpreter struct {
	Language  string
	Extension string
	Args      func(path string) []string
	Env       []string
}

// Python runs the source file with a UTF-8, bytecode-free interpreter.
var Python = Interpreter{
	Language:  LanguagePython,
	Extension: ".py",
	Args:      func(path string) []string { return []string{"-u", path} },
	Env:       []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONIOENCODING=utf-8"},
}

// Process runs code in a child process. The source is written to a
// private temp dir which is removed on every exit path.
type Process struct {
	interp    Interpreter
	locator   ExecutableLocator
	maxOutput int
	tempDir   string
}

// NewProcess creates the subprocess variant for interp.
func NewProcess(interp Interpreter, locator ExecutableLocator, policy Policy) *Process {
	return &Process{
		interp:    interp,
		locator:   locator,
		maxOutput: policy.MaxOutputBytes,
		tempDir:   policy.TempDir,
	}
}

// Run implements Executable. The child runs in its own process group,
// which is killed as a whole when ctx ends and again once the child has
// exited, so no descendant outlives the run.
func (p *Process) Run(ctx context.Context, code string) (string, error) {
	lang := p.interp.Language
	if ctx.Err() != nil {
		return "", contextError(ctx, lang)
	}

	exe, err := p.locator.Locate(lang)
	if err != nil {
		return "", newError(lang, ErrLaunch, fmt.Sprintf("failed to start %s: %v", lang, err))
	}

	dir, err := os.MkdirTemp(p.tempDir, "warprun-*")
	if err != nil {
		return "", newError(lang, ErrLaunch, fmt.Sprintf("creating temp dir: %v", err))
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "main"+p.interp.Extension)
	if err := os.WriteFile(src, []byte(code), 0o600); err != nil {
		return "", newError(lang, ErrLaunch, fmt.Sprintf("writing source: %v", err))
	}

	cmd := exec.CommandContext(ctx, exe, p.interp.Args(src)...)
	cmd.Dir = dir
	cmd.Env = append(baseEnv(dir), p.interp.Env...)
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	stdout := newLimitedBuffer(p.maxOutput)
	stderr := newLimitedBuffer(p.maxOutput)
	pipes, err := captureOutput(cmd, stdout, stderr)
	if err != nil {
		return "", newError(lang, ErrLaunch, fmt.Sprintf("creating output pipes: %v", err))
	}
	defer pipes.close()

	if err := cmd.Start(); err != nil {
		pipes.closeWriters()
		return "", newError(lang, ErrLaunch, fmt.Sprintf("failed to start %s: %v", lang, err))
	}
	pipes.closeWriters()

	// Wait returns when the interpreter exits. Anything it left running in
	// its group is killed before the output is collected.
	err = cmd.Wait()
	killGroup(cmd)
	pipes.drain(waitDelay)

	if err != nil && ctx.Err() != nil {
		return "", contextError(ctx, lang)
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimRight(stderr.String(), "\n")
			if strings.TrimSpace(msg) == "" {
				msg = fmt.Sprintf("%s execution failed (exit status %d)", lang, exitErr.ExitCode())
			}
			return "", newError(lang, ErrExecution, msg)
		}
		return "", newError(lang, ErrExecution, err.Error())
	}

	return stdout.String(), nil
}

// baseEnv is the minimal environment handed to children.
func baseEnv(dir string) []string {
	env := []string{"HOME=" + dir, "TMPDIR=" + dir}
	if path, ok := os.LookupEnv("PATH"); ok {
		env = append(env, "PATH="+path)
	}
	if lang, ok := os.LookupEnv("LANG"); ok {
		env = append(env, "LANG="+lang)
	}
	return env
}
