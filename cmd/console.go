package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/BioHazard786/Warprun/internal/remote"
	"github.com/BioHazard786/Warprun/internal/sandbox"
	"github.com/BioHazard786/Warprun/internal/ui"
)

const consoleHelp = `Type code to add it to the buffer, then:
  /run            run the buffer locally
  /send           run the buffer on the peer
  /lang <tag>     switch language (%s)
  /load <file>    replace the buffer with a file
  /show           print the buffer
  /clear          empty the buffer
  /status         show connection details
  /help           show this help
  /quit           leave`

type execFunc func(ctx context.Context, language, code string) (string, error)

// console is the interactive loop shared by host and join. Execution is
// injected so the command handling can be driven without a connection.
type console struct {
	out       io.Writer
	language  string
	languages []string
	buffer    []string

	runLocal  execFunc
	runRemote execFunc
	runTask   func(ctx context.Context, title string, fn ui.TaskFunc) (string, error)
	status    func() *ui.DetailsTable
}

func newConsole(out io.Writer, languages []string) *console {
	return &console{
		out:       out,
		language:  sandbox.LanguageJavaScript,
		languages: languages,
		runTask:   ui.RunTask,
	}
}

func (c *console) code() string {
	return strings.Join(c.buffer, "\n")
}

// handle processes one input line. It reports whether the console should
// exit.
func (c *console) handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		c.buffer = append(c.buffer, line)
		return false
	}

	cmd, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Fprintln(c.out, c.help())

	case "/lang":
		c.setLanguage(arg)

	case "/load":
		c.load(arg)

	case "/show":
		fmt.Fprintln(c.out, ui.CodeView(c.code()))

	case "/clear":
		c.buffer = nil
		fmt.Fprintln(c.out, ui.MutedStyle.Render("Buffer cleared"))

	case "/status":
		if c.status != nil {
			fmt.Fprintln(c.out, c.status().View())
		}

	case "/run":
		c.execute(ctx, false)

	case "/send":
		c.execute(ctx, true)

	default:
		fmt.Fprintln(c.out, ui.WarningStyle.Render("Unknown command "+cmd+", try /help"))
	}
	return false
}

func (c *console) help() string {
	return fmt.Sprintf(consoleHelp, strings.Join(c.languages, ", "))
}

// banner is printed once when the console opens.
func (c *console) banner() string {
	return ui.InfoBoxStyle.Render(ui.TitleStyle.Render("Warprun console") + "\n" + c.help())
}

func (c *console) setLanguage(tag string) {
	if tag == "" {
		fmt.Fprintf(c.out, "Language: %s\n", ui.LanguageStyle.Render(c.language))
		return
	}

	// The peer's sandbox may support tags this side lacks, so any tag is
	// accepted with a warning.
	known := false
	for _, l := range c.languages {
		if l == tag {
			known = true
		}
	}
	if !known {
		fmt.Fprintln(c.out, ui.WarningStyle.Render("Language "+tag+" is not available locally"))
	}

	c.language = tag
	fmt.Fprintf(c.out, "Language: %s\n", ui.LanguageStyle.Render(tag))
}

func (c *console) load(path string) {
	if path == "" {
		fmt.Fprintln(c.out, ui.WarningStyle.Render("Usage: /load <file>"))
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(c.out, ui.FormatError(err))
		return
	}

	c.buffer = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	c.language = languageForFile(path)
	fmt.Fprintf(c.out, "%s Loaded %s (%d lines) as %s\n", ui.IconCode, filepath.Base(path), len(c.buffer), ui.LanguageStyle.Render(c.language))
}

func (c *console) execute(ctx context.Context, remoteRun bool) {
	code := c.code()
	if strings.TrimSpace(code) == "" {
		fmt.Fprintln(c.out, ui.WarningStyle.Render("Buffer is empty"))
		return
	}

	run, title := c.runLocal, "Running locally..."
	if remoteRun {
		run, title = c.runRemote, "Waiting for peer..."
	}

	language := c.language
	start := time.Now()
	out, err := c.runTask(ctx, title, func(ctx context.Context) (string, error) {
		return run(ctx, language, code)
	})

	fmt.Fprintln(c.out, ui.ResultView(ui.Result{
		Language: language,
		Remote:   remoteRun,
		Output:   out,
		Err:      err,
		Elapsed:  time.Since(start),
	}))

	if errors.Is(err, remote.ErrRequestInFlight) || (remoteRun && errors.Is(err, context.Canceled)) {
		fmt.Fprintln(c.out, ui.MutedStyle.Render("The previous request is still running on the peer"))
	}
}

func (s *Session) statusTable(language string) *ui.DetailsTable {
	t := ui.NewDetailsTable("Session").
		Add("State", s.Peer.State().String()).
		Add("Role", s.Peer.Role().String()).
		Add("Room", s.Peer.RoomID()).
		Add("Language", language).
		Add("Timeout", ui.FormatDuration(s.Sandbox.Timeout()))
	if s.Endpoint.Pending() {
		t.Add("Request", "waiting for peer")
	}
	return t
}

// runConsole reads lines until /quit, EOF, or the peer disconnects.
func runConsole(ctx context.Context, s *Session) error {
	ui.PrintInfof("Serving %s requests from the peer", strings.Join(s.Sandbox.Languages(), ", "))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ui.PromptStyle.Render("warprun>") + " ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	s.SetOutput(rl.Stdout())
	defer s.SetOutput(os.Stdout)

	c := newConsole(rl.Stdout(), s.Sandbox.Languages())
	c.runLocal = s.Sandbox.Execute
	c.runRemote = s.Endpoint.Execute
	c.status = func() *ui.DetailsTable { return s.statusTable(c.language) }

	fmt.Fprintln(c.out, c.banner())

	peerGone := make(chan struct{})
	go func() {
		select {
		case <-s.Disconnected():
			close(peerGone)
			rl.Close()
		case <-ctx.Done():
			rl.Close()
		}
	}()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(c.buffer) > 0 {
				c.buffer = nil
				fmt.Fprintln(c.out, ui.MutedStyle.Render("Buffer cleared, ^C again to leave"))
				continue
			}
			return nil
		}
		if err != nil {
			select {
			case <-peerGone:
				ui.PrintWarningf("Peer left room %s", s.Peer.RoomID())
			default:
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return ctx.Err()
		}

		if c.handle(ctx, line) {
			return nil
		}
	}
}
