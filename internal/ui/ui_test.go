package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Second, "2h 0m 5s"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	if got := FormatSize(512); got != "512 B" {
		t.Fatalf("got %q", got)
	}
	if got := FormatSize(1 << 20); got != "1.0 MB" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("hello world", 8); got != "hello..." {
		t.Fatalf("got %q", got)
	}
	if got := TruncateString("héllo", 10); got != "héllo" {
		t.Fatalf("got %q", got)
	}
}

func TestResultView(t *testing.T) {
	out := ResultView(Result{Language: "javascript", Output: "8\n", Elapsed: time.Millisecond})
	if !strings.Contains(out, "javascript") || !strings.Contains(out, "8") || !strings.Contains(out, IconSuccess) {
		t.Fatalf("view = %q", out)
	}

	out = ResultView(Result{Language: "python", Remote: true, Err: errors.New("NameError: x")})
	if !strings.Contains(out, "NameError: x") || !strings.Contains(out, "remote") || !strings.Contains(out, IconError) {
		t.Fatalf("view = %q", out)
	}
}

func TestCodeView(t *testing.T) {
	out := CodeView("a\nb\n")
	if !strings.Contains(out, "1") || !strings.Contains(out, "b") {
		t.Fatalf("view = %q", out)
	}
	if !strings.Contains(CodeView("  "), "empty") {
		t.Fatal("empty buffer not reported")
	}
}

func TestTaskModel(t *testing.T) {
	cancelled := false
	m := newTaskModel("Running", nil, func() { cancelled = true })

	if !strings.Contains(m.View(), "Running") {
		t.Fatalf("view = %q", m.View())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !cancelled {
		t.Fatal("esc did not cancel")
	}

	_, cmd := m.Update(taskDoneMsg{output: "8\n"})
	if cmd == nil || !m.done || m.output != "8\n" {
		t.Fatalf("done = %v output = %q", m.done, m.output)
	}
	if m.View() != "" {
		t.Fatal("finished task still rendered")
	}
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s := NewWaitingSpinner("idle")
	s.Stop()
	s.Stop()
}

func TestSpinnerUpdateMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewConnectionSpinner("Connecting to server...")
	s.out = &buf

	s.UpdateMessage("Creating room...")
	s.Start()
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "Creating room...") || strings.Contains(out, "Connecting to server...") {
		t.Fatalf("spinner output = %q", out)
	}
}

func TestRoomInfoView(t *testing.T) {
	view := NewRoomInfo("ABCDEF", "https://warprun.example.com/r/ABCDEF").View()
	for _, want := range []string{IconRoom, "ABCDEF", "warprun join ABCDEF"} {
		if !strings.Contains(view, want) {
			t.Fatalf("room info missing %q: %q", want, view)
		}
	}
}
