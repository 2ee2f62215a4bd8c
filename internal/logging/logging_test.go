package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"dev":        zerolog.DebugLevel,
		"debug":      zerolog.DebugLevel,
		" INFO ":     zerolog.InfoLevel,
		"warning":    zerolog.WarnLevel,
		"production": zerolog.ErrorLevel,
		"":           zerolog.ErrorLevel,
		"off":        zerolog.Disabled,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPionLoggerFactory(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "debug"})

	l := PionLoggerFactory{Logger: log}.NewLogger("ice")
	l.Debugf("candidate %d", 3)
	l.Trace("dropped")

	out := buf.String()
	if !strings.Contains(out, `"pion":"ice"`) || !strings.Contains(out, "candidate 3") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(out, "dropped") {
		t.Fatal("trace must be filtered at debug level")
	}
}

func TestInitReplacesGlobal(t *testing.T) {
	prev := L()
	t.Cleanup(func() {
		mu.Lock()
		global = prev
		mu.Unlock()
	})

	Init(Config{Level: "warn"})
	if got := L().GetLevel(); got != zerolog.WarnLevel {
		t.Fatalf("global level = %v, want warn", got)
	}
}
