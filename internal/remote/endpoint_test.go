package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/sandbox"
)

// pipe delivers frames to the other endpoint asynchronously, like a data
// channel would.
type pipe struct {
	mu        sync.Mutex
	peer      *Endpoint
	connected bool
	frames    [][]byte
}

func (p *pipe) Send(frame []byte) error {
	p.mu.Lock()
	p.frames = append(p.frames, frame)
	peer := p.peer
	p.mu.Unlock()

	if peer != nil {
		go peer.HandleFrame(frame)
	}
	return nil
}

func (p *pipe) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *pipe) sent() []*Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Message
	for _, f := range p.frames {
		if msg, err := Decode(f); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

type executorFunc func(ctx context.Context, language, code string) (string, error)

func (f executorFunc) Execute(ctx context.Context, language, code string) (string, error) {
	return f(ctx, language, code)
}

func newPair(t *testing.T, exec Executor) (local, remote *Endpoint) {
	t.Helper()

	toRemote := &pipe{connected: true}
	toLocal := &pipe{connected: true}

	local = NewEndpoint(toRemote, nil, Handlers{}, zerolog.Nop())
	remote = NewEndpoint(toLocal, exec, Handlers{}, zerolog.Nop())
	toRemote.peer = remote
	toLocal.peer = local

	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	return local, remote
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestExecuteRoundTrip(t *testing.T) {
	sb := sandbox.NewDefault(sandbox.DefaultPolicy(), sandbox.StaticLocator{}, zerolog.Nop())
	local, _ := newPair(t, sb)

	got, err := local.Execute(context.Background(), "javascript", "console.log(5+3)")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "8\n" {
		t.Fatalf("result = %q, want %q", got, "8\n")
	}

	got, err = local.Execute(context.Background(), "javascript", "let x = 1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != sandbox.NoOutputPlaceholder {
		t.Fatalf("result = %q", got)
	}
}

func TestExecuteRemoteError(t *testing.T) {
	sb := sandbox.NewDefault(sandbox.DefaultPolicy(), sandbox.StaticLocator{}, zerolog.Nop())
	local, _ := newPair(t, sb)

	_, err := local.Execute(context.Background(), "cobol", "DISPLAY 'HI'")
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if remoteErr.Message == "" {
		t.Fatal("empty remote error")
	}
}

func TestExecuteNotConnected(t *testing.T) {
	ch := &pipe{}
	e := NewEndpoint(ch, nil, Handlers{}, zerolog.Nop())
	defer e.Close()

	if _, err := e.Execute(context.Background(), "javascript", "1"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if len(ch.sent()) != 0 {
		t.Fatal("frame sent while disconnected")
	}
}

func TestSingleOutstandingRequest(t *testing.T) {
	release := make(chan struct{})
	local, _ := newPair(t, executorFunc(func(ctx context.Context, language, code string) (string, error) {
		<-release
		return code, nil
	}))

	first := make(chan string, 1)
	go func() {
		out, _ := local.Execute(context.Background(), "javascript", "first")
		first <- out
	}()
	waitFor(t, "pending request", local.Pending)

	if _, err := local.Execute(context.Background(), "javascript", "second"); !errors.Is(err, ErrRequestInFlight) {
		t.Fatalf("err = %v, want ErrRequestInFlight", err)
	}

	close(release)
	select {
	case out := <-first:
		if out != "first" {
			t.Fatalf("result = %q", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first request never completed")
	}
}

func TestAbandonedRequestKeepsSlot(t *testing.T) {
	release := make(chan struct{})
	local, _ := newPair(t, executorFunc(func(ctx context.Context, language, code string) (string, error) {
		if code == "slow" {
			<-release
		}
		return code, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := local.Execute(ctx, "javascript", "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	if !local.Pending() {
		t.Fatal("abandoned request released its slot")
	}
	if _, err := local.Execute(context.Background(), "javascript", "next"); !errors.Is(err, ErrRequestInFlight) {
		t.Fatalf("err = %v, want ErrRequestInFlight", err)
	}

	close(release)
	waitFor(t, "late result", func() bool { return !local.Pending() })

	out, err := local.Execute(context.Background(), "javascript", "next")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "next" {
		t.Fatalf("result = %q, want the new request's result", out)
	}
}

func TestBusyEndpointRefusesSecondExecute(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	back := &pipe{connected: true}
	e := NewEndpoint(back, executorFunc(func(ctx context.Context, language, code string) (string, error) {
		<-release
		return "", nil
	}), Handlers{}, zerolog.Nop())
	defer e.Close()

	frame, _ := Encode(NewExecute("javascript", "1"))
	e.HandleFrame(frame)
	e.HandleFrame(frame)

	sent := back.sent()
	if len(sent) != 1 || sent[0].Error == nil || *sent[0].Error != errBusy {
		t.Fatalf("sent = %+v, want one busy error", sent)
	}
}

func TestMalformedFrames(t *testing.T) {
	both := "x"
	bad := []*Message{
		{Type: "explode"},
		{Type: MessageTypeExecute, Code: "1"},
		{Type: MessageTypeResult},
		{Type: MessageTypeResult, Result: &both, Error: &both},
	}

	back := &pipe{connected: true}
	e := NewEndpoint(back, executorFunc(func(ctx context.Context, language, code string) (string, error) {
		t.Fatal("executor called for malformed frame")
		return "", nil
	}), Handlers{}, zerolog.Nop())
	defer e.Close()

	if _, err := Decode([]byte{0xc1}); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("garbage: err = %v", err)
	}
	e.HandleFrame([]byte{0xc1})

	for _, msg := range bad {
		if _, err := Encode(msg); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("Encode(%+v) err = %v", msg, err)
		}
	}

	if len(back.sent()) != 0 {
		t.Fatal("malformed frame produced a reply")
	}
}

func TestStrayResultDropped(t *testing.T) {
	back := &pipe{connected: true}
	e := NewEndpoint(back, nil, Handlers{}, zerolog.Nop())
	defer e.Close()

	frame, _ := Encode(NewResult("late"))
	e.HandleFrame(frame)

	if e.Pending() {
		t.Fatal("stray result created a pending request")
	}
}

func TestCloseFailsPending(t *testing.T) {
	out := &pipe{connected: true}
	e := NewEndpoint(out, nil, Handlers{}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := e.Execute(context.Background(), "javascript", "1")
		done <- err
	}()
	waitFor(t, "pending request", e.Pending)

	e.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrDisconnected) {
			t.Fatalf("err = %v, want ErrDisconnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after Close")
	}

	if _, err := e.Execute(context.Background(), "javascript", "1"); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("err after close = %v", err)
	}
}

func TestCloseCancelsServing(t *testing.T) {
	back := &pipe{connected: true}
	served := make(chan error, 1)
	e := NewEndpoint(back, executorFunc(func(ctx context.Context, language, code string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), Handlers{OnServed: func(language string, err error) { served <- err }}, zerolog.Nop())

	frame, _ := Encode(NewExecute("python", "while True: pass"))
	e.HandleFrame(frame)
	e.Close()

	select {
	case err := <-served:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serving not cancelled")
	}
}
