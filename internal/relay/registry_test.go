package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/signaling"
)

type fakeHandle struct {
	id string

	mu   sync.Mutex
	msgs []*signaling.Message
}

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{id: id}
}

func (f *fakeHandle) ID() string { return f.id }

func (f *fakeHandle) Send(msg *signaling.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeHandle) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (f *fakeHandle) count(msgType string) int {
	n := 0
	for _, t := range f.types() {
		if t == msgType {
			n++
		}
	}
	return n
}

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func equalTypes(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestCreateAcknowledges(t *testing.T) {
	r := newTestRegistry()
	a := newFakeHandle("a")

	r.Create("ABCDEF", a)

	if got := a.types(); !equalTypes(got, []string{signaling.MessageTypeCreated}) {
		t.Fatalf("creator events = %v, want [created]", got)
	}
	if a.msgs[0].RoomID != "ABCDEF" {
		t.Fatalf("created room id = %q", a.msgs[0].RoomID)
	}
	if n := r.Members("ABCDEF"); n != 1 {
		t.Fatalf("members = %d, want 1", n)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	r := newTestRegistry()
	b := newFakeHandle("b")

	err := r.Join("NOPE", b)
	if !errors.Is(err, signaling.ErrRoomNotFound) {
		t.Fatalf("join unknown: err = %v, want ErrRoomNotFound", err)
	}
	if r.Exists("NOPE") {
		t.Fatal("join must not create a room")
	}
	if len(b.types()) != 0 {
		t.Fatalf("joiner got events %v", b.types())
	}
}

func TestJoinBroadcastsReady(t *testing.T) {
	r := newTestRegistry()
	a, b := newFakeHandle("a"), newFakeHandle("b")

	r.Create("ABCDEF", a)
	if err := r.Join("ABCDEF", b); err != nil {
		t.Fatalf("join: %v", err)
	}

	if got := a.types(); !equalTypes(got, []string{signaling.MessageTypeCreated, signaling.MessageTypeReady}) {
		t.Fatalf("creator events = %v", got)
	}
	if got := b.types(); !equalTypes(got, []string{signaling.MessageTypeJoined, signaling.MessageTypeReady}) {
		t.Fatalf("joiner events = %v", got)
	}
}

func TestThirdJoinIsRejected(t *testing.T) {
	r := newTestRegistry()
	a, b, c := newFakeHandle("a"), newFakeHandle("b"), newFakeHandle("c")

	r.Create("ABCDEF", a)
	if err := r.Join("ABCDEF", b); err != nil {
		t.Fatalf("join b: %v", err)
	}

	err := r.Join("ABCDEF", c)
	if !errors.Is(err, signaling.ErrRoomFull) {
		t.Fatalf("join c: err = %v, want ErrRoomFull", err)
	}
	if n := r.Members("ABCDEF"); n != 2 {
		t.Fatalf("members = %d, want 2", n)
	}
	if len(c.types()) != 0 {
		t.Fatalf("rejected joiner got events %v", c.types())
	}
}

func TestRelayExcludesSender(t *testing.T) {
	r := newTestRegistry()
	a, b := newFakeHandle("a"), newFakeHandle("b")

	r.Create("ABCDEF", a)
	if err := r.Join("ABCDEF", b); err != nil {
		t.Fatalf("join: %v", err)
	}

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	if n := r.Relay("ABCDEF", a, payload); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}

	if n := a.count(signaling.MessageTypeSignal); n != 0 {
		t.Fatalf("sender received %d signals", n)
	}
	if n := b.count(signaling.MessageTypeSignal); n != 1 {
		t.Fatalf("peer received %d signals, want 1", n)
	}

	last := b.msgs[len(b.msgs)-1]
	if string(last.Payload) != string(payload) {
		t.Fatalf("payload = %s, want %s", last.Payload, payload)
	}
}

func TestRelayUnknownRoomIsNoop(t *testing.T) {
	r := newTestRegistry()
	a := newFakeHandle("a")

	if n := r.Relay("NOPE", a, json.RawMessage(`{}`)); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
	if r.Len() != 0 {
		t.Fatal("relay must not create rooms")
	}
}

func TestDisconnectDrainsRoom(t *testing.T) {
	r := newTestRegistry()
	a, b := newFakeHandle("a"), newFakeHandle("b")

	r.Create("ABCDEF", a)
	if err := r.Join("ABCDEF", b); err != nil {
		t.Fatalf("join: %v", err)
	}

	r.Disconnect(a)
	if n := r.Members("ABCDEF"); n != 1 {
		t.Fatalf("members after first disconnect = %d, want 1", n)
	}
	if n := b.count(signaling.MessageTypePeerLeft); n != 1 {
		t.Fatalf("remaining member got %d peer_left, want 1", n)
	}

	r.Disconnect(b)
	if r.Exists("ABCDEF") {
		t.Fatal("drained room still exists")
	}

	c := newFakeHandle("c")
	if err := r.Join("ABCDEF", c); !errors.Is(err, signaling.ErrRoomNotFound) {
		t.Fatalf("join drained room: err = %v, want ErrRoomNotFound", err)
	}
}

func TestDisconnectUnknownHandle(t *testing.T) {
	r := newTestRegistry()
	r.Disconnect(newFakeHandle("ghost"))
	if r.Len() != 0 {
		t.Fatal("unexpected rooms")
	}
}

func TestRecreateExtendsThenTakesOver(t *testing.T) {
	r := newTestRegistry()
	a, b, c := newFakeHandle("a"), newFakeHandle("b"), newFakeHandle("c")

	r.Create("ABCDEF", a)
	r.Create("ABCDEF", b)
	if n := r.Members("ABCDEF"); n != 2 {
		t.Fatalf("members after second create = %d, want 2", n)
	}
	if n := a.count(signaling.MessageTypeReady); n != 0 {
		t.Fatal("create must not broadcast ready")
	}

	r.Create("ABCDEF", c)
	if n := r.Members("ABCDEF"); n != 1 {
		t.Fatalf("members after take over = %d, want 1", n)
	}
	if a.count(signaling.MessageTypePeerLeft) != 1 || b.count(signaling.MessageTypePeerLeft) != 1 {
		t.Fatal("displaced members must receive peer_left")
	}

	// Displaced handles no longer belong to the room.
	r.Disconnect(a)
	r.Disconnect(b)
	if n := r.Members("ABCDEF"); n != 1 {
		t.Fatalf("members = %d, want 1", n)
	}
}

func TestCreateTwiceBySameHandle(t *testing.T) {
	r := newTestRegistry()
	a := newFakeHandle("a")

	r.Create("ABCDEF", a)
	r.Create("ABCDEF", a)

	if n := r.Members("ABCDEF"); n != 1 {
		t.Fatalf("members = %d, want 1", n)
	}
	if n := a.count(signaling.MessageTypeCreated); n != 2 {
		t.Fatalf("created acks = %d, want 2", n)
	}
}

func TestConcurrentRooms(t *testing.T) {
	r := newTestRegistry()

	const rooms = 50
	var wg sync.WaitGroup
	for i := 0; i < rooms; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			id := fmt.Sprintf("room-%d", i)
			a, b, c := newFakeHandle(id+"-a"), newFakeHandle(id+"-b"), newFakeHandle(id+"-c")

			r.Create(id, a)
			if err := r.Join(id, b); err != nil {
				t.Errorf("join %s: %v", id, err)
				return
			}
			if err := r.Join(id, c); !errors.Is(err, signaling.ErrRoomFull) {
				t.Errorf("third join %s: err = %v", id, err)
			}
			for j := 0; j < 10; j++ {
				r.Relay(id, a, json.RawMessage(`{}`))
			}
			if n := b.count(signaling.MessageTypeSignal); n != 10 {
				t.Errorf("%s: peer got %d signals, want 10", id, n)
			}

			r.Disconnect(a)
			r.Disconnect(b)
		}(i)
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Fatalf("rooms left = %d, want 0", r.Len())
	}
}

func TestConcurrentJoinOneWins(t *testing.T) {
	for iter := 0; iter < 20; iter++ {
		r := newTestRegistry()
		r.Create("ABCDEF", newFakeHandle("creator"))

		const joiners = 8
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			joined int
		)
		for i := 0; i < joiners; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := r.Join("ABCDEF", newFakeHandle(fmt.Sprintf("j%d", i))); err == nil {
					mu.Lock()
					joined++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if joined != 1 {
			t.Fatalf("iteration %d: %d joins succeeded, want 1", iter, joined)
		}
		if n := r.Members("ABCDEF"); n != MaxMembers {
			t.Fatalf("members = %d, want %d", n, MaxMembers)
		}
	}
}

func TestGenerateRoomIDSkipsTaken(t *testing.T) {
	taken := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := generateRoomID(func(id string) bool { return taken[id] })
		if taken[id] {
			t.Fatalf("generated taken id %q", id)
		}
		if id == "" || len(id) > MaxRoomIDLength {
			t.Fatalf("bad id %q", id)
		}
		taken[id] = true
	}
}
