package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/config"
)

func newVNetAPIs(t *testing.T) (*pion.API, *pion.API) {
	t.Helper()

	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(func() { _ = router.Stop() })

	apis := make([]*pion.API, 0, 2)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		n, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{ip}})
		if err != nil {
			t.Fatalf("new net %s: %v", ip, err)
		}
		if err := router.AddNet(n); err != nil {
			t.Fatalf("add net %s: %v", ip, err)
		}

		se := pion.SettingEngine{}
		se.SetNet(n)
		apis = append(apis, pion.NewAPI(pion.WithSettingEngine(se)))
	}

	if err := router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}
	return apis[0], apis[1]
}

func newTestEngine(t *testing.T, api *pion.API) *PionEngine {
	t.Helper()
	e, err := NewEngine(Options{API: api, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func waitChannel(t *testing.T, ch <-chan DataChannel) DataChannel {
	t.Helper()
	select {
	case dc := <-ch:
		return dc
	case <-time.After(15 * time.Second):
		t.Fatal("data channel did not open")
		return nil
	}
}

func TestEngineHandshake(t *testing.T) {
	apiA, apiB := newVNetAPIs(t)
	initiator := newTestEngine(t, apiA)
	responder := newTestEngine(t, apiB)

	readyA := make(chan DataChannel, 1)
	readyB := make(chan DataChannel, 1)
	initiator.OnChannelReady(func(dc DataChannel) { readyA <- dc })
	responder.OnChannelReady(func(dc DataChannel) { readyB <- dc })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	offer, err := initiator.CreateOffer(ctx)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	var desc struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(offer, &desc); err != nil || desc.Type != "offer" {
		t.Fatalf("offer = %s (%v)", offer, err)
	}

	answer, err := responder.CreateAnswer(ctx, offer)
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if err := initiator.ApplyRemoteSignal(answer); err != nil {
		t.Fatalf("ApplyRemoteSignal: %v", err)
	}

	dcA := waitChannel(t, readyA)
	dcB := waitChannel(t, readyB)

	got := make(chan []byte, 1)
	dcB.OnMessage(func(frame []byte) { got <- frame })

	if err := dcA.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case frame := <-got:
		if string(frame) != "ping" {
			t.Fatalf("frame = %q", frame)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("frame not delivered")
	}

	closed := make(chan struct{})
	dcA.OnClose(func() { close(closed) })
	if err := initiator.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose did not fire")
	}

	if err := dcA.Send([]byte("late")); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Send after close: err = %v", err)
	}
}

func TestApplyRemoteSignalRejectsOffer(t *testing.T) {
	apiA, apiB := newVNetAPIs(t)
	a := newTestEngine(t, apiA)
	b := newTestEngine(t, apiB)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	offer, err := a.CreateOffer(ctx)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	if err := b.ApplyRemoteSignal(offer); !errors.Is(err, ErrUnexpectedSignal) {
		t.Fatalf("err = %v, want ErrUnexpectedSignal", err)
	}
	if _, err := b.CreateAnswer(ctx, json.RawMessage(`{"nope":1}`)); !errors.Is(err, ErrUnexpectedSignal) {
		t.Fatalf("err = %v, want ErrUnexpectedSignal", err)
	}
}

func TestRestrictedInterface(t *testing.T) {
	cases := []struct {
		name string
		ips  []net.IP
		want bool
	}{
		{"eth0", []net.IP{net.ParseIP("192.168.1.5")}, false},
		{"wg0", nil, true},
		{"utun3", nil, true},
		{"en0", []net.IP{net.ParseIP("100.100.1.1")}, true},
		{"en0", []net.IP{net.ParseIP("100.128.0.1")}, false},
	}
	for _, tc := range cases {
		if got := restrictedInterface(tc.name, tc.ips); got != tc.want {
			t.Fatalf("restrictedInterface(%s, %v) = %v, want %v", tc.name, tc.ips, got, tc.want)
		}
	}
}

func TestConfiguration(t *testing.T) {
	cfg := &config.Config{ICE: config.ICEConfig{
		STUNServer: "stun:stun.example.org:3478",
		TURNServer: "turn:turn.example.org",
		TURNUser:   "user",
		TURNPass:   "pass",
		ForceRelay: true,
	}}

	pc := Configuration(cfg)
	if len(pc.ICEServers) != 2 {
		t.Fatalf("ice servers = %d, want 2", len(pc.ICEServers))
	}
	if pc.ICEServers[1].Username != "user" {
		t.Fatalf("turn username = %q", pc.ICEServers[1].Username)
	}
	if pc.ICETransportPolicy != pion.ICETransportPolicyRelay {
		t.Fatalf("policy = %v, want relay", pc.ICETransportPolicy)
	}

	cfg.ICE.TURNServer = ""
	if pc := Configuration(cfg); pc.ICETransportPolicy != pion.ICETransportPolicyAll || len(pc.ICEServers) != 1 {
		t.Fatalf("without TURN: %+v", pc)
	}
}
