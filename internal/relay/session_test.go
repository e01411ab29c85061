package relay

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestSendDropsNewestWhenSaturated(t *testing.T) {
	reg := NewRegistry(Options{QueueSize: 2, Logger: zerolog.Nop()})
	server, err := reg.OpenRoom(uuid.New())
	if err != nil {
		t.Fatalf("open room: %v", err)
	}

	if err := server.Send(TextFrame([]byte("a"))); err != nil {
		t.Fatalf("send a: %v", err)
	}
	if err := server.Send(TextFrame([]byte("b"))); err != nil {
		t.Fatalf("send b: %v", err)
	}
	if err := server.Send(TextFrame([]byte("c"))); !errors.Is(err, ErrOutboundSaturated) {
		t.Fatalf("expected ErrOutboundSaturated, got %v", err)
	}
	if server.Dropped() != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", server.Dropped())
	}

	for _, want := range []string{"a", "b"} {
		if got := string(recv(t, server).Data); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
	expectNone(t, server)
}

func TestSaturatedClientDoesNotAffectOthers(t *testing.T) {
	reg := NewRegistry(Options{QueueSize: 1, Logger: zerolog.Nop()})
	server, err := reg.OpenRoom(uuid.New())
	if err != nil {
		t.Fatalf("open room: %v", err)
	}
	slow, err := reg.JoinRoom(server.ID(), uuid.New())
	if err != nil {
		t.Fatalf("join slow: %v", err)
	}

	server.HandleInbound(TextFrame([]byte("1")))

	fast, err := reg.JoinRoom(server.ID(), uuid.New())
	if err != nil {
		t.Fatalf("join fast: %v", err)
	}
	server.HandleInbound(TextFrame([]byte("2")))

	if got := string(recv(t, fast).Data); got != "2" {
		t.Fatalf("fast client expected 2, got %q", got)
	}
	if got := string(recv(t, slow).Data); got != "1" {
		t.Fatalf("slow client expected 1, got %q", got)
	}
	expectNone(t, slow)
	if slow.Dropped() != 1 {
		t.Fatalf("expected slow client to drop one frame, got %d", slow.Dropped())
	}
}

func TestSendAfterCloseIsNoop(t *testing.T) {
	reg := NewRegistry(Options{Logger: zerolog.Nop()})
	server, err := reg.OpenRoom(uuid.New())
	if err != nil {
		t.Fatalf("open room: %v", err)
	}

	server.Close()
	select {
	case <-server.Done():
	default:
		t.Fatal("done should be closed after Close")
	}
	if err := server.Send(TextFrame([]byte("x"))); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	expectNone(t, server)
}

func TestParseNoticeRejectsPeerTraffic(t *testing.T) {
	if _, _, ok := ParseNotice([]byte("hello")); ok {
		t.Fatal("short payload parsed as notice")
	}
	data := make([]byte, NoticeLen)
	data[0] = 0x42
	if _, _, ok := ParseNotice(data); ok {
		t.Fatal("unknown opcode parsed as notice")
	}
}

func TestBroadcastCountsOnlyQueuedFrames(t *testing.T) {
	reg := NewRegistry(Options{QueueSize: 1, Logger: zerolog.Nop()})
	server, err := reg.OpenRoom(uuid.New())
	if err != nil {
		t.Fatalf("open room: %v", err)
	}
	live, err := reg.JoinRoom(server.ID(), uuid.New())
	if err != nil {
		t.Fatalf("join live: %v", err)
	}
	detached, err := reg.JoinRoom(server.ID(), uuid.New())
	if err != nil {
		t.Fatalf("join detached: %v", err)
	}
	closing, err := reg.JoinRoom(server.ID(), uuid.New())
	if err != nil {
		t.Fatalf("join closing: %v", err)
	}

	// Still mapped in the room, but no longer able to take frames.
	detached.detach()
	close(closing.done)

	if n := server.room.broadcast(TextFrame([]byte("1"))); n != 1 {
		t.Fatalf("expected 1 queued frame, got %d", n)
	}
	// The live client's queue is now full.
	if n := server.room.broadcast(TextFrame([]byte("2"))); n != 0 {
		t.Fatalf("expected 0 queued frames, got %d", n)
	}
	if got := string(recv(t, live).Data); got != "1" {
		t.Fatalf("expected 1, got %q", got)
	}
}

func TestDeliverReportsNoop(t *testing.T) {
	reg := NewRegistry(Options{Logger: zerolog.Nop()})
	server, err := reg.OpenRoom(uuid.New())
	if err != nil {
		t.Fatalf("open room: %v", err)
	}
	if ok, err := server.deliver(TextFrame([]byte("x"))); !ok || err != nil {
		t.Fatalf("expected queued frame, got %v %v", ok, err)
	}
	server.Close()
	if ok, err := server.deliver(TextFrame([]byte("y"))); ok || err != nil {
		t.Fatalf("expected no-op after close, got %v %v", ok, err)
	}
}

func TestParseEnvelopeRejectsMalformed(t *testing.T) {
	id := uuid.New()
	cases := map[string][]byte{
		"short":          {EnvelopeBinary, 1, 2},
		"unknown opcode": append([]byte{0x42}, id[:]...),
		"notice payload": append(append([]byte{NoticeJoin}, id[:]...), 0xFF),
	}
	for name, data := range cases {
		if _, err := ParseEnvelope(data); !errors.Is(err, ErrNotAnEnvelope) {
			t.Errorf("%s: expected ErrNotAnEnvelope, got %v", name, err)
		}
	}

	e, err := ParseEnvelope(append([]byte{EnvelopeBinary}, id[:]...))
	if err != nil || e.ClientID != id || len(e.Payload) != 0 || e.IsNotice() {
		t.Fatalf("empty binary envelope: %+v %v", e, err)
	}
}
