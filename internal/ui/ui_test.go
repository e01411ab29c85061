package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestRoomTableView(t *testing.T) {
	out := RoomTableView([]RoomTableItem{
		{Index: 1, RoomID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427"},
		{Index: 2, RoomID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
	})
	for _, want := range []string{"Room ID", "1b4e28ba-2fa1-11d2-883f-0016d3cca427", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRoomTableViewEmpty(t *testing.T) {
	if out := RoomTableView(nil); !strings.Contains(out, "No open rooms") {
		t.Fatalf("unexpected empty table %q", out)
	}
}

func TestRunSummaryView(t *testing.T) {
	out := RunSummaryView("Server emulator", RunSummary{
		Role:        "server",
		Duration:    3 * time.Second,
		Sent:        42,
		Received:    40,
		MeanLatency: 1500 * time.Microsecond,
	})
	for _, want := range []string{"Server emulator", "Frames sent", "42", "40", "1.5ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "-") {
		t.Errorf("expected unmeasured max latency to render as -:\n%s", out)
	}
}

func TestMonitorModelAppliesUpdates(t *testing.T) {
	updates := make(chan MonitorUpdate, 1)
	m := newMonitorModel("Client emulator", updates)

	for i := 0; i < monitorHistory+2; i++ {
		next, cmd := m.Update(MonitorUpdate{Event: "wave", Sent: 3, Received: 7})
		m = next.(*monitorModel)
		if cmd == nil {
			t.Fatal("expected the model to keep listening for updates")
		}
	}
	if len(m.history) != monitorHistory {
		t.Fatalf("expected history capped at %d, got %d", monitorHistory, len(m.history))
	}

	view := m.View()
	if !strings.Contains(view, "Client emulator") || !strings.Contains(view, "7") {
		t.Fatalf("view missing counters:\n%s", view)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if v := next.(*monitorModel).View(); v != "" {
		t.Fatalf("expected empty view after quit, got %q", v)
	}
}
