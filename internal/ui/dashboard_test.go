package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crx/internal/tasks"
)

func newTestDashboard() *Dashboard {
	events := make(chan tasks.Event)
	return NewDashboard(DashboardOpts{
		Operation: "Import",
		Profile:   "mika",
		Events:    events,
	})
}

func applyEvent(t *testing.T, d *Dashboard, event tasks.Event) {
	t.Helper()
	if _, cmd := d.applyEvent(event); cmd == nil {
		t.Fatal("expected a follow-up command after applying an event")
	}
}

func TestDashboardProgressEvents(t *testing.T) {
	d := newTestDashboard()

	applyEvent(t, d, tasks.Event{Kind: tasks.EventProgress, Progress: tasks.ProgressUpdate{
		Category: tasks.CategoryWatchlist, Total: 10, Processed: 4, Added: 3, AlreadyPresent: 1,
	}})

	idx := int(tasks.CategoryWatchlist)
	p := d.progressByCat[idx]
	if p == nil {
		t.Fatal("expected progress state for watchlist")
	}

	if p.Processed != 4 || p.Added != 3 {
		t.Errorf("got processed=%d added=%d, want 4 and 3", p.Processed, p.Added)
	}

	if d.phaseStarted[idx].IsZero() {
		t.Error("expected phase start to be recorded on first progress event")
	}

	started := d.phaseStarted[idx]
	applyEvent(t, d, tasks.Event{Kind: tasks.EventProgress, Progress: tasks.ProgressUpdate{
		Category: tasks.CategoryWatchlist, Total: 10, Processed: 8,
	}})

	if !d.phaseStarted[idx].Equal(started) {
		t.Error("phase start should not move on later progress events")
	}
}

func TestDashboardLogRing(t *testing.T) {
	d := newTestDashboard()

	for i := 0; i < maxLogLines+20; i++ {
		applyEvent(t, d, tasks.Event{Kind: tasks.EventLog, Log: tasks.LogEvent{
			Level: tasks.LogSuccess, Message: fmt.Sprintf("line %d", i),
		}})
	}

	if len(d.log) != maxLogLines {
		t.Fatalf("got %d log lines, want %d", len(d.log), maxLogLines)
	}

	if got := d.log[0].message; got != "line 20" {
		t.Errorf("got oldest line %q, want %q", got, "line 20")
	}
}

func TestDashboardDone(t *testing.T) {
	d := newTestDashboard()

	if d.Done() {
		t.Fatal("dashboard should not start done")
	}

	_, cmd := d.applyEvent(tasks.Event{Kind: tasks.EventDone})
	if !d.Done() {
		t.Error("expected done after the done event")
	}

	if cmd == nil {
		t.Error("expected a linger command after the done event")
	}
}

func TestDashboardQuitKeys(t *testing.T) {
	cancelled := false
	events := make(chan tasks.Event)
	d := NewDashboard(DashboardOpts{
		Operation: "Export",
		Profile:   "main",
		Events:    events,
		Cancel:    func() { cancelled = true },
	})

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd != nil {
		t.Error("quitting mid-operation should drain events, not quit immediately")
	}

	if !cancelled {
		t.Error("expected cancel to run on q")
	}

	d.done = true
	_, cmd = d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Error("expected quit command once the operation is done")
	}
}

func TestDashboardEta(t *testing.T) {
	d := newTestDashboard()
	idx := int(tasks.CategoryHistory)

	if got := d.eta(idx); got != 0 {
		t.Errorf("got eta %v before any progress, want 0", got)
	}

	d.phaseStarted[idx] = time.Now().Add(-10 * time.Second)
	d.progressByCat[idx] = &tasks.ProgressUpdate{Category: tasks.CategoryHistory, Total: 100, Processed: 50}

	eta := d.eta(idx)
	if eta < 8*time.Second || eta > 12*time.Second {
		t.Errorf("got eta %v, want roughly 10s", eta)
	}

	d.progressByCat[idx].Processed = 100
	if got := d.eta(idx); got != 0 {
		t.Errorf("got eta %v for a finished phase, want 0", got)
	}

	d.progressByCat[idx] = &tasks.ProgressUpdate{Category: tasks.CategoryHistory, Processed: 40}
	if got := d.eta(idx); got != 0 {
		t.Errorf("got eta %v for streaming with unknown total, want 0", got)
	}
}

func TestFormatETA(t *testing.T) {
	cases := []struct {
		eta  time.Duration
		want string
	}{
		{0, ""},
		{-time.Second, ""},
		{45 * time.Second, " | ~45s left"},
		{125 * time.Second, " | ~2m5s left"},
	}

	for _, tc := range cases {
		if got := formatETA(tc.eta); got != tc.want {
			t.Errorf("formatETA(%v) = %q, want %q", tc.eta, got, tc.want)
		}
	}
}

func TestDashboardView(t *testing.T) {
	d := newTestDashboard()
	d.applyEvent(tasks.Event{Kind: tasks.EventProgress, Progress: tasks.ProgressUpdate{
		Category: tasks.CategoryWatchlist, Total: 5, Processed: 2, Added: 2,
	}})
	d.applyEvent(tasks.Event{Kind: tasks.EventLog, Log: tasks.LogEvent{
		Level: tasks.LogError, Message: "Naruto -- rate limited",
	}})

	view := d.View()

	for _, want := range []string{"Import", "mika", "Watchlist", "2/5", "Naruto -- rate limited", "waiting..."} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}
