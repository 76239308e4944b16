package model

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/modoterra/cmdhub/pkg/core"
)

type fakeHub struct {
	mu     sync.Mutex
	logs   map[core.InstanceID][]string
	global []string
	resets int
}

func newFakeHub() *fakeHub {
	h := &fakeHub{logs: make(map[core.InstanceID][]string)}
	h.add("7171", "SET a 1")
	h.add("7172", "GET a")
	h.add("7171", "DEL a")
	return h
}

func (h *fakeHub) add(id core.InstanceID, cmd string) {
	h.logs[id] = append(h.logs[id], cmd)
	h.global = append(h.global, cmd)
}

func (h *fakeHub) CommandCounts(context.Context) (map[core.InstanceID]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[core.InstanceID]int)
	for id, l := range h.logs {
		out[id] = len(l)
	}
	return out, nil
}

func (h *fakeHub) All(context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.global...), nil
}

func (h *fakeHub) AllByInstance(_ context.Context, id core.InstanceID) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.logs[id]...), nil
}

func (h *fakeHub) Reset(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = make(map[core.InstanceID][]string)
	h.global = nil
	h.resets++
	return nil
}

// step applies msg and runs the returned command once, feeding a
// snapshot result back into the model.
func step(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, cmd := a.Update(msg)
	a = m.(App)
	// Cursor blink commands block; search mode is checked by state only.
	if cmd == nil || a.mode == ModeSearch {
		return a
	}
	switch out := cmd().(type) {
	case snapshotMsg, noticeMsg, errorMsg:
		m, _ = a.Update(out)
		a = m.(App)
	}
	return a
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, h *fakeHub) App {
	t.Helper()
	a := New(h)
	m, _ := a.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	a = m.(App)
	m, _ = a.Update(a.fetchCmd()())
	return m.(App)
}

func TestSnapshot(t *testing.T) {
	a := loaded(t, newFakeHub())
	if len(a.instances) != 2 || a.total != 3 {
		t.Fatalf("instances = %+v, total = %d", a.instances, a.total)
	}
	if a.instances[0].ID != "7171" || a.instances[0].Count != 2 {
		t.Errorf("first instance = %+v", a.instances[0])
	}
	if len(a.commands) != 3 {
		t.Errorf("commands = %v", a.commands)
	}
}

func TestSelectInstance(t *testing.T) {
	a := loaded(t, newFakeHub())
	a = step(t, a, key("j"))
	if a.selectedInstance() != "7171" {
		t.Fatalf("selected = %q", a.selectedInstance())
	}
	if len(a.commands) != 2 || a.commands[1] != "DEL a" {
		t.Errorf("commands = %v", a.commands)
	}
	a = step(t, a, key("j"))
	a = step(t, a, key("j"))
	if a.selectedInstance() != "7172" {
		t.Errorf("selection moved past the end: %q", a.selectedInstance())
	}
	a = step(t, a, key("k"))
	a = step(t, a, key("k"))
	if a.selectedInstance() != "" {
		t.Errorf("expected all-instances row, got %q", a.selectedInstance())
	}
}

func TestSearchFilters(t *testing.T) {
	a := loaded(t, newFakeHub())
	a = step(t, a, key("/"))
	if a.mode != ModeSearch {
		t.Fatal("expected search mode")
	}
	for _, r := range "get" {
		a = step(t, a, key(string(r)))
	}
	a = step(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	got := a.filteredCommands()
	if len(got) != 1 || got[0] != "GET a" {
		t.Errorf("filtered = %v", got)
	}
}

func TestCopyLastCommand(t *testing.T) {
	var copied string
	a := loaded(t, newFakeHub()).WithClipboard(func(s string) error {
		copied = s
		return nil
	})
	a = step(t, a, key("c"))
	if copied != "DEL a" {
		t.Errorf("copied %q", copied)
	}
}

func TestResetNeedsConfirmation(t *testing.T) {
	h := newFakeHub()
	a := loaded(t, h)

	a = step(t, a, key("x"))
	a = step(t, a, key("n"))
	if h.resets != 0 {
		t.Fatal("reset without confirmation")
	}

	a = step(t, a, key("x"))
	a = step(t, a, key("y"))
	if h.resets != 1 {
		t.Fatalf("resets = %d, want 1", h.resets)
	}
	if a.statusMsg != "hub reset" {
		t.Errorf("status = %q", a.statusMsg)
	}
}

func TestPauseKeepsCommands(t *testing.T) {
	h := newFakeHub()
	a := loaded(t, h)
	a = step(t, a, key(" "))
	h.mu.Lock()
	h.add("7171", "INCR n")
	h.mu.Unlock()
	m, _ := a.Update(a.fetchCmd()())
	a = m.(App)
	if len(a.commands) != 3 {
		t.Errorf("paused view changed: %v", a.commands)
	}
}

func TestDashboardRenders(t *testing.T) {
	tm := teatest.NewTestModel(t, New(newFakeHub()).WithInterval(50*time.Millisecond),
		teatest.WithInitialTermSize(100, 20))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("7172")) && bytes.Contains(b, []byte("DEL"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(key("q"))
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}
