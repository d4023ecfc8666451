package tracking

import (
	"sync"
	"testing"
	"time"
)

type fakeController struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeController) SetHighFrequency(enabled bool) {
	f.mu.Lock()
	f.calls = append(f.calls, enabled)
	f.mu.Unlock()
}

func (f *fakeController) last() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return false, false
	}
	return f.calls[len(f.calls)-1], true
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestLifecycleMonitor_SubscribeOnce(t *testing.T) {
	lm := NewLifecycleMonitor(nil, nil)
	defer lm.Close()

	events := make(chan LifecycleEvent)
	if err := lm.Subscribe(events); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if err := lm.Subscribe(events); err != ErrAlreadySubscribed {
		t.Errorf("second Subscribe() error = %v, want ErrAlreadySubscribed", err)
	}
}

func TestLifecycleMonitor_ForegroundStartsWarmup(t *testing.T) {
	ctrl := &fakeController{}
	lm := NewLifecycleMonitor(ctrl, nil)
	defer lm.Close()

	events := make(chan LifecycleEvent, 1)
	if err := lm.Subscribe(events); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	events <- EventForeground
	waitFor(t, lm.InWarmup, "warm-up did not start after foreground event")

	enabled, ok := ctrl.last()
	if !ok || !enabled {
		t.Error("controller not switched to high frequency")
	}
}

func TestLifecycleMonitor_WarmupEndsAfterConsecutiveAccepts(t *testing.T) {
	ctrl := &fakeController{}
	lm := NewLifecycleMonitor(ctrl, nil)
	defer lm.Close()

	events := make(chan LifecycleEvent, 1)
	if err := lm.Subscribe(events); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	events <- EventForeground
	waitFor(t, lm.InWarmup, "warm-up did not start")

	// A rejection in between resets the consecutive count.
	lm.NoteAccepted()
	lm.NoteRejected()
	lm.NoteAccepted()
	lm.NoteAccepted()
	if !lm.InWarmup() {
		t.Fatal("warm-up ended before three consecutive accepts")
	}
	lm.NoteAccepted()
	if lm.InWarmup() {
		t.Error("warm-up still active after three consecutive accepts")
	}

	enabled, ok := ctrl.last()
	if !ok || enabled {
		t.Error("controller not switched back to normal frequency")
	}
}

func TestLifecycleMonitor_BackgroundEndsWarmup(t *testing.T) {
	lm := NewLifecycleMonitor(nil, nil)
	defer lm.Close()

	events := make(chan LifecycleEvent, 2)
	if err := lm.Subscribe(events); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	events <- EventForeground
	waitFor(t, lm.InWarmup, "warm-up did not start")

	events <- EventBackground
	waitFor(t, func() bool { return !lm.InWarmup() }, "warm-up did not end on background")
}

func TestLifecycleMonitor_CloseIsIdempotent(t *testing.T) {
	lm := NewLifecycleMonitor(nil, nil)
	events := make(chan LifecycleEvent)
	if err := lm.Subscribe(events); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	lm.Close()
	lm.Close() // must not panic

	if err := lm.Subscribe(events); err == nil {
		t.Error("Subscribe() after Close succeeded, want error")
	}
}
