package tracking

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/logging"
	"github.com/strollr-labs/strollr/internal/infra/observability"
)

// ─── Lifecycle Monitor ──────────────────────────────────────────────────────
// Observes host foreground/background transitions and runs a bounded GPS
// warm-up after each return to foreground, since accuracy degrades while
// backgrounded. The monitor owns no GPS data itself.

// LifecycleEvent is a host process transition.
type LifecycleEvent int

const (
	EventForeground LifecycleEvent = iota
	EventBackground
)

// SamplingController is the platform location service knob the monitor
// drives: high frequency during warm-up, normal otherwise.
type SamplingController interface {
	SetHighFrequency(enabled bool)
}

const (
	// warmupMaxDuration bounds a warm-up period.
	warmupMaxDuration = 10 * time.Second

	// warmupTargetAccepted ends warm-up early once this many consecutive
	// samples pass the filter.
	warmupTargetAccepted = 3
)

// ErrAlreadySubscribed is returned when Subscribe is called twice. The
// monitor holds exactly one lifecycle subscription per process lifetime;
// re-subscribing on every resume leaks listeners.
var ErrAlreadySubscribed = errors.New("lifecycle monitor already subscribed")

// LifecycleMonitor is process-scoped state with an init-once/teardown-once
// contract.
type LifecycleMonitor struct {
	mu          sync.Mutex
	subscribed  bool
	closed      bool
	warmupUntil time.Time
	consecutive int

	controller SamplingController
	clock      domain.Clock
	stop       chan struct{}
	done       chan struct{}
	log        zerolog.Logger
}

// NewLifecycleMonitor creates a monitor driving the given controller.
// Controller may be nil (warm-up state is still tracked for callers).
func NewLifecycleMonitor(controller SamplingController, clock domain.Clock) *LifecycleMonitor {
	if clock == nil {
		clock = domain.ClockFunc(time.Now)
	}
	return &LifecycleMonitor{
		controller: controller,
		clock:      clock,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        logging.Component("lifecycle"),
	}
}

// Subscribe attaches the monitor to a lifecycle event stream. It may be
// called at most once; subsequent calls return ErrAlreadySubscribed.
func (lm *LifecycleMonitor) Subscribe(events <-chan LifecycleEvent) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.closed {
		return errors.New("lifecycle monitor closed")
	}
	if lm.subscribed {
		return ErrAlreadySubscribed
	}
	lm.subscribed = true
	go lm.watch(events)
	return nil
}

func (lm *LifecycleMonitor) watch(events <-chan LifecycleEvent) {
	defer close(lm.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev {
			case EventForeground:
				lm.beginWarmup()
			case EventBackground:
				lm.endWarmup("backgrounded")
			}
		case <-ticker.C:
			lm.expireWarmup()
		case <-lm.stop:
			return
		}
	}
}

// Close tears the subscription down deterministically. Safe to call once.
func (lm *LifecycleMonitor) Close() {
	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return
	}
	lm.closed = true
	subscribed := lm.subscribed
	lm.mu.Unlock()

	close(lm.stop)
	if subscribed {
		<-lm.done
	}
}

// InWarmup reports whether a warm-up period is currently active.
func (lm *LifecycleMonitor) InWarmup() bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.clock.Now().Before(lm.warmupUntil)
}

// NoteAccepted informs the monitor a sample passed the filter. Three
// consecutive accepted samples end the warm-up early.
func (lm *LifecycleMonitor) NoteAccepted() {
	lm.mu.Lock()
	if !lm.clock.Now().Before(lm.warmupUntil) {
		lm.mu.Unlock()
		return
	}
	lm.consecutive++
	doneEarly := lm.consecutive >= warmupTargetAccepted
	lm.mu.Unlock()

	if doneEarly {
		lm.endWarmup("accuracy recovered")
	}
}

// NoteRejected resets the consecutive-accept counter during warm-up.
func (lm *LifecycleMonitor) NoteRejected() {
	lm.mu.Lock()
	lm.consecutive = 0
	lm.mu.Unlock()
}

func (lm *LifecycleMonitor) beginWarmup() {
	now := lm.clock.Now()
	lm.mu.Lock()
	lm.warmupUntil = now.Add(warmupMaxDuration)
	lm.consecutive = 0
	lm.mu.Unlock()

	observability.WarmupsStarted.Inc()
	if lm.controller != nil {
		lm.controller.SetHighFrequency(true)
	}
	lm.log.Debug().Msg("warm-up started")
}

func (lm *LifecycleMonitor) endWarmup(reason string) {
	lm.mu.Lock()
	active := lm.clock.Now().Before(lm.warmupUntil)
	lm.warmupUntil = time.Time{}
	lm.consecutive = 0
	lm.mu.Unlock()

	if lm.controller != nil {
		lm.controller.SetHighFrequency(false)
	}
	if active {
		lm.log.Debug().Str("reason", reason).Msg("warm-up ended")
	}
}

func (lm *LifecycleMonitor) expireWarmup() {
	lm.mu.Lock()
	expired := !lm.warmupUntil.IsZero() && !lm.clock.Now().Before(lm.warmupUntil)
	if expired {
		lm.warmupUntil = time.Time{}
		lm.consecutive = 0
	}
	lm.mu.Unlock()

	if expired && lm.controller != nil {
		lm.controller.SetHighFrequency(false)
	}
}
