package syncq

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultProbeInterval is how often connectivity is re-checked.
	DefaultProbeInterval = 10 * time.Second
	// DefaultHeartbeatInterval matches the original 30s session ping.
	DefaultHeartbeatInterval = 30 * time.Second
)

// Monitor tracks online/offline transitions and emits session heartbeats.
// Both loops are tied to the context passed to Start, so navigation away
// (context cancellation) cannot leak timers.
type Monitor struct {
	// Probe reports reachability of the collection server.
	Probe func(ctx context.Context) bool
	// Heartbeat refreshes the session's lastActivity. Failures are
	// swallowed: a missed beat self-corrects at the next interval.
	Heartbeat func(ctx context.Context) error

	ProbeInterval     time.Duration
	HeartbeatInterval time.Duration

	mu        sync.Mutex
	online    bool
	started   bool
	callbacks []func(online bool)

	cancel context.CancelFunc
	done   chan struct{}
}

// OnStatusChange registers a callback fired on every online/offline flip.
// Callbacks run on the monitor goroutine; long work should be spawned off.
func (m *Monitor) OnStatusChange(fn func(online bool)) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// IsOnline reports the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Start probes once synchronously to seed the state, then runs the probe
// and heartbeat loops until the context is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.setOnline(m.probe(ctx))

	go m.run(ctx)
}

// Stop cancels the loops and waits for them to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	probeTick := time.NewTicker(m.probeInterval())
	beatTick := time.NewTicker(m.heartbeatInterval())
	defer probeTick.Stop()
	defer beatTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-probeTick.C:
			m.setOnline(m.probe(ctx))
		case <-beatTick.C:
			if m.Heartbeat != nil && m.IsOnline() {
				_ = m.Heartbeat(ctx) // fire and forget
			}
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	if m.Probe == nil {
		return true
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.Probe(cctx)
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	cbs := append([]func(bool){}, m.callbacks...)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range cbs {
		fn(online)
	}
}

func (m *Monitor) probeInterval() time.Duration {
	if m.ProbeInterval > 0 {
		return m.ProbeInterval
	}
	return DefaultProbeInterval
}

func (m *Monitor) heartbeatInterval() time.Duration {
	if m.HeartbeatInterval > 0 {
		return m.HeartbeatInterval
	}
	return DefaultHeartbeatInterval
}
