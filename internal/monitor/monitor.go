package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultStatusInterval = 1500 * time.Millisecond
	defaultLogsInterval   = 2 * time.Second
	degradedThreshold     = 5
)

// Options configures the polling cadences.
type Options struct {
	StatusInterval time.Duration
	LogsInterval   time.Duration
}

// Monitor owns the polling lifecycle for one in-flight generation task: a
// status/progress loop and a log loop, independently scheduled, merged into a
// single Snapshot.
//
// Every in-flight fetch is tagged with the generation active at dispatch time;
// a result is applied only if the monitor is still active on that generation,
// so nothing fetched under an old handle ever lands after Start rebinds or
// Stop returns. The monitor never stops itself on terminal status; the caller
// owns the lifecycle.
type Monitor struct {
	backend        Backend
	statusInterval time.Duration
	logsInterval   time.Duration

	mu             sync.Mutex
	active         bool
	gen            uint64
	bound          TaskHandle
	snap           Snapshot
	statusFailures int
	stop           chan struct{}
	cancel         context.CancelFunc
}

// New creates a monitor polling the backend with the given cadences.
// Zero cadences fall back to the defaults (1.5s status, 2s logs).
func New(backend Backend, opts Options) *Monitor {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = defaultStatusInterval
	}
	if opts.LogsInterval <= 0 {
		opts.LogsInterval = defaultLogsInterval
	}
	return &Monitor{
		backend:        backend,
		statusInterval: opts.StatusInterval,
		logsInterval:   opts.LogsInterval,
		snap:           Snapshot{Status: StatusIdle},
	}
}

// Start binds the monitor to the handle and schedules both loops, firing the
// first fetch of each immediately. Starting while already active is
// equivalent to Stop followed by Start: no two handles are ever polled
// concurrently by one monitor.
func (m *Monitor) Start(handle TaskHandle) {
	m.mu.Lock()
	if m.active {
		m.stopLocked()
	}
	m.gen++
	gen := m.gen
	m.active = true
	m.bound = handle
	m.snap = Snapshot{Status: StatusIdle}
	m.statusFailures = 0
	m.stop = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	stop := m.stop
	m.mu.Unlock()

	log.Info().Str("task_id", handle.ID).Msg("task monitor started")
	go m.loop(ctx, stop, m.statusInterval, func() { m.pollStatus(ctx, gen, handle.ID) })
	go m.loop(ctx, stop, m.logsInterval, func() { m.pollLogs(ctx, gen, handle.ID) })
}

// Stop halts both loops. It is synchronous with respect to the snapshot: no
// fetch result, in-flight or future, is applied after Stop returns. Safe to
// call repeatedly and from any state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	if !m.active {
		return
	}
	m.active = false
	m.gen++
	close(m.stop)
	m.cancel()
	log.Info().Str("task_id", m.bound.ID).Msg("task monitor stopped")
}

// Snapshot returns a consistent copy of the current task state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Active reports whether a handle is currently being polled.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Bound returns the currently bound handle, if any.
func (m *Monitor) Bound() (TaskHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bound, m.active
}

// Degraded reports whether the status loop has failed enough times in a row
// to suggest sustained connectivity trouble.
func (m *Monitor) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusFailures >= degradedThreshold
}

// loop fires poll immediately, then on every tick until stopped.
func (m *Monitor) loop(ctx context.Context, stop <-chan struct{}, interval time.Duration, poll func()) {
	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

func (m *Monitor) pollStatus(ctx context.Context, gen uint64, id string) {
	report, err := m.backend.TaskStatus(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || gen != m.gen {
		// stale: the monitor rebound or stopped while this fetch was in flight
		return
	}
	if err != nil {
		m.statusFailures++
		if m.statusFailures == degradedThreshold {
			log.Warn().Str("task_id", id).Int("failures", m.statusFailures).Msg("status polling degraded")
		} else {
			log.Debug().Str("task_id", id).Err(err).Msg("status poll failed")
		}
		return
	}
	m.statusFailures = 0
	// progress is trusted as-is, no clamping
	m.snap.Status = report.Status
	m.snap.Progress = report.Progress
}

func (m *Monitor) pollLogs(ctx context.Context, gen uint64, id string) {
	logs, err := m.backend.TaskLogs(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || gen != m.gen {
		return
	}
	if err != nil {
		log.Debug().Str("task_id", id).Err(err).Msg("log poll failed")
		return
	}
	// the backend returns the full accumulated log: replace, not append
	m.snap.Logs = logs
}
