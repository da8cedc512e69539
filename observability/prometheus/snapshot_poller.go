package prometheus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Swind/go-job-system/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SystemSnapshotProvider provides current job system stats snapshots.
type SystemSnapshotProvider interface {
	Stats() core.SystemStats
}

// SnapshotPoller periodically exports job system Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	systemsMu sync.RWMutex
	systems   map[string]SystemSnapshotProvider

	systemQueued     *prom.GaugeVec
	systemActive     *prom.GaugeVec
	systemSuspended  *prom.GaugeVec
	systemWorkers    *prom.GaugeVec
	systemRunning    *prom.GaugeVec
	systemDispatched *prom.GaugeVec
	systemCompleted  *prom.GaugeVec
	systemStolen     *prom.GaugeVec

	poolInUse         *prom.GaugeVec
	poolCreated       *prom.GaugeVec
	poolReservedBytes *prom.GaugeVec

	workerState *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	systemGauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "jobsystem",
			Name:      name,
			Help:      help,
		}, []string{"system", "backend"})
	}

	p := &SnapshotPoller{
		interval:          interval,
		systems:           make(map[string]SystemSnapshotProvider),
		systemQueued:      systemGauge("system_queued", "Entries waiting in worker queues."),
		systemActive:      systemGauge("system_active", "Jobs executing right now."),
		systemSuspended:   systemGauge("system_suspended", "Jobs suspended in WaitForJobs."),
		systemWorkers:     systemGauge("system_workers", "Worker count per system."),
		systemRunning:     systemGauge("system_running", "System running state (1=running, 0=stopped)."),
		systemDispatched:  systemGauge("system_dispatched_total", "Dispatched job count snapshot."),
		systemCompleted:   systemGauge("system_completed_total", "Completed job count snapshot."),
		systemStolen:      systemGauge("system_stolen_total", "Stolen entry count snapshot."),
		poolInUse:         systemGauge("fiber_pool_in_use", "Fibers currently handed out."),
		poolCreated:       systemGauge("fiber_pool_created", "Fibers alive in the pool."),
		poolReservedBytes: systemGauge("fiber_pool_reserved_bytes", "Stack bytes reserved by live fibers."),
		workerState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "jobsystem",
			Name:      "worker_state",
			Help:      "Worker loop state (1 for the current state).",
		}, []string{"system", "worker", "state"}),
	}

	for _, g := range []**prom.GaugeVec{
		&p.systemQueued, &p.systemActive, &p.systemSuspended, &p.systemWorkers,
		&p.systemRunning, &p.systemDispatched, &p.systemCompleted, &p.systemStolen,
		&p.poolInUse, &p.poolCreated, &p.poolReservedBytes, &p.workerState,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}

	return p, nil
}

// AddSystem adds or replaces a job system snapshot provider by name.
func (p *SnapshotPoller) AddSystem(name string, provider SystemSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "system")
	p.systemsMu.Lock()
	p.systems[name] = provider
	p.systemsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

var workerStates = []core.WorkerState{
	core.WorkerIdle,
	core.WorkerFetching,
	core.WorkerRunning,
	core.WorkerSwitching,
}

func (p *SnapshotPoller) collectOnce() {
	p.systemsMu.RLock()
	defer p.systemsMu.RUnlock()

	for name, provider := range p.systems {
		stats := provider.Stats()
		backend := normalizeLabel(string(stats.Backend), "unknown")

		p.systemQueued.WithLabelValues(name, backend).Set(float64(stats.Queued))
		p.systemActive.WithLabelValues(name, backend).Set(float64(stats.Active))
		p.systemSuspended.WithLabelValues(name, backend).Set(float64(stats.Suspended))
		p.systemWorkers.WithLabelValues(name, backend).Set(float64(stats.Workers))
		p.systemDispatched.WithLabelValues(name, backend).Set(float64(stats.Dispatched))
		p.systemCompleted.WithLabelValues(name, backend).Set(float64(stats.Completed))
		p.systemStolen.WithLabelValues(name, backend).Set(float64(stats.Stolen))
		if stats.Running {
			p.systemRunning.WithLabelValues(name, backend).Set(1)
		} else {
			p.systemRunning.WithLabelValues(name, backend).Set(0)
		}

		p.poolInUse.WithLabelValues(name, backend).Set(float64(stats.FiberPool.InUse))
		p.poolCreated.WithLabelValues(name, backend).Set(float64(stats.FiberPool.Created))
		p.poolReservedBytes.WithLabelValues(name, backend).Set(float64(stats.FiberPool.ReservedBytes))

		for id, current := range stats.WorkerStates {
			worker := strconv.Itoa(id)
			for _, st := range workerStates {
				v := 0.0
				if st == current {
					v = 1
				}
				p.workerState.WithLabelValues(name, worker, st.String()).Set(v)
			}
		}
	}
}
