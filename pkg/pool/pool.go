package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/BryanMarcialC/perfkit/pkg/metrics"
	"github.com/BryanMarcialC/perfkit/pkg/probe"
)

// Observer is the slice of the metrics aggregator the pool needs: it
// reports task outcomes and reads the recent failure rate back for resize
// decisions. Satisfied by *metrics.Aggregator.
type Observer interface {
	Record(metrics.Sample)
	FailureRate(window int) float64
}

// Default policy values for the resize loop.
const (
	DefaultResizeInterval = 5 * time.Second
	DefaultCPUHighWater   = 70.0
	DefaultCPUOverload    = 85.0
	DefaultFailureRateMax = 0.05
	DefaultFailureWindow  = 100
	DefaultDrainWait      = 30 * time.Second
)

// Config holds pool configuration.
type Config struct {
	// MinWorkers and MaxWorkers bound the pool size. 1 <= Min <= Max.
	MinWorkers int
	MaxWorkers int

	// QueueCapacity bounds the admission queue. Must be > 0.
	QueueCapacity int

	// EnqueueWait is the longest Submit blocks for a queue slot before
	// failing with ErrSaturated. Zero fails immediately on a full queue.
	EnqueueWait time.Duration

	// ResizeInterval is the cadence of the resize loop. Zero disables
	// automatic resizing (the pool stays at MinWorkers).
	ResizeInterval time.Duration

	// CPUHighWater gates growth: the pool only grows while CPU
	// utilization is below it.
	CPUHighWater float64

	// CPUOverload forces shrinking once CPU utilization exceeds it.
	CPUOverload float64

	// FailureRateMax is the task failure share above which the pool
	// shrinks instead of growing.
	FailureRateMax float64

	// FailureWindow is how many recent task samples the failure rate
	// is computed over.
	FailureWindow int

	// Probe supplies system load for resize decisions. Nil disables
	// automatic resizing.
	Probe probe.Probe

	// Observer receives task outcome samples and answers failure-rate
	// queries. Nil disables both.
	Observer Observer

	// Clock supplies time; defaults to the wall clock.
	Clock clock.Clock

	// Logger for pool events.
	Logger zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MinWorkers:     2,
		MaxWorkers:     16,
		QueueCapacity:  128,
		EnqueueWait:    100 * time.Millisecond,
		ResizeInterval: DefaultResizeInterval,
		CPUHighWater:   DefaultCPUHighWater,
		CPUOverload:    DefaultCPUOverload,
		FailureRateMax: DefaultFailureRateMax,
		FailureWindow:  DefaultFailureWindow,
	}
}

// State is a read-only copy of the pool's sizing state.
type State struct {
	CurrentSize  int
	TargetSize   int
	LastResizeAt time.Time
}

// Pool executes submitted work units on a dynamically sized set of workers.
// Admission is FIFO; completion order is not guaranteed.
type Pool struct {
	cfg    Config
	clock  clock.Clock
	probe  probe.Probe
	obs    Observer
	logger zerolog.Logger

	queue      chan *task
	stopWorker chan struct{}

	// closeMu serializes queue sends against closing the queue channel
	// during shutdown.
	closeMu sync.RWMutex
	closed  bool

	mu      sync.Mutex
	state   State
	started bool

	baseCtx    context.Context
	cancelBase context.CancelFunc

	resizeStop chan struct{}
	resizeDone chan struct{}

	wg     sync.WaitGroup
	nextID atomic.Uint64
}

// New creates a pool. Invalid bounds fail fast with a ConfigError.
func New(cfg Config) (*Pool, error) {
	if cfg.MinWorkers < 1 {
		return nil, &ConfigError{Field: "MinWorkers", Reason: fmt.Sprintf("must be >= 1 (got %d)", cfg.MinWorkers)}
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		return nil, &ConfigError{Field: "MaxWorkers", Reason: fmt.Sprintf("must be >= MinWorkers %d (got %d)", cfg.MinWorkers, cfg.MaxWorkers)}
	}
	if cfg.QueueCapacity < 1 {
		return nil, &ConfigError{Field: "QueueCapacity", Reason: fmt.Sprintf("must be >= 1 (got %d)", cfg.QueueCapacity)}
	}
	if cfg.EnqueueWait < 0 {
		return nil, &ConfigError{Field: "EnqueueWait", Reason: "must be >= 0"}
	}
	if cfg.CPUHighWater <= 0 {
		cfg.CPUHighWater = DefaultCPUHighWater
	}
	if cfg.CPUOverload <= 0 {
		cfg.CPUOverload = DefaultCPUOverload
	}
	if cfg.CPUOverload < cfg.CPUHighWater {
		return nil, &ConfigError{Field: "CPUOverload", Reason: fmt.Sprintf("must be >= CPUHighWater %.0f (got %.0f)", cfg.CPUHighWater, cfg.CPUOverload)}
	}
	if cfg.FailureRateMax <= 0 {
		cfg.FailureRateMax = DefaultFailureRateMax
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = DefaultFailureWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &Pool{
		cfg:        cfg,
		clock:      cfg.Clock,
		probe:      cfg.Probe,
		obs:        cfg.Observer,
		logger:     cfg.Logger,
		queue:      make(chan *task, cfg.QueueCapacity),
		stopWorker: make(chan struct{}, cfg.MaxWorkers),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}, nil
}

// Start spawns MinWorkers workers and, when a probe is configured, the
// resize loop. Calling Start twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.cfg.MinWorkers; i++ {
		p.spawnWorkerLocked()
	}
	p.state = State{
		CurrentSize: p.cfg.MinWorkers,
		TargetSize:  p.cfg.MinWorkers,
	}
	poolWorkers.Set(float64(p.cfg.MinWorkers))

	if p.probe != nil && p.cfg.ResizeInterval > 0 {
		p.resizeStop = make(chan struct{})
		p.resizeDone = make(chan struct{})
		go p.resizeLoop(p.resizeStop, p.resizeDone)
	}

	p.logger.Info().
		Int("min_workers", p.cfg.MinWorkers).
		Int("max_workers", p.cfg.MaxWorkers).
		Int("queue_capacity", p.cfg.QueueCapacity).
		Msg("Pool started")
}

// Submit enqueues one unit and returns its handle. Admission is FIFO; a
// full queue fails with ErrSaturated after the bounded enqueue wait, never
// by blocking indefinitely.
func (p *Pool) Submit(u Unit) (*Handle, error) {
	if u.Action == nil {
		return nil, fmt.Errorf("pool: unit action must not be nil")
	}

	t := &task{
		id:          p.nextID.Add(1),
		fingerprint: u.Fingerprint,
		action:      u.Action,
		submittedAt: p.clock.Now(),
		done:        make(chan struct{}),
	}

	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	select {
	case p.queue <- t:
	default:
		if p.cfg.EnqueueWait <= 0 {
			poolSaturated.Inc()
			return nil, fmt.Errorf("%w: queue at capacity %d", ErrSaturated, p.cfg.QueueCapacity)
		}
		timer := p.clock.Timer(p.cfg.EnqueueWait)
		defer timer.Stop()
		select {
		case p.queue <- t:
		case <-timer.C:
			poolSaturated.Inc()
			p.logger.Warn().
				Uint64("unit_id", t.id).
				Str("fingerprint", t.fingerprint).
				Msg("Submission rejected, queue saturated")
			return nil, fmt.Errorf("%w: queue at capacity %d", ErrSaturated, p.cfg.QueueCapacity)
		}
	}

	poolQueueDepth.Set(float64(len(p.queue)))
	return &Handle{t: t}, nil
}

// State returns a copy of the current sizing state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// QueueDepth returns the number of admitted units not yet picked up.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Shutdown stops admission, lets in-flight and queued units drain, and
// returns once the pool is idle. If maxWait elapses first the remaining
// queued units complete as Cancelled, in-flight actions are cancelled
// cooperatively via their context, and ErrDrainTimeout is returned.
func (p *Pool) Shutdown(maxWait time.Duration) error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return ErrClosed
	}
	p.closed = true
	p.closeMu.Unlock()

	p.mu.Lock()
	resizeStop, resizeDone := p.resizeStop, p.resizeDone
	p.resizeStop, p.resizeDone = nil, nil
	p.mu.Unlock()
	if resizeStop != nil {
		close(resizeStop)
		<-resizeDone
	}

	// No submitter can be mid-send: sends hold closeMu.RLock and check
	// closed first.
	close(p.queue)

	if maxWait <= 0 {
		maxWait = DefaultDrainWait
	}

	idle := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(idle)
	}()

	timer := p.clock.Timer(maxWait)
	defer timer.Stop()

	select {
	case <-idle:
		p.cancelBase()
		// Workers only exit on an empty closed queue; this drain is a
		// no-op unless the pool was never started.
		for t := range p.queue {
			t.cancel()
		}
		p.logger.Info().Msg("Pool drained")
		return nil
	case <-timer.C:
		p.cancelBase()
		cancelled := 0
		for t := range p.queue {
			if t.cancel() {
				cancelled++
				poolTasks.WithLabelValues(OutcomeCancelled.String()).Inc()
			}
		}
		p.logger.Warn().
			Int("cancelled", cancelled).
			Dur("max_wait", maxWait).
			Msg("Drain wait elapsed, queued units cancelled")
		return fmt.Errorf("%w after %v (%d queued units cancelled)", ErrDrainTimeout, maxWait, cancelled)
	}
}

// spawnWorkerLocked starts one worker goroutine. Caller holds p.mu.
func (p *Pool) spawnWorkerLocked() {
	p.wg.Add(1)
	id := p.nextID.Add(1)
	go p.worker(id)
}

// worker pulls one unit at a time until retired by a downsize signal or
// the queue closes. A retiring worker always finishes its in-flight unit.
func (p *Pool) worker(id uint64) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopWorker:
			p.logger.Debug().Uint64("worker_id", id).Msg("Worker retired")
			return
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			poolQueueDepth.Set(float64(len(p.queue)))
			p.run(id, t)
		}
	}
}

// run executes one unit and records exactly one task_success or
// task_failure sample. Cancelled units are skipped without a sample.
func (p *Pool) run(workerID uint64, t *task) {
	if !t.begin() {
		// Cancelled before pickup; the handle is already complete.
		return
	}

	start := p.clock.Now()
	value, err := p.call(t)
	elapsed := p.clock.Now().Sub(start)

	outcome := OutcomeSuccess
	kind := metrics.KindTaskSuccess
	if err != nil {
		outcome = OutcomeFailure
		kind = metrics.KindTaskFailure
	}
	t.complete(value, err, outcome)

	poolTasks.WithLabelValues(outcome.String()).Inc()
	if p.obs != nil {
		p.obs.Record(metrics.Sample{Kind: kind, Duration: elapsed, At: p.clock.Now()})
	}

	if err != nil {
		p.logger.Debug().
			Err(err).
			Uint64("worker_id", workerID).
			Uint64("unit_id", t.id).
			Str("fingerprint", t.fingerprint).
			Dur("duration", elapsed).
			Msg("Work unit failed")
	}
}

// call invokes the action with panic containment: a panicking unit becomes
// a failure, never a crashed worker.
func (p *Pool) call(t *task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return t.action(p.baseCtx)
}
