package pool

import "context"

// resizeLoop recomputes the pool size on a fixed cadence. It is the only
// writer of the sizing state.
func (p *Pool) resizeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := p.clock.Ticker(p.cfg.ResizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.resizeTick(p.baseCtx)
		case <-stop:
			return
		}
	}
}

// resizeTick applies one sizing step from three inputs: probe load, recent
// task failure rate, and queue depth. At most one worker is added or
// removed per tick to avoid oscillation. A probe failure skips the tick
// and retains the current size.
func (p *Pool) resizeTick(ctx context.Context) {
	load, err := p.probe.Sample(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Probe unavailable, resize tick skipped")
		return
	}

	var failureRate float64
	if p.obs != nil {
		failureRate = p.obs.FailureRate(p.cfg.FailureWindow)
	}
	queueDepth := len(p.queue)

	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.state.CurrentSize
	target := cur

	switch {
	case load.CPUPercent > p.cfg.CPUOverload || failureRate > p.cfg.FailureRateMax:
		if cur > p.cfg.MinWorkers {
			target = cur - 1
		}
	case load.CPUPercent < p.cfg.CPUHighWater && queueDepth > cur:
		if cur < p.cfg.MaxWorkers {
			target = cur + 1
		}
	}

	if target > cur {
		p.spawnWorkerLocked()
		poolResizes.WithLabelValues("up").Inc()
	} else if target < cur {
		// A retiring worker finishes its in-flight unit first; the
		// buffered signal is consumed between units.
		p.stopWorker <- struct{}{}
		poolResizes.WithLabelValues("down").Inc()
	}

	p.state = State{
		CurrentSize:  target,
		TargetSize:   target,
		LastResizeAt: p.clock.Now(),
	}
	poolWorkers.Set(float64(target))

	if target != cur {
		p.logger.Info().
			Int("from", cur).
			Int("to", target).
			Float64("cpu_percent", load.CPUPercent).
			Float64("failure_rate", failureRate).
			Int("queue_depth", queueDepth).
			Msg("Pool resized")
	}
}
