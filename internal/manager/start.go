package manager

import (
	"context"
	"fmt"
	"time"

	"medmodeld/internal/procrun"
)

// startPollInterval is how often StartRuntime checks whether a starting runtime answers.
const startPollInterval = 250 * time.Millisecond

// StartResult reports a StartRuntime call.
type StartResult struct {
	Endpoint       string        `json:"endpoint"`
	AlreadyRunning bool          `json:"alreadyRunning"`
	Started        bool          `json:"started"`
	Waited         time.Duration `json:"waitedNanos"`
}

// StartRuntime launches `<bin> serve` in the background when the runtime does
// not answer, then polls until it does or the start timeout passes. The spawned
// server outlives ctx. Concurrent callers are serialised.
func (m *Manager) StartRuntime(ctx context.Context) (*StartResult, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	res := &StartResult{Endpoint: m.rt.Endpoint()}
	if m.rt.CheckReachable(ctx) {
		setRuntimeReachable(true)
		res.AlreadyRunning = true
		return res, nil
	}

	args := []string{m.ollamaBin, "serve"}
	log := m.log.With().Str("bin", m.ollamaBin).Logger()
	p, err := procrun.Spawn(m.runner, args)
	if err != nil {
		if procrun.IsNotFound(err) {
			return nil, ErrRuntimeStartFailed(fmt.Sprintf("%s not found", m.ollamaBin))
		}
		return nil, ErrRuntimeStartFailed(err.Error())
	}
	exited := make(chan int, 1)
	go func() {
		code, werr := p.Wait()
		if werr != nil {
			log.Warn().Err(werr).Msg("runtime process wait")
		}
		log.Info().Int("exit_code", code).Msg("runtime process exited")
		exited <- code
	}()
	log.Info().Msg("runtime process spawned")

	start := time.Now()
	deadline := time.NewTimer(m.startTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(startPollInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case code := <-exited:
			return nil, ErrRuntimeStartFailed(fmt.Sprintf("%s serve exited with status %d", m.ollamaBin, code))
		case <-deadline.C:
			return nil, ErrRuntimeStartFailed(fmt.Sprintf("runtime did not answer within %s", m.startTimeout))
		case <-tick.C:
			if !m.rt.CheckReachable(ctx) {
				continue
			}
			setRuntimeReachable(true)
			res.Started = true
			res.Waited = time.Since(start)
			if err := m.Sync(ctx); err != nil {
				log.Warn().Err(err).Msg("sync after start")
			}
			m.publish(Event{Name: EventRuntimeStarted, Fields: map[string]any{"waited_ms": res.Waited.Milliseconds()}})
			return res, nil
		}
	}
}
