// SPDX-License-Identifier: MIT

// Package watchdog polls an error probe on a fixed interval and raises
// edge-triggered callbacks when the sampled health state changes.
package watchdog

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openvend/vmcd/internal/log"
)

// Probe reports whether the monitored collaborator is currently in error.
// A probe error is treated as unhealthy (fail-safe), never as "no change".
type Probe func() (bool, error)

// Watchdog samples a probe periodically and invokes onError on every
// healthy-to-unhealthy edge and onRecover on every unhealthy-to-healthy
// edge, exactly once per edge.
type Watchdog struct {
	probe     Probe
	onError   func()
	onRecover func()
	interval  time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	logger zerolog.Logger
}

// New creates a watchdog. It does not start sampling until Start is called.
func New(probe Probe, onError, onRecover func(), interval time.Duration) *Watchdog {
	return &Watchdog{
		probe:     probe,
		onError:   onError,
		onRecover: onRecover,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		logger:    log.WithComponent("watchdog"),
	}
}

// Start samples the probe once to establish a baseline, without firing any
// callback, and then launches the poll loop.
func (w *Watchdog) Start() {
	last := w.sample()
	w.logger.Info().
		Str(log.FieldEvent, "watchdog.started").
		Bool("error_state", last).
		Dur("interval", w.interval).
		Msg("watchdog started")
	go w.loop(last)
}

// Stop requests loop termination. It is safe to call multiple times; the
// loop observes the request within one poll interval.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

// Done is closed when the poll loop has exited. Callers join on it before
// proceeding with shutdown.
func (w *Watchdog) Done() <-chan struct{} {
	return w.done
}

func (w *Watchdog) loop(last bool) {
	defer close(w.done)

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			w.logger.Info().Str(log.FieldEvent, "watchdog.stopped").Msg("watchdog stopped")
			return
		case <-timer.C:
		}

		state := w.sample()
		if state != last {
			w.logger.Info().
				Str(log.FieldEvent, "watchdog.edge").
				Bool("error_state", state).
				Msg("error state changed, executing callback")
			if state {
				w.onError()
			} else {
				w.onRecover()
			}
			last = state
		}

		timer.Reset(w.interval)
	}
}

func (w *Watchdog) sample() bool {
	state, err := w.probe()
	if err != nil {
		w.logger.Error().
			Err(err).
			Str(log.FieldEvent, "watchdog.probe_failed").
			Msg("probe failed, assuming error state")
		return true
	}
	return state
}
