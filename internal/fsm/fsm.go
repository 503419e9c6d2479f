// SPDX-License-Identifier: MIT

// Package fsm implements a finite state machine with guarded transitions,
// enter/exit callbacks and per-state timeouts.
//
// The machine is configured declaratively: states, transitions, guards and
// callbacks are all resolved and validated when the engine is built, so a
// reference to a missing guard or an unknown state is a construction error,
// not a runtime failure.
//
// Fire serializes transitions under an internal mutex. Callbacks run inside
// the transition commit and therefore must not call back into Fire; follow-up
// triggers have to be deferred (vmcd routes them through the controller's
// event queue).
package fsm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openvend/vmcd/internal/log"
)

type (
	// State is a symbolic state name.
	State string
	// Trigger is a named event requesting a state change.
	Trigger string
)

// GuardFunc gates a transition. An error counts as guard=false and is
// surfaced as a diagnostic, never propagated to the Fire caller.
type GuardFunc func() (bool, error)

// Callback runs on entering or exiting a state.
type Callback func()

// StateDef declares a state. A state with Timeout > 0 fires OnTimeout
// through the timeout sink when it has been occupied for that long.
type StateDef struct {
	Name      State
	Timeout   time.Duration
	OnTimeout Trigger
}

// TransitionDef declares a transition. Guard is the name of a guard in
// Config.Guards, or empty for an unconditional transition.
type TransitionDef struct {
	Trigger Trigger
	Sources []State
	Dest    State
	Guard   string
}

// Config is the declarative engine configuration.
type Config struct {
	Initial     State
	States      []StateDef
	Transitions []TransitionDef
	Guards      map[string]GuardFunc
	OnEnter     map[State]Callback
	OnExit      map[State]Callback

	// TimeoutSink receives the OnTimeout trigger when a state timeout
	// expires. It is called from a timer goroutine and must hand the
	// trigger back to whichever context normally calls Fire; it must not
	// call Fire synchronously.
	TimeoutSink func(Trigger)
}

// Engine evaluates triggers against the configured transition table.
type Engine struct {
	states      map[State]StateDef
	transitions map[Trigger][]TransitionDef
	guards      map[string]GuardFunc
	onEnter     map[State]Callback
	onExit      map[State]Callback
	timeoutSink func(Trigger)

	mu       sync.Mutex
	current  State
	timer    *time.Timer
	timerGen uint64

	logger zerolog.Logger
}

// New builds an engine from cfg and validates every reference in the
// transition table.
func New(cfg Config) (*Engine, error) {
	if len(cfg.States) == 0 {
		return nil, fmt.Errorf("fsm: no states configured")
	}

	e := &Engine{
		states:      make(map[State]StateDef, len(cfg.States)),
		transitions: make(map[Trigger][]TransitionDef),
		guards:      cfg.Guards,
		onEnter:     cfg.OnEnter,
		onExit:      cfg.OnExit,
		timeoutSink: cfg.TimeoutSink,
		current:     cfg.Initial,
		logger:      log.WithComponent("fsm"),
	}

	triggers := make(map[Trigger]struct{})
	for _, t := range cfg.Transitions {
		triggers[t.Trigger] = struct{}{}
	}

	for _, s := range cfg.States {
		if _, dup := e.states[s.Name]; dup {
			return nil, fmt.Errorf("fsm: duplicate state %q", s.Name)
		}
		if s.Timeout > 0 {
			if s.OnTimeout == "" {
				return nil, fmt.Errorf("fsm: state %q has a timeout but no timeout trigger", s.Name)
			}
			if _, ok := triggers[s.OnTimeout]; !ok {
				return nil, fmt.Errorf("fsm: state %q references unknown timeout trigger %q", s.Name, s.OnTimeout)
			}
			if cfg.TimeoutSink == nil {
				return nil, fmt.Errorf("fsm: state %q has a timeout but no timeout sink is configured", s.Name)
			}
		}
		e.states[s.Name] = s
	}

	if _, ok := e.states[cfg.Initial]; !ok {
		return nil, fmt.Errorf("fsm: initial state %q is not configured", cfg.Initial)
	}

	for _, t := range cfg.Transitions {
		if len(t.Sources) == 0 {
			return nil, fmt.Errorf("fsm: transition %q has no source states", t.Trigger)
		}
		for _, src := range t.Sources {
			if _, ok := e.states[src]; !ok {
				return nil, fmt.Errorf("fsm: transition %q references unknown source state %q", t.Trigger, src)
			}
		}
		if _, ok := e.states[t.Dest]; !ok {
			return nil, fmt.Errorf("fsm: transition %q references unknown destination state %q", t.Trigger, t.Dest)
		}
		if t.Guard != "" {
			if _, ok := cfg.Guards[t.Guard]; !ok {
				return nil, fmt.Errorf("fsm: transition %q references unknown guard %q", t.Trigger, t.Guard)
			}
		}
		e.transitions[t.Trigger] = append(e.transitions[t.Trigger], t)
	}

	for state, cb := range cfg.OnEnter {
		if cb == nil {
			return nil, fmt.Errorf("fsm: nil enter callback for state %q", state)
		}
		if _, ok := e.states[state]; !ok {
			return nil, fmt.Errorf("fsm: enter callback for unknown state %q", state)
		}
	}
	for state, cb := range cfg.OnExit {
		if cb == nil {
			return nil, fmt.Errorf("fsm: nil exit callback for state %q", state)
		}
		if _, ok := e.states[state]; !ok {
			return nil, fmt.Errorf("fsm: exit callback for unknown state %q", state)
		}
	}

	e.mu.Lock()
	e.armTimerLocked()
	e.mu.Unlock()
	return e, nil
}

// Current returns the engine's current state.
func (e *Engine) Current() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Fire requests a state change. On success the transition commits as a
// unit: exit callback, state assignment, timer rebind, enter callback.
// If no transition applies, a *NoTransitionError is returned and the
// engine state is untouched.
func (e *Engine) Fire(trigger Trigger) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fireLocked(trigger)
}

func (e *Engine) fireLocked(trigger Trigger) error {
	for _, t := range e.transitions[trigger] {
		if !containsState(t.Sources, e.current) {
			continue
		}
		if t.Guard != "" {
			ok, err := e.guards[t.Guard]()
			if err != nil {
				e.logger.Error().
					Err(err).
					Str(log.FieldEvent, "fsm.guard_failed").
					Str(log.FieldGuard, t.Guard).
					Str(log.FieldTrigger, string(trigger)).
					Msg("guard evaluation failed, treating as false")
				ok = false
			}
			if !ok {
				continue
			}
		}

		e.cancelTimerLocked()
		if cb := e.onExit[e.current]; cb != nil {
			cb()
		}
		from := e.current
		e.current = t.Dest
		e.armTimerLocked()
		e.logger.Debug().
			Str(log.FieldEvent, "fsm.transition").
			Str(log.FieldTrigger, string(trigger)).
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(t.Dest)).
			Msg("state changed")
		if cb := e.onEnter[t.Dest]; cb != nil {
			cb()
		}
		return nil
	}
	return &NoTransitionError{Trigger: trigger, State: e.current}
}

// EligibleTriggers returns the triggers that have at least one transition
// out of the given state, without evaluating guards. The result is sorted.
func (e *Engine) EligibleTriggers(state State) []Trigger {
	var out []Trigger
	for trigger, defs := range e.transitions {
		for _, t := range defs {
			if containsState(t.Sources, state) {
				out = append(out, trigger)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TryFire fires the trigger only if it has a transition out of the current
// state, and swallows guard rejections. It reports whether a transition
// committed.
func (e *Engine) TryFire(trigger Trigger) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	eligible := false
	for _, t := range e.transitions[trigger] {
		if containsState(t.Sources, e.current) {
			eligible = true
			break
		}
	}
	if !eligible {
		e.logger.Debug().
			Str(log.FieldEvent, "fsm.trigger_ignored").
			Str(log.FieldTrigger, string(trigger)).
			Str(log.FieldState, string(e.current)).
			Msg("trigger not eligible from current state")
		return false
	}

	if err := e.fireLocked(trigger); err != nil {
		var nt *NoTransitionError
		if errors.As(err, &nt) {
			e.logger.Debug().
				Str(log.FieldEvent, "fsm.trigger_rejected").
				Str(log.FieldTrigger, string(trigger)).
				Str(log.FieldState, string(e.current)).
				Msg("guard rejected trigger")
		}
		return false
	}
	return true
}

// Stop cancels any pending state timeout. The engine remains usable but
// will not deliver further timeout triggers until the next transition.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelTimerLocked()
}

func (e *Engine) armTimerLocked() {
	def, ok := e.states[e.current]
	if !ok || def.Timeout <= 0 {
		return
	}
	e.timerGen++
	gen := e.timerGen
	trigger := def.OnTimeout
	e.timer = time.AfterFunc(def.Timeout, func() {
		e.deliverTimeout(gen, trigger)
	})
}

func (e *Engine) cancelTimerLocked() {
	e.timerGen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) deliverTimeout(gen uint64, trigger Trigger) {
	e.mu.Lock()
	live := gen == e.timerGen
	e.mu.Unlock()
	// A timer that lost the race against cancellation must not fire.
	if !live {
		return
	}
	e.logger.Debug().
		Str(log.FieldEvent, "fsm.timeout").
		Str(log.FieldTrigger, string(trigger)).
		Msg("state timeout expired")
	e.timeoutSink(trigger)
}

func containsState(states []State, s State) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}
