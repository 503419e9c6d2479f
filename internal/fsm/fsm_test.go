// SPDX-License-Identifier: MIT

package fsm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turnstileConfig() Config {
	return Config{
		Initial: "locked",
		States: []StateDef{
			{Name: "locked"},
			{Name: "unlocked"},
		},
		Transitions: []TransitionDef{
			{Trigger: "coin", Sources: []State{"locked"}, Dest: "unlocked", Guard: "accepts_coins"},
			{Trigger: "push", Sources: []State{"unlocked"}, Dest: "locked"},
		},
		Guards: map[string]GuardFunc{
			"accepts_coins": func() (bool, error) { return true, nil },
		},
	}
}

func TestNewValidatesConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no states", func(c *Config) { c.States = nil }},
		{"duplicate state", func(c *Config) { c.States = append(c.States, StateDef{Name: "locked"}) }},
		{"unknown initial", func(c *Config) { c.Initial = "open" }},
		{"unknown guard", func(c *Config) { c.Transitions[0].Guard = "nope" }},
		{"unknown source", func(c *Config) { c.Transitions[0].Sources = []State{"open"} }},
		{"no sources", func(c *Config) { c.Transitions[0].Sources = nil }},
		{"unknown dest", func(c *Config) { c.Transitions[0].Dest = "open" }},
		{"timeout without trigger", func(c *Config) { c.States[0].Timeout = time.Second }},
		{"timeout with unknown trigger", func(c *Config) {
			c.States[0].Timeout = time.Second
			c.States[0].OnTimeout = "nope"
		}},
		{"timeout without sink", func(c *Config) {
			c.States[0].Timeout = time.Second
			c.States[0].OnTimeout = "coin"
		}},
		{"nil enter callback", func(c *Config) { c.OnEnter = map[State]Callback{"locked": nil} }},
		{"enter callback for unknown state", func(c *Config) { c.OnEnter = map[State]Callback{"open": func() {}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := turnstileConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}
}

func TestFireTransitions(t *testing.T) {
	e, err := New(turnstileConfig())
	require.NoError(t, err)

	assert.Equal(t, State("locked"), e.Current())
	require.NoError(t, e.Fire("coin"))
	assert.Equal(t, State("unlocked"), e.Current())
	require.NoError(t, e.Fire("push"))
	assert.Equal(t, State("locked"), e.Current())
}

func TestFireNoTransitionLeavesStateUntouched(t *testing.T) {
	e, err := New(turnstileConfig())
	require.NoError(t, err)

	err = e.Fire("push") // not eligible from locked
	var nt *NoTransitionError
	require.ErrorAs(t, err, &nt)
	assert.Equal(t, Trigger("push"), nt.Trigger)
	assert.Equal(t, State("locked"), nt.State)
	assert.Equal(t, State("locked"), e.Current())
}

func TestGuardFalseSkipsTransition(t *testing.T) {
	cfg := turnstileConfig()
	cfg.Guards["accepts_coins"] = func() (bool, error) { return false, nil }
	e, err := New(cfg)
	require.NoError(t, err)

	err = e.Fire("coin")
	var nt *NoTransitionError
	require.ErrorAs(t, err, &nt)
	assert.Equal(t, State("locked"), e.Current())
}

func TestGuardErrorTreatedAsFalse(t *testing.T) {
	cfg := turnstileConfig()
	cfg.Guards["accepts_coins"] = func() (bool, error) { return true, errors.New("probe broken") }
	e, err := New(cfg)
	require.NoError(t, err)

	require.Error(t, e.Fire("coin"))
	assert.Equal(t, State("locked"), e.Current())
}

func TestCallbackOrder(t *testing.T) {
	var calls []string
	cfg := turnstileConfig()
	cfg.OnExit = map[State]Callback{
		"locked": func() { calls = append(calls, "exit locked") },
	}
	cfg.OnEnter = map[State]Callback{
		"unlocked": func() { calls = append(calls, "enter unlocked") },
	}
	e, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Fire("coin"))
	assert.Equal(t, []string{"exit locked", "enter unlocked"}, calls)
}

func TestEligibleTriggers(t *testing.T) {
	cfg := turnstileConfig()
	cfg.Transitions = append(cfg.Transitions,
		TransitionDef{Trigger: "alarm", Sources: []State{"locked", "unlocked"}, Dest: "locked"})
	e, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, []Trigger{"alarm", "coin"}, e.EligibleTriggers("locked"))
	assert.Equal(t, []Trigger{"alarm", "push"}, e.EligibleTriggers("unlocked"))
}

func TestTryFireIsNoOpForIneligibleTriggers(t *testing.T) {
	e, err := New(turnstileConfig())
	require.NoError(t, err)

	for _, state := range []State{"locked", "unlocked"} {
		eligible := make(map[Trigger]bool)
		for _, tr := range e.EligibleTriggers(state) {
			eligible[tr] = true
		}
		for _, tr := range []Trigger{"coin", "push", "kick"} {
			if eligible[tr] {
				continue
			}
			// Walk the engine into the wanted state first.
			for e.Current() != state {
				if !e.TryFire("coin") {
					e.TryFire("push")
				}
			}
			assert.False(t, e.TryFire(tr), "trigger %q from state %q", tr, state)
			assert.Equal(t, state, e.Current(), "state must be unchanged after ineligible trigger")
		}
	}
}

func TestTryFireSwallowsGuardRejection(t *testing.T) {
	cfg := turnstileConfig()
	cfg.Guards["accepts_coins"] = func() (bool, error) { return false, nil }
	e, err := New(cfg)
	require.NoError(t, err)

	assert.False(t, e.TryFire("coin"))
	assert.Equal(t, State("locked"), e.Current())
}

func timedConfig(timeout time.Duration, sink func(Trigger)) Config {
	return Config{
		Initial: "idle",
		States: []StateDef{
			{Name: "idle"},
			{Name: "armed", Timeout: timeout, OnTimeout: "expire"},
			{Name: "done"},
		},
		Transitions: []TransitionDef{
			{Trigger: "arm", Sources: []State{"idle"}, Dest: "armed"},
			{Trigger: "rearm", Sources: []State{"armed"}, Dest: "armed"},
			{Trigger: "expire", Sources: []State{"armed"}, Dest: "done"},
			{Trigger: "disarm", Sources: []State{"armed"}, Dest: "idle"},
		},
		TimeoutSink: sink,
	}
}

func TestStateTimeoutFiresExactlyOnce(t *testing.T) {
	fired := make(chan Trigger, 4)
	e, err := New(timedConfig(30*time.Millisecond, func(tr Trigger) { fired <- tr }))
	require.NoError(t, err)
	defer e.Stop()

	require.NoError(t, e.Fire("arm"))

	select {
	case tr := <-fired:
		assert.Equal(t, Trigger("expire"), tr)
	case <-time.After(time.Second):
		t.Fatal("timeout trigger never delivered")
	}

	require.NoError(t, e.Fire("expire"))
	select {
	case tr := <-fired:
		t.Fatalf("unexpected extra timeout delivery: %q", tr)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLeavingStateCancelsTimeout(t *testing.T) {
	fired := make(chan Trigger, 4)
	e, err := New(timedConfig(50*time.Millisecond, func(tr Trigger) { fired <- tr }))
	require.NoError(t, err)
	defer e.Stop()

	require.NoError(t, e.Fire("arm"))
	require.NoError(t, e.Fire("disarm"))

	select {
	case tr := <-fired:
		t.Fatalf("spurious timeout after leaving state: %q", tr)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReenteringStateRestartsTimeout(t *testing.T) {
	fired := make(chan Trigger, 4)
	e, err := New(timedConfig(80*time.Millisecond, func(tr Trigger) { fired <- tr }))
	require.NoError(t, err)
	defer e.Stop()

	require.NoError(t, e.Fire("arm"))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, e.Fire("rearm")) // self re-entry rebinds the timer

	select {
	case tr := <-fired:
		t.Fatalf("timeout fired from cancelled occupancy: %q", tr)
	case <-time.After(50 * time.Millisecond):
		// Old deadline has passed without a delivery; the rebound timer
		// is still pending.
	}

	select {
	case tr := <-fired:
		assert.Equal(t, Trigger("expire"), tr)
	case <-time.After(time.Second):
		t.Fatal("rebound timeout never delivered")
	}
}

func TestConcurrentTryFireSerializability(t *testing.T) {
	e, err := New(turnstileConfig())
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				if i%2 == 0 {
					e.TryFire("coin")
				} else {
					e.TryFire("push")
				}
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	// Any legal interleaving ends in one of the configured states.
	cur := e.Current()
	assert.Contains(t, []State{"locked", "unlocked"}, cur,
		fmt.Sprintf("state %q is not reachable by any sequential ordering", cur))
}
