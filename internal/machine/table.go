// SPDX-License-Identifier: MIT

package machine

import (
	"github.com/openvend/vmcd/internal/fsm"
)

// Machine states.
const (
	StateOOS          fsm.State = "oos" // out of service
	StateIdling       fsm.State = "idling"
	StateEntertaining fsm.State = "entertaining"
	StateEjecting     fsm.State = "ejecting"
	StateRefunding    fsm.State = "refunding"
)

// Machine triggers.
const (
	TriggerIdle      fsm.Trigger = "idle"
	TriggerEntertain fsm.Trigger = "entertain"
	TriggerEjectItem fsm.Trigger = "eject_item"
	TriggerRefund    fsm.Trigger = "refund"
	TriggerRecover   fsm.Trigger = "recover"
	TriggerTurnOff   fsm.Trigger = "turn_off"
)

// AllStates lists every configured state, for snapshots and metrics.
var AllStates = []fsm.State{StateOOS, StateIdling, StateEntertaining, StateEjecting, StateRefunding}

const guardHasDeposit = "has_deposit"

// fsmConfig builds the declarative state machine definition for m.
func (m *Machine) fsmConfig() fsm.Config {
	return fsm.Config{
		Initial: StateOOS,
		States: []fsm.StateDef{
			{Name: StateOOS},
			{Name: StateIdling},
			{Name: StateEntertaining, Timeout: m.cfg.EntertainTimeout, OnTimeout: TriggerEjectItem},
			{Name: StateEjecting},
			{Name: StateRefunding},
		},
		Transitions: []fsm.TransitionDef{
			{Trigger: TriggerIdle, Sources: []fsm.State{StateOOS, StateEjecting, StateRefunding}, Dest: StateIdling},
			{Trigger: TriggerEntertain, Sources: []fsm.State{StateIdling}, Dest: StateEntertaining, Guard: guardHasDeposit},
			{Trigger: TriggerEjectItem, Sources: []fsm.State{StateIdling, StateEntertaining}, Dest: StateEjecting, Guard: guardHasDeposit},
			{Trigger: TriggerRefund, Sources: []fsm.State{StateIdling, StateEjecting}, Dest: StateRefunding},
			{Trigger: TriggerRecover, Sources: []fsm.State{StateOOS}, Dest: StateIdling},
			{Trigger: TriggerTurnOff, Sources: []fsm.State{StateIdling, StateEntertaining, StateRefunding}, Dest: StateOOS},
		},
		Guards: map[string]fsm.GuardFunc{
			guardHasDeposit: m.hasDeposit,
		},
		OnEnter: map[fsm.State]fsm.Callback{
			StateOOS:          m.onEnterOOS,
			StateIdling:       m.onEnterIdling,
			StateEntertaining: m.onEnterEntertaining,
			StateEjecting:     m.onEnterEjecting,
			StateRefunding:    m.onEnterRefunding,
		},
		OnExit: map[fsm.State]fsm.Callback{
			StateOOS:          m.onExitOOS,
			StateEntertaining: m.onExitEntertaining,
		},
		TimeoutSink: m.onStateTimeout,
	}
}

// hasDeposit gates vend-path transitions: the balance must cover one item.
func (m *Machine) hasDeposit() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deposit >= m.cfg.ItemPrice, nil
}
