// SPDX-License-Identifier: MIT

package hw

import (
	"context"

	"github.com/openvend/vmcd/internal/log"
)

// NewNopRig returns a rig whose collaborators do nothing. Vends always
// succeed and no faults are ever reported.
func NewNopRig() Rig {
	return Rig{
		Dispenser:  nopDispenser{},
		Payment:    &nopPayment{},
		Button:     &nopButton{},
		FrontPanel: nopSwitch{name: "front_panel"},
		ButtonLED:  nopSwitch{name: "button_led"},
	}
}

type nopDispenser struct{}

func (nopDispenser) Vend(ctx context.Context, itemID string) bool {
	logger := log.WithComponent("hw")
	logger.Debug().Str(log.FieldItemID, itemID).Msg("nop dispenser vend")
	return true
}

func (nopDispenser) Errors() []Fault { return nil }

type nopPayment struct{}

func (*nopPayment) Start(PaymentHandler) error { return nil }
func (*nopPayment) Stop() error                { return nil }
func (*nopPayment) SetInhibited(bool)          {}

type nopButton struct{}

func (*nopButton) Enable(func()) {}
func (*nopButton) Disable()      {}
func (*nopButton) Cleanup()      {}

type nopSwitch struct {
	name string
}

func (s nopSwitch) On() {
	logger := log.WithComponent("hw")
	logger.Debug().Str("output", s.name).Msg("switch on")
}

func (s nopSwitch) Off() {
	logger := log.WithComponent("hw")
	logger.Debug().Str("output", s.name).Msg("switch off")
}
