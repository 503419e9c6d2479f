// SPDX-License-Identifier: MIT

// Package hw defines the hardware collaborator contracts the controller
// drives: dispenser, payment source, input button and relay outputs.
//
// Implementations are selected explicitly by configuration. There is no
// import-availability fallback: a machine without hardware runs the no-op
// rig, a bench setup runs the simulated rig.
package hw

import (
	"context"
	"fmt"
)

// Fault is one outstanding hardware fault reported by a collaborator.
type Fault struct {
	Code   string
	Detail string
}

func (f Fault) String() string {
	if f.Detail == "" {
		return f.Code
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Detail)
}

// Dispenser vends physical items.
type Dispenser interface {
	// Vend dispenses one item. It reports success; the context bounds how
	// long a stuck mechanism may block the caller.
	Vend(ctx context.Context, itemID string) bool
	// Errors lists outstanding faults. Empty means healthy.
	Errors() []Fault
}

// PaymentHandler receives asynchronous payment events. Implementations must
// be safe to call from the payment source's own reader goroutine.
type PaymentHandler interface {
	OnPayment(amount int64)
	OnPaymentError(code string)
}

// PaymentSource accepts customer payments and reports them to a handler.
type PaymentSource interface {
	Start(h PaymentHandler) error
	Stop() error
	// SetInhibited controls whether the source accepts payments at all
	// (inhibited while the machine is out of service).
	SetInhibited(inhibited bool)
}

// Button is the customer-facing input button.
type Button interface {
	// Enable arms the button; onPress fires from the driver's interrupt
	// context on every press.
	Enable(onPress func())
	Disable()
	Cleanup()
}

// Switch is an idempotent on/off output (front panel power, button LED).
type Switch interface {
	On()
	Off()
}

// Rig bundles the collaborators of one physical machine.
type Rig struct {
	Dispenser  Dispenser
	Payment    PaymentSource
	Button     Button
	FrontPanel Switch
	ButtonLED  Switch
}
