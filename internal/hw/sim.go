// SPDX-License-Identifier: MIT

package hw

import (
	"context"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openvend/vmcd/internal/log"
)

// NewSimRig returns a simulated rig for bench and integration testing.
// failureRate is the probability of a vend failing; seed makes the failure
// sequence reproducible.
func NewSimRig(failureRate float64, seed int64) Rig {
	return Rig{
		Dispenser:  NewSimDispenser(failureRate, seed),
		Payment:    NewSimPayment(),
		Button:     NewSimButton(),
		FrontPanel: NewSimSwitch("front_panel"),
		ButtonLED:  NewSimSwitch("button_led"),
	}
}

// SimDispenser simulates a dispensing mechanism with a configurable failure
// rate and injectable faults.
type SimDispenser struct {
	mu          sync.Mutex
	failureRate float64
	rng         *rand.Rand
	faults      []Fault
	logger      zerolog.Logger
}

func NewSimDispenser(failureRate float64, seed int64) *SimDispenser {
	return &SimDispenser{
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
		logger:      log.WithComponent("sim-dispenser"),
	}
}

func (d *SimDispenser) Vend(ctx context.Context, itemID string) bool {
	if ctx.Err() != nil {
		return false
	}
	d.mu.Lock()
	ok := d.rng.Float64() >= d.failureRate
	d.mu.Unlock()
	if ok {
		d.logger.Info().Str(log.FieldItemID, itemID).Msg("vend succeeded")
	} else {
		d.logger.Error().Str(log.FieldItemID, itemID).Msg("vend failed")
	}
	return ok
}

func (d *SimDispenser) Errors() []Fault {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Fault, len(d.faults))
	copy(out, d.faults)
	return out
}

// InjectFault adds an outstanding fault, as if the mechanism had jammed.
func (d *SimDispenser) InjectFault(code, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = append(d.faults, Fault{Code: code, Detail: detail})
}

// ClearFaults removes all outstanding faults, as if a technician had
// serviced the mechanism.
func (d *SimDispenser) ClearFaults() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = nil
}

// SimPayment simulates a payment interface. Pay delivers a payment to the
// bound handler the way a coin acceptor's reader thread would.
type SimPayment struct {
	mu        sync.Mutex
	handler   PaymentHandler
	inhibited bool
	logger    zerolog.Logger
}

func NewSimPayment() *SimPayment {
	return &SimPayment{logger: log.WithComponent("sim-payment")}
}

func (p *SimPayment) Start(h PaymentHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
	return nil
}

func (p *SimPayment) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = nil
	return nil
}

func (p *SimPayment) SetInhibited(inhibited bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inhibited = inhibited
}

// Pay simulates a received payment. Inhibited or stopped sources drop it.
func (p *SimPayment) Pay(amount int64) {
	p.mu.Lock()
	h, inhibited := p.handler, p.inhibited
	p.mu.Unlock()
	if h == nil || inhibited {
		p.logger.Warn().Int64(log.FieldAmount, amount).Msg("payment dropped, source inhibited")
		return
	}
	h.OnPayment(amount)
}

// Fail simulates a payment interface error.
func (p *SimPayment) Fail(code string) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h.OnPaymentError(code)
	}
}

// SimButton simulates the customer input button.
type SimButton struct {
	mu      sync.Mutex
	onPress func()
	enabled bool
}

func NewSimButton() *SimButton { return &SimButton{} }

func (b *SimButton) Enable(onPress func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPress = onPress
	b.enabled = true
}

func (b *SimButton) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
}

func (b *SimButton) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
	b.onPress = nil
}

// Press simulates a physical press. Disabled buttons swallow it.
func (b *SimButton) Press() {
	b.mu.Lock()
	cb := b.onPress
	enabled := b.enabled
	b.mu.Unlock()
	if enabled && cb != nil {
		cb()
	}
}

// SimSwitch is an idempotent on/off output that remembers its state.
type SimSwitch struct {
	mu   sync.Mutex
	name string
	on   bool
}

func NewSimSwitch(name string) *SimSwitch { return &SimSwitch{name: name} }

func (s *SimSwitch) On() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = true
}

func (s *SimSwitch) Off() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = false
}

// IsOn reports the current output state.
func (s *SimSwitch) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}
