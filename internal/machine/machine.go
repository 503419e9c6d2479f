// SPDX-License-Identifier: MIT

// Package machine is the vending machine controller. It owns the deposit
// balance and sales statistics, defines the domain state machine, and
// mediates between the control engine, the watchdog and the hardware
// collaborators.
//
// Every external stimulus — payment, button press, watchdog edge, state
// timeout, HTTP event — is funneled through a single-consumer event queue
// processed by Run, so transitions and counter mutations are serialized on
// one goroutine and each transition commits as a unit.
package machine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openvend/vmcd/internal/cashier"
	"github.com/openvend/vmcd/internal/fsm"
	"github.com/openvend/vmcd/internal/hw"
	"github.com/openvend/vmcd/internal/log"
	"github.com/openvend/vmcd/internal/metrics"
	"github.com/openvend/vmcd/internal/store"
	"github.com/openvend/vmcd/internal/watchdog"
)

// ErrStopped is returned by the Submit methods once the event loop has exited.
var ErrStopped = errors.New("machine: stopped")

const eventQueueSize = 64

// Config carries the controller's domain configuration.
type Config struct {
	ItemPrice        int64
	ItemID           string
	EntertainTimeout time.Duration
	DispenseTimeout  time.Duration
	WatchdogInterval time.Duration
}

// Deps are the controller's external collaborators.
type Deps struct {
	Store   store.Store
	Cashier *cashier.Cashier
	Rig     hw.Rig
}

// Stats are the persisted sales statistics.
type Stats struct {
	CashBox   int64 `json:"cash_box"`
	ItemsSold int64 `json:"items_sold"`
}

// Snapshot is a read-only view for front ends.
type Snapshot struct {
	State   string `json:"state"`
	Deposit int64  `json:"deposit"`
	Stats   Stats  `json:"stats"`
}

type eventKind int

const (
	evFire eventKind = iota
	evTryFire
	evTimeout
	evPayment
	evPaymentError
	evButton
	evHealth
)

type event struct {
	kind    eventKind
	trigger fsm.Trigger
	amount  int64
	code    string
	inError bool

	// reply, when non-nil, receives the outcome of a fire event.
	reply chan error
	// committed, when non-nil, receives whether a try-fire committed.
	committed chan bool
}

// Machine is the vending machine controller.
type Machine struct {
	cfg  Config
	deps Deps

	engine   *fsm.Engine
	watchdog *watchdog.Watchdog

	// deposit and stats are mutated only on the Run goroutine; mu guards
	// them for Snapshot readers and guard evaluation.
	mu      sync.Mutex
	deposit int64
	stats   Stats

	events  chan event
	stopped chan struct{}

	logger zerolog.Logger
}

// New creates a controller, loads the persisted counters and builds the
// state machine. The machine starts out of service; Run brings it up.
func New(cfg Config, deps Deps) (*Machine, error) {
	if cfg.ItemPrice <= 0 {
		return nil, fmt.Errorf("machine: item price must be positive, got %d", cfg.ItemPrice)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("machine: store is required")
	}
	if deps.Cashier == nil {
		return nil, fmt.Errorf("machine: cashier is required")
	}

	m := &Machine{
		cfg:     cfg,
		deps:    deps,
		events:  make(chan event, eventQueueSize),
		stopped: make(chan struct{}),
		logger:  log.WithComponent("machine"),
	}

	var err error
	if m.deposit, err = deps.Store.GetInt(store.KeyDeposit, 0); err != nil {
		return nil, fmt.Errorf("machine: load deposit: %w", err)
	}
	if m.stats.CashBox, err = deps.Store.GetInt(store.KeyCashBox, 0); err != nil {
		return nil, fmt.Errorf("machine: load cash box: %w", err)
	}
	if m.stats.ItemsSold, err = deps.Store.GetInt(store.KeyItemsSold, 0); err != nil {
		return nil, fmt.Errorf("machine: load items sold: %w", err)
	}

	if m.engine, err = fsm.New(m.fsmConfig()); err != nil {
		return nil, err
	}

	m.watchdog = watchdog.New(m.probe, m.onWatchdogError, m.onWatchdogRecover, cfg.WatchdogInterval)
	return m, nil
}

// Run starts the collaborators and processes the event queue until ctx is
// cancelled, then shuts the collaborators down in reverse order.
func (m *Machine) Run(ctx context.Context) error {
	// Safe posture until the first transition out of oos.
	m.deps.Rig.FrontPanel.Off()
	m.deps.Rig.Payment.SetInhibited(true)

	if err := m.deps.Rig.Payment.Start(m); err != nil {
		return fmt.Errorf("machine: start payment source: %w", err)
	}
	m.watchdog.Start()

	// Leave oos immediately unless the dispenser is already faulted; the
	// watchdog only reports edges, so the startup posture is decided here.
	if faulted, _ := m.probe(); faulted {
		m.logger.Warn().
			Str(log.FieldEvent, "machine.start_faulted").
			Msg("dispenser reports faults at startup, staying out of service")
	} else {
		m.enqueueFollowUp(TriggerIdle)
	}

	m.logger.Info().
		Str(log.FieldEvent, "machine.started").
		Int64("item_price", m.cfg.ItemPrice).
		Int64(log.FieldDeposit, m.deposit).
		Msg("machine controller started")
	m.setStateGauge()

	defer m.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

func (m *Machine) shutdown() {
	close(m.stopped)
	m.watchdog.Stop()
	<-m.watchdog.Done()
	if err := m.deps.Rig.Payment.Stop(); err != nil {
		m.logger.Error().Err(err).Msg("stopping payment source failed")
	}
	m.engine.Stop()
	m.deps.Rig.Button.Cleanup()
	m.deps.Rig.ButtonLED.Off()
	m.deps.Rig.FrontPanel.Off()
	m.logger.Info().Str(log.FieldEvent, "machine.stopped").Msg("machine controller stopped")
}

// Snapshot returns the current state, deposit and statistics. The state is
// read outside mu: the guard path holds the engine lock while taking mu.
func (m *Machine) Snapshot() Snapshot {
	state := string(m.engine.Current())
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:   state,
		Deposit: m.deposit,
		Stats:   m.stats,
	}
}

// Fire submits an unconditional trigger and waits for the outcome. A
// trigger with no valid transition returns *fsm.NoTransitionError.
func (m *Machine) Fire(ctx context.Context, trigger fsm.Trigger) error {
	reply := make(chan error, 1)
	if err := m.submit(ctx, event{kind: evFire, trigger: trigger, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopped:
		return ErrStopped
	}
}

// TryFire submits a best-effort trigger: ineligible or guard-rejected
// triggers are dropped silently. It reports whether a transition committed.
func (m *Machine) TryFire(ctx context.Context, trigger fsm.Trigger) (bool, error) {
	committed := make(chan bool, 1)
	if err := m.submit(ctx, event{kind: evTryFire, trigger: trigger, committed: committed}); err != nil {
		return false, err
	}
	select {
	case ok := <-committed:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-m.stopped:
		return false, ErrStopped
	}
}

// OnPayment implements hw.PaymentHandler. It is called from the payment
// source's reader goroutine.
func (m *Machine) OnPayment(amount int64) {
	if err := m.submit(context.Background(), event{kind: evPayment, amount: amount}); err != nil {
		m.logger.Error().Err(err).Int64(log.FieldAmount, amount).Msg("payment event lost, machine stopped")
	}
}

// OnPaymentError implements hw.PaymentHandler.
func (m *Machine) OnPaymentError(code string) {
	_ = m.submit(context.Background(), event{kind: evPaymentError, code: code})
}

func (m *Machine) onButtonPress() {
	_ = m.submit(context.Background(), event{kind: evButton})
}

func (m *Machine) onStateTimeout(trigger fsm.Trigger) {
	_ = m.submit(context.Background(), event{kind: evTimeout, trigger: trigger})
}

func (m *Machine) onWatchdogError() {
	metrics.IncWatchdogEdge("error")
	_ = m.submit(context.Background(), event{kind: evHealth, inError: true})
}

func (m *Machine) onWatchdogRecover() {
	metrics.IncWatchdogEdge("recover")
	_ = m.submit(context.Background(), event{kind: evHealth, inError: false})
}

// probe is the watchdog's error probe: true when the dispenser reports
// outstanding faults.
func (m *Machine) probe() (bool, error) {
	return len(m.deps.Rig.Dispenser.Errors()) > 0, nil
}

func (m *Machine) submit(ctx context.Context, ev event) error {
	select {
	case m.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopped:
		return ErrStopped
	}
}

// enqueueFollowUp queues a best-effort trigger from inside the event loop
// (state callbacks). The send must not block: the loop itself is the only
// consumer.
func (m *Machine) enqueueFollowUp(trigger fsm.Trigger) {
	select {
	case m.events <- event{kind: evTryFire, trigger: trigger}:
	default:
		m.logger.Error().
			Str(log.FieldTrigger, string(trigger)).
			Msg("event queue full, follow-up trigger dropped")
	}
}

func (m *Machine) handle(ev event) {
	switch ev.kind {
	case evFire:
		err := m.engine.Fire(ev.trigger)
		if err == nil {
			m.noteCommit()
		}
		if ev.reply != nil {
			ev.reply <- err
		}
	case evTryFire, evTimeout:
		ok := m.engine.TryFire(ev.trigger)
		if ok {
			m.noteCommit()
		} else {
			metrics.IncTriggersRejected()
		}
		if ev.committed != nil {
			ev.committed <- ok
		}
	case evPayment:
		m.handlePayment(ev.amount)
	case evPaymentError:
		m.logger.Warn().
			Str(log.FieldEvent, "machine.payment_error").
			Str("code", ev.code).
			Msg("payment interface reported an error")
	case evButton:
		if m.engine.TryFire(TriggerEjectItem) {
			m.noteCommit()
		}
	case evHealth:
		if ev.inError {
			if m.engine.TryFire(TriggerTurnOff) {
				m.noteCommit()
			}
		} else {
			if m.engine.TryFire(TriggerRecover) {
				m.noteCommit()
			}
		}
	}
}

func (m *Machine) handlePayment(amount int64) {
	if amount <= 0 {
		m.logger.Warn().Int64(log.FieldAmount, amount).Msg("ignoring non-positive payment")
		return
	}

	m.mu.Lock()
	m.deposit += amount
	m.stats.CashBox += amount
	deposit, cashBox := m.deposit, m.stats.CashBox
	m.mu.Unlock()

	m.persist(store.KeyDeposit, deposit)
	m.persist(store.KeyCashBox, cashBox)
	metrics.IncPayments()
	metrics.SetDeposit(deposit)
	metrics.SetCashBox(cashBox)

	m.logger.Info().
		Str(log.FieldEvent, "machine.payment").
		Int64(log.FieldAmount, amount).
		Int64(log.FieldDeposit, deposit).
		Msg("payment received")

	if m.engine.TryFire(TriggerEntertain) {
		m.noteCommit()
	}
}

// State machine callbacks. These run inside a transition commit on the Run
// goroutine and defer follow-up triggers through the queue.

func (m *Machine) onEnterOOS() {
	m.deps.Rig.FrontPanel.Off()
	m.deps.Rig.Button.Disable()
	m.deps.Rig.Payment.SetInhibited(true)
}

func (m *Machine) onExitOOS() {
	m.deps.Rig.FrontPanel.On()
	m.deps.Rig.Button.Enable(m.onButtonPress)
	m.deps.Rig.Payment.SetInhibited(false)
}

func (m *Machine) onEnterIdling() {
	// A balance left over from before the transition (multi-item credit,
	// recovery) immediately restarts the vend cycle.
	m.enqueueFollowUp(TriggerEntertain)
}

func (m *Machine) onEnterEntertaining() {
	m.deps.Rig.ButtonLED.On()
}

func (m *Machine) onExitEntertaining() {
	m.deps.Rig.ButtonLED.Off()
}

func (m *Machine) onEnterEjecting() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DispenseTimeout)
	defer cancel()

	if m.deps.Rig.Dispenser.Vend(ctx, m.cfg.ItemID) {
		m.completeSale()
		metrics.IncVends("success")
		m.enqueueFollowUp(TriggerIdle)
		return
	}

	metrics.IncVends("failure")
	m.logger.Error().
		Str(log.FieldEvent, "machine.vend_failed").
		Str(log.FieldItemID, m.cfg.ItemID).
		Msg("dispense failed, refunding deposit")
	m.enqueueFollowUp(TriggerRefund)
}

func (m *Machine) onEnterRefunding() {
	m.mu.Lock()
	payout := m.deposit
	m.deposit = 0
	m.mu.Unlock()

	if payout > 0 {
		m.persist(store.KeyDeposit, 0)
		metrics.SetDeposit(0)
		metrics.IncRefunds()
		if _, err := m.deps.Cashier.CreateRefund(payout); err != nil {
			m.logger.Error().Err(err).Msg("recording refund receipt failed")
		}
		m.logger.Info().
			Str(log.FieldEvent, "machine.refund").
			Int64(log.FieldAmount, payout).
			Msg("deposit refunded")
	}
	m.enqueueFollowUp(TriggerIdle)
}

// completeSale debits the item price, bumps the statistics and records a
// receipt. The has_deposit guard admitted the vend; the balance check here
// defends the deposit >= 0 invariant regardless.
func (m *Machine) completeSale() {
	m.mu.Lock()
	if m.deposit < m.cfg.ItemPrice {
		m.mu.Unlock()
		m.logger.Error().
			Str(log.FieldEvent, "machine.debit_skipped").
			Int64(log.FieldDeposit, m.deposit).
			Msg("balance below item price after vend, skipping debit")
		return
	}
	m.deposit -= m.cfg.ItemPrice
	m.stats.ItemsSold++
	deposit, sold := m.deposit, m.stats.ItemsSold
	m.mu.Unlock()

	m.persist(store.KeyDeposit, deposit)
	m.persist(store.KeyItemsSold, sold)
	metrics.SetDeposit(deposit)
	metrics.SetItemsSold(sold)

	if _, err := m.deps.Cashier.CreateReceipt(m.cfg.ItemPrice, m.cfg.ItemID); err != nil {
		m.logger.Error().Err(err).Msg("recording sale receipt failed")
	}

	m.logger.Info().
		Str(log.FieldEvent, "machine.item_sold").
		Int64(log.FieldDeposit, deposit).
		Int64("items_sold", sold).
		Msg("item sold")
}

func (m *Machine) persist(key string, value int64) {
	if err := m.deps.Store.SetInt(key, value); err != nil {
		m.logger.Error().
			Err(err).
			Str(log.FieldKey, key).
			Int64("value", value).
			Msg("persisting counter failed")
	}
}

func (m *Machine) noteCommit() {
	metrics.IncTransitions(string(m.engine.Current()))
	m.setStateGauge()
}

func (m *Machine) setStateGauge() {
	names := make([]string, len(AllStates))
	for i, s := range AllStates {
		names[i] = string(s)
	}
	metrics.SetCurrentState(string(m.engine.Current()), names)
}
