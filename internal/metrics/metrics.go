// SPDX-License-Identifier: MIT

// Package metrics exposes vmcd's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Business metrics
	deposit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vmcd_deposit",
		Help: "Current customer deposit balance in machine currency units",
	})

	cashBox = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vmcd_cash_box",
		Help: "Lifetime cash box total in machine currency units",
	})

	itemsSold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vmcd_items_sold",
		Help: "Lifetime number of items sold",
	})

	paymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vmcd_payments_total",
		Help: "Total number of accepted payments",
	})

	vendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vmcd_vends_total",
		Help: "Vend attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	refundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vmcd_refunds_total",
		Help: "Total number of refund payouts",
	})

	// State machine metrics
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vmcd_transitions_total",
		Help: "Committed state transitions by destination state",
	}, []string{"state"})

	triggersRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vmcd_triggers_rejected_total",
		Help: "Best-effort triggers dropped as ineligible or guard-rejected",
	})

	currentState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vmcd_state",
		Help: "Current machine state (1 for the occupied state, 0 otherwise)",
	}, []string{"state"})

	// Watchdog metrics
	watchdogEdgesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vmcd_watchdog_edges_total",
		Help: "Watchdog health edges by direction",
	}, []string{"direction"}) // direction=error|recover
)

func SetDeposit(v int64)   { deposit.Set(float64(v)) }
func SetCashBox(v int64)   { cashBox.Set(float64(v)) }
func SetItemsSold(v int64) { itemsSold.Set(float64(v)) }

func IncPayments()            { paymentsTotal.Inc() }
func IncVends(outcome string) { vendsTotal.WithLabelValues(outcome).Inc() }
func IncRefunds()             { refundsTotal.Inc() }

func IncTransitions(state string)      { transitionsTotal.WithLabelValues(state).Inc() }
func IncTriggersRejected()             { triggersRejectedTotal.Inc() }
func IncWatchdogEdge(direction string) { watchdogEdgesTotal.WithLabelValues(direction).Inc() }

// SetCurrentState marks state as occupied and every other known state as not.
func SetCurrentState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		currentState.WithLabelValues(s).Set(v)
	}
}
