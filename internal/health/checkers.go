// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"

	"github.com/openvend/vmcd/internal/store"
)

// StoreChecker verifies that the counter store answers reads.
type StoreChecker struct {
	store store.Store
}

func NewStoreChecker(s store.Store) *StoreChecker {
	return &StoreChecker{store: s}
}

func (c *StoreChecker) Name() string { return "counter_store" }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	deposit, err := c.store.GetInt(store.KeyDeposit, 0)
	if err != nil {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("deposit counter readable (%d)", deposit),
	}
}

// MachineChecker reports the controller state. Out of service is degraded,
// not unhealthy: the process serves traffic and can recover on its own.
type MachineChecker struct {
	state    func() string
	oosState string
}

func NewMachineChecker(state func() string, oosState string) *MachineChecker {
	return &MachineChecker{state: state, oosState: oosState}
}

func (c *MachineChecker) Name() string { return "machine" }

func (c *MachineChecker) Check(_ context.Context) CheckResult {
	s := c.state()
	if s == c.oosState {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "machine is out of service",
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("machine in state %q", s),
	}
}
