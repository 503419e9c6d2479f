// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	FieldEvent     = "event"
	FieldComponent = "component"

	// State machine fields
	FieldTrigger  = "trigger"
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldState    = "state"
	FieldGuard    = "guard"

	// Money fields (machine currency units)
	FieldAmount  = "amount"
	FieldDeposit = "deposit"
	FieldCashBox = "cash_box"

	// Collaborator fields
	FieldItemID    = "item_id"
	FieldReceiptID = "receipt_id"
	FieldBackend   = "backend"
	FieldKey       = "key"
)
