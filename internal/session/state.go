package session

// State is where a booking session currently sits in the booking flow.
type State string

// StateCompleted keeps the last result for rendering. It holds no draft and
// accepts a new selection exactly like StateIdle.
const (
	StateIdle            State = "idle"
	StateSlotSelected    State = "slot_selected"
	StateAwaitingPayment State = "awaiting_payment"
	StateSubmitting      State = "submitting"
	StateCompleted       State = "completed"
	StateConflictRetry   State = "conflict_retry"
	StateFailed          State = "failed"
)

func (s State) String() string { return string(s) }

// HoldsPendingDraft reports whether a draft is in progress that a new slot
// selection would overwrite.
func (s State) HoldsPendingDraft() bool {
	switch s {
	case StateSlotSelected, StateAwaitingPayment, StateSubmitting, StateFailed:
		return true
	default:
		return false
	}
}

// CanSelectSlot reports whether a slot may be picked from s.
func (s State) CanSelectSlot() bool {
	return s == StateIdle || s == StateCompleted || s == StateConflictRetry
}

// CanSubmit reports whether a submission may start from s. Failed allows a
// user-triggered retry.
func (s State) CanSubmit() bool {
	return s == StateAwaitingPayment || s == StateFailed
}

// CanEditForm reports whether payment fields and receipts can change in s.
func (s State) CanEditForm() bool {
	return s == StateAwaitingPayment || s == StateFailed || s == StateConflictRetry
}
