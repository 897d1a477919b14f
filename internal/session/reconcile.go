package session

import (
	"context"
	"errors"
	"log/slog"

	avmodels "tutorly/internal/availability/models"
	paymodels "tutorly/internal/payment/models"
)

const (
	completedMessage     = "payment proof submitted, your booking is awaiting review"
	bookingFailedMessage = "we could not reserve the slot, please try again"
)

// Runner is the submission pipeline as seen by the Reconciler.
type Runner interface {
	Run(ctx context.Context, draft Draft, sub paymodels.Submission, files []StagedFile) (*Result, error)
}

// Outcome is the state a session moves to after one submission attempt.
type Outcome struct {
	State   State
	Draft   Draft
	Result  *Result
	Message string
	Err     error
}

// Reconciler wraps the pipeline and turns its result into the next session
// state. A conflict costs the student only a new slot pick.
type Reconciler struct {
	pipeline Runner
	logger   *slog.Logger
}

func NewReconciler(pipeline Runner, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{pipeline: pipeline, logger: logger}
}

func (r *Reconciler) Submit(ctx context.Context, draft Draft, sub paymodels.Submission, files []StagedFile) Outcome {
	result, err := r.pipeline.Run(ctx, draft, sub, files)
	if err == nil {
		r.logger.InfoContext(ctx, "booking submitted",
			append(draft.logAttrs(), "payment_id", result.PaymentID.String())...,
		)
		draft.BookingID = result.BookingID
		return Outcome{State: StateCompleted, Draft: draft, Result: result, Message: completedMessage}
	}

	var conflict *ConflictError
	var partial *PartialSubmissionError
	switch {
	case errors.As(err, &conflict):
		r.logger.InfoContext(ctx, "slot taken, asking for a new slot",
			append(draft.logAttrs(), "from_probe", conflict.FromProbe)...,
		)
		draft.TimeSlot = avmodels.TimeSlot{}
		return Outcome{State: StateConflictRetry, Draft: draft, Message: ConflictMessage, Err: conflict}

	case errors.As(err, &partial):
		draft.BookingID = partial.BookingID
		r.logger.ErrorContext(ctx, "booking reserved without payment evidence",
			append(append(draft.logAttrs(), payloadAttrs(sub, files)...),
				"status", StatusOf(err),
				"error", err,
			)...,
		)
		return Outcome{State: StateFailed, Draft: draft, Message: PartialMessage, Err: partial}

	default:
		var bookingErr *BookingError
		if !errors.As(err, &bookingErr) {
			bookingErr = &BookingError{Err: err}
		}
		r.logger.ErrorContext(ctx, "booking request failed",
			append(append(draft.logAttrs(), payloadAttrs(sub, files)...),
				"status", StatusOf(err),
				"error", err,
			)...,
		)
		return Outcome{State: StateFailed, Draft: draft, Message: bookingFailedMessage, Err: bookingErr}
	}
}

func payloadAttrs(sub paymodels.Submission, files []StagedFile) []any {
	return []any{
		"transaction_id", sub.TransactionID,
		"amount", sub.Amount.String(),
		"payment_date", sub.PaymentDate.String(),
		"bank_name", sub.BankName,
		"account_number", maskAccount(sub.AccountNumber),
		"receipts", len(files),
	}
}

func maskAccount(s string) string {
	if len(s) <= 4 {
		return s
	}
	return "****" + s[len(s)-4:]
}
