package models

import (
	"time"

	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
)

type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
)

// Payment is a submitted proof of transfer awaiting or past admin review.
type Payment struct {
	ID            id.PaymentID `json:"payment_id"`
	BookingID     id.BookingID `json:"booking_id"`
	StudentID     id.StudentID `json:"student_id"`
	TransactionID string       `json:"transaction_id"`
	Amount        id.Money     `json:"amount"`
	PaymentDate   id.Date      `json:"payment_date"`
	BankName      string       `json:"bank_name"`
	AccountNumber string       `json:"account_number,omitempty"`
	ReceiptURLs   []string     `json:"receipt_urls"`
	Notes         string       `json:"notes,omitempty"`
	Status        Status       `json:"status"`
	ReviewReason  string       `json:"review_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	ReviewedAt    *time.Time   `json:"reviewed_at,omitempty"`
}

// NewPending records a validated submission.
func NewPending(studentID id.StudentID, sub Submission, now time.Time) *Payment {
	urls := append([]string{}, sub.ReceiptURLs...)
	return &Payment{
		ID:            id.NewPaymentID(),
		BookingID:     sub.BookingID,
		StudentID:     studentID,
		TransactionID: sub.TransactionID,
		Amount:        sub.Amount,
		PaymentDate:   sub.PaymentDate,
		BankName:      sub.BankName,
		AccountNumber: sub.AccountNumber,
		ReceiptURLs:   urls,
		Notes:         sub.Notes,
		Status:        StatusPendingReview,
		CreatedAt:     now,
	}
}

// Review settles a pending payment once.
func (p *Payment) Review(approve bool, reason string, now time.Time) error {
	if p.Status != StatusPendingReview {
		return dErrors.New(dErrors.CodeInvariantViolation, "payment has already been reviewed")
	}
	if approve {
		p.Status = StatusApproved
	} else {
		p.Status = StatusRejected
	}
	p.ReviewReason = reason
	p.ReviewedAt = &now
	return nil
}
