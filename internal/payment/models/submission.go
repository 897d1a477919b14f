package models

import (
	"fmt"
	"sort"
	"strings"

	id "tutorly/pkg/domain"
)

// Field names shared by the form, the wire payload and field errors.
const (
	FieldTransactionID = "transaction_id"
	FieldAmount        = "amount"
	FieldPaymentDate   = "payment_date"
	FieldBankName      = "bank_name"
	FieldAccountNumber = "account_number"
	FieldNotes         = "notes"
	FieldReceipts      = "receipts"
)

// OtherBank is accepted alongside the known banks.
const OtherBank = "Other"

// Banks lists the transfer banks students can pick from.
var Banks = []string{
	"Al Rajhi Bank",
	"Saudi National Bank",
	"Riyad Bank",
	"SAB",
	"Banque Saudi Fransi",
	"Arab National Bank",
	"Alinma Bank",
	"Bank Albilad",
	"Bank AlJazira",
	"Saudi Investment Bank",
	OtherBank,
}

func IsKnownBank(name string) bool {
	for _, b := range Banks {
		if b == name {
			return true
		}
	}
	return false
}

// Submission is the payment-proof payload sent for a reserved booking.
type Submission struct {
	BookingID     id.BookingID `json:"booking_id"`
	TransactionID string       `json:"transaction_id"`
	Amount        id.Money     `json:"amount"`
	PaymentDate   id.Date      `json:"payment_date"`
	BankName      string       `json:"bank_name"`
	AccountNumber string       `json:"account_number,omitempty"`
	ReceiptURLs   []string     `json:"receipt_urls,omitempty"`
	Notes         string       `json:"notes,omitempty"`
}

// FieldErrors maps a field name to its user-facing message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

// AmountMessage is shown when the amount differs from the price.
func AmountMessage(price id.Money) string {
	return fmt.Sprintf("amount must be exactly %s", price)
}

// Validate applies the payment-proof rules against the booking price and
// today's date. A nil result means every rule holds.
func (s *Submission) Validate(price id.Money, today id.Date) FieldErrors {
	errs := FieldErrors{}
	if tx := strings.TrimSpace(s.TransactionID); tx == "" {
		errs[FieldTransactionID] = "transaction id is required"
	} else if len([]rune(tx)) < 3 {
		errs[FieldTransactionID] = "transaction id must be at least 3 characters"
	}
	if s.Amount <= 0 {
		errs[FieldAmount] = "amount must be greater than zero"
	} else if s.Amount != price {
		errs[FieldAmount] = AmountMessage(price)
	}
	if s.PaymentDate.IsZero() {
		errs[FieldPaymentDate] = "payment date is required"
	} else if s.PaymentDate.Before(today) {
		errs[FieldPaymentDate] = "payment date cannot be in the past"
	}
	if s.BankName == "" {
		errs[FieldBankName] = "bank is required"
	} else if !IsKnownBank(s.BankName) {
		errs[FieldBankName] = "unknown bank, choose one from the list or Other"
	}
	if acct := strings.TrimSpace(s.AccountNumber); acct != "" && len(acct) < 8 {
		errs[FieldAccountNumber] = "account number must be at least 8 characters"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
