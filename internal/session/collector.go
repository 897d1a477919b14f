package session

import (
	"encoding/base64"
	"slices"
	"strings"

	paymodels "tutorly/internal/payment/models"
	"tutorly/internal/receipts"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
)

var formFields = []string{
	paymodels.FieldTransactionID,
	paymodels.FieldAmount,
	paymodels.FieldPaymentDate,
	paymodels.FieldBankName,
	paymodels.FieldAccountNumber,
	paymodels.FieldNotes,
}

// StagedFile is a receipt accepted locally and waiting for upload.
type StagedFile struct {
	Name        string
	ContentType string
	Size        int64
	Fingerprint string
	// Preview is a data URI for images and empty for PDFs.
	Preview string
	data    []byte
}

func (f StagedFile) Data() []byte { return f.data }

// Collector holds the raw payment form and the staged receipts. It only
// produces a Submission when every rule passes.
type Collector struct {
	fields   map[string]string
	files    []StagedFile
	maxBytes int64
}

func NewCollector(maxBytes int64) *Collector {
	if maxBytes <= 0 {
		maxBytes = receipts.MaxBytes
	}
	return &Collector{fields: make(map[string]string), maxBytes: maxBytes}
}

// Set stores one raw field value. Unknown fields are rejected.
func (c *Collector) Set(field, value string) error {
	if !slices.Contains(formFields, field) {
		return newValidationError(field, "unknown field")
	}
	c.fields[field] = value
	return nil
}

// Fields returns a copy of the raw form.
func (c *Collector) Fields() map[string]string {
	out := make(map[string]string, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}

// AddReceipt stages one file. A rejected file leaves the others untouched.
func (c *Collector) AddReceipt(name string, data []byte) (StagedFile, error) {
	if err := receipts.CheckSize(name, int64(len(data)), c.maxBytes); err != nil {
		return StagedFile{}, &ValidationError{Fields: map[string]string{paymodels.FieldReceipts: dErrors.MessageOf(err)}}
	}
	contentType, err := receipts.Sniff(name, data)
	if err != nil {
		return StagedFile{}, &ValidationError{Fields: map[string]string{paymodels.FieldReceipts: dErrors.MessageOf(err)}}
	}
	fp := receipts.Fingerprint(data)
	for _, f := range c.files {
		if f.Fingerprint == fp {
			return StagedFile{}, newValidationError(paymodels.FieldReceipts, name+": this file is already attached")
		}
	}
	staged := StagedFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Fingerprint: fp,
		data:        slices.Clone(data),
	}
	if receipts.IsImage(contentType) {
		staged.Preview = "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	}
	c.files = append(c.files, staged)
	return staged, nil
}

// RemoveReceipt drops the staged file with the given fingerprint.
func (c *Collector) RemoveReceipt(fingerprint string) bool {
	for i, f := range c.files {
		if f.Fingerprint == fingerprint {
			c.files = slices.Delete(c.files, i, i+1)
			return true
		}
	}
	return false
}

func (c *Collector) Files() []StagedFile {
	return slices.Clone(c.files)
}

// Build validates the form against the draft price and today's date and
// returns the immutable payload. Receipt URLs are filled in at upload time.
func (c *Collector) Build(price id.Money, today id.Date) (paymodels.Submission, error) {
	errs := map[string]string{}
	sub := paymodels.Submission{
		TransactionID: strings.TrimSpace(c.fields[paymodels.FieldTransactionID]),
		BankName:      strings.TrimSpace(c.fields[paymodels.FieldBankName]),
		AccountNumber: strings.TrimSpace(c.fields[paymodels.FieldAccountNumber]),
		Notes:         strings.TrimSpace(c.fields[paymodels.FieldNotes]),
	}
	if raw := strings.TrimSpace(c.fields[paymodels.FieldAmount]); raw != "" {
		amount, err := id.ParseMoney(raw)
		if err != nil {
			errs[paymodels.FieldAmount] = dErrors.MessageOf(err)
		}
		sub.Amount = amount
	}
	if raw := strings.TrimSpace(c.fields[paymodels.FieldPaymentDate]); raw != "" {
		date, err := id.ParseDate(raw)
		if err != nil {
			errs[paymodels.FieldPaymentDate] = dErrors.MessageOf(err)
		}
		sub.PaymentDate = date
	}
	for field, msg := range sub.Validate(price, today) {
		if _, seen := errs[field]; !seen {
			errs[field] = msg
		}
	}
	if len(errs) > 0 {
		return paymodels.Submission{}, &ValidationError{Fields: errs}
	}
	return sub, nil
}
