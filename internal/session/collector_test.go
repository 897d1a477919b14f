package session

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymodels "tutorly/internal/payment/models"
	"tutorly/internal/receipts"
	id "tutorly/pkg/domain"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
	today    = id.Date{Year: 2026, Month: 10, Day: 16}
	price    = id.MustMoney("120.00")
)

func filledCollector(t *testing.T) *Collector {
	t.Helper()
	c := NewCollector(receipts.MaxBytes)
	require.NoError(t, c.Set(paymodels.FieldTransactionID, "TX-001"))
	require.NoError(t, c.Set(paymodels.FieldAmount, "120.00"))
	require.NoError(t, c.Set(paymodels.FieldPaymentDate, "2026-10-16"))
	require.NoError(t, c.Set(paymodels.FieldBankName, "Al Rajhi Bank"))
	return c
}

func TestCollectorBuild(t *testing.T) {
	t.Run("valid form produces the payload", func(t *testing.T) {
		sub, err := filledCollector(t).Build(price, today)
		require.NoError(t, err)
		assert.Equal(t, "TX-001", sub.TransactionID)
		assert.Equal(t, price, sub.Amount)
		assert.Equal(t, today, sub.PaymentDate)
		assert.Equal(t, "Al Rajhi Bank", sub.BankName)
		assert.Empty(t, sub.ReceiptURLs)
	})

	t.Run("amount must match the price exactly", func(t *testing.T) {
		c := filledCollector(t)
		require.NoError(t, c.Set(paymodels.FieldAmount, "119.99"))
		_, err := c.Build(price, today)

		var v *ValidationError
		require.ErrorAs(t, err, &v)
		assert.Equal(t, "amount must be exactly 120.00", v.Fields[paymodels.FieldAmount])
		assert.Len(t, v.Fields, 1)
	})

	t.Run("every broken rule is reported", func(t *testing.T) {
		c := NewCollector(0)
		require.NoError(t, c.Set(paymodels.FieldTransactionID, "TX"))
		require.NoError(t, c.Set(paymodels.FieldAmount, "abc"))
		require.NoError(t, c.Set(paymodels.FieldPaymentDate, "2026-10-15"))
		require.NoError(t, c.Set(paymodels.FieldBankName, "Piggy Bank"))
		require.NoError(t, c.Set(paymodels.FieldAccountNumber, "1234"))
		_, err := c.Build(price, today)

		var v *ValidationError
		require.ErrorAs(t, err, &v)
		assert.Contains(t, v.Fields[paymodels.FieldAmount], "number")
		assert.Contains(t, v.Fields, paymodels.FieldTransactionID)
		assert.Equal(t, "payment date cannot be in the past", v.Fields[paymodels.FieldPaymentDate])
		assert.Contains(t, v.Fields, paymodels.FieldBankName)
		assert.Contains(t, v.Fields, paymodels.FieldAccountNumber)
	})

	t.Run("missing fields are required", func(t *testing.T) {
		_, err := NewCollector(0).Build(price, today)
		var v *ValidationError
		require.ErrorAs(t, err, &v)
		assert.Equal(t, "payment date is required", v.Fields[paymodels.FieldPaymentDate])
		assert.Equal(t, "amount must be greater than zero", v.Fields[paymodels.FieldAmount])
	})

	t.Run("other bank and long account number pass", func(t *testing.T) {
		c := filledCollector(t)
		require.NoError(t, c.Set(paymodels.FieldBankName, paymodels.OtherBank))
		require.NoError(t, c.Set(paymodels.FieldAccountNumber, "SA0380000000608010167519"))
		_, err := c.Build(price, today)
		assert.NoError(t, err)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		assert.Error(t, NewCollector(0).Set("iban_swift", "x"))
	})
}

func TestCollectorReceipts(t *testing.T) {
	t.Run("image gets a preview, pdf does not", func(t *testing.T) {
		c := NewCollector(0)
		img, err := c.AddReceipt("receipt.png", pngBytes)
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.ContentType)
		assert.Contains(t, img.Preview, "data:image/png;base64,")

		doc, err := c.AddReceipt("receipt.pdf", pdfBytes)
		require.NoError(t, err)
		assert.Empty(t, doc.Preview)
		assert.Len(t, c.Files(), 2)
	})

	t.Run("oversize file is rejected alone", func(t *testing.T) {
		c := NewCollector(0)
		_, err := c.AddReceipt("small.png", pngBytes)
		require.NoError(t, err)

		big := append(bytes.Clone(pngBytes), make([]byte, 11<<20)...)
		_, err = c.AddReceipt("scan.png", big)
		var v *ValidationError
		require.ErrorAs(t, err, &v)
		assert.Equal(t, "scan.png: file exceeds the 10MB limit", v.Fields[paymodels.FieldReceipts])

		require.Len(t, c.Files(), 1)
		assert.Equal(t, "small.png", c.Files()[0].Name)
	})

	t.Run("unsupported type names the file", func(t *testing.T) {
		_, err := NewCollector(0).AddReceipt("notes.txt", []byte("hello there"))
		var v *ValidationError
		require.ErrorAs(t, err, &v)
		assert.Contains(t, v.Fields[paymodels.FieldReceipts], "notes.txt")
	})

	t.Run("duplicate content is rejected and removal works", func(t *testing.T) {
		c := NewCollector(0)
		staged, err := c.AddReceipt("a.png", pngBytes)
		require.NoError(t, err)
		_, err = c.AddReceipt("b.png", pngBytes)
		assert.Error(t, err)

		assert.True(t, c.RemoveReceipt(staged.Fingerprint))
		assert.False(t, c.RemoveReceipt(staged.Fingerprint))
		assert.Empty(t, c.Files())
	})

	t.Run("staged data is a private copy", func(t *testing.T) {
		data := bytes.Clone(pdfBytes)
		staged, err := NewCollector(0).AddReceipt("r.pdf", data)
		require.NoError(t, err)
		data[0] = 'X'
		assert.Equal(t, pdfBytes, staged.Data())
	})
}

func TestStateGuards(t *testing.T) {
	for _, s := range []State{StateSlotSelected, StateAwaitingPayment, StateSubmitting, StateFailed} {
		assert.True(t, s.HoldsPendingDraft(), s)
		assert.False(t, s.CanSelectSlot(), s)
	}
	for _, s := range []State{StateIdle, StateCompleted, StateConflictRetry} {
		assert.True(t, s.CanSelectSlot(), s)
	}
	assert.True(t, StateFailed.CanSubmit())
	assert.False(t, StateConflictRetry.CanSubmit())
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(&statusErr{status: 409, msg: "whatever", conflict: true}))
	assert.False(t, IsConflict(assert.AnError))
	assert.True(t, IsConflict(errString("time slot already booked")))
	assert.False(t, IsConflict(nil))
	assert.True(t, IsPaymentAlreadySubmitted(&statusErr{status: 409, msg: "payment already submitted for this booking"}))
	assert.False(t, IsPaymentAlreadySubmitted(&statusErr{status: 500, msg: "payment already submitted"}))
}

type errString string

func (e errString) Error() string { return string(e) }

type statusErr struct {
	status   int
	msg      string
	conflict bool
}

func (e *statusErr) Error() string    { return e.msg }
func (e *statusErr) StatusCode() int  { return e.status }
func (e *statusErr) IsConflict() bool { return e.conflict }
