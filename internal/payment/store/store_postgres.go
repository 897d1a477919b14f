package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tutorly/internal/payment/models"
	"tutorly/internal/platform/postgres"
	id "tutorly/pkg/domain"
	"tutorly/pkg/platform/sentinel"
	"tutorly/pkg/platform/tx"
)

const selectPayment = `
	SELECT id, booking_id, student_id, transaction_id, amount, payment_date, bank_name,
	       account_number, receipt_urls, notes, status, review_reason, created_at, reviewed_at
	FROM payments`

// PostgresStore persists payments; payments_booking_uniq enforces one per booking.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Payment) error {
	urls, err := json.Marshal(p.ReceiptURLs)
	if err != nil {
		return fmt.Errorf("marshal receipt urls: %w", err)
	}
	_, err = tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO payments (id, booking_id, student_id, transaction_id, amount, payment_date,
		                      bank_name, account_number, receipt_urls, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12)`,
		uuid.UUID(p.ID), uuid.UUID(p.BookingID), uuid.UUID(p.StudentID), p.TransactionID,
		int64(p.Amount), p.PaymentDate.In(time.UTC), p.BankName, nullString(p.AccountNumber),
		string(urls), nullString(p.Notes), string(p.Status), p.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	return s.scanOne(ctx, selectPayment+` WHERE id = $1`, uuid.UUID(paymentID))
}

func (s *PostgresStore) FindByBooking(ctx context.Context, bookingID id.BookingID) (*models.Payment, error) {
	return s.scanOne(ctx, selectPayment+` WHERE booking_id = $1`, uuid.UUID(bookingID))
}

func (s *PostgresStore) Update(ctx context.Context, paymentID id.PaymentID, fn func(*models.Payment) error) (*models.Payment, error) {
	var out *models.Payment
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		p, err := s.scanOne(ctx, selectPayment+` WHERE id = $1 FOR UPDATE`, uuid.UUID(paymentID))
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		_, err = tx.Conn(ctx, s.db).ExecContext(ctx,
			`UPDATE payments SET status = $2, review_reason = $3, reviewed_at = $4 WHERE id = $1`,
			uuid.UUID(p.ID), string(p.Status), nullString(p.ReviewReason), p.ReviewedAt,
		)
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg any) (*models.Payment, error) {
	var (
		p                         models.Payment
		pid, bookingID, studentID uuid.UUID
		amount                    int64
		paymentDate               time.Time
		account, notes, reason    sql.NullString
		urls                      []byte
		status                    string
		reviewedAt                sql.NullTime
	)
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&pid, &bookingID, &studentID, &p.TransactionID, &amount, &paymentDate, &p.BankName,
		&account, &urls, &notes, &status, &reason, &p.CreatedAt, &reviewedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	if err := json.Unmarshal(urls, &p.ReceiptURLs); err != nil {
		return nil, fmt.Errorf("unmarshal receipt urls: %w", err)
	}
	p.ID = id.PaymentID(pid)
	p.BookingID = id.BookingID(bookingID)
	p.StudentID = id.StudentID(studentID)
	p.Amount = id.Money(amount)
	p.PaymentDate = id.DateOf(paymentDate.UTC())
	p.AccountNumber = account.String
	p.Notes = notes.String
	p.ReviewReason = reason.String
	p.Status = models.Status(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		p.ReviewedAt = &t
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
