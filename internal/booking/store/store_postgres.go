package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tutorly/internal/booking/models"
	"tutorly/internal/platform/postgres"
	id "tutorly/pkg/domain"
	"tutorly/pkg/platform/sentinel"
	"tutorly/pkg/platform/tx"
)

const liveStatuses = `('reserved', 'awaiting_review', 'confirmed')`

// PostgresStore persists bookings. Creation takes a per-teacher advisory lock
// so the overlap check and insert are serialized; the partial unique index on
// the exact interval is the final backstop.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfSlotFree(ctx context.Context, b *models.Booking) error {
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.Conn(ctx, s.db)
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, b.TeacherID.String()); err != nil {
			return fmt.Errorf("lock teacher: %w", err)
		}
		var taken bool
		err := q.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM bookings
				WHERE teacher_id = $1 AND status IN `+liveStatuses+`
				  AND start_time < $3 AND end_time > $2
			)`,
			uuid.UUID(b.TeacherID), b.Start, b.End,
		).Scan(&taken)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if taken {
			return sentinel.ErrConflict
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO bookings (id, teacher_id, student_id, start_time, end_time, price, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.UUID(b.ID), uuid.UUID(b.TeacherID), uuid.UUID(b.StudentID),
			b.Start, b.End, int64(b.Price), string(b.Status), b.CreatedAt, b.UpdatedAt,
		)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
	return err
}

func (s *PostgresStore) FindByID(ctx context.Context, bookingID id.BookingID) (*models.Booking, error) {
	return s.find(ctx, bookingID, false)
}

func (s *PostgresStore) SlotTaken(ctx context.Context, teacherID id.TeacherID, start, end time.Time) (bool, error) {
	var taken bool
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE teacher_id = $1 AND status IN `+liveStatuses+`
			  AND start_time < $3 AND end_time > $2
		)`,
		uuid.UUID(teacherID), start, end,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return taken, nil
}

// Update locks the row, applies fn and writes back status and updated_at.
func (s *PostgresStore) Update(ctx context.Context, bookingID id.BookingID, fn func(*models.Booking) error) (*models.Booking, error) {
	var out *models.Booking
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		b, err := s.find(ctx, bookingID, true)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		_, err = tx.Conn(ctx, s.db).ExecContext(ctx,
			`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`,
			uuid.UUID(b.ID), string(b.Status), b.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) find(ctx context.Context, bookingID id.BookingID, forUpdate bool) (*models.Booking, error) {
	query := `
		SELECT id, teacher_id, student_id, start_time, end_time, price, status, created_at, updated_at
		FROM bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		b                         models.Booking
		bid, teacherID, studentID uuid.UUID
		price                     int64
		status                    string
	)
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(bookingID)).Scan(
		&bid, &teacherID, &studentID, &b.Start, &b.End, &price, &status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	b.ID = id.BookingID(bid)
	b.TeacherID = id.TeacherID(teacherID)
	b.StudentID = id.StudentID(studentID)
	b.Price = id.Money(price)
	b.Status = models.Status(status)
	return &b, nil
}
