package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tutorly/internal/availability/models"
	id "tutorly/pkg/domain"
	"tutorly/pkg/platform/sentinel"
	"tutorly/pkg/platform/tx"
)

// PostgresStore persists schedules in the teachers and availability_windows tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, teacherID id.TeacherID) (*models.Schedule, error) {
	q := tx.Conn(ctx, s.db)
	schedule := &models.Schedule{TeacherID: teacherID}
	var rate int64
	err := q.QueryRowContext(ctx,
		`SELECT name, hourly_rate, updated_at FROM teachers WHERE id = $1`,
		uuid.UUID(teacherID),
	).Scan(&schedule.Name, &rate, &schedule.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find teacher: %w", err)
	}
	schedule.HourlyRate = id.Money(rate)

	rows, err := q.QueryContext(ctx, `
		SELECT day_of_week, start_minute, end_minute
		FROM availability_windows
		WHERE teacher_id = $1
		ORDER BY day_of_week, start_minute, end_minute`,
		uuid.UUID(teacherID),
	)
	if err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day, start, end int
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, fmt.Errorf("scan availability window: %w", err)
		}
		schedule.Windows = append(schedule.Windows, models.Window{
			TeacherID: teacherID,
			DayOfWeek: time.Weekday(day),
			Start:     models.ClockTime(start),
			End:       models.ClockTime(end),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability windows: %w", err)
	}
	return schedule, nil
}

// Replace upserts the teacher row and rewrites its windows in one transaction.
func (s *PostgresStore) Replace(ctx context.Context, schedule *models.Schedule) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.Conn(ctx, s.db)
		teacherID := uuid.UUID(schedule.TeacherID)
		_, err := q.ExecContext(ctx, `
			INSERT INTO teachers (id, name, hourly_rate, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				hourly_rate = EXCLUDED.hourly_rate,
				updated_at = EXCLUDED.updated_at`,
			teacherID, schedule.Name, int64(schedule.HourlyRate), schedule.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert teacher: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM availability_windows WHERE teacher_id = $1`, teacherID); err != nil {
			return fmt.Errorf("clear availability windows: %w", err)
		}
		for _, w := range schedule.Windows {
			_, err := q.ExecContext(ctx, `
				INSERT INTO availability_windows (teacher_id, day_of_week, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)`,
				teacherID, int(w.DayOfWeek), int(w.Start), int(w.End),
			)
			if err != nil {
				return fmt.Errorf("insert availability window: %w", err)
			}
		}
		return nil
	})
}
