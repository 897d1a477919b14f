// Package slotcache mirrors reserved booking intervals into Redis so the
// advisory probe endpoint can answer without touching PostgreSQL.
//
// Each teacher has one sorted set scored by interval start (unix seconds);
// members are "start:end". The cache is advisory only and may lag the store.
package slotcache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	id "tutorly/pkg/domain"
)

const (
	keyPrefix = "tutorly:slots:"
	// Slots never span more than a day, so any overlap starts within this window.
	maxSlotLength = 24 * time.Hour
)

type Cache struct {
	client redis.Cmdable
	now    func() time.Time
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(client redis.Cmdable, opts ...Option) *Cache {
	c := &Cache{client: client, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func key(teacherID id.TeacherID) string {
	return keyPrefix + teacherID.String()
}

func member(start, end time.Time) string {
	return strconv.FormatInt(start.Unix(), 10) + ":" + strconv.FormatInt(end.Unix(), 10)
}

// Mark records [start, end) as held and drops intervals that already ended.
func (c *Cache) Mark(ctx context.Context, teacherID id.TeacherID, start, end time.Time) error {
	k := key(teacherID)
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(start.Unix()), Member: member(start, end)})
	pipe.ZRemRangeByScore(ctx, k, "-inf", "("+strconv.FormatInt(c.now().Add(-maxSlotLength).Unix(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark slot: %w", err)
	}
	return nil
}

// Release forgets an interval after its booking is cancelled or rejected.
func (c *Cache) Release(ctx context.Context, teacherID id.TeacherID, start, end time.Time) error {
	if err := c.client.ZRem(ctx, key(teacherID), member(start, end)).Err(); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// Taken reports whether any cached interval overlaps [start, end).
func (c *Cache) Taken(ctx context.Context, teacherID id.TeacherID, start, end time.Time) (bool, error) {
	members, err := c.client.ZRangeByScore(ctx, key(teacherID), &redis.ZRangeBy{
		Min: strconv.FormatInt(start.Add(-maxSlotLength).Unix(), 10),
		Max: "(" + strconv.FormatInt(end.Unix(), 10),
	}).Result()
	if err != nil {
		return false, fmt.Errorf("read slots: %w", err)
	}
	for _, m := range members {
		s, e, ok := parseMember(m)
		if !ok {
			continue
		}
		if s < end.Unix() && start.Unix() < e {
			return true, nil
		}
	}
	return false, nil
}

func parseMember(m string) (int64, int64, bool) {
	left, right, ok := strings.Cut(m, ":")
	if !ok {
		return 0, 0, false
	}
	s, err := strconv.ParseInt(left, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	e, err := strconv.ParseInt(right, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return s, e, true
}
