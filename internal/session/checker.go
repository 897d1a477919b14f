package session

import (
	"context"
	"log/slog"
	"time"

	id "tutorly/pkg/domain"
	"tutorly/pkg/platform/circuit"
)

// ProbeResult is the advisory answer about a slot. Only the create-booking
// call decides whether a slot is really free.
type ProbeResult string

const (
	ProbeAvailable   ProbeResult = "available"
	ProbeUnavailable ProbeResult = "unavailable"
	ProbeUnknown     ProbeResult = "unknown"
)

const defaultProbeTimeout = 3 * time.Second

// Checker runs the advisory slot probe behind a circuit breaker. Probe never
// fails: transport trouble yields ProbeUnknown.
type Checker struct {
	prober  Prober
	breaker *circuit.Breaker
	timeout time.Duration
	logger  *slog.Logger
}

type CheckerOption func(*Checker)

func WithProbeTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) CheckerOption {
	return func(c *Checker) {
		if b != nil {
			c.breaker = b
		}
	}
}

func WithCheckerLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) {
		c.logger = logger
	}
}

func NewChecker(prober Prober, opts ...CheckerOption) *Checker {
	c := &Checker{
		prober:  prober,
		breaker: circuit.New("slot-probe", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		timeout: defaultProbeTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) Probe(ctx context.Context, teacherID id.TeacherID, date id.Date, timeSlot string) ProbeResult {
	if !c.breaker.Allow() {
		return ProbeUnknown
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	available, err := c.prober.Probe(ctx, teacherID, date, timeSlot)
	if err != nil {
		_, change := c.breaker.RecordFailure()
		c.logger.WarnContext(ctx, "slot probe failed, continuing without it",
			"teacher_id", teacherID.String(),
			"date", date.String(),
			"time_slot", timeSlot,
			"error", err,
		)
		if change.Opened {
			c.logger.WarnContext(ctx, "slot probe circuit opened", "breaker", c.breaker.Name())
		}
		return ProbeUnknown
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "slot probe circuit closed", "breaker", c.breaker.Name())
	}
	if available {
		return ProbeAvailable
	}
	return ProbeUnavailable
}
