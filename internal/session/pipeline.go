package session

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	paymodels "tutorly/internal/payment/models"
	id "tutorly/pkg/domain"
)

// DefaultCallTimeout bounds every network call. Each call gets one attempt.
const DefaultCallTimeout = 15 * time.Second

const defaultUploadConcurrency = 3

// Result is what a completed submission produced.
type Result struct {
	BookingID id.BookingID
	PaymentID id.PaymentID
	// AlreadySubmitted is set when a retry found the evidence already attached.
	AlreadySubmitted bool
}

// Pipeline runs the two-phase submission: reserve the booking, then attach
// payment evidence. Phase two never starts before phase one succeeds and a
// reserved booking is never rolled back.
type Pipeline struct {
	bookings    Bookings
	payments    Payments
	uploader    Uploader
	checker     *Checker
	callTimeout time.Duration
	concurrency int
	tracer      trace.Tracer
	logger      *slog.Logger
}

type PipelineOption func(*Pipeline)

// WithChecker enables the advisory probe before phase one.
func WithChecker(c *Checker) PipelineOption {
	return func(p *Pipeline) {
		p.checker = c
	}
}

func WithCallTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.callTimeout = d
		}
	}
}

func WithUploadConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func NewPipeline(bookings Bookings, payments Payments, uploader Uploader, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		bookings:    bookings,
		payments:    payments,
		uploader:    uploader,
		callTimeout: DefaultCallTimeout,
		concurrency: defaultUploadConcurrency,
		tracer:      otel.Tracer("tutorly/session"),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run submits draft and sub. A draft that is already reserved skips phase one
// and reuses its booking id. Errors are ConflictError, BookingError or
// PartialSubmissionError.
func (p *Pipeline) Run(ctx context.Context, draft Draft, sub paymodels.Submission, files []StagedFile) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "booking.submit", trace.WithAttributes(
		attribute.String("teacher_id", draft.TeacherID.String()),
		attribute.String("time_slot", draft.TimeSlot.String()),
		attribute.Bool("resume", draft.Reserved()),
	))
	defer span.End()

	bookingID := draft.BookingID
	if bookingID.IsNil() {
		ref, err := p.reserve(ctx, draft)
		if err != nil {
			span.SetStatus(codes.Error, "phase one failed")
			return nil, err
		}
		bookingID = ref.BookingID
	}
	span.SetAttributes(attribute.String("booking_id", bookingID.String()))

	result, err := p.attachPayment(ctx, bookingID, sub, files)
	if err != nil {
		span.SetStatus(codes.Error, "phase two failed")
		return nil, &PartialSubmissionError{BookingID: bookingID, Err: err}
	}
	return result, nil
}

func (p *Pipeline) reserve(ctx context.Context, draft Draft) (*BookingRef, error) {
	ctx, span := p.tracer.Start(ctx, "booking.create")
	defer span.End()

	if p.checker != nil {
		res := p.checker.Probe(ctx, draft.TeacherID, draft.Date, draft.TimeSlot.String())
		span.SetAttributes(attribute.String("probe", string(res)))
		if res == ProbeUnavailable {
			return nil, &ConflictError{TeacherID: draft.TeacherID, TimeSlot: draft.TimeSlot.String(), FromProbe: true}
		}
	}

	slot := draft.Slot()
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	ref, err := p.bookings.CreateBooking(callCtx, CreateBookingRequest{
		TeacherID: draft.TeacherID,
		Start:     slot.Start,
		End:       slot.End,
	})
	if err != nil {
		span.RecordError(err)
		if IsConflict(err) {
			return nil, &ConflictError{TeacherID: draft.TeacherID, TimeSlot: draft.TimeSlot.String(), Err: err}
		}
		return nil, &BookingError{Err: err}
	}
	return ref, nil
}

func (p *Pipeline) attachPayment(ctx context.Context, bookingID id.BookingID, sub paymodels.Submission, files []StagedFile) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "payment.attach", trace.WithAttributes(
		attribute.Int("receipts", len(files)),
	))
	defer span.End()

	urls, err := p.uploadAll(ctx, files)
	if err != nil {
		span.RecordError(err)
		return nil, &PaymentError{Stage: "upload", Err: err}
	}

	sub.BookingID = bookingID
	sub.ReceiptURLs = urls
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	ref, err := p.payments.SubmitPayment(callCtx, sub)
	if err != nil {
		if IsPaymentAlreadySubmitted(err) {
			p.logger.InfoContext(ctx, "payment evidence already attached",
				"booking_id", bookingID.String(),
			)
			return &Result{BookingID: bookingID, AlreadySubmitted: true}, nil
		}
		span.RecordError(err)
		return nil, &PaymentError{Stage: "submit", Err: err}
	}
	return &Result{BookingID: bookingID, PaymentID: ref.PaymentID}, nil
}

// uploadAll uploads every staged file once and keeps the staging order.
func (p *Pipeline) uploadAll(ctx context.Context, files []StagedFile) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	urls := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, f := range files {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
			defer cancel()
			url, err := p.uploader.Upload(callCtx, f.Name, f.Data())
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
