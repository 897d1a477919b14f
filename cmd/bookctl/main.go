// Command bookctl drives one booking session against a running tutorly API.
//
//	bookctl token -student <uuid>
//	bookctl slots -teacher <uuid> -date 2026-10-17
//	bookctl book  -teacher <uuid> -date 2026-10-17 -slot "09:00 - 10:00" \
//	              -txn TX-1 -bank "Al Rajhi Bank" -receipt transfer.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tutorly/internal/apiclient"
	jwttoken "tutorly/internal/jwt_token"
	paymodels "tutorly/internal/payment/models"
	"tutorly/internal/platform/config"
	"tutorly/internal/platform/logger"
	"tutorly/internal/session"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
)

type receiptList []string

func (r *receiptList) String() string { return strings.Join(*r, ",") }

func (r *receiptList) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	ctx := context.Background()
	log := logger.NewWithWriter(os.Stderr, os.Getenv("LOG_LEVEL"))

	var err error
	switch os.Args[1] {
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	case "slots":
		err = runSlots(ctx, os.Args[2:], os.Stdout, log)
	case "book":
		err = runBook(ctx, os.Args[2:], os.Stdout, log)
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: bookctl token|slots|book [flags]")
}

// runToken mints a development token with the server's signing settings.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	student := fs.String("student", "", "student id (random when empty)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	studentID, err := parseOrNewStudent(*student)
	if err != nil {
		return err
	}
	cfg := config.FromEnv()
	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	token, err := tokens.GenerateAccessToken(studentID, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func runSlots(ctx context.Context, args []string, out io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("slots", flag.ContinueOnError)
	teacher := fs.String("teacher", "", "teacher id")
	date := fs.String("date", "", "lesson date YYYY-MM-DD")
	tz := fs.String("tz", "Asia/Riyadh", "timezone of the schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, _, err := newSession(log, *tz)
	if err != nil {
		return err
	}
	teacherID, day, err := parseTarget(*teacher, *date)
	if err != nil {
		return err
	}
	slots, err := sess.AvailableSlots(ctx, teacherID, day)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Fprintln(out, "no slots offered on", day)
		return nil
	}
	for _, slot := range slots {
		fmt.Fprintf(out, "%s  (%d min)\n", slot.Label(), slot.Minutes())
	}
	return nil
}

func runBook(ctx context.Context, args []string, out io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	teacher := fs.String("teacher", "", "teacher id")
	date := fs.String("date", "", "lesson date YYYY-MM-DD")
	slot := fs.String("slot", "", `time slot, "HH:MM - HH:MM"`)
	tz := fs.String("tz", "Asia/Riyadh", "timezone of the schedule")
	txn := fs.String("txn", "", "bank transaction id")
	amount := fs.String("amount", "", "amount paid (defaults to the slot price)")
	paidOn := fs.String("paid-on", "", "payment date YYYY-MM-DD (defaults to today)")
	bank := fs.String("bank", "", "bank name: "+strings.Join(paymodels.Banks, ", ")+" or "+paymodels.OtherBank)
	account := fs.String("account", "", "sending account number")
	notes := fs.String("notes", "", "notes for the reviewer")
	var receipts receiptList
	fs.Var(&receipts, "receipt", "receipt file (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, loc, err := newSession(log, *tz)
	if err != nil {
		return err
	}
	teacherID, day, err := parseTarget(*teacher, *date)
	if err != nil {
		return err
	}
	if err := sess.SelectSlot(ctx, teacherID, day, *slot); err != nil {
		return err
	}
	if err := sess.OpenPaymentForm(); err != nil {
		return err
	}
	snap := sess.Snapshot()
	fmt.Fprintf(out, "selected %s on %s with %s, price %s\n", snap.Draft.TimeSlot, day, snap.Draft.TeacherName, snap.Draft.Price)

	if *amount == "" {
		*amount = snap.Draft.Price.String()
	}
	if *paidOn == "" {
		*paidOn = id.DateOf(time.Now().In(loc)).String()
	}
	fields := map[string]string{
		paymodels.FieldTransactionID: *txn,
		paymodels.FieldAmount:        *amount,
		paymodels.FieldPaymentDate:   *paidOn,
		paymodels.FieldBankName:      *bank,
		paymodels.FieldAccountNumber: *account,
		paymodels.FieldNotes:         *notes,
	}
	for field, value := range fields {
		if err := sess.UpdatePaymentField(field, value); err != nil {
			return err
		}
	}
	for _, path := range receipts {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		staged, err := sess.AddReceiptFile(filepath.Base(path), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "staged %s (%s, %d bytes)\n", staged.Name, staged.ContentType, staged.Size)
	}

	result, err := sess.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "booking %s reserved, payment %s submitted for review\n", result.BookingID, result.PaymentID)
	return nil
}

func newSession(log *slog.Logger, tz string) (*session.Session, *time.Location, error) {
	cfg := config.ClientFromEnv()
	if cfg.Token == "" {
		return nil, nil, errors.New("TUTORLY_TOKEN is not set, mint one with: bookctl token")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, nil, err
	}
	studentID, err := jwttoken.StudentOf(cfg.Token)
	if err != nil {
		return nil, nil, err
	}
	client, err := apiclient.New(cfg.APIURL, apiclient.WithToken(cfg.Token), apiclient.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}

	checker := session.NewChecker(client, session.WithCheckerLogger(log))
	pipeline := session.NewPipeline(client, client, client,
		session.WithChecker(checker),
		session.WithCallTimeout(cfg.CallTimeout),
		session.WithPipelineLogger(log),
	)
	sess, err := session.New(studentID, client, session.NewReconciler(pipeline, log),
		session.WithLogger(log),
		session.WithLocation(loc),
		session.WithHorizonDays(cfg.HorizonDays),
	)
	if err != nil {
		return nil, nil, err
	}
	return sess, loc, nil
}

func parseTarget(teacher, date string) (id.TeacherID, id.Date, error) {
	teacherID, err := id.ParseTeacherID(teacher)
	if err != nil {
		return id.TeacherID{}, id.Date{}, fmt.Errorf("-teacher: %w", err)
	}
	day, err := id.ParseDate(date)
	if err != nil {
		return id.TeacherID{}, id.Date{}, fmt.Errorf("-date: %w", err)
	}
	return teacherID, day, nil
}

func parseOrNewStudent(raw string) (id.StudentID, error) {
	if raw == "" {
		return id.StudentID(uuid.New()), nil
	}
	return id.ParseStudentID(raw)
}

// describe renders session errors the way a booking form would show them.
func describe(err error) string {
	var validation *session.ValidationError
	if errors.As(err, &validation) {
		var b strings.Builder
		b.WriteString("please fix the payment form:")
		for field, msg := range validation.Fields {
			fmt.Fprintf(&b, "\n  %s: %s", field, msg)
		}
		return b.String()
	}
	var conflict *session.ConflictError
	if errors.As(err, &conflict) {
		return session.ConflictMessage
	}
	var partial *session.PartialSubmissionError
	if errors.As(err, &partial) {
		return fmt.Sprintf("%s (booking %s): %v", session.PartialMessage, partial.BookingID, partial.Err)
	}
	return dErrors.MessageOf(err)
}
