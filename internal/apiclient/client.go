// Package apiclient talks to the booking API over HTTP on behalf of a booking
// session. It implements every session port.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/singleflight"

	avmodels "tutorly/internal/availability/models"
	paymodels "tutorly/internal/payment/models"
	"tutorly/internal/session"
	id "tutorly/pkg/domain"
)

const (
	maxErrorBody = 64 << 10
	// sharedFetchTimeout bounds a deduplicated fetch that outlives its first caller.
	sharedFetchTimeout = 30 * time.Second
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api error %d: %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) StatusCode() int { return e.Status }

// IsConflict reports a 409 or a body phrased as a slot conflict.
func (e *APIError) IsConflict() bool {
	if e.Status == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already booked") || strings.Contains(msg, "slot is taken")
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
	logger  *slog.Logger
	group   singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token sent on student routes.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Schedule loads a teacher's availability. Concurrent loads of the same
// teacher share one request; each caller still honours its own ctx.
func (c *Client) Schedule(ctx context.Context, teacherID id.TeacherID) (*avmodels.Schedule, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(teacherID.String(), func() (any, error) {
		callCtx, cancel := context.WithTimeout(shared, sharedFetchTimeout)
		defer cancel()
		var out avmodels.Schedule
		if err := c.do(callCtx, http.MethodGet, "/teachers/"+teacherID.String()+"/availability", nil, "", &out); err != nil {
			return nil, err
		}
		return &out, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	schedule := *res.Val.(*avmodels.Schedule)
	schedule.Windows = append([]avmodels.Window(nil), schedule.Windows...)
	return &schedule, nil
}

type createBookingBody struct {
	TeacherID string    `json:"teacher_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type bookingBody struct {
	BookingID id.BookingID `json:"booking_id"`
	Status    string       `json:"status"`
	Price     id.Money     `json:"price"`
}

func (c *Client) CreateBooking(ctx context.Context, req session.CreateBookingRequest) (*session.BookingRef, error) {
	body := createBookingBody{TeacherID: req.TeacherID.String(), StartTime: req.Start, EndTime: req.End}
	var out bookingBody
	if err := c.doJSON(ctx, http.MethodPost, "/bookings", body, &out); err != nil {
		return nil, err
	}
	return &session.BookingRef{BookingID: out.BookingID, Status: out.Status, Price: out.Price}, nil
}

type paymentBody struct {
	PaymentID id.PaymentID `json:"payment_id"`
	Status    string       `json:"status"`
}

func (c *Client) SubmitPayment(ctx context.Context, sub paymodels.Submission) (*session.PaymentRef, error) {
	var out paymentBody
	if err := c.doJSON(ctx, http.MethodPost, "/payments", sub, &out); err != nil {
		return nil, err
	}
	return &session.PaymentRef{PaymentID: out.PaymentID, Status: out.Status}, nil
}

type uploadBody struct {
	URL string `json:"url"`
}

func (c *Client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	var out uploadBody
	if err := c.do(ctx, http.MethodPost, "/files", &buf, mw.FormDataContentType(), &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

type probeBody struct {
	TeacherID string `json:"teacher_id"`
	Date      string `json:"date"`
	TimeSlot  string `json:"time_slot"`
}

type probeResult struct {
	Available bool `json:"available"`
}

func (c *Client) Probe(ctx context.Context, teacherID id.TeacherID, date id.Date, timeSlot string) (bool, error) {
	var out probeResult
	err := c.doJSON(ctx, http.MethodPost, "/slots/probe",
		probeBody{TeacherID: teacherID.String(), Date: date.String(), TimeSlot: timeSlot}, &out)
	if err != nil {
		return false, err
	}
	return out.Available, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(payload), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.DebugContext(ctx, "api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Code = body.Error
		apiErr.Message = body.ErrorDescription
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
