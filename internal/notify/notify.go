// Package notify delivers fire-and-forget user notifications about booking
// and payment progress. Delivery failures never fail the calling operation.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type Kind string

const (
	KindBookingReserved  Kind = "booking_reserved"
	KindPaymentSubmitted Kind = "payment_submitted"
	KindPaymentApproved  Kind = "payment_approved"
	KindPaymentRejected  Kind = "payment_rejected"
)

// Sender is implemented by every notification sink.
type Sender interface {
	Send(ctx context.Context, kind Kind, recipient string, data map[string]string) error
}

// Message is the wire form published to the notification topic.
type Message struct {
	Kind      Kind              `json:"kind"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data,omitempty"`
	SentAt    time.Time         `json:"sent_at"`
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func Decode(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}

// LogNotifier writes notifications to the structured log. It is the fallback
// when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, kind Kind, recipient string, data map[string]string) error {
	n.logger.InfoContext(ctx, "notification",
		"kind", kind,
		"recipient", recipient,
		"data", data,
	)
	return nil
}

// Recorder keeps every sent message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, kind Kind, recipient string, data map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Kind: kind, Recipient: recipient, Data: data, SentAt: time.Now()})
	return nil
}

// Messages returns a copy of what has been sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Kinds lists sent kinds in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, 0, len(r.messages))
	for _, m := range r.messages {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}
