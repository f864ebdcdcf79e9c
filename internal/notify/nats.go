package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// EventRegistrationCreated is the type of events published on NATS.
const EventRegistrationCreated = "registration.created"

// Event is the envelope published for each registration.
type Event struct {
	ID         uuid.UUID                `json:"id"`
	Type       string                   `json:"type"`
	OccurredAt time.Time                `json:"occurred_at"`
	Data       model.RegistrationNotice `json:"data"`
}

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// ConnectNATS dials the NATS server, authenticating with token when set.
func ConnectNATS(url, token string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("mantikon-registration"),
		nats.MaxReconnects(-1),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// NATSNotifier publishes registration events for other services.
type NATSNotifier struct {
	pub     Publisher
	subject string
	now     func() time.Time
}

// NewNATSNotifier publishes on subject through pub.
func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{pub: pub, subject: subject, now: time.Now}
}

func (n *NATSNotifier) Name() string { return "nats" }

func (n *NATSNotifier) Notify(ctx context.Context, notice model.RegistrationNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Event{
		ID:         uuid.New(),
		Type:       EventRegistrationCreated,
		OccurredAt: n.now().UTC(),
		Data:       notice,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return nil
}
