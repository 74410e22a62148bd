package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// Subjects published by the marketplace.
const (
	SubjectListingCreated  = "listings.created"
	SubjectReportSubmitted = "reports.submitted"
)

// Publisher sends JSON-encoded domain events.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// NATSPublisher publishes over a core NATS connection (fire and forget).
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("cropmarket-backend"))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, payload)
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// Nop discards every event. Used when NATS_URL is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
