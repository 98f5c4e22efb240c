// Package event publishes record lifecycle events to NATS JetStream.
package event

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

const (
	// StreamName is the JetStream stream carrying record events.
	StreamName = "QM_RECORDS"
	// SubjectRecordUpdated is published after a QuickMarc save is stored.
	SubjectRecordUpdated = "qm.records.updated"

	envelopeVersion = "1.0.0"
	// JetStream drops a repeated Nats-Msg-Id inside this window.
	dedupWindow = 2 * time.Minute
)

// Publisher publishes record events.
type Publisher interface {
	PublishRecordUpdated(ctx context.Context, evt RecordUpdated) error
	// Close closes the publisher connection
	Close() error
}

// RecordUpdated is the payload of a qm.records.updated event.
type RecordUpdated struct {
	RecordID       string `json:"recordId"`
	ParsedRecordID string `json:"parsedRecordId"`
	RecordType     string `json:"recordType"`
	ExternalID     string `json:"externalId,omitempty"`
	Version        string `json:"relatedRecordVersion"`
	ExportKey      string `json:"exportKey,omitempty"` // object key of the ISO 2709 export, when made
	CorrelationID  string `json:"-"`
}

// EventEnvelope represents the standard event envelope structure.
// All events published to NATS are wrapped in this envelope for consistency.
type EventEnvelope struct {
	ID            string      `json:"id"`            // ULID, sortable by publish time
	Type          string      `json:"type"`          // Event type identifier
	Version       string      `json:"version"`       // Event schema version
	OccurredAt    time.Time   `json:"occurredAt"`    // When the event occurred
	CorrelationID string      `json:"correlationId"` // Correlation ID for tracing
	Payload       interface{} `json:"payload"`       // Event-specific data
}

// NewEnvelope wraps payload for publishing.
func NewEnvelope(eventType, correlationID string, payload interface{}, now time.Time) EventEnvelope {
	return EventEnvelope{
		ID:            ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:          eventType,
		Version:       envelopeVersion,
		OccurredAt:    now.UTC(),
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// noop is used when NATS is not configured so the service runs without events.
type noop struct{}

// NewNoop returns a Publisher that discards events.
func NewNoop() Publisher { return noop{} }

func (noop) PublishRecordUpdated(context.Context, RecordUpdated) error { return nil }
func (noop) Close() error                                             { return nil }

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewPublisher connects to url. An empty url, or any connection or stream
// setup failure, yields the no-op publisher.
func NewPublisher(url string) Publisher {
	if url == "" {
		return NewNoop()
	}

	nc, err := nats.Connect(url, nats.Name("qmd"))
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return NewNoop()
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return NewNoop()
	}

	if err := initStreams(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return NewNoop()
	}

	return &natsPub{nc: nc, js: js}
}

// initStreams creates the record stream if it does not exist.
func initStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(StreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{"qm.records.*"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     24 * time.Hour,
		Discard:    nats.DiscardOld,
		Storage:    nats.FileStorage,
		Duplicates: dedupWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s stream: %w", StreamName, err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// PublishRecordUpdated publishes evt. Repeats of the same record version
// inside the dedup window are dropped by the server.
func (p *natsPub) PublishRecordUpdated(ctx context.Context, evt RecordUpdated) error {
	b, err := json.Marshal(NewEnvelope(SubjectRecordUpdated, evt.CorrelationID, evt, time.Now()))
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectRecordUpdated, b, nats.Context(ctx), nats.MsgId(DedupKey(evt)))
	return err
}

// DedupKey identifies one stored version of one record.
func DedupKey(evt RecordUpdated) string {
	return evt.RecordID + ":" + evt.Version
}
