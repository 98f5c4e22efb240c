package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewEnvelope(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	env := NewEnvelope(SubjectRecordUpdated, "corr-1", RecordUpdated{RecordID: "r1", Version: "2"}, now)

	id, err := ulid.Parse(env.ID)
	if err != nil {
		t.Fatalf("envelope id %q is not a ULID: %v", env.ID, err)
	}
	if got := ulid.Time(id.Time()); !got.Equal(now) {
		t.Errorf("ULID time = %v, want %v", got, now)
	}
	if env.OccurredAt.Location() != time.UTC {
		t.Errorf("OccurredAt location = %v, want UTC", env.OccurredAt.Location())
	}

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	payload := decoded["payload"].(map[string]interface{})
	if payload["recordId"] != "r1" || payload["relatedRecordVersion"] != "2" {
		t.Errorf("payload = %v", payload)
	}
	if _, ok := payload["CorrelationID"]; ok {
		t.Error("correlation id leaked into payload")
	}
	if decoded["correlationId"] != "corr-1" {
		t.Errorf("correlationId = %v", decoded["correlationId"])
	}
}

func TestDedupKey(t *testing.T) {
	a := DedupKey(RecordUpdated{RecordID: "r1", Version: "2"})
	b := DedupKey(RecordUpdated{RecordID: "r1", Version: "3"})
	if a == b {
		t.Errorf("versions share dedup key %q", a)
	}
}

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("")
	if err := p.PublishRecordUpdated(context.Background(), RecordUpdated{RecordID: "r1"}); err != nil {
		t.Errorf("noop publish error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("noop close error = %v", err)
	}
}
