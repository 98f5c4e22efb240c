package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

func record(id string, recordType model.RecordType, version string) model.ParsedRecordDto {
	updated := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return model.ParsedRecordDto{
		ID:         id,
		RecordType: recordType,
		ParsedRecord: model.ParsedRecord{
			ID:      "c9db5d7a-e1d4-11e8-9f32-f2801f1b9fd1",
			Content: json.RawMessage(`{"fields": [{"001": "in001"}], "leader": "00000nz  a2200000n  4500"}`),
		},
		ExternalIDsHolder:    &model.ExternalIDsHolder{AuthorityID: "b9a5f035-de63-4e2c-92c2-07240c89b817"},
		AdditionalInfo:       model.AdditionalInfo{SuppressDiscovery: true},
		RelatedRecordVersion: version,
		Metadata:             &model.Metadata{UpdatedDate: &updated, UpdatedByUserID: "u1"},
	}
}

// runStoreContract exercises behaviour every Store implementation shares.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		if _, err := s.GetRecord(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetRecord() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("create and get", func(t *testing.T) {
		in := record("rec-1", model.RecordTypeAuthority, "1")
		if err := s.SaveRecord(ctx, in, ""); err != nil {
			t.Fatalf("SaveRecord() error = %v", err)
		}
		got, err := s.GetRecord(ctx, "rec-1")
		if err != nil {
			t.Fatalf("GetRecord() error = %v", err)
		}
		if got.RelatedRecordVersion != "1" || got.RecordType != model.RecordTypeAuthority {
			t.Errorf("GetRecord() = %+v", got)
		}
		if !got.AdditionalInfo.SuppressDiscovery {
			t.Error("suppressDiscovery lost")
		}
		if got.ExternalIDsHolder == nil || got.ExternalIDsHolder.AuthorityID != in.ExternalIDsHolder.AuthorityID {
			t.Errorf("ExternalIDsHolder = %+v", got.ExternalIDsHolder)
		}
		if got.Metadata == nil || !got.Metadata.UpdatedDate.Equal(*in.Metadata.UpdatedDate) || got.Metadata.UpdatedByUserID != "u1" {
			t.Errorf("Metadata = %+v", got.Metadata)
		}
		var content map[string]interface{}
		if err := json.Unmarshal(got.ParsedRecord.Content, &content); err != nil || content["leader"] != "00000nz  a2200000n  4500" {
			t.Errorf("content = %s (%v)", got.ParsedRecord.Content, err)
		}
	})

	t.Run("update with expected version", func(t *testing.T) {
		if err := s.SaveRecord(ctx, record("rec-1", model.RecordTypeAuthority, "2"), "1"); err != nil {
			t.Fatalf("SaveRecord() error = %v", err)
		}
		got, err := s.GetRecord(ctx, "rec-1")
		if err != nil {
			t.Fatal(err)
		}
		if got.RelatedRecordVersion != "2" {
			t.Errorf("version = %s, want 2", got.RelatedRecordVersion)
		}
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		err := s.SaveRecord(ctx, record("rec-1", model.RecordTypeAuthority, "2"), "1")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("SaveRecord() error = %v, want ErrConflict", err)
		}
	})

	t.Run("create existing conflicts", func(t *testing.T) {
		err := s.SaveRecord(ctx, record("rec-1", model.RecordTypeAuthority, "1"), "")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("SaveRecord() error = %v, want ErrConflict", err)
		}
	})

	t.Run("update missing", func(t *testing.T) {
		err := s.SaveRecord(ctx, record("rec-404", model.RecordTypeAuthority, "4"), "3")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("SaveRecord() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid version", func(t *testing.T) {
		if err := s.SaveRecord(ctx, record("rec-1", model.RecordTypeAuthority, "3"), "two"); err == nil {
			t.Error("SaveRecord() with malformed expected version succeeded")
		}
	})

	t.Run("list pages", func(t *testing.T) {
		for i := 2; i <= 5; i++ {
			if err := s.SaveRecord(ctx, record(fmt.Sprintf("rec-%d", i), model.RecordTypeBib, "1"), ""); err != nil {
				t.Fatal(err)
			}
		}

		page, err := s.ListRecords(ctx, model.ListRecordsQuery{RecordType: model.RecordTypeBib, Limit: 3})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Records) != 3 || page.Records[0].ID != "rec-2" || page.NextCursor == "" {
			t.Fatalf("first page = %d records, cursor %q", len(page.Records), page.NextCursor)
		}
		next, err := s.ListRecords(ctx, model.ListRecordsQuery{RecordType: model.RecordTypeBib, Limit: 3, Cursor: page.NextCursor})
		if err != nil {
			t.Fatal(err)
		}
		if len(next.Records) != 1 || next.Records[0].ID != "rec-5" || next.NextCursor != "" {
			t.Errorf("second page = %+v", next)
		}

		all, err := s.ListRecords(ctx, model.ListRecordsQuery{})
		if err != nil {
			t.Fatal(err)
		}
		if len(all.Records) != 5 {
			t.Errorf("unfiltered list = %d records, want 5", len(all.Records))
		}

		if _, err := s.ListRecords(ctx, model.ListRecordsQuery{Cursor: "%%%"}); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("ListRecords() with bad cursor error = %v, want ErrInvalidCursor", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	runStoreContract(t, s)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if err := s.SaveRecord(ctx, record("rec-1", model.RecordTypeBib, "1"), ""); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetRecord(ctx, "rec-1")
	got.ParsedRecord.Content[0] = 'X'
	got.ExternalIDsHolder.AuthorityID = "changed"

	again, _ := s.GetRecord(ctx, "rec-1")
	if again.ParsedRecord.Content[0] != '{' || again.ExternalIDsHolder.AuthorityID == "changed" {
		t.Error("stored record was modified through a returned copy")
	}
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("QM_TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: QM_TEST_INTEGRATION not set")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("qm_test"),
		tcpostgres.WithUsername("qm"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to stop container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	s, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	defer s.Close()

	runStoreContract(t, s)
}
