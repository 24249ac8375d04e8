package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/record"
)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testRecords creates n distinct successful records.
func testRecords(n int) []record.LogRecord {
	recs := make([]record.LogRecord, n)
	for i := range recs {
		recs[i] = record.LogRecord{
			TemplateHash: record.HashString("templates/test.tmpl"),
			EvaluationID: uint16(i + 1),
			Namespace:    record.NamespaceLocals,
			LookupCount:  1,
		}
	}
	return recs
}

// testBatch wraps records in a batch the way the controller builds one.
func testBatch(requestID string, seq int64, recs ...record.LogRecord) *engine.Batch {
	return &engine.Batch{
		RequestID: requestID,
		Seq:       seq,
		Release:   "rel-1",
		Attempts:  len(recs),
		Records:   recs,
		Payload:   record.EncodeBatch(recs),
		Stats:     engine.Stats{Finalized: len(recs), Attempts: len(recs), Stored: len(recs)},
	}
}
