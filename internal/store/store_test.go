package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, _, err := s1.WriteBatch(ctx, testBatch("req-1", 1, testRecords(2)...)); err != nil {
		t.Fatalf("WriteBatch() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	batches, err := s2.ListBatches(ctx, 0)
	if err != nil {
		t.Fatalf("ListBatches() failed: %v", err)
	}
	if len(batches) != 1 {
		t.Errorf("got %d batches after reopen, want 1", len(batches))
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	if _, err := Open(path); err == nil {
		t.Error("expected error for a database from a newer version")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.want); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	tables := map[string][]string{
		"batches": {"id", "seq", "request_id", "release", "attempts", "stored", "payload", "stats"},
		"records": {"batch_id", "position", "template_hash", "evaluation_id", "namespace", "lookup_count", "flags"},
	}
	for table, expected := range tables {
		columns := getTableColumns(t, s.db, table)
		for _, col := range expected {
			if !slices.Contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}

	if !slices.Contains(getTableIndexes(t, s.db, "records"), "idx_records_placeholder") {
		t.Error("records table missing idx_records_placeholder")
	}
}

func TestSchema_Version(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		var version int
		if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			t.Fatalf("failed to get user_version: %v", err)
		}
		if version != currentSchemaVersion {
			t.Errorf("iteration %d: user_version = %d, want %d", i, version, currentSchemaVersion)
		}
		s.Close()
	}
}

func TestMaxSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	if err != nil {
		t.Fatalf("MaxSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("empty store MaxSeq = %d, want 0", seq)
	}

	for _, n := range []int64{3, 9, 4} {
		if _, _, err := s.WriteBatch(ctx, testBatch("req", n, testRecords(1)...)); err != nil {
			t.Fatalf("WriteBatch() failed: %v", err)
		}
	}
	if seq, _ = s.MaxSeq(ctx); seq != 9 {
		t.Errorf("MaxSeq = %d, want 9", seq)
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
