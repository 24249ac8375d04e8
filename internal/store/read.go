package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/record"
)

// ErrBatchNotFound is returned when a batch id does not exist.
var ErrBatchNotFound = errors.New("batch not found")

// BatchInfo is a stored batch without its records.
type BatchInfo struct {
	ID        int64        `json:"id"`
	Seq       int64        `json:"seq"`
	RequestID string       `json:"request_id"`
	Release   string       `json:"release"`
	Attempts  int          `json:"attempts"`
	Stored    int          `json:"stored"`
	Stats     engine.Stats `json:"stats"`
}

// ListBatches returns stored batches ordered by seq ASC, id ASC.
// A limit of zero or less returns every batch.
//
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]BatchInfo, error) {
	query := `
		SELECT id, seq, request_id, release, attempts, stored, stats
		FROM batches
		ORDER BY seq ASC, id ASC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	batches := []BatchInfo{}
	for rows.Next() {
		var (
			b         BatchInfo
			statsJSON string
		)
		if err := rows.Scan(&b.ID, &b.Seq, &b.RequestID, &b.Release, &b.Attempts, &b.Stored, &statsJSON); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if b.Stats, err = unmarshalStats(statsJSON); err != nil {
			return nil, fmt.Errorf("batch %d: %w", b.ID, err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// GetBatch returns one stored batch without its records.
func (s *Store) GetBatch(ctx context.Context, batchID int64) (BatchInfo, error) {
	var (
		b         BatchInfo
		statsJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, request_id, release, attempts, stored, stats
		FROM batches
		WHERE id = ?
	`, batchID).Scan(&b.ID, &b.Seq, &b.RequestID, &b.Release, &b.Attempts, &b.Stored, &statsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return BatchInfo{}, fmt.Errorf("batch %d: %w", batchID, ErrBatchNotFound)
	}
	if err != nil {
		return BatchInfo{}, fmt.Errorf("read batch %d: %w", batchID, err)
	}
	if b.Stats, err = unmarshalStats(statsJSON); err != nil {
		return BatchInfo{}, fmt.Errorf("batch %d: %w", batchID, err)
	}
	return b, nil
}

// ReadRecords returns the records of one batch in buffer order.
func (s *Store) ReadRecords(ctx context.Context, batchID int64) ([]record.LogRecord, error) {
	if err := s.batchExists(ctx, batchID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT template_hash, evaluation_id, namespace, lookup_count, flags
		FROM records
		WHERE batch_id = ?
		ORDER BY position ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []record.LogRecord{}
	for rows.Next() {
		var hash, id, ns, count, flags int64
		if err := rows.Scan(&hash, &id, &ns, &count, &flags); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record.LogRecord{
			TemplateHash: uint32(hash),
			EvaluationID: uint16(id),
			Namespace:    record.NamespaceIndex(ns),
			LookupCount:  uint8(count),
			Flags:        uint32(flags),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// ReadLine re-renders a stored batch as the single-line text form.
func (s *Store) ReadLine(ctx context.Context, batchID int64) (string, error) {
	var (
		l       record.Line
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT release, attempts, payload FROM batches WHERE id = ?
	`, batchID).Scan(&l.Release, &l.Attempts, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("batch %d: %w", batchID, ErrBatchNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read batch %d: %w", batchID, err)
	}
	l.Payload = payload
	return record.EncodeLine(l)
}

func (s *Store) batchExists(ctx context.Context, batchID int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM batches WHERE id = ?", batchID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("batch %d: %w", batchID, ErrBatchNotFound)
	}
	if err != nil {
		return fmt.Errorf("read batch %d: %w", batchID, err)
	}
	return nil
}

// PlaceholderStats aggregates every stored record of one placeholder,
// identified by template hash and evaluation id.
type PlaceholderStats struct {
	TemplateHash uint32                  `json:"template_hash"`
	EvaluationID uint16                  `json:"evaluation_id"`
	Records      int                     `json:"records"`
	Failures     int                     `json:"failures"`
	Namespaces   []record.NamespaceIndex `json:"namespaces"`
	// SearchList is set when any evaluation was satisfied from a searchlist
	// position rather than locals, globals or builtins.
	SearchList bool `json:"searchlist"`
	// MappingFallback and AutoInvoked are set when any step used them.
	MappingFallback bool `json:"mapping_fallback"`
	AutoInvoked     bool `json:"auto_invoked"`
}

// Flag masks selecting one flag in every two-bit step slot.
const (
	mappingFallbackMask = 0x55555555
	autoInvokedMask     = 0xAAAAAAAA
)

// PlaceholderSummary groups all stored records by placeholder, ordered by
// template hash then evaluation id. It answers which placeholders rely on
// searchlist lookups, mapping fallback or auto-invocation.
func (s *Store) PlaceholderSummary(ctx context.Context) ([]PlaceholderStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT template_hash, evaluation_id,
			COUNT(*),
			SUM(lookup_count >= ?),
			MAX((flags & ?) != 0),
			MAX((flags & ?) != 0),
			GROUP_CONCAT(DISTINCT namespace)
		FROM records
		GROUP BY template_hash, evaluation_id
		ORDER BY template_hash ASC, evaluation_id ASC
	`, int64(record.FailureBit), int64(mappingFallbackMask), int64(autoInvokedMask))
	if err != nil {
		return nil, fmt.Errorf("query placeholder summary: %w", err)
	}
	defer rows.Close()

	summary := []PlaceholderStats{}
	for rows.Next() {
		var (
			p                 PlaceholderStats
			hash, id          int64
			fallback, invoked bool
			namespaces        string
		)
		if err := rows.Scan(&hash, &id, &p.Records, &p.Failures, &fallback, &invoked, &namespaces); err != nil {
			return nil, fmt.Errorf("scan placeholder summary: %w", err)
		}
		p.TemplateHash = uint32(hash)
		p.EvaluationID = uint16(id)
		p.MappingFallback = fallback
		p.AutoInvoked = invoked
		if p.Namespaces, err = parseNamespaces(namespaces); err != nil {
			return nil, fmt.Errorf("placeholder %08x/%d: %w", p.TemplateHash, p.EvaluationID, err)
		}
		for _, ns := range p.Namespaces {
			if int(ns) <= record.MaxSearchListIndex {
				p.SearchList = true
			}
		}
		summary = append(summary, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate placeholder summary: %w", err)
	}
	return summary, nil
}

// parseNamespaces splits GROUP_CONCAT output, whose order SQLite leaves
// unspecified, into a sorted list.
func parseNamespaces(s string) ([]record.NamespaceIndex, error) {
	if s == "" {
		return []record.NamespaceIndex{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]record.NamespaceIndex, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("parse namespace %q: %w", part, err)
		}
		out = append(out, record.NamespaceIndex(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
