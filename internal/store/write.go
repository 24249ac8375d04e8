package store

import (
	"context"
	"fmt"

	"github.com/roach88/tplscope/internal/engine"
)

// WriteBatch stores a delivered batch and its records in one transaction.
// Returns the batch row id and whether a new row was inserted.
//
// Uses ON CONFLICT(request_id, seq) DO NOTHING for idempotency: redelivering
// the same batch returns the existing id and inserted=false without touching
// its records.
func (s *Store) WriteBatch(ctx context.Context, b *engine.Batch) (id int64, inserted bool, err error) {
	statsJSON, err := marshalStats(b.Stats)
	if err != nil {
		return 0, false, fmt.Errorf("write batch: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	payload := b.Payload
	if payload == nil {
		payload = []byte{}
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO batches
		(seq, request_id, release, attempts, stored, payload, stats)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id, seq) DO NOTHING
	`,
		b.Seq,
		b.RequestID,
		b.Release,
		b.Attempts,
		len(b.Records),
		payload,
		statsJSON,
	)
	if err != nil {
		return 0, false, fmt.Errorf("write batch: insert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("write batch: rows affected: %w", err)
	}

	if affected == 0 {
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM batches WHERE request_id = ? AND seq = ?
		`, b.RequestID, b.Seq).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("write batch: select existing: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("write batch: commit: %w", err)
		}
		return id, false, nil
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("write batch: last insert id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records
		(batch_id, position, template_hash, evaluation_id, namespace, lookup_count, flags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, false, fmt.Errorf("write batch: prepare records: %w", err)
	}
	defer stmt.Close()

	for i, r := range b.Records {
		_, err := stmt.ExecContext(ctx,
			id,
			i,
			int64(r.TemplateHash),
			int64(r.EvaluationID),
			int64(r.Namespace),
			int64(r.LookupCount),
			int64(r.Flags),
		)
		if err != nil {
			return 0, false, fmt.Errorf("write batch: record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write batch: commit: %w", err)
	}
	return id, true, nil
}
