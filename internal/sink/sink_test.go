package sink

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/record"
	"github.com/roach88/tplscope/internal/store"
	"github.com/roach88/tplscope/internal/testutil"
)

func testBatch(n int) *engine.Batch {
	recs := make([]record.LogRecord, n)
	for i := range recs {
		recs[i] = record.LogRecord{
			TemplateHash: record.HashString("templates/sink.tmpl"),
			EvaluationID: uint16(i),
			Namespace:    record.NamespaceLocals,
			LookupCount:  1,
		}
	}
	return &engine.Batch{
		RequestID: "req-sink",
		Seq:       1,
		Release:   "abc123",
		Attempts:  n,
		Records:   recs,
		Payload:   record.EncodeBatch(recs),
		Stats:     engine.Stats{Stored: n, Attempts: n, Duplicates: 2, Dropped: 1},
	}
}

func TestWriter_OneLinePerBatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	ctx := context.Background()

	require.NoError(t, w.Deliver(ctx, testBatch(3)))
	require.NoError(t, w.Deliver(ctx, testBatch(1)))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	l, err := record.DecodeLine(lines[0])
	require.NoError(t, err)
	assert.Equal(t, "abc123", l.Release)
	recs, err := l.Records()
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriter_PropagatesWriteError(t *testing.T) {
	err := NewWriter(failingWriter{}).Deliver(context.Background(), testBatch(1))
	assert.ErrorContains(t, err, "disk full")
}

func TestStore_PersistsOnce(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "sink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := NewStore(st, nil)
	ctx := context.Background()
	b := testBatch(2)

	require.NoError(t, s.Deliver(ctx, b))
	require.NoError(t, s.Deliver(ctx, b), "redelivery is not an error")

	batches, err := st.ListBatches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	recs, err := st.ReadRecords(ctx, batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, b.Records, recs)
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	good := testutil.NewRecordingSink()
	bad := testutil.NewRecordingSink()
	boom := errors.New("boom")
	bad.FailWith(boom)
	last := testutil.NewRecordingSink()

	err := Fanout{good, bad, last}.Deliver(context.Background(), testBatch(1))

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "sink 1")
	assert.Len(t, good.Batches(), 1)
	assert.Len(t, last.Batches(), 1, "a failing sink does not stop later ones")
}

func TestFanout_Empty(t *testing.T) {
	assert.NoError(t, Fanout{}.Deliver(context.Background(), testBatch(1)))
}
