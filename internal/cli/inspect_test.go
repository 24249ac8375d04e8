package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/record"
	"github.com/roach88/tplscope/internal/store"
)

var inspectRecords = []record.LogRecord{
	{TemplateHash: 0x0a0b0c0d, EvaluationID: 1, Namespace: record.NamespaceLocals, LookupCount: 2,
		Flags: record.PackFlags(record.FlagMappingFallback, 0)},
	{TemplateHash: 0x0a0b0c0d, EvaluationID: 2, Namespace: 3, LookupCount: 1 | record.FailureBit},
}

// seedStore writes one batch and returns the database path and batch id.
func seedStore(t *testing.T) (string, int64) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "batches.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	id, _, err := st.WriteBatch(context.Background(), &engine.Batch{
		RequestID: "req-inspect",
		Seq:       4,
		Release:   "rel-9",
		Attempts:  3,
		Records:   inspectRecords,
		Payload:   record.EncodeBatch(inspectRecords),
		Stats:     engine.Stats{Finalized: 3, Failed: 1, Duplicates: 1, Attempts: 2, Stored: 2},
	})
	require.NoError(t, err)
	return dbPath, id
}

func TestInspectMissingDatabaseFlag(t *testing.T) {
	_, err := executeCommand(t, "inspect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestInspectList(t *testing.T) {
	dbPath, _ := seedStore(t)

	out, err := executeCommand(t, "inspect", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "REQUEST")
	assert.Contains(t, out, "req-inspect")
	assert.Contains(t, out, "rel-9")
	assert.Contains(t, out, "1 batch(es) shown, highest seq 4")
}

func TestInspectListEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	out, err := executeCommand(t, "inspect", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No batches stored.")
}

func TestInspectListJSON(t *testing.T) {
	dbPath, id := seedStore(t)

	out, err := executeCommand(t, "--format", "json", "inspect", "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   []store.BatchInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, id, resp.Data[0].ID)
	assert.Equal(t, int64(4), resp.Data[0].Seq)
	assert.Equal(t, 1, resp.Data[0].Stats.Duplicates)
}

func TestInspectBatch(t *testing.T) {
	dbPath, id := seedStore(t)

	out, err := executeCommand(t, "inspect", "--db", dbPath, "--batch", strconv.FormatInt(id, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "seq 4, request req-inspect")
	assert.Contains(t, out, "id=1 ns=locals lookups=2")
	assert.Contains(t, out, "id=2 ns=searchlist[3] lookups=1")
	assert.Contains(t, out, "Line: rel-9 3 ")
}

func TestInspectBatchJSON(t *testing.T) {
	dbPath, id := seedStore(t)

	out, err := executeCommand(t, "--format", "json", "inspect", "--db", dbPath, "--batch", strconv.FormatInt(id, 10))
	require.NoError(t, err)

	var resp struct {
		Data BatchDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "req-inspect", resp.Data.RequestID)
	require.Len(t, resp.Data.Records, 2)
	assert.Equal(t, RecordInfo{
		TemplateHash: "0a0b0c0d",
		EvaluationID: 1,
		Namespace:    record.NamespaceLocals,
		Lookups:      2,
		Flags:        []string{"mapping_fallback", "none"},
	}, resp.Data.Records[0])
	assert.True(t, resp.Data.Records[1].Failed)

	decoded, err := decodeLine(resp.Data.Line)
	require.NoError(t, err)
	assert.Equal(t, resp.Data.Records, decoded.Records)
}

func TestInspectBatchNotFound(t *testing.T) {
	dbPath, id := seedStore(t)

	out, err := executeCommand(t, "inspect", "--db", dbPath, "--batch", strconv.FormatInt(id+10, 10))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_BATCH_NOT_FOUND]")
}

func TestInspectSummary(t *testing.T) {
	dbPath, _ := seedStore(t)

	out, err := executeCommand(t, "inspect", "--db", dbPath, "--summary")
	require.NoError(t, err)
	assert.Contains(t, out, "NAMESPACES")
	assert.Contains(t, out, "mapping_fallback")
	assert.Contains(t, out, "searchlist[3]")
}

func TestInspectSummaryJSON(t *testing.T) {
	dbPath, _ := seedStore(t)

	out, err := executeCommand(t, "--format", "json", "inspect", "--db", dbPath, "--summary")
	require.NoError(t, err)

	var resp struct {
		Data []store.PlaceholderStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[0].MappingFallback)
	assert.False(t, resp.Data[0].SearchList)
	assert.True(t, resp.Data[1].SearchList)
	assert.Equal(t, 1, resp.Data[1].Failures)
}

func TestInspectBatchAndSummaryExclusive(t *testing.T) {
	dbPath, _ := seedStore(t)

	_, err := executeCommand(t, "inspect", "--db", dbPath, "--summary", "--batch", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}
