package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tplscope/internal/record"
)

func testLine(t *testing.T, release string, attempts int, records ...record.LogRecord) string {
	t.Helper()
	line, err := record.EncodeLine(record.Line{
		Release:  release,
		Attempts: attempts,
		Payload:  record.EncodeBatch(records),
	})
	require.NoError(t, err)
	return line
}

func TestDecodeArgument(t *testing.T) {
	line := testLine(t, "", 5, record.LogRecord{
		TemplateHash: 0xdeadbeef,
		EvaluationID: 9,
		Namespace:    record.NamespaceGlobals,
		LookupCount:  2,
		Flags:        record.PackFlags(record.FlagAutoInvoked, record.FlagMappingFallback),
	})

	out, err := executeCommand(t, "decode", line)
	require.NoError(t, err)
	assert.Contains(t, out, "Line 1: release=- attempts=5 records=1 dropped=4")
	assert.Contains(t, out, "template=deadbeef id=9 ns=globals lookups=2 ok flags=auto_invoked,mapping_fallback")
}

func TestDecodeStdinJSON(t *testing.T) {
	first := testLine(t, "r1", 1, record.LogRecord{EvaluationID: 1, Namespace: record.NamespaceNotFound, LookupCount: record.FailureBit})
	second := testLine(t, "r1", 2,
		record.LogRecord{EvaluationID: 2, Namespace: 0},
		record.LogRecord{EvaluationID: 3, Namespace: record.NamespaceBuiltins, LookupCount: 1})

	cmd := NewRootCommand()
	out := &strings.Builder{}
	cmd.SetOut(out)
	cmd.SetErr(&strings.Builder{})
	cmd.SetIn(strings.NewReader(first + "\n\n" + second + "\n"))
	cmd.SetArgs([]string{"--format", "json", "decode"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string        `json:"status"`
		Data   []DecodedLine `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out.String()), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "r1", resp.Data[0].Release)
	require.Len(t, resp.Data[0].Records, 1)
	assert.True(t, resp.Data[0].Records[0].Failed)
	assert.Equal(t, record.NamespaceNotFound, resp.Data[0].Records[0].Namespace)
	require.Len(t, resp.Data[1].Records, 2)
	assert.Equal(t, uint16(3), resp.Data[1].Records[1].EvaluationID)
	assert.Zero(t, resp.Data[1].Dropped)
}

func TestDecodeInvalidLine(t *testing.T) {
	out, err := executeCommand(t, "decode", "not a valid line at all")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_DECODE]: line 1:")
}

func TestDecodeCorruptPayload(t *testing.T) {
	_, err := executeCommand(t, "decode", "rel 1 bm90LXpsaWI=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid zlib payload")
}
