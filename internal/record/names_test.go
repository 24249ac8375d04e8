package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNamespace(t *testing.T) {
	tests := []struct {
		in   string
		want NamespaceIndex
	}{
		{"globals", NamespaceGlobals},
		{"locals", NamespaceLocals},
		{"builtins", NamespaceBuiltins},
		{"not_found", NamespaceNotFound},
		{"searchlist[3]", 3},
		{"0", 0},
		{"251", 251},
	}
	for _, tt := range tests {
		got, err := ParseNamespace(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.want, mustParse(t, got.String()), "String round-trips for %s", tt.in)
	}

	for _, bad := range []string{"", "local", "252", "-1", "searchlist[x]"} {
		_, err := ParseNamespace(bad)
		assert.Error(t, err, bad)
	}
}

func mustParse(t *testing.T, s string) NamespaceIndex {
	t.Helper()
	n, err := ParseNamespace(s)
	require.NoError(t, err)
	return n
}

func TestNamespaceIndex_JSON(t *testing.T) {
	data, err := json.Marshal([]NamespaceIndex{2, NamespaceLocals})
	require.NoError(t, err)
	assert.JSONEq(t, `["searchlist[2]","locals"]`, string(data))

	var back []NamespaceIndex
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []NamespaceIndex{2, NamespaceLocals}, back)
}

func TestStepFlags_Names(t *testing.T) {
	for f := StepFlags(0); f <= 3; f++ {
		got, err := ParseStepFlags(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseStepFlags("autocall")
	assert.Error(t, err)
}

func TestLogRecord_StepFlagNames(t *testing.T) {
	assert.Nil(t, LogRecord{LookupCount: 3}.StepFlagNames())

	r := LogRecord{LookupCount: 3 | FailureBit, Flags: PackFlags(0, FlagAutoInvoked, FlagMappingFallback)}
	assert.Equal(t, []string{"none", "auto_invoked", "mapping_fallback"}, r.StepFlagNames())
}
