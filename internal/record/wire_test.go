package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendBinary_Layout(t *testing.T) {
	r := LogRecord{
		TemplateHash: 0x11223344,
		EvaluationID: 0x5566,
		Namespace:    0x77,
		LookupCount:  0x88,
		Flags:        0x99aabbcc,
	}

	got := r.AppendBinary(nil)

	assert.Equal(t, []byte{
		0x44, 0x33, 0x22, 0x11,
		0x66, 0x55,
		0x77,
		0x88,
		0xcc, 0xbb, 0xaa, 0x99,
	}, got)
	assert.Len(t, got, Size)
}

func TestDecode_RoundTrip(t *testing.T) {
	r := LogRecord{TemplateHash: 1933777421, EvaluationID: 0x1234, Namespace: 0x56, LookupCount: 0x78, Flags: 0x90abcdef}

	got, err := Decode(r.AppendBinary(nil))
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestDecode_ShortInput(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	assert.Error(t, err)
}

func TestDecodeBatch(t *testing.T) {
	records := []LogRecord{
		{TemplateHash: 1, EvaluationID: 1, Namespace: NamespaceNotFound, LookupCount: 1},
		{TemplateHash: 2, EvaluationID: 2, Namespace: 0, LookupCount: 2 | FailureBit, Flags: 3},
	}

	payload := EncodeBatch(records)
	require.Len(t, payload, 2*Size)

	got, err := DecodeBatch(payload)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestDecodeBatch_Empty(t *testing.T) {
	got, err := DecodeBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeBatch_RaggedLength(t *testing.T) {
	_, err := DecodeBatch(make([]byte, Size+5))
	assert.Error(t, err)
}
