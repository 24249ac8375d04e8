package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tplscope/internal/record"
)

func TestNewLogBuffer_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := NewLogBuffer(0)
	assert.Error(t, err)
}

func TestLogBuffer_InsertUntilFull(t *testing.T) {
	b, err := NewLogBuffer(3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ok := b.Insert(record.LogRecord{EvaluationID: uint16(i)})
		assert.Equal(t, i < 3, ok, "insert %d", i)
	}

	assert.Equal(t, 3, b.Stored())
	assert.Equal(t, 5, b.Attempts())
	assert.Equal(t, 2, b.Dropped())
	assert.Equal(t, 3, b.Capacity())

	got := b.Records()
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, uint16(i), r.EvaluationID, "insertion order kept, overflow dropped")
	}
}

func TestLogBuffer_Reset(t *testing.T) {
	b, err := NewLogBuffer(1)
	require.NoError(t, err)
	b.Insert(record.LogRecord{EvaluationID: 1})
	b.Insert(record.LogRecord{EvaluationID: 2})

	b.Reset()

	assert.Equal(t, 0, b.Stored())
	assert.Equal(t, 0, b.Attempts())
	assert.Empty(t, b.Records())
	assert.True(t, b.Insert(record.LogRecord{EvaluationID: 3}))
}
