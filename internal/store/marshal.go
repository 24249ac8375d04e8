package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/tplscope/internal/engine"
)

// marshalStats converts request statistics to JSON TEXT for storage.
// Struct field order keeps the output stable for golden comparisons.
func marshalStats(stats engine.Stats) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(stats); err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalStats parses JSON TEXT to Stats. Unknown fields from newer
// writers are ignored.
func unmarshalStats(data string) (engine.Stats, error) {
	var stats engine.Stats
	if data == "" || data == "{}" {
		return stats, nil
	}
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return engine.Stats{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return stats, nil
}
