package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot captures everything a scenario delivered.
type Snapshot struct {
	ScenarioName string  `json:"scenario_name"`
	RequestID    string  `json:"request_id,omitempty"`
	Result       *Result `json:"result"`
}

// MarshalSnapshot renders a result as indented JSON with a trailing newline.
// Struct field order fixes the key order, so output is byte-stable.
func MarshalSnapshot(name, requestID string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Snapshot{ScenarioName: name, RequestID: requestID, Result: result}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the result against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can make further assertions; a mismatch
// fails the test via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, scenario.RequestID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name, requestID string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, requestID, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
