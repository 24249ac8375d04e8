package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/exception_in_partial.yaml")
	require.NoError(t, err)

	var outputs []string
	for i := 0; i < 3; i++ {
		result, err := RunWithGolden(t, scenario)
		require.NoError(t, err)

		data, err := MarshalSnapshot(scenario.Name, scenario.RequestID, result)
		require.NoError(t, err)
		outputs = append(outputs, string(data))
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])
}

func TestMarshalSnapshot_Shape(t *testing.T) {
	result := NewResult()

	data, err := MarshalSnapshot("empty", "", result)
	require.NoError(t, err)

	want := `{
  "scenario_name": "empty",
  "result": {
    "pass": true,
    "deliveries": [],
    "summary": [],
    "leaked_frames": [],
    "over_released": 0
  }
}
`
	assert.Equal(t, want, string(data))
}

func TestMarshalSnapshot_NoHTMLEscaping(t *testing.T) {
	result := NewResult()
	result.AddError("a < b && c > d")

	data, err := MarshalSnapshot("escape", "req", result)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"request_id": "req"`)
	assert.Contains(t, string(data), "a < b && c > d")
}
