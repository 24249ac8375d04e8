package harness

import (
	"fmt"

	"github.com/roach88/tplscope/internal/engine"
	"github.com/roach88/tplscope/internal/record"
	"github.com/roach88/tplscope/internal/store"
)

// Delivery is one batch as the sink received it, with records rendered for
// reading and comparison.
type Delivery struct {
	RequestID string       `json:"request_id"`
	Seq       int64        `json:"seq"`
	Release   string       `json:"release,omitempty"`
	Attempts  int          `json:"attempts"`
	Records   []RecordView `json:"records"`
	Stats     engine.Stats `json:"stats"`
}

// RecordView is a delivered record with its template hash resolved back to
// the template name where the scenario entered that template.
type RecordView struct {
	Template  string                `json:"template"`
	ID        uint16                `json:"id"`
	Namespace record.NamespaceIndex `json:"namespace"`
	Lookups   int                   `json:"lookups"`
	Failed    bool                  `json:"failed"`
	Flags     []string              `json:"flags,omitempty"`
}

func newRecordView(r record.LogRecord, names map[uint32]string) RecordView {
	name, ok := names[r.TemplateHash]
	if !ok {
		name = fmt.Sprintf("%08x", r.TemplateHash)
	}
	return RecordView{
		Template:  name,
		ID:        r.EvaluationID,
		Namespace: r.Namespace,
		Lookups:   r.Steps(),
		Failed:    r.Failed(),
		Flags:     r.StepFlagNames(),
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step ran as expected and every assertion held.
	Pass bool `json:"pass"`

	Deliveries []Delivery `json:"deliveries"`

	// Summary aggregates the stored records per placeholder.
	Summary []store.PlaceholderStats `json:"summary"`

	// LeakedFrames lists frames still referenced after the scenario ended.
	LeakedFrames []string `json:"leaked_frames"`

	// OverReleased counts releases without a matching retain.
	OverReleased int `json:"over_released"`

	// Errors contains step and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Deliveries:   []Delivery{},
		Summary:      []store.PlaceholderStats{},
		LeakedFrames: []string{},
		Errors:       []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
