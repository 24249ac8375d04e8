package harness

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/tplscope/internal/record"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type       string     // Assertion type for categorization
	Expected   string     // Human-readable expected outcome
	Actual     string     // Human-readable actual outcome
	Deliveries []Delivery // Delivered batches for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nDelivered:\n")
	if len(e.Deliveries) == 0 {
		fmt.Fprintf(&buf, "  (nothing)\n")
	}
	for i, d := range e.Deliveries {
		fmt.Fprintf(&buf, "  batch %d (seq %d, %d records)\n", i, d.Seq, len(d.Records))
		for _, r := range d.Records {
			fmt.Fprintf(&buf, "    %s\n", r)
		}
	}
	return buf.String()
}

func (r RecordView) String() string {
	status := "ok"
	if r.Failed {
		status = "failed"
	}
	s := fmt.Sprintf("%s id=%d ns=%s lookups=%d %s", r.Template, r.ID, r.Namespace, r.Lookups, status)
	if len(r.Flags) > 0 {
		s += " flags=" + strings.Join(r.Flags, ",")
	}
	return s
}

func batchAt(result *Result, a Assertion) (*Delivery, error) {
	if a.Batch < 0 || a.Batch >= len(result.Deliveries) {
		return nil, &AssertionError{
			Type:       a.Type,
			Expected:   fmt.Sprintf("batch %d to be delivered", a.Batch),
			Actual:     fmt.Sprintf("%d batches delivered", len(result.Deliveries)),
			Deliveries: result.Deliveries,
		}
	}
	return &result.Deliveries[a.Batch], nil
}

// assertDeliveryCount checks the number of delivered batches.
func assertDeliveryCount(result *Result, a Assertion) error {
	if len(result.Deliveries) != *a.Count {
		return &AssertionError{
			Type:       a.Type,
			Expected:   fmt.Sprintf("%d batches", *a.Count),
			Actual:     fmt.Sprintf("%d batches", len(result.Deliveries)),
			Deliveries: result.Deliveries,
		}
	}
	return nil
}

// assertRecord checks that some record in the batch matches every field the
// assertion sets.
func assertRecord(result *Result, a Assertion) error {
	d, err := batchAt(result, a)
	if err != nil {
		return err
	}
	for _, r := range d.Records {
		if recordMatches(r, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:       a.Type,
		Expected:   describeRecord(a),
		Actual:     fmt.Sprintf("no matching record in batch %d", a.Batch),
		Deliveries: result.Deliveries,
	}
}

func recordMatches(r RecordView, a Assertion) bool {
	if a.ID != nil && r.ID != *a.ID {
		return false
	}
	if a.Template != "" && r.Template != a.Template {
		return false
	}
	if a.Failed != nil && r.Failed != *a.Failed {
		return false
	}
	if a.Lookups != nil && r.Lookups != *a.Lookups {
		return false
	}
	if a.Namespace != "" {
		ns, err := record.ParseNamespace(a.Namespace)
		if err != nil || r.Namespace != ns {
			return false
		}
	}
	if a.Flags != nil && !slices.Equal(r.Flags, a.Flags) {
		return false
	}
	return true
}

func describeRecord(a Assertion) string {
	var parts []string
	if a.Template != "" {
		parts = append(parts, a.Template)
	}
	if a.ID != nil {
		parts = append(parts, fmt.Sprintf("id=%d", *a.ID))
	}
	if a.Namespace != "" {
		parts = append(parts, "ns="+a.Namespace)
	}
	if a.Lookups != nil {
		parts = append(parts, fmt.Sprintf("lookups=%d", *a.Lookups))
	}
	if a.Failed != nil {
		parts = append(parts, fmt.Sprintf("failed=%v", *a.Failed))
	}
	if a.Flags != nil {
		parts = append(parts, "flags="+strings.Join(a.Flags, ","))
	}
	return "record " + strings.Join(parts, " ")
}

// assertRecordCount checks the number of records in one batch.
func assertRecordCount(result *Result, a Assertion) error {
	d, err := batchAt(result, a)
	if err != nil {
		return err
	}
	if len(d.Records) != *a.Count {
		return &AssertionError{
			Type:       a.Type,
			Expected:   fmt.Sprintf("%d records in batch %d", *a.Count, a.Batch),
			Actual:     fmt.Sprintf("%d records", len(d.Records)),
			Deliveries: result.Deliveries,
		}
	}
	return nil
}

// assertRecordOrder checks the batch's evaluation ids, in order, exactly.
func assertRecordOrder(result *Result, a Assertion) error {
	d, err := batchAt(result, a)
	if err != nil {
		return err
	}
	ids := make([]uint16, len(d.Records))
	for i, r := range d.Records {
		ids[i] = r.ID
	}
	if !slices.Equal(ids, a.IDs) {
		return &AssertionError{
			Type:       a.Type,
			Expected:   fmt.Sprintf("ids %v", a.IDs),
			Actual:     fmt.Sprintf("ids %v", ids),
			Deliveries: result.Deliveries,
		}
	}
	return nil
}

// assertStats checks a subset of the batch's statistics by JSON field name.
func assertStats(result *Result, a Assertion) error {
	d, err := batchAt(result, a)
	if err != nil {
		return err
	}

	data, err := json.Marshal(d.Stats)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	var actual map[string]int
	if err := json.Unmarshal(data, &actual); err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	keys := make([]string, 0, len(a.Stats))
	for k := range a.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			return fmt.Errorf("stats: unknown field %q", k)
		}
		if got != a.Stats[k] {
			return &AssertionError{
				Type:       a.Type,
				Expected:   fmt.Sprintf("%s = %d in batch %d", k, a.Stats[k], a.Batch),
				Actual:     fmt.Sprintf("%s = %d", k, got),
				Deliveries: result.Deliveries,
			}
		}
	}
	return nil
}

// assertFramesBalanced checks that every retained frame was released once.
func assertFramesBalanced(result *Result, a Assertion) error {
	if len(result.LeakedFrames) > 0 || result.OverReleased > 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: "no leaked or over-released frames",
			Actual: fmt.Sprintf("leaked %v, over-released %d",
				result.LeakedFrames, result.OverReleased),
			Deliveries: result.Deliveries,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertDeliveryCount:
			err = assertDeliveryCount(result, assertion)
		case AssertRecord:
			err = assertRecord(result, assertion)
		case AssertRecordCount:
			err = assertRecordCount(result, assertion)
		case AssertRecordOrder:
			err = assertRecordOrder(result, assertion)
		case AssertStats:
			err = assertStats(result, assertion)
		case AssertFramesBalanced:
			err = assertFramesBalanced(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
