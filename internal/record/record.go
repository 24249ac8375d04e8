package record

import "fmt"

// NamespaceIndex identifies which candidate namespace satisfied the first
// lookup step of an evaluation. Values below NamespaceGlobals are positions in
// the searchlist.
type NamespaceIndex uint8

// Sentinel namespace indices.
const (
	NamespaceGlobals  NamespaceIndex = 252
	NamespaceLocals   NamespaceIndex = 253
	NamespaceBuiltins NamespaceIndex = 254
	NamespaceNotFound NamespaceIndex = 255
)

// MaxSearchListIndex is the largest searchlist position that can be recorded
// without colliding with a sentinel.
const MaxSearchListIndex = int(NamespaceGlobals) - 1

// String renders sentinels by name and searchlist positions as "searchlist[n]".
func (n NamespaceIndex) String() string {
	switch n {
	case NamespaceGlobals:
		return "globals"
	case NamespaceLocals:
		return "locals"
	case NamespaceBuiltins:
		return "builtins"
	case NamespaceNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("searchlist[%d]", uint8(n))
	}
}

// StepFlags records how a single lookup step was resolved. Only the low two
// bits are meaningful.
type StepFlags uint8

const (
	// FlagMappingFallback marks a step satisfied by a mapping (key) lookup
	// rather than attribute access.
	FlagMappingFallback StepFlags = 1
	// FlagAutoInvoked marks a step whose value was a callable that was
	// invoked automatically.
	FlagAutoInvoked StepFlags = 2

	stepFlagMask StepFlags = 3
)

// MaxFlaggedSteps is the number of lookup steps whose flags fit in a record.
const MaxFlaggedSteps = 16

// Lookup count encoding.
const (
	FailureBit     uint8 = 0x80
	LookupCountMax uint8 = 0x7f
)

// LogRecord is an immutable snapshot of one finished evaluation context.
type LogRecord struct {
	TemplateHash uint32
	EvaluationID uint16
	Namespace    NamespaceIndex
	// LookupCount carries the step count in its low 7 bits and FailureBit
	// when the evaluation did not complete successfully.
	LookupCount uint8
	Flags       uint32
}

// Failed reports whether the failure bit is set.
func (r LogRecord) Failed() bool {
	return r.LookupCount&FailureBit != 0
}

// Steps returns the lookup step count without the failure bit.
func (r LogRecord) Steps() int {
	return int(r.LookupCount & LookupCountMax)
}

// StepFlags returns the flags recorded for lookup step i. Steps at or beyond
// MaxFlaggedSteps always report zero.
func (r LogRecord) StepFlags(i int) StepFlags {
	if i < 0 || i >= MaxFlaggedSteps {
		return 0
	}
	return StepFlags(r.Flags>>(uint(i)*2)) & stepFlagMask
}

// SetStepFlags returns flags with the two-bit slot for step i OR'ed with f.
// Out-of-range steps leave flags unchanged.
func SetStepFlags(flags uint32, i int, f StepFlags) uint32 {
	if i < 0 || i >= MaxFlaggedSteps {
		return flags
	}
	return flags | uint32(f&stepFlagMask)<<(uint(i)*2)
}

// PackFlags builds a flags word from per-step flags, step 0 first.
func PackFlags(steps ...StepFlags) uint32 {
	var flags uint32
	for i, f := range steps {
		flags = SetStepFlags(flags, i, f)
	}
	return flags
}

func (r LogRecord) String() string {
	status := "ok"
	if r.Failed() {
		status = "failed"
	}
	return fmt.Sprintf("template=%08x id=%d ns=%s lookups=%d flags=%08x %s",
		r.TemplateHash, r.EvaluationID, r.Namespace, r.Steps(), r.Flags, status)
}
