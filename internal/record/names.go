package record

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNamespace accepts a sentinel name ("globals", "locals", "builtins",
// "not_found"), "searchlist[n]", or a bare searchlist position.
func ParseNamespace(s string) (NamespaceIndex, error) {
	switch s {
	case "globals":
		return NamespaceGlobals, nil
	case "locals":
		return NamespaceLocals, nil
	case "builtins":
		return NamespaceBuiltins, nil
	case "not_found":
		return NamespaceNotFound, nil
	}

	pos := s
	if strings.HasPrefix(s, "searchlist[") && strings.HasSuffix(s, "]") {
		pos = s[len("searchlist[") : len(s)-1]
	}
	n, err := strconv.Atoi(pos)
	if err != nil || n < 0 || n > MaxSearchListIndex {
		return 0, fmt.Errorf("invalid namespace %q", s)
	}
	return NamespaceIndex(n), nil
}

// MarshalText renders the index by name so JSON output is readable.
func (n NamespaceIndex) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText parses any form accepted by ParseNamespace.
func (n *NamespaceIndex) UnmarshalText(b []byte) error {
	v, err := ParseNamespace(string(b))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

var stepFlagNames = [...]string{"none", "mapping_fallback", "auto_invoked", "mapping_fallback+auto_invoked"}

func (f StepFlags) String() string {
	return stepFlagNames[f&stepFlagMask]
}

// ParseStepFlags is the inverse of StepFlags.String.
func ParseStepFlags(s string) (StepFlags, error) {
	for i, name := range stepFlagNames {
		if s == name {
			return StepFlags(i), nil
		}
	}
	return 0, fmt.Errorf("invalid step flags %q", s)
}

// StepFlagNames lists the flags of each counted step, up to MaxFlaggedSteps.
// Returns nil when no step carries a flag.
func (r LogRecord) StepFlagNames() []string {
	if r.Flags == 0 {
		return nil
	}
	n := min(r.Steps(), MaxFlaggedSteps)
	names := make([]string, n)
	for i := range names {
		names[i] = r.StepFlags(i).String()
	}
	return names
}
