package engine

import (
	"fmt"

	"github.com/roach88/tplscope/internal/record"
)

// DefaultStackCapacity bounds nesting of active evaluations. Real templates
// rarely exceed a depth of three.
const DefaultStackCapacity = 64

// EvaluationContext is the in-progress record of one placeholder evaluation.
type EvaluationContext struct {
	// Owner is the frame evaluating the placeholder. Retained while the
	// context is on the stack.
	Owner FrameID
	// EvaluationID is assigned by the template compiler and is unique only
	// within one template.
	EvaluationID uint16
	// Namespace is where the first lookup step succeeded; NamespaceNotFound
	// until recorded.
	Namespace record.NamespaceIndex
	// LookupCount counts steps, saturating at record.LookupCountMax. The
	// failure bit is never set on an active context.
	LookupCount uint8
	// Flags holds two bits per step for the first record.MaxFlaggedSteps steps.
	Flags uint32
}

func (c *EvaluationContext) recordStep(flags record.StepFlags) {
	step := int(c.LookupCount)
	if c.LookupCount < record.LookupCountMax {
		c.LookupCount++
	}
	c.Flags = record.SetStepFlags(c.Flags, step, flags)
}

// finalizeFunc receives every context popped off the stack, while its owner
// frame is still retained.
type finalizeFunc func(ctx EvaluationContext, failed bool)

// EvaluationStack is a fixed-capacity LIFO of active evaluation contexts,
// each bound to the frame that started it.
//
// INVARIANTS:
//   - Contexts are only mutated while they are the top and match the
//     caller's (frame, id).
//   - A full stack drops pushes; existing entries are never touched.
//   - Every popped context is handed to the finalizer exactly once, then its
//     owner frame is released exactly once.
type EvaluationStack struct {
	frames   Frames
	items    []EvaluationContext
	depth    int
	finalize finalizeFunc

	pushed    int
	overflows int
	sweeps    int
	swept     int
}

// NewEvaluationStack allocates a stack holding at most capacity contexts.
func NewEvaluationStack(frames Frames, capacity int, finalize finalizeFunc) (*EvaluationStack, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("engine: stack capacity must be positive, got %d", capacity)
	}
	if finalize == nil {
		finalize = func(EvaluationContext, bool) {}
	}
	return &EvaluationStack{
		frames:   frames,
		items:    make([]EvaluationContext, capacity),
		finalize: finalize,
	}, nil
}

// Start pushes a context for id owned by frame. A stale top is swept first.
// Returns false when the stack is full and the evaluation goes untracked.
func (s *EvaluationStack) Start(id uint16, frame FrameID) bool {
	if s.depth > 0 && !isLive(s.frames, s.items[s.depth-1].Owner, frame) {
		s.Sweep(frame)
	}
	if s.depth == len(s.items) {
		s.overflows++
		return false
	}

	s.frames.Retain(frame)
	s.items[s.depth] = EvaluationContext{
		Owner:        frame,
		EvaluationID: id,
		Namespace:    record.NamespaceNotFound,
	}
	s.depth++
	s.pushed++
	return true
}

func (s *EvaluationStack) topIs(id uint16, frame FrameID) bool {
	if s.depth == 0 {
		return false
	}
	top := &s.items[s.depth-1]
	return top.Owner == frame && top.EvaluationID == id
}

// Matches reports whether (frame, id) is the stack top. On a first mismatch
// it sweeps dead contexts once and checks again, so the ancestry walk is
// paid only when something is out of step.
func (s *EvaluationStack) Matches(id uint16, frame FrameID) bool {
	if s.topIs(id, frame) {
		return true
	}
	if s.Sweep(frame) == 0 {
		return false
	}
	return s.topIs(id, frame)
}

// RecordLookupStep counts one resolution step on the matching top context.
func (s *EvaluationStack) RecordLookupStep(id uint16, frame FrameID, flags record.StepFlags) bool {
	if !s.Matches(id, frame) {
		return false
	}
	s.items[s.depth-1].recordStep(flags)
	return true
}

// RecordNamespaceIndex sets where the first step was satisfied.
func (s *EvaluationStack) RecordNamespaceIndex(id uint16, frame FrameID, idx record.NamespaceIndex) bool {
	if !s.Matches(id, frame) {
		return false
	}
	s.items[s.depth-1].Namespace = idx
	return true
}

// Finish pops the matching top context as a success.
func (s *EvaluationStack) Finish(id uint16, frame FrameID) bool {
	if !s.Matches(id, frame) {
		return false
	}
	s.pop(false)
	return true
}

// Abort pops the matching top context as a failure, then every further top
// context owned by the same frame. Returns the number of contexts popped.
func (s *EvaluationStack) Abort(id uint16, frame FrameID) int {
	if !s.Matches(id, frame) {
		return 0
	}
	owner := s.pop(true).Owner
	n := 1
	for s.depth > 0 && s.items[s.depth-1].Owner == owner {
		s.pop(true)
		n++
	}
	return n
}

// Sweep finalizes, as failures, the contiguous run of top contexts whose
// owner frames are no longer ancestors of current. It stops at the first
// live context. Returns the number of contexts finalized.
func (s *EvaluationStack) Sweep(current FrameID) int {
	n := 0
	for s.depth > 0 && !isLive(s.frames, s.items[s.depth-1].Owner, current) {
		s.pop(true)
		n++
	}
	if n > 0 {
		s.sweeps++
		s.swept += n
	}
	return n
}

// FlushAll finalizes every remaining context as a failure regardless of
// frame liveness. Returns the number flushed.
func (s *EvaluationStack) FlushAll() int {
	n := s.depth
	for s.depth > 0 {
		s.pop(true)
	}
	return n
}

// Discard empties the stack without finalizing anything, releasing each
// owner frame once, and zeroes the counters.
func (s *EvaluationStack) Discard() {
	for s.depth > 0 {
		s.depth--
		s.frames.Release(s.items[s.depth].Owner)
		s.items[s.depth] = EvaluationContext{}
	}
	s.pushed, s.overflows, s.sweeps, s.swept = 0, 0, 0, 0
}

func (s *EvaluationStack) pop(failed bool) EvaluationContext {
	s.depth--
	ctx := s.items[s.depth]
	s.items[s.depth] = EvaluationContext{}
	s.finalize(ctx, failed)
	s.frames.Release(ctx.Owner)
	return ctx
}

// Depth is the number of active contexts.
func (s *EvaluationStack) Depth() int { return s.depth }

// Capacity is the maximum number of active contexts.
func (s *EvaluationStack) Capacity() int { return len(s.items) }

// Top returns a copy of the top context.
func (s *EvaluationStack) Top() (EvaluationContext, bool) {
	if s.depth == 0 {
		return EvaluationContext{}, false
	}
	return s.items[s.depth-1], true
}

