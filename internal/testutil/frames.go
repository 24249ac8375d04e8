package testutil

import (
	"fmt"
	"sort"

	"github.com/roach88/tplscope/internal/engine"
)

// FrameStack simulates a host call stack for driving the instrumentation
// core without a template engine.
//
// Frames are numbered from 1 and never reused. Leaving a frame (normally or
// by unwinding) makes it dead but keeps its bookkeeping, so tests can assert
// that every Retain was matched by exactly one Release.
//
// Thread-safety: none, like the controller it feeds.
type FrameStack struct {
	frames       map[engine.FrameID]*simFrame
	current      engine.FrameID
	next         engine.FrameID
	overReleased int
}

type simFrame struct {
	parent    engine.FrameID
	hasParent bool
	template  string
	refs      int
	live      bool
}

// NewFrameStack creates a stack holding a single outermost frame running
// rootTemplate.
func NewFrameStack(rootTemplate string) *FrameStack {
	s := &FrameStack{frames: make(map[engine.FrameID]*simFrame)}
	s.next = 1
	s.current = s.alloc(rootTemplate, 0, false)
	return s
}

func (s *FrameStack) alloc(template string, parent engine.FrameID, hasParent bool) engine.FrameID {
	id := s.next
	s.next++
	s.frames[id] = &simFrame{parent: parent, hasParent: hasParent, template: template, live: true}
	return id
}

// Enter calls into a new frame running template and makes it current.
func (s *FrameStack) Enter(template string) engine.FrameID {
	s.current = s.alloc(template, s.current, true)
	return s.current
}

// Leave returns normally from the current frame.
func (s *FrameStack) Leave() error {
	f := s.frames[s.current]
	if !f.hasParent {
		return fmt.Errorf("testutil: cannot leave the outermost frame")
	}
	f.live = false
	s.current = f.parent
	return nil
}

// Unwind simulates an exception raised in the current frame and caught in
// frame to: every frame above to exits without notice.
func (s *FrameStack) Unwind(to engine.FrameID) error {
	if !s.isAncestorOrSelf(to) {
		return fmt.Errorf("testutil: frame %d is not on the active call stack", to)
	}
	for s.current != to {
		f := s.frames[s.current]
		f.live = false
		s.current = f.parent
	}
	return nil
}

func (s *FrameStack) isAncestorOrSelf(target engine.FrameID) bool {
	for id := s.current; ; {
		if id == target {
			return true
		}
		f := s.frames[id]
		if !f.hasParent {
			return false
		}
		id = f.parent
	}
}

// Current implements engine.Frames.
func (s *FrameStack) Current() engine.FrameID { return s.current }

// Parent implements engine.Frames.
func (s *FrameStack) Parent(id engine.FrameID) (engine.FrameID, bool) {
	f, ok := s.frames[id]
	if !ok || !f.hasParent {
		return 0, false
	}
	return f.parent, true
}

// Template implements engine.Frames.
func (s *FrameStack) Template(id engine.FrameID) string {
	if f, ok := s.frames[id]; ok {
		return f.template
	}
	return ""
}

// Retain implements engine.Frames.
func (s *FrameStack) Retain(id engine.FrameID) {
	if f, ok := s.frames[id]; ok {
		f.refs++
	}
}

// Release implements engine.Frames. Releasing an unreferenced frame is
// counted as an over-release instead of going negative.
func (s *FrameStack) Release(id engine.FrameID) {
	f, ok := s.frames[id]
	if !ok || f.refs == 0 {
		s.overReleased++
		return
	}
	f.refs--
}

// Refs is the number of outstanding references to id.
func (s *FrameStack) Refs(id engine.FrameID) int {
	if f, ok := s.frames[id]; ok {
		return f.refs
	}
	return 0
}

// Live reports whether id is still on the call stack.
func (s *FrameStack) Live(id engine.FrameID) bool {
	f, ok := s.frames[id]
	return ok && f.live
}

// Leaked lists frames that still hold references, in id order.
func (s *FrameStack) Leaked() []engine.FrameID {
	var ids []engine.FrameID
	for id, f := range s.frames {
		if f.refs > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OverReleased is the number of Release calls without a matching Retain.
func (s *FrameStack) OverReleased() int { return s.overReleased }
