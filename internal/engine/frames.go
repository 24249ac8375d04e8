package engine

// FrameID is an opaque handle for one caller activation record in the host
// execution engine. Zero is never a valid frame.
type FrameID uint64

// Frames is the host's view of its call stack.
//
// A FrameID must stay valid and must not be reused while it is retained.
// The stack retains an owner frame exactly once on push and releases it
// exactly once on pop.
type Frames interface {
	// Current returns the innermost active frame of the caller.
	Current() FrameID
	// Parent returns the calling frame of f, or false at the outermost frame.
	Parent(f FrameID) (FrameID, bool)
	// Template returns the file name of the compiled template executing in f.
	Template(f FrameID) string
	// Retain pins f so it is not reused while referenced.
	Retain(f FrameID)
	// Release drops one reference taken by Retain.
	Release(f FrameID)
}

// maxAncestryDepth bounds the ancestry walk against a host that reports a
// cyclic parent chain.
const maxAncestryDepth = 1 << 16

// isLive reports whether target is current or one of current's ancestors.
// A walk that exceeds maxAncestryDepth reports the frame live so a confused
// host never causes a live evaluation to be finalized.
func isLive(frames Frames, target, current FrameID) bool {
	f := current
	for depth := 0; depth < maxAncestryDepth; depth++ {
		if f == target {
			return true
		}
		parent, ok := frames.Parent(f)
		if !ok {
			return false
		}
		f = parent
	}
	return true
}
