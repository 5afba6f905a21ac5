package stache

// stack is the chain of data scopes a render resolves paths against. The
// root frame is always present.
type stack struct {
	frames []any
}

func (s *stack) reset(root any) {
	clear(s.frames)
	s.frames = append(s.frames[:0], root)
}

func (s *stack) push(v any) { s.frames = append(s.frames, v) }

func (s *stack) pop() {
	if len(s.frames) > 1 {
		s.frames[len(s.frames)-1] = nil
		s.frames = s.frames[:len(s.frames)-1]
	}
}

func (s *stack) top() any { return s.frames[len(s.frames)-1] }

func (s *stack) len() int { return len(s.frames) }
