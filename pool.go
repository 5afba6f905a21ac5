package stache

import (
	"strings"
	"sync"
)

// ----------------------------- Buffer and state pools -----------------------

var stringBuilderPool = sync.Pool{
	New: func() any { return &strings.Builder{} },
}

var statePool = sync.Pool{
	New: func() any {
		return &renderState{
			stack: stack{frames: make([]any, 0, 8)},
		}
	},
}

func getBuilder() *strings.Builder {
	sb := stringBuilderPool.Get().(*strings.Builder)
	sb.Reset()
	return sb
}

// putBuilder returns sb to the pool unless it grew unusually large.
func putBuilder(sb *strings.Builder) {
	if sb.Cap() > 64<<10 {
		return
	}
	stringBuilderPool.Put(sb)
}

func getState(e *Engine, root any) *renderState {
	st := statePool.Get().(*renderState)
	st.engine = e
	st.depth = 0
	st.stack.reset(root)
	return st
}

func putState(st *renderState) {
	st.engine = nil
	clear(st.stack.frames)
	st.stack.frames = st.stack.frames[:0]
	statePool.Put(st)
}
