package aspects

import (
	"sync"

	"github.com/codysoyland/aspecthooks/pkg/hook"
	"github.com/codysoyland/aspecthooks/pkg/objmodel"
)

// hookState is the bookkeeping shared by every Engine in the process. Hook
// containers live on the hooked objects and classes, so the records, the
// hierarchy tracker and the patched types describing them are shared too.
type hookState struct {
	// mu serializes every registration and removal.
	mu sync.Mutex
	// records maps each live record to its registration.
	records map[*hook.Record]registration
	tracker *tracker
	patcher *patcher
}

// registration ties a live record to the engine that registered it and to
// the class carrying its redirect.
type registration struct {
	engine  *Engine
	patched *objmodel.Class
}

var (
	stateMu     sync.Mutex
	sharedState = newHookState()
)

func newHookState() *hookState {
	return &hookState{
		records: make(map[*hook.Record]registration),
		tracker: newTracker(),
		patcher: newPatcher(),
	}
}

// currentState returns the state new engines attach to.
func currentState() *hookState {
	stateMu.Lock()
	defer stateMu.Unlock()
	return sharedState
}

// swapState makes s the state for engines created from now on and returns
// the previous one. Existing engines keep the state they were created with.
func swapState(s *hookState) *hookState {
	stateMu.Lock()
	defer stateMu.Unlock()

	prev := sharedState
	sharedState = s
	return prev
}
