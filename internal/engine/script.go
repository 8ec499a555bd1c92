package engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sweeney/diag-logger/internal/logic"
	"github.com/sweeney/diag-logger/internal/profile"
)

// Step is one scripted session.
type Step struct {
	Lines  []string
	Result logic.SessionResult
	// UntilCancel holds the session open until ctx is cancelled, then
	// returns UserTerminated.
	UntilCancel bool
}

// Call records one RunSession invocation.
type Call struct {
	Profile profile.Profile
	Debug   bool
}

// Script is an Engine that replays scripted sessions. After the last step
// the last step repeats.
type Script struct {
	mu    sync.Mutex
	steps []Step
	calls []Call

	// Started, if set, receives the call number as each session starts.
	Started chan int
}

// NewScript creates a script from steps.
func NewScript(steps ...Step) *Script {
	return &Script{steps: steps}
}

// RunSession implements Engine.
func (s *Script) RunSession(ctx context.Context, p profile.Profile, w io.Writer, debug bool) logic.SessionResult {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Profile: p, Debug: debug})
	n := len(s.calls)
	var step Step
	if len(s.steps) > 0 {
		idx := n - 1
		if idx >= len(s.steps) {
			idx = len(s.steps) - 1
		}
		step = s.steps[idx]
	}
	started := s.Started
	s.mu.Unlock()

	if started != nil {
		started <- n
	}

	for _, line := range step.Lines {
		fmt.Fprintln(w, line)
	}
	if step.UntilCancel {
		<-ctx.Done()
		return logic.SessionResult{Kind: logic.ResultUserTerminated}
	}
	return step.Result
}

// Calls returns a copy of the recorded calls.
func (s *Script) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
