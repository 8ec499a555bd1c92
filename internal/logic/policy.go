package logic

// Post-session delays in ticks.
const (
	ShortDelayTicks  = 500
	MediumDelayTicks = 2000
)

// Action is what the control loop does after a session.
type Action int

const (
	ActionAwaitStart Action = iota
	ActionHalt
)

// Recovery is the policy decision for one session result.
type Recovery struct {
	Action     Action
	DelayTicks uint32
}

// Recover maps a session result to its recovery action.
// Recoverable results always return to awaiting start and are never counted
// toward a retry limit.
func Recover(r SessionResult) Recovery {
	switch r.Kind {
	case ResultUserTerminated:
		return Recovery{Action: ActionAwaitStart, DelayTicks: ShortDelayTicks}
	case ResultFatalShutdown:
		return Recovery{Action: ActionHalt}
	default:
		return Recovery{Action: ActionAwaitStart, DelayTicks: MediumDelayTicks}
	}
}

// Selector tracks the 1-based active profile index and cycles it.
type Selector struct {
	count   int
	current int
}

// NewSelector creates a selector over count profiles starting at profile 1.
// A count below 1 is treated as 1.
func NewSelector(count int) *Selector {
	if count < 1 {
		count = 1
	}
	return &Selector{count: count, current: 1}
}

// Current returns the selected profile index.
func (s *Selector) Current() int {
	return s.current
}

// Count returns the number of profiles being cycled.
func (s *Selector) Count() int {
	return s.count
}

// Advance moves to the next profile, wrapping from the last back to 1, and
// returns the new index.
func (s *Selector) Advance() int {
	if s.current < s.count {
		s.current++
	} else {
		s.current = 1
	}
	return s.current
}
