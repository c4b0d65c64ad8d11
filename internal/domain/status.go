package domain

// Status represents the lifecycle state of a generation session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusReviewing  Status = "reviewing"
	StatusRefining   Status = "refining"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// statusOrder encodes the forward direction of the state machine. FAILED is
// reachable from any non-terminal state and is handled separately.
var statusOrder = map[Status]int{
	StatusPending:    0,
	StatusGenerating: 1,
	StatusReviewing:  2,
	StatusRefining:   3,
	StatusCompleted:  4,
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// After reports whether s is further along the forward path than o. Used
// when resuming a crashed run to recognize steps already passed.
func (s Status) After(o Status) bool {
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[o]
	if !ok {
		return false
	}
	return from > to
}

// CanTransitionTo reports whether moving from s to next is a legal
// transition. REFINING loops back to GENERATING for the next iteration;
// everything else only moves forward, except FAILED which is always
// reachable from a non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	if s == StatusRefining && next == StatusGenerating {
		return true
	}
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	if !ok {
		return false
	}
	return to > from
}
