package submission

// State is the progress of a single unit of submitted GPU work
type State int32

const (
	// StateSubmitted indicates that work has been handed to a queue but the poller has not
	// looked at it yet
	StateSubmitted State = iota
	// StateWaiting indicates that the poller is waiting for the work's fence to be signaled
	StateWaiting
	// StateComplete indicates that the work's fence was signaled
	StateComplete
	// StateFailed indicates that the work's fence could not be queried
	StateFailed
)

var stateMapping = make(map[State]string)

func (s State) String() string {
	return stateMapping[s]
}

func init() {
	stateMapping[StateSubmitted] = "StateSubmitted"
	stateMapping[StateWaiting] = "StateWaiting"
	stateMapping[StateComplete] = "StateComplete"
	stateMapping[StateFailed] = "StateFailed"
}

// IsFinal returns true for states that a submission never leaves
func (s State) IsFinal() bool {
	return s == StateComplete || s == StateFailed
}
