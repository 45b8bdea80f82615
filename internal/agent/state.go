package agent

// State is the position of a Loop in its turn state machine.
//
//	Idle → Thinking → (ToolDispatch → Thinking)* → Done | Failed → Idle
type State int

const (
	StateIdle State = iota
	StateThinking
	StateToolDispatch
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateThinking:
		return "thinking"
	case StateToolDispatch:
		return "tool_dispatch"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
