package entities

// GateState is the lifecycle state of a session's load path.
type GateState int32

const (
	// StateUnguarded means the original loader is still directly reachable.
	StateUnguarded GateState = iota

	// StateGuarded means the gate is installed and the namespace sealed.
	// There is no transition back.
	StateGuarded
)

func (s GateState) String() string {
	switch s {
	case StateUnguarded:
		return "unguarded"
	case StateGuarded:
		return "guarded"
	default:
		return "unknown"
	}
}
