package isp

import "fmt"

// State is the position of a Session in the programming sequence.
type State uint8

const (
	StateIdle State = iota
	StateResetAsserted
	StateProgrammingEnabled
	StateReading
	StateWriting
	StateResetReleased
	// StateFaulted means a transport call failed part way. The reset level
	// is unknown until ExitProgrammingMode succeeds.
	StateFaulted
)

var stateNames = map[State]string{
	StateIdle:               "Idle",
	StateResetAsserted:      "ResetAsserted",
	StateProgrammingEnabled: "ProgrammingEnabled",
	StateReading:            "Reading",
	StateWriting:            "Writing",
	StateResetReleased:      "ResetReleased",
	StateFaulted:            "Faulted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", s)
}
