package tap

import (
	"fmt"
	"strings"
)

// State represents one of the 16 defined IEEE 1149.1 TAP controller states.
type State uint8

const (
	StateTestLogicReset State = iota
	StateRunTestIdle
	StateSelectDRScan
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIRScan
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR

	// StateCurrent is not a TAP state. As a transition source it stands for
	// whatever state the controller is tracking at the time of the request.
	StateCurrent
)

// NumStates is the number of real TAP states.
const NumStates = int(StateCurrent)

var stateNames = [NumStates]string{
	StateTestLogicReset: "TestLogicReset",
	StateRunTestIdle:    "RunTestIdle",
	StateSelectDRScan:   "SelectDRScan",
	StateCaptureDR:      "CaptureDR",
	StateShiftDR:        "ShiftDR",
	StateExit1DR:        "Exit1DR",
	StatePauseDR:        "PauseDR",
	StateExit2DR:        "Exit2DR",
	StateUpdateDR:       "UpdateDR",
	StateSelectIRScan:   "SelectIRScan",
	StateCaptureIR:      "CaptureIR",
	StateShiftIR:        "ShiftIR",
	StateExit1IR:        "Exit1IR",
	StatePauseIR:        "PauseIR",
	StateExit2IR:        "Exit2IR",
	StateUpdateIR:       "UpdateIR",
}

// svfNames are the stable state names used by Serial Vector Format files.
var svfNames = [NumStates]string{
	StateTestLogicReset: "RESET",
	StateRunTestIdle:    "IDLE",
	StateSelectDRScan:   "DRSELECT",
	StateCaptureDR:      "DRCAPTURE",
	StateShiftDR:        "DRSHIFT",
	StateExit1DR:        "DREXIT1",
	StatePauseDR:        "DRPAUSE",
	StateExit2DR:        "DREXIT2",
	StateUpdateDR:       "DRUPDATE",
	StateSelectIRScan:   "IRSELECT",
	StateCaptureIR:      "IRCAPTURE",
	StateShiftIR:        "IRSHIFT",
	StateExit1IR:        "IREXIT1",
	StatePauseIR:        "IRPAUSE",
	StateExit2IR:        "IREXIT2",
	StateUpdateIR:       "IRUPDATE",
}

func (s State) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	if s == StateCurrent {
		return "Current"
	}
	return fmt.Sprintf("State(%d)", s)
}

// SVFName returns the SVF spelling of the state.
func (s State) SVFName() string {
	if s.Valid() {
		return svfNames[s]
	}
	return s.String()
}

// Valid reports whether s is one of the 16 TAP states.
func (s State) Valid() bool {
	return s < StateCurrent
}

// IsShift reports whether s shifts a register on every TCK with TMS low.
func (s State) IsShift() bool {
	return s == StateShiftDR || s == StateShiftIR
}

// ParseState accepts the canonical names, the SVF names and "current",
// case-insensitively.
func ParseState(name string) (State, error) {
	n := strings.TrimSpace(name)
	if strings.EqualFold(n, "current") {
		return StateCurrent, nil
	}
	for i := 0; i < NumStates; i++ {
		if strings.EqualFold(n, stateNames[i]) || strings.EqualFold(n, svfNames[i]) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("tap: unknown state %q", name)
}

type stateTransitions struct {
	onZero State
	onOne  State
}

var transitions = [NumStates]stateTransitions{
	StateTestLogicReset: {onZero: StateRunTestIdle, onOne: StateTestLogicReset},
	StateRunTestIdle:    {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
	StateSelectDRScan:   {onZero: StateCaptureDR, onOne: StateSelectIRScan},
	StateCaptureDR:      {onZero: StateShiftDR, onOne: StateExit1DR},
	StateShiftDR:        {onZero: StateShiftDR, onOne: StateExit1DR},
	StateExit1DR:        {onZero: StatePauseDR, onOne: StateUpdateDR},
	StatePauseDR:        {onZero: StatePauseDR, onOne: StateExit2DR},
	StateExit2DR:        {onZero: StateShiftDR, onOne: StateUpdateDR},
	StateUpdateDR:       {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
	StateSelectIRScan:   {onZero: StateCaptureIR, onOne: StateTestLogicReset},
	StateCaptureIR:      {onZero: StateShiftIR, onOne: StateExit1IR},
	StateShiftIR:        {onZero: StateShiftIR, onOne: StateExit1IR},
	StateExit1IR:        {onZero: StatePauseIR, onOne: StateUpdateIR},
	StatePauseIR:        {onZero: StatePauseIR, onOne: StateExit2IR},
	StateExit2IR:        {onZero: StateShiftIR, onOne: StateUpdateIR},
	StateUpdateIR:       {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
}

// NextState returns the next TAP state after clocking TCK with the provided TMS
// value. It panics if an invalid state is supplied, which should never happen
// when interacting through the exported API.
func NextState(current State, tms bool) State {
	if !current.Valid() {
		panic(fmt.Sprintf("tap: unhandled state %d", current))
	}
	row := transitions[current]
	if tms {
		return row.onOne
	}
	return row.onZero
}

// Exit1 returns the Exit1 state reached by leaving the given shift state with
// TMS high.
func Exit1(shift State) State {
	if shift == StateShiftIR {
		return StateExit1IR
	}
	return StateExit1DR
}

// StateMachine tracks the TAP controller state locally. It does not perform any
// I/O; a simulated target clocks it from observed TMS levels.
type StateMachine struct {
	state State
}

// NewStateMachine creates a TAP state machine initialized to Test-Logic-Reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateTestLogicReset}
}

// State reports the current TAP state tracked by the machine.
func (m *StateMachine) State() State {
	return m.state
}

// Clock advances the machine one TCK cycle with the provided TMS bit and
// returns the new state.
func (m *StateMachine) Clock(tms bool) State {
	next := NextState(m.state, tms)
	m.state = next
	return next
}

// Force places the machine in an arbitrary state, as an asynchronous TRST or
// power-on would.
func (m *StateMachine) Force(s State) {
	m.state = s
}
