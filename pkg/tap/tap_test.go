package tap

import "testing"

func TestNextStateTable(t *testing.T) {
	type transition struct {
		start State
		tms   bool
		end   State
	}

	cases := []transition{
		{StateTestLogicReset, false, StateRunTestIdle},
		{StateTestLogicReset, true, StateTestLogicReset},
		{StateRunTestIdle, true, StateSelectDRScan},
		{StateSelectDRScan, false, StateCaptureDR},
		{StateShiftDR, true, StateExit1DR},
		{StateExit2DR, false, StateShiftDR},
		{StateSelectIRScan, true, StateTestLogicReset},
		{StateCaptureIR, false, StateShiftIR},
		{StatePauseIR, true, StateExit2IR},
		{StateExit2IR, true, StateUpdateIR},
		{StateUpdateIR, true, StateSelectDRScan},
	}

	for _, tc := range cases {
		got := NextState(tc.start, tc.tms)
		if got != tc.end {
			t.Fatalf("NextState(%s, %v) = %s, want %s", tc.start, tc.tms, got, tc.end)
		}
	}
}

func TestComputeTransitionLandsOnTarget(t *testing.T) {
	for from := State(0); from < StateCurrent; from++ {
		for to := State(0); to < StateCurrent; to++ {
			tr, err := ComputeTransition(from, to)
			if err != nil {
				t.Fatalf("ComputeTransition(%s, %s): %v", from, to, err)
			}
			if (tr.Count == 0) != (from == to) {
				t.Fatalf("ComputeTransition(%s, %s) count = %d", from, to, tr.Count)
			}
			m := NewStateMachine()
			m.Force(from)
			for _, bit := range tr.Bools() {
				m.Clock(bit)
			}
			if m.State() != to {
				t.Fatalf("%s -> %s: landed on %s", from, to, m.State())
			}
		}
	}
}

func TestComputeTransitionKnownPatterns(t *testing.T) {
	cases := []struct {
		from, to State
		tms      []bool
	}{
		{StateRunTestIdle, StateSelectIRScan, []bool{true, true}},
		{StateRunTestIdle, StateShiftIR, []bool{true, true, false, false}},
		{StateRunTestIdle, StateShiftDR, []bool{true, false, false}},
		{StateShiftDR, StateRunTestIdle, []bool{true, true, false}},
		{StateTestLogicReset, StateRunTestIdle, []bool{false}},
	}

	for _, tc := range cases {
		tr, err := ComputeTransition(tc.from, tc.to)
		if err != nil {
			t.Fatalf("ComputeTransition returned error: %v", err)
		}
		got := tr.Bools()
		if len(got) != len(tc.tms) {
			t.Fatalf("%s -> %s length = %d, want %d", tc.from, tc.to, len(got), len(tc.tms))
		}
		for i, want := range tc.tms {
			if got[i] != want {
				t.Fatalf("%s -> %s bit %d = %v, want %v", tc.from, tc.to, i, got[i], want)
			}
		}
	}
}

func TestComputeTransitionRejectsInvalidStates(t *testing.T) {
	if _, err := ComputeTransition(StateCurrent, StateRunTestIdle); err == nil {
		t.Fatalf("expected error for invalid start state")
	}
	if _, err := ComputeTransition(StateRunTestIdle, State(42)); err == nil {
		t.Fatalf("expected error for invalid target state")
	}
}

func TestLongestPathFitsInByte(t *testing.T) {
	for from := State(0); from < StateCurrent; from++ {
		for to := State(0); to < StateCurrent; to++ {
			tr, _ := ComputeTransition(from, to)
			if tr.Count > 8 {
				t.Fatalf("%s -> %s needs %d clocks", from, to, tr.Count)
			}
		}
	}
}

func TestParseState(t *testing.T) {
	cases := map[string]State{
		"IDLE":           StateRunTestIdle,
		"drshift":        StateShiftDR,
		"ShiftIR":        StateShiftIR,
		"TestLogicReset": StateTestLogicReset,
		"reset":          StateTestLogicReset,
		"current":        StateCurrent,
		"IRPAUSE":        StatePauseIR,
	}
	for name, want := range cases {
		got, err := ParseState(name)
		if err != nil {
			t.Fatalf("ParseState(%q) returned error: %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseState(%q) = %s, want %s", name, got, want)
		}
	}
	if _, err := ParseState("nowhere"); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}

func TestStateMachineForceAndClock(t *testing.T) {
	m := NewStateMachine()
	m.Clock(false) // -> Run-Test/Idle
	if m.State() != StateRunTestIdle {
		t.Fatalf("State() = %s, want %s", m.State(), StateRunTestIdle)
	}
	m.Force(StatePauseDR)
	for i := 0; i < ResetCycles; i++ {
		m.Clock(true)
	}
	if m.State() != StateTestLogicReset {
		t.Fatalf("State after reset = %s, want %s", m.State(), StateTestLogicReset)
	}
}
