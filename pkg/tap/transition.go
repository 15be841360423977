package tap

import "fmt"

// ResetCycles is the number of TMS=1 clocks used to force Test-Logic-Reset.
// Five are enough from any state of a healthy TAP; nine also recover one whose
// tracked state no longer matches the hardware.
const ResetCycles = 9

// Transition is the shortest TMS pattern that moves the TAP between two
// states. Bit i of TMS is the TMS level for the i-th clock.
type Transition struct {
	TMS   uint8
	Count uint8
}

// Bit returns the TMS level for clock i.
func (t Transition) Bit(i int) bool {
	return t.TMS&(1<<uint(i)) != 0
}

// Bools expands the pattern into one TMS level per clock.
func (t Transition) Bools() []bool {
	out := make([]bool, t.Count)
	for i := range out {
		out[i] = t.Bit(i)
	}
	return out
}

var transitionTable [NumStates][NumStates]Transition

func init() {
	for from := 0; from < NumStates; from++ {
		for to := 0; to < NumStates; to++ {
			transitionTable[from][to] = computePath(State(from), State(to))
		}
	}
}

// ComputeTransition returns the shortest TMS pattern from one state to
// another. The pattern is empty only when from == to.
func ComputeTransition(from, to State) (Transition, error) {
	if !from.Valid() {
		return Transition{}, fmt.Errorf("tap: invalid start state %d", from)
	}
	if !to.Valid() {
		return Transition{}, fmt.Errorf("tap: invalid target state %d", to)
	}
	return transitionTable[from][to], nil
}

// computePath uses BFS across the TAP state diagram to find the shortest set of
// transitions between two states.
func computePath(from, to State) Transition {
	if from == to {
		return Transition{}
	}

	type node struct {
		state State
		tms   uint8
		count uint8
	}

	queue := []node{{state: from}}
	visited := [NumStates]bool{}
	visited[from] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, bit := range [2]bool{false, true} {
			next := NextState(current.state, bit)
			if visited[next] {
				continue
			}
			candidate := node{state: next, tms: current.tms, count: current.count + 1}
			if bit {
				candidate.tms |= 1 << current.count
			}
			if next == to {
				return Transition{TMS: candidate.tms, Count: candidate.count}
			}
			visited[next] = true
			queue = append(queue, candidate)
		}
	}

	// The graph is strongly connected.
	panic(fmt.Sprintf("tap: no path from %s to %s", from, to))
}
