// Package bmc bounded-model-checks the verification cells of a compiled
// design: the sequential netlist is unrolled cycle by cycle and a SAT solver
// searches for counterexamples to assert cells and witnesses for cover
// cells. Assume cells constrain every cycle.
package bmc

import (
	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/pborges/svac/internal/netlist"
)

// Status is the outcome of checking one cell to the requested depth.
type Status int

const (
	// Pass means no counterexample to an assert cell was found.
	Pass Status = iota
	// Fail means an assert cell has a counterexample at Result.Depth.
	Fail
	// Reached means a cover cell has a witness at Result.Depth.
	Reached
	// Unreached means no witness for a cover cell was found.
	Unreached
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case Reached:
		return "REACHED"
	case Unreached:
		return "UNREACHED"
	}
	return "status?"
}

// Result reports the outcome for one cell. Depth is the cycle of the
// counterexample or witness, -1 otherwise.
type Result struct {
	Cell   netlist.Cell
	Status Status
	Depth  int
}

// Check unrolls d for depth+1 cycles (cycles 0..depth) and checks every
// assert and cover cell. Assume cells are added as unit constraints at every
// cycle. Live and fair cells are not checked; bounded unrolling cannot
// decide liveness.
func Check(d *netlist.Design, depth int) []Result {
	// Probe literals must exist in the system before the unroller snapshots
	// it, so build them all up front.
	var results []Result
	var probes []z.Lit
	var holds []z.Lit
	for _, c := range d.Cells() {
		switch c.Kind {
		case netlist.CellAssert:
			results = append(results, Result{Cell: c, Depth: -1})
			probes = append(probes, d.Sys.And(c.En, c.Sig.Not()))
		case netlist.CellCover:
			results = append(results, Result{Cell: c, Status: Unreached, Depth: -1})
			probes = append(probes, d.Sys.And(c.En, c.Sig))
		case netlist.CellAssume:
			holds = append(holds, d.Sys.Or(c.En.Not(), c.Sig))
		}
	}

	u := logic.NewRoll(d.Sys)
	sat := gini.New()
	var mark []int8

	// Pin the constant-true literal of the unrolled circuit so probes that
	// fold to a constant are decided, not free.
	sat.Add(u.C.T)
	sat.Add(z.LitNull)

	var open []int
	for i := range results {
		// Probes that fold to a constant need no solver: the unroller has
		// no unrolled image of the constant node.
		switch probes[i] {
		case d.Sys.F:
			continue
		case d.Sys.T:
			results[i].Depth = 0
			if results[i].Cell.Kind == netlist.CellAssert {
				results[i].Status = Fail
			} else {
				results[i].Status = Reached
			}
			continue
		}
		open = append(open, i)
	}

	constrained := holds[:0]
	contradictory := false
	for _, hold := range holds {
		switch hold {
		case d.Sys.T:
		case d.Sys.F:
			contradictory = true
		default:
			constrained = append(constrained, hold)
		}
	}
	holds = constrained
	if contradictory {
		// A constant-false assumption makes every property vacuous.
		open = nil
	}

	for k := 0; k <= depth && len(open) > 0; k++ {
		for _, hold := range holds {
			m := u.At(hold, k)
			mark, _ = u.C.CnfSince(sat, mark, m)
			sat.Add(m)
			sat.Add(z.LitNull)
		}

		next := open[:0]
		for _, i := range open {
			m := u.At(probes[i], k)
			mark, _ = u.C.CnfSince(sat, mark, m)
			sat.Assume(m)
			if sat.Solve() == 1 {
				results[i].Depth = k
				if results[i].Cell.Kind == netlist.CellAssert {
					results[i].Status = Fail
				} else {
					results[i].Status = Reached
				}
				continue
			}
			next = append(next, i)
		}
		open = next
	}

	for _, i := range open {
		if results[i].Cell.Kind == netlist.CellCover {
			results[i].Status = Unreached
		} else {
			results[i].Status = Pass
		}
	}
	return results
}
