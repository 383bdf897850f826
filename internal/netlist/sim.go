package netlist

import (
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

// Sim is a cycle-level simulator for a finished design. Each Step evaluates
// one clock cycle: inputs are applied, combinational logic settles, and the
// flip-flops advance. Values queried after Step refer to the cycle just
// evaluated.
type Sim struct {
	d       *Design
	vals    []bool
	isLatch []bool
	state   map[z.Var]bool
}

func NewSim(d *Design) *Sim {
	s := &Sim{
		d:       d,
		vals:    make([]bool, d.Sys.Len()),
		isLatch: make([]bool, d.Sys.Len()),
		state:   make(map[z.Var]bool),
	}
	for _, m := range d.Sys.Latches {
		s.isLatch[m.Var()] = true
		s.state[m.Var()] = d.Sys.Init(m) == d.Sys.T
	}
	return s
}

// Step evaluates one cycle with the given input values. Inputs not listed
// are held low. Unknown names panic: they indicate a broken test, not user
// input.
func (s *Sim) Step(inputs map[string]bool) {
	sys := s.d.Sys
	for name := range inputs {
		if _, ok := s.d.Lookup(name); !ok {
			panic("netlist: unknown input " + name)
		}
	}
	for i := 1; i < sys.Len(); i++ {
		m := sys.At(i)
		v := m.Var()
		switch {
		case i == 1:
			s.vals[v] = true // var 1 positive is the true literal
		case s.isLatch[v]:
			s.vals[v] = s.state[v]
		case sys.Type(m) == logic.SInput:
			name := s.d.litName[v]
			s.vals[v] = inputs[name]
		case sys.Type(m) == logic.SAnd:
			a, b := sys.Ins(m)
			s.vals[v] = s.lit(a) && s.lit(b)
		}
	}
	next := make(map[z.Var]bool, len(s.state))
	for _, m := range sys.Latches {
		next[m.Var()] = s.lit(sys.Next(m))
	}
	s.state = next
}

func (s *Sim) lit(m z.Lit) bool {
	if m.IsPos() {
		return s.vals[m.Var()]
	}
	return !s.vals[m.Var()]
}

// Value returns the value of m in the last evaluated cycle.
func (s *Sim) Value(m z.Lit) bool {
	return s.lit(m)
}
