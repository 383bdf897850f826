// Package netlist wraps a gini sequential AIG with the bookkeeping a
// property compiler needs: named inputs, a single clock domain, flip-flops
// and verification cells.
package netlist

import (
	"fmt"
	"strconv"

	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

// CellKind identifies a verification cell.
type CellKind int

const (
	CellAssert CellKind = iota
	CellAssume
	CellCover
	CellLive
	CellFair
)

func (k CellKind) String() string {
	switch k {
	case CellAssert:
		return "assert"
	case CellAssume:
		return "assume"
	case CellCover:
		return "cover"
	case CellLive:
		return "live"
	case CellFair:
		return "fair"
	}
	return "cell?"
}

// Cell is an emitted verification cell. Sig is the checked signal (high =
// property ok for assert/assume, high = match for cover), En gates when the
// check applies.
type Cell struct {
	Kind CellKind
	Name string
	Sig  z.Lit
	En   z.Lit
	Attr map[string]string
}

// Design is a netlist under construction. All signals are z.Lit literals of
// the underlying logic.S; state elements advance once per cycle of the bound
// clock.
type Design struct {
	Sys *logic.S

	inputs  []string
	byName  map[string]z.Lit
	litName map[z.Var]string

	clock      z.Lit
	clockpol   bool
	clockBound bool

	cells   []Cell
	used    map[string]bool
	autoN   int
	zeroReg z.Lit
}

func New() *Design {
	return &Design{
		Sys:     logic.NewS(),
		byName:  make(map[string]z.Lit),
		litName: make(map[z.Var]string),
		used:    make(map[string]bool),
	}
}

// Input returns the input literal named name, creating it on first use.
func (d *Design) Input(name string) z.Lit {
	if m, ok := d.byName[name]; ok {
		return m
	}
	m := d.Sys.Lit()
	d.byName[name] = m
	d.litName[m.Var()] = name
	d.inputs = append(d.inputs, name)
	d.used[name] = true
	return m
}

// Lookup resolves an input by name without creating it.
func (d *Design) Lookup(name string) (z.Lit, bool) {
	m, ok := d.byName[name]
	return m, ok
}

// Inputs returns the input names in creation order.
func (d *Design) Inputs() []string {
	return d.inputs
}

// BindClock fixes the clock domain of the design. The AIG model is sampled
// at this clock; a second binding with a different clock or polarity is an
// error.
func (d *Design) BindClock(clk z.Lit, posedge bool) error {
	if d.clockBound {
		if clk != d.clock || posedge != d.clockpol {
			return fmt.Errorf("conflicting clock domains: design is clocked by %s %s",
				edgeName(d.clockpol), d.SignalName(d.clock))
		}
		return nil
	}
	d.clock = clk
	d.clockpol = posedge
	d.clockBound = true
	return nil
}

func edgeName(posedge bool) string {
	if posedge {
		return "posedge"
	}
	return "negedge"
}

// FF creates a flip-flop with the given initial value literal (Sys.F or
// Sys.T) and returns its output. The next-state input is connected later via
// SetNext; an FF whose next is never set is tied to zero by the caller.
func (d *Design) FF(init z.Lit) z.Lit {
	if !d.clockBound {
		panic("netlist: flip-flop created before clock binding")
	}
	return d.Sys.Latch(init)
}

// SetNext connects the next-state input of an FF created with FF. Constant
// nexts are rewritten to equivalent register feedback: the unroller treats
// the constant node like an input, so a literal T or F next would not unroll
// cleanly.
func (d *Design) SetNext(q, next z.Lit) {
	switch next {
	case d.Sys.F:
		if d.Sys.Init(q) == d.Sys.F {
			next = q
		} else {
			next = d.zero()
		}
	case d.Sys.T:
		if d.Sys.Init(q) == d.Sys.T {
			next = q
		} else {
			next = d.zero().Not()
		}
	}
	d.Sys.SetNext(q, next)
}

// zero returns a register that is low in every cycle.
func (d *Design) zero() z.Lit {
	if d.zeroReg != z.LitNull {
		return d.zeroReg
	}
	q := d.Sys.Latch(d.Sys.F)
	d.Sys.SetNext(q, q)
	d.zeroReg = q
	return q
}

// TiedLow reports whether register m holds zero in every cycle.
func (d *Design) TiedLow(m z.Lit) bool {
	return d.Sys.Init(m) == d.Sys.F && d.Sys.Next(m) == m
}

func (d *Design) And(a, b z.Lit) z.Lit { return d.Sys.And(a, b) }

func (d *Design) Or(a, b z.Lit) z.Lit { return d.Sys.Or(a, b) }

func (d *Design) Ors(ms ...z.Lit) z.Lit { return d.Sys.Ors(ms...) }

// Eq returns a literal that is high iff a and b carry the same value.
func (d *Design) Eq(a, b z.Lit) z.Lit {
	return d.Sys.Xor(a, b).Not()
}

// EqConst compares the bits of ctrl against the bit pattern val, ANDed with
// state. Bit i of val gives the required polarity of ctrl[i].
func (d *Design) EqConst(ctrl []z.Lit, val uint32, state z.Lit) z.Lit {
	conj := state
	for i, b := range ctrl {
		if val>>uint(i)&1 == 1 {
			conj = d.Sys.And(conj, b)
		} else {
			conj = d.Sys.And(conj, b.Not())
		}
	}
	return conj
}

// SignalName renders m for diagnostics: input names where known, otherwise
// the variable index, with a ! prefix on negated literals.
func (d *Design) SignalName(m z.Lit) string {
	if m == d.Sys.T {
		return "1'1"
	}
	if m == d.Sys.F {
		return "1'0"
	}
	name, ok := d.litName[m.Var()]
	if !ok {
		name = "$" + strconv.Itoa(int(m.Var()))
	}
	if !m.IsPos() {
		return "!" + name
	}
	return name
}

// UniqueName returns base, or base with a numeric suffix if base was already
// taken, and reserves the result.
func (d *Design) UniqueName(base string) string {
	name := base
	for i := 1; d.used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	d.used[name] = true
	return name
}

// AutoName returns a fresh anonymous cell name.
func (d *Design) AutoName() string {
	d.autoN++
	return fmt.Sprintf("$sva$%d", d.autoN)
}

// AddCell records a verification cell.
func (d *Design) AddCell(kind CellKind, name string, sig, en z.Lit, attr map[string]string) {
	d.cells = append(d.cells, Cell{Kind: kind, Name: name, Sig: sig, En: en, Attr: attr})
}

// Cells returns the emitted verification cells in emission order.
func (d *Design) Cells() []Cell {
	return d.cells
}
