package netlist

import (
	"github.com/go-air/gini/logic/aiger"
	"github.com/go-air/gini/z"
)

// Aiger exports the design as an AIGER 1.9 object. Verification cells map
// onto AIGER sections: assert cells become bad-state literals (the cell
// fails when its signal is low while enabled), assume cells become
// environment constraints, cover cells become named outputs, live cells
// become justice properties and fair cells fairness constraints. Cell names
// go to the symbol table.
func (d *Design) Aiger() *aiger.T {
	a := aiger.MakeFor(d.Sys)
	for i, name := range d.inputs {
		a.NameInput(i, name)
	}
	for _, c := range d.cells {
		switch c.Kind {
		case CellAssert:
			bad := d.Sys.And(c.En, c.Sig.Not())
			a.Bad = append(a.Bad, bad)
			a.NameBad(len(a.Bad)-1, c.Name)
		case CellAssume:
			con := d.Sys.Or(c.En.Not(), c.Sig)
			a.Constraints = append(a.Constraints, con)
			a.NameConstraint(len(a.Constraints)-1, c.Name)
		case CellCover:
			a.SetOutput(d.Sys.And(c.En, c.Sig))
			a.NameOutput(len(a.Outputs)-1, c.Name)
		case CellLive:
			a.Justice = append(a.Justice, []z.Lit{d.Sys.And(c.En, c.Sig)})
			a.NameJustice(len(a.Justice)-1, c.Name)
		case CellFair:
			a.Fair = append(a.Fair, d.Sys.And(c.En, c.Sig))
			a.NameFair(len(a.Fair)-1, c.Name)
		}
	}
	return a
}
