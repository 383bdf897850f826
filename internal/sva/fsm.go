package sva

import (
	"github.com/go-air/gini/z"

	"github.com/pborges/svac/internal/netlist"
)

// fsm is the non-deterministic FSM a sequence compiles into. Edges activate
// their target on the next clock cycle, links activate it within the same
// cycle. Node 0 is the start node, node 1 the accept node.
//
// trigger is injected into the start node every cycle, disable forces all
// state low, throughout is ANDed into every edge and link created while in
// force. Once a lowering (getAccept or getReject) has run the FSM is
// materialized and no structural mutation is allowed.
type fsm struct {
	design   *netlist.Design
	clock    z.Lit
	clockpol bool

	trigger    z.Lit
	disable    z.Lit
	throughout z.Lit

	disableStack    []z.Lit
	throughoutStack []z.Lit

	materialized bool

	startNode, acceptNode int
	nodes                 []fsmNode

	// populated by the reject lowering
	unodes     []uNode
	dnodes     map[string]*dNode
	dnodeOrder []string
}

type fsmEdge struct {
	to   int
	ctrl z.Lit
}

type fsmNode struct {
	edges, links []fsmEdge
}

func newFSM(d *netlist.Design, clock z.Lit, clockpol bool, disable, trigger z.Lit) *fsm {
	f := &fsm{
		design:     d,
		clock:      clock,
		clockpol:   clockpol,
		trigger:    trigger,
		disable:    disable,
		throughout: d.Sys.T,
	}
	f.startNode = f.createNode()
	f.acceptNode = f.createNode()
	return f
}

func (f *fsm) pushDisable(sig z.Lit) {
	f.mustMutate()
	f.disableStack = append(f.disableStack, f.disable)
	f.disable = f.design.Or(f.disable, sig)
}

func (f *fsm) popDisable() {
	f.mustMutate()
	if len(f.disableStack) == 0 {
		panic("sva: pop of empty disable stack")
	}
	f.disable = f.disableStack[len(f.disableStack)-1]
	f.disableStack = f.disableStack[:len(f.disableStack)-1]
}

func (f *fsm) pushThroughout(sig z.Lit) {
	f.mustMutate()
	f.throughoutStack = append(f.throughoutStack, f.throughout)
	f.throughout = f.design.And(f.throughout, sig)
}

func (f *fsm) popThroughout() {
	f.mustMutate()
	if len(f.throughoutStack) == 0 {
		panic("sva: pop of empty throughout stack")
	}
	f.throughout = f.throughoutStack[len(f.throughoutStack)-1]
	f.throughoutStack = f.throughoutStack[:len(f.throughoutStack)-1]
}

func (f *fsm) createNode() int {
	f.mustMutate()
	f.nodes = append(f.nodes, fsmNode{})
	return len(f.nodes) - 1
}

func (f *fsm) createEdge(from, to int, ctrl z.Lit) {
	f.mustMutate()
	f.checkNode(from)
	f.checkNode(to)
	ctrl = f.design.And(f.throughout, ctrl)
	f.nodes[from].edges = append(f.nodes[from].edges, fsmEdge{to: to, ctrl: ctrl})
}

func (f *fsm) createLink(from, to int, ctrl z.Lit) {
	f.mustMutate()
	f.checkNode(from)
	f.checkNode(to)
	ctrl = f.design.And(f.throughout, ctrl)
	f.nodes[from].links = append(f.nodes[from].links, fsmEdge{to: to, ctrl: ctrl})
}

func (f *fsm) mustMutate() {
	if f.materialized {
		panic("sva: FSM mutated after materialization")
	}
}

func (f *fsm) checkNode(n int) {
	if n < 0 || n >= len(f.nodes) {
		panic("sva: FSM node index out of range")
	}
}

// makeLinkOrder assigns each node the length of the longest link chain
// leading to it, so link activations can be propagated in a single pass.
// The sequence compiler never closes a link cycle; hitting one here is a
// compiler bug.
func (f *fsm) makeLinkOrder(order []int, node, min int) {
	if min > len(f.nodes) {
		panic("sva: link cycle in FSM")
	}
	if order[node] < min {
		order[node] = min
	}
	for _, l := range f.nodes[node].links {
		f.makeLinkOrder(order, l.to, order[node]+1)
	}
}

// getAccept lowers the NFSM and returns a signal that is high in exactly the
// cycles in which the accept node is active.
func (f *fsm) getAccept() z.Lit {
	f.mustMutate()
	f.materialized = true

	d := f.design
	n := len(f.nodes)
	regs := make([]z.Lit, n)
	stateSig := make([]z.Lit, n)
	notDisable := f.disable.Not()

	for i := 0; i < n; i++ {
		regs[i] = d.FF(d.Sys.F)
		sig := regs[i]
		if i == f.startNode {
			sig = d.Or(sig, f.trigger)
		}
		stateSig[i] = d.And(sig, notDisable)
	}

	// Propagate link activations within the cycle. Nodes are visited in
	// link order so a chain of any length converges in one pass.
	order := make([]int, n)
	for i := 0; i < n; i++ {
		f.makeLinkOrder(order, i, 0)
	}
	var orderToNodes [][]int
	for i := 0; i < n; i++ {
		for order[i] >= len(orderToNodes) {
			orderToNodes = append(orderToNodes, nil)
		}
		orderToNodes[order[i]] = append(orderToNodes[order[i]], i)
	}
	for _, level := range orderToNodes {
		for _, node := range level {
			for _, l := range f.nodes[node].links {
				stateSig[l.to] = d.Or(stateSig[l.to], d.And(stateSig[node], l.ctrl))
			}
		}
	}

	// Edge activations feed the next-state registers.
	activate := make([][]z.Lit, n)
	for i := 0; i < n; i++ {
		for _, e := range f.nodes[i].edges {
			activate[e.to] = append(activate[e.to], d.And(stateSig[i], e.ctrl))
		}
	}
	for i := 0; i < n; i++ {
		d.SetNext(regs[i], d.Ors(activate[i]...))
	}

	return stateSig[f.acceptNode]
}
