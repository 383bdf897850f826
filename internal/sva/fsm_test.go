package sva

import (
	"testing"

	"github.com/pborges/svac/internal/netlist"
)

func newTestFSM(t *testing.T) (*netlist.Design, *fsm) {
	t.Helper()
	d := netlist.New()
	clk := d.Input("clk")
	if err := d.BindClock(clk, true); err != nil {
		t.Fatal(err)
	}
	return d, newFSM(d, clk, true, d.Sys.F, d.Sys.T)
}

func TestNodeIndexStability(t *testing.T) {
	_, f := newTestFSM(t)
	if f.startNode != 0 || f.acceptNode != 1 {
		t.Fatalf("start/accept = %d/%d, want 0/1", f.startNode, f.acceptNode)
	}
	for want := 2; want < 8; want++ {
		if got := f.createNode(); got != want {
			t.Fatalf("createNode returned %d, want %d", got, want)
		}
	}
}

func TestThroughoutStackBalance(t *testing.T) {
	d, f := newTestFSM(t)
	before := f.throughout
	x := d.Input("x")
	f.pushThroughout(x)
	if f.throughout != x {
		t.Fatalf("throughout not folded to the pushed signal")
	}
	y := d.Input("y")
	f.pushThroughout(y)
	f.popThroughout()
	if f.throughout != x {
		t.Fatalf("inner pop did not restore outer throughout")
	}
	f.popThroughout()
	if f.throughout != before {
		t.Fatalf("pop did not restore prior throughout bit-identically")
	}
}

func TestDisableStackBalance(t *testing.T) {
	d, f := newTestFSM(t)
	before := f.disable
	x := d.Input("x")
	f.pushDisable(x)
	if f.disable != x {
		t.Fatalf("disable not folded to the pushed signal")
	}
	f.popDisable()
	if f.disable != before {
		t.Fatalf("pop did not restore prior disable")
	}
}

func TestEmptyPopPanics(t *testing.T) {
	_, f := newTestFSM(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	f.popThroughout()
}

func TestThroughoutFoldedIntoEdges(t *testing.T) {
	d, f := newTestFSM(t)
	c := d.Input("c")
	e := d.Input("e")
	n := f.createNode()
	f.pushThroughout(c)
	f.createEdge(f.startNode, n, e)
	f.createLink(f.startNode, n, d.Sys.T)
	f.popThroughout()
	if want := d.And(c, e); f.nodes[f.startNode].edges[0].ctrl != want {
		t.Fatalf("edge ctrl not ANDed with throughout")
	}
	if f.nodes[f.startNode].links[0].ctrl != c {
		t.Fatalf("true link ctrl should fold to the throughout signal itself")
	}
}

func TestMaterializationForbidsMutation(t *testing.T) {
	d, f := newTestFSM(t)
	a := d.Input("a")
	n := f.createNode()
	f.createLink(f.startNode, n, a)
	f.createLink(n, f.acceptNode, d.Sys.T)
	f.getAccept()

	mutations := []func(){
		func() { f.createNode() },
		func() { f.createEdge(0, 1, d.Sys.T) },
		func() { f.createLink(0, 1, d.Sys.T) },
		func() { f.pushThroughout(a) },
		func() { f.getAccept() },
	}
	for i, fn := range mutations {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("mutation %d after materialization did not panic", i)
				}
			}()
			fn()
		}()
	}
}

func TestEdgeIndexOutOfRangePanics(t *testing.T) {
	_, f := newTestFSM(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	f.createEdge(0, 99, f.design.Sys.T)
}

func TestLinkOrderChain(t *testing.T) {
	d, f := newTestFSM(t)
	n2 := f.createNode()
	n3 := f.createNode()
	f.createLink(f.startNode, n2, d.Sys.T)
	f.createLink(n2, n3, d.Sys.T)
	f.createLink(n3, f.acceptNode, d.Sys.T)

	order := make([]int, len(f.nodes))
	for i := range f.nodes {
		f.makeLinkOrder(order, i, 0)
	}
	if !(order[f.startNode] < order[n2] && order[n2] < order[n3] && order[n3] < order[f.acceptNode]) {
		t.Fatalf("link order not increasing along chain: %v", order)
	}
}

func TestLinkCyclePanics(t *testing.T) {
	_, f := newTestFSM(t)
	n2 := f.createNode()
	n3 := f.createNode()
	f.createLink(n2, n3, f.design.Sys.T)
	f.createLink(n3, n2, f.design.Sys.T)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected link cycle panic")
		}
	}()
	order := make([]int, len(f.nodes))
	f.makeLinkOrder(order, n2, 0)
}

// A one-edge FSM: start -edge(a)-> n -link-> accept. The accept signal rises
// the cycle after a is sampled high.
func TestGetAcceptDelayedByEdge(t *testing.T) {
	d, f := newTestFSM(t)
	a := d.Input("a")
	n := f.createNode()
	f.createEdge(f.startNode, n, a)
	f.createLink(n, f.acceptNode, d.Sys.T)
	accept := f.getAccept()

	sim := netlist.NewSim(d)
	sim.Step(map[string]bool{"a": true})
	if sim.Value(accept) {
		t.Fatalf("accept high in the same cycle as the consuming edge")
	}
	sim.Step(nil)
	if !sim.Value(accept) {
		t.Fatalf("accept low the cycle after the edge fired")
	}
	sim.Step(nil)
	if sim.Value(accept) {
		t.Fatalf("accept stuck high without a new edge")
	}
}

// Links propagate within the same cycle.
func TestGetAcceptSameCycleLink(t *testing.T) {
	d, f := newTestFSM(t)
	a := d.Input("a")
	n := f.createNode()
	f.createLink(f.startNode, n, a)
	f.createLink(n, f.acceptNode, d.Sys.T)
	accept := f.getAccept()

	sim := netlist.NewSim(d)
	sim.Step(map[string]bool{"a": true})
	if !sim.Value(accept) {
		t.Fatalf("link chain did not propagate within the cycle")
	}
	sim.Step(map[string]bool{"a": false})
	if sim.Value(accept) {
		t.Fatalf("accept held without state")
	}
}

// Disable forces all state low in the same cycle.
func TestGetAcceptDisable(t *testing.T) {
	d := netlist.New()
	clk := d.Input("clk")
	if err := d.BindClock(clk, true); err != nil {
		t.Fatal(err)
	}
	dis := d.Input("dis")
	a := d.Input("a")
	f := newFSM(d, clk, true, dis, d.Sys.T)
	n := f.createNode()
	f.createEdge(f.startNode, n, a)
	f.createLink(n, f.acceptNode, d.Sys.T)
	accept := f.getAccept()

	sim := netlist.NewSim(d)
	sim.Step(map[string]bool{"a": true})
	sim.Step(map[string]bool{"dis": true})
	if sim.Value(accept) {
		t.Fatalf("disable did not mask the accept state in the same cycle")
	}
}
