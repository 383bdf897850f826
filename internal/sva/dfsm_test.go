package sva

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-air/gini/z"

	"github.com/pborges/svac/internal/netlist"
)

// buildDelayWindowFSM builds the FSM of the sequence ##[1:3] b with a
// trigger input: the shape the property driver builds for the consequent of
// a |-> ##[1:3] b.
func buildDelayWindowFSM(t *testing.T) (*netlist.Design, *fsm, z.Lit) {
	t.Helper()
	d := netlist.New()
	clk := d.Input("clk")
	if err := d.BindClock(clk, true); err != nil {
		t.Fatal(err)
	}
	trig := d.Input("trig")
	b := d.Input("b")
	tt := d.Sys.T

	f := newFSM(d, clk, true, d.Sys.F, trig)
	n2 := f.createNode()
	f.createLink(f.startNode, n2, tt)
	n3 := f.createNode()
	f.createEdge(n2, n3, tt)
	node := n3
	for i := 1; i < 3; i++ {
		next := f.createNode()
		f.createEdge(node, next, tt)
		f.createLink(node, next, tt)
		node = next
	}
	end := f.createNode()
	f.createLink(node, end, b)
	f.createLink(end, f.acceptNode, tt)
	return d, f, b
}

func TestRejectTiming(t *testing.T) {
	d, f, _ := buildDelayWindowFSM(t)
	reject, err := f.getReject()
	if err != nil {
		t.Fatal(err)
	}

	// b never arrives: reject three cycles after the trigger.
	sim := netlist.NewSim(d)
	sim.Step(map[string]bool{"trig": true})
	for i := 0; i < 2; i++ {
		sim.Step(nil)
		if sim.Value(reject) {
			t.Fatalf("reject fired %d cycles after trigger, window is 3", i+1)
		}
	}
	sim.Step(nil)
	if !sim.Value(reject) {
		t.Fatalf("reject did not fire at the end of the window")
	}

	// b within the window: no reject, first match stops tracking.
	sim = netlist.NewSim(d)
	sim.Step(map[string]bool{"trig": true})
	sim.Step(nil)
	sim.Step(map[string]bool{"b": true})
	sim.Step(nil)
	for i := 0; i < 4; i++ {
		if sim.Value(reject) {
			t.Fatalf("reject fired although b arrived within the window")
		}
		sim.Step(nil)
	}
}

func TestDnodeCanonicalization(t *testing.T) {
	_, f, _ := buildDelayWindowFSM(t)
	if _, err := f.getReject(); err != nil {
		t.Fatal(err)
	}
	for key, dn := range f.dnodes {
		for _, e := range dn.edges {
			for i := 1; i < len(e.to); i++ {
				if e.to[i-1] >= e.to[i] {
					t.Fatalf("dnode %s: edge target %v not sorted and unique", key, e.to)
				}
			}
		}
		for i := 1; i < len(dn.ctrl); i++ {
			if dn.ctrl[i-1] >= dn.ctrl[i] {
				t.Fatalf("dnode %s: ctrl vector not sorted and unique", key)
			}
		}
	}
}

func TestDnodePartition(t *testing.T) {
	_, f, _ := buildDelayWindowFSM(t)
	if _, err := f.getReject(); err != nil {
		t.Fatal(err)
	}
	for key, dn := range f.dnodes {
		seen := make(map[uint32]string)
		record := func(val uint32, role string) {
			if prev, ok := seen[val]; ok {
				t.Fatalf("dnode %s: value %b is both %s and %s", key, val, prev, role)
			}
			seen[val] = role
		}
		for _, e := range dn.edges {
			record(e.val, "edge")
		}
		for _, v := range dn.accept {
			record(v, "accept")
		}
		for _, v := range dn.reject {
			record(v, "reject")
		}
		if got, want := len(seen), 1<<uint(len(dn.ctrl)); got != want {
			t.Fatalf("dnode %s: %d of %d control values classified", key, got, want)
		}
	}
}

func TestDnodeReachability(t *testing.T) {
	_, f, _ := buildDelayWindowFSM(t)
	if _, err := f.getReject(); err != nil {
		t.Fatal(err)
	}
	startKey := stateKey([]int{f.startNode})
	targets := map[string]bool{startKey: true}
	for _, dn := range f.dnodes {
		for _, e := range dn.edges {
			targets[stateKey(e.to)] = true
		}
	}
	for _, key := range f.dnodeOrder {
		if !targets[key] {
			t.Fatalf("dnode %s is not reachable from the start state", key)
		}
	}
}

// With one control bit, both enumerated values must be classified.
func TestSingleCtrlBitEnumeration(t *testing.T) {
	d := netlist.New()
	clk := d.Input("clk")
	if err := d.BindClock(clk, true); err != nil {
		t.Fatal(err)
	}
	b := d.Input("b")
	f := newFSM(d, clk, true, d.Sys.F, d.Sys.T)
	n := f.createNode()
	f.createLink(f.startNode, n, b)
	f.createLink(n, f.acceptNode, d.Sys.T)
	if _, err := f.getReject(); err != nil {
		t.Fatal(err)
	}

	dn := f.dnodes[stateKey([]int{f.startNode})]
	if len(dn.ctrl) != 1 {
		t.Fatalf("expected a single control bit, got %d", len(dn.ctrl))
	}
	if len(dn.accept) != 1 || dn.accept[0] != 1 {
		t.Fatalf("accept values = %v, want [1]", dn.accept)
	}
	if len(dn.reject) != 1 || dn.reject[0] != 0 {
		t.Fatalf("reject values = %v, want [0]", dn.reject)
	}
}

func TestCtrlWidthGuard(t *testing.T) {
	d := netlist.New()
	clk := d.Input("clk")
	if err := d.BindClock(clk, true); err != nil {
		t.Fatal(err)
	}
	f := newFSM(d, clk, true, d.Sys.F, d.Sys.T)
	for i := 0; i < maxCtrlBits+1; i++ {
		n := f.createNode()
		f.createEdge(f.startNode, n, d.Input(fmt.Sprintf("c%d", i)))
	}
	_, err := f.getReject()
	if err == nil {
		t.Fatalf("expected exponential guard error")
	}
	if !strings.Contains(err.Error(), "exponential") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetRejectAccept(t *testing.T) {
	d, f, _ := buildDelayWindowFSM(t)
	_, accept, err := f.getRejectAccept()
	if err != nil {
		t.Fatal(err)
	}
	sim := netlist.NewSim(d)
	sim.Step(map[string]bool{"trig": true})
	sim.Step(map[string]bool{"b": true})
	if !sim.Value(accept) {
		t.Fatalf("DFSM accept did not fire when b matched in the window")
	}
}

func TestRejectMaterializes(t *testing.T) {
	_, f, _ := buildDelayWindowFSM(t)
	if _, err := f.getReject(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("mutation after getReject did not panic")
		}
	}()
	f.createNode()
}

func TestCtrlAppendSortedUnique(t *testing.T) {
	d := netlist.New()
	a := d.Input("a")
	b := d.Input("b")
	ctrl := ctrlAppend(nil, b)
	ctrl = ctrlAppend(ctrl, a)
	ctrl = ctrlAppend(ctrl, b)
	if len(ctrl) != 2 {
		t.Fatalf("expected 2 bits, got %d", len(ctrl))
	}
	if ctrl[0] >= ctrl[1] {
		t.Fatalf("ctrl vector not sorted")
	}
}
