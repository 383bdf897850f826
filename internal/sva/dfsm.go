package sva

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-air/gini/z"
)

// maxCtrlBits caps the width of a DFSM state's control vector. Determinizing
// enumerates 2^|ctrl| control values per state; refusing wide vectors keeps
// the construction from silently exploding.
const maxCtrlBits = 10

// uNode is an NFSM node after link resolution: links have been folded into
// control-vector prefixes on edges and accept witnesses. Control vectors are
// sorted, deduplicated conjunctions of single-bit literals.
type uNode struct {
	edges     []uEdge
	accept    [][]z.Lit
	reachable bool
}

type uEdge struct {
	to   int
	ctrl []z.Lit
}

// dNode is a deterministic FSM state: a sorted set of u-node indices.
type dNode struct {
	ctrl   []z.Lit
	edges  []dEdge
	accept []uint32
	reject []uint32

	// lowering scratch
	reg      z.Lit
	stateSig z.Lit
	next     []z.Lit
}

type dEdge struct {
	to  []int
	val uint32
}

func stateKey(state []int) string {
	var b strings.Builder
	for i, n := range state {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// ctrlAppend returns the sorted, deduplicated union of ctrl and m. The input
// slice is not modified; prefixes are shared across the recursion in
// nodeToUnode.
func ctrlAppend(ctrl []z.Lit, m z.Lit) []z.Lit {
	for _, b := range ctrl {
		if b == m {
			return ctrl
		}
	}
	out := make([]z.Lit, 0, len(ctrl)+1)
	out = append(out, ctrl...)
	out = append(out, m)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortUniqueInts(vec []int) []int {
	sort.Ints(vec)
	out := vec[:0]
	for i, v := range vec {
		if i == 0 || vec[i-1] != v {
			out = append(out, v)
		}
	}
	return out
}

// nodeToUnode flattens the link closure of node into unode, accumulating
// link controls into the ctrl prefix. Edges are recorded under the prefix;
// reaching the accept node records the prefix as an accept witness.
func (f *fsm) nodeToUnode(node, unode int, ctrl []z.Lit) {
	if node == f.acceptNode {
		f.unodes[unode].accept = append(f.unodes[unode].accept, ctrl)
	}
	for _, e := range f.nodes[node].edges {
		ec := ctrl
		if e.ctrl != f.design.Sys.T {
			ec = ctrlAppend(ctrl, e.ctrl)
		}
		f.unodes[unode].edges = append(f.unodes[unode].edges, uEdge{to: e.to, ctrl: ec})
	}
	for _, l := range f.nodes[node].links {
		lc := ctrl
		if l.ctrl != f.design.Sys.T {
			lc = ctrlAppend(ctrl, l.ctrl)
		}
		f.nodeToUnode(l.to, unode, lc)
	}
}

func (f *fsm) markReachableUnode(unode int) {
	if f.unodes[unode].reachable {
		return
	}
	f.unodes[unode].reachable = true
	for _, e := range f.unodes[unode].edges {
		f.markReachableUnode(e.to)
	}
}

// ctrlSatisfied reports whether every bit of ctrl is in the true set.
func ctrlSatisfied(trueBits map[z.Lit]bool, ctrl []z.Lit) bool {
	for _, b := range ctrl {
		if !trueBits[b] {
			return false
		}
	}
	return true
}

// createDnode subset-constructs the DFSM state for the given canonical
// (sorted, deduplicated) u-node set, recursing into its successors. With
// firstMatch set, accepting control values do not evolve further.
func (f *fsm) createDnode(state []int, firstMatch bool) error {
	key := stateKey(state)
	if _, ok := f.dnodes[key]; ok {
		return nil
	}
	dn := &dNode{}
	f.dnodes[key] = dn
	f.dnodeOrder = append(f.dnodeOrder, key)

	for _, un := range state {
		if !f.unodes[un].reachable {
			panic("sva: unreachable u-node in DFSM state")
		}
		for _, e := range f.unodes[un].edges {
			for _, b := range e.ctrl {
				dn.ctrl = ctrlAppend(dn.ctrl, b)
			}
		}
		for _, acc := range f.unodes[un].accept {
			for _, b := range acc {
				dn.ctrl = ctrlAppend(dn.ctrl, b)
			}
		}
	}

	if len(dn.ctrl) > maxCtrlBits {
		return fmt.Errorf("property DFSM state control signal has %d bits (max %d); stopping to prevent exponential design size explosion",
			len(dn.ctrl), maxCtrlBits)
	}

	for val := uint32(0); val < 1<<uint(len(dn.ctrl)); val++ {
		trueBits := make(map[z.Lit]bool, len(dn.ctrl))
		for i, b := range dn.ctrl {
			if val>>uint(i)&1 == 1 {
				trueBits[b] = true
			}
		}

		accept := false
		for _, un := range state {
			for _, acc := range f.unodes[un].accept {
				if ctrlSatisfied(trueBits, acc) {
					accept = true
				}
			}
		}

		var newState []int
		if !accept || !firstMatch {
			for _, un := range state {
				for _, e := range f.unodes[un].edges {
					if ctrlSatisfied(trueBits, e.ctrl) {
						newState = append(newState, e.to)
					}
				}
			}
		}

		if accept {
			dn.accept = append(dn.accept, val)
		}

		if len(newState) == 0 {
			if !accept {
				dn.reject = append(dn.reject, val)
			}
			continue
		}
		newState = sortUniqueInts(newState)
		dn.edges = append(dn.edges, dEdge{to: newState, val: val})
		if err := f.createDnode(newState, firstMatch); err != nil {
			return err
		}
	}
	return nil
}

// getReject lowers the FSM through the determinized path and returns a
// signal that is high in exactly the cycles in which a sequence started by
// trigger can no longer match.
func (f *fsm) getReject() (z.Lit, error) {
	reject, _, err := f.lowerReject(false)
	return reject, err
}

// getRejectAccept is getReject with an additional accept signal derived from
// the DFSM accept witnesses.
func (f *fsm) getRejectAccept() (reject, accept z.Lit, err error) {
	return f.lowerReject(true)
}

func (f *fsm) lowerReject(wantAccept bool) (z.Lit, z.Lit, error) {
	f.mustMutate()
	f.materialized = true

	d := f.design

	// Resolve links into the unlinked NFSM.
	f.unodes = make([]uNode, len(f.nodes))
	for node := range f.nodes {
		f.nodeToUnode(node, node, nil)
	}
	f.markReachableUnode(f.startNode)

	// Subset construction, first-match.
	f.dnodes = make(map[string]*dNode)
	if err := f.createDnode([]int{f.startNode}, true); err != nil {
		return d.Sys.F, d.Sys.F, err
	}

	// State registers. Disable forces every state low in the same cycle, so
	// it masks both held state and same-cycle accept/reject outcomes.
	startKey := stateKey([]int{f.startNode})
	notDisable := f.disable.Not()
	for _, key := range f.dnodeOrder {
		dn := f.dnodes[key]
		dn.reg = d.FF(d.Sys.F)
		sig := dn.reg
		if key == startKey {
			sig = d.Or(sig, f.trigger)
		}
		dn.stateSig = d.And(sig, notDisable)
	}

	var acceptSigs, rejectSigs []z.Lit
	for _, key := range f.dnodeOrder {
		dn := f.dnodes[key]
		for _, e := range dn.edges {
			trig := d.EqConst(dn.ctrl, e.val, dn.stateSig)
			succ := f.dnodes[stateKey(e.to)]
			succ.next = append(succ.next, trig)
		}
		if wantAccept {
			for _, val := range dn.accept {
				acceptSigs = append(acceptSigs, d.EqConst(dn.ctrl, val, dn.stateSig))
			}
		}
		for _, val := range dn.reject {
			rejectSigs = append(rejectSigs, d.EqConst(dn.ctrl, val, dn.stateSig))
		}
	}

	// Register drivers; a state with no predecessors is tied to zero.
	for _, key := range f.dnodeOrder {
		dn := f.dnodes[key]
		d.SetNext(dn.reg, d.Ors(dn.next...))
	}

	return d.Ors(rejectSigs...), d.Ors(acceptSigs...), nil
}
