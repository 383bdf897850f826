package sva

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-air/gini/z"
)

// dump writes the structural encodings of the FSM (non-deterministic,
// unlinked and deterministic, as far as each has been built) for verbose
// diagnostics.
func (f *fsm) dump(w io.Writer) {
	if len(f.nodes) > 0 {
		fmt.Fprintf(w, "      non-deterministic encoding:\n")
		for i, node := range f.nodes {
			fmt.Fprintf(w, "        node %d:%s\n", i, f.nodeMark(i))
			for _, e := range node.edges {
				fmt.Fprintf(w, "          edge %s -> %d\n", f.design.SignalName(e.ctrl), e.to)
			}
			for _, l := range node.links {
				fmt.Fprintf(w, "          link %s -> %d\n", f.design.SignalName(l.ctrl), l.to)
			}
		}
	}

	if len(f.unodes) > 0 {
		fmt.Fprintf(w, "      unlinked non-deterministic encoding:\n")
		for i, un := range f.unodes {
			if !un.reachable {
				continue
			}
			fmt.Fprintf(w, "        unode %d:%s\n", i, f.nodeMark(i))
			for _, e := range un.edges {
				fmt.Fprintf(w, "          edge %s -> %d\n", f.ctrlName(e.ctrl), e.to)
			}
			for _, acc := range un.accept {
				fmt.Fprintf(w, "          accept %s\n", f.ctrlName(acc))
			}
		}
	}

	if len(f.dnodes) > 0 {
		fmt.Fprintf(w, "      deterministic encoding:\n")
		for _, key := range f.dnodeOrder {
			dn := f.dnodes[key]
			mark := ""
			if key == stateKey([]int{f.startNode}) {
				mark = " [start]"
			}
			fmt.Fprintf(w, "        dnode {%s}:%s\n", key, mark)
			fmt.Fprintf(w, "          ctrl %s\n", f.ctrlName(dn.ctrl))
			for _, e := range dn.edges {
				fmt.Fprintf(w, "          edge %0*b -> {%s}\n", len(dn.ctrl), e.val, stateKey(e.to))
			}
			for _, val := range dn.accept {
				fmt.Fprintf(w, "          accept %0*b\n", len(dn.ctrl), val)
			}
			for _, val := range dn.reject {
				fmt.Fprintf(w, "          reject %0*b\n", len(dn.ctrl), val)
			}
		}
	}
}

func (f *fsm) nodeMark(i int) string {
	switch i {
	case f.startNode:
		return " [start]"
	case f.acceptNode:
		return " [accept]"
	}
	return ""
}

func (f *fsm) ctrlName(ctrl []z.Lit) string {
	if len(ctrl) == 0 {
		return "{}"
	}
	names := make([]string, len(ctrl))
	for i, b := range ctrl {
		names[i] = f.design.SignalName(b)
	}
	return "{" + strings.Join(names, ",") + "}"
}
