package bmc

import (
	"testing"

	"github.com/pborges/svac/internal/netlist"
	"github.com/pborges/svac/internal/sva"
)

func compileSrc(t *testing.T, src string) *netlist.Design {
	t.Helper()
	d := netlist.New()
	unit, err := sva.Parse("test.sva", []byte(src), d)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := sva.Compile(d, unit, sva.Options{}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	return d
}

func resultFor(t *testing.T, results []Result, name string) Result {
	t.Helper()
	for _, r := range results {
		if r.Cell.Name == name {
			return r
		}
	}
	t.Fatalf("no result for cell %q", name)
	return Result{}
}

func TestAssertFailure(t *testing.T) {
	d := compileSrc(t, `
		input clk, b;
		p: assert property (@(posedge clk) 1 |=> b);
	`)
	r := resultFor(t, Check(d, 8), "p")
	if r.Status != Fail {
		t.Fatalf("status = %v, want FAIL", r.Status)
	}
	// antecedent matches from cycle 1 on, the violation registers one
	// cycle after the first missing b
	if r.Depth != 2 {
		t.Fatalf("counterexample depth = %d, want 2", r.Depth)
	}
}

func TestAssertPassTrivial(t *testing.T) {
	d := compileSrc(t, `
		input clk, a;
		p: assert property (@(posedge clk) a |-> a);
	`)
	r := resultFor(t, Check(d, 8), "p")
	if r.Status != Pass {
		t.Fatalf("status = %v, want PASS", r.Status)
	}
}

func TestAssumeDischargesAssert(t *testing.T) {
	d := compileSrc(t, `
		input clk, b;
		env: assume property (@(posedge clk) b);
		p: assert property (@(posedge clk) 1 |=> b);
	`)
	r := resultFor(t, Check(d, 8), "p")
	if r.Status != Pass {
		t.Fatalf("status = %v, want PASS under the assumption", r.Status)
	}
}

func TestCoverReached(t *testing.T) {
	d := compileSrc(t, `
		input clk, a, b;
		c: cover property (@(posedge clk) a ##1 b);
	`)
	r := resultFor(t, Check(d, 8), "c")
	if r.Status != Reached {
		t.Fatalf("status = %v, want REACHED", r.Status)
	}
	// match earliest at cycle 1, registered at cycle 2
	if r.Depth != 2 {
		t.Fatalf("witness depth = %d, want 2", r.Depth)
	}
}

func TestCoverUnreachable(t *testing.T) {
	d := compileSrc(t, `
		input clk, a;
		c: cover property (@(posedge clk) a && !a);
	`)
	r := resultFor(t, Check(d, 6), "c")
	if r.Status != Unreached {
		t.Fatalf("status = %v, want UNREACHED", r.Status)
	}
}
