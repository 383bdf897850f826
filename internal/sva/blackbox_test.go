package sva

import (
	"io/fs"
	"testing"

	"github.com/pborges/svac/examples"
	"github.com/pborges/svac/internal/bmc"
	"github.com/pborges/svac/internal/netlist"
)

// Compile every embedded example and push the result through a shallow
// bounded model check to make sure the emitted netlists are well formed.
func TestBlackboxExamples(t *testing.T) {
	files, err := fs.Glob(examples.FS, "*.sva")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no example files found in examples FS")
	}

	for _, path := range files {
		t.Run(path, func(t *testing.T) {
			src, err := examples.FS.ReadFile(path)
			if err != nil {
				t.Fatalf("read %s: %v", path, err)
			}
			d := netlist.New()
			unit, err := Parse(path, src, d)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if err := Compile(d, unit, Options{}); err != nil {
				t.Fatalf("compile: %v", err)
			}
			if len(d.Cells()) == 0 {
				t.Fatalf("no cells emitted")
			}
			for _, r := range bmc.Check(d, 4) {
				if r.Status == bmc.Fail && r.Depth < 0 {
					t.Errorf("inconsistent result for %s", r.Cell.Name)
				}
			}
			if aig := d.Aiger(); len(aig.Inputs) == 0 {
				t.Errorf("AIGER export lost the inputs")
			}
		})
	}
}
