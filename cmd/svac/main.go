package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pborges/svac/internal/bmc"
	"github.com/pborges/svac/internal/netlist"
	"github.com/pborges/svac/internal/sva"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		if err := cmdBuild(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "check":
		ok, err := cmdCheck(os.Args[2:])
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		if !ok {
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("svac - SystemVerilog assertion compiler")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  svac build [flags] <file.sva>    compile properties to an AIGER netlist")
	fmt.Println("  svac check [flags] <file.sva>    compile and bounded-model-check")
	fmt.Println("  svac version")
	fmt.Println()
	fmt.Println("Build flags:")
	fmt.Println("  -o <file.aag>   output file (default: input with .aag extension)")
	fmt.Println("  -keep           warn instead of failing on unsupported primitives")
	fmt.Println("  -names          name cells after their root name even when not user-declared")
	fmt.Println("  -v              dump FSM encodings while compiling")
	fmt.Println()
	fmt.Println("Check flags:")
	fmt.Println("  -depth <n>      last cycle to check; cycles 0..n are unrolled (default 20)")
}

type buildFlags struct {
	out   string
	depth int
	keep  bool
	names bool
	verb  bool
}

func parseFlags(name string, args []string) (buildFlags, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	bf := buildFlags{}
	fs.StringVar(&bf.out, "o", "", "output file")
	fs.IntVar(&bf.depth, "depth", 20, "last cycle to unroll")
	fs.BoolVar(&bf.keep, "keep", false, "warn on unsupported primitives")
	fs.BoolVar(&bf.names, "names", false, "use source names for cells")
	fs.BoolVar(&bf.verb, "v", false, "verbose FSM dumps")
	if err := fs.Parse(args); err != nil {
		return bf, nil, err
	}
	return bf, fs.Args(), nil
}

func compileFile(path string, bf buildFlags) (*netlist.Design, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d := netlist.New()
	unit, err := sva.Parse(filepath.Base(path), data, d)
	if err != nil {
		return nil, err
	}
	opts := sva.Options{
		Keep:    bf.keep,
		Names:   bf.names,
		Verbose: bf.verb,
		Log:     os.Stderr,
	}
	if err := sva.Compile(d, unit, opts); err != nil {
		return nil, err
	}
	return d, nil
}

func cmdBuild(args []string) error {
	bf, rest, err := parseFlags("build", args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("build requires a single .sva input")
	}
	inPath := rest[0]
	d, err := compileFile(inPath, bf)
	if err != nil {
		return err
	}
	outPath := bf.out
	if outPath == "" {
		base := strings.TrimSuffix(inPath, filepath.Ext(inPath))
		outPath = base + ".aag"
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := d.Aiger().WriteAscii(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func cmdCheck(args []string) (bool, error) {
	bf, rest, err := parseFlags("check", args)
	if err != nil {
		return false, err
	}
	if len(rest) != 1 {
		return false, errors.New("check requires a single .sva input")
	}
	d, err := compileFile(rest[0], bf)
	if err != nil {
		return false, err
	}
	ok := true
	for _, r := range bmc.Check(d, bf.depth) {
		switch r.Status {
		case bmc.Fail:
			ok = false
			fmt.Printf("%-10s %s %s fails at cycle %d\n", r.Status, r.Cell.Kind, r.Cell.Name, r.Depth)
		case bmc.Reached:
			fmt.Printf("%-10s %s %s reached at cycle %d\n", r.Status, r.Cell.Kind, r.Cell.Name, r.Depth)
		default:
			fmt.Printf("%-10s %s %s (depth %d)\n", r.Status, r.Cell.Kind, r.Cell.Name, bf.depth)
		}
	}
	return ok, nil
}
