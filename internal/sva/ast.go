// Package sva compiles a restricted subset of SystemVerilog Assertions into
// synthesizable logic: clocked state registers and combinational gates
// driving assert/assume/cover cells in a netlist.Design.
//
// Properties are represented as a graph of primitive instances, the shape
// the upstream elaborator hands over. Sequences are compiled into a
// non-deterministic FSM with clock-consuming edges and same-cycle links; the
// reject side of a property is obtained by resolving the links and
// determinizing (see fsm.go and dfsm.go).
package sva

import (
	"github.com/go-air/gini/z"
)

// Kind tags a primitive instance.
type Kind int

const (
	KindImmediateAssert Kind = iota
	KindImmediateAssume
	KindImmediateCover
	KindAssert
	KindAssume
	KindCover
	KindAt
	KindPosedge
	KindNegedge
	KindDisableIff
	KindSEventually
	KindOverlappedImpl
	KindNonOverlappedImpl
	KindNot
	KindSeqConcat
	KindConsecutiveRepeat
	KindThroughout
	KindUntil
	KindSUntil
	KindUntilWith
	KindSUntilWith
	KindRose
	KindFell
	KindStable
	KindPast
)

var kindNames = map[Kind]string{
	KindImmediateAssert:   "immediate_assert",
	KindImmediateAssume:   "immediate_assume",
	KindImmediateCover:    "immediate_cover",
	KindAssert:            "assert",
	KindAssume:            "assume",
	KindCover:             "cover",
	KindAt:                "at",
	KindPosedge:           "posedge",
	KindNegedge:           "negedge",
	KindDisableIff:        "disable_iff",
	KindSEventually:       "s_eventually",
	KindOverlappedImpl:    "|->",
	KindNonOverlappedImpl: "|=>",
	KindNot:               "not",
	KindSeqConcat:         "seq_concat",
	KindConsecutiveRepeat: "consecutive_repeat",
	KindThroughout:        "throughout",
	KindUntil:             "until",
	KindSUntil:            "s_until",
	KindUntilWith:         "until_with",
	KindSUntilWith:        "s_until_with",
	KindRose:              "$rose",
	KindFell:              "$fell",
	KindStable:            "$stable",
	KindPast:              "$past",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind?"
}

// Net is an operand of a primitive instance. It is either a plain boolean
// (Bool is a valid literal) or driven by another primitive. Sampled-value
// primitives carry both: the instance records what the net is, Bool carries
// the already-synthesized boolean.
type Net struct {
	Bool   z.Lit
	Driver *Instance
}

// BoolNet wraps a plain boolean literal.
func BoolNet(m z.Lit) *Net {
	return &Net{Bool: m}
}

// Instance is one primitive node of the property graph.
type Instance struct {
	Kind Kind

	// Operand nets. The driver convention follows the upstream primitives:
	// unary primitives use In, binary ones In1/In2.
	In, In1, In2 *Net

	// String attributes; seq_concat and consecutive_repeat carry
	// "sva:low" and "sva:high" here.
	Attr map[string]string

	Name         string
	UserDeclared bool
}

func (inst *Instance) attr(name string) string {
	if inst.Attr == nil {
		return ""
	}
	return inst.Attr[name]
}

// netToASTDriver returns the SVA primitive driving n, or nil if n is a plain
// boolean. Sampled-value primitives are treated as opaque booleans and also
// yield nil.
func netToASTDriver(n *Net) *Instance {
	if n == nil || n.Driver == nil {
		return nil
	}
	switch n.Driver.Kind {
	case KindRose, KindFell, KindStable, KindPast:
		return nil
	}
	return n.Driver
}

// Verb selects the verification cell kind a property statement emits.
type Verb int

const (
	VerbAssert Verb = iota
	VerbAssume
	VerbCover
)

func (v Verb) String() string {
	switch v {
	case VerbAssert:
		return "assert"
	case VerbAssume:
		return "assume"
	case VerbCover:
		return "cover"
	}
	return "verb?"
}

// Property is one statement of a source unit.
type Property struct {
	Verb Verb
	Root *Instance
}

// Unit is the parsed form of one source file.
type Unit struct {
	File  string
	Props []*Property
}
