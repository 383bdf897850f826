package sva

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-air/gini/z"

	"github.com/pborges/svac/internal/netlist"
)

// Options configure a compilation.
type Options struct {
	// Keep downgrades unsupported primitives from errors to warnings; the
	// affected sub-sequence is elided, which degrades the property (it may
	// trivially hold or trivially fail).
	Keep bool
	// Names uses the root instance's Name for emitted cells even when the
	// root is not user-declared. Parse sets a Name only for labelled
	// statements, so unlabelled parsed statements are still named
	// anonymously.
	Names bool
	// Verbose dumps the FSM encodings of each property to Log.
	Verbose bool
	// Log receives warnings and verbose dumps. Nil discards.
	Log io.Writer
}

func (o Options) log() io.Writer {
	if o.Log == nil {
		return io.Discard
	}
	return o.Log
}

// Compile lowers every property of unit into d.
func Compile(d *netlist.Design, unit *Unit, opts Options) error {
	for _, p := range unit.Props {
		var err error
		switch p.Verb {
		case VerbAssert:
			err = CompileAssert(d, p.Root, opts)
		case VerbAssume:
			err = CompileAssume(d, p.Root, opts)
		case VerbCover:
			err = CompileCover(d, p.Root, opts)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CompileAssert lowers a single property rooted at root into an assert cell.
func CompileAssert(d *netlist.Design, root *Instance, opts Options) error {
	w := &worker{design: d, root: root, opts: opts, modeAssert: true}
	return w.compile()
}

// CompileAssume lowers a single property into an assume cell.
func CompileAssume(d *netlist.Design, root *Instance, opts Options) error {
	w := &worker{design: d, root: root, opts: opts, modeAssume: true}
	return w.compile()
}

// CompileCover lowers a single property into a cover cell.
func CompileCover(d *netlist.Design, root *Instance, opts Options) error {
	w := &worker{design: d, root: root, opts: opts, modeCover: true}
	return w.compile()
}

type worker struct {
	design *netlist.Design
	root   *Instance
	opts   Options

	modeAssert bool
	modeAssume bool
	modeCover  bool
	eventually bool

	clock    z.Lit
	clockpol bool
	disable  z.Lit

	name string
}

func (w *worker) warnf(format string, args ...interface{}) {
	fmt.Fprintf(w.opts.log(), "warning: %s: "+format+"\n", append([]interface{}{w.name}, args...)...)
}

func (w *worker) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: "+format, append([]interface{}{w.name}, args...)...)
}

// netBool resolves a net to its boolean literal. Sampled-value primitives
// have been synthesized by the front end and carry their literal on the net.
func (w *worker) netBool(n *Net) (z.Lit, error) {
	if n != nil && n.Bool != z.LitNull {
		return n.Bool, nil
	}
	if n != nil && n.Driver != nil {
		return z.LitNull, w.errorf("expected a boolean expression, got %s", n.Driver.Kind)
	}
	return z.LitNull, w.errorf("net has no boolean interpretation")
}

func (inst *Instance) rangeAttrs() (low, high int, inf bool, err error) {
	lowS := inst.attr("sva:low")
	highS := inst.attr("sva:high")
	low, err = strconv.Atoi(lowS)
	if err != nil {
		return 0, 0, false, fmt.Errorf("primitive %s has bad sva:low attribute %q", inst.Kind, lowS)
	}
	if highS == "$" {
		return low, 0, true, nil
	}
	high, err = strconv.Atoi(highS)
	if err != nil {
		return 0, 0, false, fmt.Errorf("primitive %s has bad sva:high attribute %q", inst.Kind, highS)
	}
	return low, high, false, nil
}

// parseSequence compiles the sequence on net into f starting at startNode
// and returns the node the sequence ends on.
func (w *worker) parseSequence(f *fsm, startNode int, net *Net) (int, error) {
	t := w.design.Sys.T
	inst := netToASTDriver(net)

	if inst == nil {
		expr, err := w.netBool(net)
		if err != nil {
			return 0, err
		}
		node := f.createNode()
		f.createLink(startNode, node, expr)
		return node, nil
	}

	switch inst.Kind {
	case KindSeqConcat:
		low, high, inf, err := inst.rangeAttrs()
		if err != nil {
			return 0, w.errorf("%v", err)
		}

		node, err := w.parseSequence(f, startNode, inst.In1)
		if err != nil {
			return 0, err
		}

		for i := 0; i < low; i++ {
			next := f.createNode()
			f.createEdge(node, next, t)
			node = next
		}

		if inf {
			f.createEdge(node, node, t)
		} else {
			for i := low; i < high; i++ {
				next := f.createNode()
				f.createEdge(node, next, t)
				f.createLink(node, next, t)
				node = next
			}
		}

		return w.parseSequence(f, node, inst.In2)

	case KindConsecutiveRepeat:
		low, high, inf, err := inst.rangeAttrs()
		if err != nil {
			return 0, w.errorf("%v", err)
		}

		node, err := w.parseSequence(f, startNode, inst.In)
		if err != nil {
			return 0, err
		}

		for i := 1; i < low; i++ {
			next := f.createNode()
			f.createEdge(node, next, t)
			node, err = w.parseSequence(f, next, inst.In)
			if err != nil {
				return 0, err
			}
		}

		if inf {
			next := f.createNode()
			f.createEdge(node, next, t)
			next, err = w.parseSequence(f, next, inst.In)
			if err != nil {
				return 0, err
			}
			f.createLink(next, node, t)
		} else {
			for i := low; i < high; i++ {
				next := f.createNode()
				f.createEdge(node, next, t)
				next, err = w.parseSequence(f, next, inst.In)
				if err != nil {
					return 0, err
				}
				f.createLink(node, next, t)
				node = next
			}
		}

		return node, nil

	case KindThroughout:
		expr, err := w.netBool(inst.In1)
		if err != nil {
			return 0, err
		}
		f.pushThroughout(expr)
		node, err := w.parseSequence(f, startNode, inst.In2)
		f.popThroughout()
		return node, err
	}

	if !w.opts.Keep {
		return 0, w.errorf("SVA primitive %s is currently unsupported in sequence context", inst.Kind)
	}
	w.warnf("SVA primitive %s is currently unsupported in sequence context; eliding", inst.Kind)
	return startNode, nil
}

func (w *worker) dumpFSM(title string, f *fsm) {
	if !w.opts.Verbose {
		return
	}
	out := w.opts.log()
	fmt.Fprintf(out, "    %s of %s (clock %s %s):\n", title, w.name,
		edgePolName(f.clockpol), w.design.SignalName(f.clock))
	f.dump(out)
}

func edgePolName(posedge bool) string {
	if posedge {
		return "posedge"
	}
	return "negedge"
}

func (w *worker) cellKind() netlist.CellKind {
	switch {
	case w.modeAssume:
		return netlist.CellAssume
	case w.modeCover:
		return netlist.CellCover
	}
	return netlist.CellAssert
}

func (w *worker) emitCell(kind netlist.CellKind, sig, en z.Lit) {
	attr := make(map[string]string, len(w.root.Attr))
	for k, v := range w.root.Attr {
		attr[k] = v
	}
	w.design.AddCell(kind, w.name, sig, en, attr)
}

// compile is the property driver: it recognizes the root property shape,
// builds and wires the sequence FSMs and emits the final verification cell.
func (w *worker) compile() error {
	d := w.design
	w.disable = d.Sys.F

	if w.opts.Names || w.root.UserDeclared {
		if w.root.Name != "" {
			w.name = d.UniqueName(w.root.Name)
		}
	}
	if w.name == "" {
		w.name = d.AutoName()
	}

	atInst := netToASTDriver(w.root.In)

	// Asynchronous immediate assertion/assumption/cover.
	if atInst == nil {
		switch w.root.Kind {
		case KindImmediateAssert, KindImmediateAssume, KindImmediateCover:
			sig, err := w.netBool(w.root.In)
			if err != nil {
				return err
			}
			if w.eventually {
				if w.modeAssert {
					w.emitCell(netlist.CellLive, sig, d.Sys.T)
				}
				if w.modeAssume {
					w.emitCell(netlist.CellFair, sig, d.Sys.T)
				}
			} else {
				w.emitCell(w.cellKind(), sig, d.Sys.T)
			}
			return nil
		}
		return w.errorf("expected a clocked property")
	}
	if atInst.Kind != KindAt {
		return w.errorf("expected a clock envelope at the property root, got %s", atInst.Kind)
	}

	clk, pol, err := clockEdge(atInst.In1)
	if err != nil {
		return w.errorf("%v", err)
	}
	w.clock, w.clockpol = clk, pol
	if err := d.BindClock(clk, pol); err != nil {
		return w.errorf("%v", err)
	}

	// Peel s_eventually and disable iff layers; successive disables OR.
	net := atInst.In2
	for {
		inst := netToASTDriver(net)
		if inst != nil && inst.Kind == KindSEventually {
			w.eventually = true
			net = inst.In
			continue
		}
		if inst != nil && inst.Kind == KindDisableIff {
			cond, err := w.netBool(inst.In1)
			if err != nil {
				return err
			}
			w.disable = d.Or(w.disable, cond)
			net = inst.In2
			continue
		}
		break
	}

	var propOkay z.Lit
	inst := netToASTDriver(net)

	switch {
	case inst == nil:
		propOkay, err = w.netBool(net)
		if err != nil {
			return err
		}

	case inst.Kind == KindOverlappedImpl || inst.Kind == KindNonOverlappedImpl:
		propOkay, err = w.compileImplication(inst)
		if err != nil {
			return err
		}

	case inst.Kind == KindNot || w.modeCover:
		f := newFSM(d, w.clock, w.clockpol, w.disable, d.Sys.T)
		seqNet := net
		if !w.modeCover {
			seqNet = inst.In
		}
		node, err := w.parseSequence(f, f.startNode, seqNet)
		if err != nil {
			return err
		}
		f.createLink(node, f.acceptNode, d.Sys.T)
		accept := f.getAccept()
		w.dumpFSM("sequence FSM", f)
		if w.modeCover {
			propOkay = accept
		} else {
			propOkay = accept.Not()
		}

	default:
		if !w.opts.Keep {
			return w.errorf("SVA primitive %s is currently unsupported in property context", inst.Kind)
		}
		w.warnf("SVA primitive %s is currently unsupported in property context; dropping property", inst.Kind)
		return nil
	}

	if w.eventually {
		return w.errorf("s_eventually is not supported for non-immediate properties")
	}

	// Final stage register: asserts and assumes hold before the first
	// sample, covers do not claim vacuous coverage.
	init := d.Sys.T
	if w.modeCover {
		init = d.Sys.F
	}
	propOkayQ := d.FF(init)
	d.SetNext(propOkayQ, propOkay)

	w.emitCell(w.cellKind(), propOkayQ, d.Sys.T)
	return nil
}

// compileImplication lowers ant |-> cons and ant |=> cons, including the
// consequent not and until forms.
func (w *worker) compileImplication(inst *Instance) (z.Lit, error) {
	d := w.design
	t := d.Sys.T

	antFSM := newFSM(d, w.clock, w.clockpol, w.disable, t)
	node, err := w.parseSequence(antFSM, antFSM.startNode, inst.In1)
	if err != nil {
		return z.LitNull, err
	}
	if inst.Kind == KindNonOverlappedImpl {
		next := antFSM.createNode()
		antFSM.createEdge(node, next, t)
		node = next
	}
	antFSM.createLink(node, antFSM.acceptNode, t)

	antecedentMatch := antFSM.getAccept()
	w.dumpFSM("antecedent FSM", antFSM)

	consequentNet := inst.In2
	consequentNot := false
	if ci := netToASTDriver(consequentNet); ci != nil && ci.Kind == KindNot {
		consequentNot = true
		consequentNet = ci.In
	}

	if ci := netToASTDriver(consequentNet); ci != nil && isUntilKind(ci.Kind) {
		untilWith := ci.Kind == KindUntilWith || ci.Kind == KindSUntilWith
		consequentNet = ci.In1
		untilNet := ci.In2

		untilFSM := newFSM(d, w.clock, w.clockpol, w.disable, t)
		node, err = w.parseSequence(untilFSM, untilFSM.startNode, untilNet)
		if err != nil {
			return z.LitNull, err
		}
		if untilWith {
			next := untilFSM.createNode()
			untilFSM.createEdge(node, next, t)
			node = next
		}
		untilFSM.createLink(node, untilFSM.acceptNode, t)

		untilMatch := untilFSM.getAccept()
		w.dumpFSM("until FSM", untilFSM)

		// Extend the antecedent match across cycles until the release
		// condition matches. Covers look for a single witness and do not
		// extend.
		if !w.modeCover {
			extendQ := d.FF(d.Sys.F)
			antecedentMatch = d.Or(antecedentMatch, extendQ)
			extend := d.And(untilMatch.Not(), antecedentMatch)
			d.SetNext(extendQ, extend)
		}
	}

	consFSM := newFSM(d, w.clock, w.clockpol, w.disable, antecedentMatch)
	node, err = w.parseSequence(consFSM, consFSM.startNode, consequentNet)
	if err != nil {
		return z.LitNull, err
	}
	consFSM.createLink(node, consFSM.acceptNode, t)

	var propOkay z.Lit
	if w.modeCover {
		if consequentNot {
			reject, err := consFSM.getReject()
			if err != nil {
				return z.LitNull, w.errorf("%v", err)
			}
			propOkay = reject
		} else {
			propOkay = consFSM.getAccept()
		}
	} else {
		var consequentMatch z.Lit
		if consequentNot {
			consequentMatch = consFSM.getAccept()
		} else {
			consequentMatch, err = consFSM.getReject()
			if err != nil {
				return z.LitNull, w.errorf("%v", err)
			}
		}
		propOkay = consequentMatch.Not()
	}
	w.dumpFSM("consequent FSM", consFSM)

	return propOkay, nil
}

func isUntilKind(k Kind) bool {
	switch k {
	case KindUntil, KindSUntil, KindUntilWith, KindSUntilWith:
		return true
	}
	return false
}

// clockEdge extracts the clock signal and polarity from the first operand of
// an at primitive.
func clockEdge(n *Net) (z.Lit, bool, error) {
	inst := netToASTDriver(n)
	if inst == nil {
		return z.LitNull, false, fmt.Errorf("clock envelope has no edge specifier")
	}
	switch inst.Kind {
	case KindPosedge, KindNegedge:
	default:
		return z.LitNull, false, fmt.Errorf("unsupported clock specifier %s", inst.Kind)
	}
	if inst.In == nil || inst.In.Bool == z.LitNull {
		return z.LitNull, false, fmt.Errorf("clock edge is not a plain signal")
	}
	return inst.In.Bool, inst.Kind == KindPosedge, nil
}
