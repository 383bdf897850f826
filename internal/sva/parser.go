package sva

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/go-air/gini/z"

	"github.com/pborges/svac/internal/netlist"
)

// Parse reads a property file into a Unit. Boolean expressions are
// synthesized into d as they are parsed; signals must be declared with an
// input statement before use.
//
// The format, one statement per semicolon:
//
//	input a, b, clk;
//	my_check: assert property (@(posedge clk) disable iff (rst) a |=> b);
//	cover property (@(posedge clk) a ##1 b);
//	assert (a);                      // immediate
//
// Sequences support ##N, ##[N:M], ##[N:$], [*N], [*N:M], [*N:$] and
// expr throughout seq. Property bodies support not, |->, |=> and an until /
// s_until / until_with / s_until_with consequent. Boolean expressions
// support !, &&, ||, parentheses, the constants 0 and 1 and the sampled
// value functions $rose, $fell, $stable and $past.
func Parse(file string, src []byte, d *netlist.Design) (*Unit, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{file: file, toks: toks, d: d, pastCache: make(map[z.Lit]z.Lit)}
	unit := &Unit{File: file}
	for !p.at(tokEOF) {
		if p.atKeyword("input") {
			if err := p.parseInputDecl(); err != nil {
				return nil, err
			}
			continue
		}
		prop, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		unit.Props = append(unit.Props, prop)
	}
	return unit, nil
}

// Lexer

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokLParen
	tokRParen
	tokLBrack
	tokRBrack
	tokColon
	tokSemi
	tokComma
	tokAt
	tokNot
	tokAndAnd
	tokOrOr
	tokHashHash
	tokStar
	tokDollar
	tokOverlapImpl
	tokNonOverlapImpl
)

type token struct {
	kind tokenKind
	text string
	line int
}

func lex(src []byte) ([]token, error) {
	var toks []token
	line := 1
	i := 0
	n := len(src)
	emit := func(kind tokenKind, text string) {
		toks = append(toks, token{kind: kind, text: text, line: line})
	}
	for i < n {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case unicode.IsSpace(rune(c)):
			i++
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				if src[i] == '\n' {
					line++
				}
				i++
			}
			if i+1 >= n {
				return nil, fmt.Errorf("line %d: unterminated comment", line)
			}
			i += 2
		case c == '(':
			emit(tokLParen, "(")
			i++
		case c == ')':
			emit(tokRParen, ")")
			i++
		case c == '[':
			emit(tokLBrack, "[")
			i++
		case c == ']':
			emit(tokRBrack, "]")
			i++
		case c == ':':
			emit(tokColon, ":")
			i++
		case c == ';':
			emit(tokSemi, ";")
			i++
		case c == ',':
			emit(tokComma, ",")
			i++
		case c == '@':
			emit(tokAt, "@")
			i++
		case c == '!':
			emit(tokNot, "!")
			i++
		case c == '*':
			emit(tokStar, "*")
			i++
		case c == '&':
			if i+1 < n && src[i+1] == '&' {
				emit(tokAndAnd, "&&")
				i += 2
			} else {
				return nil, fmt.Errorf("line %d: unexpected character %q", line, string(c))
			}
		case c == '#':
			if i+1 < n && src[i+1] == '#' {
				emit(tokHashHash, "##")
				i += 2
			} else {
				return nil, fmt.Errorf("line %d: unexpected character %q", line, string(c))
			}
		case c == '|':
			switch {
			case i+1 < n && src[i+1] == '|':
				emit(tokOrOr, "||")
				i += 2
			case i+2 < n && src[i+1] == '-' && src[i+2] == '>':
				emit(tokOverlapImpl, "|->")
				i += 3
			case i+2 < n && src[i+1] == '=' && src[i+2] == '>':
				emit(tokNonOverlapImpl, "|=>")
				i += 3
			default:
				return nil, fmt.Errorf("line %d: unexpected character %q", line, string(c))
			}
		case c == '$':
			if i+1 < n && isIdentStart(src[i+1]) {
				start := i
				i++
				for i < n && isIdentPart(src[i]) {
					i++
				}
				emit(tokIdent, string(src[start:i]))
			} else {
				emit(tokDollar, "$")
				i++
			}
		case isIdentStart(c):
			start := i
			i++
			for i < n && isIdentPart(src[i]) {
				i++
			}
			emit(tokIdent, string(src[start:i]))
		case unicode.IsDigit(rune(c)):
			start := i
			i++
			for i < n && unicode.IsDigit(rune(src[i])) {
				i++
			}
			emit(tokNumber, string(src[start:i]))
		default:
			return nil, fmt.Errorf("line %d: unexpected character %q", line, string(c))
		}
	}
	toks = append(toks, token{kind: tokEOF, line: line})
	return toks, nil
}

func isIdentStart(b byte) bool {
	return unicode.IsLetter(rune(b)) || b == '_'
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || unicode.IsDigit(rune(b))
}

// Parser

type parser struct {
	file string
	toks []token
	pos  int
	d    *netlist.Design

	clocked  bool
	clk      z.Lit
	clockpol bool

	pastCache map[z.Lit]z.Lit
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) line() int   { return p.cur().line }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) at(kind tokenKind) bool { return p.cur().kind == kind }

func (p *parser) atKeyword(kw string) bool {
	return p.cur().kind == tokIdent && p.cur().text == kw
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if !p.at(kind) {
		return token{}, fmt.Errorf("line %d: expected %s, got %q", p.line(), what, p.cur().text)
	}
	return p.next(), nil
}

func (p *parser) parseInputDecl() error {
	p.next() // input
	for {
		tok, err := p.expect(tokIdent, "signal name")
		if err != nil {
			return err
		}
		p.d.Input(tok.text)
		if p.at(tokComma) {
			p.next()
			continue
		}
		break
	}
	_, err := p.expect(tokSemi, ";")
	return err
}

func (p *parser) parseStatement() (*Property, error) {
	line := p.line()

	label := ""
	if p.at(tokIdent) && p.toks[p.pos+1].kind == tokColon {
		label = p.next().text
		p.next()
	}

	verbTok, err := p.expect(tokIdent, "assert, assume or cover")
	if err != nil {
		return nil, err
	}
	var verb Verb
	switch verbTok.text {
	case "assert":
		verb = VerbAssert
	case "assume":
		verb = VerbAssume
	case "cover":
		verb = VerbCover
	default:
		return nil, fmt.Errorf("line %d: expected assert, assume or cover, got %q", verbTok.line, verbTok.text)
	}
	p.acceptKeyword("property")

	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	root, err := p.parseProperty(verb)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi, ";"); err != nil {
		return nil, err
	}

	root.Name = label
	root.UserDeclared = label != ""
	root.Attr = map[string]string{"src": fmt.Sprintf("%s:%d", p.file, line)}

	return &Property{Verb: verb, Root: root}, nil
}

func (p *parser) parseProperty(verb Verb) (*Instance, error) {
	if !p.at(tokAt) {
		// Immediate form: a plain boolean expression.
		e, err := p.parseBoolExpr()
		if err != nil {
			return nil, err
		}
		kind := KindImmediateAssert
		switch verb {
		case VerbAssume:
			kind = KindImmediateAssume
		case VerbCover:
			kind = KindImmediateCover
		}
		return &Instance{Kind: kind, In: e}, nil
	}

	p.next() // @
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	edgeTok, err := p.expect(tokIdent, "posedge or negedge")
	if err != nil {
		return nil, err
	}
	var edgeKind Kind
	switch edgeTok.text {
	case "posedge":
		edgeKind = KindPosedge
	case "negedge":
		edgeKind = KindNegedge
	default:
		return nil, fmt.Errorf("line %d: expected posedge or negedge, got %q", edgeTok.line, edgeTok.text)
	}
	clkTok, err := p.expect(tokIdent, "clock signal")
	if err != nil {
		return nil, err
	}
	clk, ok := p.d.Lookup(clkTok.text)
	if !ok {
		return nil, fmt.Errorf("line %d: undefined signal %q", clkTok.line, clkTok.text)
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}

	p.clocked = true
	p.clk = clk
	p.clockpol = edgeKind == KindPosedge
	defer func() { p.clocked = false }()

	body, err := p.parsePropBody()
	if err != nil {
		return nil, err
	}

	edgeInst := &Instance{Kind: edgeKind, In: BoolNet(clk)}
	at := &Instance{Kind: KindAt, In1: &Net{Driver: edgeInst}, In2: body}

	kind := KindAssert
	switch verb {
	case VerbAssume:
		kind = KindAssume
	case VerbCover:
		kind = KindCover
	}
	return &Instance{Kind: kind, In: &Net{Driver: at}}, nil
}

func (p *parser) parsePropBody() (*Net, error) {
	if p.atKeyword("disable") {
		p.next()
		if !p.acceptKeyword("iff") {
			return nil, fmt.Errorf("line %d: expected iff after disable", p.line())
		}
		if _, err := p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		cond, err := p.parseBoolExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		rest, err := p.parsePropBody()
		if err != nil {
			return nil, err
		}
		return &Net{Driver: &Instance{Kind: KindDisableIff, In1: cond, In2: rest}}, nil
	}
	if p.acceptKeyword("s_eventually") {
		rest, err := p.parsePropBody()
		if err != nil {
			return nil, err
		}
		return &Net{Driver: &Instance{Kind: KindSEventually, In: rest}}, nil
	}
	return p.parseProp()
}

func (p *parser) parseProp() (*Net, error) {
	if p.acceptKeyword("not") {
		inner, err := p.parseProp()
		if err != nil {
			return nil, err
		}
		return &Net{Driver: &Instance{Kind: KindNot, In: inner}}, nil
	}

	seq, err := p.parseSeq()
	if err != nil {
		return nil, err
	}

	var implKind Kind
	switch p.cur().kind {
	case tokOverlapImpl:
		implKind = KindOverlappedImpl
	case tokNonOverlapImpl:
		implKind = KindNonOverlappedImpl
	default:
		return seq, nil
	}
	p.next()

	cons, err := p.parseConsequent()
	if err != nil {
		return nil, err
	}
	return &Net{Driver: &Instance{Kind: implKind, In1: seq, In2: cons}}, nil
}

func (p *parser) parseConsequent() (*Net, error) {
	if p.acceptKeyword("not") {
		inner, err := p.parseConsequentUntil()
		if err != nil {
			return nil, err
		}
		return &Net{Driver: &Instance{Kind: KindNot, In: inner}}, nil
	}
	return p.parseConsequentUntil()
}

var untilKinds = map[string]Kind{
	"until":        KindUntil,
	"s_until":      KindSUntil,
	"until_with":   KindUntilWith,
	"s_until_with": KindSUntilWith,
}

func (p *parser) parseConsequentUntil() (*Net, error) {
	left, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	if p.at(tokIdent) {
		if kind, ok := untilKinds[p.cur().text]; ok {
			p.next()
			right, err := p.parseSeq()
			if err != nil {
				return nil, err
			}
			return &Net{Driver: &Instance{Kind: kind, In1: left, In2: right}}, nil
		}
	}
	return left, nil
}

func rangeAttr(low, high int, inf bool) map[string]string {
	attr := map[string]string{"sva:low": strconv.Itoa(low)}
	if inf {
		attr["sva:high"] = "$"
	} else {
		attr["sva:high"] = strconv.Itoa(high)
	}
	return attr
}

func (p *parser) parseSeq() (*Net, error) {
	// A leading delay (##[1:3] b) is shorthand for a constant-true left
	// operand: 1 ##[1:3] b.
	var left *Net
	var err error
	if p.at(tokHashHash) {
		left = BoolNet(p.d.Sys.T)
	} else {
		left, err = p.parseSeqTerm()
		if err != nil {
			return nil, err
		}
	}
	for p.at(tokHashHash) {
		p.next()
		low, high, inf, err := p.parseDelayRange()
		if err != nil {
			return nil, err
		}
		right, err := p.parseSeqTerm()
		if err != nil {
			return nil, err
		}
		left = &Net{Driver: &Instance{
			Kind: KindSeqConcat,
			In1:  left,
			In2:  right,
			Attr: rangeAttr(low, high, inf),
		}}
	}
	return left, nil
}

func (p *parser) parseSeqTerm() (*Net, error) {
	t, err := p.parseSeqPrimary()
	if err != nil {
		return nil, err
	}
	for p.at(tokLBrack) && p.toks[p.pos+1].kind == tokStar {
		p.next()
		p.next()
		low, high, inf, err := p.parseRepeatRange()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBrack, "]"); err != nil {
			return nil, err
		}
		t = &Net{Driver: &Instance{
			Kind: KindConsecutiveRepeat,
			In:   t,
			Attr: rangeAttr(low, high, inf),
		}}
	}
	return t, nil
}

func (p *parser) parseSeqPrimary() (*Net, error) {
	// A primary is either a boolean expression (possibly a throughout
	// condition) or a parenthesized sequence. Try the boolean reading
	// first and back off when the parenthesis turns out to hold sequence
	// operators.
	save := p.pos
	e, boolErr := p.parseBoolExpr()
	if boolErr == nil {
		if p.acceptKeyword("throughout") {
			s, err := p.parseSeq()
			if err != nil {
				return nil, err
			}
			return &Net{Driver: &Instance{Kind: KindThroughout, In1: e, In2: s}}, nil
		}
		return e, nil
	}
	p.pos = save
	if !p.at(tokLParen) {
		return nil, boolErr
	}
	p.next()
	s, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) parseDelayRange() (low, high int, inf bool, err error) {
	if p.at(tokNumber) {
		n, _ := strconv.Atoi(p.next().text)
		return n, n, false, nil
	}
	if _, err := p.expect(tokLBrack, "delay or [low:high]"); err != nil {
		return 0, 0, false, err
	}
	lowTok, err := p.expect(tokNumber, "delay low bound")
	if err != nil {
		return 0, 0, false, err
	}
	low, _ = strconv.Atoi(lowTok.text)
	if _, err := p.expect(tokColon, ":"); err != nil {
		return 0, 0, false, err
	}
	low2, high, inf, err := p.parseRangeHigh(low)
	if err != nil {
		return 0, 0, false, err
	}
	if _, err := p.expect(tokRBrack, "]"); err != nil {
		return 0, 0, false, err
	}
	return low2, high, inf, nil
}

func (p *parser) parseRepeatRange() (low, high int, inf bool, err error) {
	if p.at(tokRBrack) {
		// [*] is shorthand for [*0:$]
		return 0, 0, true, nil
	}
	lowTok, err := p.expect(tokNumber, "repeat count")
	if err != nil {
		return 0, 0, false, err
	}
	low, _ = strconv.Atoi(lowTok.text)
	if !p.at(tokColon) {
		return low, low, false, nil
	}
	p.next()
	return p.parseRangeHigh(low)
}

func (p *parser) parseRangeHigh(low int) (int, int, bool, error) {
	if p.at(tokDollar) {
		p.next()
		return low, 0, true, nil
	}
	highTok, err := p.expect(tokNumber, "range high bound")
	if err != nil {
		return 0, 0, false, err
	}
	high, _ := strconv.Atoi(highTok.text)
	if high < low {
		return 0, 0, false, fmt.Errorf("line %d: range high bound %d below low bound %d", highTok.line, high, low)
	}
	return low, high, false, nil
}

// Boolean expressions

func (p *parser) parseBoolExpr() (*Net, error) { return p.parseBoolOr() }

func (p *parser) parseBoolOr() (*Net, error) {
	left, err := p.parseBoolAnd()
	if err != nil {
		return nil, err
	}
	for p.at(tokOrOr) {
		p.next()
		right, err := p.parseBoolAnd()
		if err != nil {
			return nil, err
		}
		left = BoolNet(p.d.Or(left.Bool, right.Bool))
	}
	return left, nil
}

func (p *parser) parseBoolAnd() (*Net, error) {
	left, err := p.parseBoolUnary()
	if err != nil {
		return nil, err
	}
	for p.at(tokAndAnd) {
		p.next()
		right, err := p.parseBoolUnary()
		if err != nil {
			return nil, err
		}
		left = BoolNet(p.d.And(left.Bool, right.Bool))
	}
	return left, nil
}

func (p *parser) parseBoolUnary() (*Net, error) {
	if p.at(tokNot) {
		p.next()
		x, err := p.parseBoolUnary()
		if err != nil {
			return nil, err
		}
		return BoolNet(x.Bool.Not()), nil
	}
	return p.parseBoolPrimary()
}

var sampledKinds = map[string]Kind{
	"$rose":   KindRose,
	"$fell":   KindFell,
	"$stable": KindStable,
	"$past":   KindPast,
}

func (p *parser) parseBoolPrimary() (*Net, error) {
	tok := p.cur()
	switch tok.kind {
	case tokIdent:
		if kind, ok := sampledKinds[tok.text]; ok {
			return p.parseSampled(kind)
		}
		p.next()
		m, ok := p.d.Lookup(tok.text)
		if !ok {
			return nil, fmt.Errorf("line %d: undefined signal %q", tok.line, tok.text)
		}
		return BoolNet(m), nil
	case tokNumber:
		p.next()
		switch tok.text {
		case "0":
			return BoolNet(p.d.Sys.F), nil
		case "1":
			return BoolNet(p.d.Sys.T), nil
		}
		return nil, fmt.Errorf("line %d: expected 0 or 1, got %q", tok.line, tok.text)
	case tokLParen:
		p.next()
		x, err := p.parseBoolExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return x, nil
	}
	return nil, fmt.Errorf("line %d: expected boolean expression, got %q", tok.line, tok.text)
}

// parseSampled parses $rose/$fell/$stable/$past and synthesizes the sampled
// value logic. The instance is kept on the net so downstream passes can see
// what drove it, but the net reads as a plain boolean.
func (p *parser) parseSampled(kind Kind) (*Net, error) {
	tok := p.next()
	if !p.clocked {
		return nil, fmt.Errorf("line %d: %s outside a clocked property", tok.line, tok.text)
	}
	if err := p.d.BindClock(p.clk, p.clockpol); err != nil {
		return nil, fmt.Errorf("line %d: %v", tok.line, err)
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	arg, err := p.parseBoolExpr()
	if err != nil {
		return nil, err
	}
	depth := 1
	if kind == KindPast && p.at(tokComma) {
		p.next()
		depthTok, err := p.expect(tokNumber, "$past depth")
		if err != nil {
			return nil, err
		}
		depth, _ = strconv.Atoi(depthTok.text)
		if depth < 1 {
			return nil, fmt.Errorf("line %d: $past depth must be at least 1", depthTok.line)
		}
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}

	e := arg.Bool
	var m z.Lit
	switch kind {
	case KindPast:
		m = e
		for i := 0; i < depth; i++ {
			m = p.past1(m)
		}
	case KindRose:
		m = p.d.And(e, p.past1(e).Not())
	case KindFell:
		m = p.d.And(e.Not(), p.past1(e))
	case KindStable:
		m = p.d.Eq(e, p.past1(e))
	}
	inst := &Instance{Kind: kind, In: arg}
	if kind == KindPast {
		inst.Attr = map[string]string{"sva:depth": strconv.Itoa(depth)}
	}
	return &Net{Bool: m, Driver: inst}, nil
}

// past1 returns a register holding the previous cycle's value of m,
// initialized low. Registers are shared between repeated uses.
func (p *parser) past1(m z.Lit) z.Lit {
	if q, ok := p.pastCache[m]; ok {
		return q
	}
	q := p.d.FF(p.d.Sys.F)
	p.d.SetNext(q, m)
	p.pastCache[m] = q
	return q
}
