package clc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gomlx/clvec/dtypes"
)

// operand is a compiled expression: its type and the closure that evaluates it. Integer types set i, floating
// point types set f, pointers set neither.
type operand struct {
	typ ctype
	pos Pos
	i   func(*frame) int64
	f   func(*frame) float64

	// lv is set for assignable expressions.
	lv *lvalue

	// name and param identify pointer parameters.
	name  string
	param int

	// bad is set if an error was already reported for the expression.
	bad bool
}

// lvalue is an assignable location: a variable slot or a global memory element.
// addr is evaluated once per access, and the returned address given to the load and store functions.
type lvalue struct {
	// readOnly is the error message reported on assignment, if the location is read-only.
	readOnly string

	addr   func(*frame) int
	loadI  func(f *frame, a int) int64
	storeI func(f *frame, a int, v int64)
	loadF  func(f *frame, a int) float64
	storeF func(f *frame, a int, v float64)
}

func (p *parser) bad(pos Pos) *operand {
	return &operand{typ: ctype{dt: dtypes.Int32}, pos: pos, i: func(*frame) int64 { return 0 }, bad: true}
}

func intConst(dt dtypes.DType, pos Pos, v int64) *operand {
	return &operand{typ: ctype{dt: dt}, pos: pos, i: func(*frame) int64 { return v }}
}

func floatConst(dt dtypes.DType, pos Pos, v float64) *operand {
	return &operand{typ: ctype{dt: dt}, pos: pos, f: func(*frame) float64 { return v }}
}

// sideEffect returns the closure that evaluates e discarding its value, or nil if e has no closure.
func sideEffect(e *operand) func(*frame) {
	switch {
	case e.bad:
		return nil
	case e.i != nil:
		fi := e.i
		return func(f *frame) { fi(f) }
	case e.f != nil:
		ff := e.f
		return func(f *frame) { ff(f) }
	}
	return nil
}

// truth returns the closure that evaluates e as a condition.
func (p *parser) truth(e *operand) func(*frame) bool {
	switch {
	case e.bad:
		return func(*frame) bool { return false }
	case e.typ.ptr:
		p.errorf(e.pos, "pointer '%s' used as a condition is not supported", e.name)
		return func(*frame) bool { return false }
	case e.typ.isFloat():
		ef := e.f
		return func(f *frame) bool { return ef(f) != 0 }
	}
	ei := e.i
	return func(f *frame) bool { return ei(f) != 0 }
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// convert returns e converted to the scalar type dt.
func (p *parser) convert(e *operand, to dtypes.DType) *operand {
	if e.bad {
		return e
	}
	if e.typ.ptr {
		p.errorf(e.pos, "cannot convert pointer '%s' to '%s'", e.name, to.CLName())
		return p.bad(e.pos)
	}
	from := e.typ.dt
	res := &operand{typ: ctype{dt: to}, pos: e.pos}
	switch {
	case from == to:
		res.i, res.f = e.i, e.f
	case !from.IsFloat() && !to.IsFloat():
		ei := e.i
		if w := wrapFunc(to); w != nil {
			res.i = func(f *frame) int64 { return w(ei(f)) }
		} else {
			res.i = ei
		}
	case !from.IsFloat():
		ei := e.i
		r := roundFunc(to)
		res.f = func(f *frame) float64 {
			v := intToFloat(from, ei(f))
			if r != nil {
				v = r(v)
			}
			return v
		}
	case !to.IsFloat():
		ef := e.f
		res.f = nil
		res.i = func(f *frame) int64 { return floatToInt(to, ef(f)) }
	default:
		ef := e.f
		r := roundFunc(to)
		if r == nil || (from == dtypes.Float16 && to == dtypes.Float32) {
			res.f = ef
		} else {
			res.f = func(f *frame) float64 { return r(ef(f)) }
		}
	}
	return res
}

func (p *parser) parseExpr() *operand {
	e := p.parseAssign()
	for p.peek().is(",") {
		p.next()
		next := p.parseAssign()
		e = p.comma(e, next)
	}
	return e
}

func (p *parser) comma(first, second *operand) *operand {
	if first.bad || second.bad {
		return p.bad(second.pos)
	}
	effect := sideEffect(first)
	if effect == nil {
		return second
	}
	res := &operand{typ: second.typ, pos: second.pos, name: second.name, param: second.param}
	switch {
	case second.i != nil:
		si := second.i
		res.i = func(f *frame) int64 { effect(f); return si(f) }
	case second.f != nil:
		sf := second.f
		res.f = func(f *frame) float64 { effect(f); return sf(f) }
	}
	return res
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"<<=": true, ">>=": true, "&=": true, "|=": true, "^=": true,
}

func (p *parser) parseAssign() *operand {
	lhs := p.parseConditional()
	if t := p.peek(); t.kind == tokPunct && assignOps[t.text] {
		p.next()
		rhs := p.parseAssign()
		return p.assign(t, lhs, rhs)
	}
	return lhs
}

// checkAssignable reports the errors of assigning to e. It returns false if e can't be assigned.
func (p *parser) checkAssignable(e *operand) bool {
	if e.bad {
		return false
	}
	if e.typ.ptr {
		p.errorf(e.pos, "assignment to pointer '%s' is not supported", e.name)
		return false
	}
	if e.lv == nil {
		p.errorf(e.pos, "expression is not assignable")
		return false
	}
	if e.lv.readOnly != "" {
		p.errorf(e.pos, "%s", e.lv.readOnly)
		return false
	}
	return true
}

func (p *parser) assign(opTok token, lhs, rhs *operand) *operand {
	if !p.checkAssignable(lhs) || rhs.bad {
		return p.bad(lhs.pos)
	}
	lv, dt := lhs.lv, lhs.typ.dt
	res := &operand{typ: ctype{dt: dt}, pos: lhs.pos}
	if opTok.text == "=" {
		value := p.convert(rhs, dt)
		if value.bad {
			return value
		}
		if dt.IsFloat() {
			vf := value.f
			res.f = func(f *frame) float64 {
				a := lv.addr(f)
				v := vf(f)
				lv.storeF(f, a, v)
				return v
			}
		} else {
			vi := value.i
			res.i = func(f *frame) int64 {
				a := lv.addr(f)
				v := vi(f)
				lv.storeI(f, a, v)
				return v
			}
		}
		return res
	}

	// Compound assignment: the address is evaluated once and kept in a dedicated slot of the frame.
	slot := p.newSlot(dtypes.Int64)
	current := &operand{typ: ctype{dt: dt}, pos: lhs.pos}
	if dt.IsFloat() {
		current.f = func(f *frame) float64 { return lv.loadF(f, int(f.ints[slot])) }
	} else {
		current.i = func(f *frame) int64 { return lv.loadI(f, int(f.ints[slot])) }
	}
	value := p.convert(p.binary(strings.TrimSuffix(opTok.text, "="), opTok.pos, current, rhs), dt)
	if value.bad {
		return value
	}
	if dt.IsFloat() {
		vf := value.f
		res.f = func(f *frame) float64 {
			f.ints[slot] = int64(lv.addr(f))
			v := vf(f)
			lv.storeF(f, int(f.ints[slot]), v)
			return v
		}
	} else {
		vi := value.i
		res.i = func(f *frame) int64 {
			f.ints[slot] = int64(lv.addr(f))
			v := vi(f)
			lv.storeI(f, int(f.ints[slot]), v)
			return v
		}
	}
	return res
}

func (p *parser) parseConditional() *operand {
	cond := p.parseBinary(1)
	if t := p.peek(); t.is("?") {
		p.next()
		a := p.parseExpr()
		p.expect(":")
		b := p.parseConditional()
		return p.ternary(t.pos, cond, a, b)
	}
	return cond
}

func (p *parser) ternary(pos Pos, cond, a, b *operand) *operand {
	if cond.bad || a.bad || b.bad {
		return p.bad(pos)
	}
	if a.typ.ptr || b.typ.ptr {
		p.errorf(pos, "conditional expressions of pointers are not supported")
		return p.bad(pos)
	}
	test := p.truth(cond)
	t := arithType(a.typ.dt, b.typ.dt)
	ca, cb := p.convert(a, t), p.convert(b, t)
	res := &operand{typ: ctype{dt: t}, pos: pos}
	if t.IsFloat() {
		af, bf := ca.f, cb.f
		res.f = func(f *frame) float64 {
			if test(f) {
				return af(f)
			}
			return bf(f)
		}
	} else {
		ai, bi := ca.i, cb.i
		res.i = func(f *frame) int64 {
			if test(f) {
				return ai(f)
			}
			return bi(f)
		}
	}
	return res
}

var binaryPrecedence = map[string]int{
	"||": 1, "&&": 2, "|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6, "<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8, "+": 9, "-": 9, "*": 10, "/": 10, "%": 10,
}

func (p *parser) parseBinary(minPrecedence int) *operand {
	x := p.parseUnary()
	for {
		t := p.peek()
		precedence, found := binaryPrecedence[t.text]
		if t.kind != tokPunct || !found || precedence < minPrecedence {
			return x
		}
		p.next()
		y := p.parseBinary(precedence + 1)
		x = p.binary(t.text, t.pos, x, y)
	}
}

func (p *parser) invalidOperands(pos Pos, x, y *operand) *operand {
	p.errorf(pos, "invalid operands to binary expression ('%s' and '%s')", x.typ, y.typ)
	return p.bad(pos)
}

func (p *parser) binary(op string, pos Pos, x, y *operand) *operand {
	if x.bad || y.bad {
		return p.bad(pos)
	}
	if x.typ.ptr || y.typ.ptr {
		if op == "+" || op == "-" {
			p.errorf(pos, "pointer arithmetic is not supported")
			return p.bad(pos)
		}
		return p.invalidOperands(pos, x, y)
	}
	res := &operand{typ: ctype{dt: dtypes.Int32}, pos: pos}

	switch op {
	case "&&", "||":
		tx, ty := p.truth(x), p.truth(y)
		if op == "&&" {
			res.i = func(f *frame) int64 { return boolToInt(tx(f) && ty(f)) }
		} else {
			res.i = func(f *frame) int64 { return boolToInt(tx(f) || ty(f)) }
		}
		return res

	case "<<", ">>":
		if x.typ.isFloat() || y.typ.isFloat() {
			return p.invalidOperands(pos, x, y)
		}
		t := promote(x.typ.dt)
		xi, yi := p.convert(x, t).i, y.i
		mask := int64(t.Bits() - 1)
		res.typ.dt = t
		switch {
		case op == "<<":
			w := wrapFunc(t)
			res.i = func(f *frame) int64 { return wrapOrSelf(w, xi(f)<<uint64(yi(f)&mask)) }
		case t == dtypes.Uint64:
			res.i = func(f *frame) int64 { return int64(uint64(xi(f)) >> uint64(yi(f)&mask)) }
		default:
			res.i = func(f *frame) int64 { return xi(f) >> uint64(yi(f)&mask) }
		}
		return res
	}

	t := arithType(x.typ.dt, y.typ.dt)
	cx, cy := p.convert(x, t), p.convert(y, t)
	switch op {
	case "==", "!=", "<", ">", "<=", ">=":
		if t.IsFloat() {
			cmp := floatCompare(op)
			xf, yf := cx.f, cy.f
			res.i = func(f *frame) int64 { return boolToInt(cmp(xf(f), yf(f))) }
		} else {
			cmp := intCompare(op, t == dtypes.Uint64)
			xi, yi := cx.i, cy.i
			res.i = func(f *frame) int64 { return boolToInt(cmp(xi(f), yi(f))) }
		}
		return res
	case "%", "&", "|", "^":
		if t.IsFloat() {
			return p.invalidOperands(pos, x, y)
		}
	}
	res.typ.dt = t
	if t.IsFloat() {
		fn := floatArith(op)
		r := roundFunc(t)
		xf, yf := cx.f, cy.f
		res.f = func(f *frame) float64 {
			v := fn(xf(f), yf(f))
			if r != nil {
				v = r(v)
			}
			return v
		}
		return res
	}
	fn := intArith(op, t)
	xi, yi := cx.i, cy.i
	res.i = func(f *frame) int64 { return fn(xi(f), yi(f)) }
	return res
}

func wrapOrSelf(w func(int64) int64, v int64) int64 {
	if w == nil {
		return v
	}
	return w(v)
}

func floatCompare(op string) func(a, b float64) bool {
	switch op {
	case "==":
		return func(a, b float64) bool { return a == b }
	case "!=":
		return func(a, b float64) bool { return a != b }
	case "<":
		return func(a, b float64) bool { return a < b }
	case ">":
		return func(a, b float64) bool { return a > b }
	case "<=":
		return func(a, b float64) bool { return a <= b }
	}
	return func(a, b float64) bool { return a >= b }
}

func intCompare(op string, unsigned bool) func(a, b int64) bool {
	if unsigned {
		switch op {
		case "<":
			return func(a, b int64) bool { return uint64(a) < uint64(b) }
		case ">":
			return func(a, b int64) bool { return uint64(a) > uint64(b) }
		case "<=":
			return func(a, b int64) bool { return uint64(a) <= uint64(b) }
		case ">=":
			return func(a, b int64) bool { return uint64(a) >= uint64(b) }
		}
	}
	switch op {
	case "==":
		return func(a, b int64) bool { return a == b }
	case "!=":
		return func(a, b int64) bool { return a != b }
	case "<":
		return func(a, b int64) bool { return a < b }
	case ">":
		return func(a, b int64) bool { return a > b }
	case "<=":
		return func(a, b int64) bool { return a <= b }
	}
	return func(a, b int64) bool { return a >= b }
}

func floatArith(op string) func(a, b float64) float64 {
	switch op {
	case "+":
		return func(a, b float64) float64 { return a + b }
	case "-":
		return func(a, b float64) float64 { return a - b }
	case "*":
		return func(a, b float64) float64 { return a * b }
	}
	return func(a, b float64) float64 { return a / b }
}

// intArith returns the integer operation, wrapping the result to the width of t.
// Division and remainder by zero yield 0.
func intArith(op string, t dtypes.DType) func(a, b int64) int64 {
	w := wrapFunc(t)
	if w == nil {
		w = func(v int64) int64 { return v }
	}
	unsigned64 := t == dtypes.Uint64
	switch op {
	case "+":
		return func(a, b int64) int64 { return w(a + b) }
	case "-":
		return func(a, b int64) int64 { return w(a - b) }
	case "*":
		return func(a, b int64) int64 { return w(a * b) }
	case "/":
		if unsigned64 {
			return func(a, b int64) int64 {
				if b == 0 {
					return 0
				}
				return int64(uint64(a) / uint64(b))
			}
		}
		return func(a, b int64) int64 {
			if b == 0 {
				return 0
			}
			return w(a / b)
		}
	case "%":
		if unsigned64 {
			return func(a, b int64) int64 {
				if b == 0 {
					return 0
				}
				return int64(uint64(a) % uint64(b))
			}
		}
		return func(a, b int64) int64 {
			if b == 0 {
				return 0
			}
			return w(a % b)
		}
	case "&":
		return func(a, b int64) int64 { return w(a & b) }
	case "|":
		return func(a, b int64) int64 { return w(a | b) }
	}
	return func(a, b int64) int64 { return w(a ^ b) }
}

func (p *parser) parseUnary() *operand {
	t := p.peek()
	switch {
	case t.is("-"), t.is("+"), t.is("!"), t.is("~"):
		p.next()
		return p.unary(t, p.parseUnary())
	case t.is("++"), t.is("--"):
		p.next()
		return p.incDec(t, p.parseUnary(), true)
	case t.is("(") && p.isTypeStart(p.peekAt(1)):
		p.next()
		for p.accept("const") || p.accept("volatile") {
		}
		dt, _ := p.parseTypeName()
		if next := p.peek(); next.is("*") {
			p.fail(next.pos, "casts to pointer types are not supported")
		}
		p.expect(")")
		x := p.parseUnary()
		res := p.convert(x, dt)
		if !res.bad {
			res.pos = t.pos
		}
		return res
	case t.is("sizeof"):
		p.next()
		p.expect("(")
		if !p.isTypeStart(p.peek()) {
			p.fail(p.peek().pos, "sizeof is only supported on type names")
		}
		dt, _ := p.parseTypeName()
		p.expect(")")
		return intConst(dtypes.Uint64, t.pos, int64(dt.Size()))
	case t.is("*"), t.is("&"):
		p.fail(t.pos, "pointer dereference and address-of operators are not supported, use indexing")
	}
	return p.parsePostfix()
}

func (p *parser) unary(t token, x *operand) *operand {
	if x.bad {
		return x
	}
	if x.typ.ptr {
		p.errorf(t.pos, "invalid argument type '%s' to unary expression", x.typ)
		return p.bad(t.pos)
	}
	dt := promote(x.typ.dt)
	switch t.text {
	case "+":
		res := p.convert(x, dt)
		res.lv = nil
		return res
	case "!":
		test := p.truth(x)
		return &operand{typ: ctype{dt: dtypes.Int32}, pos: t.pos,
			i: func(f *frame) int64 { return boolToInt(!test(f)) }}
	case "~":
		if dt.IsFloat() {
			p.errorf(t.pos, "invalid argument type '%s' to unary expression", x.typ)
			return p.bad(t.pos)
		}
	}
	cx := p.convert(x, dt)
	res := &operand{typ: ctype{dt: dt}, pos: t.pos}
	if dt.IsFloat() {
		xf := cx.f
		res.f = func(f *frame) float64 { return -xf(f) }
		return res
	}
	xi := cx.i
	w := wrapFunc(dt)
	if t.text == "~" {
		res.i = func(f *frame) int64 { return wrapOrSelf(w, ^xi(f)) }
	} else {
		res.i = func(f *frame) int64 { return wrapOrSelf(w, -xi(f)) }
	}
	return res
}

// incDec compiles the prefix or postfix ++ and -- operators.
func (p *parser) incDec(t token, x *operand, prefix bool) *operand {
	if !p.checkAssignable(x) {
		return p.bad(t.pos)
	}
	lv, dt := x.lv, x.typ.dt
	delta := int64(1)
	if t.text == "--" {
		delta = -1
	}
	res := &operand{typ: ctype{dt: dt}, pos: x.pos}
	if dt.IsFloat() {
		r := roundFunc(dt)
		res.f = func(f *frame) float64 {
			a := lv.addr(f)
			old := lv.loadF(f, a)
			v := old + float64(delta)
			if r != nil {
				v = r(v)
			}
			lv.storeF(f, a, v)
			if prefix {
				return v
			}
			return old
		}
		return res
	}
	w := wrapFunc(dt)
	res.i = func(f *frame) int64 {
		a := lv.addr(f)
		old := lv.loadI(f, a)
		v := wrapOrSelf(w, old+delta)
		lv.storeI(f, a, v)
		if prefix {
			return v
		}
		return old
	}
	return res
}

func (p *parser) parsePostfix() *operand {
	x := p.parsePrimary()
	for {
		t := p.peek()
		switch {
		case t.is("["):
			p.next()
			index := p.parseExpr()
			p.expect("]")
			x = p.index(t.pos, x, index)
		case t.is("++"), t.is("--"):
			p.next()
			x = p.incDec(t, x, false)
		case t.is("."), t.is("->"):
			p.fail(t.pos, "member access is not supported")
		default:
			return x
		}
	}
}

// index compiles the access to an element of global memory.
func (p *parser) index(pos Pos, x, index *operand) *operand {
	if x.bad || index.bad {
		return p.bad(pos)
	}
	if !x.typ.ptr {
		p.errorf(pos, "subscripted value is not an array or pointer")
		return p.bad(pos)
	}
	if index.typ.ptr || index.typ.isFloat() {
		p.errorf(index.pos, "array subscript is not an integer")
		return p.bad(pos)
	}
	dt, param, name := x.typ.dt, x.param, x.name
	size := dt.Size()
	indexI := index.i
	addr := func(f *frame) int {
		i := indexI(f)
		n := len(f.bufs[param]) / size
		if i < 0 || i >= int64(n) {
			panic(&boundsError{pos: pos, name: name, index: i, len: n})
		}
		return int(i)
	}
	lv := &lvalue{addr: addr}
	if x.typ.constTarget {
		lv.readOnly = fmt.Sprintf("cannot assign to '%s[...]': it points to read-only memory", name)
	}
	res := &operand{typ: ctype{dt: dt}, pos: x.pos, lv: lv}
	if dt.IsFloat() {
		load, store := loadFloatFunc(dt), storeFloatFunc(dt)
		lv.loadF = func(f *frame, a int) float64 { return load(f.bufs[param], a) }
		lv.storeF = func(f *frame, a int, v float64) { store(f.bufs[param], a, v) }
		res.f = func(f *frame) float64 { return load(f.bufs[param], addr(f)) }
	} else {
		load, store := loadIntFunc(dt), storeIntFunc(dt)
		lv.loadI = func(f *frame, a int) int64 { return load(f.bufs[param], a) }
		lv.storeI = func(f *frame, a int, v int64) { store(f.bufs[param], a, v) }
		res.i = func(f *frame) int64 { return load(f.bufs[param], addr(f)) }
	}
	return res
}

func (p *parser) parsePrimary() *operand {
	t := p.peek()
	switch t.kind {
	case tokInt:
		p.next()
		return p.intLiteral(t)
	case tokFloat:
		p.next()
		return p.floatLiteral(t)
	case tokChar:
		p.next()
		value, err := strconv.Unquote(t.text)
		if err != nil || len([]rune(value)) != 1 {
			p.errorf(t.pos, "invalid character literal %s", t.text)
			return p.bad(t.pos)
		}
		return intConst(dtypes.Int32, t.pos, int64([]rune(value)[0]))
	case tokIdent:
		if p.isTypeStart(t) {
			p.fail(t.pos, "unexpected type name '%s': expected expression", t.text)
		}
		if isKeyword(t.text) {
			p.fail(t.pos, "expected expression, found %s", describe(t))
		}
		p.next()
		if p.peek().is("(") {
			return p.parseCall(t)
		}
		return p.identifier(t)
	case tokPunct:
		if t.is("(") {
			p.next()
			e := p.parseExpr()
			p.expect(")")
			return e
		}
	}
	p.fail(t.pos, "expected expression, found %s", describe(t))
	return nil
}

func (p *parser) identifier(t token) *operand {
	sym := p.lookup(t.text)
	if sym == nil {
		if c, found := predefinedConstants[t.text]; found {
			if c.dt.IsFloat() {
				return floatConst(c.dt, t.pos, c.f)
			}
			return intConst(c.dt, t.pos, c.i)
		}
		p.errorf(t.pos, "use of undeclared identifier '%s'", t.text)
		return p.bad(t.pos)
	}
	if sym.typ.ptr {
		return &operand{typ: sym.typ, pos: t.pos, name: sym.name, param: sym.param}
	}
	slot := sym.slot
	lv := &lvalue{addr: func(*frame) int { return slot }}
	if sym.isConst {
		lv.readOnly = fmt.Sprintf("cannot assign to variable '%s' with const-qualified type 'const %s'",
			sym.name, sym.typ.dt.CLName())
	}
	res := &operand{typ: sym.typ, pos: t.pos, lv: lv, name: sym.name}
	if sym.typ.dt.IsFloat() {
		lv.loadF = func(f *frame, a int) float64 { return f.floats[a] }
		lv.storeF = func(f *frame, a int, v float64) { f.floats[a] = v }
		res.f = func(f *frame) float64 { return f.floats[slot] }
	} else {
		lv.loadI = func(f *frame, a int) int64 { return f.ints[a] }
		lv.storeI = func(f *frame, a int, v int64) { f.ints[a] = v }
		res.i = func(f *frame) int64 { return f.ints[slot] }
	}
	return res
}

func (p *parser) intLiteral(t token) *operand {
	digits := strings.TrimRight(t.text, "uUlL")
	suffix := strings.ToLower(t.text[len(digits):])
	unsigned := strings.Contains(suffix, "u")
	long := strings.Contains(suffix, "l")
	v, err := strconv.ParseUint(digits, 0, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			p.errorf(t.pos, "integer literal is too large to be represented in any integer type")
		} else {
			p.errorf(t.pos, "invalid integer literal '%s'", t.text)
		}
		return p.bad(t.pos)
	}
	var dt dtypes.DType
	switch {
	case !unsigned && !long && v <= math.MaxInt32:
		dt = dtypes.Int32
	case unsigned && !long && v <= math.MaxUint32:
		dt = dtypes.Uint32
	case !unsigned && v <= math.MaxInt64:
		dt = dtypes.Int64
	default:
		dt = dtypes.Uint64
	}
	return intConst(dt, t.pos, int64(v))
}

func (p *parser) floatLiteral(t token) *operand {
	digits := strings.TrimRight(t.text, "fFhHlL")
	suffix := strings.ToLower(t.text[len(digits):])
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		p.errorf(t.pos, "invalid floating point literal '%s'", t.text)
		return p.bad(t.pos)
	}
	dt := dtypes.Float32
	switch suffix {
	case "h":
		dt = dtypes.Float16
	case "l":
		dt = dtypes.Float64
	}
	return floatConst(dt, t.pos, roundFloat(dt, v))
}
