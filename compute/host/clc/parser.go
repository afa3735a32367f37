package clc

import (
	"fmt"

	"github.com/gomlx/clvec/dtypes"
)

// parser builds the closures of the kernels while parsing: there is no intermediate syntax tree.
//
// Syntax errors abort the parsing (see fail), other errors are collected and the parsing continues (see errorf).
type parser struct {
	file  string
	toks  []token
	pos   int
	diags Diagnostics

	kernel    *Kernel
	scopes    []map[string]*symbol
	loopDepth int
}

// symbol is a variable or a parameter in scope.
type symbol struct {
	name    string
	typ     ctype
	isConst bool

	// slot of scalars, in frame.ints or frame.floats.
	slot int

	// param is the parameter index of pointers, in frame.bufs.
	param int
}

func newParser(file string, toks []token) *parser {
	return &parser{file: file, toks: toks}
}

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	eof := token{kind: tokEOF, pos: Pos{Line: 1, Col: 1}}
	if len(p.toks) > 0 {
		last := p.toks[len(p.toks)-1]
		eof.pos = Pos{Line: last.pos.Line, Col: last.pos.Col + len(last.text)}
	}
	return eof
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) accept(text string) bool {
	if p.peek().is(text) {
		p.pos++
		return true
	}
	return false
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of file"
	}
	return "'" + t.text + "'"
}

func (p *parser) expect(text string) token {
	t := p.peek()
	if !t.is(text) {
		p.fail(t.pos, "expected '%s', found %s", text, describe(t))
	}
	return p.next()
}

func (p *parser) expectAfter(text, after string) {
	t := p.peek()
	if !t.is(text) {
		p.fail(t.pos, "expected '%s' after %s", text, after)
	}
	p.next()
}

func (p *parser) expectIdent() token {
	t := p.peek()
	if t.kind != tokIdent || isKeyword(t.text) {
		p.fail(t.pos, "expected identifier, found %s", describe(t))
	}
	return p.next()
}

// fail reports a syntax error and aborts the parsing.
func (p *parser) fail(pos Pos, format string, args ...any) {
	panic(syntaxError{Diagnostic{File: p.file, Pos: pos, Msg: fmt.Sprintf(format, args...)}})
}

// errorf reports an error and continues.
func (p *parser) errorf(pos Pos, format string, args ...any) {
	p.diags = append(p.diags, Diagnostic{File: p.file, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

var keywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true, "return": true, "break": true,
	"continue": true, "switch": true, "case": true, "default": true, "goto": true, "sizeof": true,
	"struct": true, "union": true, "typedef": true, "void": true,
}

func isKeyword(name string) bool {
	return keywords[name] || isQualifier(name) || isTypeKeyword(name)
}

func isQualifier(name string) bool {
	switch name {
	case "const", "volatile", "restrict", "__restrict", "__global", "global", "__constant", "constant",
		"__local", "local", "__private", "private", "__kernel", "kernel":
		return true
	}
	return false
}

func isTypeKeyword(name string) bool {
	_, found := scalarTypes[name]
	return found || name == "unsigned" || name == "signed"
}

// isTypeStart returns whether t starts a declaration.
func (p *parser) isTypeStart(t token) bool {
	if t.kind != tokIdent {
		return false
	}
	if isTypeKeyword(t.text) || isVectorType(t.text) {
		return true
	}
	return isQualifier(t.text) && t.text != "__kernel" && t.text != "kernel"
}

func (p *parser) pushScope() {
	p.scopes = append(p.scopes, make(map[string]*symbol))
}

func (p *parser) popScope() {
	p.scopes = p.scopes[:len(p.scopes)-1]
}

func (p *parser) declare(nameTok token, sym *symbol) {
	scope := p.scopes[len(p.scopes)-1]
	if _, found := scope[sym.name]; found {
		p.errorf(nameTok.pos, "redefinition of '%s'", sym.name)
		return
	}
	scope[sym.name] = sym
}

func (p *parser) lookup(name string) *symbol {
	for ii := len(p.scopes) - 1; ii >= 0; ii-- {
		if sym, found := p.scopes[ii][name]; found {
			return sym
		}
	}
	return nil
}

// newSlot allocates a frame slot for a scalar of the given type.
func (p *parser) newSlot(dt dtypes.DType) int {
	k := p.kernel
	if dt.IsFloat() {
		k.numFloats++
		return k.numFloats - 1
	}
	k.numInts++
	return k.numInts - 1
}

func (p *parser) parseProgram() (kernels []*Kernel) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(syntaxError)
			if !ok {
				panic(r)
			}
			p.diags = append(p.diags, se.diag)
		}
	}()
	seen := make(map[string]bool)
	for p.peek().kind != tokEOF {
		if p.accept(";") {
			continue
		}
		k := p.parseKernel()
		if seen[k.Name] {
			p.errorf(k.Pos, "redefinition of '%s'", k.Name)
		}
		seen[k.Name] = true
		kernels = append(kernels, k)
	}
	return kernels
}

// skipAttributes skips `__attribute__((...))` specifiers.
func (p *parser) skipAttributes() {
	for p.accept("__attribute__") {
		p.expect("(")
		depth := 1
		for depth > 0 {
			t := p.next()
			switch {
			case t.kind == tokEOF:
				p.fail(t.pos, "expected ')', found end of file")
			case t.is("("):
				depth++
			case t.is(")"):
				depth--
			}
		}
	}
}

func (p *parser) parseKernel() *Kernel {
	start := p.peek()
	if !p.accept("__kernel") && !p.accept("kernel") {
		if p.isTypeStart(start) || start.is("void") {
			p.fail(start.pos, "only kernel functions are supported, missing '__kernel'")
		}
		p.fail(start.pos, "expected '__kernel', found %s", describe(start))
	}
	p.skipAttributes()
	if t := p.peek(); !t.is("void") {
		p.fail(t.pos, "kernel functions must have a void return type")
	}
	p.next()
	p.skipAttributes()
	nameTok := p.expectIdent()
	k := &Kernel{Name: nameTok.text, Pos: nameTok.pos}
	p.kernel = k
	p.scopes = nil
	p.pushScope()
	defer p.popScope()

	p.expect("(")
	if p.peek().is("void") && p.peekAt(1).is(")") {
		p.next()
	}
	if !p.peek().is(")") {
		for {
			p.parseParam(len(k.Params))
			if !p.accept(",") {
				break
			}
		}
	}
	p.expect(")")
	p.skipAttributes()
	if !p.peek().is("{") {
		p.fail(p.peek().pos, "expected function body after kernel declarator")
	}
	k.body = p.parseBlock(false)
	return k
}

func (p *parser) parseParam(index int) {
	start := p.peek().pos
	var addrSpace string
	isConst := false
qualifiers:
	for {
		t := p.peek()
		switch t.text {
		case "__global", "global":
			addrSpace = "__global"
		case "__constant", "constant":
			addrSpace = "__constant"
		case "__local", "local":
			addrSpace = "__local"
		case "__private", "private", "volatile":
		case "const":
			isConst = true
		default:
			break qualifiers
		}
		p.next()
	}
	dt, typeName := p.parseTypeName()
	for p.accept("const") {
		isConst = true
	}
	isPointer := false
	if p.accept("*") {
		isPointer = true
		for p.accept("const") || p.accept("restrict") || p.accept("__restrict") || p.accept("volatile") {
		}
		if t := p.peek(); t.is("*") {
			p.fail(t.pos, "pointers to pointers are not supported")
		}
	}
	nameTok := p.expectIdent()
	param := Param{Name: nameTok.text, TypeName: typeName, DType: dt, IsPointer: isPointer, IsConst: isConst}
	sym := &symbol{name: nameTok.text, param: -1, slot: -1}
	k := p.kernel
	if isPointer {
		switch addrSpace {
		case "__global":
		case "__constant":
			param.IsConst = true
		case "__local":
			p.errorf(start, "__local kernel arguments are not supported")
		default:
			p.errorf(start, "pointer kernel argument '%s' must be declared __global or __constant", nameTok.text)
		}
		sym.typ = ctype{dt: dt, ptr: true, constTarget: param.IsConst}
		sym.param = index
		k.paramSlots = append(k.paramSlots, -1)
	} else {
		if addrSpace != "" {
			p.errorf(start, "scalar kernel argument '%s' cannot be in the %s address space", nameTok.text, addrSpace)
		}
		sym.typ = ctype{dt: dt}
		sym.isConst = isConst
		sym.slot = p.newSlot(dt)
		k.paramSlots = append(k.paramSlots, sym.slot)
	}
	p.declare(nameTok, sym)
	k.Params = append(k.Params, param)
}

var unsignedOf = map[dtypes.DType]dtypes.DType{
	dtypes.Int8:  dtypes.Uint8,
	dtypes.Int16: dtypes.Uint16,
	dtypes.Int32: dtypes.Uint32,
	dtypes.Int64: dtypes.Uint64,
}

// parseTypeName parses a scalar type, including the "unsigned int" and "long int" spellings.
func (p *parser) parseTypeName() (dtypes.DType, string) {
	t := p.peek()
	if t.kind != tokIdent {
		p.fail(t.pos, "expected a type, found %s", describe(t))
	}
	switch t.text {
	case "unsigned", "signed":
		p.next()
		base := "int"
		if next := p.peek(); next.is("char") || next.is("short") || next.is("int") || next.is("long") {
			p.next()
			base = next.text
			if base != "int" {
				p.accept("int")
			}
		}
		dt := scalarTypes[base]
		if t.text == "unsigned" {
			dt = unsignedOf[dt]
		}
		return dt, t.text + " " + base
	case "short", "long":
		p.next()
		p.accept("int")
		return scalarTypes[t.text], t.text
	}
	if dt, found := scalarTypes[t.text]; found {
		p.next()
		return dt, t.text
	}
	if isVectorType(t.text) {
		p.fail(t.pos, "vector type '%s' is not supported", t.text)
	}
	if t.text == "void" {
		p.fail(t.pos, "'void' is not allowed here")
	}
	p.fail(t.pos, "unknown type name '%s'", t.text)
	return dtypes.InvalidDType, ""
}

func seq(stmts []stmtFunc) stmtFunc {
	switch len(stmts) {
	case 0:
		return func(*frame) ctrl { return ctrlNext }
	case 1:
		return stmts[0]
	}
	return func(f *frame) ctrl {
		for _, s := range stmts {
			if c := s(f); c != ctrlNext {
				return c
			}
		}
		return ctrlNext
	}
}

func orNop(s stmtFunc) stmtFunc {
	if s == nil {
		return func(*frame) ctrl { return ctrlNext }
	}
	return s
}

// parseBlock parses `{ statements }`. If newScope is false the statements are declared in the current scope.
func (p *parser) parseBlock(newScope bool) stmtFunc {
	p.expect("{")
	if newScope {
		p.pushScope()
		defer p.popScope()
	}
	var stmts []stmtFunc
	for !p.peek().is("}") {
		if t := p.peek(); t.kind == tokEOF {
			p.fail(t.pos, "expected '}', found end of file")
		}
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.next()
	return seq(stmts)
}

// parseStatement returns nil for statements without effect.
func (p *parser) parseStatement() stmtFunc {
	t := p.peek()
	switch {
	case t.is("{"):
		return p.parseBlock(true)
	case t.is(";"):
		p.next()
		return nil
	case t.is("if"):
		return p.parseIf()
	case t.is("for"):
		return p.parseFor()
	case t.is("while"):
		return p.parseWhile()
	case t.is("do"):
		return p.parseDoWhile()
	case t.is("return"):
		p.next()
		if !p.peek().is(";") {
			e := p.parseExpr()
			p.errorf(e.pos, "void function '%s' should not return a value", p.kernel.Name)
		}
		p.expectAfter(";", "return statement")
		return func(*frame) ctrl { return ctrlReturn }
	case t.is("break"), t.is("continue"):
		p.next()
		p.expectAfter(";", t.text+" statement")
		if p.loopDepth == 0 {
			p.errorf(t.pos, "'%s' statement not in loop statement", t.text)
			return nil
		}
		if t.text == "break" {
			return func(*frame) ctrl { return ctrlBreak }
		}
		return func(*frame) ctrl { return ctrlContinue }
	case t.is("switch"), t.is("goto"), t.is("case"), t.is("default"):
		p.fail(t.pos, "'%s' statements are not supported", t.text)
	case p.isTypeStart(t):
		return p.parseDeclaration()
	}
	e := p.parseExpr()
	p.expectAfter(";", "expression")
	return p.exprStmt(e)
}

func (p *parser) exprStmt(e *operand) stmtFunc {
	if effect := sideEffect(e); effect != nil {
		return func(f *frame) ctrl {
			effect(f)
			return ctrlNext
		}
	}
	return nil
}

func (p *parser) parseDeclaration() stmtFunc {
	isConst := false
qualifiers:
	for {
		t := p.peek()
		switch t.text {
		case "const":
			isConst = true
		case "volatile", "__private", "private":
		case "__global", "global", "__local", "local", "__constant", "constant":
			p.errorf(t.pos, "variables in the %s address space are not supported", t.text)
		default:
			break qualifiers
		}
		p.next()
	}
	dt, typeName := p.parseTypeName()
	for p.accept("const") {
		isConst = true
	}
	var stmts []stmtFunc
	for {
		if t := p.peek(); t.is("*") {
			p.fail(t.pos, "local pointer variables are not supported")
		}
		nameTok := p.expectIdent()
		if t := p.peek(); t.is("[") {
			p.fail(t.pos, "arrays are not supported")
		}
		var init *operand
		if p.accept("=") {
			init = p.parseAssign()
		} else if isConst {
			p.errorf(nameTok.pos, "default initialization of an object of const type 'const %s'", typeName)
		}
		sym := &symbol{name: nameTok.text, typ: ctype{dt: dt}, isConst: isConst, slot: p.newSlot(dt), param: -1}
		stmts = append(stmts, p.initStmt(sym, init))
		p.declare(nameTok, sym)
		if !p.accept(",") {
			break
		}
	}
	p.expectAfter(";", "declaration")
	return seq(stmts)
}

// initStmt sets the variable to its initial value, or zero if there is no initializer.
func (p *parser) initStmt(sym *symbol, init *operand) stmtFunc {
	slot := sym.slot
	if init == nil {
		if sym.typ.dt.IsFloat() {
			return func(f *frame) ctrl { f.floats[slot] = 0; return ctrlNext }
		}
		return func(f *frame) ctrl { f.ints[slot] = 0; return ctrlNext }
	}
	value := p.convert(init, sym.typ.dt)
	if value.bad {
		return nil
	}
	if sym.typ.dt.IsFloat() {
		vf := value.f
		return func(f *frame) ctrl { f.floats[slot] = vf(f); return ctrlNext }
	}
	vi := value.i
	return func(f *frame) ctrl { f.ints[slot] = vi(f); return ctrlNext }
}

func (p *parser) parseCondition() func(*frame) bool {
	p.expect("(")
	cond := p.truth(p.parseExpr())
	p.expect(")")
	return cond
}

func (p *parser) parseIf() stmtFunc {
	p.next()
	cond := p.parseCondition()
	then := orNop(p.parseStatement())
	var otherwise stmtFunc
	if p.accept("else") {
		otherwise = p.parseStatement()
	}
	if otherwise == nil {
		return func(f *frame) ctrl {
			if cond(f) {
				return then(f)
			}
			return ctrlNext
		}
	}
	return func(f *frame) ctrl {
		if cond(f) {
			return then(f)
		}
		return otherwise(f)
	}
}

func (p *parser) parseLoopBody() stmtFunc {
	p.loopDepth++
	defer func() { p.loopDepth-- }()
	return orNop(p.parseStatement())
}

func (p *parser) parseFor() stmtFunc {
	p.next()
	p.expect("(")
	p.pushScope()
	defer p.popScope()
	var init stmtFunc
	if !p.accept(";") {
		if p.isTypeStart(p.peek()) {
			init = p.parseDeclaration()
		} else {
			init = p.exprStmt(p.parseExpr())
			p.expectAfter(";", "for loop initializer")
		}
	}
	var cond func(*frame) bool
	if !p.peek().is(";") {
		cond = p.truth(p.parseExpr())
	}
	p.expectAfter(";", "for loop condition")
	var post stmtFunc
	if !p.peek().is(")") {
		post = p.exprStmt(p.parseExpr())
	}
	p.expect(")")
	body := p.parseLoopBody()
	return func(f *frame) ctrl {
		if init != nil {
			init(f)
		}
		for cond == nil || cond(f) {
			switch body(f) {
			case ctrlBreak:
				return ctrlNext
			case ctrlReturn:
				return ctrlReturn
			}
			if post != nil {
				post(f)
			}
		}
		return ctrlNext
	}
}

func (p *parser) parseWhile() stmtFunc {
	p.next()
	cond := p.parseCondition()
	body := p.parseLoopBody()
	return func(f *frame) ctrl {
		for cond(f) {
			switch body(f) {
			case ctrlBreak:
				return ctrlNext
			case ctrlReturn:
				return ctrlReturn
			}
		}
		return ctrlNext
	}
}

func (p *parser) parseDoWhile() stmtFunc {
	p.next()
	body := p.parseLoopBody()
	if t := p.peek(); !t.is("while") {
		p.fail(t.pos, "expected 'while' in do/while loop")
	}
	p.next()
	cond := p.parseCondition()
	p.expectAfter(";", "do/while statement")
	return func(f *frame) ctrl {
		for {
			switch body(f) {
			case ctrlBreak:
				return ctrlNext
			case ctrlReturn:
				return ctrlReturn
			}
			if !cond(f) {
				return ctrlNext
			}
		}
	}
}
