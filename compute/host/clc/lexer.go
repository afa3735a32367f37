package clc

import (
	"strings"
	"text/scanner"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokChar
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  Pos
}

func (t token) is(text string) bool {
	return (t.kind == tokPunct || t.kind == tokIdent) && t.text == text
}

// Operators of more than one character.
var multiCharOps = map[string]bool{
	"++": true, "--": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"<<": true, ">>": true, "<=": true, ">=": true, "==": true, "!=": true,
	"&&": true, "||": true, "&=": true, "|=": true, "^=": true, "->": true,
	"<<=": true, ">>=": true,
}

// tokenize splits source into tokens. Positions are relative to the given line offset, so macro bodies report
// the line where they were defined.
func tokenize(file, source string, lineOffset int, diags *Diagnostics) []token {
	var s scanner.Scanner
	s.Init(strings.NewReader(source))
	s.Filename = file
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanChars |
		scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	s.Error = func(s *scanner.Scanner, msg string) {
		*diags = append(*diags, Diagnostic{File: file, Pos: Pos{Line: s.Pos().Line + lineOffset, Col: s.Pos().Column},
			Msg: msg})
	}

	var tokens []token
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		t := token{text: s.TokenText(), pos: Pos{Line: s.Position.Line + lineOffset, Col: s.Position.Column}}
		switch tok {
		case scanner.Ident:
			t.kind = tokIdent
		case scanner.Int, scanner.Float:
			t.kind = tokInt
			if tok == scanner.Float {
				t.kind = tokFloat
			}
			// C literal suffixes.
			for r := s.Peek(); strings.ContainsRune("uUlLfFhH", r); r = s.Peek() {
				t.text += string(s.Next())
			}
			if t.kind == tokInt && strings.ContainsAny(t.text, "fF") && !isHexLiteral(t.text) {
				t.kind = tokFloat
			}
		case scanner.Char:
			t.kind = tokChar
		case scanner.String, scanner.RawString:
			t.kind = tokString
		default:
			t.kind = tokPunct
			if next := s.Peek(); next != scanner.EOF && multiCharOps[t.text+string(next)] {
				t.text += string(s.Next())
				if (t.text == "<<" || t.text == ">>") && s.Peek() == '=' {
					t.text += string(s.Next())
				}
			}
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func isHexLiteral(text string) bool {
	return len(text) > 1 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X')
}

// macro is an object-like macro: #define NAME body.
type macro struct {
	name string
	body []token
}

// preprocess handles the directives of the source, and returns the source with the directive lines blanked out
// (so line numbers are kept) plus the macros defined.
//
// Supported directives: #define (object-like), #undef, #ifdef, #ifndef, #else, #endif and #pragma (ignored).
func preprocess(file, source string, macros map[string]*macro, diags *Diagnostics) string {
	lines := strings.Split(source, "\n")
	type condFrame struct {
		active, parentActive, sawElse bool
		pos                           Pos
	}
	var conds []condFrame
	active := true
	errorf := func(line int, col int, msg string) {
		*diags = append(*diags, Diagnostic{File: file, Pos: Pos{Line: line, Col: col}, Msg: msg})
	}

	for ii := 0; ii < len(lines); ii++ {
		lineNum := ii + 1
		trimmed := strings.TrimLeftFunc(lines[ii], unicode.IsSpace)
		if !strings.HasPrefix(trimmed, "#") {
			if !active {
				lines[ii] = ""
			}
			continue
		}
		col := len(lines[ii]) - len(trimmed) + 1

		// Join continuation lines, blanking them.
		directive := lines[ii]
		lines[ii] = ""
		for strings.HasSuffix(directive, "\\") && ii+1 < len(lines) {
			directive = strings.TrimSuffix(directive, "\\") + " " + lines[ii+1]
			ii++
			lines[ii] = ""
		}
		name, rest := cutSpace(strings.TrimSpace(strings.TrimSpace(directive)[1:]))

		switch name {
		case "ifdef", "ifndef":
			_, defined := macros[firstWord(rest)]
			conds = append(conds, condFrame{active: active && defined == (name == "ifdef"), parentActive: active,
				pos: Pos{Line: lineNum, Col: col}})
			active = conds[len(conds)-1].active
			continue
		case "else":
			if len(conds) == 0 {
				errorf(lineNum, col, "#else without #if")
				continue
			}
			top := &conds[len(conds)-1]
			if top.sawElse {
				errorf(lineNum, col, "#else after #else")
				continue
			}
			top.sawElse = true
			top.active = top.parentActive && !top.active
			active = top.active
			continue
		case "endif":
			if len(conds) == 0 {
				errorf(lineNum, col, "#endif without #if")
				continue
			}
			active = conds[len(conds)-1].parentActive
			conds = conds[:len(conds)-1]
			continue
		}
		if !active {
			continue
		}

		switch name {
		case "define":
			macroName, body := cutSpace(rest)
			if paren := strings.IndexByte(macroName, '('); paren >= 0 {
				errorf(lineNum, col, "function-like macros are not supported")
				continue
			}
			if macroName == "" || !isIdentifier(macroName) {
				errorf(lineNum, col, "macro name must be an identifier")
				continue
			}
			macros[macroName] = &macro{name: macroName, body: tokenize(file, body, lineNum-1, diags)}
		case "undef":
			delete(macros, firstWord(rest))
		case "pragma", "":
			// Ignored.
		default:
			errorf(lineNum, col, "unsupported preprocessor directive '#"+name+"'")
		}
	}
	if len(conds) > 0 {
		top := conds[len(conds)-1]
		errorf(top.pos.Line, top.pos.Col, "unterminated conditional directive")
	}
	return strings.Join(lines, "\n")
}

// cutSpace splits s at its first white space.
func cutSpace(s string) (before, after string) {
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx:])
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func isIdentifier(s string) bool {
	for ii, r := range s {
		if !(r == '_' || unicode.IsLetter(r) || (ii > 0 && unicode.IsDigit(r))) {
			return false
		}
	}
	return s != ""
}

// expandMacros replaces identifiers that name macros by their bodies, recursively. Expanded tokens take the
// position of the identifier they replace.
func expandMacros(tokens []token, macros map[string]*macro) []token {
	if len(macros) == 0 {
		return tokens
	}
	var out []token
	var expand func(tokens []token, pos *Pos, active map[string]bool)
	expand = func(tokens []token, pos *Pos, active map[string]bool) {
		for _, t := range tokens {
			if pos != nil {
				t.pos = *pos
			}
			if t.kind == tokIdent {
				if m, found := macros[t.text]; found && !active[t.text] {
					active[t.text] = true
					usePos := t.pos
					expand(m.body, &usePos, active)
					delete(active, t.text)
					continue
				}
			}
			out = append(out, t)
		}
	}
	expand(tokens, nil, make(map[string]bool))
	return out
}
