// Package parser implements the single-pass recursive-descent parser
// with an integrated code generator, per the grammar in spec §4.4. The
// generator's write cursor doubles as the target program's instruction
// pointer, which is why parsing and code generation cannot be split
// into separate passes: forward branches for if/while are reserved as
// holes and patched once the parser has walked far enough to know
// where control should land.
package parser

import (
	"fmt"
	"strconv"

	"rascal/internal/codegen"
	"rascal/internal/scanner"
	"rascal/internal/symtab"
	"rascal/internal/token"
)

// SyntaxError reports a token mismatch. The parser aborts on the first
// one; there is no error recovery.
type SyntaxError struct {
	Pos      token.Pos
	Expected string
	Found    string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("Parser Error: Expected %s but found %s (%v)", e.Expected, e.Found, e.Pos)
}

// Parser drives a scanner.Scanner, consults and mutates a symtab.Table,
// and emits into a codegen.Generator as it goes.
type Parser struct {
	sc  *scanner.Scanner
	sym *symtab.Table
	gen *codegen.Generator
}

// New returns a parser over sc, using sym for declarations and emitting
// into gen.
func New(sc *scanner.Scanner, sym *symtab.Table, gen *codegen.Generator) *Parser {
	return &Parser{sc: sc, sym: sym, gen: gen}
}

// Compile parses a complete program (decls body '.' EOF) and emits its
// bytecode into the generator passed to New, finishing with an EXIT.
// It returns the first lex or parse error encountered, if any.
func (p *Parser) Compile() error {
	if err := p.sc.Advance(); err != nil {
		return err
	}
	if err := p.decls(); err != nil {
		return err
	}
	if err := p.body(); err != nil {
		return err
	}
	if _, err := p.expect(token.Dot); err != nil {
		return err
	}
	if cur := p.cur(); cur.Kind != token.EOF {
		return SyntaxError{Pos: cur.Pos, Expected: token.EOF.String(), Found: cur.Kind.String()}
	}
	p.gen.EmitOp(codegen.OpExit)
	return nil
}

func (p *Parser) cur() token.Token { return p.sc.CurToken }

func (p *Parser) advance() error { return p.sc.Advance() }

// expect consumes the current token if it has the given kind, else
// returns a SyntaxError. It never recovers: callers should return
// immediately on a non-nil error.
func (p *Parser) expect(kind token.Kind) (token.Token, error) {
	tok := p.cur()
	if tok.Kind != kind {
		return token.Token{}, SyntaxError{Pos: tok.Pos, Expected: kind.String(), Found: tok.Kind.String()}
	}
	if err := p.advance(); err != nil {
		return token.Token{}, err
	}
	return tok, nil
}

// decls → ε | 'var' namelist ':' decl_type decl_tail
// decl_tail → ε | ';' decls
//
// Each var group promotes its namelist's identifiers before the next
// group (if any) is parsed, which is what lets PromoteAllPlainIdents*
// operate on exactly the identifiers just named: every identifier
// declared earlier has already left the plain-identifier kind behind.
func (p *Parser) decls() error {
	for p.cur().Kind == token.KwVar {
		if err := p.advance(); err != nil {
			return err
		}
		names, err := p.namelist()
		if err != nil {
			return err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return err
		}
		dt, err := p.declType()
		if err != nil {
			return err
		}
		if dt.isArray && len(names) != 1 {
			return SyntaxError{
				Pos:      names[1].Pos,
				Expected: "single array identifier",
				Found:    fmt.Sprintf("%d identifiers in one array declaration", len(names)),
			}
		}

		if dt.isArray {
			base := p.gen.AllocN(1, dt.elemSize)
			p.sym.PromoteAllPlainIdentsToArray(base, dt.elemSize, dt.lo, dt.hi)
		} else {
			base := p.gen.AllocN(len(names), dt.elemSize)
			p.sym.PromoteAllPlainIdentsToScalar(base, dt.elemSize)
		}

		if p.cur().Kind == token.Semicolon {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	return nil
}

// namelist → ident (',' namelist)?
func (p *Parser) namelist() ([]token.Token, error) {
	var names []token.Token
	tok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	names = append(names, tok)
	for p.cur().Kind == token.Comma {
		if err := p.advance(); err != nil {
			return nil, err
		}
		tok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		names = append(names, tok)
	}
	return names, nil
}

// declType describes the right-hand side of a declaration: either a
// bare scalar (elemSize 4), or an array whose elemSize is the whole
// region's byte size (so the grammar's recursive
// 'array ... of decl_type' can nest array-of-array declarations, with
// storage sized correctly even though only the outer index is
// addressable through the factor grammar's single bracket).
type declType struct {
	isArray  bool
	lo, hi   int64
	elemSize uint32
}

// decl_type → 'integer' | 'array' '[' intlit '..' intlit ']' 'of' decl_type
func (p *Parser) declType() (declType, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.KwInteger:
		if err := p.advance(); err != nil {
			return declType{}, err
		}
		return declType{elemSize: 4}, nil

	case token.KwArray:
		if err := p.advance(); err != nil {
			return declType{}, err
		}
		if _, err := p.expect(token.LBracket); err != nil {
			return declType{}, err
		}
		loTok, err := p.expect(token.IntLit)
		if err != nil {
			return declType{}, err
		}
		if _, err := p.expect(token.DotDot); err != nil {
			return declType{}, err
		}
		hiTok, err := p.expect(token.IntLit)
		if err != nil {
			return declType{}, err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return declType{}, err
		}
		if _, err := p.expect(token.KwOf); err != nil {
			return declType{}, err
		}
		inner, err := p.declType()
		if err != nil {
			return declType{}, err
		}

		lo, _ := strconv.ParseInt(loTok.Lexeme, 10, 64)
		hi, _ := strconv.ParseInt(hiTok.Lexeme, 10, 64)
		if hi < lo {
			return declType{}, SyntaxError{Pos: hiTok.Pos, Expected: "high bound >= low bound", Found: fmt.Sprintf("%d..%d", lo, hi)}
		}
		return declType{isArray: true, lo: lo, hi: hi, elemSize: uint32(hi-lo+1) * inner.elemSize}, nil

	default:
		return declType{}, SyntaxError{Pos: tok.Pos, Expected: "integer or array", Found: tok.Kind.String()}
	}
}

// body → 'begin' stats 'end'
func (p *Parser) body() error {
	if _, err := p.expect(token.KwBegin); err != nil {
		return err
	}
	if err := p.stats(); err != nil {
		return err
	}
	_, err := p.expect(token.KwEnd)
	return err
}

// stats → ε | stat ';' stats
func (p *Parser) stats() error {
	for p.startsStat() {
		if err := p.stat(); err != nil {
			return err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) startsStat() bool {
	switch p.cur().Kind {
	case token.Ident, token.ScalarVar, token.ArrayVar,
		token.KwRepeat, token.KwWhile, token.KwIf, token.KwWrite:
		return true
	default:
		return false
	}
}

// stat → assign | array_assign | repeat_st | while_st | if_st | write_st
func (p *Parser) stat() error {
	switch p.cur().Kind {
	case token.KwRepeat:
		return p.repeatStat()
	case token.KwWhile:
		return p.whileStat()
	case token.KwIf:
		return p.ifStat()
	case token.KwWrite:
		return p.writeStat()
	case token.Ident, token.ScalarVar, token.ArrayVar:
		return p.assignStat()
	default:
		tok := p.cur()
		return SyntaxError{Pos: tok.Pos, Expected: "statement", Found: tok.Kind.String()}
	}
}

// assignStat dispatches between scalar and array assignment once it
// sees whether '[' follows the variable reference.
func (p *Parser) assignStat() error {
	idTok := p.cur()
	if idTok.Addr == nil {
		return SyntaxError{Pos: idTok.Pos, Expected: "declared variable", Found: fmt.Sprintf("undeclared identifier %q", idTok.Lexeme)}
	}
	if err := p.advance(); err != nil {
		return err
	}
	if p.cur().Kind == token.LBracket {
		return p.arrayAssign(idTok)
	}
	return p.scalarAssign(idTok)
}

// Scalar assignment `id := e`: PUSH <addr of id>; compile(e); STORE.
// STORE pops value then address.
func (p *Parser) scalarAssign(idTok token.Token) error {
	if idTok.IsArray() {
		return SyntaxError{Pos: idTok.Pos, Expected: ":=", Found: "["}
	}
	if _, err := p.expect(token.Assign); err != nil {
		return err
	}
	p.gen.EmitOp(codegen.OpPush)
	p.gen.EmitU32(*idTok.Addr)
	if err := p.expression(); err != nil {
		return err
	}
	p.gen.EmitOp(codegen.OpStore)
	return nil
}

// Array assignment `id[e1] := e2`: compile e1, compute the effective
// address base + (e1-lo)*4, compile e2, STORE.
func (p *Parser) arrayAssign(idTok token.Token) error {
	if !idTok.IsArray() {
		return SyntaxError{Pos: idTok.Pos, Expected: "array variable", Found: fmt.Sprintf("scalar variable %q", idTok.Lexeme)}
	}
	if _, err := p.expect(token.LBracket); err != nil {
		return err
	}
	if err := p.expression(); err != nil {
		return err
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return err
	}
	p.emitArrayAddress(idTok)
	if err := p.expression(); err != nil {
		return err
	}
	p.gen.EmitOp(codegen.OpStore)
	return nil
}

// emitArrayAddress compiles the effective-address arithmetic shared by
// array assignment and array factor access: base + (index - lo) * 4.
// The index expression must already be on top of the evaluation stack.
func (p *Parser) emitArrayAddress(idTok token.Token) {
	if *idTok.Low != 0 {
		p.gen.EmitOp(codegen.OpPush)
		p.gen.EmitU32(uint32(*idTok.Low))
		p.gen.EmitOp(codegen.OpSub)
	}
	p.gen.EmitOp(codegen.OpPush)
	p.gen.EmitU32(4)
	p.gen.EmitOp(codegen.OpMult)
	p.gen.EmitOp(codegen.OpPush)
	p.gen.EmitU32(*idTok.Addr)
	p.gen.EmitOp(codegen.OpAdd)
}

// repeat_st → 'repeat' stats 'until' expression
//
// label is recorded before compiling the body, the same as while, but
// the guard is evaluated only once per iteration *after* the body
// runs. Open Question 2 in spec §9 flags that a literal JTRUE here
// would loop while the guard is true — the opposite of conventional
// repeat/until. We emit JFALSE instead, so the loop re-enters while
// the guard is still false and exits the moment it becomes true.
func (p *Parser) repeatStat() error {
	if err := p.advance(); err != nil {
		return err
	}
	label := p.gen.Ip()
	if err := p.stats(); err != nil {
		return err
	}
	if _, err := p.expect(token.KwUntil); err != nil {
		return err
	}
	if err := p.expression(); err != nil {
		return err
	}
	p.gen.EmitOp(codegen.OpPush)
	p.gen.EmitU32(uint32(label))
	p.gen.EmitOp(codegen.OpJFalse)
	return nil
}

// while_st → 'while' expression 'do' body
func (p *Parser) whileStat() error {
	if err := p.advance(); err != nil {
		return err
	}
	label := p.gen.Ip()
	if err := p.expression(); err != nil {
		return err
	}
	if _, err := p.expect(token.KwDo); err != nil {
		return err
	}

	p.gen.EmitOp(codegen.OpPush)
	hole := p.gen.ReserveHole()
	p.gen.EmitOp(codegen.OpJFalse)

	if err := p.body(); err != nil {
		return err
	}

	p.gen.EmitOp(codegen.OpPush)
	p.gen.EmitU32(uint32(label))
	p.gen.EmitOp(codegen.OpJmp)

	p.gen.Patch(hole, uint32(p.gen.Ip()))
	return nil
}

// if_st → 'if' expression 'then' body ('else' body)?
func (p *Parser) ifStat() error {
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expression(); err != nil {
		return err
	}
	if _, err := p.expect(token.KwThen); err != nil {
		return err
	}

	p.gen.EmitOp(codegen.OpPush)
	hole1 := p.gen.ReserveHole()
	p.gen.EmitOp(codegen.OpJFalse)

	if err := p.body(); err != nil {
		return err
	}

	if p.cur().Kind == token.KwElse {
		if err := p.advance(); err != nil {
			return err
		}
		p.gen.EmitOp(codegen.OpPush)
		hole2 := p.gen.ReserveHole()
		p.gen.EmitOp(codegen.OpJmp)

		p.gen.Patch(hole1, uint32(p.gen.Ip()))

		if err := p.body(); err != nil {
			return err
		}
		p.gen.Patch(hole2, uint32(p.gen.Ip()))
	} else {
		p.gen.Patch(hole1, uint32(p.gen.Ip()))
	}
	return nil
}

// write_st → 'write' '(' expression ')'
func (p *Parser) writeStat() error {
	if err := p.advance(); err != nil {
		return err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	if err := p.expression(); err != nil {
		return err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return err
	}
	p.gen.EmitOp(codegen.OpWrite)
	return nil
}

// expression → term (('+'|'-'|'or') term)*
func (p *Parser) expression() error {
	if err := p.term(); err != nil {
		return err
	}
	for {
		switch p.cur().Kind {
		case token.Plus:
			if err := p.advance(); err != nil {
				return err
			}
			if err := p.term(); err != nil {
				return err
			}
			p.gen.EmitOp(codegen.OpAdd)
		case token.Minus:
			if err := p.advance(); err != nil {
				return err
			}
			if err := p.term(); err != nil {
				return err
			}
			p.gen.EmitOp(codegen.OpSub)
		case token.Or:
			if err := p.advance(); err != nil {
				return err
			}
			if err := p.term(); err != nil {
				return err
			}
			p.gen.EmitOp(codegen.OpOr)
		default:
			return nil
		}
	}
}

// term → factor (('*'|'/'|'and'|'='|'<>'|'<'|'<='|'>'|'>=') factor)*
//
// Relational and equality operators deliberately share term's
// precedence level with '*'/'/', per spec §4.4 — this is carried
// forward unchanged rather than "fixed", since spec §1 scopes out any
// redesign of operator precedence.
func (p *Parser) term() error {
	if err := p.factor(); err != nil {
		return err
	}
	for {
		op, ok := termOps[p.cur().Kind]
		if !ok {
			return nil
		}
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.factor(); err != nil {
			return err
		}
		p.gen.EmitOp(op)
	}
}

var termOps = map[token.Kind]codegen.Op{
	token.Star:  codegen.OpMult,
	token.Slash: codegen.OpDivi,
	token.And:   codegen.OpAnd,
	token.Eq:    codegen.OpEq,
	token.Neq:   codegen.OpNe,
	token.Lt:    codegen.OpLt,
	token.Le:    codegen.OpLe,
	token.Gt:    codegen.OpGt,
	token.Ge:    codegen.OpGe,
}

// factor → intlit | scalar_var | array_var '[' expression ']'
//
//	| '-' factor | '(' expression ')'
//
// Real literals are tokenized (spec §3) but rejected here: spec §9
// Open Question 4's first alternative, since no codegen path for
// floating point exists anywhere in this toolchain.
func (p *Parser) factor() error {
	tok := p.cur()
	switch tok.Kind {
	case token.IntLit:
		if err := p.advance(); err != nil {
			return err
		}
		v, err := strconv.ParseUint(tok.Lexeme, 10, 64)
		if err != nil {
			return SyntaxError{Pos: tok.Pos, Expected: "integer literal", Found: tok.Lexeme}
		}
		p.gen.EmitOp(codegen.OpPush)
		p.gen.EmitU32(uint32(v))
		return nil

	case token.RealLit:
		return SyntaxError{Pos: tok.Pos, Expected: "integer literal", Found: fmt.Sprintf("real literal %q", tok.Lexeme)}

	case token.ScalarVar:
		if err := p.advance(); err != nil {
			return err
		}
		p.gen.EmitOp(codegen.OpPush)
		p.gen.EmitU32(*tok.Addr)
		p.gen.EmitOp(codegen.OpLoad)
		return nil

	case token.ArrayVar:
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.expect(token.LBracket); err != nil {
			return err
		}
		if err := p.expression(); err != nil {
			return err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return err
		}
		p.emitArrayAddress(tok)
		p.gen.EmitOp(codegen.OpLoad)
		return nil

	case token.Ident:
		return SyntaxError{Pos: tok.Pos, Expected: "declared variable", Found: fmt.Sprintf("undeclared identifier %q", tok.Lexeme)}

	case token.Minus:
		// Synthesized rather than given its own opcode: PUSH 0 then
		// SUB leaves -factor on the stack, the same way the source
		// toolchain's FIRST primitives synthesize derived operations
		// from a smaller instruction set instead of growing the table.
		if err := p.advance(); err != nil {
			return err
		}
		p.gen.EmitOp(codegen.OpPush)
		p.gen.EmitU32(0)
		if err := p.factor(); err != nil {
			return err
		}
		p.gen.EmitOp(codegen.OpSub)
		return nil

	case token.LParen:
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.expression(); err != nil {
			return err
		}
		_, err := p.expect(token.RParen)
		return err

	default:
		return SyntaxError{Pos: tok.Pos, Expected: "factor", Found: tok.Kind.String()}
	}
}
