// parser.go - Aurora language parser
// Completion: 100%
//
// Recursive-descent with precedence climbing. One function per grammar
// production, so the parser can be read
// against the EBNF line by line.
package main

import "strconv"

// Parser builds IR directly from a token stream; there is no separate
// untyped-AST intermediate stage.
type Parser struct {
	lex  *Lexer
	file string
}

func NewParser(src, file string) *Parser {
	return &Parser{lex: NewLexer(src, file), file: file}
}

// ParseProgram parses an entire source file into a Program.
func (p *Parser) ParseProgram() (*Program, *CompilerError) {
	first, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}

	prog := &Program{Loc: SourceLocation{File: p.file, Line: first.Line, Column: first.Column}}

	if first.Kind == TokModule {
		if err := p.parseModuleDecl(prog); err != nil {
			return nil, err
		}
	} else {
		for {
			tk, err := p.lex.Peek()
			if err != nil {
				return nil, err
			}
			if tk.Kind == TokEOF {
				break
			}
			if err := p.parseTopLevelDecl(prog, tk); err != nil {
				return nil, err
			}
		}
	}
	return prog, nil
}

func (p *Parser) parseModuleDecl(prog *Program) *CompilerError {
	if _, err := p.expect(TokModule); err != nil {
		return err
	}
	if _, err := p.expect(TokIdent); err != nil {
		return err
	}
	if _, err := p.expect(TokLBrace); err != nil {
		return err
	}
	for {
		tk, err := p.lex.Peek()
		if err != nil {
			return err
		}
		if tk.Kind == TokRBrace {
			p.lex.Next()
			break
		}
		if err := p.parseTopLevelDecl(prog, tk); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseTopLevelDecl(prog *Program, tk Token) *CompilerError {
	switch tk.Kind {
	case TokShared:
		decl, err := p.parseSharedDecl()
		if err != nil {
			return err
		}
		prog.Shared = append(prog.Shared, decl)
	case TokFn:
		fn, err := p.parseFunctionDecl()
		if err != nil {
			return err
		}
		prog.Functions = append(prog.Functions, fn)
	default:
		return parseErr("'shared' or 'fn'", tk.Kind.String(), p.tokLoc(tk))
	}
	return nil
}

func (p *Parser) tokLoc(tk Token) SourceLocation {
	return SourceLocation{File: p.file, Line: tk.Line, Column: tk.Column}
}

func (p *Parser) expect(kind TokenKind) (Token, *CompilerError) {
	tk, err := p.lex.Next()
	if err != nil {
		return Token{}, err
	}
	if tk.Kind != kind {
		return Token{}, parseErr(kind.String(), tk.Kind.String(), p.tokLoc(tk))
	}
	return tk, nil
}

func (p *Parser) at(kind TokenKind) (bool, *CompilerError) {
	tk, err := p.lex.Peek()
	if err != nil {
		return false, err
	}
	return tk.Kind == kind, nil
}

func (p *Parser) parseType() (Type, *CompilerError) {
	tk, err := p.lex.Next()
	if err != nil {
		return TypeUnknown, err
	}
	switch tk.Kind {
	case TokTypeInt:
		return TypeInt, nil
	case TokTypeFloat:
		return TypeFloat, nil
	case TokTypeBool:
		return TypeBool, nil
	case TokTypeString:
		return TypeString, nil
	case TokTypeThread:
		return TypeThread, nil
	case TokTypeArray:
		if _, err := p.expect(TokLt); err != nil {
			return TypeUnknown, err
		}
		elem, err := p.lex.Next()
		if err != nil {
			return TypeUnknown, err
		}
		if _, err := p.expect(TokGt); err != nil {
			return TypeUnknown, err
		}
		switch elem.Kind {
		case TokTypeInt:
			return TypeArrayInt, nil
		case TokTypeBool:
			return TypeArrayBool, nil
		default:
			return TypeUnknown, typeErr("array element type must be int or bool", p.tokLoc(elem))
		}
	default:
		return TypeUnknown, parseErr("type name", tk.Kind.String(), p.tokLoc(tk))
	}
}

// ---------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------

func (p *Parser) parseSharedDecl() (*SharedDecl, *CompilerError) {
	kw, err := p.expect(TokShared)
	if err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokColon); err != nil {
		return nil, err
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokAssign); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &SharedDecl{Name: name.Lexeme, Type: ty, Initial: init, Loc: p.tokLoc(kw)}, nil
}

func (p *Parser) parseFunctionDecl() (*FunctionDecl, *CompilerError) {
	kw, err := p.expect(TokFn)
	if err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	var params []Param
	has, err := p.at(TokRParen)
	if err != nil {
		return nil, err
	}
	for !has {
		pname, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon); err != nil {
			return nil, err
		}
		pty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Name: pname.Lexeme, Type: pty})

		comma, err := p.at(TokComma)
		if err != nil {
			return nil, err
		}
		if comma {
			p.lex.Next()
		}
		has, err = p.at(TokRParen)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}

	fn := &FunctionDecl{Name: name.Lexeme, Params: params, Loc: p.tokLoc(kw)}

	arrow, err := p.at(TokArrow)
	if err != nil {
		return nil, err
	}
	if arrow {
		p.lex.Next()
		rt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fn.ReturnType = rt
		fn.HasReturn = true
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	fn.LocalDecls = collectLocalDecls(body)
	return fn, nil
}

func collectLocalDecls(b *Block) []string {
	var names []string
	var walk func(s Stmt)
	walk = func(s Stmt) {
		switch v := s.(type) {
		case *LetDecl:
			names = append(names, v.Name)
		case *Block:
			for _, st := range v.Stmts {
				walk(st)
			}
		case *If:
			for _, st := range v.Then.Stmts {
				walk(st)
			}
			if v.Else != nil {
				for _, st := range v.Else.Stmts {
					walk(st)
				}
			}
		case *While:
			for _, st := range v.Body.Stmts {
				walk(st)
			}
		case *For:
			names = append(names, v.Iter)
			for _, st := range v.Body.Stmts {
				walk(st)
			}
		}
	}
	for _, s := range b.Stmts {
		walk(s)
	}
	return names
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (p *Parser) parseBlock() (*Block, *CompilerError) {
	open, err := p.expect(TokLBrace)
	if err != nil {
		return nil, err
	}
	block := &Block{Loc: p.tokLoc(open)}
	for {
		closed, err := p.at(TokRBrace)
		if err != nil {
			return nil, err
		}
		if closed {
			p.lex.Next()
			break
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	return block, nil
}

func (p *Parser) parseStmt() (Stmt, *CompilerError) {
	tk, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	switch tk.Kind {
	case TokLet:
		return p.parseLetStmt()
	case TokIf:
		return p.parseIfStmt()
	case TokWhile:
		return p.parseWhileStmt()
	case TokFor:
		return p.parseForStmt()
	case TokBreak:
		p.lex.Next()
		if _, err := p.expect(TokSemicolon); err != nil {
			return nil, err
		}
		return &Break{Loc: p.tokLoc(tk)}, nil
	case TokContinue:
		p.lex.Next()
		if _, err := p.expect(TokSemicolon); err != nil {
			return nil, err
		}
		return &Continue{Loc: p.tokLoc(tk)}, nil
	case TokReturn:
		return p.parseReturnStmt()
	case TokJoin:
		return p.parseJoinStmt()
	case TokRequest:
		return p.parseRequestStmt()
	case TokPrint:
		return p.parsePrintShorthand()
	case TokAtomic:
		return p.parseAtomicStmt()
	case TokIdent:
		return p.parseIdentLedStmt()
	default:
		return nil, parseErr("statement", tk.Kind.String(), p.tokLoc(tk))
	}
}

func (p *Parser) parseLetStmt() (Stmt, *CompilerError) {
	kw, err := p.expect(TokLet)
	if err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	decl := &LetDecl{Name: name.Lexeme, Mutable: true, Loc: p.tokLoc(kw)}

	hasColon, err := p.at(TokColon)
	if err != nil {
		return nil, err
	}
	if hasColon {
		p.lex.Next()
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		decl.Type = ty
	}
	if _, err := p.expect(TokAssign); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	decl.Value = val
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseIfStmt() (Stmt, *CompilerError) {
	kw, err := p.expect(TokIf)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &If{Cond: cond, Then: then, Loc: p.tokLoc(kw)}
	hasElse, err := p.at(TokElse)
	if err != nil {
		return nil, err
	}
	if hasElse {
		p.lex.Next()
		elseKind, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if elseKind.Kind == TokIf {
			nested, err := p.parseIfStmt()
			if err != nil {
				return nil, err
			}
			stmt.Else = &Block{Stmts: []Stmt{nested}, Loc: p.tokLoc(elseKind)}
		} else {
			elseBlock, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			stmt.Else = elseBlock
		}
	}
	return stmt, nil
}

func (p *Parser) parseWhileStmt() (Stmt, *CompilerError) {
	kw, err := p.expect(TokWhile)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &While{Cond: cond, Body: body, Loc: p.tokLoc(kw)}, nil
}

func (p *Parser) parseForStmt() (Stmt, *CompilerError) {
	kw, err := p.expect(TokFor)
	if err != nil {
		return nil, err
	}
	iter, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokIn); err != nil {
		return nil, err
	}
	start, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokDotDot); err != nil {
		return nil, err
	}
	end, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	forStmt := &For{Iter: iter.Lexeme, Start: start, End: end, Loc: p.tokLoc(kw)}

	hasStep, err := p.at(TokStep)
	if err != nil {
		return nil, err
	}
	if hasStep {
		p.lex.Next()
		step, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		forStmt.Step = step
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	forStmt.Body = body
	return forStmt, nil
}

func (p *Parser) parseReturnStmt() (Stmt, *CompilerError) {
	kw, err := p.expect(TokReturn)
	if err != nil {
		return nil, err
	}
	stmt := &Return{Loc: p.tokLoc(kw)}
	hasSemi, err := p.at(TokSemicolon)
	if err != nil {
		return nil, err
	}
	if !hasSemi {
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Value = val
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseJoinStmt() (Stmt, *CompilerError) {
	kw, err := p.expect(TokJoin)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	handle, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &Join{Handle: handle, Loc: p.tokLoc(kw)}, nil
}

// parseRequestStmt handles the legacy `request service(arg?);` form,
// reduced to the same Request IR node as the print(...) shorthand
// (print is just sugar for request print_int/print_float/print_string).
func (p *Parser) parseRequestStmt() (Stmt, *CompilerError) {
	kw, err := p.expect(TokRequest)
	if err != nil {
		return nil, err
	}
	svc, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	req := &Request{Service: svc.Lexeme, Loc: p.tokLoc(kw)}
	hasArg, err := p.at(TokRParen)
	if err != nil {
		return nil, err
	}
	if !hasArg {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		req.Arg = arg
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return req, nil
}

func (p *Parser) parsePrintShorthand() (Stmt, *CompilerError) {
	kw, err := p.expect(TokPrint)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	arg, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &Request{Service: "print", Arg: arg, Loc: p.tokLoc(kw)}, nil
}

func (p *Parser) parseAtomicStmt() (Stmt, *CompilerError) {
	kw, err := p.expect(TokAtomic)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokDot); err != nil {
		return nil, err
	}
	op, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	var kind AtomicKind
	switch op.Lexeme {
	case "add":
		kind = AtomicAdd
	case "store":
		kind = AtomicStore
	default:
		return nil, parseErr("'add' or 'store'", op.Lexeme, p.tokLoc(op))
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokComma); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &AtomicOp{Kind: kind, SharedName: name.Lexeme, Value: val, Loc: p.tokLoc(kw)}, nil
}

// parseIdentLedStmt disambiguates assignment, array-assignment, and a
// bare expression statement, all of which start with an identifier.
func (p *Parser) parseIdentLedStmt() (Stmt, *CompilerError) {
	name, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	loc := p.tokLoc(name)

	isIndex, err := p.at(TokLBracket)
	if err != nil {
		return nil, err
	}
	if isIndex {
		p.lex.Next()
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRBracket); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokAssign); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokSemicolon); err != nil {
			return nil, err
		}
		return &ArrayAssign{Name: name.Lexeme, Index: idx, Value: val, Loc: loc}, nil
	}

	isAssign, err := p.at(TokAssign)
	if err != nil {
		return nil, err
	}
	if isAssign {
		p.lex.Next()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokSemicolon); err != nil {
			return nil, err
		}
		return &Assign{Target: name.Lexeme, Value: val, Loc: loc}, nil
	}

	// Not an assignment: reparse as a primary-led expression statement,
	// starting from the identifier already consumed.
	x, err := p.finishPostfixIdent(name)
	if err != nil {
		return nil, err
	}
	x, err = p.parseBinaryTail(x, 0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemicolon); err != nil {
		return nil, err
	}
	return &ExprStmt{X: x, Loc: loc}, nil
}

// ---------------------------------------------------------------------
// Expressions: precedence climbing, lowest (||) to highest (unary/cast)
// ---------------------------------------------------------------------

var binPrec = map[TokenKind]int{
	TokOrOr:   1,
	TokAndAnd: 2,
	TokLt:     3, TokLe: 3, TokGt: 3, TokGe: 3, TokEq: 3, TokNe: 3,
	TokPipe: 4,
	TokCaret: 5,
	TokAmp:   6,
	TokShl:   7, TokShr: 7,
	TokPlus: 8, TokMinus: 8,
	TokStar: 9, TokSlash: 9, TokPercent: 9,
}

var tokToOp = map[TokenKind]BinaryOp{
	TokOrOr: OpOr, TokAndAnd: OpAnd,
	TokLt: OpLt, TokLe: OpLe, TokGt: OpGt, TokGe: OpGe, TokEq: OpEq, TokNe: OpNe,
	TokPipe: OpBitOr, TokCaret: OpBitXor, TokAmp: OpBitAnd,
	TokShl: OpShl, TokShr: OpShr,
	TokPlus: OpAdd, TokMinus: OpSub,
	TokStar: OpMul, TokSlash: OpDiv, TokPercent: OpRem,
}

func (p *Parser) parseExpr() (Expr, *CompilerError) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryTail(lhs, 0)
}

// parseBinaryTail implements precedence climbing: it keeps consuming
// operators at or above minPrec, recursing on the right-hand side for
// any operator binding tighter than the current one.
func (p *Parser) parseBinaryTail(lhs Expr, minPrec int) (Expr, *CompilerError) {
	for {
		tk, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		prec, ok := binPrec[tk.Kind]
		if !ok || prec < minPrec {
			return lhs, nil
		}
		p.lex.Next()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		for {
			tk2, err := p.lex.Peek()
			if err != nil {
				return nil, err
			}
			prec2, ok := binPrec[tk2.Kind]
			if !ok || prec2 <= prec {
				break
			}
			rhs, err = p.parseBinaryTail(rhs, prec+1)
			if err != nil {
				return nil, err
			}
		}
		lhs = &Binary{Op: tokToOp[tk.Kind], LHS: lhs, RHS: rhs, Loc: p.tokLoc(tk)}
	}
}

func (p *Parser) parseUnary() (Expr, *CompilerError) {
	tk, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	switch tk.Kind {
	case TokMinus:
		p.lex.Next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpNeg, Operand: x, Loc: p.tokLoc(tk)}, nil
	case TokTilde:
		p.lex.Next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpBitNot, Operand: x, Loc: p.tokLoc(tk)}, nil
	case TokBang:
		p.lex.Next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpNot, Operand: x, Loc: p.tokLoc(tk)}, nil
	default:
		return p.parseCast()
	}
}

func (p *Parser) parseCast() (Expr, *CompilerError) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		isAs, err := p.at(TokAs)
		if err != nil {
			return nil, err
		}
		if !isAs {
			return x, nil
		}
		kw, _ := p.lex.Next()
		target, err := p.parseType()
		if err != nil {
			return nil, err
		}
		x = &Cast{Target: target, X: x, Loc: p.tokLoc(kw)}
	}
}

func (p *Parser) parsePrimary() (Expr, *CompilerError) {
	tk, err := p.lex.Next()
	if err != nil {
		return nil, err
	}
	loc := p.tokLoc(tk)

	switch tk.Kind {
	case TokInt:
		v, _ := strconv.ParseInt(tk.Lexeme, 10, 64)
		return &Literal{Type: TypeInt, IVal: v, Loc: loc}, nil
	case TokFloat:
		v, _ := strconv.ParseFloat(tk.Lexeme, 64)
		return &Literal{Type: TypeFloat, FVal: v, Loc: loc}, nil
	case TokString:
		return &Literal{Type: TypeString, SVal: tk.Lexeme, Loc: loc}, nil
	case TokTrue:
		return &Literal{Type: TypeBool, BVal: true, Loc: loc}, nil
	case TokFalse:
		return &Literal{Type: TypeBool, BVal: false, Loc: loc}, nil
	case TokInput:
		if _, err := p.expect(TokLParen); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return &Input{Loc: loc}, nil
	case TokSpawn:
		if _, err := p.expect(TokLParen); err != nil {
			return nil, err
		}
		name, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return &Spawn{FuncName: name.Lexeme, Loc: loc}, nil
	case TokAtomic:
		// atomic.load(name) — the only expression-position atomic form.
		if _, err := p.expect(TokDot); err != nil {
			return nil, err
		}
		op, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		if op.Lexeme != "load" {
			return nil, parseErr("'load'", op.Lexeme, p.tokLoc(op))
		}
		if _, err := p.expect(TokLParen); err != nil {
			return nil, err
		}
		name, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return &AtomicLoad{SharedName: name.Lexeme, Loc: loc}, nil
	case TokLParen:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return x, nil
	case TokLBracket:
		return p.parseArrayLiteralTail(loc)
	case TokIdent:
		return p.finishPostfixIdent(tk)
	default:
		return nil, parseErr("expression", tk.Kind.String(), loc)
	}
}

// finishPostfixIdent resolves an already-consumed identifier token into
// a Variable, Call, or ArrayAccess depending on what follows.
func (p *Parser) finishPostfixIdent(name Token) (Expr, *CompilerError) {
	loc := p.tokLoc(name)
	isCall, err := p.at(TokLParen)
	if err != nil {
		return nil, err
	}
	if isCall {
		p.lex.Next()
		var args []Expr
		closed, err := p.at(TokRParen)
		if err != nil {
			return nil, err
		}
		for !closed {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			comma, err := p.at(TokComma)
			if err != nil {
				return nil, err
			}
			if comma {
				p.lex.Next()
			}
			closed, err = p.at(TokRParen)
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return &Call{Name: name.Lexeme, Args: args, Loc: loc}, nil
	}

	isIndex, err := p.at(TokLBracket)
	if err != nil {
		return nil, err
	}
	if isIndex {
		p.lex.Next()
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRBracket); err != nil {
			return nil, err
		}
		return &ArrayAccess{Name: name.Lexeme, Index: idx, Loc: loc}, nil
	}

	return &Variable{Name: name.Lexeme, Loc: loc}, nil
}

func (p *Parser) parseArrayLiteralTail(loc SourceLocation) (Expr, *CompilerError) {
	lit := &ArrayLiteral{Loc: loc}
	closed, err := p.at(TokRBracket)
	if err != nil {
		return nil, err
	}
	for !closed {
		el, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Elems = append(lit.Elems, el)
		comma, err := p.at(TokComma)
		if err != nil {
			return nil, err
		}
		if comma {
			p.lex.Next()
		}
		closed, err = p.at(TokRBracket)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRBracket); err != nil {
		return nil, err
	}
	if len(lit.Elems) > 0 {
		if b, ok := lit.Elems[0].(*Literal); ok && b.Type == TypeBool {
			lit.ElemType = TypeBool
		} else {
			lit.ElemType = TypeInt
		}
	} else {
		lit.ElemType = TypeInt
	}
	return lit, nil
}
