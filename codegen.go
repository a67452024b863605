// Completion: 95% - IR to MISA lowering complete for every statement and expression form
package main

import "fmt"

// CodeGenerator lowers a validated Program into a Manifest plus the
// label table the Native Compiler Driver will re-resolve. Expression
// lowering follows generateBinaryInto: the
// left operand is produced directly into the destination register,
// the right operand is either folded in as an immediate or computed
// into a temporary and consumed, preferring a left-chain recursion so
// deep expression trees don't exhaust the temp pool.
type CodeGenerator struct {
	manifest *Manifest
	labels   *LabelTable
	ra       *RegisterAllocator

	sharedTypes map[string]Type
	funcSigs    map[string]*FunctionDecl

	// localTypes tracks the declared type of every parameter and
	// let-bound name in the function currently being lowered, reset at
	// the start of each genFunction so exprIsFloat can route a local
	// float variable the same way it already routes a shared one.
	localTypes map[string]Type

	curFunc   *FunctionDecl
	loopStack []loopCtx
	labelSeq  int
}

// typeOf resolves name's declared type, local declarations taking
// precedence over a same-named shared variable (the validator already
// rejects genuine name collisions between the two scopes).
func (cg *CodeGenerator) typeOf(name string) Type {
	if t, ok := cg.localTypes[name]; ok {
		return t
	}
	return cg.sharedTypes[name]
}

type loopCtx struct {
	headID int
	exitID int
}

// NewCodeGenerator prepares a generator over prog's validated IR.
func NewCodeGenerator(prog *Program) *CodeGenerator {
	cg := &CodeGenerator{
		manifest:    NewManifest("aurora-x86_64", 0x400000),
		labels:      NewLabelTable(),
		ra:          NewRegisterAllocator(),
		sharedTypes: make(map[string]Type),
		funcSigs:    make(map[string]*FunctionDecl),
	}
	for _, s := range prog.Shared {
		cg.sharedTypes[s.Name] = s.Type
	}
	for _, f := range prog.Functions {
		cg.funcSigs[f.Name] = f
	}
	return cg
}

// Generate lowers the whole program and returns the resulting
// manifest and label table (the latter still holds unresolved
// relocations; the driver finishes that pass after section layout).
func (cg *CodeGenerator) Generate(prog *Program) (*Manifest, *LabelTable, *CompilerError) {
	// Shared variables and function entry points are declared up front
	// so a CALL/SPAWN/ATOMIC_* site may reference a name the generator
	// has not reached yet (e.g. mutual recursion, or a helper defined
	// after its caller) without waiting for that definition to be
	// lowered. This generator-local table only has to stay internally
	// consistent (e.g. catch a name reused for two labels); the
	// manifest's `bytesref` lines carry the target name through to the
	// Native Compiler Driver, which resolves relocations by name
	// against its own label table built while laying out the text
	// section, not by replaying this id assignment.
	for _, s := range prog.Shared {
		val, err := literalManifestValue(s.Initial)
		if err != nil {
			return nil, nil, err
		}
		cg.manifest.AddShared(s.Name, s.Type, val)
		cg.labels.Declare(s.Name)
	}
	for _, f := range prog.Functions {
		cg.labels.Declare("fn_" + f.Name)
	}
	for _, f := range prog.Functions {
		if err := cg.genFunction(f); err != nil {
			return nil, nil, err
		}
	}
	return cg.manifest, cg.labels, nil
}

// literalManifestValue renders a shared variable's compile-time
// initializer as the manifest's textual shared-slot value. Shared
// variables are registered at module scope with a stable label and
// their 8-byte initial value; only literal initializers are
// representable here.
func literalManifestValue(e Expr) (string, *CompilerError) {
	lit, ok := e.(*Literal)
	if !ok {
		return "", codegenErr("shared variable initializer must be a literal", e.Pos())
	}
	switch lit.Type {
	case TypeInt:
		return fmt.Sprintf("%d", lit.IVal), nil
	case TypeFloat:
		return fmt.Sprintf("%g", lit.FVal), nil
	case TypeBool:
		if lit.BVal {
			return "1", nil
		}
		return "0", nil
	default:
		return "", codegenErr("shared variable type must be int, float, or bool", e.Pos())
	}
}

func (cg *CodeGenerator) newLabel(prefix string) (int, string) {
	cg.labelSeq++
	name := fmt.Sprintf("%s_%s_%d", cg.curFunc.Name, prefix, cg.labelSeq)
	id, _ := cg.labels.Declare(name)
	return id, name
}

// labelOperand builds an OperandLabel carrying the label's name; the
// manifest writer (AddInstruction) detects OperandLabel operands and
// emits a `bytesref` line carrying that name alongside the encoded
// slot, so the name - not the locally-assigned id - is what survives
// into the manifest. Declare is idempotent, so this is safe to call
// for a label already declared elsewhere (a loop head/exit, a shared
// variable, a callee's entry point).
func (cg *CodeGenerator) labelOperand(name string) Operand {
	id, _ := cg.labels.Declare(name)
	return Operand{Kind: OperandLabel, Label: name, Imm: int64(id)}
}

// emit appends ins to the manifest, first flushing any spill/reload
// instructions the register allocator queued while computing its
// operands, so the stack traffic always precedes the operation that
// needed it.
func (cg *CodeGenerator) emit(ins Instruction, comment string) {
	for _, spill := range cg.ra.getAndClearSpillInstructions() {
		cg.manifest.AddInstruction(spill, "spill")
	}
	cg.manifest.AddInstruction(ins, comment)
}

// ---------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------

func (cg *CodeGenerator) genFunction(f *FunctionDecl) *CompilerError {
	cg.curFunc = f
	cg.ra.reset()
	cg.loopStack = nil
	cg.localTypes = make(map[string]Type)

	fnLabel := "fn_" + f.Name
	cg.labels.Declare(fnLabel)
	cg.manifest.AddLabel(fnLabel)

	// Win64 argument convention: r1..r5 in source order. Parameters
	// arrive resident; mark them initialized so
	// a bare reference never looks like use-before-assignment.
	for i, p := range f.Params {
		if i >= 5 {
			return codegenErr("more than 5 parameters is unsupported by the register calling convention", f.Loc)
		}
		cg.localTypes[p.Name] = p.Type
		reg := i + 1
		if p.Type.IsFloat() {
			cg.ra.varToXReg[p.Name], cg.ra.xregToVar[reg] = reg, p.Name
			cg.ra.xmmOrder = cg.ra.touch(cg.ra.xmmOrder, p.Name)
		} else {
			cg.ra.varToReg[p.Name], cg.ra.regToVar[reg] = reg, p.Name
			cg.ra.gpOrder = cg.ra.touch(cg.ra.gpOrder, p.Name)
		}
		cg.ra.markInitialized(p.Name)
	}

	if err := cg.genBlock(f.Body); err != nil {
		return err
	}

	// Fall-through return: only `main` may omit a terminal return and
	// fall into an implicit HALT 0; every other function gets an
	// implicit `return;`.
	if f.Name == "main" {
		cg.emit(Instruction{Op: MMov, Operands: []Operand{{Kind: OperandReg, Reg: "r0"}, {Kind: OperandImm, Imm: 0}}}, "implicit exit code 0")
		cg.emit(Instruction{Op: MHalt}, "implicit exit")
	} else if !f.HasReturn {
		cg.emit(Instruction{Op: MRet}, "implicit return")
	}
	return nil
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (cg *CodeGenerator) genBlock(b *Block) *CompilerError {
	for _, s := range b.Stmts {
		if err := cg.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (cg *CodeGenerator) genStmt(s Stmt) *CompilerError {
	switch n := s.(type) {
	case *LetDecl:
		cg.localTypes[n.Name] = n.Type
		return cg.genAssignLike(n.Name, n.Type.IsFloat(), n.Value)
	case *Assign:
		isFloat := cg.typeOf(n.Target) == TypeFloat
		return cg.genAssignLike(n.Target, isFloat, n.Value)
	case *ArrayAssign:
		return cg.genArrayAssign(n)
	case *If:
		return cg.genIf(n)
	case *While:
		return cg.genWhile(n)
	case *For:
		return cg.genFor(n)
	case *Break:
		if len(cg.loopStack) == 0 {
			return codegenErr("'break' outside a loop", n.Loc)
		}
		top := cg.loopStack[len(cg.loopStack)-1]
		cg.emit(Instruction{Op: MJmp, Operands: []Operand{cg.labelOperand(cg.labels.names[top.exitID])}}, "break")
	case *Continue:
		if len(cg.loopStack) == 0 {
			return codegenErr("'continue' outside a loop", n.Loc)
		}
		top := cg.loopStack[len(cg.loopStack)-1]
		cg.emit(Instruction{Op: MJmp, Operands: []Operand{cg.labelOperand(cg.labels.names[top.headID])}}, "continue")
	case *Return:
		return cg.genReturn(n)
	case *AtomicOp:
		return cg.genAtomicOp(n)
	case *Join:
		return cg.genJoin(n)
	case *Request:
		return cg.genRequest(n)
	case *ExprStmt:
		t, err := cg.genExpr(n.X)
		if err != nil {
			return err
		}
		cg.ra.releaseTemp(t)
	}
	return nil
}

// genAssignLike lowers `let`/plain assignment: evaluate the RHS
// straight into name's register rather than via a temporary, per the
// generateBinaryInto convention.
func (cg *CodeGenerator) genAssignLike(name string, isFloat bool, value Expr) *CompilerError {
	reg, allocErr := cg.ra.allocateVariable(name, isFloat)
	if allocErr != nil {
		return codegenErr(allocErr.Error(), value.Pos())
	}
	if err := cg.genExprInto(reg, isFloat, value); err != nil {
		return err
	}
	cg.ra.markInitialized(name)
	return nil
}

func (cg *CodeGenerator) genArrayAssign(n *ArrayAssign) *CompilerError {
	arrReg, allocErr := cg.ra.getVariable(n.Name, false)
	if allocErr != nil {
		return codegenErr(allocErr.Error(), n.Loc)
	}
	idxT, err := cg.genExpr(n.Index)
	if err != nil {
		return err
	}
	valT, err := cg.genExpr(n.Value)
	if err != nil {
		return err
	}
	cg.emit(Instruction{
		Op: MArrayStore,
		Operands: []Operand{
			{Kind: OperandReg, Reg: gpRegName(arrReg)},
			{Kind: OperandReg, Reg: gpRegName(idxT.reg)},
			{Kind: OperandReg, Reg: gpRegName(valT.reg)},
		},
	}, "array store "+n.Name)
	cg.ra.releaseTemp(idxT)
	cg.ra.releaseTemp(valT)
	return nil
}

// genIf emits the condition, then a CJMP on the *negated* condition to
// the else (or end) label.
func (cg *CodeGenerator) genIf(n *If) *CompilerError {
	_, elseLabel := cg.newLabel("else")
	_, endLabel := cg.newLabel("endif")

	cond, err := cg.genCondition(n.Cond, negateCond)
	if err != nil {
		return err
	}
	target := elseLabel
	if n.Else == nil {
		target = endLabel
	}
	cg.emit(Instruction{Op: MCJmp, Cond: cond, Operands: []Operand{cg.labelOperand(target)}}, "if false -> "+target)

	if err := cg.genBlock(n.Then); err != nil {
		return err
	}
	if n.Else != nil {
		cg.emit(Instruction{Op: MJmp, Operands: []Operand{cg.labelOperand(endLabel)}}, "skip else")
		cg.manifest.AddLabel(elseLabel)
		if err := cg.genBlock(n.Else); err != nil {
			return err
		}
	}
	cg.manifest.AddLabel(endLabel)
	return nil
}

// genWhile lays out `label head; body; jmp head; label exit`;
// break/continue push {head, exit} so nested loops resolve to the
// right target.
func (cg *CodeGenerator) genWhile(n *While) *CompilerError {
	headID, headLabel := cg.newLabel("head")
	exitID, exitLabel := cg.newLabel("exit")
	cg.manifest.AddLabel(headLabel)

	cond, err := cg.genCondition(n.Cond, negateCond)
	if err != nil {
		return err
	}
	cg.emit(Instruction{Op: MCJmp, Cond: cond, Operands: []Operand{cg.labelOperand(exitLabel)}}, "while false -> exit")

	cg.loopStack = append(cg.loopStack, loopCtx{headID: headID, exitID: exitID})
	if err := cg.genBlock(n.Body); err != nil {
		return err
	}
	cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]

	cg.emit(Instruction{Op: MJmp, Operands: []Operand{cg.labelOperand(headLabel)}}, "loop back")
	cg.manifest.AddLabel(exitLabel)
	return nil
}

// genFor desugars `for iter in start..end step s { body }` into an
// explicit counter variable plus a While-shaped loop; for is sugar,
// not a distinct lowering.
func (cg *CodeGenerator) genFor(n *For) *CompilerError {
	iterReg, allocErr := cg.ra.allocateVariable(n.Iter, false)
	if allocErr != nil {
		return codegenErr(allocErr.Error(), n.Loc)
	}
	if err := cg.genExprInto(iterReg, false, n.Start); err != nil {
		return err
	}
	cg.ra.markInitialized(n.Iter)

	headID, headLabel := cg.newLabel("forhead")
	exitID, exitLabel := cg.newLabel("forexit")
	cg.manifest.AddLabel(headLabel)

	endT, err := cg.genExpr(n.End)
	if err != nil {
		return err
	}
	cg.emit(Instruction{Op: MCmp, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(iterReg)}, {Kind: OperandReg, Reg: gpRegName(endT.reg)}}}, "for bound")
	cg.ra.releaseTemp(endT)
	cg.emit(Instruction{Op: MCJmp, Cond: CondGE, Operands: []Operand{cg.labelOperand(exitLabel)}}, "for done -> exit")

	cg.loopStack = append(cg.loopStack, loopCtx{headID: headID, exitID: exitID})
	if err := cg.genBlock(n.Body); err != nil {
		return err
	}
	cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]

	if n.Step != nil {
		stepT, err := cg.genExpr(n.Step)
		if err != nil {
			return err
		}
		cg.emit(Instruction{Op: MAdd, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(iterReg)}, {Kind: OperandReg, Reg: gpRegName(stepT.reg)}}}, "step")
		cg.ra.releaseTemp(stepT)
	} else {
		cg.emit(Instruction{Op: MAdd, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(iterReg)}, {Kind: OperandImm, Imm: 1}}}, "step 1")
	}
	cg.emit(Instruction{Op: MJmp, Operands: []Operand{cg.labelOperand(headLabel)}}, "for back-edge")
	cg.manifest.AddLabel(exitLabel)
	return nil
}

func (cg *CodeGenerator) genReturn(n *Return) *CompilerError {
	if n.Value == nil {
		cg.emit(Instruction{Op: MRet}, "return")
		return nil
	}
	isFloat := cg.curFunc.ReturnType.IsFloat()
	if err := cg.genExprInto(0, isFloat, n.Value); err != nil {
		return err
	}
	cg.emit(Instruction{Op: MRet}, "return")
	return nil
}

func (cg *CodeGenerator) genAtomicOp(n *AtomicOp) *CompilerError {
	isFloat := cg.sharedTypes[n.SharedName] == TypeFloat
	valT, err := cg.genExpr(n.Value)
	if err != nil {
		return err
	}
	op := MAtomicAdd
	if isFloat {
		op = MAtomicFAdd
	}
	if n.Kind == AtomicStore {
		op = MAtomicStore
	}
	regName := gpRegName(valT.reg)
	if isFloat {
		regName = xmmRegName(valT.reg)
	}
	cg.emit(Instruction{
		Op:       op,
		Operands: []Operand{cg.labelOperand(n.SharedName), {Kind: OperandReg, Reg: regName}},
	}, "atomic "+n.SharedName)
	cg.ra.releaseTemp(valT)
	return nil
}

func (cg *CodeGenerator) genJoin(n *Join) *CompilerError {
	handleT, err := cg.genExpr(n.Handle)
	if err != nil {
		return err
	}
	cg.emit(Instruction{Op: MJoin, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(handleT.reg)}}}, "join")
	cg.ra.releaseTemp(handleT)
	return nil
}

// genRequest lowers both the `request service(arg)` form and the
// print(...) shorthand to the same sequence: `MOV r0, arg; SVC code`
// (`FMOV xmm6, arg` for a float argument, which print_float reads).
// The bare print(...) shorthand is refined to print_int/print_float/
// print_string by the argument's type.
func (cg *CodeGenerator) genRequest(n *Request) *CompilerError {
	svcName := n.Service
	if svcName == "print" && n.Arg != nil {
		switch {
		case exprIsFloat(cg, n.Arg):
			svcName = "print_float"
		case isStringExpr(n.Arg):
			svcName = "print_string"
		default:
			svcName = "print_int"
		}
	}
	svc, ok := serviceCodes[svcName]
	if !ok {
		return codegenErr("unknown service '"+n.Service+"'", n.Loc)
	}
	if n.Arg != nil {
		isFloat := exprIsFloat(cg, n.Arg)
		argT, err := cg.genExpr(n.Arg)
		if err != nil {
			return err
		}
		regName := gpRegName(argT.reg)
		if isFloat {
			regName = xmmRegName(argT.reg)
		}
		destReg, movOp := "r0", MMov
		if isFloat {
			destReg, movOp = "xmm6", MFMov
		}
		cg.emit(Instruction{Op: movOp, Operands: []Operand{{Kind: OperandReg, Reg: destReg}, {Kind: OperandReg, Reg: regName}}}, "svc arg")
		cg.ra.releaseTemp(argT)
	}
	cg.emit(Instruction{Op: MSvc, Operands: []Operand{{Kind: OperandImm, Imm: int64(svc)}}}, "svc "+svcName)
	return nil
}

func isStringExpr(e Expr) bool {
	lit, ok := e.(*Literal)
	return ok && lit.Type == TypeString
}

var serviceCodes = map[string]ServiceCode{
	"print_string": SvcPrintString,
	"print_int":    SvcPrintInt,
	"print_float":  SvcPrintFloat,
	"exit":         SvcExit,
	"pause":        SvcPause,
	"pause_silent": SvcPauseSilent,
	"input_int":    SvcInputInt,
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

// genExpr computes e into a fresh temporary and returns it; callers
// that have a specific destination (assignment, return, call argument)
// should prefer genExprInto to avoid a redundant MOV.
func (cg *CodeGenerator) genExpr(e Expr) (temp, *CompilerError) {
	isFloat := exprIsFloat(cg, e)
	t, allocErr := cg.ra.allocateTemp(isFloat)
	if allocErr != nil {
		return temp{}, codegenErr(allocErr.Error(), e.Pos())
	}
	if err := cg.genExprInto(t.reg, isFloat, e); err != nil {
		return temp{}, err
	}
	return t, nil
}

// genExprInto lowers e with its result placed directly into dst
// (r<dst> or xmm<dst>), implementing generateBinaryInto from spec
// section 4.5.
func (cg *CodeGenerator) genExprInto(dst int, isFloat bool, e Expr) *CompilerError {
	switch n := e.(type) {
	case *Literal:
		return cg.genLiteralInto(dst, isFloat, n)
	case *Variable:
		return cg.genVariableInto(dst, isFloat, n)
	case *Binary:
		return cg.genBinaryInto(dst, isFloat, n)
	case *Unary:
		return cg.genUnaryInto(dst, isFloat, n)
	case *Cast:
		return cg.genCastInto(dst, isFloat, n)
	case *Call:
		return cg.genCallInto(dst, isFloat, n)
	case *ArrayAccess:
		return cg.genArrayAccessInto(dst, n)
	case *AtomicLoad:
		regName := gpRegName(dst)
		if isFloat {
			regName = xmmRegName(dst)
		}
		cg.emit(Instruction{Op: MAtomicLoad, Operands: []Operand{{Kind: OperandReg, Reg: regName}, cg.labelOperand(n.SharedName)}}, "atomic.load "+n.SharedName)
		return nil
	case *Spawn:
		target := "fn_" + n.FuncName
		cg.emit(Instruction{Op: MSpawn, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(dst)}, cg.labelOperand(target)}}, "spawn "+n.FuncName)
		return nil
	case *Input:
		cg.emit(Instruction{Op: MSvc, Operands: []Operand{{Kind: OperandImm, Imm: int64(SvcInputInt)}}}, "input_int")
		regName := gpRegName(dst)
		if regName != "r0" {
			cg.emit(Instruction{Op: MMov, Operands: []Operand{{Kind: OperandReg, Reg: regName}, {Kind: OperandReg, Reg: "r0"}}}, "capture input")
		}
		return nil
	case *ArrayLiteral:
		return cg.genArrayLiteralInto(dst, n)
	default:
		return codegenErr(fmt.Sprintf("unlowerable expression %T", e), e.Pos())
	}
}

func (cg *CodeGenerator) genLiteralInto(dst int, isFloat bool, lit *Literal) *CompilerError {
	regName := gpRegName(dst)
	if isFloat {
		regName = xmmRegName(dst)
		cg.emit(Instruction{Op: MFMov, Operands: []Operand{
			{Kind: OperandReg, Reg: regName},
			{Kind: OperandImm, FImm: lit.FVal, IsF: true},
		}}, "float literal")
		return nil
	}
	switch lit.Type {
	case TypeInt:
		cg.emit(Instruction{Op: MMov, Operands: []Operand{{Kind: OperandReg, Reg: regName}, {Kind: OperandImm, Imm: lit.IVal}}}, "int literal")
	case TypeBool:
		v := int64(0)
		if lit.BVal {
			v = 1
		}
		cg.emit(Instruction{Op: MMov, Operands: []Operand{{Kind: OperandReg, Reg: regName}, {Kind: OperandImm, Imm: v}}}, "bool literal")
	case TypeString:
		_, name := cg.newLabel("str")
		cg.manifest.AddLabel(name)
		cg.manifest.AddAscii(lit.SVal)
		cg.emit(Instruction{Op: MMov, Operands: []Operand{{Kind: OperandReg, Reg: regName}, cg.labelOperand(name)}}, "string literal")
	default:
		return codegenErr("unsupported literal type "+lit.Type.String(), lit.Loc)
	}
	return nil
}

func (cg *CodeGenerator) genVariableInto(dst int, isFloat bool, v *Variable) *CompilerError {
	if _, shared := cg.sharedTypes[v.Name]; shared {
		regName := gpRegName(dst)
		if isFloat {
			regName = xmmRegName(dst)
		}
		cg.emit(Instruction{Op: MAtomicLoad, Operands: []Operand{{Kind: OperandReg, Reg: regName}, cg.labelOperand(v.Name)}}, "read shared "+v.Name)
		return nil
	}
	src, allocErr := cg.ra.getVariable(v.Name, isFloat)
	if allocErr != nil {
		return codegenErr(allocErr.Error(), v.Loc)
	}
	if src == dst {
		return nil
	}
	op := MMov
	srcName, dstName := gpRegName(src), gpRegName(dst)
	if isFloat {
		op = MFMov
		srcName, dstName = xmmRegName(src), xmmRegName(dst)
	}
	cg.emit(Instruction{Op: op, Operands: []Operand{{Kind: OperandReg, Reg: dstName}, {Kind: OperandReg, Reg: srcName}}}, "load "+v.Name)
	return nil
}

// genBinaryInto implements a left-chain recursion: the left operand
// lowers directly into dst, the right operand
// either folds in as an immediate or is computed into a temporary.
func (cg *CodeGenerator) genBinaryInto(dst int, isFloat bool, b *Binary) *CompilerError {
	if b.Op == OpAnd || b.Op == OpOr {
		return cg.genShortCircuitInto(dst, b)
	}
	if b.Op.IsComparison() {
		return cg.genComparisonValueInto(dst, b)
	}

	if err := cg.genExprInto(dst, isFloat, b.LHS); err != nil {
		return err
	}

	if rhsLit, ok := b.RHS.(*Literal); ok && !isFloat && rhsLit.Type == TypeInt {
		cg.emit(Instruction{Op: arithOpcode(b.Op), Operands: []Operand{
			{Kind: OperandReg, Reg: gpRegName(dst)},
			{Kind: OperandImm, Imm: rhsLit.IVal},
		}}, b.Op.String())
		return nil
	}

	rhsT, err := cg.genExpr(b.RHS)
	if err != nil {
		return err
	}
	op := arithOpcode(b.Op)
	regName := gpRegName(dst)
	rhsName := gpRegName(rhsT.reg)
	if isFloat {
		op = floatArithOpcode(b.Op)
		regName = xmmRegName(dst)
		rhsName = xmmRegName(rhsT.reg)
	}
	cg.emit(Instruction{Op: op, Operands: []Operand{
		{Kind: OperandReg, Reg: regName},
		{Kind: OperandReg, Reg: rhsName},
	}}, b.Op.String())
	cg.ra.releaseTemp(rhsT)
	return nil
}

// genShortCircuitInto allocates the short-circuit labels for && / ||
// and chains CJMP on the partial result.
func (cg *CodeGenerator) genShortCircuitInto(dst int, b *Binary) *CompilerError {
	_, shortLabel := cg.newLabel("sc")
	_, endLabel := cg.newLabel("scend")

	if err := cg.genExprInto(dst, false, b.LHS); err != nil {
		return err
	}
	cg.emit(Instruction{Op: MCmp, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(dst)}, {Kind: OperandImm, Imm: 0}}}, "sc test lhs")

	if b.Op == OpAnd {
		cg.emit(Instruction{Op: MCJmp, Cond: CondEQ, Operands: []Operand{cg.labelOperand(shortLabel)}}, "&& short-circuit")
	} else {
		cg.emit(Instruction{Op: MCJmp, Cond: CondNE, Operands: []Operand{cg.labelOperand(shortLabel)}}, "|| short-circuit")
	}

	if err := cg.genExprInto(dst, false, b.RHS); err != nil {
		return err
	}
	cg.emit(Instruction{Op: MJmp, Operands: []Operand{cg.labelOperand(endLabel)}}, "sc done")
	cg.manifest.AddLabel(shortLabel)
	cg.manifest.AddLabel(endLabel)
	return nil
}

// genComparisonValueInto lowers a comparison used in value position
// (not as an `if`/`while` guard): CMP/FCMP then materialize 0/1 via a
// short conditional branch.
func (cg *CodeGenerator) genComparisonValueInto(dst int, b *Binary) *CompilerError {
	cond, err := cg.genCondition(b, identityCond)
	if err != nil {
		return err
	}
	_, trueLabel := cg.newLabel("cmptrue")
	_, doneLabel := cg.newLabel("cmpdone")
	cg.emit(Instruction{Op: MCJmp, Cond: cond, Operands: []Operand{cg.labelOperand(trueLabel)}}, "cmp true")
	cg.emit(Instruction{Op: MMov, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(dst)}, {Kind: OperandImm, Imm: 0}}}, "false")
	cg.emit(Instruction{Op: MJmp, Operands: []Operand{cg.labelOperand(doneLabel)}}, "")
	cg.manifest.AddLabel(trueLabel)
	cg.emit(Instruction{Op: MMov, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(dst)}, {Kind: OperandImm, Imm: 1}}}, "true")
	cg.manifest.AddLabel(doneLabel)
	return nil
}

type condTransform func(CondCode) CondCode

func identityCond(c CondCode) CondCode { return c }
func negateCond(c CondCode) CondCode {
	switch c {
	case CondEQ:
		return CondNE
	case CondNE:
		return CondEQ
	case CondLT:
		return CondGE
	case CondLE:
		return CondGT
	case CondGT:
		return CondLE
	case CondGE:
		return CondLT
	}
	return c
}

// genCondition emits the CMP/FCMP for a comparison expression (or for
// a bare boolean expression, compares it against zero) and returns the
// condition code transform applies to. Float comparisons emit FCMP so
// the encoder later selects the unsigned jump family, per testable
// property 7.
func (cg *CodeGenerator) genCondition(e Expr, transform condTransform) (CondCode, *CompilerError) {
	b, ok := e.(*Binary)
	if !ok || !b.Op.IsComparison() {
		t, err := cg.genExpr(e)
		if err != nil {
			return 0, err
		}
		cg.emit(Instruction{Op: MCmp, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(t.reg)}, {Kind: OperandImm, Imm: 0}}}, "truthiness test")
		cg.ra.releaseTemp(t)
		return transform(CondNE), nil
	}

	isFloat := exprIsFloat(cg, b.LHS) || exprIsFloat(cg, b.RHS)
	lhsT, err := cg.genExpr(b.LHS)
	if err != nil {
		return 0, err
	}
	rhsT, err := cg.genExpr(b.RHS)
	if err != nil {
		return 0, err
	}
	op := MCmp
	lhsName, rhsName := gpRegName(lhsT.reg), gpRegName(rhsT.reg)
	if isFloat {
		op = MFCmp
		lhsName, rhsName = xmmRegName(lhsT.reg), xmmRegName(rhsT.reg)
	}
	cg.emit(Instruction{Op: op, Operands: []Operand{{Kind: OperandReg, Reg: lhsName}, {Kind: OperandReg, Reg: rhsName}}}, "compare")
	cg.ra.releaseTemp(lhsT)
	cg.ra.releaseTemp(rhsT)
	return transform(binOpToCond(b.Op)), nil
}

func binOpToCond(op BinaryOp) CondCode {
	switch op {
	case OpLt:
		return CondLT
	case OpLe:
		return CondLE
	case OpGt:
		return CondGT
	case OpGe:
		return CondGE
	case OpEq:
		return CondEQ
	case OpNe:
		return CondNE
	}
	return CondEQ
}

func arithOpcode(op BinaryOp) Opcode {
	switch op {
	case OpAdd:
		return MAdd
	case OpSub:
		return MSub
	case OpMul:
		return MMul
	case OpDiv:
		return MDiv
	case OpRem:
		return MRem
	case OpBitAnd:
		return MAnd
	case OpBitOr:
		return MOr
	case OpBitXor:
		return MXor
	case OpShl:
		return MShl
	case OpShr:
		return MShr
	default:
		return MAdd
	}
}

func floatArithOpcode(op BinaryOp) Opcode {
	switch op {
	case OpAdd:
		return MFAdd
	case OpSub:
		return MFSub
	case OpMul:
		return MFMul
	case OpDiv:
		return MFDiv
	default:
		return MFAdd
	}
}

func (cg *CodeGenerator) genUnaryInto(dst int, isFloat bool, u *Unary) *CompilerError {
	if err := cg.genExprInto(dst, isFloat, u.Operand); err != nil {
		return err
	}
	regName := gpRegName(dst)
	switch u.Op {
	case OpNeg:
		if isFloat {
			zero, err := cg.genExpr(&Literal{Type: TypeFloat, FVal: 0, Loc: u.Loc})
			if err != nil {
				return err
			}
			cg.emit(Instruction{Op: MFSub, Operands: []Operand{{Kind: OperandReg, Reg: xmmRegName(zero.reg)}, {Kind: OperandReg, Reg: xmmRegName(dst)}}}, "negate as 0-x")
			cg.emit(Instruction{Op: MFMov, Operands: []Operand{{Kind: OperandReg, Reg: xmmRegName(dst)}, {Kind: OperandReg, Reg: xmmRegName(zero.reg)}}}, "negate result")
			cg.ra.releaseTemp(zero)
		} else {
			cg.emit(Instruction{Op: MNot, Operands: []Operand{{Kind: OperandReg, Reg: regName}}}, "negate: ~x")
			cg.emit(Instruction{Op: MAdd, Operands: []Operand{{Kind: OperandReg, Reg: regName}, {Kind: OperandImm, Imm: 1}}}, "negate: ~x + 1")
		}
	case OpNot:
		cg.emit(Instruction{Op: MXor, Operands: []Operand{{Kind: OperandReg, Reg: regName}, {Kind: OperandImm, Imm: 1}}}, "logical not")
	case OpBitNot:
		cg.emit(Instruction{Op: MNot, Operands: []Operand{{Kind: OperandReg, Reg: regName}}}, "bitwise not")
	}
	return nil
}

func (cg *CodeGenerator) genCastInto(dst int, isFloat bool, c *Cast) *CompilerError {
	srcIsFloat := exprIsFloat(cg, c.X)
	if srcIsFloat == isFloat {
		return cg.genExprInto(dst, isFloat, c.X)
	}
	if srcIsFloat && !isFloat {
		t, err := cg.genExpr(c.X)
		if err != nil {
			return err
		}
		cg.emit(Instruction{Op: MCvtSd2Si, Operands: []Operand{{Kind: OperandReg, Reg: gpRegName(dst)}, {Kind: OperandReg, Reg: xmmRegName(t.reg)}}}, "float to int")
		cg.ra.releaseTemp(t)
		return nil
	}
	t, err := cg.genExpr(c.X)
	if err != nil {
		return err
	}
	cg.emit(Instruction{Op: MCvtSi2Sd, Operands: []Operand{{Kind: OperandReg, Reg: xmmRegName(dst)}, {Kind: OperandReg, Reg: gpRegName(t.reg)}}}, "int to float")
	cg.ra.releaseTemp(t)
	return nil
}

// genCallInto lowers arguments into r1..r5 (or xmm1..xmm5 for float
// args) in source order, then CALL, with the result arriving in r0 /
// xmm0 and finally moved into dst.
func (cg *CodeGenerator) genCallInto(dst int, isFloat bool, c *Call) *CompilerError {
	sig, ok := cg.funcSigs[c.Name]
	if !ok {
		return codegenErr("call to undeclared function '"+c.Name+"'", c.Loc)
	}
	for i, arg := range c.Args {
		if i >= 5 {
			return codegenErr("more than 5 arguments is unsupported by the register calling convention", c.Loc)
		}
		argIsFloat := sig.Params[i].Type.IsFloat()
		if err := cg.genExprInto(i+1, argIsFloat, arg); err != nil {
			return err
		}
	}
	target := "fn_" + c.Name
	cg.emit(Instruction{Op: MCall, Operands: []Operand{cg.labelOperand(target)}}, "call "+c.Name)

	resultReg, resultName := "r0", gpRegName(dst)
	movOp := MMov
	if isFloat {
		resultReg, resultName = "xmm0", xmmRegName(dst)
		movOp = MFMov
	}
	if resultName != resultReg {
		cg.emit(Instruction{Op: movOp, Operands: []Operand{{Kind: OperandReg, Reg: resultName}, {Kind: OperandReg, Reg: resultReg}}}, "capture result")
	}
	return nil
}

func (cg *CodeGenerator) genArrayAccessInto(dst int, a *ArrayAccess) *CompilerError {
	arrReg, allocErr := cg.ra.getVariable(a.Name, false)
	if allocErr != nil {
		return codegenErr(allocErr.Error(), a.Loc)
	}
	idxT, err := cg.genExpr(a.Index)
	if err != nil {
		return err
	}
	cg.emit(Instruction{Op: MArrayLoad, Operands: []Operand{
		{Kind: OperandReg, Reg: gpRegName(dst)},
		{Kind: OperandReg, Reg: gpRegName(arrReg)},
		{Kind: OperandReg, Reg: gpRegName(idxT.reg)},
	}}, "array load "+a.Name)
	cg.ra.releaseTemp(idxT)
	return nil
}

func (cg *CodeGenerator) genArrayLiteralInto(dst int, lit *ArrayLiteral) *CompilerError {
	cg.emit(Instruction{Op: MArrayAlloc, Operands: []Operand{
		{Kind: OperandReg, Reg: gpRegName(dst)},
		{Kind: OperandImm, Imm: int64(len(lit.Elems))},
	}}, "array alloc")
	for i, el := range lit.Elems {
		elT, err := cg.genExpr(el)
		if err != nil {
			return err
		}
		cg.emit(Instruction{Op: MArrayStore, Operands: []Operand{
			{Kind: OperandReg, Reg: gpRegName(dst)},
			{Kind: OperandImm, Imm: int64(i)},
			{Kind: OperandReg, Reg: gpRegName(elT.reg)},
		}}, "array literal element")
		cg.ra.releaseTemp(elT)
	}
	return nil
}

// exprIsFloat determines an expression's result type without a full
// type-checking pass; codegen only needs to know int-vs-float routing
// since Aurora's validator already rejected anything that wouldn't
// lower cleanly. cg.typeOf resolves a *Variable against both the
// current function's local declarations and the module's shared
// globals, so a local float (no less than a shared one) routes onto
// the xmm file.
func exprIsFloat(cg *CodeGenerator, e Expr) bool {
	switch n := e.(type) {
	case *Literal:
		return n.Type == TypeFloat
	case *Variable:
		return cg.typeOf(n.Name) == TypeFloat
	case *Binary:
		return exprIsFloat(cg, n.LHS) || exprIsFloat(cg, n.RHS)
	case *Unary:
		return exprIsFloat(cg, n.Operand)
	case *Cast:
		return n.Target == TypeFloat
	case *AtomicLoad:
		return cg.sharedTypes[n.SharedName] == TypeFloat
	default:
		return false
	}
}
