// Completion: 100% - Validation pass complete
package main

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/aurora-lang/aurora/internal/platform"
)

// Validator implements the IR post-pass that runs before codegen: every
// variable reference resolves in lexical scope, a return carries a
// value exactly when the function declares a return type, main returns
// int or nothing, spawn targets a declared zero-arity function, and
// atomic.* targets a declared shared variable. The type of a returned
// expression is not compared with the declared return type.
type Validator struct {
	prog      *Program
	sharedSet map[string]Type
	funcSet   map[string]*FunctionDecl
}

func NewValidator(prog *Program) *Validator {
	v := &Validator{
		prog:      prog,
		sharedSet: make(map[string]Type),
		funcSet:   make(map[string]*FunctionDecl),
	}
	for _, s := range prog.Shared {
		v.sharedSet[s.Name] = s.Type
	}
	for _, f := range prog.Functions {
		v.funcSet[f.Name] = f
	}
	return v
}

// scope tracks the names visible at a point in a function body: params,
// the loop-step-desugared for variable, and every let binding in an
// enclosing block.
type scope struct {
	names  map[string]Type
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{names: make(map[string]Type), parent: parent}
}

func (s *scope) declare(name string, ty Type) {
	s.names[name] = ty
}

func (s *scope) lookup(name string) (Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if ty, ok := cur.names[name]; ok {
			return ty, true
		}
	}
	return TypeUnknown, false
}

// visibleNames collects every name reachable from s, used only to
// build "did you mean" suggestions on an undeclared-identifier error.
func (s *scope) visibleNames() []string {
	var out []string
	for cur := s; cur != nil; cur = cur.parent {
		for n := range cur.names {
			out = append(out, n)
		}
	}
	return out
}

// didYouMean appends a suggestion clause when name is close to one of
// candidates, or "" when nothing is close enough to be worth guessing.
func didYouMean(name string, candidates []string) string {
	hits := platform.Suggest(name, candidates, 1)
	if len(hits) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean '%s'?)", hits[0])
}

// Validate runs every check and returns the first error encountered;
// every error is fatal, there is no warning level.
func (v *Validator) Validate() *CompilerError {
	if main, ok := v.funcSet["main"]; ok {
		if main.HasReturn && main.ReturnType != TypeInt {
			return typeErr("'main' must return int or nothing", main.Loc)
		}
	}
	for _, f := range v.prog.Functions {
		if err := v.validateFunction(f); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateFunction(f *FunctionDecl) *CompilerError {
	root := newScope(nil)
	for _, p := range f.Params {
		root.declare(p.Name, p.Type)
	}
	return v.validateBlock(f, f.Body, root)
}

func (v *Validator) validateBlock(f *FunctionDecl, b *Block, parent *scope) *CompilerError {
	s := newScope(parent)
	for _, stmt := range b.Stmts {
		if err := v.validateStmt(f, stmt, s); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateStmt(f *FunctionDecl, stmt Stmt, s *scope) *CompilerError {
	switch n := stmt.(type) {
	case *LetDecl:
		if err := v.validateExpr(n.Value, s); err != nil {
			return err
		}
		s.declare(n.Name, n.Type)
	case *Assign:
		if _, ok := s.lookup(n.Target); !ok {
			return typeErr(fmt.Sprintf("assignment to undeclared variable '%s'%s", n.Target, didYouMean(n.Target, s.visibleNames())), n.Loc)
		}
		return v.validateExpr(n.Value, s)
	case *ArrayAssign:
		if _, ok := s.lookup(n.Name); !ok {
			return typeErr(fmt.Sprintf("undeclared array '%s'%s", n.Name, didYouMean(n.Name, s.visibleNames())), n.Loc)
		}
		if err := v.validateExpr(n.Index, s); err != nil {
			return err
		}
		return v.validateExpr(n.Value, s)
	case *If:
		if err := v.validateExpr(n.Cond, s); err != nil {
			return err
		}
		if err := v.validateBlock(f, n.Then, s); err != nil {
			return err
		}
		if n.Else != nil {
			return v.validateBlock(f, n.Else, s)
		}
	case *While:
		if err := v.validateExpr(n.Cond, s); err != nil {
			return err
		}
		return v.validateBlock(f, n.Body, s)
	case *For:
		if err := v.validateExpr(n.Start, s); err != nil {
			return err
		}
		if err := v.validateExpr(n.End, s); err != nil {
			return err
		}
		if n.Step != nil {
			if err := v.validateExpr(n.Step, s); err != nil {
				return err
			}
		}
		inner := newScope(s)
		inner.declare(n.Iter, TypeInt)
		return v.validateBlock(f, n.Body, inner)
	case *Return:
		if n.Value == nil {
			if f.HasReturn {
				return typeErr(fmt.Sprintf("function '%s' must return a value", f.Name), n.Loc)
			}
			return nil
		}
		if !f.HasReturn {
			return typeErr(fmt.Sprintf("function '%s' declares no return type", f.Name), n.Loc)
		}
		return v.validateExpr(n.Value, s)
	case *AtomicOp:
		if _, ok := v.sharedSet[n.SharedName]; !ok {
			return typeErr(fmt.Sprintf("atomic operation on undeclared shared variable '%s'", n.SharedName), n.Loc)
		}
		return v.validateExpr(n.Value, s)
	case *Join:
		return v.validateExpr(n.Handle, s)
	case *Request:
		if n.Arg != nil {
			return v.validateExpr(n.Arg, s)
		}
	case *ExprStmt:
		return v.validateExpr(n.X, s)
	}
	return nil
}

func (v *Validator) validateExpr(e Expr, s *scope) *CompilerError {
	switch n := e.(type) {
	case *Variable:
		if _, ok := s.lookup(n.Name); !ok {
			return typeErr(fmt.Sprintf("undeclared variable '%s'%s", n.Name, didYouMean(n.Name, s.visibleNames())), n.Loc)
		}
	case *Binary:
		if err := v.validateExpr(n.LHS, s); err != nil {
			return err
		}
		return v.validateExpr(n.RHS, s)
	case *Unary:
		return v.validateExpr(n.Operand, s)
	case *Cast:
		return v.validateExpr(n.X, s)
	case *Call:
		if _, ok := v.funcSet[n.Name]; !ok {
			return typeErr(fmt.Sprintf("call to undeclared function '%s'%s", n.Name, didYouMean(n.Name, v.funcNames())), n.Loc)
		}
		for _, a := range n.Args {
			if err := v.validateExpr(a, s); err != nil {
				return err
			}
		}
	case *ArrayLiteral:
		for _, el := range n.Elems {
			if err := v.validateExpr(el, s); err != nil {
				return err
			}
		}
	case *ArrayAccess:
		if _, ok := s.lookup(n.Name); !ok {
			return typeErr(fmt.Sprintf("undeclared array '%s'%s", n.Name, didYouMean(n.Name, s.visibleNames())), n.Loc)
		}
		return v.validateExpr(n.Index, s)
	case *AtomicLoad:
		if _, ok := v.sharedSet[n.SharedName]; !ok {
			return typeErr(fmt.Sprintf("atomic.load on undeclared shared variable '%s'", n.SharedName), n.Loc)
		}
	case *Spawn:
		target, ok := v.funcSet[n.FuncName]
		if !ok {
			return typeErr(fmt.Sprintf("spawn target '%s' is not a declared function%s", n.FuncName, didYouMean(n.FuncName, v.funcNames())), n.Loc)
		}
		if len(target.Params) != 0 {
			return typeErr(fmt.Sprintf("spawn target '%s' must have arity 0", n.FuncName), n.Loc)
		}
	}
	return nil
}

// declaredSharedNames returns every shared-variable name in declaration
// order; nothing in the package calls it.
func (v *Validator) declaredSharedNames() []string {
	return lo.Map(v.prog.Shared, func(s *SharedDecl, _ int) string { return s.Name })
}

func (v *Validator) funcNames() []string {
	return lo.Keys(v.funcSet)
}
