// Package ast defines the Go-side contract for the externally parsed role
// structure: the stage plus a list of sprites, each with fields, scripts,
// and methods (spec.md §1). Nothing in this package parses source text —
// a block-language compiler builds these values and hands them to
// bytecode.Compile.
package ast

// LiteralKind tags the closed set of values a literal AST node can hold.
type LiteralKind int

const (
	LitBool LiteralKind = iota
	LitNumber
	LitString
	LitList
)

// Literal is a literal value as authored in a block (a variable's initial
// value, a push-literal operand, ...). Lists recurse.
type Literal struct {
	Kind   LiteralKind
	Bool   bool
	Number float64
	Str    string
	List   []Literal
}

// VarDef is a named global or field with its initial value.
type VarDef struct {
	Name  string
	Value Literal
}

// HatKind enumerates the events that can gate a script.
type HatKind int

const (
	HatOnFlag HatKind = iota
	HatOnKeyPress
	HatOnMessage
	HatOnClone
)

// Hat describes the event that schedules a script. A nil *Hat means the
// script is never scheduled by Project.Input — it is only reachable as a
// compile target for tests/tools that invoke it directly by entry PC.
type Hat struct {
	Kind HatKind
	Key  string // only meaningful for HatOnKeyPress
	Name string // only meaningful for HatOnMessage
}

// Script is one hat-gated sequence of statements belonging to an entity.
type Script struct {
	Hat  *Hat
	Body []Stmt
}

// FuncDef is a named function: a role-global function or a sprite-local
// method (spec.md §1 describes sprites as having "fields, scripts, and
// methods" — methods compile into the same funcs table as global
// functions, scoped to the owning entity; see SPEC_FULL.md §4.2).
type FuncDef struct {
	Name   string
	Params []string
	Body   []Stmt
}

// Sprite is one entity authored in the role: the stage (index 0) or an
// original sprite (index > 0).
type Sprite struct {
	Name    string
	Fields  []VarDef
	Scripts []Script
	Methods []FuncDef
}

// Role is one authored program: globals, funcs, and entities (stage +
// sprites, stage first).
type Role struct {
	Name    string
	Globals []VarDef
	Funcs   []FuncDef
	Sprites []Sprite
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

// Expr is an expression node.
type Expr interface {
	exprNode()
}

// LitExpr pushes a literal value.
type LitExpr struct {
	Value Literal
}

func (*LitExpr) exprNode() {}

// VarExpr reads a variable by name, resolved at runtime via the lookup
// order in spec.md §3 (frame locals -> entity fields -> globals).
type VarExpr struct {
	Name string
}

func (*VarExpr) exprNode() {}

// BinOp is the closed set of binary operators.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd // short-circuit
	OpOr  // short-circuit
)

// BinExpr is a binary operation.
type BinExpr struct {
	Op    BinOp
	Left  Expr
	Right Expr
}

func (*BinExpr) exprNode() {}

// UnOp is the closed set of unary operators.
type UnOp int

const (
	OpNeg UnOp = iota
	OpNot
)

// UnExpr is a unary operation.
type UnExpr struct {
	Op      UnOp
	Operand Expr
}

func (*UnExpr) exprNode() {}

// ListExpr builds a new list from element expressions.
type ListExpr struct {
	Elements []Expr
}

func (*ListExpr) exprNode() {}

// IndexExpr reads list[index] (1-based at the surface).
type IndexExpr struct {
	List  Expr
	Index Expr
}

func (*IndexExpr) exprNode() {}

// LengthExpr reads the length of a list.
type LengthExpr struct {
	List Expr
}

func (*LengthExpr) exprNode() {}

// CallExpr calls a named function (global or, when compiled inside an
// entity's own script/method, that entity's method) and yields its
// return value.
type CallExpr struct {
	Func string
	Args []Expr
}

func (*CallExpr) exprNode() {}

// MakeClosureExpr builds a closure value capturing the named outer
// variables by cell (spec.md §4.3) and wrapping the given function body.
type MakeClosureExpr struct {
	Params   []string
	Captures []string
	Body     []Stmt
}

func (*MakeClosureExpr) exprNode() {}

// CallClosureExpr invokes a closure value.
type CallClosureExpr struct {
	Closure Expr
	Args    []Expr
}

func (*CallClosureExpr) exprNode() {}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

// Stmt is a statement node.
type Stmt interface {
	stmtNode()
}

// ExprStmt evaluates an expression and discards the result.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode() {}

// VarDeclStmt defines a new local variable in the current frame.
type VarDeclStmt struct {
	Name string
	Init Expr // may be nil -> initialized to Number(0)
}

func (*VarDeclStmt) stmtNode() {}

// AssignStmt stores into an existing variable, resolved via the same
// lookup order as VarExpr.
type AssignStmt struct {
	Name  string
	Value Expr
}

func (*AssignStmt) stmtNode() {}

// IndexAssignStmt stores into list[index] (1-based).
type IndexAssignStmt struct {
	List  Expr
	Index Expr
	Value Expr
}

func (*IndexAssignStmt) stmtNode() {}

// ListPushStmt appends a value to a list variable.
type ListPushStmt struct {
	List  Expr
	Value Expr
}

func (*ListPushStmt) stmtNode() {}

// IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt // nil if absent
}

func (*IfStmt) stmtNode() {}

// RepeatUntilStmt runs Body until Cond is truthy, checked before each
// iteration (so a truthy Cond up front runs the body zero times).
type RepeatUntilStmt struct {
	Cond Expr
	Body []Stmt
}

func (*RepeatUntilStmt) stmtNode() {}

// RepeatTimesStmt runs Body exactly N times (N truncated towards zero).
type RepeatTimesStmt struct {
	Times Expr
	Body  []Stmt
}

func (*RepeatTimesStmt) stmtNode() {}

// ForeverStmt runs Body in an unconditional loop (exited only via Return
// or a break-style control construct inside Body, if any is ever added).
type ForeverStmt struct {
	Body []Stmt
}

func (*ForeverStmt) stmtNode() {}

// ReturnStmt exits the current call with a value (nil -> no return value).
type ReturnStmt struct {
	Value Expr // may be nil
}

func (*ReturnStmt) stmtNode() {}

// WarpStmt marks Body as a warp region: back-edges and most yields are
// suppressed for its duration (spec.md §4.3).
type WarpStmt struct {
	Body []Stmt
}

func (*WarpStmt) stmtNode() {}

// YieldStmt is an explicit yield point.
type YieldStmt struct{}

func (*YieldStmt) stmtNode() {}

// WaitStmt suspends the process until at least Millis have elapsed
// (spec.md §4.2 "suspend-until"). This always yields, even inside warp.
type WaitStmt struct {
	Millis Expr
}

func (*WaitStmt) stmtNode() {}
