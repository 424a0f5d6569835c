package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/dragazo/NetsBlox-vm/ast"
	"github.com/dragazo/NetsBlox-vm/values"
)

// Compile lowers role into a ByteCode. It is a pure function of role
// (spec.md §8 testable property 7, Testable Properties). Compile never
// returns an error for a structurally valid ast.Role; a call to an
// undeclared function name is a compiler/AST-producer contract violation:
// the lowering code panics, and Compile recovers that panic and returns
// it as an error, matching spec.md §4.2's InvalidOpcode stance
// (defensive, not user-facing) — see SPEC_FULL.md §4.2.
func Compile(role *ast.Role) (code *ByteCode, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bytecode: %v", r)
		}
	}()
	c := newCompiler()

	globalIdx := make(map[string]int, len(role.Funcs))
	for _, f := range role.Funcs {
		globalIdx[f.Name] = c.registerFunc(f.Name, f.Params)
	}
	c.globalFuncIndex = globalIdx

	entityMethodMaps := make([]map[string]int, len(role.Sprites))
	for i, sprite := range role.Sprites {
		m := make(map[string]int, len(sprite.Methods))
		for _, meth := range sprite.Methods {
			m[meth.Name] = c.registerFunc(meth.Name, meth.Params)
		}
		entityMethodMaps[i] = m
	}

	entities := make([]EntityLocations, len(role.Sprites))
	for i, sprite := range role.Sprites {
		fc := &funcCtx{entityMethods: entityMethodMaps[i]}
		scriptPCs := make([]int, 0, len(sprite.Scripts))
		for _, script := range sprite.Scripts {
			start := c.here()
			c.compileBody(script.Body, fc)
			c.emitOp(OpReturnNone)
			scriptPCs = append(scriptPCs, start)
		}
		entities[i] = EntityLocations{Scripts: scriptPCs, Methods: entityMethodMaps[i]}
	}

	for i, f := range role.Funcs {
		idx := globalIdx[f.Name]
		start := c.here()
		c.funcs[idx].EntryPC = start
		c.compileBody(f.Body, &funcCtx{})
		c.emitOp(OpReturnNone)
		_ = i
	}
	for i, sprite := range role.Sprites {
		fc := &funcCtx{entityMethods: entityMethodMaps[i]}
		for _, meth := range sprite.Methods {
			idx := entityMethodMaps[i][meth.Name]
			start := c.here()
			c.funcs[idx].EntryPC = start
			c.compileBody(meth.Body, fc)
			c.emitOp(OpReturnNone)
		}
	}

	for len(c.pendingClosures) > 0 {
		pending := c.pendingClosures[0]
		c.pendingClosures = c.pendingClosures[1:]
		start := c.here()
		c.closures[pending.idx].EntryPC = start
		c.compileBody(pending.body, pending.fc)
		c.emitOp(OpReturnNone)
	}

	return &ByteCode{
		Code:      c.code,
		Constants: c.constants,
		VarNames:  c.varNames,
		Funcs:     c.funcs,
		Closures:  c.closures,
		Entities:  entities,
	}, nil
}

// funcCtx is the compile-time scope for name resolution: entityMethods is
// non-nil (but may be empty) when compiling code that belongs to a
// particular entity, so CallExpr can prefer that entity's methods over
// the global func namespace.
type funcCtx struct {
	entityMethods map[string]int
}

type pendingClosure struct {
	idx  int
	body []ast.Stmt
	fc   *funcCtx
}

type compiler struct {
	code      []byte
	constants []values.Value
	varNames  []string
	varIndex  map[string]int
	funcs     []FuncEntry

	globalFuncIndex map[string]int
	closures        []ClosureTemplate
	pendingClosures []pendingClosure

	tempCounter int
}

func newCompiler() *compiler {
	return &compiler{
		varIndex:        make(map[string]int),
		globalFuncIndex: make(map[string]int),
	}
}

func (c *compiler) registerFunc(name string, params []string) int {
	idx := len(c.funcs)
	c.funcs = append(c.funcs, FuncEntry{Name: name, EntryPC: -1, ParamNames: params})
	return idx
}

func (c *compiler) here() int { return len(c.code) }

func (c *compiler) emitOp(op OpCode) {
	c.code = append(c.code, byte(op))
}

// emitWithOperand appends op followed by a placeholder int32 operand and
// returns the byte offset of that operand (for patchOperand).
func (c *compiler) emitWithOperand(op OpCode, operand int) int {
	c.code = append(c.code, byte(op))
	pos := len(c.code)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(int32(operand)))
	c.code = append(c.code, buf[:]...)
	return pos
}

func (c *compiler) emitCall(op OpCode, funcIdx, argc int) {
	c.code = append(c.code, byte(op))
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(funcIdx)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(argc)))
	c.code = append(c.code, buf[:]...)
}

func (c *compiler) patchOperand(pos, value int) {
	binary.LittleEndian.PutUint32(c.code[pos:pos+4], uint32(int32(value)))
}

func (c *compiler) constIndex(v values.Value) int {
	idx := len(c.constants)
	c.constants = append(c.constants, v)
	return idx
}

func (c *compiler) varNameIndex(name string) int {
	if idx, ok := c.varIndex[name]; ok {
		return idx
	}
	idx := len(c.varNames)
	c.varNames = append(c.varNames, name)
	c.varIndex[name] = idx
	return idx
}

func (c *compiler) freshTempName() string {
	c.tempCounter++
	return fmt.Sprintf("__tmp%d", c.tempCounter)
}

func (c *compiler) resolveFunc(name string, fc *funcCtx) (int, bool) {
	if fc != nil && fc.entityMethods != nil {
		if idx, ok := fc.entityMethods[name]; ok {
			return idx, true
		}
	}
	idx, ok := c.globalFuncIndex[name]
	return idx, ok
}

func (c *compiler) compileBody(body []ast.Stmt, fc *funcCtx) {
	for _, s := range body {
		c.compileStmt(s, fc)
	}
}

func (c *compiler) compileStmt(s ast.Stmt, fc *funcCtx) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		c.compileExpr(n.Expr, fc)
		c.emitOp(OpPop)

	case *ast.VarDeclStmt:
		if n.Init != nil {
			c.compileExpr(n.Init, fc)
		} else {
			c.emitWithOperand(OpPushConst, c.constIndex(values.NewNumber(0)))
		}
		c.emitWithOperand(OpDefineVar, c.varNameIndex(n.Name))

	case *ast.AssignStmt:
		c.compileExpr(n.Value, fc)
		c.emitWithOperand(OpSetVar, c.varNameIndex(n.Name))

	case *ast.IndexAssignStmt:
		c.compileExpr(n.List, fc)
		c.compileExpr(n.Index, fc)
		c.compileExpr(n.Value, fc)
		c.emitOp(OpListSet)

	case *ast.ListPushStmt:
		c.compileExpr(n.List, fc)
		c.compileExpr(n.Value, fc)
		c.emitOp(OpListPush)

	case *ast.IfStmt:
		c.compileExpr(n.Cond, fc)
		elseJump := c.emitWithOperand(OpJumpIfFalse, 0)
		c.compileBody(n.Then, fc)
		if n.Else != nil {
			endJump := c.emitWithOperand(OpJump, 0)
			c.patchOperand(elseJump, c.here())
			c.compileBody(n.Else, fc)
			c.patchOperand(endJump, c.here())
		} else {
			c.patchOperand(elseJump, c.here())
		}

	case *ast.RepeatUntilStmt:
		loopStart := c.here()
		c.compileExpr(n.Cond, fc)
		exitJump := c.emitWithOperand(OpJumpIfTrue, 0)
		c.compileBody(n.Body, fc)
		c.emitWithOperand(OpLoop, loopStart)
		c.patchOperand(exitJump, c.here())

	case *ast.RepeatTimesStmt:
		counter := c.freshTempName()
		c.compileExpr(n.Times, fc)
		// truncate toward zero (n - n mod 1) so a fractional count (e.g.
		// 3.5) runs the body 3 times, not 4 (ast.RepeatTimesStmt's "N
		// truncated towards zero" contract).
		c.emitOp(OpDup)
		c.emitWithOperand(OpPushConst, c.constIndex(values.NewNumber(1)))
		c.emitOp(OpMod)
		c.emitOp(OpSub)
		c.emitWithOperand(OpDefineVar, c.varNameIndex(counter))
		loopStart := c.here()
		c.emitWithOperand(OpGetVar, c.varNameIndex(counter))
		c.emitWithOperand(OpPushConst, c.constIndex(values.NewNumber(0)))
		c.emitOp(OpLe)
		exitJump := c.emitWithOperand(OpJumpIfTrue, 0)
		c.compileBody(n.Body, fc)
		c.emitWithOperand(OpGetVar, c.varNameIndex(counter))
		c.emitWithOperand(OpPushConst, c.constIndex(values.NewNumber(1)))
		c.emitOp(OpSub)
		c.emitWithOperand(OpSetVar, c.varNameIndex(counter))
		c.emitWithOperand(OpLoop, loopStart)
		c.patchOperand(exitJump, c.here())

	case *ast.ForeverStmt:
		loopStart := c.here()
		c.compileBody(n.Body, fc)
		c.emitWithOperand(OpLoop, loopStart)

	case *ast.ReturnStmt:
		if n.Value != nil {
			c.compileExpr(n.Value, fc)
			c.emitOp(OpReturn)
		} else {
			c.emitOp(OpReturnNone)
		}

	case *ast.WarpStmt:
		c.emitOp(OpWarpEnter)
		c.compileBody(n.Body, fc)
		c.emitOp(OpWarpExit)

	case *ast.YieldStmt:
		c.emitOp(OpYield)

	case *ast.WaitStmt:
		c.compileExpr(n.Millis, fc)
		c.emitOp(OpWait)

	default:
		panic(fmt.Sprintf("bytecode: unknown statement node %T", s))
	}
}

func (c *compiler) compileExpr(e ast.Expr, fc *funcCtx) {
	switch n := e.(type) {
	case *ast.LitExpr:
		c.compileLiteral(n.Value)

	case *ast.VarExpr:
		c.emitWithOperand(OpGetVar, c.varNameIndex(n.Name))

	case *ast.BinExpr:
		c.compileBinExpr(n, fc)

	case *ast.UnExpr:
		c.compileExpr(n.Operand, fc)
		switch n.Op {
		case ast.OpNeg:
			c.emitOp(OpNeg)
		case ast.OpNot:
			c.emitOp(OpNot)
		default:
			panic(fmt.Sprintf("bytecode: unknown unary op %v", n.Op))
		}

	case *ast.ListExpr:
		for _, elem := range n.Elements {
			c.compileExpr(elem, fc)
		}
		c.emitWithOperand(OpMakeList, len(n.Elements))

	case *ast.IndexExpr:
		c.compileExpr(n.List, fc)
		c.compileExpr(n.Index, fc)
		c.emitOp(OpListIndex)

	case *ast.LengthExpr:
		c.compileExpr(n.List, fc)
		c.emitOp(OpListLen)

	case *ast.CallExpr:
		for _, a := range n.Args {
			c.compileExpr(a, fc)
		}
		idx, ok := c.resolveFunc(n.Func, fc)
		if !ok {
			panic(fmt.Sprintf("bytecode: call to undeclared function %q", n.Func))
		}
		c.emitCall(OpCall, idx, len(n.Args))

	case *ast.MakeClosureExpr:
		idx := len(c.closures)
		c.closures = append(c.closures, ClosureTemplate{
			EntryPC:      -1,
			ParamNames:   n.Params,
			CaptureNames: n.Captures,
		})
		c.pendingClosures = append(c.pendingClosures, pendingClosure{idx: idx, body: n.Body, fc: fc})
		c.emitWithOperand(OpMakeClosure, idx)

	case *ast.CallClosureExpr:
		c.compileExpr(n.Closure, fc)
		for _, a := range n.Args {
			c.compileExpr(a, fc)
		}
		c.emitCall(OpCallClosure, 0, len(n.Args))

	default:
		panic(fmt.Sprintf("bytecode: unknown expression node %T", e))
	}
}

func (c *compiler) compileLiteral(lit ast.Literal) {
	switch lit.Kind {
	case ast.LitBool:
		c.emitWithOperand(OpPushConst, c.constIndex(values.NewBool(lit.Bool)))
	case ast.LitNumber:
		c.emitWithOperand(OpPushConst, c.constIndex(values.NewNumber(lit.Number)))
	case ast.LitString:
		c.emitWithOperand(OpPushConst, c.constIndex(values.NewString(lit.Str)))
	case ast.LitList:
		for _, e := range lit.List {
			c.compileLiteral(e)
		}
		c.emitWithOperand(OpMakeList, len(lit.List))
	default:
		panic(fmt.Sprintf("bytecode: unknown literal kind %v", lit.Kind))
	}
}

func (c *compiler) compileBinExpr(n *ast.BinExpr, fc *funcCtx) {
	switch n.Op {
	case ast.OpAnd:
		c.compileExpr(n.Left, fc)
		jump := c.emitWithOperand(OpJumpIfFalseNoPop, 0)
		c.emitOp(OpPop)
		c.compileExpr(n.Right, fc)
		c.patchOperand(jump, c.here())
		return
	case ast.OpOr:
		c.compileExpr(n.Left, fc)
		jump := c.emitWithOperand(OpJumpIfTrueNoPop, 0)
		c.emitOp(OpPop)
		c.compileExpr(n.Right, fc)
		c.patchOperand(jump, c.here())
		return
	}

	c.compileExpr(n.Left, fc)
	c.compileExpr(n.Right, fc)
	switch n.Op {
	case ast.OpAdd:
		c.emitOp(OpAdd)
	case ast.OpSub:
		c.emitOp(OpSub)
	case ast.OpMul:
		c.emitOp(OpMul)
	case ast.OpDiv:
		c.emitOp(OpDiv)
	case ast.OpMod:
		c.emitOp(OpMod)
	case ast.OpPow:
		c.emitOp(OpPow)
	case ast.OpEq:
		c.emitOp(OpEq)
	case ast.OpNeq:
		c.emitOp(OpNeq)
	case ast.OpLt:
		c.emitOp(OpLt)
	case ast.OpLe:
		c.emitOp(OpLe)
	case ast.OpGt:
		c.emitOp(OpGt)
	case ast.OpGe:
		c.emitOp(OpGe)
	default:
		panic(fmt.Sprintf("bytecode: unknown binary op %v", n.Op))
	}
}
