// Package process implements the bytecode interpreter: a single
// Process executes one script invocation's call stack against a
// shared, read-only bytecode.ByteCode, stepping one instruction per
// call (spec.md §4.3), grounded on the teacher's vm/vm.go VM/StackFrame
// dispatch loop.
package process

import (
	"math"

	"github.com/dragazo/NetsBlox-vm/bytecode"
	"github.com/dragazo/NetsBlox-vm/system"
	"github.com/dragazo/NetsBlox-vm/values"
)

// Scope is what a Process needs from its owning entity/project to
// resolve variables that aren't locals: sprite fields and script/
// project globals (spec.md §3 "lookup chain: frame locals -> entity
// fields -> globals"). process can't import project directly (project
// owns Process), so project.Entity implements this interface instead.
type Scope interface {
	LookupField(name string) (*values.Cell, bool)
	LookupGlobal(name string) (*values.Cell, bool)
}

// frame is one call's activation record. returnPC is where execution
// resumes in the caller once this frame returns; it is meaningless for
// the root frame (len(frames) becomes 0 on its return instead).
// warpDepthAtEntry is the process-global warpDepth this frame was called
// with; returning restores it, undoing any OpWarpEnter left unbalanced by
// a return from inside a warp block (spec.md §4.3 "each frame =
// {return-pc, locals, warp-depth-delta}").
type frame struct {
	returnPC         int
	locals           *values.SymbolTable
	waitUntil        *int64 // unix nanos; nil when not currently waiting
	warpDepthAtEntry int
}

// Process is one script invocation: a value stack, a call stack of
// frames, and the warp-depth counter that suppresses yields (spec.md
// §4.3).
type Process struct {
	code         *bytecode.ByteCode
	maxCallDepth int

	pc        int
	stack     []values.Value
	frames    []*frame
	warpDepth int
	running   bool
}

// New creates a Process bound to code, bounding call depth at
// maxCallDepth (spec.md §4.3 "CallDepthExceeded").
func New(code *bytecode.ByteCode, maxCallDepth int) *Process {
	return &Process{code: code, maxCallDepth: maxCallDepth}
}

// IsRunning reports whether the process has an active call stack.
func (p *Process) IsRunning() bool { return p.running }

// Roots returns every Value currently reachable from this process's
// value stack and call-frame locals: its contribution to a
// project.Project's mark/sweep root set (spec.md §9).
func (p *Process) Roots() []values.Value {
	roots := append([]values.Value(nil), p.stack...)
	for _, fr := range p.frames {
		for _, name := range fr.locals.Names() {
			cell, _ := fr.locals.Lookup(name)
			roots = append(roots, cell.Get())
		}
	}
	return roots
}

// Initialize starts (or restarts) the process at entryPC with the
// given root-frame locals (typically the script/method's bound
// parameters).
func (p *Process) Initialize(entryPC int, locals *values.SymbolTable) {
	if locals == nil {
		locals = values.NewSymbolTable()
	}
	p.pc = entryPC
	p.stack = p.stack[:0]
	p.frames = []*frame{{returnPC: -1, locals: locals, warpDepthAtEntry: 0}}
	p.warpDepth = 0
	p.running = true
}

func (p *Process) abort() {
	p.running = false
	p.frames = nil
	p.stack = p.stack[:0]
}

func (p *Process) push(v values.Value) { p.stack = append(p.stack, v) }

func (p *Process) pop() values.Value {
	n := len(p.stack) - 1
	v := p.stack[n]
	p.stack = p.stack[:n]
	return v
}

func (p *Process) top() *frame { return p.frames[len(p.frames)-1] }

// readOperand decodes a little-endian uint32 operand starting at pc.
func readOperand(code []byte, pc int) int {
	return int(uint32(code[pc]) | uint32(code[pc+1])<<8 | uint32(code[pc+2])<<16 | uint32(code[pc+3])<<24)
}

// lookup resolves a variable name through the frame-locals -> entity
// fields -> globals chain (spec.md §3).
func (p *Process) lookup(name string, scope Scope) (*values.Cell, bool) {
	if cell, ok := p.top().locals.Lookup(name); ok {
		return cell, true
	}
	if scope != nil {
		if cell, ok := scope.LookupField(name); ok {
			return cell, true
		}
		if cell, ok := scope.LookupGlobal(name); ok {
			return cell, true
		}
	}
	return nil, false
}

// Step executes exactly one bytecode instruction and reports what the
// caller (project.Script/Entity/Project) should do next (spec.md §4.3,
// §6 "Process::step(&pool, &system, &project, entity_key)").
func (p *Process) Step(pool *values.RefPool, sys system.System, scope Scope) (StepType, error) {
	if !p.running {
		return Idle(), nil
	}

	code := p.code.Code
	op := bytecode.OpCode(code[p.pc])
	opStart := p.pc
	operandPC := p.pc + 1

	switch op {
	case bytecode.OpPushConst:
		idx := readOperand(code, operandPC)
		p.push(p.code.Constants[idx])
		p.pc = operandPC + 4
		return Normal(), nil

	case bytecode.OpPop:
		p.pop()
		p.pc++
		return Normal(), nil

	case bytecode.OpDup:
		p.push(p.stack[len(p.stack)-1])
		p.pc++
		return Normal(), nil

	case bytecode.OpDefineVar:
		idx := readOperand(code, operandPC)
		name := p.code.VarNames[idx]
		v := p.pop()
		p.top().locals.RedefineOrDefine(name, values.NewCell(v))
		p.pc = operandPC + 4
		return Normal(), nil

	case bytecode.OpGetVar:
		idx := readOperand(code, operandPC)
		name := p.code.VarNames[idx]
		cell, ok := p.lookup(name, scope)
		if !ok {
			err := errUndefinedVariable(name)
			p.abort()
			return Idle(), err
		}
		p.push(cell.Get())
		p.pc = operandPC + 4
		return Normal(), nil

	case bytecode.OpSetVar:
		idx := readOperand(code, operandPC)
		name := p.code.VarNames[idx]
		cell, ok := p.lookup(name, scope)
		if !ok {
			err := errUndefinedVariable(name)
			p.abort()
			return Idle(), err
		}
		cell.Set(p.pop())
		p.pc = operandPC + 4
		return Normal(), nil

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpPow:
		b := p.pop()
		a := p.pop()
		res, err := arith(op, a, b)
		if err != nil {
			p.abort()
			return Idle(), err
		}
		p.push(res)
		p.pc++
		return Normal(), nil

	case bytecode.OpNeg:
		a := p.pop()
		n, ok := toNumber(a)
		if !ok {
			err := errTypeMismatch("NEG", a.Type().String())
			p.abort()
			return Idle(), err
		}
		p.push(values.NewNumber(-n))
		p.pc++
		return Normal(), nil

	case bytecode.OpEq, bytecode.OpNeq:
		b := p.pop()
		a := p.pop()
		eq := looseEqual(a, b)
		if op == bytecode.OpNeq {
			eq = !eq
		}
		p.push(values.NewBool(eq))
		p.pc++
		return Normal(), nil

	case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
		b := p.pop()
		a := p.pop()
		res, err := compare(op, a, b)
		if err != nil {
			p.abort()
			return Idle(), err
		}
		p.push(values.NewBool(res))
		p.pc++
		return Normal(), nil

	case bytecode.OpNot:
		a := p.pop()
		p.push(values.NewBool(!a.Truthy()))
		p.pc++
		return Normal(), nil

	case bytecode.OpJump:
		p.pc = readOperand(code, operandPC)
		return Normal(), nil

	case bytecode.OpJumpIfFalse:
		target := readOperand(code, operandPC)
		v := p.pop()
		if !v.Truthy() {
			p.pc = target
		} else {
			p.pc = operandPC + 4
		}
		return Normal(), nil

	case bytecode.OpJumpIfTrue:
		target := readOperand(code, operandPC)
		v := p.pop()
		if v.Truthy() {
			p.pc = target
		} else {
			p.pc = operandPC + 4
		}
		return Normal(), nil

	case bytecode.OpJumpIfFalseNoPop:
		target := readOperand(code, operandPC)
		v := p.stack[len(p.stack)-1]
		if !v.Truthy() {
			p.pc = target
		} else {
			p.pop()
			p.pc = operandPC + 4
		}
		return Normal(), nil

	case bytecode.OpJumpIfTrueNoPop:
		target := readOperand(code, operandPC)
		v := p.stack[len(p.stack)-1]
		if v.Truthy() {
			p.pc = target
		} else {
			p.pop()
			p.pc = operandPC + 4
		}
		return Normal(), nil

	case bytecode.OpLoop:
		p.pc = readOperand(code, operandPC)
		if p.warpDepth == 0 {
			return Yield(), nil
		}
		return Normal(), nil

	case bytecode.OpReturn:
		v := p.pop()
		fr := p.frames[len(p.frames)-1]
		p.frames = p.frames[:len(p.frames)-1]
		p.warpDepth = fr.warpDepthAtEntry
		if len(p.frames) == 0 {
			p.running = false
			return TerminateValue(v), nil
		}
		p.push(v)
		p.pc = fr.returnPC
		return Normal(), nil

	case bytecode.OpReturnNone:
		fr := p.frames[len(p.frames)-1]
		p.frames = p.frames[:len(p.frames)-1]
		p.warpDepth = fr.warpDepthAtEntry
		if len(p.frames) == 0 {
			p.running = false
			return TerminateNone(), nil
		}
		p.push(values.NewNumber(0))
		p.pc = fr.returnPC
		return Normal(), nil

	case bytecode.OpWarpEnter:
		p.warpDepth++
		p.pc++
		return Normal(), nil

	case bytecode.OpWarpExit:
		if p.warpDepth > 0 {
			p.warpDepth--
		}
		p.pc++
		return Normal(), nil

	case bytecode.OpYield:
		p.pc++
		if p.warpDepth == 0 {
			return Yield(), nil
		}
		return Normal(), nil

	case bytecode.OpWait:
		return p.stepWait(sys, opStart)

	case bytecode.OpCall:
		funcIdx := readOperand(code, operandPC)
		argc := readOperand(code, operandPC+4)
		return p.call(p.code.Funcs[funcIdx].EntryPC, p.code.Funcs[funcIdx].ParamNames, argc, nil, operandPC+8)

	case bytecode.OpTailCall:
		funcIdx := readOperand(code, operandPC)
		argc := readOperand(code, operandPC+4)
		return p.tailCall(p.code.Funcs[funcIdx].EntryPC, p.code.Funcs[funcIdx].ParamNames, argc, nil)

	case bytecode.OpMakeClosure:
		idx := readOperand(code, operandPC)
		tmpl := p.code.Closures[idx]
		captures := make([]*values.Cell, len(tmpl.CaptureNames))
		for i, name := range tmpl.CaptureNames {
			cell, ok := p.lookup(name, scope)
			if !ok {
				err := errUndefinedVariable(name)
				p.abort()
				return Idle(), err
			}
			cell.MarkShared()
			captures[i] = cell
		}
		closure := pool.NewClosure(values.ClosureData{
			EntryPC:      tmpl.EntryPC,
			ParamNames:   append([]string(nil), tmpl.ParamNames...),
			CaptureNames: append([]string(nil), tmpl.CaptureNames...),
			Captures:     captures,
		})
		p.push(closure)
		p.pc = operandPC + 4
		return Normal(), nil

	case bytecode.OpCallClosure:
		argc := readOperand(code, operandPC+4)
		closureVal := p.popClosureForCall(argc)
		cv, ok := closureVal.(values.ClosureValue)
		if !ok {
			err := errTypeMismatch("CALL_CLOSURE", "non-closure")
			p.abort()
			return Idle(), err
		}
		data := cv.Data()
		return p.callClosure(data, argc, operandPC+8)

	case bytecode.OpMakeList:
		n := readOperand(code, operandPC)
		elems := make([]values.Value, n)
		copy(elems, p.stack[len(p.stack)-n:])
		p.stack = p.stack[:len(p.stack)-n]
		p.push(pool.NewList(elems))
		p.pc = operandPC + 4
		return Normal(), nil

	case bytecode.OpListIndex:
		idxVal := p.pop()
		listVal := p.pop()
		lst, ok := listVal.(values.ListValue)
		if !ok {
			err := errTypeMismatch("LIST_INDEX", "non-list")
			p.abort()
			return Idle(), err
		}
		n, ok := toNumber(idxVal)
		if !ok {
			err := errTypeMismatch("LIST_INDEX", "non-numeric index")
			p.abort()
			return Idle(), err
		}
		i := int(n)
		v, ok := lst.Get(i)
		if !ok {
			err := errIndexOutOfRange(i, lst.Len())
			p.abort()
			return Idle(), err
		}
		p.push(v)
		p.pc++
		return Normal(), nil

	case bytecode.OpListSet:
		v := p.pop()
		idxVal := p.pop()
		listVal := p.pop()
		lst, ok := listVal.(values.ListValue)
		if !ok {
			err := errTypeMismatch("LIST_SET", "non-list")
			p.abort()
			return Idle(), err
		}
		n, ok := toNumber(idxVal)
		if !ok {
			err := errTypeMismatch("LIST_SET", "non-numeric index")
			p.abort()
			return Idle(), err
		}
		i := int(n)
		if !lst.Set(i, v) {
			err := errIndexOutOfRange(i, lst.Len())
			p.abort()
			return Idle(), err
		}
		p.pc++
		return Normal(), nil

	case bytecode.OpListPush:
		v := p.pop()
		listVal := p.pop()
		lst, ok := listVal.(values.ListValue)
		if !ok {
			err := errTypeMismatch("LIST_PUSH", "non-list")
			p.abort()
			return Idle(), err
		}
		lst.Push(v)
		p.pc++
		return Normal(), nil

	case bytecode.OpListLen:
		listVal := p.pop()
		lst, ok := listVal.(values.ListValue)
		if !ok {
			err := errTypeMismatch("LIST_LEN", "non-list")
			p.abort()
			return Idle(), err
		}
		p.push(values.NewNumber(float64(lst.Len())))
		p.pc++
		return Normal(), nil

	default:
		err := errInvalidOpcode(byte(op))
		p.abort()
		return Idle(), err
	}
}

// popClosureForCall removes and returns the closure lying beneath the top
// argc args, leaving those args on the stack in call order (callClosure
// re-pushes nothing; call reads them directly from the stack).
func (p *Process) popClosureForCall(argc int) values.Value {
	closureIdx := len(p.stack) - argc - 1
	v := p.stack[closureIdx]
	// remove the closure from beneath its arguments, keeping arg order
	copy(p.stack[closureIdx:], p.stack[closureIdx+1:])
	p.stack = p.stack[:len(p.stack)-1]
	return v
}

func (p *Process) call(entryPC int, paramNames []string, argc int, captureBindings map[string]*values.Cell, returnPC int) (StepType, error) {
	if len(p.frames) >= p.maxCallDepth {
		err := errCallDepthExceeded(p.maxCallDepth)
		p.abort()
		return Idle(), err
	}
	locals := values.NewSymbolTable()
	args := p.stack[len(p.stack)-argc:]
	p.stack = p.stack[:len(p.stack)-argc]
	for i, name := range paramNames {
		var v values.Value
		if i < len(args) {
			v = args[i]
		} else {
			v = values.NewNumber(0)
		}
		locals.RedefineOrDefine(name, values.NewCell(v))
	}
	for name, cell := range captureBindings {
		locals.RedefineOrDefine(name, cell)
	}
	p.frames = append(p.frames, &frame{returnPC: returnPC, locals: locals, warpDepthAtEntry: p.warpDepth})
	p.pc = entryPC
	return Normal(), nil
}

func (p *Process) tailCall(entryPC int, paramNames []string, argc int, captureBindings map[string]*values.Cell) (StepType, error) {
	locals := values.NewSymbolTable()
	args := p.stack[len(p.stack)-argc:]
	p.stack = p.stack[:len(p.stack)-argc]
	for i, name := range paramNames {
		var v values.Value
		if i < len(args) {
			v = args[i]
		} else {
			v = values.NewNumber(0)
		}
		locals.RedefineOrDefine(name, values.NewCell(v))
	}
	for name, cell := range captureBindings {
		locals.RedefineOrDefine(name, cell)
	}
	p.top().locals = locals
	p.pc = entryPC
	return Normal(), nil
}

func (p *Process) callClosure(data *values.ClosureData, argc int, returnPC int) (StepType, error) {
	captureBindings := make(map[string]*values.Cell, len(data.CaptureNames))
	for i, name := range data.CaptureNames {
		captureBindings[name] = data.Captures[i]
	}
	return p.call(data.EntryPC, data.ParamNames, argc, captureBindings, returnPC)
}

// stepWait implements OpWait's suspend-until-elapsed semantics (spec.md
// §4.2). warp_depth does not suppress this yield: waiting is the one
// blocking primitive the spec calls out as exempt from warp suppression.
func (p *Process) stepWait(sys system.System, opStart int) (StepType, error) {
	fr := p.top()
	now := sys.Now().UnixNano()

	if fr.waitUntil == nil {
		millis := p.pop()
		n, ok := toNumber(millis)
		if !ok {
			err := errTypeMismatch("WAIT", "non-numeric duration")
			p.abort()
			return Idle(), err
		}
		deadline := now + int64(n*float64(1e6))
		fr.waitUntil = &deadline
		return Yield(), nil
	}
	if now >= *fr.waitUntil {
		fr.waitUntil = nil
		p.pc = opStart + 1
		return Normal(), nil
	}
	return Yield(), nil
}

// toNumber coerces a Value to float64 the way arithmetic contexts do:
// numbers pass through, numeric strings parse, booleans map to 0/1
// (spec.md §7 "TypeMismatch ... where coercion fails").
func toNumber(v values.Value) (float64, bool) {
	switch t := v.(type) {
	case values.NumberValue:
		return t.Val, true
	case values.StringValue:
		return values.ParseNumber(t.Val)
	case values.BoolValue:
		if t.Val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func arith(op bytecode.OpCode, a, b values.Value) (values.Value, error) {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if !aok || !bok {
		return nil, errTypeMismatch(op.String(), a.Type().String(), b.Type().String())
	}
	switch op {
	case bytecode.OpAdd:
		return values.NewNumber(an + bn), nil
	case bytecode.OpSub:
		return values.NewNumber(an - bn), nil
	case bytecode.OpMul:
		return values.NewNumber(an * bn), nil
	case bytecode.OpDiv:
		return values.NewNumber(an / bn), nil
	case bytecode.OpMod:
		return values.NewNumber(math.Mod(an, bn)), nil
	case bytecode.OpPow:
		return values.NewNumber(math.Pow(an, bn)), nil
	}
	panic("process: arith called with non-arithmetic opcode")
}

func compare(op bytecode.OpCode, a, b values.Value) (bool, error) {
	as, aIsStr := a.(values.StringValue)
	bs, bIsStr := b.(values.StringValue)
	if aIsStr && bIsStr {
		c := compareStrings(as.Val, bs.Val)
		return cmpResult(op, c), nil
	}
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if !aok || !bok {
		return false, errTypeMismatch(op.String(), a.Type().String(), b.Type().String())
	}
	if math.IsNaN(an) || math.IsNaN(bn) {
		// every ordered comparison against NaN is false (spec.md §7)
		return false, nil
	}
	switch {
	case an < bn:
		return cmpResult(op, -1), nil
	case an > bn:
		return cmpResult(op, 1), nil
	default:
		return cmpResult(op, 0), nil
	}
}

func cmpResult(op bytecode.OpCode, c int) bool {
	switch op {
	case bytecode.OpLt:
		return c < 0
	case bytecode.OpLe:
		return c <= 0
	case bytecode.OpGt:
		return c > 0
	case bytecode.OpGe:
		return c >= 0
	}
	panic("process: cmpResult called with non-comparison opcode")
}

func compareStrings(a, b string) int {
	la, lb := toLower(a), toLower(b)
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}

func toLower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func looseEqual(a, b values.Value) bool {
	if a.Type() == b.Type() {
		return a.Equal(b)
	}
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		if math.IsNaN(an) || math.IsNaN(bn) {
			return false
		}
		return an == bn
	}
	return false
}
