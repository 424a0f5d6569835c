// Package bytecode compiles the externally-parsed ast.Role into the
// linear instruction stream described in spec.md §3/§4.2, shared
// read-only by every process.Process executing that role.
package bytecode

// OpCode is a single bytecode instruction (spec.md §4.2). Dispatch is via
// a dense table indexed by this small integer (spec.md §9 "Dynamic
// dispatch across primitives"), grounded on the teacher's
// vm/opcodes.go dense-iota-table idiom.
type OpCode byte

const (
	// Stack-effect opcodes.
	OpPushConst OpCode = iota // push Constants[operand0]
	OpPop                     // discard top of stack
	OpDup                     // duplicate top of stack

	// Variable opcodes. operand0 indexes into VarNames.
	OpDefineVar // pop value; define VarNames[operand0] in current frame
	OpGetVar    // push lookup(VarNames[operand0])
	OpSetVar    // pop value; store into lookup(VarNames[operand0])

	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNeg

	// Comparison.
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe

	// Logical.
	OpNot

	// Control flow. Jump operands are absolute instruction-stream
	// offsets (not relative deltas) — simpler to backpatch correctly.
	OpJump              // jump to operand0
	OpJumpIfFalse       // pop; if falsy, jump to operand0
	OpJumpIfTrue        // pop; if truthy, jump to operand0
	OpJumpIfFalseNoPop  // if falsy, jump to operand0 (value stays); else pop
	OpJumpIfTrueNoPop   // if truthy, jump to operand0 (value stays); else pop
	OpLoop              // backward jump to operand0; always a back-edge (spec.md §4.3 yield policy)
	OpReturn            // pop value; return it from the current call
	OpReturnNone        // return with no value

	// Warp.
	OpWarpEnter // warp_depth++
	OpWarpExit  // warp_depth--

	// Scheduling.
	OpYield // explicit yield point
	OpWait  // pop millis; suspend until elapsed (spec.md §4.2 suspend-until)

	// Calls.
	OpCall        // call function operand0 (index into Funcs) with operand1 args popped off the stack
	OpTailCall    // like OpCall but reuses the current frame instead of pushing a new one
	OpMakeClosure // build a closure from Closures[operand0]; push it
	OpCallClosure // call the closure lying beneath operand1 args on the stack (operand0 is unused, always 0)

	// Lists.
	OpMakeList   // pop operand0 elements; push a new list
	OpListIndex  // pop index, list; push element (1-based)
	OpListSet    // pop value, index, list; mutate element (1-based)
	OpListPush   // pop value, list; append
	OpListLen    // pop list; push length
)

var opNames = map[OpCode]string{
	OpPushConst:        "PUSH_CONST",
	OpPop:               "POP",
	OpDup:               "DUP",
	OpDefineVar:         "DEFINE_VAR",
	OpGetVar:            "GET_VAR",
	OpSetVar:            "SET_VAR",
	OpAdd:               "ADD",
	OpSub:               "SUB",
	OpMul:               "MUL",
	OpDiv:               "DIV",
	OpMod:               "MOD",
	OpPow:               "POW",
	OpNeg:               "NEG",
	OpEq:                "EQ",
	OpNeq:               "NEQ",
	OpLt:                "LT",
	OpLe:                "LE",
	OpGt:                "GT",
	OpGe:                "GE",
	OpNot:               "NOT",
	OpJump:              "JUMP",
	OpJumpIfFalse:       "JUMP_IF_FALSE",
	OpJumpIfTrue:        "JUMP_IF_TRUE",
	OpJumpIfFalseNoPop:  "JUMP_IF_FALSE_NOPOP",
	OpJumpIfTrueNoPop:   "JUMP_IF_TRUE_NOPOP",
	OpLoop:              "LOOP",
	OpReturn:            "RETURN",
	OpReturnNone:        "RETURN_NONE",
	OpWarpEnter:         "WARP_ENTER",
	OpWarpExit:          "WARP_EXIT",
	OpYield:             "YIELD",
	OpWait:              "WAIT",
	OpCall:              "CALL",
	OpTailCall:          "TAILCALL",
	OpMakeClosure:       "MAKE_CLOSURE",
	OpCallClosure:       "CALL_CLOSURE",
	OpMakeList:          "MAKE_LIST",
	OpListIndex:         "LIST_INDEX",
	OpListSet:           "LIST_SET",
	OpListPush:          "LIST_PUSH",
	OpListLen:           "LIST_LEN",
}

// String returns the opcode's mnemonic, for disassembly (cmd/bcdump).
func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// HasOperand reports whether op is followed by an int32 operand, and
// OpCall/OpCallClosure's second one, in the instruction stream.
func HasOperand(op OpCode) bool {
	switch op {
	case OpPop, OpDup, OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow, OpNeg,
		OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe, OpNot,
		OpReturn, OpReturnNone, OpWarpEnter, OpWarpExit, OpYield, OpWait,
		OpListIndex, OpListSet, OpListPush, OpListLen:
		return false
	default:
		return true
	}
}

// HasSecondOperand reports whether op carries a second int32 operand
// (argument count for calls).
func HasSecondOperand(op OpCode) bool {
	switch op {
	case OpCall, OpTailCall, OpCallClosure:
		return true
	default:
		return false
	}
}
