package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders code as a human-readable instruction listing,
// grounded on the teacher's opcode-name-table disassembly idiom (see
// cmd/bcdump). The VM never calls this; it exists purely for tooling
// and debugging.
func Disassemble(code *ByteCode) string {
	var b strings.Builder
	pc := 0
	for pc < len(code.Code) {
		op := OpCode(code.Code[pc])
		line := code.LineForPC(pc)
		fmt.Fprintf(&b, "%6d  ", pc)
		if line > 0 {
			fmt.Fprintf(&b, "L%-4d ", line)
		} else {
			fmt.Fprintf(&b, "      ")
		}
		fmt.Fprintf(&b, "%s", op.String())

		next := pc + 1
		if HasOperand(op) {
			if next+4 > len(code.Code) {
				fmt.Fprintf(&b, " <truncated>\n")
				break
			}
			operand0 := readOperandLE(code.Code, next)
			fmt.Fprintf(&b, " %d", operand0)
			next += 4
			if HasSecondOperand(op) {
				if next+4 > len(code.Code) {
					fmt.Fprintf(&b, " <truncated>\n")
					break
				}
				operand1 := readOperandLE(code.Code, next)
				fmt.Fprintf(&b, ", %d", operand1)
				next += 4
			}
		}
		b.WriteByte('\n')
		pc = next
	}

	fmt.Fprintf(&b, "\nfuncs:\n")
	for i, f := range code.Funcs {
		fmt.Fprintf(&b, "  [%d] %s(%s) @%d\n", i, f.Name, strings.Join(f.ParamNames, ", "), f.EntryPC)
	}
	fmt.Fprintf(&b, "entities:\n")
	for i, e := range code.Entities {
		fmt.Fprintf(&b, "  [%d] scripts=%v methods=%v\n", i, e.Scripts, e.Methods)
	}
	return b.String()
}

func readOperandLE(code []byte, pc int) int32 {
	return int32(uint32(code[pc]) | uint32(code[pc+1])<<8 | uint32(code[pc+2])<<16 | uint32(code[pc+3])<<24)
}
