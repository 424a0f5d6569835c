package bytecode

import "github.com/dragazo/NetsBlox-vm/values"

// FuncEntry describes one callable function or method (spec.md §3 "funcs
// -> ordered list of (function-definition, entry-PC)").
type FuncEntry struct {
	Name       string
	EntryPC    int
	ParamNames []string
}

// ClosureTemplate is what OpMakeClosure instantiates: an entry point plus
// the names of the outer variables it captures (spec.md §4.2 "captures a
// snapshot of referenced outer cells, not their values").
type ClosureTemplate struct {
	EntryPC      int
	ParamNames   []string
	CaptureNames []string
}

// EntityLocations is the per-sprite sidecar: script start PCs and the
// subset of Funcs scoped to this entity as methods (spec.md §3
// "entities[i].scripts[j] -> start PC of sprite i, script j").
type EntityLocations struct {
	Scripts []int          // script index -> start PC
	Methods map[string]int // method name -> index into ByteCode.Funcs
}

// ByteCode is the immutable, compiled instruction stream plus location
// sidecar shared read-only by every process.Process in a role (spec.md
// §3/§4.2).
type ByteCode struct {
	Code      []byte
	Constants []values.Value
	VarNames  []string
	Funcs     []FuncEntry
	Closures  []ClosureTemplate
	Entities  []EntityLocations
	Lines     []LineEntry // optional source-line sidecar, for disassembly
}

// LineEntry maps a bytecode offset to a source line (used only for
// cmd/bcdump; the VM never reads it).
type LineEntry struct {
	StartPC int
	Line    int
}

// LineForPC returns the best-known source line for pc, or 0 if unknown.
func (b *ByteCode) LineForPC(pc int) int {
	line := 0
	for _, e := range b.Lines {
		if e.StartPC > pc {
			break
		}
		line = e.Line
	}
	return line
}

// funcNameIndex looks up a function's index by name, returning the first
// Funcs entry with that name. It searches methods as well as global funcs;
// global funcs are registered first, so a global func wins over a
// same-named method (method resolution happens per-entity in the compiler
// and is encoded as an absolute Funcs index by the time bytecode is
// emitted, so the VM never needs this at run time).
func (b *ByteCode) funcNameIndex(name string) (int, bool) {
	for i, f := range b.Funcs {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}
