package values

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is the dynamically-typed tagged union described in spec.md §3.
type Value interface {
	Type() TypeCode
	String() string
	Truthy() bool
	// Equal is structural ("value") equality: case-insensitive for
	// strings by default, deep for lists, and NaN != NaN for numbers.
	Equal(other Value) bool
	// Identity returns a tag such that two values are identity-equal iff
	// their tags compare equal with ==. Lists/closures use their pool
	// handle (pointer equality of the heap cell); scalars use a
	// content-derived tag so that equal scalars always share identity.
	Identity() Identity
}

// Identity is a comparable identity tag (spec.md §3/§8 property 5).
type Identity struct {
	Kind   TypeCode
	Handle Handle
	Bits   uint64
	Str    string
}

// ---------------------------------------------------------------------
// Bool
// ---------------------------------------------------------------------

type BoolValue struct{ Val bool }

func NewBool(b bool) BoolValue { return BoolValue{Val: b} }

func (b BoolValue) Type() TypeCode { return TypeBool }
func (b BoolValue) String() string {
	if b.Val {
		return "true"
	}
	return "false"
}
func (b BoolValue) Truthy() bool { return b.Val }
func (b BoolValue) Equal(other Value) bool {
	o, ok := other.(BoolValue)
	return ok && o.Val == b.Val
}
func (b BoolValue) Identity() Identity {
	var bits uint64
	if b.Val {
		bits = 1
	}
	return Identity{Kind: TypeBool, Bits: bits}
}

// ---------------------------------------------------------------------
// Number
// ---------------------------------------------------------------------

type NumberValue struct{ Val float64 }

func NewNumber(f float64) NumberValue { return NumberValue{Val: f} }

func (n NumberValue) Type() TypeCode { return TypeNumber }

// String formats using the shortest round-trip representation for finite
// doubles, and "inf"/"-inf"/"nan" otherwise (spec.md §4.1).
func (n NumberValue) String() string {
	switch {
	case math.IsNaN(n.Val):
		return "nan"
	case math.IsInf(n.Val, 1):
		return "inf"
	case math.IsInf(n.Val, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(n.Val, 'g', -1, 64)
	}
}
func (n NumberValue) Truthy() bool { return n.Val != 0 && !math.IsNaN(n.Val) }
func (n NumberValue) Equal(other Value) bool {
	o, ok := other.(NumberValue)
	if !ok {
		return false
	}
	if math.IsNaN(n.Val) || math.IsNaN(o.Val) {
		return false
	}
	return n.Val == o.Val
}
func (n NumberValue) Identity() Identity {
	return Identity{Kind: TypeNumber, Bits: math.Float64bits(n.Val)}
}

// ParseNumber implements the coercion rule in spec.md §4.1: parse ignores
// leading/trailing whitespace. ok is false if no number could be parsed.
func ParseNumber(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	switch strings.ToLower(trimmed) {
	case "inf", "+inf", "infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	case "nan":
		return math.NaN(), true
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ---------------------------------------------------------------------
// String
// ---------------------------------------------------------------------

type StringValue struct{ Val string }

func NewString(s string) StringValue { return StringValue{Val: s} }

func (s StringValue) Type() TypeCode { return TypeString }
func (s StringValue) String() string { return s.Val }
func (s StringValue) Truthy() bool   { return s.Val != "" }

// Equal is case-insensitive by default (spec.md §3).
func (s StringValue) Equal(other Value) bool {
	o, ok := other.(StringValue)
	return ok && strings.EqualFold(s.Val, o.Val)
}

// EqualCase is a case-sensitive structural comparison, for primitives
// that need it explicitly (spec.md §8 scenario 8 exercises both via
// surface-level blocks, which pick whichever comparison they need).
func (s StringValue) EqualCase(other Value) bool {
	o, ok := other.(StringValue)
	return ok && s.Val == o.Val
}

func (s StringValue) Identity() Identity {
	return Identity{Kind: TypeString, Str: strings.ToLower(s.Val)}
}

// ---------------------------------------------------------------------
// List
// ---------------------------------------------------------------------

// ListValue is a weak handle into a RefPool-owned list cell.
type ListValue struct {
	handle Handle
	pool   *RefPool
}

func (l ListValue) Type() TypeCode { return TypeList }

func (l ListValue) String() string {
	data := l.pool.list(l.handle)
	if data == nil {
		return "{}"
	}
	parts := make([]string, len(data.Elements))
	for i, e := range data.Elements {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (l ListValue) Truthy() bool { return l.Len() > 0 }

func (l ListValue) Equal(other Value) bool {
	o, ok := other.(ListValue)
	if !ok {
		return false
	}
	if l.handle == o.handle && l.pool == o.pool {
		return true
	}
	a, b := l.pool.list(l.handle), o.pool.list(o.handle)
	if a == nil || b == nil || len(a.Elements) != len(b.Elements) {
		return false
	}
	for i := range a.Elements {
		// Self-containing lists compare identity-first so a cycle
		// terminates recursion instead of looping forever.
		if a.Elements[i].Identity() == b.Elements[i].Identity() {
			continue
		}
		if !a.Elements[i].Equal(b.Elements[i]) {
			return false
		}
	}
	return true
}

func (l ListValue) Identity() Identity {
	return Identity{Kind: TypeList, Handle: l.handle}
}

// Len returns the list's current length.
func (l ListValue) Len() int {
	data := l.pool.list(l.handle)
	if data == nil {
		return 0
	}
	return len(data.Elements)
}

// Get returns the element at a 1-based index, and whether it was in range.
func (l ListValue) Get(index int) (Value, bool) {
	data := l.pool.list(l.handle)
	if data == nil || index < 1 || index > len(data.Elements) {
		return nil, false
	}
	return data.Elements[index-1], true
}

// Set mutates the element at a 1-based index in place (shared mutation —
// every alias of this handle observes the write).
func (l ListValue) Set(index int, v Value) bool {
	data := l.pool.list(l.handle)
	if data == nil || index < 1 || index > len(data.Elements) {
		return false
	}
	data.Elements[index-1] = v
	return true
}

// Push appends a value to the end.
func (l ListValue) Push(v Value) {
	data := l.pool.list(l.handle)
	if data == nil {
		return
	}
	data.Elements = append(data.Elements, v)
}

// Pop removes and returns the last element.
func (l ListValue) Pop() (Value, bool) {
	data := l.pool.list(l.handle)
	if data == nil || len(data.Elements) == 0 {
		return nil, false
	}
	v := data.Elements[len(data.Elements)-1]
	data.Elements = data.Elements[:len(data.Elements)-1]
	return v, true
}

// InsertAt inserts v at a 1-based index, shifting later elements right.
// Index is clamped to [1, len+1].
func (l ListValue) InsertAt(index int, v Value) {
	data := l.pool.list(l.handle)
	if data == nil {
		return
	}
	if index < 1 {
		index = 1
	}
	if index > len(data.Elements)+1 {
		index = len(data.Elements) + 1
	}
	data.Elements = append(data.Elements, nil)
	copy(data.Elements[index:], data.Elements[index-1:len(data.Elements)-1])
	data.Elements[index-1] = v
}

// DeleteAt removes the element at a 1-based index. No-op if out of range.
func (l ListValue) DeleteAt(index int) {
	data := l.pool.list(l.handle)
	if data == nil || index < 1 || index > len(data.Elements) {
		return
	}
	data.Elements = append(data.Elements[:index-1], data.Elements[index:]...)
}

// Elements returns a snapshot slice of the list's current elements, used
// by "for each" loops (spec.md §5: "snapshot length at loop entry").
func (l ListValue) Elements() []Value {
	data := l.pool.list(l.handle)
	if data == nil {
		return nil
	}
	cp := make([]Value, len(data.Elements))
	copy(cp, data.Elements)
	return cp
}

// Pool returns the owning pool (used by process ops that need to
// allocate further lists relative to this one).
func (l ListValue) Pool() *RefPool { return l.pool }

// ---------------------------------------------------------------------
// Closure
// ---------------------------------------------------------------------

// ClosureValue is a weak handle into a RefPool-owned closure cell.
type ClosureValue struct {
	handle Handle
	pool   *RefPool
}

func (c ClosureValue) Type() TypeCode { return TypeClosure }
func (c ClosureValue) String() string {
	data := c.pool.closure(c.handle)
	if data == nil {
		return "<closure>"
	}
	return fmt.Sprintf("<closure %s>", strings.Join(data.ParamNames, ", "))
}
func (c ClosureValue) Truthy() bool { return true }
func (c ClosureValue) Equal(other Value) bool {
	o, ok := other.(ClosureValue)
	return ok && o.handle == c.handle && o.pool == c.pool
}
func (c ClosureValue) Identity() Identity {
	return Identity{Kind: TypeClosure, Handle: c.handle}
}

// Data returns the closure's backing data (entry PC, params, captures).
func (c ClosureValue) Data() *ClosureData { return c.pool.closure(c.handle) }
