package values

// TypeCode is the variant tag returned by Value.Type / Value.Identity
// (spec.md §3, §4.1 get_type).
type TypeCode int

const (
	TypeBool TypeCode = iota
	TypeNumber
	TypeString
	TypeList
	// TypeClosure is an internal extension of the four-variant union in
	// spec.md §3 — see SPEC_FULL.md §3.1 for why it exists and
	// DESIGN.md's Open Question #1 for the resolution record.
	TypeClosure
)

func (t TypeCode) String() string {
	switch t {
	case TypeBool:
		return "Bool"
	case TypeNumber:
		return "Number"
	case TypeString:
		return "String"
	case TypeList:
		return "List"
	case TypeClosure:
		return "Closure"
	default:
		return "Unknown"
	}
}
