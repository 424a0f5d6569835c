package values

import "github.com/dragazo/NetsBlox-vm/ast"

// FromAST constructs a Value from a literal AST node (spec.md §4.1
// Value::from_ast); lists recurse through the same pool.
func (p *RefPool) FromAST(lit ast.Literal) Value {
	switch lit.Kind {
	case ast.LitBool:
		return NewBool(lit.Bool)
	case ast.LitNumber:
		return NewNumber(lit.Number)
	case ast.LitString:
		return NewString(lit.Str)
	case ast.LitList:
		elems := make([]Value, len(lit.List))
		for i, e := range lit.List {
			elems[i] = p.FromAST(e)
		}
		return p.NewList(elems)
	default:
		return NewNumber(0)
	}
}

// FromString builds a string value; intern=true requests deduplication
// against previously interned text (spec.md §4.1).
func (p *RefPool) FromString(text string, intern bool) StringValue {
	if intern {
		return NewString(p.Intern(text))
	}
	return NewString(text)
}
