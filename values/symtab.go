package values

import "fmt"

// Cell is a mutable named slot; the unit of closure capture (spec.md
// §3/§9). A Cell is Unique while only one name refers to it and becomes
// Aliased the first time a second name (a captured closure, a passed
// alias) starts sharing it. The Unique -> Aliased transition is one-way.
type Cell struct {
	value  Value
	shared bool
}

// NewCell creates a Unique cell holding v.
func NewCell(v Value) *Cell {
	return &Cell{value: v}
}

// Get returns the cell's current value.
func (c *Cell) Get() Value { return c.value }

// Set mutates the cell's value in place — every alias observes the
// write immediately (spec.md §8 property 6).
func (c *Cell) Set(v Value) { c.value = v }

// MarkShared records that a second reference to this cell now exists.
func (c *Cell) MarkShared() { c.shared = true }

// IsShared reports whether any alias beyond the original owner exists.
func (c *Cell) IsShared() bool { return c.shared }

// SymbolTable is an ordered name -> *Cell mapping (spec.md §3). Multiple
// SymbolTables may hold the same *Cell for the same or different names,
// which is exactly how closure capture and alias passing are modeled.
type SymbolTable struct {
	order []string
	cells map[string]*Cell
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{cells: make(map[string]*Cell)}
}

// Define binds name to cell. It fails if name is already defined in this
// table (spec.md §3).
func (t *SymbolTable) Define(name string, cell *Cell) error {
	if _, ok := t.cells[name]; ok {
		return fmt.Errorf("values: %q already defined", name)
	}
	t.cells[name] = cell
	t.order = append(t.order, name)
	return nil
}

// RedefineOrDefine binds name to cell unconditionally, replacing any
// existing binding for name in this table.
func (t *SymbolTable) RedefineOrDefine(name string, cell *Cell) {
	if _, ok := t.cells[name]; !ok {
		t.order = append(t.order, name)
	}
	t.cells[name] = cell
}

// Lookup returns the cell bound to name in this table, if any.
func (t *SymbolTable) Lookup(name string) (*Cell, bool) {
	c, ok := t.cells[name]
	return c, ok
}

// Names returns the names defined in this table, in definition order.
func (t *SymbolTable) Names() []string {
	cp := make([]string, len(t.order))
	copy(cp, t.order)
	return cp
}

// Len reports how many names are bound.
func (t *SymbolTable) Len() int { return len(t.order) }
