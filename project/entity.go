package project

import (
	"github.com/dragazo/NetsBlox-vm/process"
	"github.com/dragazo/NetsBlox-vm/system"
	"github.com/dragazo/NetsBlox-vm/values"
)

// EntityKind distinguishes the stage from authored and spawned sprites
// (spec.md §3).
type EntityKind int

const (
	EntityStage EntityKind = iota
	EntityOriginal
	EntityClone
)

func (k EntityKind) String() string {
	switch k {
	case EntityStage:
		return "Stage"
	case EntityOriginal:
		return "Original"
	case EntityClone:
		return "Clone"
	default:
		return "Unknown"
	}
}

// Entity holds a field SymbolTable, a list of Scripts, and the rotating
// cursor that round-robins among them (spec.md §3, §4.5). It implements
// process.Scope directly: field lookups hit its own table, global
// lookups hit the Project-owned table it was built with (stored once,
// since globals never change identity over the Project's lifetime).
type Entity struct {
	Name    string
	kind    EntityKind
	fields  *values.SymbolTable
	globals *values.SymbolTable
	scripts []*Script
	cursor  int
}

func newEntity(name string, kind EntityKind, fields, globals *values.SymbolTable) *Entity {
	return &Entity{Name: name, kind: kind, fields: fields, globals: globals}
}

// Kind returns Stage, Original, or Clone.
func (e *Entity) Kind() EntityKind { return e.kind }

// Scripts returns the entity's scripts, in compile order.
func (e *Entity) Scripts() []*Script { return e.scripts }

// Roots returns every Value reachable from this entity's fields and its
// scripts' process/queue state, for Project.Sweep's mark/sweep root set.
func (e *Entity) Roots() []values.Value {
	var roots []values.Value
	for _, name := range e.fields.Names() {
		cell, _ := e.fields.Lookup(name)
		roots = append(roots, cell.Get())
	}
	for _, scr := range e.scripts {
		roots = append(roots, scr.Roots()...)
	}
	return roots
}

// LookupField implements process.Scope.
func (e *Entity) LookupField(name string) (*values.Cell, bool) { return e.fields.Lookup(name) }

// LookupGlobal implements process.Scope.
func (e *Entity) LookupGlobal(name string) (*values.Cell, bool) { return e.globals.Lookup(name) }

// cloneFields builds an independent copy of e's field table for a new
// clone entity: scalar values copy by value (immutable); list values get
// a fresh pool-owned copy of their elements so a clone's lists are not
// accidentally aliased to the original's (Scratch-style clone semantics
// — not specified in spec.md §4.6, which is silent on field values for
// HatOnClone; decided here).
func cloneFields(pool *values.RefPool, fields *values.SymbolTable) *values.SymbolTable {
	out := values.NewSymbolTable()
	for _, name := range fields.Names() {
		cell, _ := fields.Lookup(name)
		v := cell.Get()
		if lst, ok := v.(values.ListValue); ok {
			v = pool.NewList(lst.Elements())
		}
		out.Define(name, values.NewCell(v))
	}
	return out
}

// Step runs exactly one of this entity's scripts (spec.md §4.5):
//   - no scripts -> Yield (nothing for this entity to contribute)
//   - otherwise step the cursor script; keep the cursor on Normal,
//     advance it modulo len(scripts) on anything else.
func (e *Entity) Step(pool *values.RefPool, sys system.System) (process.StepType, error) {
	if len(e.scripts) == 0 {
		return process.Yield(), nil
	}
	result, err := e.scripts[e.cursor].Step(pool, sys, e)
	if result.Kind != process.StepNormal {
		e.cursor = (e.cursor + 1) % len(e.scripts)
	}
	return result, err
}
