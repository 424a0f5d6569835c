// Package project implements the two-level round-robin scheduler:
// Project over Entities, Entity over its own Scripts (spec.md §1, §4.4
// - §4.6), grounded on the teacher's server/scheduler.go front/back
// requeue idiom for its rotation deque.
package project

import (
	"errors"
	"fmt"

	"github.com/dragazo/NetsBlox-vm/ast"
	"github.com/dragazo/NetsBlox-vm/bytecode"
	"github.com/dragazo/NetsBlox-vm/process"
	"github.com/dragazo/NetsBlox-vm/system"
	"github.com/dragazo/NetsBlox-vm/values"
)

// ErrNoSprites is returned by New when the role has zero sprites. The
// source specification leaves stage-kind inference from "sprite index
// 0" ambiguous for the empty case (spec.md §9 Open Questions); this
// repo fails construction explicitly rather than synthesizing an empty
// stage (DESIGN.md Open Question #4).
var ErrNoSprites = errors.New("project: role has no sprites; cannot infer a stage")

// EntityKey is a stable, opaque handle into Project's entity map. Keys
// are never reused within a Project's lifetime, so a stale key (from a
// destroyed clone) can always be distinguished from a live one.
type EntityKey uint64

// UserInput is the closed set of external events Project.Input accepts
// (spec.md §6).
type UserInput struct {
	kind    userInputKind
	Key     string        // HatOnKeyPress match, for KeyPress
	Message string        // HatOnMessage match, for Message
	Payload []values.Value // Message event payload
	Target  EntityKey      // entity to clone, for Clone
}

type userInputKind int

const (
	inputClickStart userInputKind = iota
	inputKeyPress
	inputMessage
	inputClone
)

func ClickStart() UserInput                { return UserInput{kind: inputClickStart} }
func KeyPress(key string) UserInput        { return UserInput{kind: inputKeyPress, Key: key} }
func Message(name string, payload []values.Value) UserInput {
	return UserInput{kind: inputMessage, Message: name, Payload: payload}
}
func Clone(target EntityKey) UserInput { return UserInput{kind: inputClone, Target: target} }

// Project owns the RefPool, globals, the entity map, and the entity
// rotation deque (spec.md §3, §4.6).
type Project struct {
	pool         *values.RefPool
	globals      *values.SymbolTable
	code         *bytecode.ByteCode
	maxCallDepth int
	sys          system.System

	entities map[EntityKey]*Entity
	order    []EntityKey // rotation queue; front = order[0]
	nextKey  EntityKey
}

// New builds a Project from a parsed role (spec.md §4.6).
func New(role *ast.Role, maxCallDepth int, sys system.System) (*Project, error) {
	if len(role.Sprites) == 0 {
		return nil, ErrNoSprites
	}

	pool := values.NewRefPool()

	globals := values.NewSymbolTable()
	for _, g := range role.Globals {
		globals.Define(g.Name, values.NewCell(pool.FromAST(g.Value)))
	}

	code, err := bytecode.Compile(role)
	if err != nil {
		return nil, fmt.Errorf("project: compiling role %q: %w", role.Name, err)
	}

	p := &Project{
		pool:         pool,
		globals:      globals,
		code:         code,
		maxCallDepth: maxCallDepth,
		sys:          sys,
		entities:     make(map[EntityKey]*Entity),
	}

	for i, sprite := range role.Sprites {
		kind := EntityOriginal
		if i == 0 {
			kind = EntityStage
		}
		fields := values.NewSymbolTable()
		for _, f := range sprite.Fields {
			fields.Define(f.Name, values.NewCell(pool.FromAST(f.Value)))
		}
		ent := newEntity(sprite.Name, kind, fields, globals)

		loc := code.Entities[i]
		for j, startPC := range loc.Scripts {
			hat := sprite.Scripts[j].Hat
			proc := process.New(code, maxCallDepth)
			ent.scripts = append(ent.scripts, newScript(hat, startPC, proc))
		}

		key := p.nextKey
		p.nextKey++
		p.entities[key] = ent
		p.order = append(p.order, key)
	}

	return p, nil
}

// Entity returns the live entity for key, if any.
func (p *Project) Entity(key EntityKey) (*Entity, bool) {
	e, ok := p.entities[key]
	return e, ok
}

// EntityByName returns the first live entity in rotation order whose Name
// matches, and its key. Sprite names need not be unique in general, but
// tests and tools that built a role with unique names can use this to
// avoid tracking keys by hand.
func (p *Project) EntityByName(name string) (*Entity, EntityKey, bool) {
	for _, key := range p.order {
		if ent, ok := p.entities[key]; ok && ent.Name == name {
			return ent, key, true
		}
	}
	return nil, 0, false
}

// Pool returns the Project's RefPool (used by tests and hosts that need
// to read lists directly).
func (p *Project) Pool() *values.RefPool { return p.pool }

// Globals returns the Project's global SymbolTable.
func (p *Project) Globals() *values.SymbolTable { return p.globals }

// Input dispatches an external event to hat-matching scripts (spec.md
// §4.6, §6).
func (p *Project) Input(event UserInput) {
	switch event.kind {
	case inputClickStart:
		p.dispatch(func(h *ast.Hat) bool { return h.Kind == ast.HatOnFlag }, nil)
	case inputKeyPress:
		key := event.Key
		p.dispatch(func(h *ast.Hat) bool { return h.Kind == ast.HatOnKeyPress && h.Key == key }, nil)
	case inputMessage:
		name := event.Message
		payload := event.Payload
		p.dispatch(func(h *ast.Hat) bool { return h.Kind == ast.HatOnMessage && h.Name == name }, func() *values.SymbolTable {
			ctx := values.NewSymbolTable()
			ctx.Define("message", values.NewCell(p.pool.FromVec(payload)))
			return ctx
		})
	case inputClone:
		p.spawnClone(event.Target)
	}
}

// dispatch schedules every hat-matching script across every entity with
// max_queue=0 (spec.md §4.6: "every script with hat OnFlag is scheduled
// with max_queue=0"). buildContext is called once per matching script
// (nil means an empty context).
func (p *Project) dispatch(match func(*ast.Hat) bool, buildContext func() *values.SymbolTable) {
	for _, key := range p.order {
		ent, ok := p.entities[key]
		if !ok {
			continue
		}
		for _, scr := range ent.scripts {
			h := scr.Hat()
			if h == nil || !match(h) {
				continue
			}
			var ctx *values.SymbolTable
			if buildContext != nil {
				ctx = buildContext()
			} else {
				ctx = values.NewSymbolTable()
			}
			scr.Schedule(0, ctx)
		}
	}
}

// spawnClone creates a new Clone entity from target's current field
// values and schedules its HatOnClone scripts (spec.md §4.6's Clone
// UserInput, extended per §6's "extensible to ... Clone{entity}").
func (p *Project) spawnClone(target EntityKey) {
	src, ok := p.entities[target]
	if !ok {
		return
	}
	fields := cloneFields(p.pool, src.fields)
	ent := newEntity(src.Name, EntityClone, fields, p.globals)
	for _, scr := range src.scripts {
		proc := process.New(p.code, p.maxCallDepth)
		ent.scripts = append(ent.scripts, newScript(scr.Hat(), scr.entryPC, proc))
	}

	key := p.nextKey
	p.nextKey++
	p.entities[key] = ent
	p.order = append(p.order, key)

	for _, scr := range ent.scripts {
		if h := scr.Hat(); h != nil && h.Kind == ast.HatOnClone {
			scr.Schedule(0, values.NewSymbolTable())
		}
	}
}

// DestroyEntity removes an entity (e.g. "delete this clone"); the key
// becomes stale and is pruned from the rotation queue lazily by the
// next Step calls (spec.md §3 "stale keys are silently pruned").
func (p *Project) DestroyEntity(key EntityKey) {
	delete(p.entities, key)
}

// Step pops the front rotation key, silently pruning stale keys, steps
// that entity once, then requeues its key to the front (on Normal) or
// back (on anything else) (spec.md §4.6).
func (p *Project) Step() process.StepType {
	for len(p.order) > 0 {
		key := p.order[0]
		p.order = p.order[1:]
		ent, ok := p.entities[key]
		if !ok {
			continue // stale key, pruned
		}
		result, err := ent.Step(p.pool, p.sys)
		if err != nil && p.sys != nil {
			if l := p.sys.Logger(); l != nil {
				l.Printf("project: entity %q: %v", ent.Name, err)
			}
		}
		if result.Kind == process.StepNormal {
			p.order = append([]EntityKey{key}, p.order...)
		} else {
			p.order = append(p.order, key)
		}
		return result
	}
	return process.Idle()
}

// Sweep runs a mark/sweep reclamation pass over the RefPool, rooted at
// globals, every live entity's fields, and every script's in-flight
// Process state (spec.md §9 "reclamation may be deferred ... across
// Project::step epochs"). Hosts call this periodically, not on every
// Step.
func (p *Project) Sweep() int {
	var roots []values.Value
	for _, name := range p.globals.Names() {
		cell, _ := p.globals.Lookup(name)
		roots = append(roots, cell.Get())
	}
	for _, ent := range p.entities {
		roots = append(roots, ent.Roots()...)
	}
	return p.pool.Sweep(roots)
}

// Disassemble renders the Project's compiled ByteCode as a human
// readable instruction listing via bytecode.Disassemble, grounded on the
// teacher's disassembly tooling (SPEC_FULL.md §4.4-4.6). cmd/bcdump does
// not go through a Project; it calls bytecode.Disassemble directly.
func (p *Project) Disassemble() string {
	return bytecode.Disassemble(p.code)
}
