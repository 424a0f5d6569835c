package project

import (
	"github.com/dragazo/NetsBlox-vm/ast"
	"github.com/dragazo/NetsBlox-vm/process"
	"github.com/dragazo/NetsBlox-vm/system"
	"github.com/dragazo/NetsBlox-vm/values"
)

// Script wraps one Process with its hat event, entry PC, and a bounded
// FIFO of pending invocation contexts (spec.md §4.4).
type Script struct {
	hat     *ast.Hat
	entryPC int
	process *process.Process
	queue   []*values.SymbolTable
}

func newScript(hat *ast.Hat, entryPC int, proc *process.Process) *Script {
	return &Script{hat: hat, entryPC: entryPC, process: proc}
}

// Hat returns the event that schedules this script, or nil if it is
// never dispatched by Project.Input.
func (s *Script) Hat() *ast.Hat { return s.hat }

// IsRunning reports whether the owned Process currently has an active
// call stack.
func (s *Script) IsRunning() bool { return s.process.IsRunning() }

// Roots returns the owned Process's reachable values plus every queued
// context's bound values, for Project.Sweep's mark/sweep root set.
func (s *Script) Roots() []values.Value {
	roots := s.process.Roots()
	for _, ctx := range s.queue {
		for _, name := range ctx.Names() {
			cell, _ := ctx.Lookup(name)
			roots = append(roots, cell.Get())
		}
	}
	return roots
}

// Schedule enqueues context, then — per spec.md §4.4 — initializes the
// Process immediately if it was Idle, and only then trims the queue to
// maxQueue by dropping from the tail. This ordering (append, maybe
// consume, then trim) is what makes max_queue=0 a no-op trim when the
// queue was already empty and the new context became the in-flight
// invocation (DESIGN.md Open Question #3).
func (s *Script) Schedule(maxQueue int, context *values.SymbolTable) {
	s.queue = append(s.queue, context)
	if !s.process.IsRunning() {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.process.Initialize(s.entryPC, next)
	}
	if len(s.queue) > maxQueue {
		s.queue = s.queue[:maxQueue]
	}
}

// consumeContext re-initializes the Process from the next queued
// context, if any, after a step transitioned it to Idle (spec.md §4.4).
func (s *Script) consumeContext() {
	if s.process.IsRunning() || len(s.queue) == 0 {
		return
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	s.process.Initialize(s.entryPC, next)
}

// Step delegates to the owned Process and returns the StepType
// unchanged (spec.md §4.4), consuming the next queued context if this
// step left the process Idle.
func (s *Script) Step(pool *values.RefPool, sys system.System, scope process.Scope) (process.StepType, error) {
	result, err := s.process.Step(pool, sys, scope)
	if !s.process.IsRunning() {
		s.consumeContext()
	}
	return result, err
}
