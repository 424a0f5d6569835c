package values

// Handle addresses a heap cell owned by a RefPool: a list or a closure.
// Values carry handles, not owning pointers (spec.md §4.1, §9).
type Handle uint64

// Kind tags what a pool entry holds.
type Kind int

const (
	KindList Kind = iota
	KindClosure
)

// ListData is the mutable backing store for a heap list. Index 0 is
// surface index 1 (spec.md §3: "Lists are 1-indexed at the language
// surface; the VM stores 0-indexed internally").
type ListData struct {
	Elements []Value
}

// ClosureData is the mutable backing store for a heap closure: an entry
// point into the shared ByteCode plus the cells it captured at creation
// time (spec.md §4.3 "closures capture cells, not values").
type ClosureData struct {
	EntryPC      int
	ParamNames   []string
	CaptureNames []string
	Captures     []*Cell // same order as CaptureNames
}

type poolEntry struct {
	kind    Kind
	list    *ListData
	closure *ClosureData
	marked  bool // scratch space for Sweep
}

// RefPool allocates and owns heap cells for lists and closures, handing
// out handles. It is single-threaded (spec.md §5) and performs no locking.
type RefPool struct {
	entries map[Handle]*poolEntry
	next    Handle
	interns map[string]string // canonical stored copy of each interned string
}

// NewRefPool creates an empty pool.
func NewRefPool() *RefPool {
	return &RefPool{
		entries: make(map[Handle]*poolEntry),
		interns: make(map[string]string),
	}
}

// NewList allocates a fresh heap list and returns a Value referencing it.
func (p *RefPool) NewList(elements []Value) ListValue {
	h := p.alloc(poolEntry{kind: KindList, list: &ListData{Elements: elements}})
	return ListValue{handle: h, pool: p}
}

// FromVec bulk-builds a list value (spec.md §4.1 Value::from_vec).
func (p *RefPool) FromVec(elements []Value) ListValue {
	cp := make([]Value, len(elements))
	copy(cp, elements)
	return p.NewList(cp)
}

// NewClosure allocates a fresh heap closure and returns a Value
// referencing it.
func (p *RefPool) NewClosure(data ClosureData) ClosureValue {
	h := p.alloc(poolEntry{kind: KindClosure, closure: &data})
	return ClosureValue{handle: h, pool: p}
}

func (p *RefPool) alloc(e poolEntry) Handle {
	p.next++
	h := p.next
	ent := e
	p.entries[h] = &ent
	return h
}

func (p *RefPool) list(h Handle) *ListData {
	ent, ok := p.entries[h]
	if !ok || ent.kind != KindList {
		return nil
	}
	return ent.list
}

func (p *RefPool) closure(h Handle) *ClosureData {
	ent, ok := p.entries[h]
	if !ok || ent.kind != KindClosure {
		return nil
	}
	return ent.closure
}

// Len reports the number of live entries — used by tests to observe
// reclamation behavior.
func (p *RefPool) Len() int {
	return len(p.entries)
}

// Intern deduplicates immutable string text by value, returning the
// canonical copy already stored for an equal string if one exists
// (spec.md §4.1 Value::from_string with intern=true).
func (p *RefPool) Intern(s string) string {
	if canonical, ok := p.interns[s]; ok {
		return canonical
	}
	p.interns[s] = s
	return s
}

// Sweep performs a mark phase from the given root values (and any cells
// reachable from them is the caller's job to pass in — typically the
// project's globals, every entity's fields, and every process's locals
// and value stack) and removes every pool entry not reached. Reclamation
// is deferred and explicit, matching spec.md §9's "mark/sweep across
// Project::step epochs" guidance rather than eager refcounting.
func (p *RefPool) Sweep(roots []Value) int {
	for _, e := range p.entries {
		e.marked = false
	}
	var mark func(v Value)
	mark = func(v Value) {
		var h Handle
		switch x := v.(type) {
		case ListValue:
			h = x.handle
		case ClosureValue:
			h = x.handle
		default:
			return
		}
		ent, ok := p.entries[h]
		if !ok || ent.marked {
			return
		}
		ent.marked = true
		switch ent.kind {
		case KindList:
			for _, elem := range ent.list.Elements {
				mark(elem)
			}
		case KindClosure:
			for _, c := range ent.closure.Captures {
				mark(c.Get())
			}
		}
	}
	for _, r := range roots {
		mark(r)
	}
	collected := 0
	for h, e := range p.entries {
		if !e.marked {
			delete(p.entries, h)
			collected++
		}
	}
	return collected
}
