package resource

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// Table is the name to Entry registry owning one renderer's resource graph.
// Entries are kept in insertion order so BuildResources visits them deterministically.
// Table is not safe for concurrent use; the owner serializes builds against reads.
type Table struct {
	names   *Names
	factory Factory
	logger  *zap.Logger

	entries map[Name]*Entry
	order   []Name

	// inProgress marks entries currently on the build stack; stack holds them in order
	// so a cycle can be reported as a path.
	inProgress map[Name]bool
	stack      []Name
}

// NewTable creates an empty Table that interns names in names and builds entries with factory.
//
// Parameters:
//   - names: the interning arena shared with the slot tables
//   - factory: the factory that builds non-external entries
//   - opts: functional options
//
// Returns:
//   - *Table: the new table
func NewTable(names *Names, factory Factory, opts ...TableBuilderOption) *Table {
	if names == nil || factory == nil {
		panic("resource: NewTable requires a name arena and a factory")
	}
	t := &Table{
		names:      names,
		factory:    factory,
		logger:     common.Logger(),
		entries:    make(map[Name]*Entry),
		inProgress: make(map[Name]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Names returns the interning arena the table uses.
func (t *Table) Names() *Names {
	return t.names
}

// AddEntry registers desc under name. Registering a name twice is rejected and the
// first descriptor stays in place; use Entry(name).SetDesc to replace a descriptor.
//
// Parameters:
//   - name: the entry name
//   - desc: the entry descriptor
//
// Returns:
//   - *Entry: the new entry
//   - error: ErrDuplicateName if name is already registered
func (t *Table) AddEntry(name string, desc Descriptor) (*Entry, error) {
	id := t.names.Intern(name)
	if id == NoName {
		return nil, fmt.Errorf("%w: empty entry name", ErrInvalidDescriptor)
	}
	if _, ok := t.entries[id]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	e := &Entry{name: id, table: t, desc: desc}
	t.entries[id] = e
	t.order = append(t.order, id)
	return e, nil
}

// Entry returns the entry registered under name, or nil.
func (t *Table) Entry(name string) *Entry {
	id, ok := t.names.Lookup(name)
	if !ok {
		return nil
	}
	return t.entries[id]
}

// EntryByName returns the entry registered under an interned name, or nil.
func (t *Table) EntryByName(id Name) *Entry {
	return t.entries[id]
}

// Resource returns the resource of the entry at id, or nil when missing or unbuilt.
func (t *Table) Resource(id Name) Resource {
	if e := t.entries[id]; e != nil {
		return e.resource
	}
	return nil
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.order)
}

// EntryNames returns the entry names in insertion order.
func (t *Table) EntryNames() []string {
	out := make([]string, len(t.order))
	for i, id := range t.order {
		out[i] = t.names.String(id)
	}
	return out
}

// Each calls fn for every entry in insertion order.
func (t *Table) Each(fn func(e *Entry)) {
	for _, id := range t.order {
		fn(t.entries[id])
	}
}

// Remove releases and unregisters the entry under name, releasing its built dependents
// first. Slots still bound to the name resolve to nil on their next FetchResources.
//
// Parameters:
//   - name: the entry name
//
// Returns:
//   - error: ErrUnknownResource if no entry is registered under name
func (t *Table) Remove(name string) error {
	e := t.Entry(name)
	if e == nil {
		return fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	t.invalidateDependents(e.name)
	e.Release()
	delete(t.entries, e.name)
	for i, id := range t.order {
		if id == e.name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// BuildResources calls CreateResource on every entry in insertion order. It does not stop
// at the first failure: every entry is attempted and all failures are returned combined.
//
// Returns:
//   - error: nil if every entry is built, otherwise the combined failures
func (t *Table) BuildResources() error {
	var errs error
	for _, id := range t.order {
		if err := t.entries[id].CreateResource(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// ReleaseAll releases every entry's resource. Resources shared by several entries are released once.
func (t *Table) ReleaseAll() {
	released := make(map[Resource]bool)
	for _, id := range t.order {
		e := t.entries[id]
		if e.resource == nil {
			continue
		}
		if released[e.resource] {
			e.resource = nil
			continue
		}
		released[e.resource] = true
		e.Release()
	}
}

// build resolves e's dependencies and asks the factory for its resource.
func (t *Table) build(e *Entry) error {
	if t.inProgress[e.name] {
		return fmt.Errorf("%w: %s", ErrCyclicDependency, t.cyclePath(e.name))
	}
	t.inProgress[e.name] = true
	t.stack = append(t.stack, e.name)
	defer func() {
		delete(t.inProgress, e.name)
		t.stack = t.stack[:len(t.stack)-1]
	}()

	if err := t.loadPreceding(e); err != nil {
		return err
	}

	res, err := t.factory.CreateResource(e.desc, e, t)
	if err == nil && res == nil {
		err = errors.New("factory returned no resource")
	}
	if err != nil {
		t.logger.Debug("resource build failed",
			zap.String("name", e.Label()),
			zap.Stringer("kind", e.desc.kind),
			zap.Error(err))
		return &CreateError{Name: e.Label(), Kind: e.desc.kind, Cause: err}
	}

	e.resource = res
	t.logger.Debug("resource built", zap.String("name", e.Label()), zap.Stringer("kind", e.desc.kind))
	return nil
}

// loadPreceding builds every entry named by e's refs. Individual failures are ignored
// so the factory can decide what it needs; cycles are not.
func (t *Table) loadPreceding(e *Entry) error {
	for _, slot := range e.desc.RefSlots() {
		dep := t.entries[e.desc.refs[slot]]
		if dep == nil {
			continue
		}
		if err := dep.CreateResource(); err != nil && errors.Is(err, ErrCyclicDependency) {
			return err
		}
	}
	return nil
}

// invalidateDependents releases every built, factory-owned entry whose refs name id,
// then the entries depending on those, so none of them keeps a resource derived from id.
func (t *Table) invalidateDependents(id Name) {
	for _, n := range t.order {
		e := t.entries[n]
		if e.resource == nil || e.desc.external || !e.desc.References(id) {
			continue
		}
		t.logger.Debug("resource invalidated",
			zap.String("name", e.Label()),
			zap.String("dependency", t.names.String(id)))
		e.Release()
		t.invalidateDependents(e.name)
	}
}

// cyclePath renders the build stack from the first occurrence of id back to id.
func (t *Table) cyclePath(id Name) string {
	start := 0
	for i, n := range t.stack {
		if n == id {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(t.stack)-start+1)
	for _, n := range t.stack[start:] {
		parts = append(parts, fmt.Sprintf("%q", t.names.String(n)))
	}
	parts = append(parts, fmt.Sprintf("%q", t.names.String(id)))
	return strings.Join(parts, " -> ")
}
