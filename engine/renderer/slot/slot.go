// Package slot maps the logical binding points of a pass to entries of the resource table.
// Binding records an intended resource name; FetchResources resolves the names to entries
// once per pass setup so rebinding never touches draw-time code.
package slot

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"go.uber.org/multierr"
)

var (
	// ErrSlotExists is returned when a slot name is added twice to one table.
	ErrSlotExists = errors.New("slot: slot already exists")

	// ErrUnknownSlot is returned when a slot name is not in the table.
	ErrUnknownSlot = errors.New("slot: unknown slot")

	// ErrFixedTable is returned when a slot is added to a static table.
	ErrFixedTable = errors.New("slot: static slot table cannot grow")
)

// Slot is one binding point. Kind is the resource kind the slot accepts, KindUnknown
// accepting any. Key is the effect parameter the resource is bound to, empty for
// slots the pass consumes itself.
type Slot struct {
	Name  string
	Kind  resource.Kind
	Key   string
	Bound resource.Name

	entry *resource.Entry
}

// Entry returns the entry resolved by the last FetchResources, or nil.
func (s Slot) Entry() *resource.Entry {
	return s.entry
}

// Resource returns the resource of the resolved entry, or nil.
func (s Slot) Resource() resource.Resource {
	if s.entry == nil {
		return nil
	}
	return s.entry.Resource()
}

// slotTable is the implementation of the SlotTable interface.
type slotTable struct {
	names *resource.Names
	slots []Slot
	index map[string]int
	fixed bool
}

// SlotTable is an ordered set of slots addressed by name.
type SlotTable interface {
	// AddResourceSlot appends a slot.
	//
	// Parameters:
	//   - slotName: the slot name, unique within the table
	//   - kind: the accepted resource kind, KindUnknown for any
	//   - key: the effect parameter key the bound resource is set on
	//
	// Returns:
	//   - error: ErrSlotExists for a duplicate name, ErrFixedTable for static tables
	AddResourceSlot(slotName string, kind resource.Kind, key string) error

	// BindResource records the resource name a slot should resolve to. It does not resolve it.
	//
	// Parameters:
	//   - slotName: the slot to bind
	//   - resourceName: the table entry name
	//
	// Returns:
	//   - error: ErrUnknownSlot if the slot does not exist
	BindResource(slotName, resourceName string) error

	// UnbindResource clears the bound name and the resolved entry of a slot.
	//
	// Parameters:
	//   - slotName: the slot to unbind
	//
	// Returns:
	//   - error: ErrUnknownSlot if the slot does not exist
	UnbindResource(slotName string) error

	// FetchResources resolves every bound name to its entry. Unbound slots and names
	// without an entry resolve to nil. Entries of the wrong kind also resolve to nil
	// and are reported.
	//
	// Parameters:
	//   - table: the resource table names are resolved in
	//
	// Returns:
	//   - error: the kind mismatches found, combined
	FetchResources(table *resource.Table) error

	// Entry returns the entry a slot resolved to, or nil.
	Entry(slotName string) *resource.Entry

	// Resource returns the resource of the entry a slot resolved to, or nil.
	Resource(slotName string) resource.Resource

	// Bound returns the resource name bound to a slot, or "".
	Bound(slotName string) string

	// Slot returns a copy of a slot.
	Slot(slotName string) (Slot, bool)

	// Slots returns copies of all slots in the order they were added.
	Slots() []Slot

	// Len returns the number of slots.
	Len() int
}

var _ SlotTable = &slotTable{}

// NewDynamicSlotTable creates an empty table that grows with AddResourceSlot.
//
// Parameters:
//   - names: the arena bound resource names are interned in
//
// Returns:
//   - SlotTable: the empty table
func NewDynamicSlotTable(names *resource.Names) SlotTable {
	return newSlotTable(names, 8)
}

func newSlotTable(names *resource.Names, capacity int) *slotTable {
	if names == nil {
		panic("slot: names must not be nil")
	}
	return &slotTable{
		names: names,
		slots: make([]Slot, 0, capacity),
		index: make(map[string]int, capacity),
	}
}

func (t *slotTable) AddResourceSlot(slotName string, kind resource.Kind, key string) error {
	if _, ok := t.index[slotName]; ok {
		return fmt.Errorf("%w: %q", ErrSlotExists, slotName)
	}
	if t.fixed {
		return fmt.Errorf("%w: %q", ErrFixedTable, slotName)
	}
	t.add(slotName, kind, key)
	return nil
}

func (t *slotTable) add(slotName string, kind resource.Kind, key string) {
	t.index[slotName] = len(t.slots)
	t.slots = append(t.slots, Slot{Name: slotName, Kind: kind, Key: key})
}

func (t *slotTable) BindResource(slotName, resourceName string) error {
	i, ok := t.index[slotName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slotName)
	}
	name := t.names.Intern(resourceName)
	if t.slots[i].Bound != name {
		t.slots[i].Bound = name
		t.slots[i].entry = nil
	}
	return nil
}

func (t *slotTable) UnbindResource(slotName string) error {
	i, ok := t.index[slotName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slotName)
	}
	t.slots[i].Bound = resource.NoName
	t.slots[i].entry = nil
	return nil
}

func (t *slotTable) FetchResources(table *resource.Table) error {
	var errs error
	for i := range t.slots {
		s := &t.slots[i]
		s.entry = nil
		if s.Bound == resource.NoName {
			continue
		}
		e := table.EntryByName(s.Bound)
		if e == nil {
			continue
		}
		if s.Kind != resource.KindUnknown && e.Kind() != s.Kind {
			errs = multierr.Append(errs, fmt.Errorf("%w: slot %q accepts %s, %q is a %s",
				resource.ErrKindMismatch, s.Name, s.Kind, e.Label(), e.Kind()))
			continue
		}
		s.entry = e
	}
	return errs
}

func (t *slotTable) Entry(slotName string) *resource.Entry {
	if i, ok := t.index[slotName]; ok {
		return t.slots[i].entry
	}
	return nil
}

func (t *slotTable) Resource(slotName string) resource.Resource {
	if i, ok := t.index[slotName]; ok {
		return t.slots[i].Resource()
	}
	return nil
}

func (t *slotTable) Bound(slotName string) string {
	if i, ok := t.index[slotName]; ok {
		return t.names.String(t.slots[i].Bound)
	}
	return ""
}

func (t *slotTable) Slot(slotName string) (Slot, bool) {
	if i, ok := t.index[slotName]; ok {
		return t.slots[i], true
	}
	return Slot{}, false
}

func (t *slotTable) Slots() []Slot {
	out := make([]Slot, len(t.slots))
	copy(out, t.slots)
	return out
}

func (t *slotTable) Len() int {
	return len(t.slots)
}
