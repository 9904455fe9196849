package resource

import "fmt"

// Entry is a descriptor plus its lazily built resource. A nil resource means "not built".
// External entries only ever receive a resource through SetExternalResource.
type Entry struct {
	name     Name
	table    *Table
	desc     Descriptor
	resource Resource
}

// Name returns the interned name the entry is registered under.
func (e *Entry) Name() Name {
	return e.name
}

// Label returns the entry's name as a string.
func (e *Entry) Label() string {
	return e.table.names.String(e.name)
}

// Desc returns the current descriptor.
func (e *Entry) Desc() Descriptor {
	return e.desc
}

// Kind returns the descriptor's kind.
func (e *Entry) Kind() Kind {
	return e.desc.kind
}

// Resource returns the built or injected resource, or nil. It never triggers a build.
func (e *Entry) Resource() Resource {
	return e.resource
}

// Built reports whether the entry currently holds a resource.
func (e *Entry) Built() bool {
	return e.resource != nil
}

// CreateResource builds the entry's resource if it is not built yet. It is idempotent:
// a built entry or an external entry returns nil immediately without calling the factory.
//
// Dependencies named by the descriptor refs are built first, depth-first. A failing
// dependency does not stop the build; the factory decides whether it can proceed
// without it. A dependency cycle fails the whole chain with ErrCyclicDependency.
// A factory failure leaves the resource nil and is retried on the next call.
//
// Returns:
//   - error: nil on success, a *CreateError on factory failure, or ErrCyclicDependency
func (e *Entry) CreateResource() error {
	if e.resource != nil || e.desc.external {
		return nil
	}
	return e.table.build(e)
}

// SetExternalResource injects the concrete resource of an external entry.
// Nothing is changed when the entry is not external or r is of the wrong kind.
//
// Parameters:
//   - r: the host-owned resource
//
// Returns:
//   - error: ErrNotExternal or ErrKindMismatch on failure
func (e *Entry) SetExternalResource(r Resource) error {
	if !e.desc.external {
		return fmt.Errorf("%w: %q", ErrNotExternal, e.Label())
	}
	if r == nil || r.Kind() != e.desc.kind {
		got := KindUnknown
		if r != nil {
			got = r.Kind()
		}
		return fmt.Errorf("%w: %q expects %s, got %s", ErrKindMismatch, e.Label(), e.desc.kind, got)
	}
	e.resource = r
	return nil
}

// SetDesc replaces the descriptor. If d differs from the current descriptor by value the
// resource is released and rebuilt on the next CreateResource; an equal descriptor is a no-op.
// Built dependents, entries whose refs reach this one directly or transitively, are
// released first so they rebuild against the new resource instead of holding the old one.
//
// Parameters:
//   - d: the new descriptor; it must have the same kind
//
// Returns:
//   - error: ErrKindMismatch if d changes the entry's kind
func (e *Entry) SetDesc(d Descriptor) error {
	if d.kind != e.desc.kind {
		return fmt.Errorf("%w: %q is a %s, new descriptor is a %s", ErrKindMismatch, e.Label(), e.desc.kind, d.kind)
	}
	if d.Equal(e.desc) {
		return nil
	}
	e.table.invalidateDependents(e.name)
	e.Release()
	e.desc = d
	return nil
}

// Release drops the resource, releasing backend objects for factory-built resources.
// Injected resources are dropped but never released; the host owns them.
func (e *Entry) Release() {
	if e.resource == nil {
		return
	}
	if r, ok := e.resource.(Releaser); ok && !e.desc.external {
		r.Release()
	}
	e.resource = nil
}
