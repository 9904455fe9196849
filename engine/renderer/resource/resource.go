// Package resource implements the name-addressed resource graph: descriptors, lazily
// built memoized entries and the table that owns them. Entries resolve their named
// dependencies depth-first on first use, so no topological order is precomputed.
package resource

// Resource is a concrete resource produced by a Factory or injected by the host.
// Implementations must be comparable (typically pointers).
type Resource interface {
	// Kind returns the kind of resource this is, checked against the descriptor on injection.
	Kind() Kind
}

// Releaser is implemented by resources that hold backend objects needing explicit release.
type Releaser interface {
	Release()
}

// Factory turns a descriptor and its already-realized dependencies into a Resource.
// Dependencies are reachable through table using the descriptor's refs.
type Factory interface {
	CreateResource(desc Descriptor, entry *Entry, table *Table) (Resource, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(desc Descriptor, entry *Entry, table *Table) (Resource, error)

// CreateResource calls f.
func (f FactoryFunc) CreateResource(desc Descriptor, entry *Entry, table *Table) (Resource, error) {
	return f(desc, entry, table)
}
