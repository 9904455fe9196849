package resource

// Name is an interned resource or slot name. Equal strings always intern to the same Name,
// so Names compare by value. The zero Name means "no name".
type Name uint32

// NoName is the empty Name.
const NoName Name = 0

// Names is a string interning arena. It is owned by a single renderer context
// and is not safe for concurrent use.
type Names struct {
	ids     map[string]Name
	strings []string
}

// NewNames creates an empty interning arena. The empty string always interns to NoName.
//
// Returns:
//   - *Names: the new arena
func NewNames() *Names {
	return &Names{
		ids:     map[string]Name{"": NoName},
		strings: []string{""},
	}
}

// Intern returns the Name for s, allocating one if s has not been seen before.
//
// Parameters:
//   - s: the string to intern
//
// Returns:
//   - Name: the interned id for s
func (n *Names) Intern(s string) Name {
	if id, ok := n.ids[s]; ok {
		return id
	}
	id := Name(len(n.strings))
	n.strings = append(n.strings, s)
	n.ids[s] = id
	return id
}

// Lookup returns the Name for s without allocating.
//
// Parameters:
//   - s: the string to look up
//
// Returns:
//   - Name: the interned id, or NoName if s was never interned
//   - bool: true if s has been interned
func (n *Names) Lookup(s string) (Name, bool) {
	id, ok := n.ids[s]
	return id, ok
}

// String returns the string a Name was interned from, or "" for unknown ids.
//
// Parameters:
//   - id: the Name to resolve
//
// Returns:
//   - string: the original string
func (n *Names) String(id Name) string {
	if int(id) >= len(n.strings) {
		return ""
	}
	return n.strings[id]
}

// Len returns the number of interned names, excluding NoName.
func (n *Names) Len() int {
	return len(n.strings) - 1
}
