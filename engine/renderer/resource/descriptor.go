package resource

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Descriptor is a passive value describing a desired resource: its kind, kind-specific
// parameters, named references to other entries, an optional initial payload and whether
// the concrete resource is injected by the host instead of built by the factory.
// The kind never changes after construction; references are names, never pointers.
type Descriptor struct {
	kind     Kind
	params   Params
	refs     map[int]Name
	external bool
	payload  *Payload
}

// NewDescriptor creates a Descriptor for the given kind and parameters.
// External descriptors may omit params; all others must supply params matching kind.
//
// Parameters:
//   - kind: the resource kind
//   - params: the kind-specific parameters
//   - opts: functional options adding refs, payload or the external flag
//
// Returns:
//   - Descriptor: the new descriptor
//   - error: ErrInvalidDescriptor if the kind is unknown or params do not match it
func NewDescriptor(kind Kind, params Params, opts ...DescriptorBuilderOption) (Descriptor, error) {
	d := Descriptor{
		kind:   kind,
		params: params,
	}
	for _, opt := range opts {
		opt(&d)
	}

	if !kind.Valid() {
		return Descriptor{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidDescriptor, int(kind))
	}
	if params == nil {
		if !d.external {
			return Descriptor{}, fmt.Errorf("%w: %s descriptor has no params", ErrInvalidDescriptor, kind)
		}
		return d, nil
	}
	if !params.accepts(kind) {
		return Descriptor{}, fmt.Errorf("%w: %T cannot describe a %s", ErrInvalidDescriptor, params, kind)
	}
	return d, nil
}

// MustDescriptor is like NewDescriptor but panics on invalid input. It is intended for
// static setup tables where a bad descriptor is a programming error.
func MustDescriptor(kind Kind, params Params, opts ...DescriptorBuilderOption) Descriptor {
	d, err := NewDescriptor(kind, params, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Kind returns the resource kind.
func (d Descriptor) Kind() Kind {
	return d.kind
}

// Params returns the kind-specific parameters, or nil for a bare external descriptor.
func (d Descriptor) Params() Params {
	return d.params
}

// External reports whether the resource is injected by the host.
func (d Descriptor) External() bool {
	return d.external
}

// Payload returns the initial payload, or nil if none was given.
func (d Descriptor) Payload() *Payload {
	return d.payload
}

// Ref returns the Name stored in a reference slot, or NoName.
//
// Parameters:
//   - slot: one of the Ref* slot indices
//
// Returns:
//   - Name: the referenced entry name
func (d Descriptor) Ref(slot int) Name {
	return d.refs[slot]
}

// References reports whether any reference slot names id.
//
// Parameters:
//   - id: the entry name to look for
//
// Returns:
//   - bool: true if a ref points at id
func (d Descriptor) References(id Name) bool {
	if id == NoName {
		return false
	}
	for _, name := range d.refs {
		if name == id {
			return true
		}
	}
	return false
}

// RefSlots returns the populated reference slot indices in ascending order.
//
// Returns:
//   - []int: the slot indices holding a non-empty name
func (d Descriptor) RefSlots() []int {
	out := make([]int, 0, len(d.refs))
	for slot, name := range d.refs {
		if name != NoName {
			out = append(out, slot)
		}
	}
	slices.Sort(out)
	return out
}

// Equal reports whether two descriptors describe the same resource by value.
//
// Parameters:
//   - o: the descriptor to compare against
//
// Returns:
//   - bool: true if kind, params, refs, payload and external flag all match
func (d Descriptor) Equal(o Descriptor) bool {
	if d.kind != o.kind || d.external != o.external {
		return false
	}
	if !maps.Equal(d.compactRefs(), o.compactRefs()) {
		return false
	}
	if !d.payload.Equal(o.payload) {
		return false
	}
	return paramsEqual(d.params, o.params)
}

// paramsEqual compares params by value. Slice fields compare by contents, so a nil and an
// empty slice are equal.
func paramsEqual(a, b Params) bool {
	switch pa := a.(type) {
	case ShaderParams:
		pb, ok := b.(ShaderParams)
		return ok && pa.Source == pb.Source && pa.Path == pb.Path && pa.Code == pb.Code &&
			pa.VertexEntry == pb.VertexEntry && pa.PixelEntry == pb.PixelEntry &&
			slices.Equal(pa.Binary, pb.Binary)
	case VertexFormatParams:
		pb, ok := b.(VertexFormatParams)
		return ok && slices.EqualFunc(pa.Layouts, pb.Layouts, func(x, y VertexLayout) bool {
			return x.Stride == y.Stride && x.Instanced == y.Instanced && slices.Equal(x.Attributes, y.Attributes)
		})
	}
	return reflect.DeepEqual(a, b)
}

func (d Descriptor) compactRefs() map[int]Name {
	out := make(map[int]Name, len(d.refs))
	for slot, name := range d.refs {
		if name != NoName {
			out[slot] = name
		}
	}
	return out
}
