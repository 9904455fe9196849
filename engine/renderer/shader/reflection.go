package shader

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/gogpu/gputypes"
)

// BindingClass is the category of a bound shader variable.
type BindingClass int

const (
	BindingUniform BindingClass = iota
	BindingStorage
	BindingReadOnlyStorage
	BindingTexture
	BindingDepthTexture
	BindingStorageTexture
	BindingSampler
	BindingComparisonSampler
)

// IsBuffer reports whether the binding is backed by a buffer.
func (c BindingClass) IsBuffer() bool {
	return c == BindingUniform || c == BindingStorage || c == BindingReadOnlyStorage
}

// IsTexture reports whether the binding is backed by a texture view.
func (c BindingClass) IsTexture() bool {
	return c == BindingTexture || c == BindingDepthTexture || c == BindingStorageTexture
}

// IsSampler reports whether the binding is a sampler.
func (c BindingClass) IsSampler() bool {
	return c == BindingSampler || c == BindingComparisonSampler
}

// Binding is a single @group/@binding declaration reflected from shader source.
type Binding struct {
	Group   uint32
	Binding uint32

	// Name is the WGSL variable name. Key is the effect parameter key, which equals Name
	// unless an @oxy:param annotation aliased it.
	Name string
	Key  string

	Class    BindingClass
	TypeName string

	// MinSize is the minimum buffer binding size, zero when it could not be resolved.
	MinSize uint64

	Visibility gputypes.ShaderStage

	ViewDimension gputypes.TextureViewDimension
	SampleType    gputypes.TextureSampleType
	Multisampled  bool

	StorageFormat gputypes.TextureFormat
	StorageAccess gputypes.StorageTextureAccess
}

// Reflection is everything the renderer needs to know about a shader's interface.
type Reflection struct {
	// Bindings are ordered by group, then binding.
	Bindings []Binding

	// VertexLayouts holds the interleaved layout of the vertex entry point's location inputs.
	VertexLayouts []resource.VertexLayout

	// EntryPoints maps each stage present in the source to its entry function.
	EntryPoints map[ShaderType]string

	WorkgroupSize [3]uint32
}

// Binding looks up a binding by parameter key, falling back to the variable name.
//
// Parameters:
//   - key: the parameter key or WGSL variable name
//
// Returns:
//   - Binding: the matching binding
//   - bool: false when no binding matches
func (r Reflection) Binding(key string) (Binding, bool) {
	for _, b := range r.Bindings {
		if b.Key == key {
			return b, true
		}
	}
	for _, b := range r.Bindings {
		if b.Name == key {
			return b, true
		}
	}
	return Binding{}, false
}

// Groups returns the distinct group indices in ascending order.
func (r Reflection) Groups() []uint32 {
	groups := make([]uint32, 0, 4)
	for _, b := range r.Bindings {
		if !slices.Contains(groups, b.Group) {
			groups = append(groups, b.Group)
		}
	}
	slices.Sort(groups)
	return groups
}

// Merge combines the reflections of a vertex and a pixel shader into the reflection of an
// effect. Bindings declared by both stages are merged into one entry with the union of
// their visibility. Vertex layouts come from the first reflection that has any.
//
// Parameters:
//   - others: the reflections to merge into a copy of r
//
// Returns:
//   - Reflection: the merged reflection
func (r Reflection) Merge(others ...Reflection) Reflection {
	out := Reflection{
		Bindings:      slices.Clone(r.Bindings),
		VertexLayouts: slices.Clone(r.VertexLayouts),
		EntryPoints:   make(map[ShaderType]string, len(r.EntryPoints)),
		WorkgroupSize: r.WorkgroupSize,
	}
	for t, e := range r.EntryPoints {
		out.EntryPoints[t] = e
	}

	for _, o := range others {
		for _, b := range o.Bindings {
			i := slices.IndexFunc(out.Bindings, func(x Binding) bool {
				return x.Group == b.Group && x.Binding == b.Binding
			})
			if i < 0 {
				out.Bindings = append(out.Bindings, b)
				continue
			}
			out.Bindings[i].Visibility |= b.Visibility
			if out.Bindings[i].Key == out.Bindings[i].Name && b.Key != b.Name {
				out.Bindings[i].Key = b.Key
			}
		}
		if len(out.VertexLayouts) == 0 {
			out.VertexLayouts = slices.Clone(o.VertexLayouts)
		}
		for t, e := range o.EntryPoints {
			if _, ok := out.EntryPoints[t]; !ok {
				out.EntryPoints[t] = e
			}
		}
	}

	sortBindings(out.Bindings)
	return out
}

func sortBindings(b []Binding) {
	slices.SortFunc(b, func(x, y Binding) int {
		if x.Group != y.Group {
			return int(x.Group) - int(y.Group)
		}
		return int(x.Binding) - int(y.Binding)
	})
}
