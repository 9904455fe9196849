package device

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// Handle is the resource type created by the Recorder. It keeps the creation inputs so
// tests can inspect what the factory passed to the device.
type Handle struct {
	kind  resource.Kind
	label string

	Params resource.Params
	Data   []byte
	Layout []resource.VertexLayout
	Module shader.Shader
	Parts  PipelineParts
	Deps   []resource.Resource

	reflection shader.Reflection
	released   bool
}

var (
	_ Effect            = &Handle{}
	_ ShaderModule      = &Handle{}
	_ resource.Releaser = &Handle{}
)

// NewHandle creates a bare handle, typically used as an external resource in tests.
//
// Parameters:
//   - kind: the resource kind
//   - label: the label reported in recorded calls
//
// Returns:
//   - *Handle: the new handle
func NewHandle(kind resource.Kind, label string) *Handle {
	return &Handle{kind: kind, label: label}
}

func (h *Handle) Kind() resource.Kind {
	return h.kind
}

func (h *Handle) Label() string {
	return h.label
}

func (h *Handle) Reflection() shader.Reflection {
	return h.reflection
}

func (h *Handle) Shader() shader.Shader {
	return h.Module
}

func (h *Handle) Release() {
	h.released = true
}

// Released reports whether Release was called.
func (h *Handle) Released() bool {
	return h.released
}
