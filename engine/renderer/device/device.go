// Package device declares the contract between the resource graph and a graphics backend.
// Device creates backend resources from descriptor parameters, Context records the draw
// side of a frame. The Recorder is an in-memory implementation of both used by tests and
// headless runs.
package device

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

var (
	// ErrUnknownParameter is returned by SetParameter when the effect has no binding for the key.
	ErrUnknownParameter = errors.New("device: unknown effect parameter")

	// ErrWrongResource is returned when a resource of an unexpected kind or backend is passed in.
	ErrWrongResource = errors.New("device: wrong resource type")

	// ErrStateUnderflow is returned when a state stack is popped more often than pushed.
	ErrStateUnderflow = errors.New("device: state stack underflow")

	// ErrNotMappable is returned by Map for resources without CPU-visible storage.
	ErrNotMappable = errors.New("device: resource is not mappable")
)

// Effect is a realized effect. Its reflection lists the parameter keys SetParameter accepts
// and the vertex layouts its vertex stage expects.
type Effect interface {
	resource.Resource
	Reflection() shader.Reflection
}

// ShaderModule is a realized vertex or pixel shader.
type ShaderModule interface {
	resource.Resource
	Shader() shader.Shader
}

// PipelineParts are the realized resources baked into a PipelineState. Any part other
// than Effect may be nil, in which case the backend default applies.
type PipelineParts struct {
	Effect       resource.Resource
	VertexFormat resource.Resource
	Blend        resource.Resource
	Depth        resource.Resource
	Raster       resource.Resource
	Primitive    resource.Resource
	Target       resource.Resource
	DepthBuffer  resource.Resource
}

// Device creates backend resources. Every method returns a Resource whose Kind matches
// the descriptor kind it was created for.
type Device interface {
	// CreateTexture creates a texture, uploading pixels when non-nil.
	CreateTexture(label string, params resource.TextureParams, pixels []byte) (resource.Resource, error)

	// CreateBuffer creates a vertex, index, constant or storage buffer. kind selects the usage.
	CreateBuffer(label string, kind resource.Kind, params resource.BufferParams, data []byte) (resource.Resource, error)

	// CreateVertexShader and CreatePixelShader create a single stage module.
	CreateVertexShader(label string, s shader.Shader) (resource.Resource, error)
	CreatePixelShader(label string, s shader.Shader) (resource.Resource, error)

	// CreateEffect links previously created vertex and pixel shaders into an effect.
	CreateEffect(label string, vs, ps resource.Resource) (resource.Resource, error)

	// CreateProgram creates an effect from a single module providing both stages.
	CreateProgram(label string, s shader.Shader) (resource.Resource, error)

	CreateBlendState(label string, params resource.BlendParams) (resource.Resource, error)
	CreateDepthState(label string, params resource.DepthParams) (resource.Resource, error)
	CreateRasterState(label string, params resource.RasterParams) (resource.Resource, error)
	CreateSamplerState(label string, params resource.SamplerParams) (resource.Resource, error)

	// CreateTarget creates a color target rendering into texture.
	CreateTarget(label string, params resource.TargetParams, texture resource.Resource) (resource.Resource, error)

	CreateDepthBuffer(label string, params resource.DepthBufferParams) (resource.Resource, error)
	CreateVertexFormat(label string, layouts []resource.VertexLayout) (resource.Resource, error)
	CreatePipelineState(label string, params resource.PipelineParams, parts PipelineParts) (resource.Resource, error)
}

// Context records the draw side of a frame. Nil resources unbind the corresponding input.
type Context interface {
	SetEffect(effect resource.Resource) error
	SetVertexFormat(format resource.Resource) error
	SetVertexBuffer(slot int, buffer resource.Resource) error
	SetIndexBuffer(buffer resource.Resource) error

	// SetTargets binds the color targets and depth buffer. Nil entries are skipped.
	SetTargets(colors []resource.Resource, depth resource.Resource) error

	// Push saves the current fixed-function state on its stack, Pop restores it.
	PushBlendState()
	PopBlendState() error
	PushDepthState()
	PopDepthState() error
	PushRasterState()
	PopRasterState() error

	SetViewport(params resource.ViewportParams)
	SetBlendState(state resource.Resource) error
	SetDepthState(state resource.Resource) error
	SetRasterState(state resource.Resource) error

	// SetParameter binds r to the effect parameter named key. Keys are resolved through
	// the effect's reflection.
	SetParameter(effect resource.Resource, key string, r resource.Resource) error

	SetPipelineState(state resource.Resource) error

	BeginEffect(effect resource.Resource) error
	DrawPrimitive(params resource.PrimitiveParams) error
	EndEffect(effect resource.Resource) error

	// Map returns CPU-visible storage for a dynamic buffer. Unmap uploads it.
	Map(buffer resource.Resource) ([]byte, error)
	Unmap(buffer resource.Resource) error
}

// FrameSource is implemented by devices that present to a surface.
type FrameSource interface {
	// BeginFrame acquires the next surface image and returns it as a Target resource.
	BeginFrame() (resource.Resource, error)

	// EndFrame submits the recorded work.
	EndFrame() error

	Present()
}
