package resource

import "github.com/gogpu/gputypes"

// Params is the kind-specific part of a Descriptor. The interface is sealed:
// only the parameter structs declared in this package implement it.
type Params interface {
	accepts(k Kind) bool
}

// Reference slot indices used in Descriptor.Refs. A descriptor kind only
// consults the slots listed next to it.
const (
	// RefVertexShader and RefPixelShader name the stages of a linked Effect.
	RefVertexShader = iota
	RefPixelShader
	// RefTexture names the texture a Target renders into.
	RefTexture
	// RefEffect names the effect of a PipelineState, or the effect a VertexFormat is reflected from.
	RefEffect
	// RefVertexFormat, RefBlend, RefDepth, RefRaster and RefPrimitive name the fixed-function
	// state baked into a PipelineState.
	RefVertexFormat
	RefBlend
	RefDepth
	RefRaster
	RefPrimitive
	// RefTarget and RefDepthBuffer name the attachment formats of a PipelineState.
	RefTarget
	RefDepthBuffer
)

// TextureParams describes a sampled, storage or render texture.
type TextureParams struct {
	Width, Height uint32

	// ArrayLayers is the number of layers. 0 is treated as 1.
	ArrayLayers uint32

	// MipLevels is the number of mip levels. 0 is treated as 1.
	MipLevels uint32

	Format gputypes.TextureFormat

	// RenderTarget allows a Target to draw into the texture.
	RenderTarget bool

	// Storage allows read-write access from shaders.
	Storage bool

	// Path, when set, is a PNG or JPEG file decoded as the initial contents.
	// It takes precedence over the descriptor payload.
	Path string
}

func (TextureParams) accepts(k Kind) bool { return k == KindTexture }

// BufferParams describes vertex, index, constant and storage buffers.
type BufferParams struct {
	// Size is the buffer size in bytes. When 0 the payload size is used.
	Size uint64

	// Stride is the element size in bytes for vertex and structured buffers.
	Stride uint32

	// IndexFormat is the index width for index buffers.
	IndexFormat gputypes.IndexFormat

	// Dynamic marks buffers that are rewritten through Map/Unmap every frame.
	Dynamic bool

	// ReadWrite allows shader writes (RW buffer slots).
	ReadWrite bool
}

func (BufferParams) accepts(k Kind) bool { return k.IsBuffer() }

// SourceType selects where a shader or effect program comes from.
type SourceType int

const (
	// SourceLinked builds an effect from the realized VertexShader and PixelShader refs.
	SourceLinked SourceType = iota
	// SourceBinary uses a precompiled SPIR-V module.
	SourceBinary
	// SourceString compiles WGSL held in the descriptor.
	SourceString
	// SourceFile compiles WGSL read through the shader cache's loader.
	SourceFile
)

func (s SourceType) String() string {
	switch s {
	case SourceLinked:
		return "linked"
	case SourceBinary:
		return "binary"
	case SourceString:
		return "string"
	case SourceFile:
		return "file"
	}
	return "unknown"
}

// ShaderParams describes a single shader stage or a whole effect program.
type ShaderParams struct {
	Source SourceType

	// Path is the WGSL file for SourceFile.
	Path string

	// Code is the WGSL text for SourceString.
	Code string

	// Binary is the SPIR-V module for SourceBinary.
	Binary []byte

	// VertexEntry and PixelEntry override the reflected entry point names.
	VertexEntry, PixelEntry string
}

func (ShaderParams) accepts(k Kind) bool { return k.IsShader() || k == KindEffect }

// BlendComponent describes the blend equation for the color or alpha channel.
type BlendComponent struct {
	SrcFactor gputypes.BlendFactor
	DstFactor gputypes.BlendFactor
	Operation gputypes.BlendOperation
}

// BlendParams describes color blending for every bound target.
type BlendParams struct {
	Enabled   bool
	Color     BlendComponent
	Alpha     BlendComponent
	WriteMask gputypes.ColorWriteMask
}

func (BlendParams) accepts(k Kind) bool { return k == KindBlendState }

// DepthParams describes depth testing.
type DepthParams struct {
	TestEnabled    bool
	WriteEnabled   bool
	Compare        gputypes.CompareFunction
	Bias           int32
	BiasSlopeScale float32
}

func (DepthParams) accepts(k Kind) bool { return k == KindDepthState }

// RasterParams describes rasterization.
type RasterParams struct {
	CullMode  gputypes.CullMode
	FrontFace gputypes.FrontFace

	// Scissor enables the viewport scissor rectangle.
	Scissor bool
}

func (RasterParams) accepts(k Kind) bool { return k == KindRasterState }

// SamplerParams describes a texture sampler.
type SamplerParams struct {
	AddressModeU, AddressModeV, AddressModeW gputypes.AddressMode
	MagFilter, MinFilter                     gputypes.FilterMode
	MipmapLinear                             bool
	LodMinClamp, LodMaxClamp                 float32

	// Compare makes this a comparison sampler when not undefined.
	Compare       gputypes.CompareFunction
	MaxAnisotropy uint16
}

func (SamplerParams) accepts(k Kind) bool { return k == KindSamplerState }

// TargetParams describes a color render target. Non-external targets render into
// the texture named by RefTexture.
type TargetParams struct {
	// Clear clears the target to ClearColor the first time it is drawn to in a frame.
	Clear      bool
	ClearColor [4]float64
}

func (TargetParams) accepts(k Kind) bool { return k == KindTarget }

// DepthBufferParams describes a depth-stencil attachment.
type DepthBufferParams struct {
	Width, Height uint32
	Format        gputypes.TextureFormat
	SampleCount   uint32
	ClearDepth    float32
}

func (DepthBufferParams) accepts(k Kind) bool { return k == KindDepthBuffer }

// PrimitiveParams describes the geometry topology and the draw call issued by a Pass.
type PrimitiveParams struct {
	Topology gputypes.PrimitiveTopology

	// VertexCount is used for non-indexed draws, IndexCount when an index buffer is bound.
	VertexCount uint32
	IndexCount  uint32

	// InstanceCount of 0 is treated as 1.
	InstanceCount uint32

	FirstVertex uint32
	FirstIndex  uint32
	BaseVertex  int32
}

func (PrimitiveParams) accepts(k Kind) bool { return k == KindPrimitive }

// ViewportParams describes the viewport and scissor rectangle.
type ViewportParams struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

func (ViewportParams) accepts(k Kind) bool { return k == KindViewportState }

// VertexAttribute is one attribute of a vertex buffer layout.
type VertexAttribute struct {
	Format   gputypes.VertexFormat
	Offset   uint64
	Location uint32
}

// VertexLayout describes the layout of one vertex buffer slot.
type VertexLayout struct {
	Stride     uint64
	Instanced  bool
	Attributes []VertexAttribute
}

// VertexFormatParams describes the vertex input layouts. When Layouts is empty the
// layouts are reflected from the effect named by RefEffect.
type VertexFormatParams struct {
	Layouts []VertexLayout
}

func (VertexFormatParams) accepts(k Kind) bool { return k == KindVertexFormat }

// PipelineParams describes a baked pipeline state object. The effect, vertex format,
// fixed-function states and attachments are taken from the Ref* slots.
type PipelineParams struct {
	SampleCount uint32
}

func (PipelineParams) accepts(k Kind) bool { return k == KindPipelineState }
