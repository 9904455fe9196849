package resource

// Kind tags the concrete type of GPU resource a Descriptor describes.
// The set is closed; Factory dispatch switches over it exhaustively.
type Kind int

const (
	// KindUnknown is the zero value and never describes a valid resource.
	KindUnknown Kind = iota
	KindTexture
	KindVertexBuffer
	KindIndexBuffer
	KindConstantBuffer
	KindVertexShader
	KindPixelShader
	KindEffect
	KindBlendState
	KindDepthState
	KindRasterState
	KindSamplerState
	KindTarget
	KindDepthBuffer
	KindPrimitive
	KindViewportState
	KindPipelineState
	// KindVertexFormat describes the vertex input layout bound to the VertexFormat slot.
	KindVertexFormat
	// KindBuffer describes a structured or read-write storage buffer.
	KindBuffer

	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:        "Unknown",
	KindTexture:        "Texture",
	KindVertexBuffer:   "VertexBuffer",
	KindIndexBuffer:    "IndexBuffer",
	KindConstantBuffer: "ConstantBuffer",
	KindVertexShader:   "VertexShader",
	KindPixelShader:    "PixelShader",
	KindEffect:         "Effect",
	KindBlendState:     "BlendState",
	KindDepthState:     "DepthState",
	KindRasterState:    "RasterState",
	KindSamplerState:   "SamplerState",
	KindTarget:         "Target",
	KindDepthBuffer:    "DepthBuffer",
	KindPrimitive:      "Primitive",
	KindViewportState:  "ViewportState",
	KindPipelineState:  "PipelineState",
	KindVertexFormat:   "VertexFormat",
	KindBuffer:         "Buffer",
}

// Kinds returns every valid Kind in declaration order.
//
// Returns:
//   - []Kind: all kinds except KindUnknown
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindTexture; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < kindCount
}

// IsBuffer reports whether k is backed by a GPU buffer.
func (k Kind) IsBuffer() bool {
	switch k {
	case KindVertexBuffer, KindIndexBuffer, KindConstantBuffer, KindBuffer:
		return true
	}
	return false
}

// IsShader reports whether k is a single shader stage.
func (k Kind) IsShader() bool {
	return k == KindVertexShader || k == KindPixelShader
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "Kind(?)"
	}
	return kindNames[k]
}
