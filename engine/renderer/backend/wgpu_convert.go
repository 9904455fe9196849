package backend

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// texelFormat pairs a wgpu format with its texel size, used for texture uploads.
type texelFormat struct {
	format wgpu.TextureFormat
	bytes  uint32
}

var textureFormats = map[gputypes.TextureFormat]texelFormat{
	gputypes.TextureFormatR8Unorm:             {wgpu.TextureFormatR8Unorm, 1},
	gputypes.TextureFormatR32Float:            {wgpu.TextureFormatR32Float, 4},
	gputypes.TextureFormatR32Uint:             {wgpu.TextureFormatR32Uint, 4},
	gputypes.TextureFormatR32Sint:             {wgpu.TextureFormatR32Sint, 4},
	gputypes.TextureFormatRG32Float:           {wgpu.TextureFormatRG32Float, 8},
	gputypes.TextureFormatRGBA8Unorm:          {wgpu.TextureFormatRGBA8Unorm, 4},
	gputypes.TextureFormatRGBA8UnormSrgb:      {wgpu.TextureFormatRGBA8UnormSrgb, 4},
	gputypes.TextureFormatRGBA8Snorm:          {wgpu.TextureFormatRGBA8Snorm, 4},
	gputypes.TextureFormatRGBA8Uint:           {wgpu.TextureFormatRGBA8Uint, 4},
	gputypes.TextureFormatRGBA8Sint:           {wgpu.TextureFormatRGBA8Sint, 4},
	gputypes.TextureFormatBGRA8Unorm:          {wgpu.TextureFormatBGRA8Unorm, 4},
	gputypes.TextureFormatBGRA8UnormSrgb:      {wgpu.TextureFormatBGRA8UnormSrgb, 4},
	gputypes.TextureFormatRGBA16Float:         {wgpu.TextureFormatRGBA16Float, 8},
	gputypes.TextureFormatRGBA16Uint:          {wgpu.TextureFormatRGBA16Uint, 8},
	gputypes.TextureFormatRGBA16Sint:          {wgpu.TextureFormatRGBA16Sint, 8},
	gputypes.TextureFormatRGBA32Float:         {wgpu.TextureFormatRGBA32Float, 16},
	gputypes.TextureFormatRGBA32Uint:          {wgpu.TextureFormatRGBA32Uint, 16},
	gputypes.TextureFormatRGBA32Sint:          {wgpu.TextureFormatRGBA32Sint, 16},
	gputypes.TextureFormatDepth24Plus:         {wgpu.TextureFormatDepth24Plus, 0},
	gputypes.TextureFormatDepth24PlusStencil8: {wgpu.TextureFormatDepth24PlusStencil8, 0},
	gputypes.TextureFormatDepth32Float:        {wgpu.TextureFormatDepth32Float, 0},
}

var vertexFormats = map[gputypes.VertexFormat]wgpu.VertexFormat{
	gputypes.VertexFormatFloat16x2: wgpu.VertexFormatFloat16x2,
	gputypes.VertexFormatFloat16x4: wgpu.VertexFormatFloat16x4,
	gputypes.VertexFormatFloat32:   wgpu.VertexFormatFloat32,
	gputypes.VertexFormatFloat32x2: wgpu.VertexFormatFloat32x2,
	gputypes.VertexFormatFloat32x3: wgpu.VertexFormatFloat32x3,
	gputypes.VertexFormatFloat32x4: wgpu.VertexFormatFloat32x4,
	gputypes.VertexFormatUint32:    wgpu.VertexFormatUint32,
	gputypes.VertexFormatUint32x2:  wgpu.VertexFormatUint32x2,
	gputypes.VertexFormatUint32x3:  wgpu.VertexFormatUint32x3,
	gputypes.VertexFormatUint32x4:  wgpu.VertexFormatUint32x4,
	gputypes.VertexFormatSint32:    wgpu.VertexFormatSint32,
	gputypes.VertexFormatSint32x2:  wgpu.VertexFormatSint32x2,
	gputypes.VertexFormatSint32x3:  wgpu.VertexFormatSint32x3,
	gputypes.VertexFormatSint32x4:  wgpu.VertexFormatSint32x4,
}

var compareFunctions = map[gputypes.CompareFunction]wgpu.CompareFunction{
	gputypes.CompareFunctionNever:        wgpu.CompareFunctionNever,
	gputypes.CompareFunctionLess:         wgpu.CompareFunctionLess,
	gputypes.CompareFunctionEqual:        wgpu.CompareFunctionEqual,
	gputypes.CompareFunctionLessEqual:    wgpu.CompareFunctionLessEqual,
	gputypes.CompareFunctionGreater:      wgpu.CompareFunctionGreater,
	gputypes.CompareFunctionNotEqual:     wgpu.CompareFunctionNotEqual,
	gputypes.CompareFunctionGreaterEqual: wgpu.CompareFunctionGreaterEqual,
	gputypes.CompareFunctionAlways:       wgpu.CompareFunctionAlways,
}

var blendFactors = map[gputypes.BlendFactor]wgpu.BlendFactor{
	gputypes.BlendFactorZero:              wgpu.BlendFactorZero,
	gputypes.BlendFactorOne:               wgpu.BlendFactorOne,
	gputypes.BlendFactorSrc:               wgpu.BlendFactorSrc,
	gputypes.BlendFactorOneMinusSrc:       wgpu.BlendFactorOneMinusSrc,
	gputypes.BlendFactorSrcAlpha:          wgpu.BlendFactorSrcAlpha,
	gputypes.BlendFactorOneMinusSrcAlpha:  wgpu.BlendFactorOneMinusSrcAlpha,
	gputypes.BlendFactorDst:               wgpu.BlendFactorDst,
	gputypes.BlendFactorOneMinusDst:       wgpu.BlendFactorOneMinusDst,
	gputypes.BlendFactorDstAlpha:          wgpu.BlendFactorDstAlpha,
	gputypes.BlendFactorOneMinusDstAlpha:  wgpu.BlendFactorOneMinusDstAlpha,
	gputypes.BlendFactorSrcAlphaSaturated: wgpu.BlendFactorSrcAlphaSaturated,
	gputypes.BlendFactorConstant:          wgpu.BlendFactorConstant,
	gputypes.BlendFactorOneMinusConstant:  wgpu.BlendFactorOneMinusConstant,
}

var blendOperations = map[gputypes.BlendOperation]wgpu.BlendOperation{
	gputypes.BlendOperationAdd:             wgpu.BlendOperationAdd,
	gputypes.BlendOperationSubtract:        wgpu.BlendOperationSubtract,
	gputypes.BlendOperationReverseSubtract: wgpu.BlendOperationReverseSubtract,
	gputypes.BlendOperationMin:             wgpu.BlendOperationMin,
	gputypes.BlendOperationMax:             wgpu.BlendOperationMax,
}

var topologies = map[gputypes.PrimitiveTopology]wgpu.PrimitiveTopology{
	gputypes.PrimitiveTopologyPointList:     wgpu.PrimitiveTopologyPointList,
	gputypes.PrimitiveTopologyLineList:      wgpu.PrimitiveTopologyLineList,
	gputypes.PrimitiveTopologyLineStrip:     wgpu.PrimitiveTopologyLineStrip,
	gputypes.PrimitiveTopologyTriangleList:  wgpu.PrimitiveTopologyTriangleList,
	gputypes.PrimitiveTopologyTriangleStrip: wgpu.PrimitiveTopologyTriangleStrip,
}

var cullModes = map[gputypes.CullMode]wgpu.CullMode{
	gputypes.CullModeNone:  wgpu.CullModeNone,
	gputypes.CullModeFront: wgpu.CullModeFront,
	gputypes.CullModeBack:  wgpu.CullModeBack,
}

var addressModes = map[gputypes.AddressMode]wgpu.AddressMode{
	gputypes.AddressModeRepeat:       wgpu.AddressModeRepeat,
	gputypes.AddressModeMirrorRepeat: wgpu.AddressModeMirrorRepeat,
	gputypes.AddressModeClampToEdge:  wgpu.AddressModeClampToEdge,
}

var filterModes = map[gputypes.FilterMode]wgpu.FilterMode{
	gputypes.FilterModeNearest: wgpu.FilterModeNearest,
	gputypes.FilterModeLinear:  wgpu.FilterModeLinear,
}

var viewDimensions = map[gputypes.TextureViewDimension]wgpu.TextureViewDimension{
	gputypes.TextureViewDimension1D:        wgpu.TextureViewDimension1D,
	gputypes.TextureViewDimension2D:        wgpu.TextureViewDimension2D,
	gputypes.TextureViewDimension2DArray:   wgpu.TextureViewDimension2DArray,
	gputypes.TextureViewDimensionCube:      wgpu.TextureViewDimensionCube,
	gputypes.TextureViewDimensionCubeArray: wgpu.TextureViewDimensionCubeArray,
	gputypes.TextureViewDimension3D:        wgpu.TextureViewDimension3D,
}

var sampleTypes = map[gputypes.TextureSampleType]wgpu.TextureSampleType{
	gputypes.TextureSampleTypeFloat:             wgpu.TextureSampleTypeFloat,
	gputypes.TextureSampleTypeUnfilterableFloat: wgpu.TextureSampleTypeUnfilterableFloat,
	gputypes.TextureSampleTypeDepth:             wgpu.TextureSampleTypeDepth,
	gputypes.TextureSampleTypeSint:              wgpu.TextureSampleTypeSint,
	gputypes.TextureSampleTypeUint:              wgpu.TextureSampleTypeUint,
}

var storageAccesses = map[gputypes.StorageTextureAccess]wgpu.StorageTextureAccess{
	gputypes.StorageTextureAccessWriteOnly: wgpu.StorageTextureAccessWriteOnly,
	gputypes.StorageTextureAccessReadOnly:  wgpu.StorageTextureAccessReadOnly,
	gputypes.StorageTextureAccessReadWrite: wgpu.StorageTextureAccessReadWrite,
}

// lookup returns m[k], or fallback when k is the zero value.
func lookup[K comparable, V any](m map[K]V, k K, fallback V, what string) (V, error) {
	var zero K
	if k == zero {
		return fallback, nil
	}
	v, ok := m[k]
	if !ok {
		return fallback, fmt.Errorf("unsupported %s %v", what, k)
	}
	return v, nil
}

func textureFormat(f gputypes.TextureFormat, fallback gputypes.TextureFormat) (texelFormat, error) {
	if f == gputypes.TextureFormatUndefined {
		f = fallback
	}
	tf, ok := textureFormats[f]
	if !ok {
		return texelFormat{}, fmt.Errorf("unsupported texture format %v", f)
	}
	return tf, nil
}

func indexFormat(f gputypes.IndexFormat) wgpu.IndexFormat {
	if f == gputypes.IndexFormatUint16 {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

func frontFace(f gputypes.FrontFace) wgpu.FrontFace {
	if f == gputypes.FrontFaceCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func shaderStages(s gputypes.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&gputypes.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gputypes.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&gputypes.ShaderStageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

func colorWriteMask(m gputypes.ColorWriteMask) wgpu.ColorWriteMask {
	if m == gputypes.ColorWriteMaskNone {
		return wgpu.ColorWriteMaskAll
	}
	var out wgpu.ColorWriteMask
	if m&gputypes.ColorWriteMaskRed != 0 {
		out |= wgpu.ColorWriteMaskRed
	}
	if m&gputypes.ColorWriteMaskGreen != 0 {
		out |= wgpu.ColorWriteMaskGreen
	}
	if m&gputypes.ColorWriteMaskBlue != 0 {
		out |= wgpu.ColorWriteMaskBlue
	}
	if m&gputypes.ColorWriteMaskAlpha != 0 {
		out |= wgpu.ColorWriteMaskAlpha
	}
	return out
}

// layoutEntry converts a reflected binding into a bind group layout entry.
//
// Parameters:
//   - b: the reflected binding
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the layout entry
//   - error: an error if the binding uses a format or dimension the backend does not map
func layoutEntry(b shader.Binding) (wgpu.BindGroupLayoutEntry, error) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    b.Binding,
		Visibility: shaderStages(b.Visibility),
	}

	dim, err := lookup(viewDimensions, b.ViewDimension, wgpu.TextureViewDimension2D, "view dimension")
	if err != nil {
		return entry, err
	}

	switch b.Class {
	case shader.BindingUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = b.MinSize
	case shader.BindingStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		entry.Buffer.MinBindingSize = b.MinSize
	case shader.BindingReadOnlyStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		entry.Buffer.MinBindingSize = b.MinSize
	case shader.BindingTexture, shader.BindingDepthTexture:
		st, err := lookup(sampleTypes, b.SampleType, wgpu.TextureSampleTypeFloat, "sample type")
		if err != nil {
			return entry, err
		}
		if b.Class == shader.BindingDepthTexture {
			st = wgpu.TextureSampleTypeDepth
		}
		entry.Texture.SampleType = st
		entry.Texture.ViewDimension = dim
		entry.Texture.Multisampled = b.Multisampled
	case shader.BindingStorageTexture:
		access, err := lookup(storageAccesses, b.StorageAccess, wgpu.StorageTextureAccessWriteOnly, "storage access")
		if err != nil {
			return entry, err
		}
		tf, err := textureFormat(b.StorageFormat, gputypes.TextureFormatRGBA8Unorm)
		if err != nil {
			return entry, err
		}
		entry.StorageTexture.Access = access
		entry.StorageTexture.Format = tf.format
		entry.StorageTexture.ViewDimension = dim
	case shader.BindingSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case shader.BindingComparisonSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	}
	return entry, nil
}
