package shader

import "github.com/gogpu/gputypes"

// attributeFormat is the vertex format and byte size of a WGSL vertex input type.
type attributeFormat struct {
	format gputypes.VertexFormat
	size   uint64
}

// typeLayout is the byte size and alignment of a WGSL host-shareable type.
type typeLayout struct {
	size  uint64
	align uint64
}

// structField is a single member of a WGSL struct.
type structField struct {
	name     string
	typeName string
	location int
	builtin  bool
}

// vertexInput is a location-bound input of a vertex entry point.
type vertexInput struct {
	location uint32
	typeName string
}

// structDecl is a WGSL struct declaration.
type structDecl struct {
	name   string
	fields []structField
}

// vertexAttributeFormats maps WGSL vertex input types to their attribute format.
var vertexAttributeFormats = map[string]attributeFormat{
	"f32":       {gputypes.VertexFormatFloat32, 4},
	"vec2f":     {gputypes.VertexFormatFloat32x2, 8},
	"vec2<f32>": {gputypes.VertexFormatFloat32x2, 8},
	"vec3f":     {gputypes.VertexFormatFloat32x3, 12},
	"vec3<f32>": {gputypes.VertexFormatFloat32x3, 12},
	"vec4f":     {gputypes.VertexFormatFloat32x4, 16},
	"vec4<f32>": {gputypes.VertexFormatFloat32x4, 16},
	"i32":       {gputypes.VertexFormatSint32, 4},
	"vec2i":     {gputypes.VertexFormatSint32x2, 8},
	"vec2<i32>": {gputypes.VertexFormatSint32x2, 8},
	"vec4i":     {gputypes.VertexFormatSint32x4, 16},
	"vec4<i32>": {gputypes.VertexFormatSint32x4, 16},
	"u32":       {gputypes.VertexFormatUint32, 4},
	"vec2u":     {gputypes.VertexFormatUint32x2, 8},
	"vec2<u32>": {gputypes.VertexFormatUint32x2, 8},
	"vec4u":     {gputypes.VertexFormatUint32x4, 16},
	"vec4<u32>": {gputypes.VertexFormatUint32x4, 16},
}

// primitiveLayouts holds size and alignment of the WGSL scalar, vector and matrix types
// following the WGSL alignment and size rules.
var primitiveLayouts = map[string]typeLayout{
	"f32": {4, 4}, "i32": {4, 4}, "u32": {4, 4}, "f16": {2, 2}, "bool": {4, 4},
	"atomic<u32>": {4, 4}, "atomic<i32>": {4, 4},

	"vec2f": {8, 8}, "vec2<f32>": {8, 8}, "vec2i": {8, 8}, "vec2<i32>": {8, 8}, "vec2u": {8, 8}, "vec2<u32>": {8, 8},
	"vec3f": {12, 16}, "vec3<f32>": {12, 16}, "vec3i": {12, 16}, "vec3<i32>": {12, 16}, "vec3u": {12, 16}, "vec3<u32>": {12, 16},
	"vec4f": {16, 16}, "vec4<f32>": {16, 16}, "vec4i": {16, 16}, "vec4<i32>": {16, 16}, "vec4u": {16, 16}, "vec4<u32>": {16, 16},

	"mat2x2f": {16, 8}, "mat2x2<f32>": {16, 8},
	"mat3x3f": {48, 16}, "mat3x3<f32>": {48, 16},
	"mat4x4f": {64, 16}, "mat4x4<f32>": {64, 16},
	"mat4x3<f32>": {64, 16}, "mat3x4<f32>": {48, 16},
}

// textureDimensions maps sampled and depth texture types to their view dimension.
var textureDimensions = map[string]gputypes.TextureViewDimension{
	"texture_1d":                    gputypes.TextureViewDimension1D,
	"texture_2d":                    gputypes.TextureViewDimension2D,
	"texture_2d_array":              gputypes.TextureViewDimension2DArray,
	"texture_3d":                    gputypes.TextureViewDimension3D,
	"texture_cube":                  gputypes.TextureViewDimensionCube,
	"texture_cube_array":            gputypes.TextureViewDimensionCubeArray,
	"texture_multisampled_2d":       gputypes.TextureViewDimension2D,
	"texture_depth_2d":              gputypes.TextureViewDimension2D,
	"texture_depth_2d_array":        gputypes.TextureViewDimension2DArray,
	"texture_depth_cube":            gputypes.TextureViewDimensionCube,
	"texture_depth_multisampled_2d": gputypes.TextureViewDimension2D,
	"texture_storage_1d":            gputypes.TextureViewDimension1D,
	"texture_storage_2d":            gputypes.TextureViewDimension2D,
	"texture_storage_2d_array":      gputypes.TextureViewDimension2DArray,
	"texture_storage_3d":            gputypes.TextureViewDimension3D,
}

var sampleTypes = map[string]gputypes.TextureSampleType{
	"f32": gputypes.TextureSampleTypeFloat,
	"i32": gputypes.TextureSampleTypeSint,
	"u32": gputypes.TextureSampleTypeUint,
}

var storageAccesses = map[string]gputypes.StorageTextureAccess{
	"write":      gputypes.StorageTextureAccessWriteOnly,
	"read":       gputypes.StorageTextureAccessReadOnly,
	"read_write": gputypes.StorageTextureAccessReadWrite,
}

// texelFormats covers the storage texel formats the renderer can create.
var texelFormats = map[string]gputypes.TextureFormat{
	"rgba8unorm":  gputypes.TextureFormatRGBA8Unorm,
	"bgra8unorm":  gputypes.TextureFormatBGRA8Unorm,
	"r32float":    gputypes.TextureFormatR32Float,
	"rgba16float": gputypes.TextureFormatRGBA16Float,
	"rgba32float": gputypes.TextureFormatRGBA32Float,
}
