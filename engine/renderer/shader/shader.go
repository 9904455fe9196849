package shader

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
)

// ShaderType identifies the pipeline stage a shader module is compiled for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is a module providing the vertex stage of an effect.
	ShaderTypeVertex

	// ShaderTypeFragment is a module providing the pixel stage of an effect.
	ShaderTypeFragment

	// ShaderTypeProgram is a single module providing both the vertex and pixel stages.
	ShaderTypeProgram
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	case ShaderTypeProgram:
		return "program"
	default:
		return "unknown"
	}
}

// shader is the implementation of the Shader interface.
type shader struct {
	key        string
	shaderType ShaderType
	source     string
	binary     []byte
	reflection Reflection
}

// Shader is a loaded shader module, either pre-processed WGSL or a pre-compiled binary,
// together with the interface reflected from its source.
type Shader interface {
	// Key retrieves the cache key the shader was loaded under.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Type returns the stage the shader was loaded for.
	//
	// Returns:
	//   - ShaderType: the shader type
	Type() ShaderType

	// Source retrieves the pre-processed WGSL source, empty for binary shaders.
	//
	// Returns:
	//   - string: the WGSL source
	Source() string

	// Binary retrieves the pre-compiled module bytes, nil for WGSL shaders.
	//
	// Returns:
	//   - []byte: the module binary
	Binary() []byte

	// EntryPoint returns the entry function for a stage of this shader.
	//
	// Parameters:
	//   - stage: ShaderTypeVertex, ShaderTypeFragment or ShaderTypeCompute
	//
	// Returns:
	//   - string: the entry point name, empty if the shader has no such stage
	EntryPoint(stage ShaderType) string

	// Reflection returns the bindings, vertex layouts and entry points reflected from the source.
	//
	// Returns:
	//   - Reflection: the reflected interface; binary shaders only carry entry points
	Reflection() Reflection

	// VertexLayouts returns the vertex input layouts declared by a vertex stage.
	//
	// Returns:
	//   - []resource.VertexLayout: one layout per vertex input struct
	VertexLayouts() []resource.VertexLayout

	// WorkgroupSize returns the compute workgroup size, [1, 1, 1] when not declared.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32
}

var _ Shader = &shader{}

// NewShader creates a Shader. WithSource or WithBinary provides the module body.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the stage the shader is loaded for
//   - opts: builder options applied in order
//
// Returns:
//   - Shader: the configured shader
func NewShader(key string, shaderType ShaderType, opts ...ShaderBuilderOption) Shader {
	s := &shader{
		key:        key,
		shaderType: shaderType,
		reflection: Reflection{
			EntryPoints:   make(map[ShaderType]string, 2),
			WorkgroupSize: [3]uint32{1, 1, 1},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Type() ShaderType {
	return s.shaderType
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Binary() []byte {
	return s.binary
}

func (s *shader) EntryPoint(stage ShaderType) string {
	return s.reflection.EntryPoints[stage]
}

func (s *shader) Reflection() Reflection {
	return s.reflection
}

func (s *shader) VertexLayouts() []resource.VertexLayout {
	return s.reflection.VertexLayouts
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.reflection.WorkgroupSize
}
