package shader

// ShaderBuilderOption configures a shader created by NewShader.
type ShaderBuilderOption func(*shader)

// WithSource sets pre-processed WGSL source and reflects its interface.
//
// Parameters:
//   - source: the WGSL source
//   - aliases: parameter key to variable name aliases collected by the pre-processor
//
// Returns:
//   - ShaderBuilderOption: a function that applies the source
func WithSource(source string, aliases map[string]string) ShaderBuilderOption {
	return func(s *shader) {
		s.source = source
		entries := s.reflection.EntryPoints
		s.reflection = Reflect(source, aliases)
		for t, e := range entries {
			s.reflection.EntryPoints[t] = e
		}
	}
}

// WithBinary sets a pre-compiled module body. Binary modules cannot be reflected so the
// entry points have to be supplied with WithEntryPoint.
//
// Parameters:
//   - binary: the module bytes
//
// Returns:
//   - ShaderBuilderOption: a function that applies the binary
func WithBinary(binary []byte) ShaderBuilderOption {
	return func(s *shader) {
		s.binary = binary
	}
}

// WithEntryPoint overrides the entry function of a stage. Empty names are ignored.
//
// Parameters:
//   - stage: the stage to set
//   - name: the entry function name
//
// Returns:
//   - ShaderBuilderOption: a function that applies the entry point
func WithEntryPoint(stage ShaderType, name string) ShaderBuilderOption {
	return func(s *shader) {
		if name != "" {
			s.reflection.EntryPoints[stage] = name
		}
	}
}
