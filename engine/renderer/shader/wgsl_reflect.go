package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

var (
	structRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex  = regexp.MustCompile(`@builtin\(\w+\)`)
	memberRegex   = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)
	bindingRegex  = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
	workgroupRe   = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	entryRegexes = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	stageFlags = map[ShaderType]gputypes.ShaderStage{
		ShaderTypeVertex:   gputypes.ShaderStageVertex,
		ShaderTypeFragment: gputypes.ShaderStageFragment,
		ShaderTypeCompute:  gputypes.ShaderStageCompute,
	}
)

// Reflect extracts bindings, vertex input layouts, entry points and the compute workgroup
// size from WGSL source. Every binding is made visible to all stages the source declares.
//
// Parameters:
//   - source: pre-processed WGSL source
//   - aliases: parameter key to variable name aliases, may be nil
//
// Returns:
//   - Reflection: the reflected shader interface
func Reflect(source string, aliases map[string]string) Reflection {
	src := stripComments(source)
	structs := parseStructs(src)

	r := Reflection{
		EntryPoints:   make(map[ShaderType]string, 2),
		WorkgroupSize: parseWorkgroupSize(src),
	}

	var visibility gputypes.ShaderStage
	for _, t := range []ShaderType{ShaderTypeVertex, ShaderTypeFragment, ShaderTypeCompute} {
		if m := entryRegexes[t].FindStringSubmatch(src); m != nil {
			r.EntryPoints[t] = m[1]
			visibility |= stageFlags[t]
		}
	}

	keys := make(map[string]string, len(aliases))
	for key, name := range aliases {
		keys[name] = key
	}

	sizes := structLayouts(structs)
	for _, m := range bindingRegex.FindAllStringSubmatch(src, -1) {
		group, _ := strconv.ParseUint(m[1], 10, 32)
		binding, _ := strconv.ParseUint(m[2], 10, 32)
		b := classify(strings.TrimSpace(m[3]), strings.TrimSpace(m[5]))
		b.Group, b.Binding = uint32(group), uint32(binding)
		b.Name = m[4]
		b.Key = b.Name
		if key, ok := keys[b.Name]; ok {
			b.Key = key
		}
		b.Visibility = visibility
		if b.Class.IsBuffer() {
			if l, ok := layoutOf(b.TypeName, sizes); ok {
				b.MinSize = l.size
			}
		}
		r.Bindings = append(r.Bindings, b)
	}
	sortBindings(r.Bindings)

	if entry, ok := r.EntryPoints[ShaderTypeVertex]; ok {
		inputs, err := moduleVertexInputs(source, entry)
		if err != nil {
			inputs = signatureVertexInputs(src, entry, structs)
		}
		if layout, ok := vertexLayout(inputs); ok {
			r.VertexLayouts = append(r.VertexLayouts, layout)
		}
	}
	return r
}

// classify derives the binding class and texture properties from the var<> qualifier and type.
func classify(space, typeName string) Binding {
	b := Binding{TypeName: typeName}
	if space != "" {
		switch {
		case space == "uniform":
			b.Class = BindingUniform
		case strings.Contains(space, "read_write"):
			b.Class = BindingStorage
		default:
			b.Class = BindingReadOnlyStorage
		}
		return b
	}

	base, params, _ := strings.Cut(typeName, "<")
	params = strings.TrimSpace(strings.TrimSuffix(params, ">"))
	b.ViewDimension = textureDimensions[base]

	switch {
	case typeName == "sampler":
		b.Class = BindingSampler
	case typeName == "sampler_comparison":
		b.Class = BindingComparisonSampler
	case strings.HasPrefix(base, "texture_storage_"):
		b.Class = BindingStorageTexture
		format, access, _ := strings.Cut(params, ",")
		b.StorageFormat = texelFormats[strings.TrimSpace(format)]
		b.StorageAccess = storageAccesses[strings.TrimSpace(access)]
	case strings.HasPrefix(base, "texture_depth_"):
		b.Class = BindingDepthTexture
		b.SampleType = gputypes.TextureSampleTypeDepth
		b.Multisampled = strings.Contains(base, "multisampled")
	default:
		b.Class = BindingTexture
		b.SampleType = gputypes.TextureSampleTypeFloat
		if st, ok := sampleTypes[params]; ok {
			b.SampleType = st
		}
		b.Multisampled = strings.Contains(base, "multisampled")
	}
	return b
}

// vertexLayout packs the vertex entry's location inputs into one interleaved layout in
// declaration order. Inputs with unsupported types drop the layout.
func vertexLayout(inputs []vertexInput) (resource.VertexLayout, bool) {
	if len(inputs) == 0 {
		return resource.VertexLayout{}, false
	}
	var layout resource.VertexLayout
	for _, in := range inputs {
		af, ok := vertexAttributeFormats[in.typeName]
		if !ok {
			return resource.VertexLayout{}, false
		}
		layout.Attributes = append(layout.Attributes, resource.VertexAttribute{
			Format:   af.format,
			Offset:   layout.Stride,
			Location: in.location,
		})
		layout.Stride += af.size
	}
	return layout, true
}

// moduleVertexInputs lowers source with naga and collects the location-bound arguments of
// the named vertex entry point, expanding struct arguments member by member.
func moduleVertexInputs(source, entry string) ([]vertexInput, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := naga.Lower(ast)
	if err != nil {
		return nil, err
	}

	for _, ep := range module.EntryPoints {
		if ep.Stage != ir.StageVertex || ep.Name != entry {
			continue
		}
		var inputs []vertexInput
		for _, arg := range ep.Function.Arguments {
			if arg.Binding != nil {
				if loc, ok := (*arg.Binding).(ir.LocationBinding); ok {
					inputs = append(inputs, vertexInput{location: loc.Location, typeName: irTypeName(module, arg.Type)})
				}
				continue
			}
			if int(arg.Type) >= len(module.Types) {
				continue
			}
			st, ok := module.Types[arg.Type].Inner.(ir.StructType)
			if !ok {
				continue
			}
			for _, m := range st.Members {
				if m.Binding == nil {
					continue
				}
				if loc, ok := (*m.Binding).(ir.LocationBinding); ok {
					inputs = append(inputs, vertexInput{location: loc.Location, typeName: irTypeName(module, m.Type)})
				}
			}
		}
		return inputs, nil
	}
	return nil, fmt.Errorf("vertex entry point %q not found", entry)
}

// irTypeName spells a scalar or vector IR type the way vertexAttributeFormats keys it.
func irTypeName(module *ir.Module, h ir.TypeHandle) string {
	if int(h) >= len(module.Types) {
		return ""
	}
	switch t := module.Types[h].Inner.(type) {
	case ir.ScalarType:
		return scalarName(t)
	case ir.VectorType:
		if name := scalarName(t.Scalar); name != "" {
			return fmt.Sprintf("vec%d<%s>", t.Size, name)
		}
	}
	return ""
}

func scalarName(s ir.ScalarType) string {
	if s.Width != 4 {
		return ""
	}
	switch s.Kind {
	case ir.ScalarFloat:
		return "f32"
	case ir.ScalarSint:
		return "i32"
	case ir.ScalarUint:
		return "u32"
	}
	return ""
}

// signatureVertexInputs scans the vertex entry's parameter list directly. It serves sources
// naga cannot lower on its own, such as fragments of a larger program.
func signatureVertexInputs(src, entry string, structs []structDecl) []vertexInput {
	params, ok := entryParams(src, entry)
	if !ok {
		return nil
	}
	byName := make(map[string]structDecl, len(structs))
	for _, s := range structs {
		byName[s.name] = s
	}

	var inputs []vertexInput
	for _, param := range splitMembers(params) {
		f, ok := parseField(strings.TrimSpace(param))
		if !ok || f.builtin {
			continue
		}
		if f.location >= 0 {
			inputs = append(inputs, vertexInput{location: uint32(f.location), typeName: f.typeName})
			continue
		}
		for _, m := range byName[f.typeName].fields {
			if !m.builtin && m.location >= 0 {
				inputs = append(inputs, vertexInput{location: uint32(m.location), typeName: m.typeName})
			}
		}
	}
	return inputs
}

// entryParams returns the text between the parentheses of fn entry's parameter list.
func entryParams(src, entry string) (string, bool) {
	loc := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(entry) + `\s*\(`).FindStringIndex(src)
	if loc == nil {
		return "", false
	}
	depth := 1
	for i := loc[1]; i < len(src); i++ {
		switch src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return src[loc[1]:i], true
			}
		}
	}
	return "", false
}

func parseStructs(src string) []structDecl {
	matches := structRegex.FindAllStringSubmatch(src, -1)
	out := make([]structDecl, 0, len(matches))
	for _, m := range matches {
		s := structDecl{name: m[1]}
		for _, member := range splitMembers(m[2]) {
			if f, ok := parseField(strings.TrimSpace(member)); ok {
				s.fields = append(s.fields, f)
			}
		}
		out = append(out, s)
	}
	return out
}

// parseField parses an attributed "name: type" declaration from a struct body or a
// parameter list.
func parseField(member string) (structField, bool) {
	fm := memberRegex.FindStringSubmatch(member)
	if fm == nil {
		return structField{}, false
	}
	f := structField{
		name:     fm[1],
		typeName: strings.TrimSpace(fm[2]),
		location: -1,
		builtin:  builtinRegex.MatchString(member),
	}
	if lm := locationRegex.FindStringSubmatch(member); lm != nil {
		f.location, _ = strconv.Atoi(lm[1])
	}
	return f, true
}

func parseWorkgroupSize(src string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupRe.FindStringSubmatch(src)
	if m == nil {
		return size
	}
	for i := range 3 {
		if v, err := strconv.ParseUint(m[i+1], 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// splitMembers splits a struct body or parameter list at commas outside brackets.
func splitMembers(body string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(body[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// stripComments removes line comments and nested block comments.
func stripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	depth := 0
	for i := 0; i < len(src); i++ {
		if i+1 < len(src) {
			switch {
			case src[i] == '/' && src[i+1] == '*':
				depth++
				i++
				continue
			case src[i] == '*' && src[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case src[i] == '/' && src[i+1] == '/' && depth == 0:
				for i < len(src) && src[i] != '\n' {
					i++
				}
				if i < len(src) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(src[i])
		}
	}
	return sb.String()
}
