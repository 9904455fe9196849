// annotations.go defines the @oxy: annotation syntax understood by the WGSL pre-processor.
// Annotations are single-line WGSL comments that inject registered snippets, generate
// binding declarations and alias effect parameter keys to shader variables.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a snippet registered on the cache.
	//
	// Syntax: //@oxy:include <snippet>
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeGroup generates a @group/@binding declaration. The type is either the
	// type of a registered snippet or a raw WGSL type.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 0 storage_uniform camera camera
	AnnotationTypeGroup AnnotationType = "group"

	// AnnotationTypeParam aliases an effect parameter key to a bound shader variable so
	// pass slot keys do not have to match WGSL identifiers.
	//
	// Syntax: //@oxy:param <key> <var_name>
	//
	// Example: //@oxy:param BaseColorTex diffuse_texture
	AnnotationTypeParam AnnotationType = "param"
)

// AddressSpace is the address space argument of a group annotation.
type AddressSpace string

const (
	AddressSpaceUniform   AddressSpace = "storage_uniform"
	AddressSpaceRead      AddressSpace = "storage_read"
	AddressSpaceReadWrite AddressSpace = "storage_read_write"
	// AddressSpaceHandle declares textures and samplers, which have no var<> qualifier.
	AddressSpaceHandle AddressSpace = "handle"
)

// addressSpaceSyntax maps address space arguments to their WGSL var<> syntax.
var addressSpaceSyntax = map[AddressSpace]string{
	AddressSpaceUniform:   "var<uniform>",
	AddressSpaceRead:      "var<storage, read>",
	AddressSpaceReadWrite: "var<storage, read_write>",
	AddressSpaceHandle:    "var",
}

// Annotation is a single parsed annotation.
type Annotation struct {
	Type AnnotationType

	// Args holds the annotation arguments after the type:
	//   - include: [0] = snippet name
	//   - group:   [0] = address space, [1] = var name, [2] = type
	//   - param:   [0] = parameter key, [1] = var name
	Args []string

	// Line is the 1-based source line, for error reporting.
	Line int

	// Group and Binding are set for group annotations only.
	Group   *int
	Binding *int
}

// parseAnnotation parses a single WGSL line. Lines without the annotation prefix return nil, nil.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{Type: AnnotationTypeInclude, Args: args[1:], Line: lineNum}, nil
	case AnnotationTypeGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires five arguments (group, binding, address space, var name, type)", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q: %w", lineNum, args[1], err)
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q: %w", lineNum, args[2], err)
		}
		spaces := make([]AddressSpace, 0, len(addressSpaceSyntax))
		for s := range addressSpaceSyntax {
			spaces = append(spaces, s)
		}
		if !slices.Contains(spaces, AddressSpace(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q", lineNum, args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeGroup,
			Args:    args[3:],
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	case AnnotationTypeParam:
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy param annotation requires two arguments (key, var name)", lineNum)
		}
		return &Annotation{Type: AnnotationTypeParam, Args: args[1:], Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
