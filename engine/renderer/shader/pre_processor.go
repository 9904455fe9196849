package shader

import (
	"fmt"
	"strings"
)

// Snippet is a WGSL fragment registered for @oxy:include. Type is the WGSL type name the
// snippet declares, used when a group annotation names the snippet as its type.
type Snippet struct {
	Source string
	Type   string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	snippets map[string]Snippet
	aliases  map[string]string
}

// PreProcessor expands @oxy: annotations in WGSL source.
type PreProcessor interface {
	// Process expands includes and group annotations and collects parameter aliases.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: an error if an annotation is malformed or names an unknown snippet
	Process(source string) (string, error)

	// Aliases returns the parameter key to variable name aliases collected by the last Process call.
	Aliases() map[string]string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor over a snapshot of the registered snippets.
//
// Parameters:
//   - snippets: snippets available to @oxy:include, keyed by name
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(snippets map[string]Snippet) PreProcessor {
	p := &preProcessor{
		snippets: make(map[string]Snippet, len(snippets)),
		aliases:  make(map[string]string),
	}
	for k, v := range snippets {
		p.snippets[k] = v
	}
	return p
}

func (p *preProcessor) Process(source string) (string, error) {
	p.aliases = make(map[string]string)
	included := make(map[string]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			name := a.Args[0]
			snippet, ok := p.snippets[name]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include snippet %q", a.Line, name)
			}
			// a snippet included twice would redeclare its structs
			if included[name] {
				continue
			}
			included[name] = true
			out = append(out, snippet.Source)
		case AnnotationTypeGroup:
			space, varName, typeArg := AddressSpace(a.Args[0]), a.Args[1], a.Args[2]
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, addressSpaceSyntax[space], varName, p.resolveType(typeArg)))
		case AnnotationTypeParam:
			p.aliases[a.Args[0]] = a.Args[1]
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Aliases() map[string]string {
	return p.aliases
}

// resolveType maps a snippet name, or array<snippet>, to its WGSL type. Anything else is
// taken as a raw WGSL type.
func (p *preProcessor) resolveType(arg string) string {
	if inner, ok := strings.CutPrefix(arg, "array<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		if s, ok := p.snippets[inner]; ok && s.Type != "" {
			return fmt.Sprintf("array<%s>", s.Type)
		}
		return arg
	}
	if s, ok := p.snippets[arg]; ok && s.Type != "" {
		return s.Type
	}
	return arg
}
