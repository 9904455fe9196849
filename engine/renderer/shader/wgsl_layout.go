package shader

import (
	"strconv"
	"strings"
)

func alignTo(align, v uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// layoutOf resolves the size and alignment of a WGSL type. Runtime-sized arrays resolve
// to a single element stride, which is the smallest usable binding.
func layoutOf(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := known[typeName]; ok {
		return l, true
	}
	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return typeLayout{}, false
	}
	inner = strings.TrimSuffix(inner, ">")
	elemName, countStr, fixed := strings.Cut(inner, ",")
	elem, ok := layoutOf(strings.TrimSpace(elemName), known)
	if !ok {
		return typeLayout{}, false
	}
	stride := alignTo(elem.align, elem.size)
	if !fixed {
		return typeLayout{stride, elem.align}, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(countStr), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{stride * count, elem.align}, true
}

// structLayout lays out the members of s in order. A trailing runtime-sized array
// contributes its element stride.
func structLayout(s structDecl, known map[string]typeLayout) (typeLayout, bool) {
	var offset uint64
	align := uint64(1)
	for _, f := range s.fields {
		if f.builtin {
			continue
		}
		l, ok := layoutOf(f.typeName, known)
		if !ok {
			return typeLayout{}, false
		}
		offset = alignTo(l.align, offset) + l.size
		align = max(align, l.align)
	}
	return typeLayout{alignTo(align, offset), align}, true
}

// structLayouts resolves every struct, iterating until nested struct members settle.
func structLayouts(structs []structDecl) map[string]typeLayout {
	known := make(map[string]typeLayout, len(structs))
	pending := structs
	for len(pending) > 0 {
		var next []structDecl
		for _, s := range pending {
			if l, ok := structLayout(s, known); ok {
				known[s.name] = l
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return known
}
