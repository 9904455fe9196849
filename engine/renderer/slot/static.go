package slot

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
)

const (
	MaxVertexBuffers = 4
	MaxTargets       = 4
	MaxRWBuffers     = 4
)

// Static slot names.
const (
	Effect        = "Effect"
	VertexFormat  = "VertexFormat"
	IndexBuffer   = "IndexBuffer"
	BlendState    = "BlendState"
	RasterState   = "RasterState"
	DepthState    = "DepthState"
	DepthBuffer   = "DepthBuffer"
	Primitive     = "Primitive"
	ViewportState = "ViewportState"
	PipelineState = "PipelineState"
)

// VertexBuffer returns the name of vertex buffer slot i.
func VertexBuffer(i int) string {
	return fmt.Sprintf("VertexBuffer%d", i)
}

// Target returns the name of color target slot i.
func Target(i int) string {
	return fmt.Sprintf("Target%d", i)
}

// RWBuffer returns the name of read-write buffer slot i.
func RWBuffer(i int) string {
	return fmt.Sprintf("RWBuffer%d", i)
}

// NewStaticSlotTable creates the fixed slot set every pass owns. The read-write buffer
// slots are bound to the effect under their slot name.
//
// Parameters:
//   - names: the arena bound resource names are interned in
//
// Returns:
//   - SlotTable: the static table, which rejects AddResourceSlot
func NewStaticSlotTable(names *resource.Names) SlotTable {
	t := newSlotTable(names, 11+MaxVertexBuffers+MaxTargets+MaxRWBuffers)
	t.add(Effect, resource.KindEffect, "")
	t.add(VertexFormat, resource.KindVertexFormat, "")
	for i := range MaxVertexBuffers {
		t.add(VertexBuffer(i), resource.KindVertexBuffer, "")
	}
	t.add(IndexBuffer, resource.KindIndexBuffer, "")
	t.add(BlendState, resource.KindBlendState, "")
	t.add(RasterState, resource.KindRasterState, "")
	t.add(DepthState, resource.KindDepthState, "")
	for i := range MaxTargets {
		t.add(Target(i), resource.KindTarget, "")
	}
	t.add(DepthBuffer, resource.KindDepthBuffer, "")
	for i := range MaxRWBuffers {
		t.add(RWBuffer(i), resource.KindBuffer, RWBuffer(i))
	}
	t.add(Primitive, resource.KindPrimitive, "")
	t.add(ViewportState, resource.KindViewportState, "")
	t.add(PipelineState, resource.KindPipelineState, "")
	t.fixed = true
	return t
}
