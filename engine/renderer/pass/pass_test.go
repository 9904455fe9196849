package pass

import (
	"errors"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/factory"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/slot"
)

const program = `
struct VertexInput {
    @location(0) position: vec2<f32>,
};
@group(0) @binding(0) var<uniform> tint: vec4<f32>;
@group(0) @binding(1) var albedo: texture_2d<f32>;
@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {
    return vec4<f32>(in.position, 0.0, 1.0);
}
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return tint;
}
`

type fixture struct {
	rec   *device.Recorder
	table *resource.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := device.NewRecorder()
	f := factory.NewFactory(rec, factory.WithShaderCache(shader.NewCache(shader.WithCompiler(nil))))
	table := resource.NewTable(resource.NewNames(), f)

	entries := []struct {
		name string
		desc resource.Descriptor
	}{
		{"Fx", resource.MustDescriptor(resource.KindEffect, resource.ShaderParams{Source: resource.SourceString, Code: program})},
		{"Quad", resource.MustDescriptor(resource.KindVertexBuffer, resource.BufferParams{Size: 32, Stride: 8})},
		{"QuadIB", resource.MustDescriptor(resource.KindIndexBuffer, resource.BufferParams{Size: 12})},
		{"Screen", resource.MustDescriptor(resource.KindTarget, nil, resource.WithExternal())},
		{"Additive", resource.MustDescriptor(resource.KindBlendState, resource.BlendParams{Enabled: true})},
		{"Tint", resource.MustDescriptor(resource.KindConstantBuffer, resource.BufferParams{Size: 16, Dynamic: true})},
		{"Albedo", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 2, Height: 2})},
		{"Tris", resource.MustDescriptor(resource.KindPrimitive, resource.PrimitiveParams{IndexCount: 6})},
		{"Full", resource.MustDescriptor(resource.KindViewportState, resource.ViewportParams{Width: 64, Height: 64, MaxDepth: 1})},
	}
	for _, e := range entries {
		if _, err := table.AddEntry(e.name, e.desc); err != nil {
			t.Fatalf("AddEntry(%s): %v", e.name, err)
		}
	}
	if err := table.Entry("Screen").SetExternalResource(rec.Screen()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := table.BuildResources(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.Reset()
	return &fixture{rec: rec, table: table}
}

func (fx *fixture) quadPass(name string) Pass {
	return NewPass(name, fx.table.Names(),
		WithSlot("Tint", resource.KindConstantBuffer, "tint"),
		WithSlot("BaseColorTex", resource.KindTexture, "albedo"),
		WithBinding(slot.Effect, "Fx"),
		WithBinding(slot.VertexBuffer(0), "Quad"),
		WithBinding(slot.IndexBuffer, "QuadIB"),
		WithBinding(slot.Target(0), "Screen"),
		WithBinding(slot.BlendState, "Additive"),
		WithBinding(slot.Primitive, "Tris"),
		WithBinding(slot.ViewportState, "Full"),
		WithBinding("Tint", "Tint"),
		WithBinding("BaseColorTex", "Albedo"),
	)
}

var quadTrace = []string{
	"SetEffect(Fx)",
	"SetVertexBuffer0(Quad)",
	"SetIndexBuffer(QuadIB)",
	"SetTarget0(screen)",
	"PushBlendState", "PushDepthState", "PushRasterState",
	"SetViewport",
	"SetBlendState(Additive)",
	"SetParameter:tint(Tint)",
	"SetParameter:albedo(Albedo)",
	"BeginEffect(Fx)",
	"DrawPrimitive(v=0 i=6 n=1)",
	"EndEffect(Fx)",
	"PopRasterState", "PopDepthState", "PopBlendState",
}

func TestFlushIsDeterministic(t *testing.T) {
	fx := newFixture(t)
	p := fx.quadPass("Quad")
	if err := p.FetchResources(fx.table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		fx.rec.Reset()
		if err := p.Flush(fx.rec); err != nil {
			t.Fatalf("flush %d: unexpected error: %v", i, err)
		}
		if got := fx.rec.Ops(); !slices.Equal(got, quadTrace) {
			t.Fatalf("flush %d:\n got %v\nwant %v", i, got, quadTrace)
		}
	}
	if vp := fx.rec.Viewport(); vp.Width != 64 {
		t.Errorf("viewport not applied: %+v", vp)
	}
}

func TestFlushRestoresStateOnFailure(t *testing.T) {
	tests := []struct {
		name string
		op   string
	}{
		{"parameter", "SetParameter:albedo"},
		{"draw", "DrawPrimitive"},
		{"begin", "BeginEffect"},
		{"blend", "SetBlendState"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			ambient := device.NewHandle(resource.KindBlendState, "ambient")
			_ = fx.rec.SetBlendState(ambient)

			p := fx.quadPass("Quad")
			_ = p.FetchResources(fx.table)
			boom := errors.New("boom")
			fx.rec.FailOp(tt.op, boom)

			if err := p.Flush(fx.rec); !errors.Is(err, boom) {
				t.Fatalf("expected the injected failure, got %v", err)
			}
			if b, d, r := fx.rec.StackDepth(); b != 0 || d != 0 || r != 0 {
				t.Errorf("state stacks not unwound: %d %d %d", b, d, r)
			}
			if blend, _, _ := fx.rec.State(); blend != ambient {
				t.Errorf("blend state not restored, got %v", blend)
			}
		})
	}
}

func TestFlushDrawEndsEffectAfterFailedDraw(t *testing.T) {
	fx := newFixture(t)
	p := fx.quadPass("Quad")
	_ = p.FetchResources(fx.table)
	fx.rec.FailOp("DrawPrimitive", errors.New("lost"))

	_ = p.Flush(fx.rec)
	if !slices.Contains(fx.rec.Ops(), "EndEffect(Fx)") {
		t.Error("EndEffect was skipped after a failed draw")
	}
}

func TestFlushWithoutEffect(t *testing.T) {
	fx := newFixture(t)
	p := NewPass("Empty", fx.table.Names(), WithBinding(slot.BlendState, "Additive"))
	_ = p.FetchResources(fx.table)

	if err := p.Flush(fx.rec); !errors.Is(err, ErrNoEffect) {
		t.Fatalf("expected ErrNoEffect, got %v", err)
	}
	if len(fx.rec.Calls()) != 0 {
		t.Errorf("a pass without effect touched the device: %v", fx.rec.Ops())
	}
}

func TestFlushSkipsUnboundAndUnbuiltSlots(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.table.AddEntry("Later", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 1, Height: 1})); err != nil {
		t.Fatal(err)
	}
	p := NewPass("Sparse", fx.table.Names(),
		WithSlot("BaseColorTex", resource.KindTexture, "albedo"),
		WithSlot("Unbound", resource.KindTexture, "unused"),
		WithBinding(slot.Effect, "Fx"),
		WithBinding("BaseColorTex", "Later"),
		WithDraw(resource.PrimitiveParams{VertexCount: 3}),
	)
	_ = p.FetchResources(fx.table)

	if err := p.Flush(fx.rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"SetEffect(Fx)",
		"PushBlendState", "PushDepthState", "PushRasterState",
		"BeginEffect(Fx)",
		"DrawPrimitive(v=3 i=0 n=1)",
		"EndEffect(Fx)",
		"PopRasterState", "PopDepthState", "PopBlendState",
	}
	if got := fx.rec.Ops(); !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPassSlotRouting(t *testing.T) {
	fx := newFixture(t)
	p := fx.quadPass("Quad")

	if err := p.AddResourceSlot(slot.IndexBuffer, resource.KindTexture, "x"); !errors.Is(err, slot.ErrSlotExists) {
		t.Errorf("expected ErrSlotExists for a static name, got %v", err)
	}
	if err := p.BindResource("Missing", "Fx"); !errors.Is(err, slot.ErrUnknownSlot) {
		t.Errorf("expected ErrUnknownSlot, got %v", err)
	}
	if err := p.UnbindResource("BaseColorTex"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Dynamic().Bound("BaseColorTex") != "" {
		t.Error("dynamic slot still bound")
	}
	if p.Static().Bound(slot.IndexBuffer) != "QuadIB" {
		t.Error("static binding lost")
	}
}
