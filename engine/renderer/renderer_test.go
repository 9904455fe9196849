package renderer

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/slot"
)

const vertexSource = `
struct VertexInput {
    @location(0) position: vec2<f32>,
};
@group(0) @binding(0) var<uniform> transform: mat4x4<f32>;
@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {
    return transform * vec4<f32>(in.position, 0.0, 1.0);
}
`

const pixelSource = `
@group(1) @binding(0) var albedo: texture_2d<f32>;
@group(1) @binding(1) var albedo_sampler: sampler;
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return textureSample(albedo, albedo_sampler, vec2<f32>(0.5, 0.5));
}
`

func newTestRenderer(t *testing.T, opts ...RendererBuilderOption) (Renderer, *device.Recorder) {
	t.Helper()
	dir := t.TempDir()
	for name, src := range map[string]string{"quad.vs.wgsl": vertexSource, "quad.ps.wgsl": pixelSource} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatalf("failed to write shader: %v", err)
		}
	}
	rec := device.NewRecorder()
	cache := shader.NewCache(shader.WithSourceLoader(shader.DirLoader(dir)), shader.WithCompiler(nil))
	return NewRenderer(rec, rec, append([]RendererBuilderOption{WithShaderCache(cache)}, opts...)...), rec
}

func mustAdd(t *testing.T, r Renderer, name string, desc resource.Descriptor) {
	t.Helper()
	if _, err := r.AddResource(name, desc); err != nil {
		t.Fatalf("AddResource(%s): %v", name, err)
	}
}

func addEffect(t *testing.T, r Renderer) {
	t.Helper()
	names := r.Names()
	mustAdd(t, r, "V", resource.MustDescriptor(resource.KindVertexShader, resource.ShaderParams{Source: resource.SourceFile, Path: "quad.vs.wgsl"}))
	mustAdd(t, r, "P", resource.MustDescriptor(resource.KindPixelShader, resource.ShaderParams{Source: resource.SourceFile, Path: "quad.ps.wgsl"}))
	mustAdd(t, r, "E", resource.MustDescriptor(resource.KindEffect, resource.ShaderParams{Source: resource.SourceLinked},
		resource.WithRef(resource.RefVertexShader, names.Intern("V")),
		resource.WithRef(resource.RefPixelShader, names.Intern("P"))))
}

func TestExternalTextureAndLinkedEffect(t *testing.T) {
	r, _ := newTestRenderer(t, WithFrameSource(nil))
	mustAdd(t, r, "T", resource.MustDescriptor(resource.KindTexture, nil, resource.WithExternal()))
	addEffect(t, r)

	if err := r.Table().BuildResources(); err != nil {
		t.Fatalf("BuildResources: %v", err)
	}
	if r.Table().Entry("E").Resource() == nil {
		t.Fatal("effect E was not built")
	}
	if r.Table().Entry("T").Resource() != nil {
		t.Fatal("external texture T must not be built by the factory")
	}

	stub := device.NewHandle(resource.KindTexture, "stub")
	if err := r.SetExternal("T", stub); err != nil {
		t.Fatalf("SetExternal: %v", err)
	}
	if got := r.Table().Entry("T").Resource(); got != stub {
		t.Errorf("T resolves to %v, want the injected stub", got)
	}

	if err := r.SetExternal("E", stub); !errors.Is(err, resource.ErrNotExternal) {
		t.Errorf("expected ErrNotExternal, got %v", err)
	}
	if err := r.SetExternal("T", device.NewHandle(resource.KindTarget, "x")); !errors.Is(err, resource.ErrKindMismatch) {
		t.Errorf("expected ErrKindMismatch, got %v", err)
	}
	if err := r.SetExternal("Missing", stub); !errors.Is(err, resource.ErrUnknownResource) {
		t.Errorf("expected ErrUnknownResource, got %v", err)
	}
}

func TestFrame(t *testing.T) {
	r, rec := newTestRenderer(t)
	addEffect(t, r)
	mustAdd(t, r, DefaultScreen, resource.MustDescriptor(resource.KindTarget, nil, resource.WithExternal()))
	mustAdd(t, r, "Albedo", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 4, Height: 4}))

	quad := r.NewPass("Quad",
		pass.WithSlot("Albedo", resource.KindTexture, "albedo"),
		pass.WithBinding(slot.Effect, "E"),
		pass.WithBinding(slot.Target(0), DefaultScreen),
		pass.WithBinding("Albedo", "Albedo"),
		pass.WithDraw(resource.PrimitiveParams{VertexCount: 6}),
	)
	if _, err := r.AddStage("Main", quad); err != nil {
		t.Fatalf("AddStage: %v", err)
	}

	stats, err := r.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if stats.Stages != 1 || stats.Passes != 1 || stats.Failed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if r.Table().Entry(DefaultScreen).Resource() != rec.Screen() {
		t.Error("screen target was not injected")
	}

	ops := rec.Ops()
	if ops[0] != "BeginFrame" {
		t.Errorf("frame did not start with BeginFrame: %v", ops)
	}
	if tail := ops[len(ops)-2:]; !slices.Equal(tail, []string{"EndFrame", "Present"}) {
		t.Errorf("frame did not end with EndFrame, Present: %v", ops)
	}
	for _, want := range []string{"SetTarget0(screen)", "SetParameter:albedo(Albedo)", "DrawPrimitive(v=6 i=0 n=1)"} {
		if !slices.Contains(ops, want) {
			t.Errorf("frame is missing %s: %v", want, ops)
		}
	}

	rec.Reset()
	if _, err := r.Frame(); err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if slices.Contains(rec.Ops(), "CreateEffect(E)") {
		t.Error("effect was rebuilt on the second frame")
	}
	if r.FrameCount() != 2 || rec.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d and %d", r.FrameCount(), rec.Frames())
	}
}

func TestFrameIsBestEffort(t *testing.T) {
	r, rec := newTestRenderer(t)
	addEffect(t, r)
	mustAdd(t, r, "Broken", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 1, Height: 1}))
	rec.FailCreate("Broken", errors.New("out of memory"))

	if _, err := r.AddStage("Main", r.NewPass("A", pass.WithBinding(slot.Effect, "E"), pass.WithDraw(resource.PrimitiveParams{VertexCount: 3}))); err != nil {
		t.Fatal(err)
	}

	stats, err := r.Frame()
	if !errors.Is(err, resource.ErrCreationFailed) {
		t.Fatalf("expected the build failure to be reported, got %v", err)
	}
	if stats.Passes != 1 || stats.Failed != 0 {
		t.Errorf("stages did not run past the failed build: %+v", stats)
	}
	if !slices.Contains(rec.Ops(), "Present") {
		t.Error("frame was not presented")
	}

	rec.FailCreate("Broken", nil)
	if _, err := r.Frame(); err != nil {
		t.Fatalf("retry frame: %v", err)
	}
	if r.Table().Entry("Broken").Resource() == nil {
		t.Error("failed entry was not retried")
	}
}

func TestFrameEndFailureSkipsPresent(t *testing.T) {
	r, rec := newTestRenderer(t)
	boom := errors.New("device lost")
	rec.FailOp("EndFrame", boom)

	if _, err := r.Frame(); !errors.Is(err, boom) {
		t.Fatalf("expected the submit failure, got %v", err)
	}
	if slices.Contains(rec.Ops(), "Present") {
		t.Error("a failed frame was presented")
	}
}

func TestSetDescRebuildsOnNextFrame(t *testing.T) {
	r, rec := newTestRenderer(t, WithFrameSource(nil))
	mustAdd(t, r, "Albedo", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 4, Height: 4}))
	if _, err := r.Frame(); err != nil {
		t.Fatal(err)
	}
	old, _ := r.Table().Entry("Albedo").Resource().(*device.Handle)

	if err := r.SetDesc("Albedo", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 8, Height: 8})); err != nil {
		t.Fatalf("SetDesc: %v", err)
	}
	if old == nil || !old.Released() {
		t.Error("replaced texture was not released")
	}
	if err := r.SetDesc("Missing", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 1, Height: 1})); !errors.Is(err, resource.ErrUnknownResource) {
		t.Errorf("expected ErrUnknownResource, got %v", err)
	}

	rec.Reset()
	if _, err := r.Frame(); err != nil {
		t.Fatal(err)
	}
	if got := rec.Ops(); !slices.Equal(got, []string{"CreateTexture(Albedo)"}) {
		t.Errorf("got %v, want a single rebuild", got)
	}
	if rec.Frames() != 0 {
		t.Error("offscreen renderer used the frame source")
	}
}

func TestRenderersDoNotShareNames(t *testing.T) {
	a, _ := newTestRenderer(t)
	b, _ := newTestRenderer(t)
	mustAdd(t, a, "Only", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 1, Height: 1}))

	if _, ok := b.Names().Lookup("Only"); ok {
		t.Error("name interned in one renderer leaked into another")
	}
	if b.Table().Entry("Only") != nil {
		t.Error("entry leaked across renderers")
	}
}

func TestRelease(t *testing.T) {
	r, _ := newTestRenderer(t)
	mustAdd(t, r, "Albedo", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 1, Height: 1}))
	if err := r.Table().BuildResources(); err != nil {
		t.Fatal(err)
	}
	h := r.Table().Entry("Albedo").Resource().(*device.Handle)

	r.Release()
	r.Release()
	if !h.Released() {
		t.Error("Release did not release built resources")
	}
}
