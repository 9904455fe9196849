package factory

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

const vertexSource = `
struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) uv: vec2<f32>,
};
@group(0) @binding(0) var<uniform> camera: mat4x4<f32>;
@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {
    return camera * vec4<f32>(in.position, 1.0);
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

const programSource = vertexSource + `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

type fixture struct {
	rec   *device.Recorder
	cache shader.Cache
	table *resource.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, src := range map[string]string{"lit.vs.wgsl": vertexSource, "lit.ps.wgsl": pixelSource} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatalf("failed to write shader: %v", err)
		}
	}
	rec := device.NewRecorder()
	cache := shader.NewCache(shader.WithSourceLoader(shader.DirLoader(dir)), shader.WithCompiler(nil))
	f := NewFactory(rec, WithShaderCache(cache))
	return &fixture{rec: rec, cache: cache, table: resource.NewTable(resource.NewNames(), f)}
}

func (fx *fixture) add(t *testing.T, name string, desc resource.Descriptor) *resource.Entry {
	t.Helper()
	e, err := fx.table.AddEntry(name, desc)
	if err != nil {
		t.Fatalf("AddEntry(%s): %v", name, err)
	}
	return e
}

func (fx *fixture) ref(name string) resource.Name {
	return fx.table.Names().Intern(name)
}

func (fx *fixture) addLitEffect(t *testing.T) *resource.Entry {
	fx.add(t, "V", resource.MustDescriptor(resource.KindVertexShader, resource.ShaderParams{Source: resource.SourceFile, Path: "lit.vs.wgsl"}))
	fx.add(t, "P", resource.MustDescriptor(resource.KindPixelShader, resource.ShaderParams{Source: resource.SourceFile, Path: "lit.ps.wgsl"}))
	return fx.add(t, "E", resource.MustDescriptor(resource.KindEffect, resource.ShaderParams{Source: resource.SourceLinked},
		resource.WithRef(resource.RefVertexShader, fx.ref("V")),
		resource.WithRef(resource.RefPixelShader, fx.ref("P"))))
}

func TestLinkedEffect(t *testing.T) {
	fx := newFixture(t)
	e := fx.addLitEffect(t)

	if err := e.CreateResource(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"CreateVertexShader(V)", "CreatePixelShader(P)", "CreateEffect(E)"}
	if got := fx.rec.Ops(); !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	effect, ok := e.Resource().(device.Effect)
	if !ok {
		t.Fatalf("effect resource %T does not expose a reflection", e.Resource())
	}
	refl := effect.Reflection()
	for _, key := range []string{"camera", "albedo", "albedo_sampler"} {
		if _, ok := refl.Binding(key); !ok {
			t.Errorf("effect reflection is missing %s", key)
		}
	}
	if fx.cache.Len() != 2 {
		t.Errorf("expected 2 cached shaders, got %d", fx.cache.Len())
	}
}

func TestLinkedEffectDependencyNotReady(t *testing.T) {
	fx := newFixture(t)
	boom := errors.New("device lost")
	fx.rec.FailCreate("P", boom)
	e := fx.addLitEffect(t)

	err := e.CreateResource()
	if !errors.Is(err, ErrDependencyNotReady) || !errors.Is(err, resource.ErrCreationFailed) {
		t.Fatalf("expected a creation error caused by ErrDependencyNotReady, got %v", err)
	}
	if e.Built() {
		t.Error("effect was built without its pixel shader")
	}

	fx.rec.FailCreate("P", nil)
	if err := e.CreateResource(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestSharedShaderSources(t *testing.T) {
	fx := newFixture(t)
	program := resource.MustDescriptor(resource.KindEffect, resource.ShaderParams{Source: resource.SourceString, Code: programSource})
	fx.add(t, "A", program)
	fx.add(t, "B", program)
	fx.add(t, "VA", resource.MustDescriptor(resource.KindVertexShader, resource.ShaderParams{Source: resource.SourceFile, Path: "lit.vs.wgsl"}))
	fx.add(t, "VB", resource.MustDescriptor(resource.KindVertexShader, resource.ShaderParams{Source: resource.SourceFile, Path: "lit.vs.wgsl"}))

	if err := fx.table.BuildResources(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.cache.Len() != 2 {
		t.Errorf("expected the cache to share identical sources, got %d shaders", fx.cache.Len())
	}
	a := fx.table.Entry("A").Resource().(*device.Handle)
	b := fx.table.Entry("B").Resource().(*device.Handle)
	if a == b || a.Module != b.Module {
		t.Error("expected distinct effects over one shared shader")
	}
}

func TestVertexFormatReflectedFromEffect(t *testing.T) {
	fx := newFixture(t)
	fx.addLitEffect(t)
	vf := fx.add(t, "Layout", resource.MustDescriptor(resource.KindVertexFormat, resource.VertexFormatParams{},
		resource.WithRef(resource.RefEffect, fx.ref("E"))))

	if err := vf.CreateResource(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := vf.Resource().(*device.Handle)
	if len(h.Layout) != 1 || h.Layout[0].Stride != 20 || len(h.Layout[0].Attributes) != 2 {
		t.Errorf("unexpected reflected layout %+v", h.Layout)
	}
}

func TestPipelineState(t *testing.T) {
	fx := newFixture(t)
	fx.addLitEffect(t)
	fx.add(t, "Opaque", resource.MustDescriptor(resource.KindBlendState, resource.BlendParams{}))
	fx.add(t, "Tri", resource.MustDescriptor(resource.KindPrimitive, resource.PrimitiveParams{VertexCount: 3}))
	pso := fx.add(t, "PSO", resource.MustDescriptor(resource.KindPipelineState, resource.PipelineParams{},
		resource.WithRef(resource.RefEffect, fx.ref("E")),
		resource.WithRef(resource.RefBlend, fx.ref("Opaque")),
		resource.WithRef(resource.RefPrimitive, fx.ref("Tri"))))

	if err := pso.CreateResource(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := pso.Resource().(*device.Handle)
	if h.Parts.Effect != fx.table.Entry("E").Resource() || h.Parts.Blend != fx.table.Entry("Opaque").Resource() {
		t.Errorf("pipeline parts not wired: %+v", h.Parts)
	}
	if h.Parts.Depth != nil || h.Parts.Target != nil {
		t.Errorf("unset parts should be nil: %+v", h.Parts)
	}
	if h.Params.(resource.PipelineParams).SampleCount != 1 {
		t.Errorf("sample count not defaulted")
	}
	if _, ok := h.Parts.Primitive.(*device.Primitive); !ok {
		t.Errorf("primitive part has type %T", h.Parts.Primitive)
	}
}

func TestValueKindsSkipDevice(t *testing.T) {
	fx := newFixture(t)
	fx.add(t, "Tri", resource.MustDescriptor(resource.KindPrimitive, resource.PrimitiveParams{VertexCount: 3}))
	fx.add(t, "Full", resource.MustDescriptor(resource.KindViewportState, resource.ViewportParams{Width: 640, Height: 480, MaxDepth: 1}))

	if err := fx.table.BuildResources(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.rec.Calls()) != 0 {
		t.Errorf("value kinds reached the device: %v", fx.rec.Ops())
	}
	vp := fx.table.Entry("Full").Resource().(*device.Viewport)
	if vp.Params.Width != 640 {
		t.Errorf("unexpected viewport %+v", vp.Params)
	}
}

func TestBuffers(t *testing.T) {
	fx := newFixture(t)
	raw := bytes.Repeat([]byte{1, 2, 3, 4}, 64)
	compressed, err := resource.CompressPayload(raw, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fx.add(t, "VB", resource.MustDescriptor(resource.KindVertexBuffer, resource.BufferParams{Stride: 16}, resource.WithPayload(compressed)))
	fx.add(t, "CB", resource.MustDescriptor(resource.KindConstantBuffer, resource.BufferParams{Size: 64, Dynamic: true}))
	fx.add(t, "Empty", resource.MustDescriptor(resource.KindIndexBuffer, resource.BufferParams{}))

	err = fx.table.BuildResources()
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource for the empty buffer, got %v", err)
	}
	vb := fx.table.Entry("VB").Resource().(*device.Handle)
	if !bytes.Equal(vb.Data, raw) {
		t.Errorf("payload was not decompressed")
	}
	if cb := fx.table.Entry("CB").Resource().(*device.Handle); len(cb.Data) != 64 {
		t.Errorf("unexpected constant buffer size %d", len(cb.Data))
	}
}

func TestTextureFromFile(t *testing.T) {
	fx := newFixture(t)
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tex.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write png: %v", err)
	}

	e := fx.add(t, "Tex", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Path: path}))
	if err := e.CreateResource(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := e.Resource().(*device.Handle)
	p := h.Params.(resource.TextureParams)
	if p.Width != 4 || p.Height != 2 || p.ArrayLayers != 1 || p.MipLevels != 1 {
		t.Errorf("unexpected texture params %+v", p)
	}
	if len(h.Data) != 4*2*4 || h.Data[0] != 255 {
		t.Errorf("unexpected pixels %v", h.Data)
	}
}

func TestTargetNeedsTexture(t *testing.T) {
	fx := newFixture(t)
	fx.add(t, "RT", resource.MustDescriptor(resource.KindTarget, resource.TargetParams{}))
	fx.add(t, "Color", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 8, Height: 8, RenderTarget: true}))
	fx.add(t, "Offscreen", resource.MustDescriptor(resource.KindTarget, resource.TargetParams{Clear: true},
		resource.WithRef(resource.RefTexture, fx.ref("Color"))))

	err := fx.table.BuildResources()
	if !errors.Is(err, ErrDependencyNotReady) {
		t.Fatalf("expected ErrDependencyNotReady for a target without texture, got %v", err)
	}
	if !fx.table.Entry("Offscreen").Built() {
		t.Error("offscreen target was not built")
	}
}

func TestMissingShaderSource(t *testing.T) {
	tests := []struct {
		name   string
		kind   resource.Kind
		params resource.ShaderParams
	}{
		{"file without path", resource.KindVertexShader, resource.ShaderParams{Source: resource.SourceFile}},
		{"string without code", resource.KindPixelShader, resource.ShaderParams{Source: resource.SourceString}},
		{"binary without bytes", resource.KindEffect, resource.ShaderParams{Source: resource.SourceBinary}},
		{"linked shader stage", resource.KindVertexShader, resource.ShaderParams{Source: resource.SourceLinked}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			e := fx.add(t, "S", resource.MustDescriptor(tt.kind, tt.params))
			if err := e.CreateResource(); !errors.Is(err, ErrMissingSource) {
				t.Errorf("expected ErrMissingSource, got %v", err)
			}
		})
	}
}
