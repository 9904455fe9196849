package backend

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

func TestLookup(t *testing.T) {
	got, err := lookup(compareFunctions, gputypes.CompareFunctionUndefined, wgpu.CompareFunctionLess, "compare function")
	if err != nil || got != wgpu.CompareFunctionLess {
		t.Fatalf("undefined key: got %v, %v", got, err)
	}
	got, err = lookup(compareFunctions, gputypes.CompareFunctionGreaterEqual, wgpu.CompareFunctionLess, "compare function")
	if err != nil || got != wgpu.CompareFunctionGreaterEqual {
		t.Fatalf("mapped key: got %v, %v", got, err)
	}
	if _, err := lookup(compareFunctions, gputypes.CompareFunction(200), wgpu.CompareFunctionLess, "compare function"); err == nil {
		t.Fatal("expected an error for an unmapped key")
	}
}

func TestTextureFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  gputypes.TextureFormat
		want    wgpu.TextureFormat
		bytes   uint32
		wantErr bool
	}{
		{name: "fallback", format: gputypes.TextureFormatUndefined, want: wgpu.TextureFormatRGBA8Unorm, bytes: 4},
		{name: "float", format: gputypes.TextureFormatRGBA32Float, want: wgpu.TextureFormatRGBA32Float, bytes: 16},
		{name: "depth", format: gputypes.TextureFormatDepth32Float, want: wgpu.TextureFormatDepth32Float},
		{name: "unsupported", format: gputypes.TextureFormatBC1RGBAUnorm, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := textureFormat(tt.format, gputypes.TextureFormatRGBA8Unorm)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.format != tt.want || got.bytes != tt.bytes {
				t.Fatalf("got %v/%d, want %v/%d", got.format, got.bytes, tt.want, tt.bytes)
			}
		})
	}
}

func TestShaderStagesAndWriteMask(t *testing.T) {
	stages := shaderStages(gputypes.ShaderStageVertex | gputypes.ShaderStageFragment)
	if stages != wgpu.ShaderStageVertex|wgpu.ShaderStageFragment {
		t.Fatalf("stages = %v", stages)
	}
	if m := colorWriteMask(gputypes.ColorWriteMaskNone); m != wgpu.ColorWriteMaskAll {
		t.Fatalf("empty mask = %v, want all", m)
	}
	if m := colorWriteMask(gputypes.ColorWriteMaskRed | gputypes.ColorWriteMaskAlpha); m != wgpu.ColorWriteMaskRed|wgpu.ColorWriteMaskAlpha {
		t.Fatalf("mask = %v", m)
	}
}

func TestLayoutEntry(t *testing.T) {
	tests := []struct {
		name    string
		binding shader.Binding
		check   func(t *testing.T, e wgpu.BindGroupLayoutEntry)
	}{
		{
			name:    "uniform",
			binding: shader.Binding{Binding: 0, Class: shader.BindingUniform, MinSize: 64, Visibility: gputypes.ShaderStageVertex},
			check: func(t *testing.T, e wgpu.BindGroupLayoutEntry) {
				if e.Buffer.Type != wgpu.BufferBindingTypeUniform || e.Buffer.MinBindingSize != 64 {
					t.Fatalf("buffer = %+v", e.Buffer)
				}
				if e.Visibility != wgpu.ShaderStageVertex {
					t.Fatalf("visibility = %v", e.Visibility)
				}
			},
		},
		{
			name:    "depth texture",
			binding: shader.Binding{Binding: 1, Class: shader.BindingDepthTexture},
			check: func(t *testing.T, e wgpu.BindGroupLayoutEntry) {
				if e.Texture.SampleType != wgpu.TextureSampleTypeDepth || e.Texture.ViewDimension != wgpu.TextureViewDimension2D {
					t.Fatalf("texture = %+v", e.Texture)
				}
			},
		},
		{
			name:    "comparison sampler",
			binding: shader.Binding{Binding: 2, Class: shader.BindingComparisonSampler},
			check: func(t *testing.T, e wgpu.BindGroupLayoutEntry) {
				if e.Sampler.Type != wgpu.SamplerBindingTypeComparison {
					t.Fatalf("sampler = %+v", e.Sampler)
				}
			},
		},
		{
			name: "storage texture",
			binding: shader.Binding{
				Binding:       3,
				Class:         shader.BindingStorageTexture,
				StorageFormat: gputypes.TextureFormatRGBA16Float,
				StorageAccess: gputypes.StorageTextureAccessReadWrite,
			},
			check: func(t *testing.T, e wgpu.BindGroupLayoutEntry) {
				if e.StorageTexture.Format != wgpu.TextureFormatRGBA16Float || e.StorageTexture.Access != wgpu.StorageTextureAccessReadWrite {
					t.Fatalf("storage texture = %+v", e.StorageTexture)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := layoutEntry(tt.binding)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if e.Binding != tt.binding.Binding {
				t.Fatalf("binding = %d, want %d", e.Binding, tt.binding.Binding)
			}
			tt.check(t, e)
		})
	}
}

func TestBlendState(t *testing.T) {
	off, err := blendState(resource.BlendParams{})
	if err != nil || off != nil {
		t.Fatalf("disabled blend: got %v, %v", off, err)
	}

	on, err := blendState(resource.BlendParams{Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if on.Color.SrcFactor != wgpu.BlendFactorSrcAlpha || on.Color.DstFactor != wgpu.BlendFactorOneMinusSrcAlpha {
		t.Fatalf("color = %+v", on.Color)
	}
	if on.Alpha.SrcFactor != wgpu.BlendFactorOne || on.Alpha.Operation != wgpu.BlendOperationAdd {
		t.Fatalf("alpha = %+v", on.Alpha)
	}

	additive, err := blendState(resource.BlendParams{
		Enabled: true,
		Color:   resource.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOne},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if additive.Color.SrcFactor != wgpu.BlendFactorOne || additive.Color.DstFactor != wgpu.BlendFactorOne {
		t.Fatalf("additive color = %+v", additive.Color)
	}
}

func TestStateStacks(t *testing.T) {
	state := newContextState()
	stack := []resource.BlendParams{}

	if err := pop(&stack, &state.blend, "blend"); !errors.Is(err, device.ErrStateUnderflow) {
		t.Fatalf("expected ErrStateUnderflow, got %v", err)
	}

	stack = append(stack, state.blend)
	state.blend = resource.BlendParams{}
	if err := pop(&stack, &state.blend, "blend"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.blend != defaultBlend || len(stack) != 0 {
		t.Fatalf("blend = %+v, stack = %d", state.blend, len(stack))
	}
}
