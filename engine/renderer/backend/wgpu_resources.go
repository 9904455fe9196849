package backend

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Resources created by the wgpu backend. Every type releases its wgpu objects in Release.

type wgpuTexture struct {
	label   string
	params  resource.TextureParams
	format  texelFormat
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (*wgpuTexture) Kind() resource.Kind { return resource.KindTexture }

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

type wgpuBuffer struct {
	label  string
	kind   resource.Kind
	params resource.BufferParams
	buffer *wgpu.Buffer

	// shadow is the CPU copy handed out by Map and uploaded by Unmap.
	shadow []byte
}

func (b *wgpuBuffer) Kind() resource.Kind { return b.kind }

func (b *wgpuBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

type wgpuShader struct {
	label  string
	kind   resource.Kind
	source shader.Shader
	module *wgpu.ShaderModule
}

var _ device.ShaderModule = &wgpuShader{}

func (s *wgpuShader) Kind() resource.Kind   { return s.kind }
func (s *wgpuShader) Shader() shader.Shader { return s.source }

func (s *wgpuShader) Release() {
	if s.module != nil {
		s.module.Release()
		s.module = nil
	}
}

// wgpuEffect is a vertex and fragment module pair with the layouts derived from their
// merged reflection. Linked effects borrow the modules of their shaders and do not
// release them. Releasing an effect evicts the pipelines cached for it.
type wgpuEffect struct {
	label   string
	backend *wgpuBackend

	vertex, fragment           *wgpu.ShaderModule
	vertexEntry, fragmentEntry string
	ownsModules                bool

	reflection   shader.Reflection
	groupLayouts []*wgpu.BindGroupLayout
	layout       *wgpu.PipelineLayout
}

var _ device.Effect = &wgpuEffect{}

func (*wgpuEffect) Kind() resource.Kind             { return resource.KindEffect }
func (e *wgpuEffect) Reflection() shader.Reflection { return e.reflection }

func (e *wgpuEffect) Release() {
	if e.backend != nil {
		e.backend.forgetEffect(e)
	}
	if e.layout != nil {
		e.layout.Release()
		e.layout = nil
	}
	for _, l := range e.groupLayouts {
		l.Release()
	}
	e.groupLayouts = nil
	if e.ownsModules {
		if e.vertex != nil {
			e.vertex.Release()
		}
		if e.fragment != nil && e.fragment != e.vertex {
			e.fragment.Release()
		}
	}
	e.vertex, e.fragment = nil, nil
}

type wgpuBlendState struct {
	params resource.BlendParams
}

func (*wgpuBlendState) Kind() resource.Kind { return resource.KindBlendState }

type wgpuDepthState struct {
	params resource.DepthParams
}

func (*wgpuDepthState) Kind() resource.Kind { return resource.KindDepthState }

type wgpuRasterState struct {
	params resource.RasterParams
}

func (*wgpuRasterState) Kind() resource.Kind { return resource.KindRasterState }

type wgpuSampler struct {
	label   string
	sampler *wgpu.Sampler
}

func (*wgpuSampler) Kind() resource.Kind { return resource.KindSamplerState }

func (s *wgpuSampler) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

// wgpuTarget is a color attachment. With multisampling, msaa is drawn into and view
// receives the resolve.
type wgpuTarget struct {
	label   string
	params  resource.TargetParams
	view    *wgpu.TextureView
	msaa    *wgpu.TextureView
	format  wgpu.TextureFormat
	samples uint32
}

func (*wgpuTarget) Kind() resource.Kind { return resource.KindTarget }

type wgpuDepthBuffer struct {
	label   string
	params  resource.DepthBufferParams
	format  wgpu.TextureFormat
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (*wgpuDepthBuffer) Kind() resource.Kind { return resource.KindDepthBuffer }

func (d *wgpuDepthBuffer) Release() {
	if d.view != nil {
		d.view.Release()
		d.view = nil
	}
	if d.texture != nil {
		d.texture.Release()
		d.texture = nil
	}
}

func (d *wgpuDepthBuffer) hasStencil() bool {
	return d.format == wgpu.TextureFormatDepth24PlusStencil8
}

type wgpuVertexFormat struct {
	layouts []wgpu.VertexBufferLayout
}

func (*wgpuVertexFormat) Kind() resource.Kind { return resource.KindVertexFormat }

type wgpuPipelineState struct {
	label    string
	effect   *wgpuEffect
	pipeline *wgpu.RenderPipeline
}

func (*wgpuPipelineState) Kind() resource.Kind { return resource.KindPipelineState }

func (p *wgpuPipelineState) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}
