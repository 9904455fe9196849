package backend

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"
)

// ErrNoWGSL is returned when a shader carries only a binary module.
var ErrNoWGSL = errors.New("backend: shader has no WGSL source")

func (b *wgpuBackend) CreateTexture(label string, params resource.TextureParams, pixels []byte) (resource.Resource, error) {
	tf, err := textureFormat(params.Format, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", label, err)
	}

	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if params.RenderTarget {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	if params.Storage {
		usage |= wgpu.TextureUsageStorageBinding
	}

	size := wgpu.Extent3D{
		Width:              max(params.Width, 1),
		Height:             max(params.Height, 1),
		DepthOrArrayLayers: max(params.ArrayLayers, 1),
	}
	texture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: max(params.MipLevels, 1),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        tf.format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %s: %w", label, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("failed to create view for texture %s: %w", label, err)
	}

	if len(pixels) > 0 && tf.bytes > 0 {
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  size.Width * tf.bytes,
				RowsPerImage: size.Height,
			},
			&size,
		)
	}

	return &wgpuTexture{label: label, params: params, format: tf, texture: texture, view: view}, nil
}

func (b *wgpuBackend) CreateBuffer(label string, kind resource.Kind, params resource.BufferParams, data []byte) (resource.Resource, error) {
	var usage wgpu.BufferUsage
	switch kind {
	case resource.KindVertexBuffer:
		usage = wgpu.BufferUsageVertex
	case resource.KindIndexBuffer:
		usage = wgpu.BufferUsageIndex
	case resource.KindConstantBuffer:
		usage = wgpu.BufferUsageUniform
	default:
		usage = wgpu.BufferUsageStorage
	}
	usage |= wgpu.BufferUsageCopyDst

	size := max(params.Size, uint64(len(data)))
	// wgpu requires buffer sizes and writes aligned to 4 bytes
	size = (max(size, 4) + 3) &^ 3

	buffer, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", label, err)
	}

	shadow := make([]byte, size)
	copy(shadow, data)
	if len(data) > 0 {
		b.queue.WriteBuffer(buffer, 0, shadow)
	}

	return &wgpuBuffer{label: label, kind: kind, params: params, buffer: buffer, shadow: shadow}, nil
}

func (b *wgpuBackend) createModule(label string, s shader.Shader) (*wgpu.ShaderModule, error) {
	if s == nil {
		return nil, fmt.Errorf("shader %s: %w", label, ErrNoWGSL)
	}
	if s.Source() == "" {
		return nil, fmt.Errorf("shader %s: %w", label, ErrNoWGSL)
	}
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module %s: %w", label, err)
	}
	return module, nil
}

func (b *wgpuBackend) CreateVertexShader(label string, s shader.Shader) (resource.Resource, error) {
	module, err := b.createModule(label, s)
	if err != nil {
		return nil, err
	}
	return &wgpuShader{label: label, kind: resource.KindVertexShader, source: s, module: module}, nil
}

func (b *wgpuBackend) CreatePixelShader(label string, s shader.Shader) (resource.Resource, error) {
	module, err := b.createModule(label, s)
	if err != nil {
		return nil, err
	}
	return &wgpuShader{label: label, kind: resource.KindPixelShader, source: s, module: module}, nil
}

func (b *wgpuBackend) CreateEffect(label string, vs, ps resource.Resource) (resource.Resource, error) {
	v, ok := vs.(*wgpuShader)
	if !ok || v.module == nil {
		return nil, fmt.Errorf("%w: vertex shader of effect %s", device.ErrWrongResource, label)
	}
	p, ok := ps.(*wgpuShader)
	if !ok || p.module == nil {
		return nil, fmt.Errorf("%w: pixel shader of effect %s", device.ErrWrongResource, label)
	}

	e := &wgpuEffect{
		label:         label,
		backend:       b,
		vertex:        v.module,
		fragment:      p.module,
		vertexEntry:   v.source.EntryPoint(shader.ShaderTypeVertex),
		fragmentEntry: p.source.EntryPoint(shader.ShaderTypeFragment),
		reflection:    v.source.Reflection().Merge(p.source.Reflection()),
	}
	if err := b.createLayouts(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (b *wgpuBackend) CreateProgram(label string, s shader.Shader) (resource.Resource, error) {
	module, err := b.createModule(label, s)
	if err != nil {
		return nil, err
	}
	e := &wgpuEffect{
		label:         label,
		backend:       b,
		vertex:        module,
		fragment:      module,
		vertexEntry:   s.EntryPoint(shader.ShaderTypeVertex),
		fragmentEntry: s.EntryPoint(shader.ShaderTypeFragment),
		ownsModules:   true,
		reflection:    s.Reflection(),
	}
	if err := b.createLayouts(e); err != nil {
		return nil, err
	}
	return e, nil
}

// createLayouts builds one bind group layout per group index up to the highest group in
// the reflection, leaving gaps as empty layouts, and the pipeline layout over them.
func (b *wgpuBackend) createLayouts(e *wgpuEffect) error {
	var groupCount uint32
	for _, binding := range e.reflection.Bindings {
		groupCount = max(groupCount, binding.Group+1)
	}

	entries := make([][]wgpu.BindGroupLayoutEntry, groupCount)
	for _, binding := range e.reflection.Bindings {
		entry, err := layoutEntry(binding)
		if err != nil {
			e.Release()
			return fmt.Errorf("effect %s binding %s: %w", e.label, binding.Name, err)
		}
		entries[binding.Group] = append(entries[binding.Group], entry)
	}

	for g, groupEntries := range entries {
		layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", e.label, g),
			Entries: groupEntries,
		})
		if err != nil {
			e.Release()
			return fmt.Errorf("failed to create bind group layout %d of %s: %w", g, e.label, err)
		}
		e.groupLayouts = append(e.groupLayouts, layout)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            e.label,
		BindGroupLayouts: e.groupLayouts,
	})
	if err != nil {
		e.Release()
		return fmt.Errorf("failed to create pipeline layout of %s: %w", e.label, err)
	}
	e.layout = layout
	return nil
}

func (b *wgpuBackend) CreateBlendState(label string, params resource.BlendParams) (resource.Resource, error) {
	if _, err := blendState(params); err != nil {
		return nil, fmt.Errorf("blend state %s: %w", label, err)
	}
	return &wgpuBlendState{params: params}, nil
}

func (b *wgpuBackend) CreateDepthState(label string, params resource.DepthParams) (resource.Resource, error) {
	if _, err := lookup(compareFunctions, params.Compare, wgpu.CompareFunctionLess, "compare function"); err != nil {
		return nil, fmt.Errorf("depth state %s: %w", label, err)
	}
	return &wgpuDepthState{params: params}, nil
}

func (b *wgpuBackend) CreateRasterState(label string, params resource.RasterParams) (resource.Resource, error) {
	if _, err := lookup(cullModes, params.CullMode, wgpu.CullModeNone, "cull mode"); err != nil {
		return nil, fmt.Errorf("raster state %s: %w", label, err)
	}
	return &wgpuRasterState{params: params}, nil
}

func (b *wgpuBackend) CreateSamplerState(label string, params resource.SamplerParams) (resource.Resource, error) {
	var err error
	desc := wgpu.SamplerDescriptor{
		Label:         label,
		LodMinClamp:   params.LodMinClamp,
		LodMaxClamp:   common.Coalesce(params.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(params.MaxAnisotropy, 1),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
	}
	if params.MipmapLinear {
		desc.MipmapFilter = wgpu.MipmapFilterModeLinear
	}
	if desc.AddressModeU, err = lookup(addressModes, params.AddressModeU, wgpu.AddressModeRepeat, "address mode"); err != nil {
		return nil, fmt.Errorf("sampler %s: %w", label, err)
	}
	if desc.AddressModeV, err = lookup(addressModes, params.AddressModeV, wgpu.AddressModeRepeat, "address mode"); err != nil {
		return nil, fmt.Errorf("sampler %s: %w", label, err)
	}
	if desc.AddressModeW, err = lookup(addressModes, params.AddressModeW, wgpu.AddressModeRepeat, "address mode"); err != nil {
		return nil, fmt.Errorf("sampler %s: %w", label, err)
	}
	if desc.MagFilter, err = lookup(filterModes, params.MagFilter, wgpu.FilterModeLinear, "filter mode"); err != nil {
		return nil, fmt.Errorf("sampler %s: %w", label, err)
	}
	if desc.MinFilter, err = lookup(filterModes, params.MinFilter, wgpu.FilterModeLinear, "filter mode"); err != nil {
		return nil, fmt.Errorf("sampler %s: %w", label, err)
	}
	if params.Compare != gputypes.CompareFunctionUndefined {
		if desc.Compare, err = lookup(compareFunctions, params.Compare, wgpu.CompareFunctionLess, "compare function"); err != nil {
			return nil, fmt.Errorf("sampler %s: %w", label, err)
		}
	}

	sampler, err := b.device.CreateSampler(&desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler %s: %w", label, err)
	}
	return &wgpuSampler{label: label, sampler: sampler}, nil
}

func (b *wgpuBackend) CreateTarget(label string, params resource.TargetParams, texture resource.Resource) (resource.Resource, error) {
	t, ok := texture.(*wgpuTexture)
	if !ok || t.view == nil {
		return nil, fmt.Errorf("%w: texture of target %s", device.ErrWrongResource, label)
	}
	if !t.params.RenderTarget {
		return nil, fmt.Errorf("target %s: texture %s is not a render target", label, t.label)
	}
	return &wgpuTarget{
		label:   label,
		params:  params,
		view:    t.view,
		format:  t.format.format,
		samples: 1,
	}, nil
}

func (b *wgpuBackend) CreateDepthBuffer(label string, params resource.DepthBufferParams) (resource.Resource, error) {
	tf, err := textureFormat(params.Format, gputypes.TextureFormatDepth24Plus)
	if err != nil {
		return nil, fmt.Errorf("depth buffer %s: %w", label, err)
	}
	if tf.bytes != 0 {
		return nil, fmt.Errorf("depth buffer %s: %v is not a depth format", label, params.Format)
	}

	width := common.Coalesce(params.Width, b.width)
	height := common.Coalesce(params.Height, b.height)
	texture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              max(width, 1),
			Height:             max(height, 1),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   max(common.Coalesce(params.SampleCount, uint32(b.sampleCount)), 1),
		Dimension:     wgpu.TextureDimension2D,
		Format:        tf.format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create depth buffer %s: %w", label, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("failed to create view for depth buffer %s: %w", label, err)
	}
	return &wgpuDepthBuffer{label: label, params: params, format: tf.format, texture: texture, view: view}, nil
}

func (b *wgpuBackend) CreateVertexFormat(label string, layouts []resource.VertexLayout) (resource.Resource, error) {
	out := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for _, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			f, ok := vertexFormats[a.Format]
			if !ok {
				return nil, fmt.Errorf("vertex format %s: unsupported attribute format %v", label, a.Format)
			}
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         f,
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			})
		}
		stepMode := wgpu.VertexStepModeVertex
		if l.Instanced {
			stepMode = wgpu.VertexStepModeInstance
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: l.Stride,
			StepMode:    stepMode,
			Attributes:  attrs,
		})
	}
	return &wgpuVertexFormat{layouts: out}, nil
}

func (b *wgpuBackend) CreatePipelineState(label string, params resource.PipelineParams, parts device.PipelineParts) (resource.Resource, error) {
	effect, ok := parts.Effect.(*wgpuEffect)
	if !ok {
		return nil, fmt.Errorf("%w: effect of pipeline %s", device.ErrWrongResource, label)
	}

	key := pipelineKey{effect: effect, samples: max(params.SampleCount, 1)}
	if vf, ok := parts.VertexFormat.(*wgpuVertexFormat); ok {
		key.vertexFormat = vf
	}
	if s, ok := parts.Blend.(*wgpuBlendState); ok {
		key.blend = s.params
	}
	if s, ok := parts.Depth.(*wgpuDepthState); ok {
		key.depth = s.params
	}
	if s, ok := parts.Raster.(*wgpuRasterState); ok {
		key.cull, key.frontFace = s.params.CullMode, s.params.FrontFace
	}
	if p, ok := parts.Primitive.(*device.Primitive); ok {
		key.topology = p.Params.Topology
	}
	if t, ok := parts.Target.(*wgpuTarget); ok {
		key.colorFormats[0] = t.format
		key.samples = max(t.samples, key.samples)
	} else {
		key.colorFormats[0] = b.surfaceFormat
	}
	key.colorCount = 1
	if d, ok := parts.DepthBuffer.(*wgpuDepthBuffer); ok {
		key.depthFormat = d.format
		key.hasDepth = true
	}

	pipeline, err := b.createPipeline(label, key)
	if err != nil {
		return nil, err
	}
	return &wgpuPipelineState{label: label, effect: effect, pipeline: pipeline}, nil
}

// createPipeline builds a render pipeline for a fully resolved pipeline key.
func (b *wgpuBackend) createPipeline(label string, key pipelineKey) (*wgpu.RenderPipeline, error) {
	blend, err := blendState(key.blend)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", label, err)
	}
	topology, err := lookup(topologies, key.topology, wgpu.PrimitiveTopologyTriangleList, "topology")
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", label, err)
	}
	cull, err := lookup(cullModes, key.cull, wgpu.CullModeNone, "cull mode")
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", label, err)
	}

	var layouts []wgpu.VertexBufferLayout
	if key.vertexFormat != nil {
		layouts = key.vertexFormat.layouts
	}

	targets := make([]wgpu.ColorTargetState, key.colorCount)
	for i := range targets {
		targets[i] = wgpu.ColorTargetState{
			Format:    key.colorFormats[i],
			Blend:     blend,
			WriteMask: colorWriteMask(key.blend.WriteMask),
		}
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  label,
		Layout: key.effect.layout,
		Vertex: wgpu.VertexState{
			Module:     key.effect.vertex,
			EntryPoint: key.effect.vertexEntry,
			Buffers:    layouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     key.effect.fragment,
			EntryPoint: key.effect.fragmentEntry,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: frontFace(key.frontFace),
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: max(key.samples, 1),
			Mask:  0xFFFFFFFF,
		},
	}

	if key.hasDepth {
		compare := wgpu.CompareFunctionAlways
		if key.depth.TestEnabled {
			if compare, err = lookup(compareFunctions, key.depth.Compare, wgpu.CompareFunctionLess, "compare function"); err != nil {
				return nil, fmt.Errorf("pipeline %s: %w", label, err)
			}
		}
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:              key.depthFormat,
			DepthWriteEnabled:   key.depth.WriteEnabled,
			DepthCompare:        compare,
			DepthBias:           key.depth.Bias,
			DepthBiasSlopeScale: key.depth.BiasSlopeScale,
			StencilFront:        wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:         wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	pipeline, err := b.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline %s: %w", label, err)
	}
	b.logger.Debug("render pipeline created", zap.String("label", label), zap.Uint32("samples", key.samples))
	return pipeline, nil
}

// blendState converts blend parameters, returning nil when blending is disabled.
func blendState(p resource.BlendParams) (*wgpu.BlendState, error) {
	if !p.Enabled {
		return nil, nil
	}
	color, err := blendComponent(p.Color, wgpu.BlendFactorSrcAlpha, wgpu.BlendFactorOneMinusSrcAlpha)
	if err != nil {
		return nil, err
	}
	alpha, err := blendComponent(p.Alpha, wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha)
	if err != nil {
		return nil, err
	}
	return &wgpu.BlendState{Color: color, Alpha: alpha}, nil
}

func blendComponent(c resource.BlendComponent, src, dst wgpu.BlendFactor) (wgpu.BlendComponent, error) {
	var out wgpu.BlendComponent
	var err error
	if out.SrcFactor, err = lookup(blendFactors, c.SrcFactor, src, "blend factor"); err != nil {
		return out, err
	}
	if out.DstFactor, err = lookup(blendFactors, c.DstFactor, dst, "blend factor"); err != nil {
		return out, err
	}
	if out.Operation, err = lookup(blendOperations, c.Operation, wgpu.BlendOperationAdd, "blend operation"); err != nil {
		return out, err
	}
	return out, nil
}
