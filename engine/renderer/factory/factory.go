// Package factory turns resource descriptors into device resources. It is the single
// place that knows how each descriptor kind maps onto the device contract.
package factory

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedKind is returned for descriptor kinds the factory cannot create.
	ErrUnsupportedKind = errors.New("factory: unsupported resource kind")

	// ErrDependencyNotReady is returned when a referenced entry has no resource.
	ErrDependencyNotReady = errors.New("factory: dependency not ready")

	// ErrMissingSource is returned when a descriptor names no source to create from.
	ErrMissingSource = errors.New("factory: missing source")
)

// factory is the implementation of the Factory interface.
type factory struct {
	device device.Device
	cache  shader.Cache
	logger *zap.Logger
}

// Factory creates device resources for table entries.
type Factory interface {
	resource.Factory

	// Device returns the device resources are created on.
	Device() device.Device

	// Cache returns the shader cache shader and effect sources are loaded through.
	Cache() shader.Cache
}

var _ Factory = &factory{}

// NewFactory creates a Factory on dev.
//
// Parameters:
//   - dev: the device resources are created on
//   - opts: builder options
//
// Returns:
//   - Factory: the configured factory
func NewFactory(dev device.Device, opts ...FactoryBuilderOption) Factory {
	if dev == nil {
		panic("factory: device must not be nil")
	}
	f := &factory{
		device: dev,
		logger: common.Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.cache == nil {
		f.cache = shader.NewCache(shader.WithLogger(f.logger))
	}
	return f
}

func (f *factory) Device() device.Device {
	return f.device
}

func (f *factory) Cache() shader.Cache {
	return f.cache
}

func (f *factory) CreateResource(desc resource.Descriptor, entry *resource.Entry, table *resource.Table) (resource.Resource, error) {
	label := entry.Label()
	data, err := desc.Payload().Bytes()
	if err != nil {
		return nil, err
	}

	switch desc.Kind() {
	case resource.KindTexture:
		p, err := params[resource.TextureParams](desc)
		if err != nil {
			return nil, err
		}
		return f.createTexture(label, p, data)

	case resource.KindVertexBuffer, resource.KindIndexBuffer, resource.KindConstantBuffer, resource.KindBuffer:
		p, err := params[resource.BufferParams](desc)
		if err != nil {
			return nil, err
		}
		if p.Size == 0 && len(data) == 0 {
			return nil, fmt.Errorf("buffer %s: %w", label, ErrMissingSource)
		}
		return f.device.CreateBuffer(label, desc.Kind(), p, data)

	case resource.KindVertexShader, resource.KindPixelShader:
		p, err := params[resource.ShaderParams](desc)
		if err != nil {
			return nil, err
		}
		return f.createShader(label, desc.Kind(), p)

	case resource.KindEffect:
		p, err := params[resource.ShaderParams](desc)
		if err != nil {
			return nil, err
		}
		return f.createEffect(label, desc, p, table)

	case resource.KindBlendState:
		p, err := params[resource.BlendParams](desc)
		if err != nil {
			return nil, err
		}
		return f.device.CreateBlendState(label, p)

	case resource.KindDepthState:
		p, err := params[resource.DepthParams](desc)
		if err != nil {
			return nil, err
		}
		return f.device.CreateDepthState(label, p)

	case resource.KindRasterState:
		p, err := params[resource.RasterParams](desc)
		if err != nil {
			return nil, err
		}
		return f.device.CreateRasterState(label, p)

	case resource.KindSamplerState:
		p, err := params[resource.SamplerParams](desc)
		if err != nil {
			return nil, err
		}
		return f.device.CreateSamplerState(label, p)

	case resource.KindTarget:
		p, err := params[resource.TargetParams](desc)
		if err != nil {
			return nil, err
		}
		tex, err := dependency(table, desc, resource.RefTexture, true)
		if err != nil {
			return nil, err
		}
		return f.device.CreateTarget(label, p, tex)

	case resource.KindDepthBuffer:
		p, err := params[resource.DepthBufferParams](desc)
		if err != nil {
			return nil, err
		}
		if p.Format == gputypes.TextureFormatUndefined {
			p.Format = gputypes.TextureFormatDepth24PlusStencil8
		}
		return f.device.CreateDepthBuffer(label, p)

	case resource.KindVertexFormat:
		p, err := params[resource.VertexFormatParams](desc)
		if err != nil {
			return nil, err
		}
		return f.createVertexFormat(label, desc, p, table)

	case resource.KindPipelineState:
		p, err := params[resource.PipelineParams](desc)
		if err != nil {
			return nil, err
		}
		return f.createPipelineState(label, desc, p, table)

	case resource.KindPrimitive:
		p, err := params[resource.PrimitiveParams](desc)
		if err != nil {
			return nil, err
		}
		return &device.Primitive{Params: p}, nil

	case resource.KindViewportState:
		p, err := params[resource.ViewportParams](desc)
		if err != nil {
			return nil, err
		}
		return &device.Viewport{Params: p}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, desc.Kind())
	}
}

// params extracts the typed parameters of desc.
func params[T resource.Params](desc resource.Descriptor) (T, error) {
	p, ok := desc.Params().(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s descriptor carries %T", resource.ErrKindMismatch, desc.Kind(), desc.Params())
	}
	return p, nil
}

// dependency returns the resource of the entry referenced by slot. Unset optional refs
// return nil; set refs whose entry has no resource fail with ErrDependencyNotReady.
func dependency(table *resource.Table, desc resource.Descriptor, slot int, required bool) (resource.Resource, error) {
	ref := desc.Ref(slot)
	if ref == resource.NoName {
		if required {
			return nil, fmt.Errorf("%w: ref %d is not set", ErrDependencyNotReady, slot)
		}
		return nil, nil
	}
	res := table.Resource(ref)
	if res == nil {
		return nil, fmt.Errorf("%w: %s", ErrDependencyNotReady, table.Names().String(ref))
	}
	return res, nil
}

func (f *factory) createTexture(label string, p resource.TextureParams, data []byte) (resource.Resource, error) {
	if p.Path != "" {
		staged, err := common.ImageSource{Path: p.Path}.Decode()
		if err != nil {
			return nil, err
		}
		data = staged.Pixels
		p.Width, p.Height = staged.Width, staged.Height
		p.Format = gputypes.TextureFormatRGBA8Unorm
	}
	if p.Width == 0 || p.Height == 0 {
		return nil, fmt.Errorf("texture %s has no size: %w", label, ErrMissingSource)
	}
	if p.Format == gputypes.TextureFormatUndefined {
		p.Format = gputypes.TextureFormatRGBA8Unorm
	}
	p.ArrayLayers = max(p.ArrayLayers, 1)
	p.MipLevels = max(p.MipLevels, 1)
	return f.device.CreateTexture(label, p, data)
}

// loadShader resolves a file, string or binary source through the cache.
func (f *factory) loadShader(label string, t shader.ShaderType, p resource.ShaderParams) (shader.Shader, error) {
	opts := []shader.ShaderBuilderOption{
		shader.WithEntryPoint(shader.ShaderTypeVertex, p.VertexEntry),
		shader.WithEntryPoint(shader.ShaderTypeFragment, p.PixelEntry),
	}
	switch p.Source {
	case resource.SourceFile:
		if p.Path == "" {
			return nil, fmt.Errorf("%s: %w: no path", label, ErrMissingSource)
		}
		return f.cache.LoadFromFile(p.Path, t, opts...)
	case resource.SourceString:
		if p.Code == "" {
			return nil, fmt.Errorf("%s: %w: no code", label, ErrMissingSource)
		}
		return f.cache.LoadFromString(sourceKey([]byte(p.Code), t, p), p.Code, t, opts...)
	case resource.SourceBinary:
		if len(p.Binary) == 0 {
			return nil, fmt.Errorf("%s: %w: no binary", label, ErrMissingSource)
		}
		return f.cache.LoadFromBuffer(sourceKey(p.Binary, t, p), p.Binary, t, opts...)
	default:
		return nil, fmt.Errorf("%s: %w: %s source", label, ErrMissingSource, p.Source)
	}
}

// sourceKey keys inline sources by content and entry overrides, so identical
// requests share one cached shader.
func sourceKey(data []byte, t shader.ShaderType, p resource.ShaderParams) string {
	return shader.SourceKey(data, t) + "/" + p.VertexEntry + "/" + p.PixelEntry
}

func (f *factory) createShader(label string, kind resource.Kind, p resource.ShaderParams) (resource.Resource, error) {
	if kind == resource.KindVertexShader {
		s, err := f.loadShader(label, shader.ShaderTypeVertex, p)
		if err != nil {
			return nil, err
		}
		return f.device.CreateVertexShader(label, s)
	}
	s, err := f.loadShader(label, shader.ShaderTypeFragment, p)
	if err != nil {
		return nil, err
	}
	return f.device.CreatePixelShader(label, s)
}

func (f *factory) createEffect(label string, desc resource.Descriptor, p resource.ShaderParams, table *resource.Table) (resource.Resource, error) {
	if p.Source != resource.SourceLinked {
		s, err := f.loadShader(label, shader.ShaderTypeProgram, p)
		if err != nil {
			return nil, err
		}
		return f.device.CreateProgram(label, s)
	}

	vs, err := dependency(table, desc, resource.RefVertexShader, true)
	if err != nil {
		return nil, err
	}
	ps, err := dependency(table, desc, resource.RefPixelShader, true)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("linking effect", zap.String("name", label))
	return f.device.CreateEffect(label, vs, ps)
}

func (f *factory) createVertexFormat(label string, desc resource.Descriptor, p resource.VertexFormatParams, table *resource.Table) (resource.Resource, error) {
	layouts := p.Layouts
	if len(layouts) == 0 {
		res, err := dependency(table, desc, resource.RefEffect, true)
		if err != nil {
			return nil, err
		}
		effect, ok := res.(device.Effect)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a reflected effect", resource.ErrKindMismatch, label)
		}
		layouts = effect.Reflection().VertexLayouts
	}
	if len(layouts) == 0 {
		return nil, fmt.Errorf("vertex format %s: %w: no layouts", label, ErrMissingSource)
	}
	return f.device.CreateVertexFormat(label, layouts)
}

func (f *factory) createPipelineState(label string, desc resource.Descriptor, p resource.PipelineParams, table *resource.Table) (resource.Resource, error) {
	var parts device.PipelineParts
	var err error
	if parts.Effect, err = dependency(table, desc, resource.RefEffect, true); err != nil {
		return nil, err
	}

	optional := []struct {
		slot int
		dst  *resource.Resource
	}{
		{resource.RefVertexFormat, &parts.VertexFormat},
		{resource.RefBlend, &parts.Blend},
		{resource.RefDepth, &parts.Depth},
		{resource.RefRaster, &parts.Raster},
		{resource.RefPrimitive, &parts.Primitive},
		{resource.RefTarget, &parts.Target},
		{resource.RefDepthBuffer, &parts.DepthBuffer},
	}
	for _, o := range optional {
		if *o.dst, err = dependency(table, desc, o.slot, false); err != nil {
			return nil, err
		}
	}
	p.SampleCount = max(p.SampleCount, 1)
	return f.device.CreatePipelineState(label, p, parts)
}
