package backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// ErrFrameInProgress is returned by BeginFrame when the previous surface image was not presented.
var ErrFrameInProgress = errors.New("backend: previous frame surface not yet presented")

type wgpuBackend struct {
	mu     *sync.Mutex
	logger *zap.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	width, height uint32
	presentMode   wgpu.PresentMode
	sampleCount   MSAASampleCount
	clearColor    [4]float64

	forceFallbackAdapter bool

	msaaTexture    *wgpu.Texture
	msaaView       *wgpu.TextureView
	defaultSampler *wgpu.Sampler

	// Frame state, valid between BeginFrame and Present.
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	encoder      *wgpu.CommandEncoder
	pass         *wgpu.RenderPassEncoder
	passKey      attachmentKey
	cleared      map[*wgpu.TextureView]bool
	frameGroups  []*wgpu.BindGroup

	state     contextState
	pipelines map[pipelineKey]*wgpu.RenderPipeline
}

var _ Backend = &wgpuBackend{}

func newWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...BackendBuilderOption) (Backend, error) {
	runtime.LockOSThread()
	b := &wgpuBackend{
		mu:          &sync.Mutex{},
		logger:      common.Logger(),
		presentMode: wgpu.PresentModeFifo,
		sampleCount: MSAAOff,
		clearColor:  [4]float64{0.1, 0.1, 0.1, 1.0},
		cleared:     make(map[*wgpu.TextureView]bool),
		state:       newContextState(),
		pipelines:   make(map[pipelineKey]*wgpu.RenderPipeline),
	}
	for _, opt := range options {
		opt(b)
	}

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-graph device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	b.defaultSampler, err = d.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "default sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create default sampler: %w", err)
	}

	b.logger.Info("wgpu backend ready",
		zap.Uint32("samples", uint32(b.sampleCount)),
		zap.Bool("fallback_adapter", b.forceFallbackAdapter))
	return b, nil
}

func (b *wgpuBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]
	b.width, b.height = uint32(width), uint32(height)

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       b.width,
		Height:      b.height,
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseMSAA()
	if b.sampleCount > 1 {
		// the screen is drawn into this texture and resolved into the surface image
		tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "screen msaa",
			Size: wgpu.Extent3D{
				Width:              b.width,
				Height:             b.height,
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   uint32(b.sampleCount),
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("failed to create msaa texture: %w", err)
		}
		view, err := tex.CreateView(nil)
		if err != nil {
			tex.Release()
			return fmt.Errorf("failed to create msaa view: %w", err)
		}
		b.msaaTexture, b.msaaView = tex, view
	}

	b.logger.Debug("surface configured", zap.Int("width", width), zap.Int("height", height))
	return nil
}

func (b *wgpuBackend) releaseMSAA() {
	if b.msaaView != nil {
		b.msaaView.Release()
		b.msaaView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
}

func (b *wgpuBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setPresentMode(mode)
}

func (b *wgpuBackend) setPresentMode(mode PresentMode) {
	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuBackend) SampleCount() uint32 {
	return uint32(b.sampleCount)
}

func (b *wgpuBackend) BeginFrame() (resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return nil, ErrFrameInProgress
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}
	if b.encoder == nil {
		encoder, err := b.device.CreateCommandEncoder(nil)
		if err != nil {
			view.Release()
			surfaceTexture.Release()
			return nil, err
		}
		b.encoder = encoder
	}

	b.frameSurface = surfaceTexture
	b.frameView = view
	clear(b.cleared)

	return &wgpuTarget{
		label:   "screen",
		params:  resource.TargetParams{Clear: true, ClearColor: b.clearColor},
		view:    view,
		msaa:    b.msaaView,
		format:  b.surfaceFormat,
		samples: uint32(b.sampleCount),
	}, nil
}

func (b *wgpuBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.endPass()
	defer b.releaseFrameGroups()

	if b.encoder == nil {
		return nil
	}
	encoder := b.encoder
	b.encoder = nil
	defer encoder.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish frame: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuBackend) releaseFrameGroups() {
	for _, g := range b.frameGroups {
		g.Release()
	}
	b.frameGroups = b.frameGroups[:0]
}

func (b *wgpuBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

// forgetEffect drops every cached pipeline built for e and clears e from the bound state.
func (b *wgpuBackend) forgetEffect(e *wgpuEffect) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, p := range b.pipelines {
		if key.effect != e {
			continue
		}
		if p != nil {
			p.Release()
		}
		delete(b.pipelines, key)
	}
	if b.state.effect == e {
		b.state.effect = nil
	}
	if p := b.state.pipeline; p != nil && p.effect == e {
		b.state.pipeline = nil
	}
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, key)
	}
	b.releaseMSAA()
	if b.defaultSampler != nil {
		b.defaultSampler.Release()
		b.defaultSampler = nil
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
	b.logger.Info("wgpu backend released")
}
