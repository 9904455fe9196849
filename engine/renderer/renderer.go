// Package renderer ties the resource graph to a device. A Renderer is the context object
// one render setup owns: the name arena, the resource table and its factory, the shader
// cache and the ordered stages, plus the device they are realized on.
package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/factory"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultScreen is the name of the external target the frame source's image is injected into.
const DefaultScreen = "Screen"

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	names   *resource.Names
	table   *resource.Table
	factory factory.Factory
	cache   shader.Cache
	stages  *pass.StageTable

	device  device.Device
	context device.Context
	frames  device.FrameSource
	screen  string

	logger     *zap.Logger
	frameCount uint64
	released   bool
}

// Renderer is the explicit context a render setup is built against. Nothing it owns is
// global: two renderers never share names, entries or stages.
//
// Frame, SetDesc, SetExternal and Release are serialized against each other. The table,
// stages and passes returned by the accessors are not safe for concurrent use and should
// only be modified from the goroutine that calls Frame.
type Renderer interface {
	// Names returns the interning arena shared by the table and every pass.
	Names() *resource.Names

	// Table returns the resource table.
	Table() *resource.Table

	// Factory returns the factory the table builds entries with.
	Factory() factory.Factory

	// Cache returns the shader cache the factory loads shaders through.
	Cache() shader.Cache

	// Stages returns the ordered stage table Frame flushes.
	Stages() *pass.StageTable

	// AddResource registers a descriptor under name. Registering a name twice keeps the
	// first descriptor.
	//
	// Parameters:
	//   - name: the resource name
	//   - desc: the descriptor
	//
	// Returns:
	//   - *resource.Entry: the new entry
	//   - error: ErrDuplicateName when the name was already registered
	AddResource(name string, desc resource.Descriptor) (*resource.Entry, error)

	// SetDesc replaces the descriptor of a registered entry. The entry is rebuilt on the
	// next Frame.
	//
	// Parameters:
	//   - name: the resource name
	//   - desc: the new descriptor, of the same kind
	//
	// Returns:
	//   - error: ErrUnknownResource or ErrKindMismatch
	SetDesc(name string, desc resource.Descriptor) error

	// SetExternal injects the resource of an external entry.
	//
	// Parameters:
	//   - name: the resource name
	//   - r: the host-owned resource
	//
	// Returns:
	//   - error: ErrUnknownResource, ErrNotExternal or ErrKindMismatch
	SetExternal(name string, r resource.Resource) error

	// NewPass creates a pass whose slots intern names in this renderer's arena.
	NewPass(name string, opts ...pass.PassBuilderOption) pass.Pass

	// AddStage creates a stage holding passes and appends it to the stage table.
	//
	// Parameters:
	//   - name: the stage name
	//   - passes: the passes, in draw order
	//
	// Returns:
	//   - pass.Stage: the new stage
	//   - error: ErrDuplicateStage or ErrDuplicatePass
	AddStage(name string, passes ...pass.Pass) (pass.Stage, error)

	// Frame renders one frame. With a frame source the next surface image is injected into
	// the screen target first and the frame is submitted and presented afterwards. Every
	// resource is built before the stages are flushed; build and flush failures are
	// reported but do not stop the frame.
	//
	// Returns:
	//   - pass.Stats: the statistics of the flushed stages
	//   - error: every build, flush and submit failure, combined
	Frame() (pass.Stats, error)

	// FrameCount returns the number of frames rendered.
	FrameCount() uint64

	// Release releases every factory-built resource. The renderer must not be used afterwards.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer realizing its resources on dev and drawing through ctx.
// When dev also implements device.FrameSource it is used as the frame source unless
// WithFrameSource overrides it.
//
// Parameters:
//   - dev: the device resources are created on
//   - ctx: the context passes are flushed into
//   - options: functional options
//
// Returns:
//   - Renderer: the new renderer
func NewRenderer(dev device.Device, ctx device.Context, options ...RendererBuilderOption) Renderer {
	if dev == nil || ctx == nil {
		panic("renderer: NewRenderer requires a device and a context")
	}
	r := &renderer{
		mu:      &sync.Mutex{},
		names:   resource.NewNames(),
		stages:  pass.NewStageTable(),
		device:  dev,
		context: ctx,
		screen:  DefaultScreen,
		logger:  common.Logger(),
	}
	if fs, ok := dev.(device.FrameSource); ok {
		r.frames = fs
	}

	for _, opt := range options {
		opt(r)
	}

	if r.cache == nil {
		r.cache = shader.NewCache(shader.WithLogger(r.logger))
	}
	r.factory = factory.NewFactory(dev, factory.WithShaderCache(r.cache), factory.WithLogger(r.logger))
	r.table = resource.NewTable(r.names, r.factory, resource.WithLogger(r.logger))

	return r
}

func (r *renderer) Names() *resource.Names {
	return r.names
}

func (r *renderer) Table() *resource.Table {
	return r.table
}

func (r *renderer) Factory() factory.Factory {
	return r.factory
}

func (r *renderer) Cache() shader.Cache {
	return r.cache
}

func (r *renderer) Stages() *pass.StageTable {
	return r.stages
}

func (r *renderer) AddResource(name string, desc resource.Descriptor) (*resource.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.AddEntry(name, desc)
}

func (r *renderer) SetDesc(name string, desc resource.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.table.Entry(name)
	if e == nil {
		return fmt.Errorf("%w: %q", resource.ErrUnknownResource, name)
	}
	return e.SetDesc(desc)
}

func (r *renderer) SetExternal(name string, res resource.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setExternal(name, res)
}

func (r *renderer) setExternal(name string, res resource.Resource) error {
	e := r.table.Entry(name)
	if e == nil {
		return fmt.Errorf("%w: %q", resource.ErrUnknownResource, name)
	}
	return e.SetExternalResource(res)
}

func (r *renderer) NewPass(name string, opts ...pass.PassBuilderOption) pass.Pass {
	return pass.NewPass(name, r.names, opts...)
}

func (r *renderer) AddStage(name string, passes ...pass.Pass) (pass.Stage, error) {
	s := pass.NewStage(name, pass.WithStageLogger(r.logger))
	for _, p := range passes {
		if err := s.AddPass(p); err != nil {
			return nil, err
		}
	}
	if err := r.stages.AddStage(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *renderer) Frame() (pass.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	if r.frames != nil {
		screen, err := r.frames.BeginFrame()
		if err != nil {
			return pass.Stats{}, fmt.Errorf("begin frame: %w", err)
		}
		// setups without a screen target draw offscreen only
		if r.table.Entry(r.screen) != nil {
			if err := r.setExternal(r.screen, screen); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}

	if err := r.table.BuildResources(); err != nil {
		r.logger.Warn("resources failed to build", zap.Uint64("frame", r.frameCount), zap.Error(err))
		errs = multierr.Append(errs, err)
	}
	if err := r.stages.FlushStages(r.context, r.table); err != nil {
		r.logger.Warn("stages failed to flush", zap.Uint64("frame", r.frameCount), zap.Error(err))
		errs = multierr.Append(errs, err)
	}

	if r.frames != nil {
		if err := r.frames.EndFrame(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("end frame: %w", err))
		} else {
			r.frames.Present()
		}
	}

	r.frameCount++
	return r.stages.Stats(), errs
}

func (r *renderer) FrameCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameCount
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return
	}
	r.released = true
	r.table.ReleaseAll()
	r.logger.Info("renderer released", zap.Int("resources", r.table.Len()), zap.Uint64("frames", r.frameCount))
}
