// Package pass executes draw passes against a device context. A Pass owns a static and a
// dynamic slot table and turns the resolved slots into one draw; a Stage runs its passes
// in declaration order and a StageTable runs its stages in insertion order.
package pass

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/slot"
	"go.uber.org/multierr"
)

var (
	// ErrNoEffect is returned by Flush when the Effect slot has no built resource.
	ErrNoEffect = errors.New("pass: no effect bound")

	// ErrDuplicatePass is returned when a stage already has a pass of that name.
	ErrDuplicatePass = errors.New("pass: duplicate pass name")

	// ErrDuplicateStage is returned when a stage table already has a stage of that name.
	ErrDuplicateStage = errors.New("pass: duplicate stage name")

	// ErrUnknownStage is returned when a stage name is not in the stage table.
	ErrUnknownStage = errors.New("pass: unknown stage")
)

// pass is the implementation of the Pass interface.
type pass struct {
	name    string
	static  slot.SlotTable
	dynamic slot.SlotTable
	draw    resource.PrimitiveParams

	effect *resource.Entry
}

// Pass is one draw: a set of slot bindings and the Flush procedure that pushes them to
// the device and issues the draw.
type Pass interface {
	// Name returns the pass name, unique within its stage.
	Name() string

	// Static returns the fixed slots every pass owns.
	Static() slot.SlotTable

	// Dynamic returns the shader-specific slots added to this pass.
	Dynamic() slot.SlotTable

	// AddResourceSlot adds a dynamic slot whose resource is set on the effect parameter key.
	AddResourceSlot(slotName string, kind resource.Kind, key string) error

	// BindResource binds a static or dynamic slot to a table entry name.
	BindResource(slotName, resourceName string) error

	// UnbindResource clears a static or dynamic slot.
	UnbindResource(slotName string) error

	// FetchResources resolves the bound names of both slot tables.
	FetchResources(table *resource.Table) error

	// Flush pushes the pass to ctx and draws. Blend, depth and raster state are saved
	// before the pass changes them and restored on every return path.
	//
	// Parameters:
	//   - ctx: the device context to record into
	//
	// Returns:
	//   - error: ErrNoEffect, or the first device failure combined with restore failures
	Flush(ctx device.Context) error
}

var _ Pass = &pass{}

// NewPass creates a pass with an empty static and dynamic slot table.
//
// Parameters:
//   - name: the pass name
//   - names: the arena bound resource names are interned in, shared with the resource table
//   - opts: builder options adding slots and bindings
//
// Returns:
//   - Pass: the configured pass
func NewPass(name string, names *resource.Names, opts ...PassBuilderOption) Pass {
	p := &pass{
		name:    name,
		static:  slot.NewStaticSlotTable(names),
		dynamic: slot.NewDynamicSlotTable(names),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pass) Name() string {
	return p.name
}

func (p *pass) Static() slot.SlotTable {
	return p.static
}

func (p *pass) Dynamic() slot.SlotTable {
	return p.dynamic
}

func (p *pass) AddResourceSlot(slotName string, kind resource.Kind, key string) error {
	if _, ok := p.static.Slot(slotName); ok {
		return fmt.Errorf("%w: %q is a static slot", slot.ErrSlotExists, slotName)
	}
	return p.dynamic.AddResourceSlot(slotName, kind, key)
}

func (p *pass) BindResource(slotName, resourceName string) error {
	if _, ok := p.static.Slot(slotName); ok {
		return p.static.BindResource(slotName, resourceName)
	}
	return p.dynamic.BindResource(slotName, resourceName)
}

func (p *pass) UnbindResource(slotName string) error {
	if _, ok := p.static.Slot(slotName); ok {
		return p.static.UnbindResource(slotName)
	}
	return p.dynamic.UnbindResource(slotName)
}

func (p *pass) FetchResources(table *resource.Table) error {
	err := multierr.Append(p.static.FetchResources(table), p.dynamic.FetchResources(table))
	p.effect = p.static.Entry(slot.Effect)
	return err
}

func (p *pass) Flush(ctx device.Context) (err error) {
	var effect resource.Resource
	if p.effect != nil {
		effect = p.effect.Resource()
	}
	if effect == nil {
		return fmt.Errorf("pass %q: %w", p.name, ErrNoEffect)
	}

	if err := ctx.SetEffect(effect); err != nil {
		return p.wrap("set effect", err)
	}
	if err := p.setInputs(ctx); err != nil {
		return err
	}
	if err := p.setTargets(ctx); err != nil {
		return err
	}

	restore := device.PushState(ctx)
	defer func() {
		if rerr := restore(); rerr != nil {
			err = multierr.Append(err, p.wrap("restore state", rerr))
		}
	}()

	if err := p.setState(ctx); err != nil {
		return err
	}
	if err := p.setParameters(ctx, effect); err != nil {
		return err
	}
	if pso := p.static.Resource(slot.PipelineState); pso != nil {
		if err := ctx.SetPipelineState(pso); err != nil {
			return p.wrap("set pipeline state", err)
		}
	}

	if err := ctx.BeginEffect(effect); err != nil {
		return p.wrap("begin effect", err)
	}
	drawErr := ctx.DrawPrimitive(p.primitive())
	if drawErr != nil {
		drawErr = p.wrap("draw", drawErr)
	}
	if endErr := ctx.EndEffect(effect); endErr != nil {
		drawErr = multierr.Append(drawErr, p.wrap("end effect", endErr))
	}
	return drawErr
}

func (p *pass) wrap(step string, err error) error {
	return fmt.Errorf("pass %q: %s: %w", p.name, step, err)
}

func (p *pass) setInputs(ctx device.Context) error {
	if vf := p.static.Resource(slot.VertexFormat); vf != nil {
		if err := ctx.SetVertexFormat(vf); err != nil {
			return p.wrap("set vertex format", err)
		}
	}
	for i := range slot.MaxVertexBuffers {
		if vb := p.static.Resource(slot.VertexBuffer(i)); vb != nil {
			if err := ctx.SetVertexBuffer(i, vb); err != nil {
				return p.wrap("set vertex buffer", err)
			}
		}
	}
	if ib := p.static.Resource(slot.IndexBuffer); ib != nil {
		if err := ctx.SetIndexBuffer(ib); err != nil {
			return p.wrap("set index buffer", err)
		}
	}
	return nil
}

func (p *pass) setTargets(ctx device.Context) error {
	colors := make([]resource.Resource, slot.MaxTargets)
	bound := false
	for i := range slot.MaxTargets {
		colors[i] = p.static.Resource(slot.Target(i))
		bound = bound || colors[i] != nil
	}
	depth := p.static.Resource(slot.DepthBuffer)
	if !bound && depth == nil {
		return nil
	}
	if err := ctx.SetTargets(colors, depth); err != nil {
		return p.wrap("set targets", err)
	}
	return nil
}

func (p *pass) setState(ctx device.Context) error {
	if vp, ok := p.static.Resource(slot.ViewportState).(*device.Viewport); ok && vp != nil {
		ctx.SetViewport(vp.Params)
	}
	if s := p.static.Resource(slot.BlendState); s != nil {
		if err := ctx.SetBlendState(s); err != nil {
			return p.wrap("set blend state", err)
		}
	}
	if s := p.static.Resource(slot.DepthState); s != nil {
		if err := ctx.SetDepthState(s); err != nil {
			return p.wrap("set depth state", err)
		}
	}
	if s := p.static.Resource(slot.RasterState); s != nil {
		if err := ctx.SetRasterState(s); err != nil {
			return p.wrap("set raster state", err)
		}
	}
	return nil
}

// setParameters binds the dynamic slots, then the read-write buffer slots, to the effect.
// Unbound and unbuilt slots are skipped.
func (p *pass) setParameters(ctx device.Context, effect resource.Resource) error {
	params := p.dynamic.Slots()
	for i := range slot.MaxRWBuffers {
		if s, ok := p.static.Slot(slot.RWBuffer(i)); ok {
			params = append(params, s)
		}
	}
	for _, s := range params {
		r := s.Resource()
		if r == nil {
			continue
		}
		key := s.Key
		if key == "" {
			key = s.Name
		}
		if err := ctx.SetParameter(effect, key, r); err != nil {
			return p.wrap("set parameter "+key, err)
		}
	}
	return nil
}

// primitive returns the draw parameters of the Primitive slot, falling back to the
// parameters the pass was built with.
func (p *pass) primitive() resource.PrimitiveParams {
	if prim, ok := p.static.Resource(slot.Primitive).(*device.Primitive); ok && prim != nil {
		return prim.Params
	}
	return p.draw
}

// Stats summarizes one FlushStages call.
type Stats struct {
	Stages   int
	Skipped  int
	Passes   int
	Failed   int
	Duration time.Duration
}

// Add returns the sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Stages:   s.Stages + o.Stages,
		Skipped:  s.Skipped + o.Skipped,
		Passes:   s.Passes + o.Passes,
		Failed:   s.Failed + o.Failed,
		Duration: s.Duration + o.Duration,
	}
}
