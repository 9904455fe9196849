package backend

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/slot"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

var (
	// ErrNoTarget is returned by BeginEffect and DrawPrimitive when neither a color target
	// nor a depth buffer is bound.
	ErrNoTarget = errors.New("backend: no render target bound")

	// ErrUnboundParameter is returned by DrawPrimitive when an effect binding has no resource.
	ErrUnboundParameter = errors.New("backend: effect parameter not bound")
)

// pipelineKey identifies a render pipeline built from the current context state.
type pipelineKey struct {
	effect       *wgpuEffect
	vertexFormat *wgpuVertexFormat

	blend     resource.BlendParams
	depth     resource.DepthParams
	cull      gputypes.CullMode
	frontFace gputypes.FrontFace
	topology  gputypes.PrimitiveTopology

	colorFormats [slot.MaxTargets]wgpu.TextureFormat
	colorCount   int
	depthFormat  wgpu.TextureFormat
	hasDepth     bool
	samples      uint32
}

// attachmentKey identifies the attachments of the open render pass.
type attachmentKey struct {
	colors [slot.MaxTargets]*wgpu.TextureView
	depth  *wgpu.TextureView
}

type bindingKey struct {
	group, binding uint32
}

// contextState is the draw state recorded between SetX calls and consumed by DrawPrimitive.
type contextState struct {
	effect        *wgpuEffect
	vertexFormat  *wgpuVertexFormat
	vertexBuffers [slot.MaxVertexBuffers]*wgpuBuffer
	indexBuffer   *wgpuBuffer
	colors        []*wgpuTarget
	depthBuffer   *wgpuDepthBuffer
	pipeline      *wgpuPipelineState
	viewport      resource.ViewportParams

	blend  resource.BlendParams
	depth  resource.DepthParams
	raster resource.RasterParams

	blendStack  []resource.BlendParams
	depthStack  []resource.DepthParams
	rasterStack []resource.RasterParams

	params map[bindingKey]resource.Resource
}

var (
	defaultBlend = resource.BlendParams{Enabled: true}
	defaultDepth = resource.DepthParams{
		TestEnabled:  true,
		WriteEnabled: true,
		Compare:      gputypes.CompareFunctionLess,
	}
)

func newContextState() contextState {
	return contextState{
		blend:  defaultBlend,
		depth:  defaultDepth,
		params: make(map[bindingKey]resource.Resource),
	}
}

func (b *wgpuBackend) SetEffect(effect resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if effect == nil {
		b.state.effect = nil
		clear(b.state.params)
		return nil
	}
	e, ok := effect.(*wgpuEffect)
	if !ok {
		return fmt.Errorf("%w: effect", device.ErrWrongResource)
	}
	if e != b.state.effect {
		clear(b.state.params)
	}
	b.state.effect = e
	return nil
}

func (b *wgpuBackend) SetVertexFormat(format resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if format == nil {
		b.state.vertexFormat = nil
		return nil
	}
	vf, ok := format.(*wgpuVertexFormat)
	if !ok {
		return fmt.Errorf("%w: vertex format", device.ErrWrongResource)
	}
	b.state.vertexFormat = vf
	return nil
}

func (b *wgpuBackend) SetVertexBuffer(index int, buffer resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= slot.MaxVertexBuffers {
		return fmt.Errorf("vertex buffer slot %d out of range", index)
	}
	if buffer == nil {
		b.state.vertexBuffers[index] = nil
		return nil
	}
	buf, ok := buffer.(*wgpuBuffer)
	if !ok || buf.kind != resource.KindVertexBuffer {
		return fmt.Errorf("%w: vertex buffer", device.ErrWrongResource)
	}
	b.state.vertexBuffers[index] = buf
	return nil
}

func (b *wgpuBackend) SetIndexBuffer(buffer resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if buffer == nil {
		b.state.indexBuffer = nil
		return nil
	}
	buf, ok := buffer.(*wgpuBuffer)
	if !ok || buf.kind != resource.KindIndexBuffer {
		return fmt.Errorf("%w: index buffer", device.ErrWrongResource)
	}
	b.state.indexBuffer = buf
	return nil
}

func (b *wgpuBackend) SetTargets(colors []resource.Resource, depth resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	targets := make([]*wgpuTarget, 0, len(colors))
	for _, c := range colors {
		if c == nil {
			continue
		}
		t, ok := c.(*wgpuTarget)
		if !ok {
			return fmt.Errorf("%w: color target", device.ErrWrongResource)
		}
		if len(targets) == slot.MaxTargets {
			return fmt.Errorf("more than %d color targets", slot.MaxTargets)
		}
		targets = append(targets, t)
	}

	var db *wgpuDepthBuffer
	if depth != nil {
		var ok bool
		if db, ok = depth.(*wgpuDepthBuffer); !ok {
			return fmt.Errorf("%w: depth buffer", device.ErrWrongResource)
		}
	}

	b.state.colors = targets
	b.state.depthBuffer = db
	return nil
}

func (b *wgpuBackend) PushBlendState() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.blendStack = append(b.state.blendStack, b.state.blend)
}

func (b *wgpuBackend) PopBlendState() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return pop(&b.state.blendStack, &b.state.blend, "blend")
}

func (b *wgpuBackend) PushDepthState() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.depthStack = append(b.state.depthStack, b.state.depth)
}

func (b *wgpuBackend) PopDepthState() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return pop(&b.state.depthStack, &b.state.depth, "depth")
}

func (b *wgpuBackend) PushRasterState() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.rasterStack = append(b.state.rasterStack, b.state.raster)
}

func (b *wgpuBackend) PopRasterState() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return pop(&b.state.rasterStack, &b.state.raster, "raster")
}

func pop[T any](stack *[]T, current *T, what string) error {
	n := len(*stack)
	if n == 0 {
		return fmt.Errorf("%w: %s", device.ErrStateUnderflow, what)
	}
	*current = (*stack)[n-1]
	*stack = (*stack)[:n-1]
	return nil
}

func (b *wgpuBackend) SetViewport(params resource.ViewportParams) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.viewport = params
}

func (b *wgpuBackend) SetBlendState(state resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if state == nil {
		b.state.blend = defaultBlend
		return nil
	}
	s, ok := state.(*wgpuBlendState)
	if !ok {
		return fmt.Errorf("%w: blend state", device.ErrWrongResource)
	}
	b.state.blend = s.params
	return nil
}

func (b *wgpuBackend) SetDepthState(state resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if state == nil {
		b.state.depth = defaultDepth
		return nil
	}
	s, ok := state.(*wgpuDepthState)
	if !ok {
		return fmt.Errorf("%w: depth state", device.ErrWrongResource)
	}
	b.state.depth = s.params
	return nil
}

func (b *wgpuBackend) SetRasterState(state resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if state == nil {
		b.state.raster = resource.RasterParams{}
		return nil
	}
	s, ok := state.(*wgpuRasterState)
	if !ok {
		return fmt.Errorf("%w: raster state", device.ErrWrongResource)
	}
	b.state.raster = s.params
	return nil
}

func (b *wgpuBackend) SetParameter(effect resource.Resource, key string, r resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := effect.(*wgpuEffect)
	if !ok {
		return fmt.Errorf("%w: effect", device.ErrWrongResource)
	}
	binding, ok := e.reflection.Binding(key)
	if !ok {
		return fmt.Errorf("%w: %q", device.ErrUnknownParameter, key)
	}

	bk := bindingKey{group: binding.Group, binding: binding.Binding}
	if r == nil {
		delete(b.state.params, bk)
		return nil
	}

	valid := false
	switch {
	case binding.Class.IsBuffer():
		_, valid = r.(*wgpuBuffer)
	case binding.Class.IsTexture():
		switch r.(type) {
		case *wgpuTexture, *wgpuDepthBuffer:
			valid = true
		}
	case binding.Class.IsSampler():
		_, valid = r.(*wgpuSampler)
	}
	if !valid {
		return fmt.Errorf("%w: %s for parameter %q", device.ErrWrongResource, r.Kind(), key)
	}

	b.state.params[bk] = r
	return nil
}

func (b *wgpuBackend) SetPipelineState(state resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if state == nil {
		b.state.pipeline = nil
		return nil
	}
	p, ok := state.(*wgpuPipelineState)
	if !ok {
		return fmt.Errorf("%w: pipeline state", device.ErrWrongResource)
	}
	b.state.pipeline = p
	return nil
}

func (b *wgpuBackend) BeginEffect(effect resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := effect.(*wgpuEffect); !ok {
		return fmt.Errorf("%w: effect", device.ErrWrongResource)
	}
	return b.beginPass()
}

func (b *wgpuBackend) EndEffect(effect resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := effect.(*wgpuEffect); !ok {
		return fmt.Errorf("%w: effect", device.ErrWrongResource)
	}
	b.state.pipeline = nil
	return nil
}

// beginPass makes sure a render pass over the current attachments is open. Passes are
// kept open across effects while the attachments do not change.
func (b *wgpuBackend) beginPass() error {
	var key attachmentKey
	for i, t := range b.state.colors {
		key.colors[i] = t.view
	}
	if b.state.depthBuffer != nil {
		key.depth = b.state.depthBuffer.view
	}
	if b.pass != nil && key == b.passKey {
		return nil
	}
	b.endPass()

	if len(b.state.colors) == 0 && b.state.depthBuffer == nil {
		return ErrNoTarget
	}
	if b.encoder == nil {
		encoder, err := b.device.CreateCommandEncoder(nil)
		if err != nil {
			return fmt.Errorf("failed to create command encoder: %w", err)
		}
		b.encoder = encoder
	}

	desc := &wgpu.RenderPassDescriptor{}
	for _, t := range b.state.colors {
		attachment := wgpu.RenderPassColorAttachment{
			View:    t.view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if t.msaa != nil {
			attachment.View = t.msaa
			attachment.ResolveTarget = t.view
		}
		if t.params.Clear && !b.cleared[t.view] {
			attachment.LoadOp = wgpu.LoadOpClear
			attachment.ClearValue = wgpu.Color{
				R: t.params.ClearColor[0],
				G: t.params.ClearColor[1],
				B: t.params.ClearColor[2],
				A: t.params.ClearColor[3],
			}
			b.cleared[t.view] = true
		}
		desc.ColorAttachments = append(desc.ColorAttachments, attachment)
	}

	if db := b.state.depthBuffer; db != nil {
		attachment := &wgpu.RenderPassDepthStencilAttachment{
			View:            db.view,
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: common.Coalesce(db.params.ClearDepth, 1.0),
		}
		if !b.cleared[db.view] {
			attachment.DepthLoadOp = wgpu.LoadOpClear
			b.cleared[db.view] = true
		}
		if db.hasStencil() {
			attachment.StencilLoadOp = attachment.DepthLoadOp
			attachment.StencilStoreOp = wgpu.StoreOpStore
		}
		desc.DepthStencilAttachment = attachment
	}

	b.pass = b.encoder.BeginRenderPass(desc)
	b.passKey = key
	return nil
}

func (b *wgpuBackend) endPass() {
	if b.pass == nil {
		return
	}
	b.pass.End()
	b.pass = nil
}

func (b *wgpuBackend) DrawPrimitive(params resource.PrimitiveParams) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.state.effect
	if e == nil {
		return fmt.Errorf("%w: no effect set", device.ErrWrongResource)
	}
	if err := b.beginPass(); err != nil {
		return err
	}

	pipeline, err := b.resolvePipeline(params.Topology)
	if err != nil {
		return err
	}
	b.pass.SetPipeline(pipeline)

	if err := b.bindGroups(e); err != nil {
		return err
	}

	for i, vb := range b.state.vertexBuffers {
		if vb != nil {
			b.pass.SetVertexBuffer(uint32(i), vb.buffer, 0, wgpu.WholeSize)
		}
	}

	if vp := b.state.viewport; vp.Width > 0 && vp.Height > 0 {
		b.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, common.Coalesce(vp.MaxDepth, 1.0))
		if b.state.raster.Scissor {
			b.pass.SetScissorRect(uint32(vp.X), uint32(vp.Y), uint32(vp.Width), uint32(vp.Height))
		}
	}

	instances := max(params.InstanceCount, 1)
	if ib := b.state.indexBuffer; ib != nil {
		b.pass.SetIndexBuffer(ib.buffer, indexFormat(ib.params.IndexFormat), 0, wgpu.WholeSize)
		b.pass.DrawIndexed(params.IndexCount, instances, params.FirstIndex, params.BaseVertex, 0)
		return nil
	}
	b.pass.Draw(params.VertexCount, instances, params.FirstVertex, 0)
	return nil
}

// resolvePipeline returns the explicit pipeline state when it matches the current effect,
// otherwise the cached pipeline for the current state, building it on first use.
func (b *wgpuBackend) resolvePipeline(topology gputypes.PrimitiveTopology) (*wgpu.RenderPipeline, error) {
	if p := b.state.pipeline; p != nil && p.effect == b.state.effect {
		return p.pipeline, nil
	}

	key := pipelineKey{
		effect:       b.state.effect,
		vertexFormat: b.state.vertexFormat,
		blend:        b.state.blend,
		cull:         b.state.raster.CullMode,
		frontFace:    b.state.raster.FrontFace,
		topology:     topology,
		samples:      1,
	}
	for i, t := range b.state.colors {
		key.colorFormats[i] = t.format
		key.samples = max(key.samples, t.samples)
	}
	key.colorCount = len(b.state.colors)
	if db := b.state.depthBuffer; db != nil {
		key.depth = b.state.depth
		key.depthFormat = db.format
		key.hasDepth = true
		key.samples = max(key.samples, db.params.SampleCount)
	}

	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}
	p, err := b.createPipeline(key.effect.label, key)
	if err != nil {
		return nil, err
	}
	b.pipelines[key] = p
	return p, nil
}

// bindGroups creates a bind group per layout of e from the bound parameters. Unbound
// samplers fall back to the default sampler.
func (b *wgpuBackend) bindGroups(e *wgpuEffect) error {
	entries := make([][]wgpu.BindGroupEntry, len(e.groupLayouts))
	for _, binding := range e.reflection.Bindings {
		entry, err := b.bindGroupEntry(binding)
		if err != nil {
			return err
		}
		entries[binding.Group] = append(entries[binding.Group], entry)
	}

	for g, layout := range e.groupLayouts {
		group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s group %d", e.label, g),
			Layout:  layout,
			Entries: entries[g],
		})
		if err != nil {
			return fmt.Errorf("failed to create bind group %d of %s: %w", g, e.label, err)
		}
		b.frameGroups = append(b.frameGroups, group)
		b.pass.SetBindGroup(uint32(g), group, nil)
	}
	return nil
}

func (b *wgpuBackend) bindGroupEntry(binding shader.Binding) (wgpu.BindGroupEntry, error) {
	entry := wgpu.BindGroupEntry{Binding: binding.Binding}
	r, ok := b.state.params[bindingKey{group: binding.Group, binding: binding.Binding}]
	if !ok {
		if binding.Class == shader.BindingSampler {
			entry.Sampler = b.defaultSampler
			return entry, nil
		}
		return entry, fmt.Errorf("%w: %q", ErrUnboundParameter, binding.Key)
	}

	switch res := r.(type) {
	case *wgpuBuffer:
		entry.Buffer = res.buffer
		entry.Size = wgpu.WholeSize
	case *wgpuTexture:
		entry.TextureView = res.view
	case *wgpuDepthBuffer:
		entry.TextureView = res.view
	case *wgpuSampler:
		entry.Sampler = res.sampler
	}
	return entry, nil
}

func (b *wgpuBackend) Map(buffer resource.Resource) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := buffer.(*wgpuBuffer)
	if !ok || buf.buffer == nil {
		return nil, device.ErrNotMappable
	}
	return buf.shadow, nil
}

func (b *wgpuBackend) Unmap(buffer resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := buffer.(*wgpuBuffer)
	if !ok || buf.buffer == nil {
		return device.ErrNotMappable
	}
	b.queue.WriteBuffer(buf.buffer, 0, buf.shadow)
	return nil
}
