package device

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// Call is a single recorded device or context call.
type Call struct {
	Op    string
	Label string
}

func (c Call) String() string {
	if c.Label == "" {
		return c.Op
	}
	return c.Op + "(" + c.Label + ")"
}

// Recorder is an in-memory Device, Context and FrameSource. It records every call in
// order, tracks the fixed-function state stacks and can be told to fail specific calls.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	createFailures map[string]error
	opFailures     map[string]error

	blend, depth, raster   resource.Resource
	blendStack, depthStack []resource.Resource
	rasterStack            []resource.Resource
	viewport               resource.ViewportParams
	frames                 int
	screen                 *Handle
}

var (
	_ Device      = &Recorder{}
	_ Context     = &Recorder{}
	_ FrameSource = &Recorder{}
)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		createFailures: make(map[string]error),
		opFailures:     make(map[string]error),
		screen:         NewHandle(resource.KindTarget, "screen"),
	}
}

// FailCreate makes every Create call for label return err. A nil err clears the failure.
func (r *Recorder) FailCreate(label string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.createFailures, label)
		return
	}
	r.createFailures[label] = err
}

// FailOp makes every context call named op return err. A nil err clears the failure.
func (r *Recorder) FailOp(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.opFailures, op)
		return
	}
	r.opFailures[op] = err
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Ops returns the recorded calls formatted as strings, convenient for comparisons.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.String()
	}
	return out
}

// Reset drops the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = r.calls[:0]
}

// StackDepth returns the depth of the blend, depth and raster state stacks.
func (r *Recorder) StackDepth() (blend, depth, raster int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blendStack), len(r.depthStack), len(r.rasterStack)
}

// State returns the currently bound blend, depth and raster states.
func (r *Recorder) State() (blend, depth, raster resource.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blend, r.depth, r.raster
}

// Viewport returns the last viewport set.
func (r *Recorder) Viewport() resource.ViewportParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewport
}

// Frames returns how many frames were begun.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Screen returns the target handed out by BeginFrame.
func (r *Recorder) Screen() *Handle {
	return r.screen
}

func (r *Recorder) record(op string, res resource.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Label: labelOf(res)})
	return r.opFailures[op]
}

func (r *Recorder) create(op, label string, h *Handle) (resource.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Label: label})
	if err, ok := r.createFailures[label]; ok {
		return nil, err
	}
	h.label = label
	return h, nil
}

func labelOf(res resource.Resource) string {
	if res == nil {
		return ""
	}
	if l, ok := res.(interface{ Label() string }); ok {
		return l.Label()
	}
	return res.Kind().String()
}

func (r *Recorder) CreateTexture(label string, params resource.TextureParams, pixels []byte) (resource.Resource, error) {
	return r.create("CreateTexture", label, &Handle{kind: resource.KindTexture, Params: params, Data: slices.Clone(pixels)})
}

func (r *Recorder) CreateBuffer(label string, kind resource.Kind, params resource.BufferParams, data []byte) (resource.Resource, error) {
	if !kind.IsBuffer() {
		return nil, fmt.Errorf("%w: %s is not a buffer kind", ErrWrongResource, kind)
	}
	buf := make([]byte, max(params.Size, uint64(len(data))))
	copy(buf, data)
	return r.create("CreateBuffer", label, &Handle{kind: kind, Params: params, Data: buf})
}

func (r *Recorder) CreateVertexShader(label string, s shader.Shader) (resource.Resource, error) {
	return r.create("CreateVertexShader", label, &Handle{kind: resource.KindVertexShader, Module: s, reflection: s.Reflection()})
}

func (r *Recorder) CreatePixelShader(label string, s shader.Shader) (resource.Resource, error) {
	return r.create("CreatePixelShader", label, &Handle{kind: resource.KindPixelShader, Module: s, reflection: s.Reflection()})
}

func (r *Recorder) CreateEffect(label string, vs, ps resource.Resource) (resource.Resource, error) {
	v, ok := vs.(ShaderModule)
	if !ok || vs.Kind() != resource.KindVertexShader {
		return nil, fmt.Errorf("%w: vertex stage of %s", ErrWrongResource, label)
	}
	p, ok := ps.(ShaderModule)
	if !ok || ps.Kind() != resource.KindPixelShader {
		return nil, fmt.Errorf("%w: pixel stage of %s", ErrWrongResource, label)
	}
	refl := v.Shader().Reflection().Merge(p.Shader().Reflection())
	return r.create("CreateEffect", label, &Handle{kind: resource.KindEffect, Deps: []resource.Resource{vs, ps}, reflection: refl})
}

func (r *Recorder) CreateProgram(label string, s shader.Shader) (resource.Resource, error) {
	return r.create("CreateProgram", label, &Handle{kind: resource.KindEffect, Module: s, reflection: s.Reflection()})
}

func (r *Recorder) CreateBlendState(label string, params resource.BlendParams) (resource.Resource, error) {
	return r.create("CreateBlendState", label, &Handle{kind: resource.KindBlendState, Params: params})
}

func (r *Recorder) CreateDepthState(label string, params resource.DepthParams) (resource.Resource, error) {
	return r.create("CreateDepthState", label, &Handle{kind: resource.KindDepthState, Params: params})
}

func (r *Recorder) CreateRasterState(label string, params resource.RasterParams) (resource.Resource, error) {
	return r.create("CreateRasterState", label, &Handle{kind: resource.KindRasterState, Params: params})
}

func (r *Recorder) CreateSamplerState(label string, params resource.SamplerParams) (resource.Resource, error) {
	return r.create("CreateSamplerState", label, &Handle{kind: resource.KindSamplerState, Params: params})
}

func (r *Recorder) CreateTarget(label string, params resource.TargetParams, texture resource.Resource) (resource.Resource, error) {
	if texture == nil || texture.Kind() != resource.KindTexture {
		return nil, fmt.Errorf("%w: target %s needs a texture", ErrWrongResource, label)
	}
	return r.create("CreateTarget", label, &Handle{kind: resource.KindTarget, Params: params, Deps: []resource.Resource{texture}})
}

func (r *Recorder) CreateDepthBuffer(label string, params resource.DepthBufferParams) (resource.Resource, error) {
	return r.create("CreateDepthBuffer", label, &Handle{kind: resource.KindDepthBuffer, Params: params})
}

func (r *Recorder) CreateVertexFormat(label string, layouts []resource.VertexLayout) (resource.Resource, error) {
	return r.create("CreateVertexFormat", label, &Handle{kind: resource.KindVertexFormat, Layout: slices.Clone(layouts)})
}

func (r *Recorder) CreatePipelineState(label string, params resource.PipelineParams, parts PipelineParts) (resource.Resource, error) {
	if parts.Effect == nil {
		return nil, fmt.Errorf("%w: pipeline %s has no effect", ErrWrongResource, label)
	}
	return r.create("CreatePipelineState", label, &Handle{kind: resource.KindPipelineState, Params: params, Parts: parts})
}

func (r *Recorder) SetEffect(effect resource.Resource) error {
	return r.record("SetEffect", effect)
}

func (r *Recorder) SetVertexFormat(format resource.Resource) error {
	return r.record("SetVertexFormat", format)
}

func (r *Recorder) SetVertexBuffer(slot int, buffer resource.Resource) error {
	return r.record(fmt.Sprintf("SetVertexBuffer%d", slot), buffer)
}

func (r *Recorder) SetIndexBuffer(buffer resource.Resource) error {
	return r.record("SetIndexBuffer", buffer)
}

func (r *Recorder) SetTargets(colors []resource.Resource, depth resource.Resource) error {
	var err error
	for i, c := range colors {
		if c == nil {
			continue
		}
		if e := r.record(fmt.Sprintf("SetTarget%d", i), c); e != nil {
			err = e
		}
	}
	if depth != nil {
		if e := r.record("SetDepthBuffer", depth); e != nil {
			err = e
		}
	}
	return err
}

func (r *Recorder) PushBlendState() {
	r.mu.Lock()
	r.blendStack = append(r.blendStack, r.blend)
	r.mu.Unlock()
	_ = r.record("PushBlendState", nil)
}

func (r *Recorder) PopBlendState() error {
	return r.pop("PopBlendState", &r.blendStack, &r.blend)
}

func (r *Recorder) PushDepthState() {
	r.mu.Lock()
	r.depthStack = append(r.depthStack, r.depth)
	r.mu.Unlock()
	_ = r.record("PushDepthState", nil)
}

func (r *Recorder) PopDepthState() error {
	return r.pop("PopDepthState", &r.depthStack, &r.depth)
}

func (r *Recorder) PushRasterState() {
	r.mu.Lock()
	r.rasterStack = append(r.rasterStack, r.raster)
	r.mu.Unlock()
	_ = r.record("PushRasterState", nil)
}

func (r *Recorder) PopRasterState() error {
	return r.pop("PopRasterState", &r.rasterStack, &r.raster)
}

func (r *Recorder) pop(op string, stack *[]resource.Resource, current *resource.Resource) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: op})
	if len(*stack) == 0 {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrStateUnderflow)
	}
	n := len(*stack) - 1
	*current = (*stack)[n]
	*stack = (*stack)[:n]
	r.mu.Unlock()
	return nil
}

func (r *Recorder) SetViewport(params resource.ViewportParams) {
	r.mu.Lock()
	r.viewport = params
	r.mu.Unlock()
	_ = r.record("SetViewport", nil)
}

func (r *Recorder) SetBlendState(state resource.Resource) error {
	r.mu.Lock()
	r.blend = state
	r.mu.Unlock()
	return r.record("SetBlendState", state)
}

func (r *Recorder) SetDepthState(state resource.Resource) error {
	r.mu.Lock()
	r.depth = state
	r.mu.Unlock()
	return r.record("SetDepthState", state)
}

func (r *Recorder) SetRasterState(state resource.Resource) error {
	r.mu.Lock()
	r.raster = state
	r.mu.Unlock()
	return r.record("SetRasterState", state)
}

// SetParameter records the call as SetParameter:<key>. Effects carrying a reflection
// with bindings reject keys the reflection does not know.
func (r *Recorder) SetParameter(effect resource.Resource, key string, res resource.Resource) error {
	if err := r.record("SetParameter:"+key, res); err != nil {
		return err
	}
	e, ok := effect.(Effect)
	if !ok {
		return fmt.Errorf("%w: effect", ErrWrongResource)
	}
	refl := e.Reflection()
	if len(refl.Bindings) == 0 {
		return nil
	}
	if _, ok := refl.Binding(key); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, key)
	}
	return nil
}

func (r *Recorder) SetPipelineState(state resource.Resource) error {
	return r.record("SetPipelineState", state)
}

func (r *Recorder) BeginEffect(effect resource.Resource) error {
	return r.record("BeginEffect", effect)
}

func (r *Recorder) DrawPrimitive(params resource.PrimitiveParams) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: "DrawPrimitive", Label: fmt.Sprintf("v=%d i=%d n=%d", params.VertexCount, params.IndexCount, max(params.InstanceCount, 1))})
	err := r.opFailures["DrawPrimitive"]
	r.mu.Unlock()
	return err
}

func (r *Recorder) EndEffect(effect resource.Resource) error {
	return r.record("EndEffect", effect)
}

func (r *Recorder) Map(buffer resource.Resource) ([]byte, error) {
	if err := r.record("Map", buffer); err != nil {
		return nil, err
	}
	h, ok := buffer.(*Handle)
	if !ok || !h.kind.IsBuffer() {
		return nil, ErrNotMappable
	}
	return h.Data, nil
}

func (r *Recorder) Unmap(buffer resource.Resource) error {
	return r.record("Unmap", buffer)
}

func (r *Recorder) BeginFrame() (resource.Resource, error) {
	r.mu.Lock()
	r.frames++
	r.mu.Unlock()
	if err := r.record("BeginFrame", nil); err != nil {
		return nil, err
	}
	return r.screen, nil
}

func (r *Recorder) EndFrame() error {
	return r.record("EndFrame", nil)
}

func (r *Recorder) Present() {
	_ = r.record("Present", nil)
}
