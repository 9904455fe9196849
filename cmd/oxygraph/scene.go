package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/slot"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	quadShader   = "quad.wgsl"
	checkerSize  = 64
	mainStage    = "Main"
	overlayStage = "Overlay"
)

// demo is a textured quad spinning in the main stage and a smaller additive copy in an
// overlay stage that can be toggled at runtime.
type demo struct {
	mu     sync.Mutex
	r      renderer.Renderer
	ctx    device.Context
	logger *zap.Logger

	angle  float32
	aspect float32
}

func newDemo(r renderer.Renderer, ctx device.Context, width, height int, logger *zap.Logger) (*demo, error) {
	d := &demo{r: r, ctx: ctx, logger: logger, aspect: aspectOf(width, height)}
	if err := d.addResources(); err != nil {
		return nil, err
	}
	if err := d.addStages(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *demo) addResources() error {
	names := d.r.Names()

	checker, err := resource.CompressPayload(checkerPixels(checkerSize), 1)
	if err != nil {
		return err
	}
	identity := resource.Payload{Data: matrixBytes(mgl32.Ident4())}

	descs := []struct {
		name string
		desc func() (resource.Descriptor, error)
	}{
		{"Screen", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindTarget, nil, resource.WithExternal())
		}},
		{"QuadEffect", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindEffect, resource.ShaderParams{Source: resource.SourceFile, Path: quadShader})
		}},
		{"QuadLayout", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindVertexFormat, resource.VertexFormatParams{},
				resource.WithRef(resource.RefEffect, names.Intern("QuadEffect")))
		}},
		{"Quad", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindVertexBuffer, resource.BufferParams{Stride: 16},
				resource.WithPayload(resource.Payload{Data: quadVertices()}))
		}},
		{"QuadIndices", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindIndexBuffer, resource.BufferParams{IndexFormat: gputypes.IndexFormatUint16},
				resource.WithPayload(resource.Payload{Data: quadIndices()}))
		}},
		{"Transform", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindConstantBuffer, resource.BufferParams{Size: 64, Dynamic: true},
				resource.WithPayload(identity))
		}},
		{"OverlayTransform", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindConstantBuffer, resource.BufferParams{Size: 64, Dynamic: true},
				resource.WithPayload(identity))
		}},
		{"Checker", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindTexture, resource.TextureParams{
				Width:  checkerSize,
				Height: checkerSize,
				Format: gputypes.TextureFormatRGBA8Unorm,
			}, resource.WithPayload(checker))
		}},
		{"Nearest", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindSamplerState, resource.SamplerParams{
				MagFilter: gputypes.FilterModeNearest,
				MinFilter: gputypes.FilterModeNearest,
			})
		}},
		{"Opaque", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindBlendState, resource.BlendParams{})
		}},
		{"Additive", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindBlendState, resource.BlendParams{
				Enabled: true,
				Color:   resource.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOne},
				Alpha:   resource.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOne},
			})
		}},
		{"Triangles", func() (resource.Descriptor, error) {
			return resource.NewDescriptor(resource.KindPrimitive, resource.PrimitiveParams{IndexCount: 6})
		}},
	}

	var errs error
	for _, e := range descs {
		desc, err := e.desc()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("descriptor %s: %w", e.name, err))
			continue
		}
		if _, err := d.r.AddResource(e.name, desc); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (d *demo) quadPass(name, blend, transform string) pass.Pass {
	return d.r.NewPass(name,
		pass.WithSlot("Transform", resource.KindConstantBuffer, "transform"),
		pass.WithSlot("Albedo", resource.KindTexture, "albedo"),
		pass.WithSlot("AlbedoSampler", resource.KindSamplerState, "albedo_sampler"),
		pass.WithBinding(slot.Effect, "QuadEffect"),
		pass.WithBinding(slot.VertexFormat, "QuadLayout"),
		pass.WithBinding(slot.VertexBuffer(0), "Quad"),
		pass.WithBinding(slot.IndexBuffer, "QuadIndices"),
		pass.WithBinding(slot.Target(0), "Screen"),
		pass.WithBinding(slot.BlendState, blend),
		pass.WithBinding(slot.Primitive, "Triangles"),
		pass.WithBinding("Transform", transform),
		pass.WithBinding("Albedo", "Checker"),
		pass.WithBinding("AlbedoSampler", "Nearest"),
	)
}

func (d *demo) addStages() error {
	if _, err := d.r.AddStage(mainStage, d.quadPass("Quad", "Opaque", "Transform")); err != nil {
		return err
	}
	_, err := d.r.AddStage(overlayStage, d.quadPass("Overlay", "Additive", "OverlayTransform"))
	return err
}

// update advances the rotation and uploads both transforms. Buffers that are not built yet
// keep their identity payload.
func (d *demo) update(dt float32) {
	d.mu.Lock()
	d.angle += dt * 0.8
	angle, aspect := d.angle, d.aspect
	d.mu.Unlock()

	proj := mgl32.Ortho(-aspect, aspect, -1, 1, -1, 1)
	spin := proj.Mul4(mgl32.HomogRotate3DZ(angle)).Mul4(mgl32.Scale3D(0.6, 0.6, 1))
	overlay := proj.
		Mul4(mgl32.Translate3D(aspect-0.3, 0.7, 0)).
		Mul4(mgl32.HomogRotate3DZ(-2 * angle)).
		Mul4(mgl32.Scale3D(0.2, 0.2, 1))

	err := multierr.Combine(d.write("Transform", spin), d.write("OverlayTransform", overlay))
	if err != nil {
		d.logger.Warn("failed to upload transforms", zap.Error(err))
	}
}

func (d *demo) write(name string, m mgl32.Mat4) error {
	entry := d.r.Table().Entry(name)
	if entry == nil || entry.Resource() == nil {
		return nil
	}
	buf, err := d.ctx.Map(entry.Resource())
	if err != nil {
		return fmt.Errorf("map %s: %w", name, err)
	}
	if len(buf) < 64 {
		return fmt.Errorf("map %s: buffer holds %d bytes", name, len(buf))
	}
	copy(buf, matrixBytes(m))
	return d.ctx.Unmap(entry.Resource())
}

func (d *demo) resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aspect = aspectOf(width, height)
}

func (d *demo) toggleOverlay() {
	s := d.r.Stages().Stage(overlayStage)
	if s == nil {
		return
	}
	s.SetEnabled(!s.Enabled())
	d.logger.Info("overlay toggled", zap.Bool("enabled", s.Enabled()))
}

func aspectOf(width, height int) float32 {
	if height <= 0 {
		return 1
	}
	return float32(width) / float32(height)
}

func matrixBytes(m mgl32.Mat4) []byte {
	out := make([]byte, 64)
	for i, v := range m {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func quadVertices() []byte {
	// position.xy, uv.xy
	vertices := []float32{
		-1, -1, 0, 1,
		1, -1, 1, 1,
		1, 1, 1, 0,
		-1, 1, 0, 0,
	}
	out := make([]byte, len(vertices)*4)
	for i, v := range vertices {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func quadIndices() []byte {
	indices := []uint16{0, 1, 2, 2, 3, 0}
	out := make([]byte, len(indices)*2)
	for i, v := range indices {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

func checkerPixels(size int) []byte {
	out := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			c := byte(40)
			if (x/8+y/8)%2 == 0 {
				c = 220
			}
			i := (y*size + x) * 4
			out[i], out[i+1], out[i+2], out[i+3] = c, c/2+100, 255-c, 255
		}
	}
	return out
}
