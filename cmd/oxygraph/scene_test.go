package main

import (
	"slices"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"go.uber.org/zap"
)

func newTestDemo(t *testing.T) (*demo, renderer.Renderer, *device.Recorder) {
	t.Helper()
	rec := device.NewRecorder()
	cache := shader.NewCache(shader.WithSourceLoader(shader.DirLoader("shaders")), shader.WithCompiler(nil))
	r := renderer.NewRenderer(rec, rec, renderer.WithShaderCache(cache))
	d, err := newDemo(r, rec, 800, 600, zap.NewNop())
	if err != nil {
		t.Fatalf("newDemo: %v", err)
	}
	return d, r, rec
}

func countDraws(ops []string) int {
	n := 0
	for _, op := range ops {
		if strings.HasPrefix(op, "DrawPrimitive") {
			n++
		}
	}
	return n
}

func TestDemoDrawsBothStages(t *testing.T) {
	_, r, rec := newTestDemo(t)

	stats, err := r.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if stats.Stages != 2 || stats.Passes != 2 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	ops := rec.Ops()
	if got := countDraws(ops); got != 2 {
		t.Fatalf("draws = %d, want 2\n%v", got, ops)
	}
	for _, want := range []string{
		"SetParameter:transform(Transform)",
		"SetParameter:transform(OverlayTransform)",
		"SetParameter:albedo(Checker)",
		"SetParameter:albedo_sampler(Nearest)",
		"DrawPrimitive(v=0 i=6 n=1)",
	} {
		if !slices.Contains(ops, want) {
			t.Fatalf("missing %s in\n%v", want, ops)
		}
	}
}

func TestDemoUpdateWritesTransforms(t *testing.T) {
	d, r, rec := newTestDemo(t)

	// buffers are not built before the first frame
	d.update(0.1)
	if slices.Contains(rec.Ops(), "Map(Transform)") {
		t.Fatal("mapped a buffer before it was built")
	}

	if _, err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	rec.Reset()
	d.update(0.1)
	want := []string{"Map(Transform)", "Unmap(Transform)", "Map(OverlayTransform)", "Unmap(OverlayTransform)"}
	if got := rec.Ops(); !slices.Equal(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
}

func TestDemoToggleOverlay(t *testing.T) {
	d, r, rec := newTestDemo(t)
	d.toggleOverlay()

	stats, err := r.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if stats.Skipped != 1 || stats.Passes != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if got := countDraws(rec.Ops()); got != 1 {
		t.Fatalf("draws = %d, want 1", got)
	}

	d.toggleOverlay()
	rec.Reset()
	if _, err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got := countDraws(rec.Ops()); got != 2 {
		t.Fatalf("draws = %d, want 2", got)
	}
}

func TestMatrixBytes(t *testing.T) {
	b := matrixBytes([16]float32{0: 1, 5: 1, 10: 1, 15: 1})
	if len(b) != 64 {
		t.Fatalf("len = %d", len(b))
	}
	// 1.0f is 0x3f800000
	if b[0] != 0x00 || b[3] != 0x3f || b[2] != 0x80 {
		t.Fatalf("first element = % x", b[:4])
	}
}
