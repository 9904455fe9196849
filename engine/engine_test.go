package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/profiler"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newHeadless(t *testing.T) (renderer.Renderer, *device.Recorder) {
	t.Helper()
	rec := device.NewRecorder()
	return renderer.NewRenderer(rec, rec), rec
}

func TestStepRunsRenderCallbackBeforeFrame(t *testing.T) {
	r, rec := newHeadless(t)
	e := NewEngine(r)

	seen := -1
	e.SetRenderCallback(func(float32) {
		seen = rec.Frames()
	})

	if _, err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if seen != 0 {
		t.Fatalf("render callback saw %d frames, want 0", seen)
	}
	if r.FrameCount() != 1 || rec.Frames() != 1 {
		t.Fatalf("frame count = %d, recorder frames = %d", r.FrameCount(), rec.Frames())
	}
}

func TestStepReportsFrameErrors(t *testing.T) {
	r, rec := newHeadless(t)
	injected := errors.New("out of memory")
	rec.FailCreate("Broken", injected)
	if _, err := r.AddResource("Broken", resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 1, Height: 1})); err != nil {
		t.Fatalf("AddResource: %v", err)
	}

	e := NewEngine(r)
	if _, err := e.Step(); err == nil {
		t.Fatal("expected the creation failure to be reported")
	}
	if r.FrameCount() != 1 {
		t.Fatalf("frame count = %d, want 1", r.FrameCount())
	}
}

func TestStepFeedsProfiler(t *testing.T) {
	r, _ := newHeadless(t)
	core, logs := observer.New(zap.InfoLevel)
	now := time.Unix(0, 0)
	p := profiler.NewProfiler(
		profiler.WithLogger(zap.New(core)),
		profiler.WithMemStats(false),
		profiler.WithClock(func() time.Time {
			now = now.Add(time.Second)
			return now
		}),
	)

	e := NewEngine(r, WithProfiler(p))
	if _, err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatal("profiler ticked while disabled")
	}

	e.EnableProfiler()
	if _, err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if logs.Len() != 1 || p.Last().Frames != 1 {
		t.Fatalf("logs = %d, last report = %+v", logs.Len(), p.Last())
	}
}

func TestRunHeadlessUntilQuit(t *testing.T) {
	r, _ := newHeadless(t)
	e := NewEngine(r, WithTickRate(1000))

	calls := 0
	e.SetRenderCallback(func(float32) {
		calls++
		if calls == 3 {
			e.Quit()
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	if r.FrameCount() != 3 {
		t.Fatalf("frame count = %d, want 3", r.FrameCount())
	}
	e.Quit()
}
