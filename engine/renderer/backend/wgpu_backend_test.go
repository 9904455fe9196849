package backend

import (
	"sync"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestReleasedEffectEvictsPipelines(t *testing.T) {
	b := &wgpuBackend{
		mu:        &sync.Mutex{},
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
		state:     newContextState(),
	}
	stale := &wgpuEffect{label: "Stale", backend: b}
	kept := &wgpuEffect{label: "Kept", backend: b}

	b.pipelines[pipelineKey{effect: stale, colorCount: 1}] = nil
	b.pipelines[pipelineKey{effect: stale, colorCount: 1, samples: 4}] = nil
	b.pipelines[pipelineKey{effect: kept, colorCount: 1}] = nil
	b.state.effect = stale
	b.state.pipeline = &wgpuPipelineState{label: "StalePSO", effect: stale}

	stale.Release()

	if len(b.pipelines) != 1 {
		t.Fatalf("expected 1 cached pipeline, got %d", len(b.pipelines))
	}
	for key := range b.pipelines {
		if key.effect != kept {
			t.Errorf("pipeline for %s survived", key.effect.label)
		}
	}
	if b.state.effect != nil || b.state.pipeline != nil {
		t.Errorf("released effect still bound: effect=%v pipeline=%v", b.state.effect, b.state.pipeline)
	}

	kept.Release()
	if len(b.pipelines) != 0 {
		t.Errorf("expected empty pipeline cache, got %d", len(b.pipelines))
	}
}
