package renderer

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"go.uber.org/zap"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithShaderCache sets the shader cache the factory loads shaders through.
//
// Parameters:
//   - cache: the shader cache
//
// Returns:
//   - RendererBuilderOption: a function that applies the cache option to a renderer
func WithShaderCache(cache shader.Cache) RendererBuilderOption {
	return func(r *renderer) {
		r.cache = cache
	}
}

// WithFrameSource sets where Frame acquires and presents surface images. Passing nil
// renders offscreen even when the device is a frame source.
//
// Parameters:
//   - fs: the frame source, or nil
//
// Returns:
//   - RendererBuilderOption: a function that applies the frame source option to a renderer
func WithFrameSource(fs device.FrameSource) RendererBuilderOption {
	return func(r *renderer) {
		r.frames = fs
	}
}

// WithScreen sets the name of the external target each surface image is injected into.
// Defaults to DefaultScreen.
//
// Parameters:
//   - name: the external target name
//
// Returns:
//   - RendererBuilderOption: a function that applies the screen option to a renderer
func WithScreen(name string) RendererBuilderOption {
	return func(r *renderer) {
		if name != "" {
			r.screen = name
		}
	}
}

// WithLogger sets the logger shared by the renderer, its table, factory and stages.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(logger *zap.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}
