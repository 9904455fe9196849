package backend

import "go.uber.org/zap"

// BackendBuilderOption is a functional option applied to a backend during construction via NewBackend.
type BackendBuilderOption func(*wgpuBackend)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - BackendBuilderOption: a function that applies the present mode option to a backend
func WithPresentMode(mode PresentMode) BackendBuilderOption {
	return func(b *wgpuBackend) {
		b.setPresentMode(mode)
	}
}

// WithMSAA sets the sample count of the screen target. Defaults to MSAAOff.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - BackendBuilderOption: a function that applies the MSAA option to a backend
func WithMSAA(count MSAASampleCount) BackendBuilderOption {
	return func(b *wgpuBackend) {
		if count > 0 {
			b.sampleCount = count
		}
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter
//
// Returns:
//   - BackendBuilderOption: a function that applies the option to a backend
func WithForceSoftwareRenderer(force bool) BackendBuilderOption {
	return func(b *wgpuBackend) {
		b.forceFallbackAdapter = force
	}
}

// WithClearColor sets the color the screen target is cleared to at the start of a frame.
//
// Parameters:
//   - rgba: the clear color
//
// Returns:
//   - BackendBuilderOption: a function that applies the clear color option to a backend
func WithClearColor(rgba [4]float64) BackendBuilderOption {
	return func(b *wgpuBackend) {
		b.clearColor = rgba
	}
}

// WithLogger sets the logger used for adapter and surface events.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - BackendBuilderOption: a function that applies the logger option to a backend
func WithLogger(logger *zap.Logger) BackendBuilderOption {
	return func(b *wgpuBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}
