// Package backend implements the device contract on a graphics API. The WebGPU backend
// creates every resource kind on a wgpu device and records passes into one command
// encoder per frame.
package backend

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
)

// BackendType identifies the GPU backend implementation.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU BackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount is the sample count of the screen target. WebGPU guarantees support
// for 1 and 4; higher values are adapter-dependent.
type MSAASampleCount uint32

const (
	MSAAOff MSAASampleCount = 1
	MSAA4x  MSAASampleCount = 4
	MSAA8x  MSAASampleCount = 8
	MSAA16x MSAASampleCount = 16
)

// Backend is a device that presents to a window surface.
type Backend interface {
	device.Device
	device.Context
	device.FrameSource

	// ConfigureSurface (re)configures the surface and the screen's multisample texture.
	// It must be called before the first frame and whenever the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the multisample texture could not be created
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the present mode applied by the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// SampleCount returns the sample count of the screen target.
	SampleCount() uint32

	// Release destroys the device and surface.
	Release()
}

// NewBackend creates a backend presenting to the surface described by surfaceDescriptor.
//
// Parameters:
//   - backendType: the backend implementation
//   - surfaceDescriptor: the window surface, typically from wgpuglfw.GetSurfaceDescriptor
//   - options: functional options
//
// Returns:
//   - Backend: the new backend
//   - error: an error if no adapter or device could be acquired
func NewBackend(backendType BackendType, surfaceDescriptor *wgpu.SurfaceDescriptor, options ...BackendBuilderOption) (Backend, error) {
	switch backendType {
	case BackendTypeWGPU:
		return newWGPUBackend(surfaceDescriptor, options...)
	}
	return nil, fmt.Errorf("unknown backend type %d", backendType)
}
