// Package window opens a GLFW window and exposes the WebGPU surface descriptor the
// backend presents to.
package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"
)

// ErrClosed is returned by Close when the window was already closed.
var ErrClosed = errors.New("window: already closed")

// Window provides platform windowing and input event handling.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyCallback sets the callback for key presses. Escape always closes the window
	// and is not forwarded.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code
	SetKeyCallback(callback func(key glfw.Key))

	// SurfaceDescriptor returns the platform surface descriptor created by the wgpuglfw bridge.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the surface descriptor, nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Close destroys the window and terminates GLFW.
	//
	// Returns:
	//   - error: ErrClosed if the window was already closed
	Close() error

	// ProcessMessages polls events and calls the update callback until the window closes.
	ProcessMessages()

	// Width and Height return the framebuffer size in pixels.
	Width() int
	Height() int
}

type glfwWindow struct {
	title     string
	width     int
	height    int
	resizable bool
	logger    *zap.Logger

	window  *glfw.Window
	running bool

	onUpdate func()
	onResize func(width, height int)
	onKey    func(key glfw.Key)
}

var _ Window = &glfwWindow{}

// NewWindow creates and shows a GLFW window without a client API, ready for a WebGPU surface.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: an error if GLFW could not be initialized or the window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &glfwWindow{
		title:     "oxy-graph",
		width:     1280,
		height:    720,
		resizable: true,
		logger:    common.Logger(),
	}
	for _, opt := range options {
		opt(w)
	}

	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// WebGPU provides its own graphics API
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	if w.resizable {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Resizable, glfw.False)
	}

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create GLFW window: %w", err)
	}
	w.window = win
	w.running = true

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		if key == glfw.KeyEscape {
			w.running = false
			win.SetShouldClose(true)
			return
		}
		if w.onKey != nil {
			w.onKey(key)
		}
	})

	// framebuffer size differs from window size on high-DPI displays
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
		w.logger.Debug("framebuffer resized", zap.Int("width", width), zap.Int("height", height))
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})

	w.width, w.height = win.GetFramebufferSize()
	w.logger.Info("window opened", zap.String("title", w.title), zap.Int("width", w.width), zap.Int("height", w.height))
	return w, nil
}

func (w *glfwWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *glfwWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *glfwWindow) SetKeyCallback(callback func(key glfw.Key)) {
	w.onKey = callback
}

func (w *glfwWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.window == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.window)
}

func (w *glfwWindow) IsRunning() bool {
	return w.window != nil && w.running && !w.window.ShouldClose()
}

func (w *glfwWindow) Close() error {
	if w.window == nil {
		return ErrClosed
	}
	w.running = false
	w.window.Destroy()
	w.window = nil
	glfw.Terminate()
	return nil
}

func (w *glfwWindow) ProcessMessages() {
	for w.IsRunning() {
		glfw.PollEvents()
		if !w.IsRunning() {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *glfwWindow) Width() int {
	return w.width
}

func (w *glfwWindow) Height() int {
	return w.height
}
