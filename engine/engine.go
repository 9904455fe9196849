// Package engine runs the tick and render loops around a Renderer and an optional window.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/profiler"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
	"go.uber.org/zap"
)

// Surface is implemented by backends that must be reconfigured when the window resizes.
type Surface interface {
	ConfigureSurface(width, height int) error
}

// engine implements the Engine interface.
type engine struct {
	mu              *sync.Mutex
	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	renderer renderer.Renderer
	window   window.Window
	surface  Surface
	logger   *zap.Logger

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)
	resizeCallback func(width, height int)

	// minimum frame duration, 0 = uncapped
	renderFrameLimit time.Duration
	lastRender       time.Time
}

// Engine orchestrates the tick loop, the render loop and the window.
type Engine interface {
	// Renderer returns the renderer drawn every frame.
	Renderer() renderer.Renderer

	// Window returns the window, nil for headless engines.
	Window() window.Window

	// EnableProfiler enables periodic frame statistics logging.
	EnableProfiler()

	// DisableProfiler disables frame statistics logging.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called before each frame, typically used to
	// write dynamic buffers.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets a render frame rate cap. 0 uncaps the render loop.
	//
	// Parameters:
	//   - fps: maximum render frames per second
	SetRenderFrameLimit(fps float64)

	// Step renders a single frame: the render callback, then Renderer.Frame.
	//
	// Returns:
	//   - pass.Stats: the frame statistics
	//   - error: the combined frame errors, nil when every pass succeeded
	Step() (pass.Stats, error)

	// Run starts the tick and render loops. With a window it blocks in the message loop
	// until the window closes, otherwise until Quit is called.
	Run()

	// Quit stops the loops. Safe to call multiple times.
	Quit()
}

// NewEngine creates a new Engine around r.
//
// Parameters:
//   - r: the renderer drawn each frame
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, options ...EngineBuilderOption) Engine {
	if r == nil {
		panic("engine: renderer is required")
	}
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		renderer:        r,
		logger:          common.Logger(),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}

	return e
}

func (e *engine) resize(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	if e.surface != nil {
		if err := e.surface.ConfigureSurface(width, height); err != nil {
			e.logger.Error("failed to reconfigure surface", zap.Error(err))
		}
	}
	if e.resizeCallback != nil {
		e.resizeCallback(width, height)
	}
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	} else {
		<-e.quitChannel
	}
	e.wg.Wait()
}

func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handle launches the engine and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop until quit.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender renders frames until quit. A panic in a frame stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render goroutine recovered from panic", zap.String("panic", fmt.Sprint(r)))
			e.signalQuit()
		}
	}()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			start := time.Now()
			if _, err := e.Step(); err != nil {
				e.logger.Warn("frame completed with errors", zap.Error(err))
			}

			if e.renderFrameLimit > 0 {
				if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

func (e *engine) Step() (pass.Stats, error) {
	now := time.Now()
	var dt float32
	if !e.lastRender.IsZero() {
		dt = float32(now.Sub(e.lastRender).Seconds())
	}
	e.lastRender = now

	if e.renderCallback != nil {
		e.renderCallback(dt)
	}

	stats, err := e.renderer.Frame()

	if e.profilingEnabled {
		e.profiler.Tick(stats)
	}
	return stats, err
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate takes effect immediately when the engine is running.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	if !running {
		e.engineTickRate = newRate
		return
	}

	// replace a pending update instead of blocking
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}
