// Command oxygraph renders a small resource graph: a textured quad in a main stage and an
// additive overlay stage toggled with the O key. Set OXY_BACKEND=headless to render a fixed
// number of frames against the recording device instead of opening a window.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gobuffalo/packr"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", ".env", "environment file loaded before reading OXY_* variables")
	frames := flag.Int("frames", 120, "frames rendered by the headless backend")
	flag.Parse()

	cfg, err := common.LoadConfiguration(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := common.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	common.SetLogger(logger)

	cache := shader.NewCache(
		shader.WithSourceLoader(shaderLoader(cfg.Shaders)),
		shader.WithWorkers(cfg.Shaders.Workers),
		shader.WithLogger(logger),
	)
	if err := cache.Warm(shader.ShaderTypeProgram, quadShader); err != nil {
		logger.Fatal("failed to warm shader cache", zap.Error(err))
	}

	switch cfg.Renderer.Backend {
	case "headless":
		err = runHeadless(cfg, cache, *frames, logger)
	case "wgpu":
		err = runWindowed(cfg, cache, logger)
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Renderer.Backend)
	}
	if err != nil {
		logger.Fatal("oxygraph stopped", zap.Error(err))
	}
}

// shaderLoader reads shaders from the configured directory when it exists and from the
// packed box otherwise.
func shaderLoader(cfg common.ShaderConfiguration) shader.SourceLoader {
	if info, err := os.Stat(cfg.Directory); err == nil && info.IsDir() {
		return shader.DirLoader(cfg.Directory)
	}
	return packr.NewBox("./shaders")
}

func runWindowed(cfg common.Configuration, cache shader.Cache, logger *zap.Logger) error {
	win, err := window.NewWindow(
		window.WithTitle("oxy-graph"),
		window.WithSize(int(cfg.Renderer.ScreenWidth), int(cfg.Renderer.ScreenHeight)),
		window.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	opts := []backend.BackendBuilderOption{
		backend.WithMSAA(backend.MSAASampleCount(cfg.Renderer.SampleCount)),
		backend.WithLogger(logger),
	}
	if !cfg.Renderer.VSync {
		opts = append(opts, backend.WithPresentMode(backend.PresentModeUncapped))
	}
	be, err := backend.NewBackend(backend.BackendTypeWGPU, win.SurfaceDescriptor(), opts...)
	if err != nil {
		return err
	}
	defer be.Release()
	if err := be.ConfigureSurface(win.Width(), win.Height()); err != nil {
		return err
	}

	r := renderer.NewRenderer(be, be, renderer.WithShaderCache(cache), renderer.WithLogger(logger))
	defer r.Release()

	d, err := newDemo(r, be, win.Width(), win.Height(), logger)
	if err != nil {
		return err
	}
	win.SetKeyCallback(func(key glfw.Key) {
		if key == glfw.KeyO {
			d.toggleOverlay()
		}
	})

	e := engine.NewEngine(r,
		engine.WithWindow(win),
		engine.WithSurface(be),
		engine.WithResizeCallback(d.resize),
		engine.WithRenderFrameLimit(float64(cfg.Time.FramesPerSecond)),
		engine.WithProfiling(true),
		engine.WithLogger(logger),
	)
	e.SetRenderCallback(d.update)
	e.Run()
	return nil
}

func runHeadless(cfg common.Configuration, cache shader.Cache, frames int, logger *zap.Logger) error {
	rec := device.NewRecorder()
	r := renderer.NewRenderer(rec, rec, renderer.WithShaderCache(cache), renderer.WithLogger(logger))
	defer r.Release()

	d, err := newDemo(r, rec, int(cfg.Renderer.ScreenWidth), int(cfg.Renderer.ScreenHeight), logger)
	if err != nil {
		return err
	}

	e := engine.NewEngine(r, engine.WithProfiling(true), engine.WithLogger(logger))
	e.SetRenderCallback(d.update)

	for i := range max(frames, 1) {
		if i == frames/2 {
			d.toggleOverlay()
		}
		stats, err := e.Step()
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		logger.Debug("frame", zap.Int("frame", i), zap.Int("passes", stats.Passes), zap.Int("skipped", stats.Skipped))
	}

	logger.Info("headless run finished",
		zap.Uint64("frames", r.FrameCount()),
		zap.Int("device_calls", len(rec.Calls())),
	)
	return nil
}
