package common

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
)

// Environment variable names read by LoadConfiguration.
const (
	EnvBackend      = "OXY_BACKEND"
	EnvScreenWidth  = "OXY_SCREEN_WIDTH"
	EnvScreenHeight = "OXY_SCREEN_HEIGHT"
	EnvMSAA         = "OXY_MSAA"
	EnvVSync        = "OXY_VSYNC"
	EnvFPS          = "OXY_FPS"
	EnvShaderDir    = "OXY_SHADER_DIR"
	EnvShaderWarmup = "OXY_SHADER_WORKERS"
	EnvLogLevel     = "OXY_LOG_LEVEL"
	EnvLogDev       = "OXY_LOG_DEV"
)

// Configuration is the top level engine configuration.
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
	Shaders  ShaderConfiguration
	Log      LogConfiguration
}

// TimeConfiguration is used to configure the frame loop.
type TimeConfiguration struct {
	// FramesPerSecond caps the render loop. 0 leaves it uncapped.
	FramesPerSecond int
}

// RendererConfiguration is used to configure the renderer and its device.
type RendererConfiguration struct {
	// Backend selects the device implementation: "wgpu" or "headless".
	Backend string

	ScreenWidth  uint32
	ScreenHeight uint32

	// SampleCount is the MSAA sample count of the screen target.
	SampleCount uint32

	VSync bool
}

// ShaderConfiguration is used to configure the shader cache.
type ShaderConfiguration struct {
	// Directory is the root that relative shader paths are resolved against.
	Directory string

	// Workers is the size of the worker pool used to warm the cache.
	Workers int
}

// LogConfiguration is used to configure the shared zap logger.
type LogConfiguration struct {
	Level       string
	Development bool
}

// DefaultConfiguration returns the configuration used when no environment overrides are present.
//
// Returns:
//   - Configuration: the default configuration
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{FramesPerSecond: 0},
		Renderer: RendererConfiguration{
			Backend:      "wgpu",
			ScreenWidth:  1280,
			ScreenHeight: 720,
			SampleCount:  1,
			VSync:        true,
		},
		Shaders: ShaderConfiguration{
			Directory: "shaders",
			Workers:   4,
		},
		Log: LogConfiguration{
			Level: "info",
		},
	}
}

// LoadConfiguration loads the given .env files (missing files are skipped) and then
// builds a Configuration from the OXY_* environment variables, falling back to the
// defaults for anything unset.
//
// Parameters:
//   - files: optional .env files to load before reading the environment
//
// Returns:
//   - Configuration: the resolved configuration
//   - error: an error if a file could not be parsed or a variable holds an invalid value
func LoadConfiguration(files ...string) (Configuration, error) {
	for _, f := range files {
		if !fileExists(f) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Configuration{}, fmt.Errorf("failed to load env file %q: %w", f, err)
		}
	}
	envy.Reload()

	cfg := DefaultConfiguration()
	var err error

	cfg.Renderer.Backend = envString(EnvBackend, cfg.Renderer.Backend)
	if cfg.Renderer.ScreenWidth, err = envUint32(EnvScreenWidth, cfg.Renderer.ScreenWidth); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.ScreenHeight, err = envUint32(EnvScreenHeight, cfg.Renderer.ScreenHeight); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.SampleCount, err = envUint32(EnvMSAA, cfg.Renderer.SampleCount); err != nil {
		return Configuration{}, err
	}
	if cfg.Renderer.VSync, err = envBool(EnvVSync, cfg.Renderer.VSync); err != nil {
		return Configuration{}, err
	}
	if cfg.Time.FramesPerSecond, err = envInt(EnvFPS, cfg.Time.FramesPerSecond); err != nil {
		return Configuration{}, err
	}
	cfg.Shaders.Directory = envString(EnvShaderDir, cfg.Shaders.Directory)
	if cfg.Shaders.Workers, err = envInt(EnvShaderWarmup, cfg.Shaders.Workers); err != nil {
		return Configuration{}, err
	}
	cfg.Log.Level = envString(EnvLogLevel, cfg.Log.Level)
	if cfg.Log.Development, err = envBool(EnvLogDev, cfg.Log.Development); err != nil {
		return Configuration{}, err
	}

	return cfg, nil
}

// FrameDuration returns the minimum frame duration for the configured frame cap, or 0 when uncapped.
//
// Returns:
//   - time.Duration: the frame budget
func (c TimeConfiguration) FrameDuration() time.Duration {
	if c.FramesPerSecond <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.FramesPerSecond)
}

func envString(key, fallback string) string {
	if raw := envy.Get(key, ""); raw != "" {
		return raw
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envUint32(key string, fallback uint32) (uint32, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return uint32(v), nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
