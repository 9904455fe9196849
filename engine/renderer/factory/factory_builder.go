package factory

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"go.uber.org/zap"
)

// FactoryBuilderOption configures a factory created by NewFactory.
type FactoryBuilderOption func(*factory)

// WithShaderCache sets the cache shaders and effects are loaded through. Sharing one
// cache across factories shares the compiled shaders.
func WithShaderCache(cache shader.Cache) FactoryBuilderOption {
	return func(f *factory) {
		f.cache = cache
	}
}

// WithLogger sets the logger used by the factory.
func WithLogger(logger *zap.Logger) FactoryBuilderOption {
	return func(f *factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}
