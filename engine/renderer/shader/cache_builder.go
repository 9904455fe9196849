package shader

import (
	"github.com/gogpu/naga"
	"go.uber.org/zap"
)

// CacheBuilderOption configures a cache created by NewCache.
type CacheBuilderOption func(*cache)

var defaultCompiler Compiler = naga.Compile

// WithSourceLoader sets where shader files are read from.
func WithSourceLoader(loader SourceLoader) CacheBuilderOption {
	return func(c *cache) {
		if loader != nil {
			c.loader = loader
		}
	}
}

// WithCompiler replaces the WGSL validator. A nil compiler disables validation.
func WithCompiler(compiler Compiler) CacheBuilderOption {
	return func(c *cache) {
		c.compiler = compiler
	}
}

// WithLogger sets the logger used for cache events.
func WithLogger(logger *zap.Logger) CacheBuilderOption {
	return func(c *cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWorkers sets how many workers Warm uses.
func WithWorkers(n int) CacheBuilderOption {
	return func(c *cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithInclude registers a snippet for //@oxy:include at construction.
func WithInclude(name string, snippet Snippet) CacheBuilderOption {
	return func(c *cache) {
		c.snippets[name] = snippet
	}
}
