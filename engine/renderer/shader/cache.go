package shader

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/common"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrEmptySource is returned when a shader is loaded from an empty source or buffer.
var ErrEmptySource = errors.New("shader: empty source")

// Compiler validates pre-processed WGSL and returns the compiled module.
type Compiler func(source string) ([]byte, error)

// cache is the implementation of the Cache interface.
type cache struct {
	mu       sync.Mutex
	shaders  map[string]Shader
	snippets map[string]Snippet
	loader   SourceLoader
	compiler Compiler
	logger   *zap.Logger
	workers  int
	compiled int
}

// Cache loads, pre-processes, validates and reflects shaders, keyed by name so repeated
// requests for the same file or source share one Shader. It is safe for concurrent use.
type Cache interface {
	// LoadFromFile loads a WGSL file through the cache's SourceLoader.
	//
	// Parameters:
	//   - path: the file name passed to the SourceLoader
	//   - shaderType: the stage the shader is loaded for
	//   - opts: options applied when the shader is first created
	//
	// Returns:
	//   - Shader: the cached shader
	//   - error: a read, pre-process or validation error
	LoadFromFile(path string, shaderType ShaderType, opts ...ShaderBuilderOption) (Shader, error)

	// LoadFromString loads WGSL source under key.
	//
	// Parameters:
	//   - key: the cache key
	//   - source: the WGSL source
	//   - shaderType: the stage the shader is loaded for
	//   - opts: options applied when the shader is first created
	//
	// Returns:
	//   - Shader: the cached shader
	//   - error: a pre-process or validation error
	LoadFromString(key, source string, shaderType ShaderType, opts ...ShaderBuilderOption) (Shader, error)

	// LoadFromBuffer wraps a pre-compiled module under key. Binary modules are not reflected.
	//
	// Parameters:
	//   - key: the cache key
	//   - binary: the module bytes
	//   - shaderType: the stage the shader is loaded for
	//   - opts: options applied when the shader is first created, typically WithEntryPoint
	//
	// Returns:
	//   - Shader: the cached shader
	//   - error: ErrEmptySource for an empty buffer
	LoadFromBuffer(key string, binary []byte, shaderType ShaderType, opts ...ShaderBuilderOption) (Shader, error)

	// Compile returns the shader cached under key, calling compile to create it on a miss.
	// Failed compiles are not cached.
	//
	// Parameters:
	//   - key: the cache key
	//   - compile: the function creating the shader
	//
	// Returns:
	//   - Shader: the cached shader
	//   - error: the compile error, if any
	Compile(key string, compile func() (Shader, error)) (Shader, error)

	// Warm loads a set of files concurrently on a worker pool.
	//
	// Parameters:
	//   - shaderType: the stage the files are loaded for
	//   - paths: the file names to load
	//
	// Returns:
	//   - error: every load failure combined
	Warm(shaderType ShaderType, paths ...string) error

	// RegisterInclude registers a snippet for //@oxy:include.
	//
	// Parameters:
	//   - name: the snippet name
	//   - snippet: the snippet source and the WGSL type it declares
	RegisterInclude(name string, snippet Snippet)

	// Shader returns a cached shader, or nil.
	Shader(key string) Shader

	// Len returns the number of cached shaders.
	Len() int

	// Compiled returns how many sources were validated by the compiler.
	Compiled() int
}

var _ Cache = &cache{}

// NewCache creates a shader cache reading files from the working directory and validating
// WGSL with naga, unless overridden by options.
//
// Parameters:
//   - opts: builder options
//
// Returns:
//   - Cache: the configured cache
func NewCache(opts ...CacheBuilderOption) Cache {
	c := &cache{
		shaders:  make(map[string]Shader),
		snippets: make(map[string]Snippet),
		loader:   DirLoader(""),
		compiler: defaultCompiler,
		logger:   common.Logger(),
		workers:  4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FileKey is the cache key of a file-loaded shader.
func FileKey(path string, shaderType ShaderType) string {
	return fmt.Sprintf("file:%s#%s", path, shaderType)
}

// SourceKey is a content-derived cache key, so identical sources share one shader.
func SourceKey(data []byte, shaderType ShaderType) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("src:%016x#%s", h.Sum64(), shaderType)
}

func (c *cache) LoadFromFile(path string, shaderType ShaderType, opts ...ShaderBuilderOption) (Shader, error) {
	return c.Compile(FileKey(path, shaderType), func() (Shader, error) {
		data, err := c.loader.Find(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read shader %q: %w", path, err)
		}
		return c.fromSource(FileKey(path, shaderType), string(data), shaderType, opts)
	})
}

func (c *cache) LoadFromString(key, source string, shaderType ShaderType, opts ...ShaderBuilderOption) (Shader, error) {
	return c.Compile(key, func() (Shader, error) {
		return c.fromSource(key, source, shaderType, opts)
	})
}

func (c *cache) LoadFromBuffer(key string, binary []byte, shaderType ShaderType, opts ...ShaderBuilderOption) (Shader, error) {
	return c.Compile(key, func() (Shader, error) {
		if len(binary) == 0 {
			return nil, fmt.Errorf("shader %q: %w", key, ErrEmptySource)
		}
		return NewShader(key, shaderType, append([]ShaderBuilderOption{WithBinary(binary)}, opts...)...), nil
	})
}

func (c *cache) Compile(key string, compile func() (Shader, error)) (Shader, error) {
	c.mu.Lock()
	if s, ok := c.shaders[key]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	s, err := compile()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// another goroutine may have won the race while compile ran unlocked
	if existing, ok := c.shaders[key]; ok {
		return existing, nil
	}
	c.shaders[key] = s
	c.logger.Debug("shader cached", zap.String("key", key), zap.Stringer("type", s.Type()))
	return s, nil
}

func (c *cache) Warm(shaderType ShaderType, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	pool := worker.NewDynamicWorkerPool(c.workers, len(paths), 1*time.Second)
	defer pool.Stop()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for i, path := range paths {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				s, err := c.LoadFromFile(path, shaderType)
				if err != nil {
					mu.Lock()
					errs = multierr.Append(errs, err)
					mu.Unlock()
				}
				return s, err
			},
		})
	}
	wg.Wait()

	c.logger.Info("shader cache warmed", zap.Int("requested", len(paths)), zap.Int("cached", c.Len()))
	return errs
}

func (c *cache) RegisterInclude(name string, snippet Snippet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snippets[name] = snippet
}

func (c *cache) Shader(key string) Shader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shaders[key]
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.shaders)
}

func (c *cache) Compiled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compiled
}

// fromSource pre-processes, validates and reflects WGSL source.
func (c *cache) fromSource(key, source string, shaderType ShaderType, opts []ShaderBuilderOption) (Shader, error) {
	if source == "" {
		return nil, fmt.Errorf("shader %q: %w", key, ErrEmptySource)
	}

	c.mu.Lock()
	pp := NewPreProcessor(c.snippets)
	c.mu.Unlock()

	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("failed to pre-process shader %q: %w", key, err)
	}

	if c.compiler != nil {
		if _, err := c.compiler(processed); err != nil {
			return nil, fmt.Errorf("failed to compile shader %q: %w", key, err)
		}
		c.mu.Lock()
		c.compiled++
		c.mu.Unlock()
	}

	s := NewShader(key, shaderType, append([]ShaderBuilderOption{WithSource(processed, pp.Aliases())}, opts...)...)
	if len(s.Reflection().EntryPoints) == 0 && shaderType != ShaderTypeCompute {
		return nil, fmt.Errorf("shader %q declares no entry point", key)
	}
	return s, nil
}
