package pass

import (
	"fmt"
	"slices"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// stage is the implementation of the Stage interface.
type stage struct {
	name    string
	passes  []Pass
	enabled bool
	stats   Stats
	logger  *zap.Logger
}

// Stage is an ordered group of passes, such as a shadow or lighting stage.
type Stage interface {
	// Name returns the stage name, unique within its stage table.
	Name() string

	// AddPass appends a pass.
	//
	// Parameters:
	//   - p: the pass to append
	//
	// Returns:
	//   - error: ErrDuplicatePass if the stage already has a pass of that name
	AddPass(p Pass) error

	// Pass returns the named pass, or nil.
	Pass(name string) Pass

	// Passes returns the passes in declaration order.
	Passes() []Pass

	// RemovePass removes the named pass, reporting whether it existed.
	RemovePass(name string) bool

	// Enabled reports whether FlushStages runs the stage.
	Enabled() bool

	// SetEnabled toggles the stage without removing it.
	SetEnabled(enabled bool)

	// Flush fetches and flushes every pass in declaration order. A failing pass does not
	// stop the passes after it.
	//
	// Parameters:
	//   - ctx: the device context to record into
	//   - table: the resource table slot bindings are resolved in
	//
	// Returns:
	//   - error: every pass failure, combined
	Flush(ctx device.Context, table *resource.Table) error

	// Stats returns the statistics of the last Flush.
	Stats() Stats
}

var _ Stage = &stage{}

// NewStage creates an enabled stage.
//
// Parameters:
//   - name: the stage name
//   - opts: builder options
//
// Returns:
//   - Stage: the configured stage
func NewStage(name string, opts ...StageBuilderOption) Stage {
	s := &stage{
		name:    name,
		enabled: true,
		logger:  common.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *stage) Name() string {
	return s.name
}

func (s *stage) AddPass(p Pass) error {
	if s.Pass(p.Name()) != nil {
		return fmt.Errorf("%w: %q in stage %q", ErrDuplicatePass, p.Name(), s.name)
	}
	s.passes = append(s.passes, p)
	return nil
}

func (s *stage) Pass(name string) Pass {
	for _, p := range s.passes {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func (s *stage) Passes() []Pass {
	return slices.Clone(s.passes)
}

func (s *stage) RemovePass(name string) bool {
	i := slices.IndexFunc(s.passes, func(p Pass) bool { return p.Name() == name })
	if i < 0 {
		return false
	}
	s.passes = slices.Delete(s.passes, i, i+1)
	return true
}

func (s *stage) Enabled() bool {
	return s.enabled
}

func (s *stage) SetEnabled(enabled bool) {
	s.enabled = enabled
}

func (s *stage) Flush(ctx device.Context, table *resource.Table) error {
	start := time.Now()
	s.stats = Stats{Stages: 1}

	var errs error
	for _, p := range s.passes {
		if err := p.FetchResources(table); err != nil {
			s.logger.Warn("pass has mismatched bindings",
				zap.String("stage", s.name),
				zap.String("pass", p.Name()),
				zap.Error(err))
		}
		s.stats.Passes++
		if err := p.Flush(ctx); err != nil {
			s.stats.Failed++
			errs = multierr.Append(errs, fmt.Errorf("stage %q: %w", s.name, err))
		}
	}

	s.stats.Duration = time.Since(start)
	return errs
}

func (s *stage) Stats() Stats {
	return s.stats
}

// StageBuilderOption configures a stage created by NewStage.
type StageBuilderOption func(*stage)

// WithPasses appends passes to the stage. Duplicate names panic.
func WithPasses(passes ...Pass) StageBuilderOption {
	return func(s *stage) {
		for _, p := range passes {
			if err := s.AddPass(p); err != nil {
				panic(err)
			}
		}
	}
}

// WithStageLogger sets the logger used by the stage.
func WithStageLogger(logger *zap.Logger) StageBuilderOption {
	return func(s *stage) {
		if logger != nil {
			s.logger = logger
		}
	}
}
