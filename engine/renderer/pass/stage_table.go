package pass

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"go.uber.org/multierr"
)

// StageTable holds the stages of a frame in insertion order.
type StageTable struct {
	stages []Stage
	stats  Stats
}

// NewStageTable creates an empty stage table.
func NewStageTable() *StageTable {
	return &StageTable{}
}

// AddStage appends a stage.
//
// Parameters:
//   - s: the stage to append
//
// Returns:
//   - error: ErrDuplicateStage if a stage of that name exists
func (t *StageTable) AddStage(s Stage) error {
	if t.index(s.Name()) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateStage, s.Name())
	}
	t.stages = append(t.stages, s)
	return nil
}

// Stage returns the named stage, or nil.
func (t *StageTable) Stage(name string) Stage {
	if i := t.index(name); i >= 0 {
		return t.stages[i]
	}
	return nil
}

// RemoveStage removes the named stage.
//
// Parameters:
//   - name: the stage name
//
// Returns:
//   - error: ErrUnknownStage if no stage has that name
func (t *StageTable) RemoveStage(name string) error {
	i := t.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	t.stages = slices.Delete(t.stages, i, i+1)
	return nil
}

// MoveStage moves the named stage to position index, shifting the stages in between.
// An index past the end moves the stage last.
//
// Parameters:
//   - name: the stage name
//   - index: the new position
//
// Returns:
//   - error: ErrUnknownStage if no stage has that name
func (t *StageTable) MoveStage(name string, index int) error {
	i := t.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	s := t.stages[i]
	t.stages = slices.Delete(t.stages, i, i+1)
	index = min(max(index, 0), len(t.stages))
	t.stages = slices.Insert(t.stages, index, s)
	return nil
}

// Stages returns the stages in execution order.
func (t *StageTable) Stages() []Stage {
	return slices.Clone(t.stages)
}

// Len returns the number of stages.
func (t *StageTable) Len() int {
	return len(t.stages)
}

// FlushStages flushes every enabled stage in order. A failing stage does not stop the
// stages after it.
//
// Parameters:
//   - ctx: the device context to record into
//   - table: the resource table slot bindings are resolved in
//
// Returns:
//   - error: every stage failure, combined
func (t *StageTable) FlushStages(ctx device.Context, table *resource.Table) error {
	var errs error
	t.stats = Stats{}
	for _, s := range t.stages {
		if !s.Enabled() {
			t.stats.Skipped++
			continue
		}
		errs = multierr.Append(errs, s.Flush(ctx, table))
		t.stats = t.stats.Add(s.Stats())
	}
	return errs
}

// Stats returns the statistics of the last FlushStages.
func (t *StageTable) Stats() Stats {
	return t.stats
}

func (t *StageTable) index(name string) int {
	return slices.IndexFunc(t.stages, func(s Stage) bool { return s.Name() == name })
}
