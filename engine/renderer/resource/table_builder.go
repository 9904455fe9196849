package resource

import "go.uber.org/zap"

// TableBuilderOption is a functional option applied to a Table during NewTable.
type TableBuilderOption func(*Table)

// WithLogger sets the logger used for per-entry build diagnostics.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - TableBuilderOption: option function to apply
func WithLogger(l *zap.Logger) TableBuilderOption {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}
