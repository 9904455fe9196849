package device

import "go.uber.org/multierr"

// PushState pushes the blend, depth and raster state of ctx and returns the function
// that pops them again in reverse order. Callers defer it so the state is restored on
// every exit path.
//
// Parameters:
//   - ctx: the context whose state is saved
//
// Returns:
//   - func() error: pops the three states, returning any underflow errors combined
func PushState(ctx Context) func() error {
	ctx.PushBlendState()
	ctx.PushDepthState()
	ctx.PushRasterState()
	return func() error {
		var err error
		err = multierr.Append(err, ctx.PopRasterState())
		err = multierr.Append(err, ctx.PopDepthState())
		err = multierr.Append(err, ctx.PopBlendState())
		return err
	}
}
