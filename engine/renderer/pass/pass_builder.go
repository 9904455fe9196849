package pass

import "github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"

// PassBuilderOption configures a pass created by NewPass. Options that bind or add slots
// panic on invalid names, since pass layouts are static setup code.
type PassBuilderOption func(*pass)

// WithBinding binds a static or dynamic slot to a resource name.
func WithBinding(slotName, resourceName string) PassBuilderOption {
	return func(p *pass) {
		if err := p.BindResource(slotName, resourceName); err != nil {
			panic(err)
		}
	}
}

// WithSlot adds a dynamic slot bound to an effect parameter key.
func WithSlot(slotName string, kind resource.Kind, key string) PassBuilderOption {
	return func(p *pass) {
		if err := p.AddResourceSlot(slotName, kind, key); err != nil {
			panic(err)
		}
	}
}

// WithDraw sets the draw issued when the Primitive slot is empty.
func WithDraw(params resource.PrimitiveParams) PassBuilderOption {
	return func(p *pass) {
		p.draw = params
	}
}
