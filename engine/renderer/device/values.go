package device

import "github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"

// Primitive is the realized form of a Primitive descriptor. It carries no backend object.
type Primitive struct {
	Params resource.PrimitiveParams
}

func (*Primitive) Kind() resource.Kind {
	return resource.KindPrimitive
}

// Viewport is the realized form of a ViewportState descriptor. It carries no backend object.
type Viewport struct {
	Params resource.ViewportParams
}

func (*Viewport) Kind() resource.Kind {
	return resource.KindViewportState
}
