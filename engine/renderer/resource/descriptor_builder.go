package resource

// DescriptorBuilderOption is a functional option applied to a Descriptor during NewDescriptor.
type DescriptorBuilderOption func(*Descriptor)

// WithRef points a reference slot at another entry by name.
//
// Parameters:
//   - slot: one of the Ref* slot indices
//   - name: the referenced entry's interned name
//
// Returns:
//   - DescriptorBuilderOption: option function to apply
func WithRef(slot int, name Name) DescriptorBuilderOption {
	return func(d *Descriptor) {
		if d.refs == nil {
			d.refs = make(map[int]Name)
		}
		d.refs[slot] = name
	}
}

// WithExternal marks the descriptor as host-injected. The factory never builds external entries.
//
// Returns:
//   - DescriptorBuilderOption: option function to apply
func WithExternal() DescriptorBuilderOption {
	return func(d *Descriptor) {
		d.external = true
	}
}

// WithPayload attaches initial data uploaded when the resource is created.
//
// Parameters:
//   - p: the payload
//
// Returns:
//   - DescriptorBuilderOption: option function to apply
func WithPayload(p Payload) DescriptorBuilderOption {
	return func(d *Descriptor) {
		d.payload = &p
	}
}
