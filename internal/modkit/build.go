package modkit

// Option adjusts how a module is built
type Option func(*Built)

// Built is the result of applying Options. Ports holds whatever WithPorts
// injected; the importing module decides its type
type Built struct {
	Name  string
	Ports any
}

// WithName overrides the module name used in logs and the registry
func WithName(name string) Option { return func(b *Built) { b.Name = name } }

// WithPorts injects collaborators the module would otherwise build itself
func WithPorts[T any](p T) Option { return func(b *Built) { b.Ports = p } }

// Build applies opts in order, skipping nils, so the last one wins
func Build(opts ...Option) Built {
	var b Built
	for _, o := range opts {
		if o != nil {
			o(&b)
		}
	}
	return b
}

// Injected returns the ports injected with WithPorts when they are a T
func Injected[T any](b Built) (T, bool) {
	v, ok := b.Ports.(T)
	return v, ok
}
