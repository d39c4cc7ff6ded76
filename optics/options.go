package optics

// Option configures a Simulate or Retrieve call.
type Option func(*options)

type options struct {
	propagator Propagator
	observer   func(iteration int, relErr float64)
}

// WithMethod selects the propagation model. The default is MethodAuto.
func WithMethod(m Method) Option {
	return func(o *options) { o.propagator.Method = m }
}

// WithWorkers splits each FFT pass across n goroutines.
func WithWorkers(n int) Option {
	return func(o *options) { o.propagator.Workers = n }
}

// WithObserver registers a callback invoked after every retrieval iteration
// with the relative intensity error of that iteration's trial field.
func WithObserver(fn func(iteration int, relErr float64)) Option {
	return func(o *options) { o.observer = fn }
}

func gatherOptions(opts []Option) options {
	o := options{propagator: Propagator{Method: MethodAuto, Workers: 1}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
