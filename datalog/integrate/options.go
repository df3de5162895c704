package integrate

import (
	"github.com/wbrown/janus-provenance/datalog/annotations"
	"github.com/wbrown/janus-provenance/datalog/executor"
)

// Options configures a Context
type Options struct {
	// Workers is the number of goroutines evaluating the rule tasks of one
	// round. 0 or 1 evaluates sequentially.
	Workers int

	// MaxIterations bounds the rounds per stratum, 0 for no bound
	MaxIterations int

	// Handler receives evaluation events. nil disables annotations.
	Handler annotations.Handler
}

// Option modifies Options
type Option func(*Options)

// WithWorkers sets the number of evaluation goroutines
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithMaxIterations bounds the rounds per stratum
func WithMaxIterations(n int) Option {
	return func(o *Options) {
		o.MaxIterations = n
	}
}

// WithHandler routes evaluation events to h
func WithHandler(h annotations.Handler) Option {
	return func(o *Options) {
		o.Handler = h
	}
}

func buildOptions(opts []Option) Options {
	o := Options{Workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Options) executorOptions() executor.Options {
	return executor.Options{
		Workers:       o.Workers,
		MaxIterations: o.MaxIterations,
	}
}
