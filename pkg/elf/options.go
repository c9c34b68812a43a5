package elf

import "github.com/go-kit/log"

// Option configures a Parse call.
type Option func(*options)

type options struct {
	logger  log.Logger
	metrics *Metrics
	notes   bool // decode note segments
}

func defaultOptions() options {
	return options{
		logger: log.NewNopLogger(),
		notes:  true,
	}
}

// WithLogger logs the offset of every decoded structure at debug level.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records parse outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithNotes controls whether note segments are decoded. Enabled by default.
func WithNotes(decode bool) Option {
	return func(o *options) {
		o.notes = decode
	}
}
