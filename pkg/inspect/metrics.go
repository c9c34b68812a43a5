package inspect

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type metrics struct {
	files     *prometheus.CounterVec
	cacheHits prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elfinspect_files_total",
			Help: "Number of files inspected by status.",
		}, []string{"status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elfinspect_cache_hits_total",
			Help: "Number of files whose parse result was served from the cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.files, m.cacheHits)
	}
	return m
}
