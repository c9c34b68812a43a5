package elf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const resultOK = "ok"

// Metrics counts parse outcomes. A nil *Metrics records nothing.
type Metrics struct {
	parses       *prometheus.CounterVec
	duration     prometheus.Histogram
	notesDecoded prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elf_parse_total",
			Help: "Number of ELF parse calls by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "elf_parse_duration_seconds",
			Help:    "Time spent parsing ELF headers.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		notesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elf_notes_decoded_total",
			Help: "Number of notes decoded from note segments.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.parses, m.duration, m.notesDecoded)
	}
	return m
}

func (m *Metrics) observe(start time.Time, f *File, err error) {
	if m == nil {
		return
	}
	result := resultOK
	if err != nil {
		result = KindOf(err).label()
	}
	m.parses.WithLabelValues(result).Inc()
	m.duration.Observe(time.Since(start).Seconds())
	if f != nil {
		m.notesDecoded.Add(float64(len(f.Notes)))
	}
}
