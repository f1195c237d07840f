package diagnostics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink counts collation events.
type PrometheusSink struct {
	batches         prometheus.Counter
	examples        prometheus.Counter
	unknownFields   *prometheus.CounterVec
	stackedElements *prometheus.CounterVec
}

// NewPrometheusSink creates the collectors and registers them on reg.
func NewPrometheusSink(reg prometheus.Registerer, namespace string) (*PrometheusSink, error) {
	s := &PrometheusSink{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collated_batches_total",
			Help:      "Total number of successfully collated batches",
		}),
		examples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collated_examples_total",
			Help:      "Total number of examples in successfully collated batches",
		}),
		unknownFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_fields_total",
			Help:      "Number of batches in which an auxiliary field was discovered",
		}, []string{"field"}),
		stackedElements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stacked_elements_total",
			Help:      "Number of per-example auxiliary values stacked",
		}, []string{"field"}),
	}
	var errs []error
	for _, c := range []prometheus.Collector{s.batches, s.examples, s.unknownFields, s.stackedElements} {
		errs = append(errs, reg.Register(c))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PrometheusSink) UnknownFields(names []string) {
	for _, name := range names {
		s.unknownFields.WithLabelValues(name).Inc()
	}
}

func (s *PrometheusSink) FieldStacked(field string, shapes [][]int) {
	s.stackedElements.WithLabelValues(field).Add(float64(len(shapes)))
}

func (s *PrometheusSink) BatchCollated(size int, _ []string) {
	s.batches.Inc()
	s.examples.Add(float64(size))
}
