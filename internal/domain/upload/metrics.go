package upload

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Upload outcomes and retrieval sources used as metric labels.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeAborted  = "aborted"

	SourceLocal    = "local"
	SourceProxied  = "proxied"
	SourceRedirect = "redirect"
	SourceNotFound = "not_found"
	SourceError    = "error"
)

// Observer captures pipeline telemetry.
type Observer interface {
	RecordUpload(role Role, outcome string, sizeBytes int64)
	RecordRetrieval(category, source string)
}

type NopObserver struct{}

func (NopObserver) RecordUpload(Role, string, int64) {}
func (NopObserver) RecordRetrieval(string, string) {}

type PrometheusObserver struct {
	uploads    *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	retrievals *prometheus.CounterVec
}

func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "novelistan"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploaded file parts by role and outcome.",
		}, []string{"role", "outcome"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes of accepted uploads by role.",
		}, []string{"role"}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_retrievals_total",
			Help:      "File reads by category and the source that answered.",
		}, []string{"category", "source"}),
	}

	var err error
	if o.uploads, err = registerCounterVec(reg, o.uploads); err != nil {
		return nil, err
	}
	if o.bytes, err = registerCounterVec(reg, o.bytes); err != nil {
		return nil, err
	}
	if o.retrievals, err = registerCounterVec(reg, o.retrievals); err != nil {
		return nil, err
	}
	return o, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register upload metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordUpload(role Role, outcome string, sizeBytes int64) {
	o.uploads.WithLabelValues(string(role), outcome).Inc()
	if outcome == OutcomeAccepted && sizeBytes > 0 {
		o.bytes.WithLabelValues(string(role)).Add(float64(sizeBytes))
	}
}

func (o *PrometheusObserver) RecordRetrieval(category, source string) {
	o.retrievals.WithLabelValues(category, source).Inc()
}
