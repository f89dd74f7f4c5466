// Package metrics stellt die Prometheus-Metriken der Anwendung bereit.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ergebniswerte für die Label "outcome"
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeNoFace       = "no_face"
	OutcomeError        = "error"
)

// Metrics enthält alle Metriken für Registrierung, Erkennung, Training und Fragen.
// Ein nil-*Metrics ist gültig und zeichnet nichts auf.
type Metrics struct {
	Registrations     *prometheus.CounterVec
	Recognitions      *prometheus.CounterVec
	RecognizedFaces   *prometheus.CounterVec
	Queries           *prometheus.CounterVec
	RetrainDuration   prometheus.Histogram
	TrainingSamples   prometheus.Gauge
	AnswerDuration    prometheus.Histogram
	GeneratorFallback prometheus.Counter
	registry          *prometheus.Registry
}

// New erstellt die Metriken und registriert sie an der übergebenen Registry
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register facerag metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.Registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facerag_registrations_total",
		Help: "Total number of face registrations by outcome.",
	}, []string{"outcome"})

	m.Recognitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facerag_recognitions_total",
		Help: "Total number of recognition requests by outcome.",
	}, []string{"outcome"})

	m.RecognizedFaces = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facerag_recognized_faces_total",
		Help: "Total number of detected face regions by result.",
	}, []string{"result"})

	m.Queries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facerag_queries_total",
		Help: "Total number of questions by outcome.",
	}, []string{"outcome"})

	m.RetrainDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "facerag_retrain_duration_seconds",
		Help:    "Duration of full model retrains in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	m.TrainingSamples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "facerag_training_samples",
		Help: "Number of samples used by the current model.",
	})

	m.AnswerDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "facerag_answer_duration_seconds",
		Help:    "Duration of question answering in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	m.GeneratorFallback = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "facerag_generator_fallback_total",
		Help: "Total number of answers produced by the local fallback model.",
	})
}

// Describe implementiert prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Registrations.Describe(ch)
	m.Recognitions.Describe(ch)
	m.RecognizedFaces.Describe(ch)
	m.Queries.Describe(ch)
	m.RetrainDuration.Describe(ch)
	m.TrainingSamples.Describe(ch)
	m.AnswerDuration.Describe(ch)
	m.GeneratorFallback.Describe(ch)
}

// Collect implementiert prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Registrations.Collect(ch)
	m.Recognitions.Collect(ch)
	m.RecognizedFaces.Collect(ch)
	m.Queries.Collect(ch)
	m.RetrainDuration.Collect(ch)
	m.TrainingSamples.Collect(ch)
	m.AnswerDuration.Collect(ch)
	m.GeneratorFallback.Collect(ch)
}

// RecordRegistration zählt eine Registrierung
func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

// RecordRecognition zählt eine Erkennungsanfrage
func (m *Metrics) RecordRecognition(outcome string) {
	if m == nil {
		return
	}
	m.Recognitions.WithLabelValues(outcome).Inc()
}

// RecordFace zählt eine erkannte Region ("known" oder "unknown")
func (m *Metrics) RecordFace(known bool) {
	if m == nil {
		return
	}
	result := "unknown"
	if known {
		result = "known"
	}
	m.RecognizedFaces.WithLabelValues(result).Inc()
}

// RecordQuery zählt eine Frage
func (m *Metrics) RecordQuery(outcome string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(outcome).Inc()
}

// ObserveRetrain erfasst Dauer und Stichprobenzahl eines Trainings
func (m *Metrics) ObserveRetrain(d time.Duration, samples int) {
	if m == nil {
		return
	}
	m.RetrainDuration.Observe(d.Seconds())
	m.TrainingSamples.Set(float64(samples))
}

// ObserveAnswer erfasst die Dauer einer Antwort
func (m *Metrics) ObserveAnswer(d time.Duration) {
	if m == nil {
		return
	}
	m.AnswerDuration.Observe(d.Seconds())
}

// IncrementFallback zählt eine Antwort des lokalen Modells
func (m *Metrics) IncrementFallback() {
	if m == nil {
		return
	}
	m.GeneratorFallback.Inc()
}
