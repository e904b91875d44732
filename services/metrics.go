package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travelplanner_provider_requests_total",
		Help: "Search provider calls by engine and outcome",
	}, []string{"engine", "outcome"})

	providerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "travelplanner_provider_request_duration_seconds",
		Help:    "Search provider call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine"})

	modelAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travelplanner_llm_attempts_total",
		Help: "Itinerary model attempts by model and outcome",
	}, []string{"model", "outcome"})

	emailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travelplanner_emails_total",
		Help: "Itinerary emails by outcome",
	}, []string{"outcome"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
