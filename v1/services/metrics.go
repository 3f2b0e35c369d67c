package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_submissions_total",
		Help: "Submissions processed, by submitter kind and outcome",
	}, []string{"kind", "outcome"})

	ledgerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_ledger_transitions_total",
		Help: "Ledger status transitions applied",
	}, []string{"status"})

	storageFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_storage_fallback_total",
		Help: "Attachment uploads that fell back to the raw storage API",
	}, []string{"bucket"})

	schemaDriftRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_schema_drift_retries_total",
		Help: "Writes retried with alternate column or label names",
	}, []string{"table"})
)
