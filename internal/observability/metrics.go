// Package observability exposes the Prometheus metrics of the coaching
// service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	inboundEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repcoach",
		Subsystem: "inbound",
		Name:      "events_total",
		Help:      "Inbound messages handled, by routing branch.",
	}, []string{"branch"})
	inboundFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repcoach",
		Subsystem: "inbound",
		Name:      "branch_failures_total",
		Help:      "Inbound messages answered with the apology, by routing branch.",
	}, []string{"branch"})
	inboundDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "repcoach",
		Subsystem: "inbound",
		Name:      "duplicates_total",
		Help:      "Inbound deliveries dropped because their message id was already handled.",
	})
	dialogueTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repcoach",
		Subsystem: "dialogue",
		Name:      "transitions_total",
		Help:      "Exercise confirmation dialogue transitions, by resulting action.",
	}, []string{"action"})
	recordsAchieved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repcoach",
		Subsystem: "records",
		Name:      "achieved_total",
		Help:      "Personal records set, by record type.",
	}, []string{"type"})
	outboundChunks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repcoach",
		Subsystem: "outbound",
		Name:      "chunks_total",
		Help:      "Outbound message chunks delivered, by carrier and result.",
	}, []string{"carrier", "result"})
	analysisDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "repcoach",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Latency of analysis collaborator calls, by operation.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(inboundEvents, inboundFailures, inboundDuplicates, dialogueTransitions,
		recordsAchieved, outboundChunks, analysisDuration)
}

// RecordInbound counts one handled inbound event.
func RecordInbound(branch string) {
	inboundEvents.WithLabelValues(branch).Inc()
}

// RecordBranchFailure counts one branch that degraded to the apology reply.
func RecordBranchFailure(branch string) {
	inboundFailures.WithLabelValues(branch).Inc()
}

// RecordDuplicate counts one dropped duplicate delivery.
func RecordDuplicate() {
	inboundDuplicates.Inc()
}

// RecordDialogue counts one confirmation dialogue action.
func RecordDialogue(action string) {
	dialogueTransitions.WithLabelValues(action).Inc()
}

// RecordPersonalRecord counts one newly set personal record.
func RecordPersonalRecord(recordType string) {
	recordsAchieved.WithLabelValues(recordType).Inc()
}

// RecordOutboundChunk counts one outbound chunk delivery attempt outcome.
func RecordOutboundChunk(carrier string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	outboundChunks.WithLabelValues(carrier, result).Inc()
}

// ObserveAnalysis records the latency of one analysis call.
func ObserveAnalysis(operation string, seconds float64) {
	analysisDuration.WithLabelValues(operation).Observe(seconds)
}
