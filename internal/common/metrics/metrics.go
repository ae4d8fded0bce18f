// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_turns_processed_total",
			Help: "Total number of dialog turns processed",
		},
		[]string{"intent", "status"},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_turns_failed_total",
			Help: "Total number of dialog turns that ended in error",
		},
		[]string{"intent", "error_code"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "agent_turn_duration_seconds",
			Help: "Duration of dialog turn processing in seconds",
		},
		[]string{"intent"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_llm_calls_total",
			Help: "Total number of language model calls by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "agent_llm_call_duration_seconds",
			Help: "Duration of language model calls in seconds",
		},
		[]string{"purpose"},
	)

	ActionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_actions_executed_total",
			Help: "Total number of confirmed business actions executed",
		},
		[]string{"action", "entity", "status"},
	)

	SessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_sessions_pending",
			Help: "Number of sessions currently holding a pending action",
		},
		[]string{"intent"},
	)
)
