package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RemoteFailures   *prometheus.CounterVec
	MessagesSent     prometheus.Counter
	AnswersFailed    prometheus.Counter
	Reconciliations  *prometheus.CounterVec
	Reconstructions  *prometheus.CounterVec
	StateWrites      *prometheus.CounterVec
	PromptsPersisted *prometheus.CounterVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			RemoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "workspace",
				Name:      "remote_failures_total",
				Help:      "Failed calls to the backend and llm services",
			}, []string{"client", "op"}),
			MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "workspace",
				Name:      "messages_sent_total",
				Help:      "Questions forwarded to the llm service",
			}),
			AnswersFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "workspace",
				Name:      "answers_failed_total",
				Help:      "Questions that ended with an error reply",
			}),
			Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "workspace",
				Name:      "session_reconciliations_total",
				Help:      "Document list refreshes against the llm service",
			}, []string{"result"}),
			Reconstructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "workspace",
				Name:      "history_reconstructions_total",
				Help:      "Conversation rebuilds from prompt history",
			}, []string{"result"}),
			StateWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "workspace",
				Name:      "state_writes_total",
				Help:      "Session state persistence writes",
			}, []string{"result"}),
			PromptsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "workspace",
				Name:      "prompts_persisted_total",
				Help:      "Prompt history records handed to the backend",
			}, []string{"result"}),
		}
		prometheus.MustRegister(
			global.RemoteFailures,
			global.MessagesSent,
			global.AnswersFailed,
			global.Reconciliations,
			global.Reconstructions,
			global.StateWrites,
			global.PromptsPersisted,
		)
	})
	return global
}
