package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set holds the daemon's counters. All streaming-path instrumentation goes
// through here so the server package does not touch the registry directly.
type Set struct {
	SessionsAccepted prometheus.Counter
	RecordsSent      prometheus.Counter
	SendFailures     prometheus.Counter
	PollsWithoutFix  prometheus.Counter
}

// NewSet registers the daemon's counters on the given registerer.
func NewSet(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)

	return &Set{
		SessionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gpslinkd_sessions_accepted_total",
			Help: "Peer connections accepted since daemon start.",
		}),
		RecordsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "gpslinkd_records_sent_total",
			Help: "Telemetry records written to peers.",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "gpslinkd_send_failures_total",
			Help: "Writes that failed and ended a session.",
		}),
		PollsWithoutFix: factory.NewCounter(prometheus.CounterOpts{
			Name: "gpslinkd_polls_without_fix_total",
			Help: "Poll cycles where no valid fix was available.",
		}),
	}
}
