// Package metrics exposes Prometheus collectors for the sync engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Appends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supportdesk_appends_total",
		Help: "Messages confirmed by the store.",
	}, []string{"role", "visibility"})

	AppendRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supportdesk_append_rejections_total",
		Help: "Append attempts rejected, by error code.",
	}, []string{"code"})

	Polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supportdesk_polls_total",
		Help: "pollSince calls served, by caller role.",
	}, []string{"role"})

	Delivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "supportdesk_messages_delivered_total",
		Help: "Messages returned by pollSince.",
	})

	PresenceWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supportdesk_presence_writes_total",
		Help: "Presence heartbeats recorded, by kind.",
	}, []string{"kind"})

	PresenceErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "supportdesk_presence_errors_total",
		Help: "Presence reads or writes that failed and were ignored.",
	})

	NotifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "supportdesk_notify_failures_total",
		Help: "Outbound notifications that could not be published.",
	})

	BlobErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supportdesk_blob_errors_total",
		Help: "Attachment cleanups that failed after the message change was kept, by operation.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(Appends, AppendRejections, Polls, Delivered, PresenceWrites, PresenceErrors, NotifyFailures, BlobErrors)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
