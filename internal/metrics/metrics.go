package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the client-side counters. Each instance owns its registry
// so tests and multiple clients do not collide.
type Metrics struct {
	Registry         *prometheus.Registry
	MessagesSent     prometheus.Counter
	SendFailures     *prometheus.CounterVec
	Uploads          *prometheus.CounterVec
	ThreadsCreated   prometheus.Counter
	SnapshotsApplied *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dmclient_messages_sent_total",
			Help: "Messages appended to a thread",
		}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmclient_send_failures_total",
			Help: "Failed sends by step",
		}, []string{"step"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmclient_uploads_total",
			Help: "Image uploads by result",
		}, []string{"result"}),
		ThreadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dmclient_threads_created_total",
			Help: "Threads created",
		}),
		SnapshotsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmclient_snapshots_applied_total",
			Help: "Live snapshots applied to local state by stream",
		}, []string{"stream"}),
	}
	m.Registry.MustRegister(m.MessagesSent, m.SendFailures, m.Uploads, m.ThreadsCreated, m.SnapshotsApplied)
	return m
}

// Push sends the current values to a Pushgateway. A no-op without a URL.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(m.Registry).PushContext(ctx)
}
