package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.MessagesSent.Inc()
	m.SendFailures.WithLabelValues("upload").Inc()
	m.SendFailures.WithLabelValues("upload").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesSent))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SendFailures.WithLabelValues("upload")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ThreadsCreated))
}

func TestPush(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.MessagesSent.Inc()
	require.NoError(t, m.Push(context.Background(), srv.URL, "dmclient"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/dmclient", path)

	assert.NoError(t, m.Push(context.Background(), "", "dmclient"))
}
