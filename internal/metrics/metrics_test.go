package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"portmsg/internal/metrics"
)

func TestObserveExchange(t *testing.T) {
	m := metrics.New()
	m.ObserveExchange(metrics.OutcomeReply, 3*time.Millisecond)
	m.ObserveExchange(metrics.OutcomeReply, 4*time.Millisecond)
	m.ObserveExchange(metrics.OutcomeRejected, 0)

	body := scrape(t, m)
	for _, want := range []string{
		`portmsg_exchanges_total{outcome="reply"} 2`,
		`portmsg_exchanges_total{outcome="rejected"} 1`,
		`portmsg_exchange_duration_seconds_count 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %q\n%s", want, body)
		}
	}
}

func TestServerCollectors(t *testing.T) {
	m := metrics.New()
	m.MessageHandled(metrics.MessageDispatched)
	m.MessageHandled(metrics.MessageDispatched)
	m.MessageHandled(metrics.MessageSentinel)
	m.ReceiveError()
	m.SetServerState(2)

	if n, err := testutil.GatherAndCount(m.Registry(), "portmsg_server_messages_total"); err != nil || n != 2 {
		t.Fatalf("expected 2 message series, got %d (%v)", n, err)
	}
	body := scrape(t, m)
	for _, want := range []string{
		`portmsg_server_messages_total{kind="dispatched"} 2`,
		`portmsg_server_receive_errors_total 1`,
		`portmsg_server_state 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveExchange(metrics.OutcomeTimeout, time.Millisecond)
	m.MessageHandled(metrics.MessageDispatched)
	m.ReceiveError()
	m.SetServerState(1)
	if m.Registry() != nil {
		t.Fatal("expected nil registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil handler, got %d", rec.Code)
	}
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read scrape: %v", err)
	}
	return string(data)
}
