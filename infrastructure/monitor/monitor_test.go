package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauges(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordSubmitted()
	m.RecordExecuted("buy")
	m.RecordExecuted("buy")
	m.RecordExecuted("sell")
	m.RecordFailure("insufficient_funds")
	m.RecordInterest(30.5)
	m.RecordInterest(-1)
	m.RecordLoanRepaid(2)
	m.UpdateAccount(AccountSnapshot{Cycle: 7, Cash: 9497.5, Debt: 1000, CreditScore: 52, PendingOrders: 3})
	m.ObserveCycle(2 * time.Millisecond)

	if got := testutil.ToFloat64(m.ordersSubmitted); got != 1 {
		t.Errorf("submitted = %v", got)
	}
	if got := testutil.ToFloat64(m.ordersExecuted.WithLabelValues("buy")); got != 2 {
		t.Errorf("executed buy = %v", got)
	}
	if got := testutil.ToFloat64(m.interestCharged); got != 30.5 {
		t.Errorf("interest = %v", got)
	}
	if got := testutil.ToFloat64(m.loansRepaid); got != 2 {
		t.Errorf("repaid = %v", got)
	}
	if got := testutil.ToFloat64(m.cash); got != 9497.5 {
		t.Errorf("cash = %v", got)
	}
	if got := testutil.ToFloat64(m.pendingOrders); got != 3 {
		t.Errorf("pending = %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(Config{Namespace: "t", Subsystem: "e"})
	m.RecordExpired()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "t_e_orders_expired_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}

func TestNilMonitorIsSafe(t *testing.T) {
	var m *Monitor
	m.RecordSubmitted()
	m.RecordExecuted("buy")
	m.UpdateAccount(AccountSnapshot{})
	m.ObserveCycle(time.Second)
	if m.Registry() != nil {
		t.Errorf("nil monitor should have no registry")
	}
}
