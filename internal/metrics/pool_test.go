package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPoolCollector_DescribeEmitsEveryDescriptor(t *testing.T) {
	collector := NewPoolCollector(nil)

	ch := make(chan *prometheus.Desc, 20)
	collector.Describe(ch)
	close(ch)

	count := 0
	for range ch {
		count++
	}
	if count != 8 {
		t.Errorf("descriptor count: got %d, want 8", count)
	}
}

func TestPoolCollector_CollectWithoutPools(t *testing.T) {
	for name, pools := range map[string]map[string]*pgxpool.Pool{"nil": nil, "empty": {}} {
		collector := NewPoolCollector(pools)
		ch := make(chan prometheus.Metric, 20)
		collector.Collect(ch)
		close(ch)
		if n := len(ch); n != 0 {
			t.Errorf("%s pools: got %d metrics, want 0", name, n)
		}
	}
}

func TestObserveOperation(t *testing.T) {
	counter := operationsTotal.WithLabelValues("create_sheet", ResultOK)
	before := testutil.ToFloat64(counter)

	ObserveOperation("create_sheet", ResultOK, 3*time.Millisecond)

	if delta := testutil.ToFloat64(counter) - before; delta != 1 {
		t.Errorf("operations_total delta: got %f, want 1", delta)
	}
}

func TestObserveMigration(t *testing.T) {
	counter := migrationsTotal.WithLabelValues("legacy_sheets_map")
	before := testutil.ToFloat64(counter)

	ObserveMigration("legacy_sheets_map")

	if delta := testutil.ToFloat64(counter) - before; delta != 1 {
		t.Errorf("migrations_total delta: got %f, want 1", delta)
	}
}

func TestObserveStoreCall_LabelsErrors(t *testing.T) {
	ObserveStoreCall("memory", "read", errors.New("boom"), time.Millisecond)
	ObserveStoreCall("memory", "read", nil, time.Millisecond)

	if n := testutil.CollectAndCount(storeCalls); n < 2 {
		t.Errorf("store call series: got %d, want >= 2", n)
	}
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("postgres", 1)
	if v := testutil.ToFloat64(breakerState.WithLabelValues("postgres")); v != 1 {
		t.Errorf("breaker_state: got %f, want 1", v)
	}
}
