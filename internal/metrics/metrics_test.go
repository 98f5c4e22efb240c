package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsIsShared(t *testing.T) {
	if NewMetrics() != NewMetrics() {
		t.Fatal("NewMetrics() returned distinct instances")
	}
}

func TestObserveConversion(t *testing.T) {
	m := NewMetrics()
	before := testutil.ToFloat64(m.ConversionTotal.WithLabelValues("to_parsed", "AUTHORITY", "error"))

	m.ObserveConversion("to_parsed", "AUTHORITY", time.Now(), errors.New("boom"))

	after := testutil.ToFloat64(m.ConversionTotal.WithLabelValues("to_parsed", "AUTHORITY", "error"))
	if after-before != 1 {
		t.Errorf("conversion error count grew by %v, want 1", after-before)
	}
}

func TestObserveStorageLabelsSuccess(t *testing.T) {
	m := NewMetrics()
	before := testutil.ToFloat64(m.StorageOperationTotal.WithLabelValues("get", "success"))
	m.ObserveStorage("get", time.Now(), nil)
	if got := testutil.ToFloat64(m.StorageOperationTotal.WithLabelValues("get", "success")); got-before != 1 {
		t.Errorf("storage success count grew by %v, want 1", got-before)
	}
}
