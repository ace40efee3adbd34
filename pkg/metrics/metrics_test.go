package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry(t *testing.T) {
	if Registry == nil || Gatherer == nil {
		t.Fatal("Registry and Gatherer should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestGatherer_ExposesRegisteredMetrics(t *testing.T) {
	SwallowedErrors.WithLabelValues(SourcePersist).Inc()

	families, err := Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "pinger_swallowed_errors_total" {
			return
		}
	}
	t.Error("pinger_swallowed_errors_total not gathered")
}

func TestSwallowedErrors(t *testing.T) {
	before := testutil.ToFloat64(SwallowedErrors.WithLabelValues(SourceDetector))
	SwallowedErrors.WithLabelValues(SourceDetector).Inc()
	after := testutil.ToFloat64(SwallowedErrors.WithLabelValues(SourceDetector))

	if after-before != 1 {
		t.Errorf("SwallowedErrors delta = %v, want 1", after-before)
	}
}
