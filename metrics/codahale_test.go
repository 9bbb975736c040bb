package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
)

func TestUseVoidByDefault(t *testing.T) {
	if Default != Void {
		t.Error("Default metrics should be the void backend")
	}

	c, ok := Default.(*CodaHale)
	if !ok {
		t.Fatal("Default metrics backend should be CodaHale")
	}

	switch c.getTimer("scheduler.cycle").(type) {
	case metrics.NilTimer:
	default:
		t.Error("Able to get a metric timer from the void backend")
	}

	switch c.getCounter("scheduler.requests.started").(type) {
	case metrics.NilCounter:
	default:
		t.Error("Able to get a metric counter from the void backend")
	}
}

func TestCodaHaleDefaultOptions(t *testing.T) {
	c := NewCodaHale(Options{})
	defer c.Close()

	if c.reg.Get("debug.GCStats.LastGC") != nil {
		t.Error("Default options should not enable debug gc stats")
	}

	if c.reg.Get("runtime.MemStats.Alloc") != nil {
		t.Error("Default options should not enable runtime stats")
	}
}

func TestCodaHaleMeasurement(t *testing.T) {
	c := NewCodaHale(Options{})
	defer c.Close()

	g1 := c.getGauge("TestGauge")
	c.UpdateGauge("TestGauge", 1)
	c.UpdateGauge("TestGauge", 2)
	c.UpdateGauge("TestGauge", 3)
	if g1.Value() != 3 {
		t.Errorf("'TestGauge' metric should be 3. Got %f", g1.Value())
	}

	t1 := c.getTimer("TestMeasurement")
	if t1.Count() != 0 {
		t.Error("'TestMeasurement' metric should only have zeroes")
	}

	c.MeasureSince("TestMeasurement", time.Now().Add(-time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	if t1.Count() != 1 || t1.Max() == 0 {
		t.Error("'TestMeasurement' metric should have some numbers")
	}

	c1 := c.getCounter("TestCounter1")
	c.IncCounter("TestCounter1")
	time.Sleep(20 * time.Millisecond)
	if c1.Count() != 1 {
		t.Errorf("'TestCounter1' metric should be 1. Got %d", c1.Count())
	}

	c2 := c.getCounter("TestCounter2")
	c.IncCounterBy("TestCounter2", 5)
	time.Sleep(20 * time.Millisecond)
	if c2.Count() != 5 {
		t.Errorf("'TestCounter2' metric should be 5. Got %d", c2.Count())
	}
}

func TestCodaHaleExpDecaySample(t *testing.T) {
	c := NewCodaHale(Options{UseExpDecaySample: true})
	defer c.Close()

	c.MeasureSince("TestMeasurement", time.Now())
	time.Sleep(20 * time.Millisecond)
	if c.getTimer("TestMeasurement").Count() != 1 {
		t.Error("failed to measure with exp decay sample")
	}
}

func newTestRegistry() metrics.Registry {
	reg := metrics.NewRegistry()
	reg.Register("scheduler.requests.active", metrics.NewGaugeFloat64())
	reg.Register("scheduler.requests.queued", metrics.NewGaugeFloat64())
	reg.Register("scheduler.requests.started", metrics.NewCounter())
	reg.Register("scheduler.cycle", metrics.NewTimer())
	reg.Get("scheduler.requests.active").(metrics.GaugeFloat64).Update(3)
	return reg
}

func serveCodaHale(o Options, reg metrics.Registry, method, path string) *httptest.ResponseRecorder {
	h := &codaHaleMetricsHandler{path: "/metrics", registry: reg, options: o}
	r := httptest.NewRequest(method, path, nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, r)
	return rw
}

func TestCodaHaleHandlerBadMethod(t *testing.T) {
	rw := serveCodaHale(Options{}, newTestRegistry(), "POST", "/metrics")
	if rw.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST method should not provide a valid response, got %d", rw.Code)
	}
}

func TestCodaHaleHandlerAllMetrics(t *testing.T) {
	rw := serveCodaHale(Options{}, newTestRegistry(), "GET", "/metrics")
	if rw.Code != http.StatusOK {
		t.Fatalf("Metrics endpoint should provide a valid response, got %d", rw.Code)
	}

	var data map[string]map[string]map[string]interface{}
	if err := json.Unmarshal(rw.Body.Bytes(), &data); err != nil {
		t.Fatalf("Unable to unmarshal metrics response: %v", err)
	}

	if v := data["gauges"]["scheduler.requests.active"]["value"]; v != 3.0 {
		t.Errorf("Failed to get the active gauge, got %v", v)
	}

	if _, ok := data["counters"]["scheduler.requests.started"]; !ok {
		t.Error("Failed to get the started counter")
	}

	if _, ok := data["timers"]["scheduler.cycle"]; !ok {
		t.Error("Failed to get the cycle timer")
	}
}

func TestCodaHaleHandlerSingleMetric(t *testing.T) {
	rw := serveCodaHale(Options{}, newTestRegistry(), "GET", "/metrics/scheduler.requests.queued")
	if rw.Code != http.StatusOK {
		t.Fatalf("Metrics endpoint should provide a valid response, got %d", rw.Code)
	}

	var data map[string]map[string]interface{}
	if err := json.Unmarshal(rw.Body.Bytes(), &data); err != nil {
		t.Fatalf("Unable to unmarshal metrics response: %v", err)
	}

	if len(data) != 1 || len(data["gauges"]) != 1 {
		t.Errorf("Metrics endpoint for exact match should've returned exactly the requested item: %v", data)
	}
}

func TestCodaHaleHandlerPrefix(t *testing.T) {
	rw := serveCodaHale(Options{Prefix: "frames."}, newTestRegistry(), "GET", "/metrics/frames.scheduler.requests.queued")
	if rw.Code != http.StatusOK {
		t.Fatalf("Metrics endpoint should provide a valid response for exact match using prefix, got %d", rw.Code)
	}

	var data map[string]map[string]interface{}
	if err := json.Unmarshal(rw.Body.Bytes(), &data); err != nil {
		t.Fatalf("Unable to unmarshal metrics response: %v", err)
	}

	if _, ok := data["gauges"]["frames.scheduler.requests.queued"]; !ok {
		t.Errorf("Failed to get the prefixed metric: %v", data)
	}
}

func TestCodaHaleHandlerPattern(t *testing.T) {
	rw := serveCodaHale(Options{}, newTestRegistry(), "GET", "/metrics/scheduler.requests")
	if rw.Code != http.StatusOK {
		t.Fatalf("Metrics endpoint should provide a valid response, got %d", rw.Code)
	}

	var data map[string]map[string]interface{}
	if err := json.Unmarshal(rw.Body.Bytes(), &data); err != nil {
		t.Fatalf("Unable to unmarshal metrics response: %v", err)
	}

	for family, values := range data {
		for k := range values {
			if !strings.HasPrefix(k, "scheduler.requests") {
				t.Errorf("Metrics endpoint returned metrics with the wrong prefix: %s/%s", family, k)
			}
		}
	}

	if len(data["gauges"]) != 2 || len(data["counters"]) != 1 {
		t.Errorf("Metrics endpoint returned unexpected metrics: %v", data)
	}
}

func TestCodaHaleHandlerUnknownMetric(t *testing.T) {
	rw := serveCodaHale(Options{}, newTestRegistry(), "GET", "/metrics/DOES-NOT-EXIST")
	if rw.Code != http.StatusNotFound {
		t.Errorf("Request for unknown metrics should return a Not Found status, got %d", rw.Code)
	}
}

func TestCodaHaleRegisterHandler(t *testing.T) {
	c := NewCodaHale(Options{})
	defer c.Close()

	c.UpdateGauge("scheduler.requests.capacity", 50)

	mux := http.NewServeMux()
	c.RegisterHandler("/metrics", mux)

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest("GET", "/metrics", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("Failed to serve metrics, got %d", rw.Code)
	}

	if !strings.Contains(rw.Body.String(), "scheduler.requests.capacity") {
		t.Errorf("Failed to get the capacity gauge: %s", rw.Body.String())
	}
}
