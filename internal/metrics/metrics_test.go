package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherCounterValue は指定メトリクスのカウンタ値を取得する。見つからない場合は-1を返す。
func gatherCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	return -1
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordPostCreated_IncrementsCounter は投稿作成カウンタが増加することを検証する。
func TestRecordPostCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPostCreated()
	c.RecordPostCreated()

	val := gatherCounterValue(t, reg, "mychirp_posts_created_total")
	if val != 2 {
		t.Errorf("posts_created_total = %v, want 2", val)
	}
}

// TestRecordPostRejected_IncrementsCounterByReason は投稿拒否カウンタが
// 理由別に増加することを検証する。
func TestRecordPostRejected_IncrementsCounterByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPostRejected("rate_limited")
	c.RecordPostRejected("rate_limited")
	c.RecordPostRejected("invalid_content")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() != "mychirp_posts_rejected_total" {
			continue
		}
		found = true
		if len(mf.GetMetric()) != 2 {
			t.Fatalf("expected 2 labeled series, got %d", len(mf.GetMetric()))
		}
		for _, m := range mf.GetMetric() {
			reason := m.GetLabel()[0].GetValue()
			val := m.GetCounter().GetValue()
			switch reason {
			case "rate_limited":
				if val != 2 {
					t.Errorf("rejected{rate_limited} = %v, want 2", val)
				}
			case "invalid_content":
				if val != 1 {
					t.Errorf("rejected{invalid_content} = %v, want 1", val)
				}
			default:
				t.Errorf("unexpected reason label %q", reason)
			}
		}
	}
	if !found {
		t.Error("mychirp_posts_rejected_total metric not found")
	}
}

// TestRecordDirectoryRequest_RecordsOutcomeAndLatency はディレクトリ呼び出しの
// 結果カウンタとレイテンシヒストグラムが記録されることを検証する。
func TestRecordDirectoryRequest_RecordsOutcomeAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDirectoryRequest("success", 50*time.Millisecond)
	c.RecordDirectoryRequest("http_error", 10*time.Millisecond)

	val := gatherCounterValue(t, reg, "mychirp_directory_requests_total")
	if val != 2 {
		t.Errorf("directory_requests_total = %v, want 2", val)
	}

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "mychirp_directory_latency_seconds" {
			found = true
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 2 {
				t.Errorf("latency sample count = %d, want 2", count)
			}
		}
	}
	if !found {
		t.Error("mychirp_directory_latency_seconds metric not found")
	}
}

// TestHandler_ServesMetrics はHTTPハンドラーがPrometheus形式でメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordPostCreated()

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "mychirp_posts_created_total 1") {
		t.Errorf("metrics output does not contain posts counter:\n%s", body)
	}
}
