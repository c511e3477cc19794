package observe

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"
)

// histogramPoint returns the request-duration data point whose route label
// equals route.
func histogramPoint(t *testing.T, rm metricdata.ResourceMetrics, route string) (metricdata.HistogramDataPoint[float64], bool) {
	t.Helper()
	met := findMetric(rm, "convocue.http.request.duration")
	if met == nil {
		return metricdata.HistogramDataPoint[float64]{}, false
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("convocue.http.request.duration is not a float64 histogram")
	}
	for _, dp := range hist.DataPoints {
		if v, ok := dp.Attributes.Value("route"); ok && v.AsString() == route {
			return dp, true
		}
	}
	return metricdata.HistogramDataPoint[float64]{}, false
}

func TestMiddleware_Routes(t *testing.T) {
	tests := []struct {
		path      string
		status    int
		wantRoute string
	}{
		{path: "/healthz", status: http.StatusOK, wantRoute: "/healthz"},
		{path: "/readyz", status: http.StatusServiceUnavailable, wantRoute: "/readyz"},
		{path: "/ws", status: http.StatusBadRequest, wantRoute: "/ws"},
		{path: "/wp-login.php", status: http.StatusNotFound, wantRoute: "other"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			exp := installTracer(t)
			m, reader := newTestMetrics(t)
			h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}

			dp, ok := histogramPoint(t, collect(t, reader), tt.wantRoute)
			if !ok {
				t.Fatalf("no data point for route %q", tt.wantRoute)
			}
			if dp.Count != 1 {
				t.Errorf("count = %d, want 1", dp.Count)
			}
			if v, _ := dp.Attributes.Value("status"); v.AsString() != strconv.Itoa(tt.status) {
				t.Errorf("status attribute = %q, want %d", v.AsString(), tt.status)
			}

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("recorded %d spans, want 1", len(spans))
			}
			if want := "GET " + tt.wantRoute; spans[0].Name != want {
				t.Errorf("span name = %q, want %q", spans[0].Name, want)
			}
			var code int64
			for _, kv := range spans[0].Attributes {
				if kv.Key == "http.response.status_code" {
					code = kv.Value.AsInt64()
				}
			}
			if code != int64(tt.status) {
				t.Errorf("span status code = %d, want %d", code, tt.status)
			}
		})
	}
}

func TestMiddleware_TraceHeader(t *testing.T) {
	const incoming = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceparent string
		want        string
	}{
		{name: "new trace"},
		{name: "continued trace", traceparent: "00-" + incoming + "-00f067aa0ba902b7-01", want: incoming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			installTracer(t)
			m, _ := newTestMetrics(t)

			var inHandler string
			h := Middleware(m)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				inHandler = trace.SpanContextFromContext(r.Context()).TraceID().String()
			}))
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(TraceHeader)
			if len(got) != 32 {
				t.Fatalf("%s = %q, want a 32 hex digit trace id", TraceHeader, got)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("%s = %q, want %q", TraceHeader, got, tt.want)
			}
			if inHandler != got {
				t.Errorf("handler saw trace %q, header has %q", inHandler, got)
			}
		})
	}
}

func TestMiddleware_Hijack(t *testing.T) {
	installTracer(t)
	m, reader := newTestMetrics(t)

	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("wrapped writer does not implement http.Hijacker")
			return
		}
		conn, rw, err := hj.Hijack()
		if err != nil {
			t.Errorf("Hijack: %v", err)
			return
		}
		defer conn.Close()
		_, _ = rw.WriteString("HTTP/1.1 101 Switching Protocols\r\nConnection: close\r\n\r\n")
		_ = rw.Flush()
	}))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("GET /ws HTTP/1.1\r\nHost: convocue\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.HasPrefix(line, "HTTP/1.1 101") {
		t.Fatalf("status line = %q, want 101", line)
	}

	// The duration is recorded once the handler returns.
	deadline := time.Now().Add(2 * time.Second)
	for {
		dp, ok := histogramPoint(t, collect(t, reader), "/ws")
		if ok {
			if v, _ := dp.Attributes.Value(attribute.Key("status")); v.AsString() != "101" {
				t.Errorf("status attribute = %q, want 101", v.AsString())
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no data point for /ws")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStatusRecorder_HijackUnsupported(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rec.Hijack(); err == nil {
		t.Fatal("expected error from a writer without Hijack")
	}
}
