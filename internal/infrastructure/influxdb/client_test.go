package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/config"
)

// fakeInflux serves /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		f.mu.Lock()
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "gateway",
		Bucket:        "ble",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := Connect(context.Background(), cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := Connect(ctx, testConfig(url)); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClient_WritesReachServer(t *testing.T) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteClassification("AA:BB:CC:DD:EE:FF", "new", "010203040506070809")
	client.WriteTransition("assoc_up_session_down", "assoc_up_session_up")
	client.WriteGatewayStats(GatewayStats{Devices: 3, Published: 7, State: "assoc_up_session_up"})
	client.Flush()

	deadline := time.Now().Add(3 * time.Second)
	for len(fake.received()) < 3 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	got := fake.received()
	if len(got) != 3 {
		t.Fatalf("server received %d lines, want 3: %v", len(got), got)
	}
	for i, prefix := range []string{measurementClassification, measurementConnectivity, measurementGateway} {
		if !strings.HasPrefix(got[i], prefix+",") {
			t.Errorf("line %d = %q, want measurement %s", i, got[i], prefix)
		}
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}

	// Writes after Close are dropped silently.
	client.WriteTransition("assoc_up_session_up", "assoc_down")
	client.Flush()
}

func TestPoints_LineProtocol(t *testing.T) {
	ts := time.Unix(0, 42)

	tests := []struct {
		name  string
		point *write.Point
		want  []string
	}{
		{
			name:  "classification",
			point: classificationPoint("AA:BB:CC:DD:EE:FF", "changed", "0A0B0C0D0E0F101112", ts),
			want: []string{
				"ble_classification,address=AA:BB:CC:DD:EE:FF,classification=changed ",
				`payload="0A0B0C0D0E0F101112"`,
				" 42",
			},
		},
		{
			name:  "transition",
			point: transitionPoint("assoc_up_session_up", "assoc_down", ts),
			want: []string{
				"ble_connectivity,to=assoc_down ",
				`from="assoc_up_session_up"`,
			},
		},
		{
			name: "gateway stats",
			point: gatewayPoint(GatewayStats{
				Devices: 2, Published: 5, Suppressed: 1, Dropped: 4, State: "assoc_down",
			}, ts),
			want: []string{
				"ble_gateway,state=assoc_down ",
				"devices=2i",
				"published=5u",
				"suppressed=1u",
				"dropped=4u",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := write.PointToLineProtocol(tt.point, time.Nanosecond)
			for _, want := range tt.want {
				if !strings.Contains(line, want) {
					t.Errorf("line %q missing %q", line, want)
				}
			}
		})
	}
}
