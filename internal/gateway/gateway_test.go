package gateway

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-blegw/internal/device"
	"github.com/nerrad567/gray-logic-blegw/internal/scanner"
)

// fakeScanner exposes its channels so tests can play the radio.
type fakeScanner struct {
	obs      chan device.Observation
	done     chan error
	starts   int
	startErr error
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{
		obs:  make(chan device.Observation, 16),
		done: make(chan error, 1),
	}
}

func (s *fakeScanner) Start(context.Context, time.Duration) error {
	s.starts++
	return s.startErr
}

func (s *fakeScanner) Observations() <-chan device.Observation { return s.obs }
func (s *fakeScanner) Done() <-chan error                      { return s.done }

// fakeConn records calls; up controls the publish gate.
type fakeConn struct {
	up        bool
	checks    int
	published []string
	calls     []string
}

func (c *fakeConn) Check(context.Context) error {
	c.checks++
	c.calls = append(c.calls, "check")
	return nil
}

func (c *fakeConn) Publish(address string, p device.Payload) bool {
	c.calls = append(c.calls, "publish")
	if !c.up {
		return false
	}
	c.published = append(c.published, device.Format(address, p))
	return true
}

func obsOf(address string, b ...byte) device.Observation {
	return device.Observation{Address: address, Payload: b, HasPayload: true}
}

func nine(v byte) []byte {
	return []byte{v, v, v, v, v, v, v, v, v}
}

func newTestGateway() (*Gateway, *device.Registry, *fakeConn, *fakeScanner) {
	reg := device.NewRegistry()
	conn := &fakeConn{up: true}
	sc := newFakeScanner()
	return New(reg, conn, sc, Config{}), reg, conn, sc
}

func TestCycle_ClassifiesAndForwards(t *testing.T) {
	g, reg, conn, sc := newTestGateway()

	// new, unchanged, out of scope, no payload, changed
	sc.obs <- obsOf("AA:00:00:00:00:01", nine(1)...)
	sc.obs <- obsOf("AA:00:00:00:00:01", nine(1)...)
	sc.obs <- obsOf("AA:00:00:00:00:02", 1, 2, 3)
	sc.obs <- device.Observation{Address: "AA:00:00:00:00:03"}
	sc.obs <- obsOf("AA:00:00:00:00:01", nine(2)...)

	g.Cycle(context.Background())

	want := []string{
		device.Format("AA:00:00:00:00:01", [9]byte(nine(1))),
		device.Format("AA:00:00:00:00:01", [9]byte(nine(2))),
	}
	if !slices.Equal(conn.published, want) {
		t.Errorf("published %v, want %v", conn.published, want)
	}
	if reg.Len() != 1 {
		t.Errorf("registry Len() = %d, want 1 (out-of-scope addresses never stored)", reg.Len())
	}
	if conn.calls[0] != "check" {
		t.Errorf("first call = %q, want connectivity check before classification", conn.calls[0])
	}
}

func TestCycle_SameAddressTwiceInOneWindow(t *testing.T) {
	g, reg, conn, sc := newTestGateway()

	var classes []device.Classification
	g.OnClassified(func(_ string, _ device.Payload, c device.Classification, _ bool) {
		classes = append(classes, c)
	})

	sc.obs <- obsOf("AA:00:00:00:00:01", nine(1)...)
	sc.obs <- obsOf("AA:00:00:00:00:01", nine(2)...)
	g.Cycle(context.Background())

	wantClasses := []device.Classification{device.ClassNew, device.ClassChanged}
	if !slices.Equal(classes, wantClasses) {
		t.Errorf("classifications = %v, want %v", classes, wantClasses)
	}
	if len(conn.published) != 2 {
		t.Errorf("published %d messages, want 2", len(conn.published))
	}
	if p, _ := reg.Lookup("AA:00:00:00:00:01"); p != device.Payload(nine(2)) {
		t.Errorf("stored payload = %v, want the later one", p)
	}
}

func TestCycle_GateClosedStillStores(t *testing.T) {
	g, reg, conn, sc := newTestGateway()
	conn.up = false

	var forwarded []bool
	g.OnClassified(func(_ string, _ device.Payload, _ device.Classification, f bool) {
		forwarded = append(forwarded, f)
	})

	sc.obs <- obsOf("AA:00:00:00:00:01", nine(7)...)
	g.Cycle(context.Background())

	if len(conn.published) != 0 {
		t.Errorf("published %v while gate closed", conn.published)
	}
	if _, ok := reg.Lookup("AA:00:00:00:00:01"); !ok {
		t.Error("observation not stored while gate closed")
	}
	if !slices.Equal(forwarded, []bool{false}) {
		t.Errorf("forwarded = %v, want [false]", forwarded)
	}
}

func TestCycle_ScanLifecycle(t *testing.T) {
	g, _, _, sc := newTestGateway()

	var scanResults []error
	g.OnScan(func(err error) { scanResults = append(scanResults, err) })

	g.Cycle(context.Background())
	if sc.starts != 1 {
		t.Fatalf("starts = %d after first cycle, want 1", sc.starts)
	}

	// In flight: no restart.
	g.Cycle(context.Background())
	g.Cycle(context.Background())
	if sc.starts != 1 {
		t.Errorf("starts = %d while scan in flight, want 1", sc.starts)
	}

	// Completion notification restarts the scan in the same cycle.
	sc.done <- nil
	g.Cycle(context.Background())
	if sc.starts != 2 {
		t.Errorf("starts = %d after completion, want 2", sc.starts)
	}

	scanErr := errors.New("hci timeout")
	sc.done <- scanErr
	g.Cycle(context.Background())
	if sc.starts != 3 {
		t.Errorf("starts = %d after failed window, want 3", sc.starts)
	}

	if len(scanResults) != 2 || scanResults[0] != nil || !errors.Is(scanResults[1], scanErr) {
		t.Errorf("scan results = %v, want [nil, %v]", scanResults, scanErr)
	}
}

func TestCycle_StartFailureRetriedNextCycle(t *testing.T) {
	g, _, _, sc := newTestGateway()
	sc.startErr = errors.New("device busy")

	g.Cycle(context.Background())
	g.Cycle(context.Background())
	if sc.starts != 2 {
		t.Errorf("starts = %d, want a new attempt every cycle", sc.starts)
	}

	sc.startErr = scanner.ErrScanInProgress
	g.Cycle(context.Background())
	g.Cycle(context.Background())
	if sc.starts != 3 {
		t.Errorf("starts = %d, want no retry once a scan is known to be in flight", sc.starts)
	}
}

func TestCycle_CheckEveryCycle(t *testing.T) {
	g, _, conn, _ := newTestGateway()

	for i := 0; i < 5; i++ {
		g.Cycle(context.Background())
	}
	if conn.checks != 5 {
		t.Errorf("Check called %d times, want 5", conn.checks)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	reg := device.NewRegistry()
	conn := &fakeConn{up: true}
	sc := newFakeScanner()
	g := New(reg, conn, sc, Config{CycleInterval: time.Millisecond})

	sc.obs <- obsOf("AA:00:00:00:00:01", nine(1)...)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if reg.Len() != 1 {
		t.Errorf("registry Len() = %d, want 1", reg.Len())
	}
}

func TestNew_Defaults(t *testing.T) {
	g := New(device.NewRegistry(), &fakeConn{}, newFakeScanner(), Config{})
	if g.cfg.ScanDuration != DefaultScanDuration {
		t.Errorf("ScanDuration = %v, want %v", g.cfg.ScanDuration, DefaultScanDuration)
	}
	if g.cfg.CycleInterval != DefaultCycleInterval {
		t.Errorf("CycleInterval = %v, want %v", g.cfg.CycleInterval, DefaultCycleInterval)
	}
}
