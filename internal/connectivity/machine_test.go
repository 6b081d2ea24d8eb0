package connectivity

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-blegw/internal/device"
)

// fakeLink associates after failures failed attempts, or never if failures < 0.
type fakeLink struct {
	associated bool
	failures   int
	calls      int
}

func (l *fakeLink) Associate(context.Context) error {
	l.calls++
	if l.failures < 0 || l.calls <= l.failures {
		return errors.New("no beacon")
	}
	l.associated = true
	return nil
}

func (l *fakeLink) Associated() bool { return l.associated }

// fakeSession connects after failures failed attempts, or never if failures < 0.
type fakeSession struct {
	connected    bool
	failures     int
	connectCalls int
	serviceCalls int
	serviceErr   error
	sendErr      error
	sent         []string
	topics       []string
}

func (s *fakeSession) Connect(context.Context) error {
	s.connectCalls++
	if s.failures < 0 || s.connectCalls <= s.failures {
		return errors.New("connection refused")
	}
	s.connected = true
	return nil
}

func (s *fakeSession) Connected() bool { return s.connected }

func (s *fakeSession) Send(topic, msg string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.topics = append(s.topics, topic)
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSession) Service(context.Context) error {
	s.serviceCalls++
	return s.serviceErr
}

// sleepRecorder replaces real sleeps and records requested delays.
type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

const testTopic = "yoswit/ble/devices"

func payloadOf(b ...byte) device.Payload {
	var p device.Payload
	copy(p[:], b)
	return p
}

func newTestMachine(link *fakeLink, session *fakeSession, reg *device.Registry, attempts int) (*Machine, *sleepRecorder) {
	m := New(link, session, reg, Config{
		MaxAttempts: attempts,
		RetryDelay:  time.Second,
		Topic:       testTopic,
	})
	rec := &sleepRecorder{}
	m.sleep = rec.sleep
	return m, rec
}

func TestNew_Defaults(t *testing.T) {
	m := New(&fakeLink{}, &fakeSession{}, device.NewRegistry(), Config{RetryDelay: -1})

	if m.State() != AssocDown {
		t.Errorf("initial State() = %v, want %v", m.State(), AssocDown)
	}
	if m.cfg.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", m.cfg.MaxAttempts, DefaultMaxAttempts)
	}
	if m.cfg.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %v, want %v", m.cfg.RetryDelay, DefaultRetryDelay)
	}
}

func TestCheck_BringsBothLinksUp(t *testing.T) {
	link := &fakeLink{}
	session := &fakeSession{}
	m, rec := newTestMachine(link, session, device.NewRegistry(), 30)

	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if m.State() != AssocUpSessionUp {
		t.Errorf("State() = %v, want %v", m.State(), AssocUpSessionUp)
	}
	if link.calls != 1 || session.connectCalls != 1 {
		t.Errorf("attempts link=%d session=%d, want 1 each", link.calls, session.connectCalls)
	}
	if len(rec.delays) != 0 {
		t.Errorf("slept %d times, want 0", len(rec.delays))
	}
	if session.serviceCalls != 1 {
		t.Errorf("Service called %d times, want 1", session.serviceCalls)
	}
}

func TestCheck_AssociationBoundedRetry(t *testing.T) {
	const attempts = 5

	link := &fakeLink{failures: -1}
	session := &fakeSession{}
	m, rec := newTestMachine(link, session, device.NewRegistry(), attempts)

	err := m.Check(context.Background())
	if !errors.Is(err, ErrAssociationFailed) {
		t.Fatalf("Check() error = %v, want ErrAssociationFailed", err)
	}
	if link.calls != attempts {
		t.Errorf("Associate called %d times, want exactly %d", link.calls, attempts)
	}
	if len(rec.delays) != attempts {
		t.Errorf("slept %d times, want %d", len(rec.delays), attempts)
	}
	for i, d := range rec.delays {
		if d != time.Second {
			t.Errorf("delay[%d] = %v, want 1s", i, d)
		}
	}
	if m.State() != AssocDown {
		t.Errorf("State() = %v, want %v", m.State(), AssocDown)
	}
	if session.connectCalls != 0 {
		t.Errorf("session Connect called %d times while link down, want 0", session.connectCalls)
	}
}

func TestCheck_AssociationSucceedsAfterFailures(t *testing.T) {
	link := &fakeLink{failures: 2}
	session := &fakeSession{}
	m, rec := newTestMachine(link, session, device.NewRegistry(), 30)

	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if link.calls != 3 {
		t.Errorf("Associate called %d times, want 3", link.calls)
	}
	if len(rec.delays) != 2 {
		t.Errorf("slept %d times, want 2", len(rec.delays))
	}
	if m.State() != AssocUpSessionUp {
		t.Errorf("State() = %v, want %v", m.State(), AssocUpSessionUp)
	}
}

func TestCheck_SessionBoundedRetryRearmsEachCycle(t *testing.T) {
	const attempts = 4

	link := &fakeLink{associated: true}
	session := &fakeSession{failures: -1}
	m, rec := newTestMachine(link, session, device.NewRegistry(), attempts)

	for cycle := 1; cycle <= 3; cycle++ {
		err := m.Check(context.Background())
		if !errors.Is(err, ErrSessionFailed) {
			t.Fatalf("cycle %d: Check() error = %v, want ErrSessionFailed", cycle, err)
		}
		if session.connectCalls != cycle*attempts {
			t.Errorf("cycle %d: Connect called %d times, want %d", cycle, session.connectCalls, cycle*attempts)
		}
		if m.State() != AssocUpSessionDown {
			t.Errorf("cycle %d: State() = %v, want %v", cycle, m.State(), AssocUpSessionDown)
		}
	}
	if len(rec.delays) != 3*attempts {
		t.Errorf("slept %d times, want %d", len(rec.delays), 3*attempts)
	}
	if session.serviceCalls != 0 {
		t.Errorf("Service called %d times without a session, want 0", session.serviceCalls)
	}
}

func TestCheck_ReplaysEveryEntryOnConnect(t *testing.T) {
	reg := device.NewRegistry()
	want := map[string]device.Payload{
		"AA:AA:AA:AA:AA:01": payloadOf(1, 2, 3, 4, 5, 6, 7, 8, 9),
		"AA:AA:AA:AA:AA:02": payloadOf(9, 8, 7, 6, 5, 4, 3, 2, 1),
		"AA:AA:AA:AA:AA:03": payloadOf(0xFF),
	}
	for address, p := range want {
		reg.ClassifyAndStore(address, p)
	}

	session := &fakeSession{}
	m, _ := newTestMachine(&fakeLink{associated: true}, session, reg, 30)

	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	var wantMsgs []string
	for address, p := range want {
		wantMsgs = append(wantMsgs, device.Format(address, p))
	}
	got := slices.Clone(session.sent)
	slices.Sort(got)
	slices.Sort(wantMsgs)

	if !slices.Equal(got, wantMsgs) {
		t.Errorf("replayed %v, want each entry exactly once: %v", got, wantMsgs)
	}
	for _, topic := range session.topics {
		if topic != testTopic {
			t.Errorf("sent on topic %q, want %q", topic, testTopic)
		}
	}
	if m.Stats().Replays != 1 {
		t.Errorf("Stats().Replays = %d, want 1", m.Stats().Replays)
	}
}

func TestCheck_ReplayOnEveryTransitionIntoUp(t *testing.T) {
	reg := device.NewRegistry()
	reg.ClassifyAndStore("AA:AA:AA:AA:AA:01", payloadOf(1))

	link := &fakeLink{associated: true}
	session := &fakeSession{}
	m, _ := newTestMachine(link, session, reg, 30)

	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	// Steady state: no replay.
	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(session.sent) != 1 {
		t.Fatalf("sent %d messages after steady cycle, want 1", len(session.sent))
	}

	// Session drops and comes back.
	session.connected = false
	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(session.sent) != 2 {
		t.Errorf("sent %d messages after session reconnect, want 2", len(session.sent))
	}

	// Link drops; session object survives but state passes through AssocDown.
	link.associated = false
	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(session.sent) != 3 {
		t.Errorf("sent %d messages after link reassociation, want 3", len(session.sent))
	}
	if m.Stats().Replays != 3 {
		t.Errorf("Stats().Replays = %d, want 3", m.Stats().Replays)
	}
}

func TestCheck_Transitions(t *testing.T) {
	link := &fakeLink{}
	session := &fakeSession{}
	m, _ := newTestMachine(link, session, device.NewRegistry(), 30)

	type transition struct{ from, to State }
	var got []transition
	m.OnTransition(func(from, to State) {
		got = append(got, transition{from, to})
	})

	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	link.associated = false
	link.failures = -1
	if err := m.Check(context.Background()); !errors.Is(err, ErrAssociationFailed) {
		t.Fatalf("Check() error = %v, want ErrAssociationFailed", err)
	}

	want := []transition{
		{AssocDown, AssocUpSessionDown},
		{AssocUpSessionDown, AssocUpSessionUp},
		{AssocUpSessionUp, AssocDown},
	}
	if !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
	if m.Stats().Transitions != uint64(len(want)) {
		t.Errorf("Stats().Transitions = %d, want %d", m.Stats().Transitions, len(want))
	}
}

func TestCheck_ServiceErrorIsNotATransition(t *testing.T) {
	session := &fakeSession{serviceErr: errors.New("publish nacked")}
	m, _ := newTestMachine(&fakeLink{associated: true}, session, device.NewRegistry(), 30)

	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if m.State() != AssocUpSessionUp {
		t.Errorf("State() = %v, want %v", m.State(), AssocUpSessionUp)
	}
}

func TestCheck_ContextCancelledStopsRetry(t *testing.T) {
	link := &fakeLink{failures: -1}
	m, _ := newTestMachine(link, &fakeSession{}, device.NewRegistry(), 30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Check(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Check() error = %v, want context.Canceled", err)
	}
	if link.calls != 1 {
		t.Errorf("Associate called %d times after cancel, want 1", link.calls)
	}
}

func TestPublish_Gate(t *testing.T) {
	p := payloadOf(1, 2, 3, 4, 5, 6, 7, 8, 9)

	tests := []struct {
		name    string
		link    *fakeLink
		session *fakeSession
		want    bool
	}{
		{"assoc down", &fakeLink{failures: -1}, &fakeSession{}, false},
		{"session down", &fakeLink{associated: true}, &fakeSession{failures: -1}, false},
		{"session up", &fakeLink{associated: true}, &fakeSession{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMachine(tt.link, tt.session, device.NewRegistry(), 2)
			_ = m.Check(context.Background()) //nolint:errcheck // Failure states are the point

			before := len(tt.session.sent)
			if got := m.Publish("AA:BB:CC:DD:EE:FF", p); got != tt.want {
				t.Errorf("Publish() = %v, want %v (state %v)", got, tt.want, m.State())
			}

			wantSent := 0
			if tt.want {
				wantSent = 1
			}
			if len(tt.session.sent)-before != wantSent {
				t.Errorf("Send called %d times, want %d", len(tt.session.sent)-before, wantSent)
			}
			if !tt.want && m.Stats().Suppressed != 1 {
				t.Errorf("Stats().Suppressed = %d, want 1", m.Stats().Suppressed)
			}
		})
	}
}

func TestPublish_SendErrorIsCounted(t *testing.T) {
	session := &fakeSession{}
	m, _ := newTestMachine(&fakeLink{associated: true}, session, device.NewRegistry(), 30)
	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	session.sendErr = errors.New("socket closed")
	if m.Publish("AA:BB:CC:DD:EE:FF", payloadOf(1)) {
		t.Error("Publish() = true despite send error")
	}
	if m.Stats().SendErrors != 1 {
		t.Errorf("Stats().SendErrors = %d, want 1", m.Stats().SendErrors)
	}
	if m.State() != AssocUpSessionUp {
		t.Errorf("State() = %v, want unchanged %v", m.State(), AssocUpSessionUp)
	}
}

// TestScenario_ChangeWhileDisconnected follows one device through an outage:
// P1 seen while offline, session comes up, then P2 arrives.
func TestScenario_ChangeWhileDisconnected(t *testing.T) {
	const address = "AA:BB:CC:DD:EE:FF"
	p1 := payloadOf(1, 1, 1, 1, 1, 1, 1, 1, 1)
	p2 := payloadOf(2, 2, 2, 2, 2, 2, 2, 2, 2)

	reg := device.NewRegistry()
	link := &fakeLink{failures: -1}
	session := &fakeSession{}
	m, _ := newTestMachine(link, session, reg, 3)

	_ = m.Check(context.Background()) //nolint:errcheck // Link is down on purpose

	if c := reg.ClassifyAndStore(address, p1); c != device.ClassNew {
		t.Fatalf("classify P1 = %v, want new", c)
	}
	if m.Publish(address, p1) {
		t.Fatal("Publish(P1) = true while disconnected")
	}

	link.failures = 0
	link.calls = 0
	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if c := reg.ClassifyAndStore(address, p2); c != device.ClassChanged {
		t.Fatalf("classify P2 = %v, want changed", c)
	}
	if !m.Publish(address, p2) {
		t.Fatal("Publish(P2) = false while connected")
	}

	want := []string{device.Format(address, p1), device.Format(address, p2)}
	if !slices.Equal(session.sent, want) {
		t.Errorf("broker saw %v, want %v", session.sent, want)
	}
}

func TestOnSent(t *testing.T) {
	reg := device.NewRegistry()
	reg.ClassifyAndStore("AA:AA:AA:AA:AA:01", payloadOf(1))

	m, _ := newTestMachine(&fakeLink{associated: true}, &fakeSession{}, reg, 30)

	var replayed, live int
	m.OnSent(func(_, _ string, replay bool) {
		if replay {
			replayed++
		} else {
			live++
		}
	})

	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	m.Publish("AA:AA:AA:AA:AA:02", payloadOf(2))

	if replayed != 1 || live != 1 {
		t.Errorf("OnSent replay=%d live=%d, want 1 and 1", replayed, live)
	}
}

func TestState_ConcurrentReaders(t *testing.T) {
	m, _ := newTestMachine(&fakeLink{associated: true}, &fakeSession{}, device.NewRegistry(), 30)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = m.State().String()
				_ = m.Stats()
			}
		}()
	}

	for i := 0; i < 100; i++ {
		_ = m.Check(context.Background()) //nolint:errcheck // Always succeeds here
	}
	wg.Wait()
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() cancelled error = %v, want context.Canceled", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state      State
		want       string
		canPublish bool
	}{
		{AssocDown, "assoc_down", false},
		{AssocUpSessionDown, "assoc_up_session_down", false},
		{AssocUpSessionUp, "assoc_up_session_up", true},
		{State(99), "unknown", false},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
		if got := tt.state.CanPublish(); got != tt.canPublish {
			t.Errorf("State(%d).CanPublish() = %v, want %v", tt.state, got, tt.canPublish)
		}
	}
}
