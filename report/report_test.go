package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/people-counter/internal/monitoring"
	"github.com/LdDl/people-counter/mot"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

type recordingSender struct {
	mu      sync.Mutex
	updates []Update
	err     error
}

func (sender *recordingSender) Send(_ context.Context, update Update) error {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	sender.updates = append(sender.updates, update)
	return sender.err
}

func (sender *recordingSender) count() int {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	return len(sender.updates)
}

func events(kinds ...mot.EventKind) []mot.CrossingEvent {
	result := make([]mot.CrossingEvent, len(kinds))
	for i, kind := range kinds {
		result[i] = mot.CrossingEvent{IdentityID: int64(i), Kind: kind}
	}
	return result
}

func TestTallyTotals(t *testing.T) {
	tally := NewTally()
	tally.Record(events(mot.EventEntry, mot.EventEntry, mot.EventExit))
	assert.Equal(t, Totals{Entries: 2, Exits: 1, Occupancy: 1}, tally.Totals())

	tally.Record(events(mot.EventExit, mot.EventExit))
	assert.Equal(t, Totals{Entries: 2, Exits: 3, Occupancy: 0}, tally.Totals())
}

func TestTallyConcurrentReaders(t *testing.T) {
	tally := NewTally()
	frame := events(mot.EventEntry, mot.EventExit)
	const frames = 20000
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < frames; i++ {
			tally.Record(frame)
		}
	}()
	partial := 0
	go func() {
		defer wg.Done()
		for i := 0; i < frames; i++ {
			totals := tally.Totals()
			if totals.Entries != totals.Exits || totals.Occupancy != 0 {
				partial++
			}
		}
	}()
	wg.Wait()
	assert.Zero(t, partial, "reader saw partially recorded frames")
	assert.Equal(t, Totals{Entries: frames, Exits: frames, Occupancy: 0}, tally.Totals())
}

func TestReporterPush(t *testing.T) {
	tally := NewTally()
	tally.Record(events(mot.EventEntry, mot.EventEntry, mot.EventEntry, mot.EventExit))
	sender := &recordingSender{}
	reporter := NewReporter("BUS-001", "Live tracking", time.Second, time.Second, tally, sender)
	reporter.now = func() time.Time { return time.Date(2024, 1, 1, 8, 30, 15, 0, time.UTC) }

	require.NoError(t, reporter.Push(context.Background()))
	require.Len(t, sender.updates, 1)
	assert.Equal(t, Update{
		BusID:             "BUS-001",
		CurrentPassengers: 2,
		PassengersIn:      3,
		PassengersOut:     1,
		Location:          "Live tracking - 08:30:15",
	}, sender.updates[0])

	sender.err = errors.New("connection refused")
	assert.Error(t, reporter.Push(context.Background()))
}

func TestReporterRun(t *testing.T) {
	sender := &recordingSender{err: errors.New("collector is down")}
	reporter := NewReporter("BUS-001", "", 5*time.Millisecond, time.Second, NewTally(), sender)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reporter.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return sender.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
	// Final push on shutdown
	assert.GreaterOrEqual(t, sender.count(), 3)
}

func TestHTTPSender(t *testing.T) {
	var received Update
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PassengerDataPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if received.BusID == "unknown" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Bus not found"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL+"/", server.Client())
	update := Update{BusID: "BUS-001", CurrentPassengers: 4, PassengersIn: 6, PassengersOut: 2}
	require.NoError(t, sender.Send(context.Background(), update))
	assert.Equal(t, update, received)

	err := sender.Send(context.Background(), Update{BusID: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
