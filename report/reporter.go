package report

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/LdDl/people-counter/internal/monitoring"
)

// Update is the payload pushed to the collector
type Update struct {
	BusID             string `json:"busId" validate:"required"`
	CurrentPassengers int64  `json:"currentPassengers" validate:"gte=0"`
	PassengersIn      int64  `json:"passengersIn" validate:"gte=0"`
	PassengersOut     int64  `json:"passengersOut" validate:"gte=0"`
	Location          string `json:"location,omitempty"`
}

// Sender transmits updates to a remote collector
type Sender interface {
	Send(ctx context.Context, update Update) error
}

// Reporter periodically pushes tally totals through Sender
type Reporter struct {
	busID    string
	location string
	interval time.Duration
	timeout  time.Duration
	tally    *Tally
	sender   Sender
	now      func() time.Time
}

// NewReporter creates reporter for the given bus. Location is a free text prefix, current time is appended to it.
func NewReporter(busID, location string, interval, timeout time.Duration, tally *Tally, sender Sender) *Reporter {
	return &Reporter{
		busID:    busID,
		location: location,
		interval: interval,
		timeout:  timeout,
		tally:    tally,
		sender:   sender,
		now:      time.Now,
	}
}

// Snapshot builds update from current totals
func (reporter *Reporter) Snapshot() Update {
	totals := reporter.tally.Totals()
	update := Update{
		BusID:             reporter.busID,
		CurrentPassengers: totals.Occupancy,
		PassengersIn:      totals.Entries,
		PassengersOut:     totals.Exits,
	}
	if reporter.location != "" {
		update.Location = reporter.location + " - " + reporter.now().Format("15:04:05")
	}
	return update
}

// Push sends current totals once
func (reporter *Reporter) Push(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, reporter.timeout)
	defer cancel()
	update := reporter.Snapshot()
	if err := reporter.sender.Send(ctx, update); err != nil {
		return errors.Wrapf(err, "can't push update for bus %s", reporter.busID)
	}
	monitoring.Logf("Update sent for %s: %d passengers (in=%d, out=%d)", update.BusID, update.CurrentPassengers, update.PassengersIn, update.PassengersOut)
	return nil
}

// Run pushes totals every interval until ctx is done, then makes a final push.
// Push failures are logged and never stop the loop.
func (reporter *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(reporter.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := reporter.Push(context.Background()); err != nil {
				monitoring.Logf("Final update failed: %v", err)
			}
			return
		case <-ticker.C:
			if err := reporter.Push(ctx); err != nil {
				monitoring.Logf("Error sending update to server: %v", err)
			}
		}
	}
}
