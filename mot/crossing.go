package mot

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// EventKind is direction of line crossing
type EventKind uint8

const (
	// EventEntry is produced by identity moving down across the line
	EventEntry EventKind = iota + 1
	// EventExit is produced by identity moving up across the line
	EventExit
)

func (kind EventKind) String() string {
	switch kind {
	case EventEntry:
		return "entry"
	case EventExit:
		return "exit"
	default:
		return "unknown"
	}
}

// CrossingEvent is emitted once per identity when its trajectory crosses the reference line
type CrossingEvent struct {
	IdentityID int64
	Kind       EventKind
	Timestamp  time.Time
}

// CrossingCounter turns identity trajectories into one-time entry/exit events relative to horizontal line.
type CrossingCounter struct {
	now func() time.Time
	ys  []float64
}

// CounterOption customizes CrossingCounter
type CounterOption func(counter *CrossingCounter)

// WithClock sets time source for event timestamps
func WithClock(now func() time.Time) CounterOption {
	return func(counter *CrossingCounter) {
		counter.now = now
	}
}

// NewCrossingCounter creates new instance of CrossingCounter
func NewCrossingCounter(options ...CounterOption) *CrossingCounter {
	counter := &CrossingCounter{
		now: time.Now,
		ys:  make([]float64, 0, 64),
	}
	for _, option := range options {
		option(counter)
	}
	return counter
}

// Observe evaluates every uncounted identity against horizontal line at lineY.
// Direction is current Y minus mean of all previous Y values: negative means upward motion.
// Upward motion ending above the line is an exit, downward motion ending below the line is an entry.
// Identity with fewer than two observed centroids is skipped. Once counted, identity is never evaluated again.
func (counter *CrossingCounter) Observe(registry *Registry, lineY float64) []CrossingEvent {
	var events []CrossingEvent
	registry.Each(func(identity *TrackedIdentity) {
		if identity.state == Counted {
			return
		}
		n := len(identity.track)
		if n < 2 {
			return
		}
		counter.ys = counter.ys[:0]
		for _, pt := range identity.track[:n-1] {
			counter.ys = append(counter.ys, pt.Y)
		}
		currentY := identity.centroid.Y
		direction := currentY - stat.Mean(counter.ys, nil)

		var kind EventKind
		switch {
		case direction < 0 && currentY < lineY:
			kind = EventExit
		case direction > 0 && currentY > lineY:
			kind = EventEntry
		default:
			return
		}
		identity.markCounted()
		events = append(events, CrossingEvent{
			IdentityID: identity.id,
			Kind:       kind,
			Timestamp:  counter.now(),
		})
	})
	return events
}
