package report

import (
	"sync/atomic"

	"github.com/LdDl/people-counter/mot"
)

// Totals is a view of running counts after the last fully recorded frame
type Totals struct {
	Entries   int64
	Exits     int64
	Occupancy int64
}

// Tally aggregates crossing events into running totals.
// It is written by a frame loop and read by a reporter concurrently without locks.
// Every frame is published as a whole, so readers never see part of a frame.
type Tally struct {
	current atomic.Pointer[Totals]
}

// NewTally creates empty tally
func NewTally() *Tally {
	tally := &Tally{}
	tally.current.Store(&Totals{})
	return tally
}

// Record adds events of one frame
func (tally *Tally) Record(events []mot.CrossingEvent) {
	var entries, exits int64
	for _, event := range events {
		switch event.Kind {
		case mot.EventEntry:
			entries++
		case mot.EventExit:
			exits++
		}
	}
	if entries == 0 && exits == 0 {
		return
	}
	for {
		prev := tally.current.Load()
		next := &Totals{Entries: entries, Exits: exits}
		if prev != nil {
			next.Entries += prev.Entries
			next.Exits += prev.Exits
		}
		next.Occupancy = next.Entries - next.Exits
		if next.Occupancy < 0 {
			next.Occupancy = 0
		}
		if tally.current.CompareAndSwap(prev, next) {
			return
		}
	}
}

// Totals returns counts of fully recorded frames. Occupancy never goes below zero.
func (tally *Tally) Totals() Totals {
	current := tally.current.Load()
	if current == nil {
		return Totals{}
	}
	return *current
}
