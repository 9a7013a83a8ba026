package pipeline

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/LdDl/people-counter/bridge"
	"github.com/LdDl/people-counter/internal/monitoring"
	"github.com/LdDl/people-counter/mot"
	"github.com/LdDl/people-counter/report"
	"github.com/LdDl/people-counter/source"
)

// Frame status reported for every processed frame
const (
	StatusDetecting = "Detecting"
	StatusTracking  = "Tracking"
	StatusWaiting   = "Waiting"
)

// FrameReader supplies detector output frame by frame. Next returns io.EOF at the end.
type FrameReader interface {
	Next() (source.Frame, error)
}

// StreamConfig contains per-stream processing parameters
type StreamConfig struct {
	LineY         float64
	SkipFrames    int
	Class         string
	MinConfidence float64
}

// FrameResult is outcome of processing one frame
type FrameResult struct {
	Status  string
	Objects mot.Snapshot
	Events  []mot.CrossingEvent
}

// Stream owns tracking state of a single camera. It must not be shared between goroutines.
type Stream struct {
	id      string
	cfg     StreamConfig
	tracker *mot.CentroidTracker
	counter *mot.CrossingCounter
	bridge  *bridge.KalmanBridge
	tally   *report.Tally
	frames  int
	logf    func(format string, v ...interface{})
}

// NewStream creates stream. Detector output is used every cfg.SkipFrames frames, bridge predictions in between.
func NewStream(id string, cfg StreamConfig, tracker *mot.CentroidTracker, counter *mot.CrossingCounter, kalmanBridge *bridge.KalmanBridge, tally *report.Tally) *Stream {
	if cfg.SkipFrames < 1 {
		cfg.SkipFrames = 1
	}
	return &Stream{
		id:      id,
		cfg:     cfg,
		tracker: tracker,
		counter: counter,
		bridge:  kalmanBridge,
		tally:   tally,
		logf:    monitoring.WithPrefix(id),
	}
}

// Frames returns number of processed frames
func (stream *Stream) Frames() int {
	return stream.frames
}

// Process runs association and counting for one frame
func (stream *Stream) Process(frame source.Frame) (FrameResult, error) {
	var boxes []mot.Rectangle
	status := StatusWaiting
	if stream.frames%stream.cfg.SkipFrames == 0 {
		status = StatusDetecting
		var err error
		boxes, err = stream.bridge.Reset(frame.Boxes(stream.cfg.Class, stream.cfg.MinConfidence))
		if err != nil {
			return FrameResult{}, errors.Wrapf(err, "can't seed interim tracker at frame %d", frame.Index)
		}
	} else {
		boxes = stream.bridge.Predict()
		if len(boxes) > 0 {
			status = StatusTracking
		}
	}
	stream.frames++

	objects := stream.tracker.Update(mot.DetectionsFromRects(boxes))
	events := stream.counter.Observe(stream.tracker.Registry(), stream.cfg.LineY)
	if len(events) > 0 {
		stream.tally.Record(events)
		totals := stream.tally.Totals()
		for _, event := range events {
			stream.logf("Identity %d crossed: %s at frame %d (entries=%d, exits=%d)", event.IdentityID, event.Kind, frame.Index, totals.Entries, totals.Exits)
		}
	}
	return FrameResult{
		Status:  status,
		Objects: objects,
		Events:  events,
	}, nil
}

// Run processes frames until reader is exhausted or ctx is done
func (stream *Stream) Run(ctx context.Context, reader FrameReader) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		frame, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				stream.logf("End of stream reached after %d frames", stream.frames)
				return nil
			}
			return errors.Wrap(err, "can't read frame")
		}
		if _, err := stream.Process(frame); err != nil {
			return err
		}
	}
}
