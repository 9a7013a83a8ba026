// Package bridge supplies interim bounding boxes on frames where the detector is not run.
package bridge

import (
	"math"

	kalman_filter "github.com/LdDl/kalman-filter"

	"github.com/LdDl/people-counter/mot"
)

// KalmanBridge keeps one 8-D Kalman filter per box ([cx, cy, w, h] and their velocities).
// Detector frames reset the set of followed boxes, skipped frames are filled with predictions.
type KalmanBridge struct {
	dt      float64
	filters []*kalman_filter.KalmanBBox
	boxes   []mot.Rectangle
	used    []bool
}

// NewKalmanBridge creates bridge with time step dt between frames (in seconds)
func NewKalmanBridge(dt float64) *KalmanBridge {
	return &KalmanBridge{
		dt: dt,
	}
}

func (bridge *KalmanBridge) newFilter(box mot.Rectangle) *kalman_filter.KalmanBBox {
	center := box.Center()
	/* Kalman filter props */
	// No control input: boxes only move by estimated velocity
	uCx := 0.0
	uCy := 0.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	return kalman_filter.NewKalmanBBox(
		bridge.dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, box.Width, box.Height),
	)
}

// Len returns number of followed boxes
func (bridge *KalmanBridge) Len() int {
	return len(bridge.filters)
}

// Reset replaces followed boxes with fresh detector output.
// Every box close to a previously followed one (within half of its diagonal) continues that filter,
// so velocity estimated so far is kept. Returns the boxes unchanged since detector output is authoritative.
func (bridge *KalmanBridge) Reset(boxes []mot.Rectangle) ([]mot.Rectangle, error) {
	bridge.used = make([]bool, len(bridge.filters))
	filters := make([]*kalman_filter.KalmanBBox, 0, len(boxes))
	for _, box := range boxes {
		idx := bridge.closest(box)
		if idx < 0 {
			filters = append(filters, bridge.newFilter(box))
			continue
		}
		bridge.used[idx] = true
		center := box.Center()
		if err := bridge.filters[idx].Update(center.X, center.Y, box.Width, box.Height); err != nil {
			return nil, err
		}
		filters = append(filters, bridge.filters[idx])
	}
	bridge.filters = filters
	bridge.boxes = append(bridge.boxes[:0], boxes...)
	return boxes, nil
}

// closest returns index of unused followed box nearest to the given one, -1 if none is close enough
func (bridge *KalmanBridge) closest(box mot.Rectangle) int {
	gate := math.Hypot(box.Width, box.Height) * 0.5
	center := box.Center()
	best := -1
	bestDistance := math.MaxFloat64
	for i, followed := range bridge.boxes {
		if bridge.used[i] {
			continue
		}
		followedCenter := followed.Center()
		d := math.Hypot(center.X-followedCenter.X, center.Y-followedCenter.Y)
		if d <= gate && d < bestDistance {
			best = i
			bestDistance = d
		}
	}
	return best
}

// Predict advances every filter by one time step and returns predicted boxes
func (bridge *KalmanBridge) Predict() []mot.Rectangle {
	for i, filter := range bridge.filters {
		filter.Predict()
		cx, cy, w, h := filter.GetState()
		bridge.boxes[i] = mot.Rectangle{
			X:      cx - w/2.0,
			Y:      cy - h/2.0,
			Width:  w,
			Height: h,
		}
	}
	predicted := make([]mot.Rectangle, len(bridge.boxes))
	copy(predicted, bridge.boxes)
	return predicted
}
