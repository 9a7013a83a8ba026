package mot

import (
	"gonum.org/v1/gonum/mat"
)

// Snapshot maps identity identifier to its current centroid
type Snapshot map[int64]Point

// CentroidTracker is Multi-object tracker (MOT) matching detections to identities by Euclidean distance between centroids.
// It is not safe for concurrent use; every camera stream should own a separate tracker.
type CentroidTracker struct {
	registry *Registry
	// Max number of consecutive frames identity could stay unmatched before retirement. Default is 50
	maxDisappeared int
	// Max distance (in pixels) between identity and detection to be considered the same object. Default is 50.0
	maxDistance float64
	// Algorithm to use for matching
	algorithm MatchingAlgorithm

	// Per-frame scratch buffers. They are reused across updates to keep the matching loop allocation-free
	centroids []Point
	rows      []int
	distances mat.Dense
	rowsQueue distanceHeap
	claimed   []bool
	matched   []bool
	matches   [][2]int
	snapshot  Snapshot
}

// TrackerOption customizes CentroidTracker
type TrackerOption func(tracker *CentroidTracker)

// WithMatchingAlgorithm sets algorithm used to assign detections to identities
func WithMatchingAlgorithm(algorithm MatchingAlgorithm) TrackerOption {
	return func(tracker *CentroidTracker) {
		tracker.algorithm = algorithm
	}
}

// NewCentroidTrackerDefault creates default instance of CentroidTracker
func NewCentroidTrackerDefault() *CentroidTracker {
	return NewCentroidTracker(50, 50.0)
}

// NewCentroidTracker creates new instance of CentroidTracker
func NewCentroidTracker(maxDisappeared int, maxDistance float64, options ...TrackerOption) *CentroidTracker {
	tracker := &CentroidTracker{
		registry:       newRegistry(),
		maxDisappeared: maxDisappeared,
		maxDistance:    maxDistance,
		algorithm:      MatchingAlgorithmGreedy,
		snapshot:       make(Snapshot),
	}
	for _, option := range options {
		option(tracker)
	}
	return tracker
}

// Registry returns tracked identities
func (tracker *CentroidTracker) Registry() *Registry {
	return tracker.registry
}

// MaxDisappeared returns retirement threshold
func (tracker *CentroidTracker) MaxDisappeared() int {
	return tracker.maxDisappeared
}

// MaxDistance returns matching distance threshold
func (tracker *CentroidTracker) MaxDistance() float64 {
	return tracker.maxDistance
}

// Algorithm returns matching algorithm in use
func (tracker *CentroidTracker) Algorithm() MatchingAlgorithm {
	return tracker.algorithm
}

// Update matches detections of the current frame to existing identities.
// Malformed detections are skipped. Returned snapshot is valid until the next call.
func (tracker *CentroidTracker) Update(detections []Detection) Snapshot {
	tracker.centroids = tracker.centroids[:0]
	for i := range detections {
		if !detections[i].Valid() {
			continue
		}
		tracker.centroids = append(tracker.centroids, detections[i].Centroid())
	}

	registry := tracker.registry
	if registry.Len() == 0 {
		for _, centroid := range tracker.centroids {
			registry.register(centroid)
		}
		return tracker.fillSnapshot()
	}

	tracker.rows = registry.appendLive(tracker.rows[:0])
	if len(tracker.centroids) == 0 {
		for _, idx := range tracker.rows {
			tracker.markDisappeared(idx)
		}
		return tracker.fillSnapshot()
	}

	numRows, numCols := len(tracker.rows), len(tracker.centroids)
	tracker.distances.Reset()
	tracker.distances.ReuseAs(numRows, numCols)
	for i, idx := range tracker.rows {
		current := registry.slots[idx].identity.centroid
		for j := range tracker.centroids {
			tracker.distances.Set(i, j, euclideanDistance(current, tracker.centroids[j]))
		}
	}

	tracker.performMatching(numRows, numCols)

	// Rows are marked in the first half of the buffer, columns in the second one
	tracker.matched = resetBools(tracker.matched, numRows+numCols)
	for _, match := range tracker.matches {
		row, col := match[0], match[1]
		registry.slots[tracker.rows[row]].identity.match(tracker.centroids[col])
		tracker.matched[row] = true
		tracker.matched[numRows+col] = true
	}
	for row, idx := range tracker.rows {
		if !tracker.matched[row] {
			tracker.markDisappeared(idx)
		}
	}
	for col, centroid := range tracker.centroids {
		if !tracker.matched[numRows+col] {
			registry.register(centroid)
		}
	}
	return tracker.fillSnapshot()
}

// markDisappeared increments no-match counter and retires identity which has been lost for too long
func (tracker *CentroidTracker) markDisappeared(idx int) {
	identity := &tracker.registry.slots[idx].identity
	identity.incDisappeared()
	if identity.disappeared > tracker.maxDisappeared {
		tracker.registry.deregister(idx)
	}
}

func (tracker *CentroidTracker) fillSnapshot() Snapshot {
	clear(tracker.snapshot)
	tracker.registry.Each(func(identity *TrackedIdentity) {
		tracker.snapshot[identity.id] = identity.centroid
	})
	return tracker.snapshot
}
