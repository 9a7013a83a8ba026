package mot

import (
	"math"

	"github.com/arthurkushman/go-hungarian"
	"gonum.org/v1/gonum/floats"
)

// MatchingAlgorithm is for algorithm type for matching detections to identities
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmGreedy visits rows ordered by their closest detection and gives each row its nearest unclaimed detection.
	// Globally closest pairs win first, but total distance is not guaranteed to be minimal. Default.
	MatchingAlgorithmGreedy MatchingAlgorithm = iota
	// MatchingAlgorithmHungarian uses Hungarian-style matrix reduction to find an approximately optimal
	// assignment among pairs within the distance threshold. Total distance is not guaranteed to be minimal.
	MatchingAlgorithmHungarian
)

func (algorithm MatchingAlgorithm) String() string {
	switch algorithm {
	case MatchingAlgorithmGreedy:
		return "greedy"
	case MatchingAlgorithmHungarian:
		return "hungarian"
	default:
		return "unknown"
	}
}

// performMatching fills tracker.matches with (row, column) pairs of the distance matrix.
// Pairs farther than maxDistance are never returned.
func (tracker *CentroidTracker) performMatching(numRows, numCols int) {
	tracker.matches = tracker.matches[:0]
	switch tracker.algorithm {
	case MatchingAlgorithmHungarian:
		tracker.performHungarianMatching(numRows, numCols)
	default:
		tracker.performGreedyMatching(numRows, numCols)
	}
}

func (tracker *CentroidTracker) performGreedyMatching(numRows, numCols int) {
	tracker.claimed = resetBools(tracker.claimed, numCols)
	rowsQueue := tracker.rowsQueue[:0]
	for i := 0; i < numRows; i++ {
		rowsQueue.Push(rowDistance{
			row:      i,
			distance: floats.Min(tracker.distances.RawRowView(i)),
		})
	}
	for rowsQueue.Len() > 0 {
		item := rowsQueue.Pop()
		bestCol := -1
		bestDistance := math.MaxFloat64
		for j := 0; j < numCols; j++ {
			if tracker.claimed[j] {
				continue
			}
			if d := tracker.distances.At(item.row, j); d < bestDistance {
				bestDistance = d
				bestCol = j
			}
		}
		if bestCol == -1 {
			// Every detection has been claimed already
			continue
		}
		if bestDistance > tracker.maxDistance {
			// Row stays unmatched, column is still available for the next rows
			continue
		}
		tracker.claimed[bestCol] = true
		tracker.matches = append(tracker.matches, [2]int{item.row, bestCol})
	}
	tracker.rowsQueue = rowsQueue
}

// performHungarianMatching converts distances into scores (the closer the higher) and solves max-assignment.
// Pairs beyond maxDistance score zero, same as padding cells, so they can not displace valid pairs.
func (tracker *CentroidTracker) performHungarianMatching(numRows, numCols int) {
	size := maxInt(numRows, numCols)
	ceiling := tracker.maxDistance + 1.0
	scores := make([][]float64, size)
	for i := range scores {
		scores[i] = make([]float64, size)
		if i >= numRows {
			continue
		}
		for j := 0; j < numCols; j++ {
			if d := tracker.distances.At(i, j); d <= tracker.maxDistance {
				scores[i][j] = ceiling - d
			}
		}
	}
	assignments := hungarian.SolveMax(scores)
	for row, rowMap := range assignments {
		if row >= numRows {
			continue
		}
		for col := range rowMap {
			if col < numCols && tracker.distances.At(row, col) <= tracker.maxDistance {
				tracker.matches = append(tracker.matches, [2]int{row, col})
			}
			break
		}
	}
}

func resetBools(buf []bool, n int) []bool {
	if cap(buf) < n {
		return make([]bool, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}
