package mot

// Detection is a single bounding box reported by the detector for one frame.
// Only its centroid takes part in matching.
type Detection struct {
	BBox Rectangle
}

// NewDetection creates detection from bounding box
func NewDetection(bbox Rectangle) Detection {
	return Detection{BBox: bbox}
}

// NewDetectionAt creates zero-sized detection centered on the given point.
// Useful when upstream stage reports centroids only.
func NewDetectionAt(center Point) Detection {
	return Detection{BBox: Rectangle{X: center.X, Y: center.Y}}
}

// Centroid returns midpoint of the detection's box
func (detection Detection) Centroid() Point {
	return detection.BBox.Center()
}

// Valid reports whether detection has well-formed geometry. Invalid detections are skipped by trackers.
func (detection Detection) Valid() bool {
	return detection.BBox.Valid()
}

// DetectionsFromRects wraps every rectangle into Detection
func DetectionsFromRects(rects []Rectangle) []Detection {
	detections := make([]Detection, len(rects))
	for i := range rects {
		detections[i] = Detection{BBox: rects[i]}
	}
	return detections
}
