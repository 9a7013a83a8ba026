package mot

// CountState is state of identity in line-crossing counting.
type CountState uint8

const (
	// Uncounted identity has not crossed the reference line yet
	Uncounted CountState = iota
	// Counted identity has already produced its single crossing event. Terminal state.
	Counted
)

func (state CountState) String() string {
	switch state {
	case Uncounted:
		return "uncounted"
	case Counted:
		return "counted"
	default:
		return "unknown"
	}
}

// TrackedIdentity is a single physical object followed across frames.
type TrackedIdentity struct {
	id          int64
	centroid    Point
	track       []Point
	disappeared int
	state       CountState
}

// GetID returns identity's identifier
func (identity *TrackedIdentity) GetID() int64 {
	return identity.id
}

// GetCentroid returns identity's current centroid
func (identity *TrackedIdentity) GetCentroid() Point {
	return identity.centroid
}

// GetTrack returns every centroid observed for the identity, oldest first.
// Be careful: this is not copy of track, but reference to it
func (identity *TrackedIdentity) GetTrack() []Point {
	return identity.track
}

// GetDisappeared returns number of consecutive frames the identity has not been matched
func (identity *TrackedIdentity) GetDisappeared() int {
	return identity.disappeared
}

// GetState returns identity's counting state
func (identity *TrackedIdentity) GetState() CountState {
	return identity.state
}

// IsCounted is shorthand for GetState() == Counted
func (identity *TrackedIdentity) IsCounted() bool {
	return identity.state == Counted
}

func (identity *TrackedIdentity) reset(id int64, centroid Point) {
	identity.id = id
	identity.centroid = centroid
	identity.track = append(identity.track[:0], centroid)
	identity.disappeared = 0
	identity.state = Uncounted
}

// match moves identity to the matched centroid
func (identity *TrackedIdentity) match(centroid Point) {
	identity.centroid = centroid
	identity.track = append(identity.track, centroid)
	identity.disappeared = 0
}

func (identity *TrackedIdentity) incDisappeared() {
	identity.disappeared++
}

func (identity *TrackedIdentity) markCounted() {
	identity.state = Counted
}
