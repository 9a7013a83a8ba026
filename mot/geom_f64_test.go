package mot

import (
	"image"
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestEuclideanDistance(t *testing.T) {
	p1 := Point{X: 341, Y: 264}
	p2 := Point{X: 421, Y: 427}
	correnctAnswer := 181.57367
	answer := euclideanDistance(p1, p2)
	if math.Abs(answer-correnctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correnctAnswer)
	}
}

func TestRectangleCenter(t *testing.T) {
	rect := NewRectFromCorners(10, 20, 50, 100)
	if rect.Width != 40 || rect.Height != 80 {
		t.Errorf("Wrong size: %vx%v, correct size: 40x80", rect.Width, rect.Height)
	}
	center := rect.Center()
	if center != NewPoint(30, 60) {
		t.Errorf("Wrong answer: %v, correct answer: %v", center, NewPoint(30, 60))
	}
	fromImage := NewRectFrom(image.Rect(10, 20, 50, 100))
	if fromImage != rect {
		t.Errorf("Wrong answer: %v, correct answer: %v", fromImage, rect)
	}
	if imageCenter := NewPointFrom(image.Pt(30, 60)); imageCenter != center {
		t.Errorf("Wrong answer: %v, correct answer: %v", imageCenter, center)
	}
}

func TestDetectionAtImagePoint(t *testing.T) {
	detection := NewDetectionAt(NewPointFrom(image.Pt(120, -15)))
	if !detection.Valid() {
		t.Errorf("Zero-sized detection should be valid: %+v", detection)
	}
	if detection.Centroid() != NewPoint(120, -15) {
		t.Errorf("Wrong answer: %v, correct answer: %v", detection.Centroid(), NewPoint(120, -15))
	}
}

func TestRectangleValid(t *testing.T) {
	cases := []struct {
		rect  Rectangle
		valid bool
	}{
		{NewRect(0, 0, 0, 0), true},
		{NewRect(-10, -10, 20, 20), true},
		{NewRect(0, 0, -1, 10), false},
		{NewRect(0, 0, 10, -1), false},
		{NewRect(math.NaN(), 0, 10, 10), false},
		{NewRect(0, 0, math.Inf(1), 10), false},
	}
	for i, c := range cases {
		if c.rect.Valid() != c.valid {
			t.Errorf("case %d: Valid() of %+v is %v, expected %v", i, c.rect, c.rect.Valid(), c.valid)
		}
	}
}
