// Package source reads detector output recorded as a multi-document YAML stream, one frame per document:
//
//	frame: 0
//	detections:
//	  - box: [120, 80, 180, 240]
//	    confidence: 0.92
//	    class: person
//	---
//	frame: 1
//	detections: []
package source

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/LdDl/people-counter/mot"
)

// ErrMalformedFrame is returned when frame document can not be interpreted
var ErrMalformedFrame = errors.New("malformed frame")

// DetectionRecord is a single detector output. Box is [x1, y1, x2, y2] in pixels.
type DetectionRecord struct {
	Box        []float64 `yaml:"box"`
	Confidence float64   `yaml:"confidence"`
	Class      string    `yaml:"class"`
}

// Frame is detector output for one video frame
type Frame struct {
	Index      int
	Detections []DetectionRecord
}

type frameDocument struct {
	Frame      *int              `yaml:"frame"`
	Detections []DetectionRecord `yaml:"detections"`
}

// Reader decodes frames one by one
type Reader struct {
	decoder *yaml.Decoder
	closer  io.Closer
	read    int
}

// NewReader creates reader over YAML stream
func NewReader(r io.Reader) *Reader {
	return &Reader{
		decoder: yaml.NewDecoder(r),
	}
}

// Open creates reader over YAML file. Caller must Close it.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open trace '%s'", path)
	}
	reader := NewReader(file)
	reader.closer = file
	return reader, nil
}

// Next returns the next frame. It returns io.EOF when the stream is exhausted.
// Frames without explicit index are numbered by their position in the stream.
func (reader *Reader) Next() (Frame, error) {
	doc := frameDocument{}
	if err := reader.decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "document %d: %s", reader.read, err.Error())
	}
	frame := Frame{
		Index:      reader.read,
		Detections: doc.Detections,
	}
	if doc.Frame != nil {
		frame.Index = *doc.Frame
	}
	for i, detection := range frame.Detections {
		if len(detection.Box) != 4 {
			return Frame{}, errors.Wrapf(ErrMalformedFrame, "frame %d: detection %d has %d box coordinates, expected 4", frame.Index, i, len(detection.Box))
		}
	}
	reader.read++
	return frame, nil
}

// Close releases underlying file if reader has been created by Open
func (reader *Reader) Close() error {
	if reader.closer == nil {
		return nil
	}
	return reader.closer.Close()
}

// Rect converts corner box into rectangle
func (record DetectionRecord) Rect() mot.Rectangle {
	return mot.NewRectFromCorners(record.Box[0], record.Box[1], record.Box[2], record.Box[3])
}

// Boxes returns rectangles of detections of the given class having confidence strictly above minConfidence.
// Empty class accepts every detection.
func (frame Frame) Boxes(class string, minConfidence float64) []mot.Rectangle {
	boxes := make([]mot.Rectangle, 0, len(frame.Detections))
	for _, detection := range frame.Detections {
		if detection.Confidence <= minConfidence {
			continue
		}
		if class != "" && detection.Class != class {
			continue
		}
		boxes = append(boxes, detection.Rect())
	}
	return boxes
}
