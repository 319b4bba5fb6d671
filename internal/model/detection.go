package model

import (
	"encoding/json"
	"fmt"
	"image"
	"strings"
	"time"
)

// BoundingBox is a pixel rectangle given by its corners (x1,y1) top-left and (x2,y2) bottom-right.
type BoundingBox struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Empty reports whether the box has no area.
func (b BoundingBox) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// MarshalJSON writes the box as [x1, y1, x2, y2].
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON reads a box written by MarshalJSON.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var coords [4]int
	if err := json.Unmarshal(data, &coords); err != nil {
		return fmt.Errorf("invalid bounding box: %w", err)
	}
	*b = BoundingBox{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}
	return nil
}

// String returns the serialized form stored in the detection log.
func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d, %d, %d, %d]", b.X1, b.Y1, b.X2, b.Y2)
}

// ParseBoundingBox parses the detection log form "[x1, y1, x2, y2]".
func ParseBoundingBox(s string) (BoundingBox, error) {
	var b BoundingBox
	err := b.UnmarshalJSON([]byte(strings.TrimSpace(s)))
	return b, err
}

// Region is one object returned by the detector for a single frame.
type Region struct {
	Box        BoundingBox `json:"bbox"`
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
}

// RecognizedText is one text token read inside a Region.
type RecognizedText struct {
	Raw        string  `json:"raw"`
	Normalized string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// NormalizeText trims surrounding whitespace and upper-cases the token.
func NormalizeText(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// NewRecognizedText builds a RecognizedText with its normalized form filled in.
func NewRecognizedText(raw string, confidence float64) RecognizedText {
	return RecognizedText{
		Raw:        raw,
		Normalized: NormalizeText(raw),
		Confidence: confidence,
	}
}

// Detection is one row of the actuation log. It is written once, after a successful dispatch.
type Detection struct {
	ID         int64       `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	Text       string      `json:"text"`
	ActuatorID int         `json:"servo"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
}

// DetectionEvent describes a matched token inside a frame and what happened to it.
type DetectionEvent struct {
	Text       string      `json:"text"`
	ActuatorID int         `json:"servo"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
	Label      string      `json:"object_label"`
	Dispatched bool        `json:"dispatched"`
	Logged     bool        `json:"logged"`
	RecordID   int64       `json:"record_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Error      string      `json:"error,omitempty"`
}

// Annotation is what gets drawn for one recognized token on the output frame.
type Annotation struct {
	Box        BoundingBox
	Label      string
	Text       string
	Dispatched bool
}
