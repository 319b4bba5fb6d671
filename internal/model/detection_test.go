package model

import (
	"encoding/json"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a1 ", "A1"},
		{"  b2\n", "B2"},
		{"A3", "A3"},
		{"", ""},
		{"\t a 4 \t", "A 4"},
	}

	for _, tt := range tests {
		if got := NormalizeText(tt.input); got != tt.expected {
			t.Errorf("NormalizeText(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestBoundingBox_StringParses(t *testing.T) {
	box := BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220}

	if box.String() != "[10, 20, 110, 220]" {
		t.Fatalf("unexpected serialized box: %s", box.String())
	}

	parsed, err := ParseBoundingBox(box.String())
	if err != nil {
		t.Fatalf("ParseBoundingBox failed: %v", err)
	}
	if parsed != box {
		t.Errorf("expected %+v, got %+v", box, parsed)
	}
}

func TestBoundingBox_Empty(t *testing.T) {
	if !(BoundingBox{X1: 5, Y1: 5, X2: 5, Y2: 10}).Empty() {
		t.Error("zero-width box should be empty")
	}
	if (BoundingBox{X1: 0, Y1: 0, X2: 1, Y2: 1}).Empty() {
		t.Error("1x1 box should not be empty")
	}
}

func TestDetectionEvent_JSONFields(t *testing.T) {
	evt := DetectionEvent{Text: "A1", ActuatorID: 1, Box: BoundingBox{1, 2, 3, 4}}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["servo"] != float64(1) {
		t.Errorf("expected servo=1, got %v", decoded["servo"])
	}
	if bbox, ok := decoded["bbox"].([]any); !ok || len(bbox) != 4 {
		t.Errorf("expected bbox array of 4, got %v", decoded["bbox"])
	}
}
