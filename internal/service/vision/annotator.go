package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"sorter/internal/frame"
	"sorter/internal/model"
)

var (
	boxColor    = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	markerColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// Annotator draws recognition results onto frames.
type Annotator struct{}

func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Annotate returns a copy of f with a box and "label: text" for every annotation,
// plus a filled marker on regions whose actuator was triggered.
func (a *Annotator) Annotate(f frame.Frame, annotations []model.Annotation) (frame.Frame, error) {
	if len(annotations) == 0 {
		return f.Clone(), nil
	}

	mat, err := toMat(f)
	if err != nil {
		return frame.Frame{}, err
	}
	defer mat.Close()

	for _, ann := range annotations {
		rect := ann.Box.Rect()
		if err := gocv.Rectangle(&mat, rect, boxColor, 2); err != nil {
			return frame.Frame{}, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		caption := ann.Text
		if ann.Label != "" {
			caption = fmt.Sprintf("%s: %s", ann.Label, ann.Text)
		}
		y := rect.Min.Y - 5
		if y < 12 {
			y = rect.Min.Y + 15
		}
		if err := gocv.PutText(&mat, caption, image.Pt(rect.Min.X, y), gocv.FontHersheySimplex, 0.5, boxColor, 1); err != nil {
			return frame.Frame{}, fmt.Errorf("failed to draw text: %w", err)
		}

		if ann.Dispatched {
			center := image.Pt(rect.Max.X-20, rect.Min.Y+20)
			if err := gocv.Circle(&mat, center, 10, markerColor, -1); err != nil {
				return frame.Frame{}, fmt.Errorf("failed to draw marker: %w", err)
			}
		}
	}

	return frame.Frame{Width: f.Width, Height: f.Height, Pix: mat.ToBytes()}, nil
}
