package vision

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"sorter/internal/apperror"
	"sorter/internal/frame"
	"sorter/internal/logger"
	"sorter/internal/model"
)

const (
	ocrScale        = 1.5
	ocrMaxDimension = 2048
)

// RecognizerService reads text with Tesseract. Clients are pooled because a
// gosseract.Client holds per-image state.
type RecognizerService struct {
	clients chan *gosseract.Client
	all     []*gosseract.Client
	logger  *logger.Logger
}

// NewRecognizerService creates size Tesseract clients for language.
// An empty whitelist allows every character.
func NewRecognizerService(language, whitelist string, size int, log *logger.Logger) (*RecognizerService, error) {
	s := &RecognizerService{
		clients: make(chan *gosseract.Client, size),
		logger:  log,
	}

	for i := 0; i < size; i++ {
		client := gosseract.NewClient()
		if err := client.SetLanguage(language); err != nil {
			client.Close()
			s.Close()
			return nil, fmt.Errorf("failed to set OCR language: %w", err)
		}
		if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
			client.Close()
			s.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
		if whitelist != "" {
			if err := client.SetWhitelist(whitelist); err != nil {
				client.Close()
				s.Close()
				return nil, fmt.Errorf("failed to set OCR whitelist: %w", err)
			}
		}
		s.all = append(s.all, client)
		s.clients <- client
	}

	log.Info("OCR initialized (%s) with %d workers", language, size)
	return s, nil
}

// Recognize returns the words found in the region, in reading order.
func (s *RecognizerService) Recognize(ctx context.Context, region frame.Frame) ([]model.RecognizedText, error) {
	var client *gosseract.Client
	select {
	case client = <-s.clients:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", apperror.ErrPerception, ctx.Err())
	}
	defer func() { s.clients <- client }()

	png, err := preprocess(region)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrPerception, err)
	}

	if err := client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("%w: failed to set OCR image: %v", apperror.ErrPerception, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read words: %v", apperror.ErrPerception, err)
	}

	var texts []model.RecognizedText
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		texts = append(texts, model.NewRecognizedText(box.Word, box.Confidence/100))
	}
	return texts, nil
}

// Close releases every client.
func (s *RecognizerService) Close() {
	for _, client := range s.all {
		client.Close()
	}
	s.all = nil
}

// preprocess converts to grayscale, upscales small crops and encodes as PNG.
func preprocess(region frame.Frame) ([]byte, error) {
	src, err := toMat(region)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(src, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("failed to convert to grayscale: %w", err)
	}

	scale := ocrScale
	if w, h := float64(region.Width)*scale, float64(region.Height)*scale; w > ocrMaxDimension || h > ocrMaxDimension {
		scale = min(ocrMaxDimension/float64(region.Width), ocrMaxDimension/float64(region.Height))
	}

	resized := gocv.NewMat()
	defer resized.Close()
	size := image.Pt(int(float64(region.Width)*scale), int(float64(region.Height)*scale))
	if err := gocv.Resize(gray, &resized, size, 0, 0, gocv.InterpolationLinear); err != nil {
		return nil, fmt.Errorf("failed to resize: %w", err)
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, resized)
	if err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
