package vision

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"gocv.io/x/gocv"

	"sorter/internal/apperror"
	"sorter/internal/frame"
	"sorter/internal/logger"
	"sorter/internal/model"
)

// defaultLabels covers the COCO classes most likely to carry a printed code.
var defaultLabels = map[int]string{
	1:  "person",
	3:  "car",
	27: "backpack",
	31: "handbag",
	33: "suitcase",
	44: "bottle",
	47: "cup",
	73: "laptop",
	77: "cell phone",
	84: "book",
}

// DetectorService runs an SSD-style DNN over frames. A gocv.Net is not safe for
// concurrent use, so the service keeps one net per worker.
type DetectorService struct {
	nets      chan gocv.Net
	all       []gocv.Net
	labels    map[int]string
	threshold float32
	logger    *logger.Logger
}

// NewDetectorService loads size copies of the network. When the model files are
// missing the service is still returned and every Detect call fails.
func NewDetectorService(modelPath, configPath, labelsPath string, threshold float64, size int, log *logger.Logger) *DetectorService {
	s := &DetectorService{
		labels:    defaultLabels,
		threshold: float32(threshold),
		logger:    log,
	}

	if labelsPath != "" {
		labels, err := loadLabels(labelsPath)
		if err != nil {
			log.Warning("Could not load labels, using defaults: %v", err)
		} else {
			s.labels = labels
		}
	}

	if err := s.initializeNets(modelPath, configPath, size); err != nil {
		log.Warning("Could not initialize detection network: %v", err)
		return s
	}
	log.Info("Detection network initialized with %d workers", size)
	return s
}

func (s *DetectorService) initializeNets(modelPath, configPath string, size int) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", configPath)
	}

	nets := make(chan gocv.Net, size)
	for i := 0; i < size; i++ {
		net := gocv.ReadNet(modelPath, configPath)
		if net.Empty() {
			s.closeAll()
			return fmt.Errorf("failed to load network")
		}
		if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
			net.Close()
			s.closeAll()
			return fmt.Errorf("failed to set preferable backend: %w", err)
		}
		if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
			net.Close()
			s.closeAll()
			return fmt.Errorf("failed to set preferable target: %w", err)
		}
		s.all = append(s.all, net)
		nets <- net
	}
	s.nets = nets
	return nil
}

// Ready reports whether the network loaded.
func (s *DetectorService) Ready() bool {
	return s.nets != nil
}

// Detect returns regions whose confidence exceeds the threshold, clipped to the frame.
func (s *DetectorService) Detect(ctx context.Context, f frame.Frame) ([]model.Region, error) {
	if !s.Ready() {
		return nil, fmt.Errorf("%w: detection network not initialized", apperror.ErrPerception)
	}

	var net gocv.Net
	select {
	case net = <-s.nets:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", apperror.ErrPerception, ctx.Err())
	}
	defer func() { s.nets <- net }()

	mat, err := toMat(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrPerception, err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	if output.Total() < 7 {
		return nil, nil
	}

	// Rows are [batch_id, class_id, confidence, x1, y1, x2, y2] with normalized coordinates.
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	var regions []model.Region
	for i := 0; i < rows.Rows(); i++ {
		confidence := rows.GetFloatAt(i, 2)
		if confidence < s.threshold {
			continue
		}

		box := f.ClipBox(model.BoundingBox{
			X1: int(rows.GetFloatAt(i, 3) * float32(f.Width)),
			Y1: int(rows.GetFloatAt(i, 4) * float32(f.Height)),
			X2: int(rows.GetFloatAt(i, 5) * float32(f.Width)),
			Y2: int(rows.GetFloatAt(i, 6) * float32(f.Height)),
		})
		if box.Empty() {
			continue
		}

		regions = append(regions, model.Region{
			Box:        box,
			Label:      s.label(int(rows.GetFloatAt(i, 1))),
			Confidence: float64(confidence),
		})
	}
	return regions, nil
}

func (s *DetectorService) label(classID int) string {
	if label, ok := s.labels[classID]; ok {
		return label
	}
	return fmt.Sprintf("object%d", classID)
}

// Close releases every network.
func (s *DetectorService) Close() {
	s.closeAll()
}

func (s *DetectorService) closeAll() {
	for _, net := range s.all {
		net.Close()
	}
	s.all = nil
}

// loadLabels reads one label per line; line n (1-based) is class id n.
func loadLabels(path string) (map[int]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	labels := make(map[int]string)
	scanner := bufio.NewScanner(file)
	for id := 1; scanner.Scan(); id++ {
		if label := strings.TrimSpace(scanner.Text()); label != "" {
			labels[id] = label
		}
	}
	return labels, scanner.Err()
}

// toMat copies a frame into a new BGR Mat that owns its memory. The caller closes it.
func toMat(f frame.Frame) (gocv.Mat, error) {
	if f.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty frame")
	}
	view, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix[:f.Width*f.Height*frame.Channels])
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap frame: %w", err)
	}
	defer view.Close()
	return view.Clone(), nil
}
