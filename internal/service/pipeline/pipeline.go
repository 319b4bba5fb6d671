package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sorter/internal/apperror"
	"sorter/internal/frame"
	"sorter/internal/logger"
	"sorter/internal/metrics"
	"sorter/internal/model"
	"sorter/internal/repository"
)

// Outcome label values for metrics.FramesProcessed.
const (
	outcomeOK          = "ok"
	outcomePerception  = "perception_error"
	outcomePassthrough = "passthrough"
	outcomeDecodeError = "decode_error"
)

// ErrClosed is returned for frames submitted after Close.
var ErrClosed = errors.New("pipeline closed")

type Detector interface {
	Detect(ctx context.Context, f frame.Frame) ([]model.Region, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, region frame.Frame) ([]model.RecognizedText, error)
}

type Annotator interface {
	Annotate(f frame.Frame, annotations []model.Annotation) (frame.Frame, error)
}

type Matcher interface {
	Match(token string) (int, bool)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, cmd model.ActuatorCommand) error
}

// Sink receives everything dashboard observers should see. It must not block.
type Sink interface {
	BroadcastFrame(jpeg []byte)
	BroadcastEvent(evt model.DetectionEvent)
}

// Result describes one processed frame.
type Result struct {
	Events []model.DetectionEvent
	// JPEG is the annotated frame as published to the frame cache.
	JPEG           []byte
	Regions        int
	DetectionError error
}

// Dispatched counts events whose actuation succeeded.
func (r *Result) Dispatched() int {
	n := 0
	for _, evt := range r.Events {
		if evt.Dispatched {
			n++
		}
	}
	return n
}

// Pipeline runs detect, recognize, match, dispatch, log, annotate, cache and broadcast
// for one frame. It is safe for concurrent use; each call works on its own frame.
type Pipeline struct {
	detector   Detector
	recognizer Recognizer
	annotator  Annotator
	matcher    Matcher
	dispatcher Dispatcher
	log        repository.DetectionRepository
	cache      *frame.Cache
	sink       Sink
	quality    int
	logger     *logger.Logger
	now        func() time.Time

	mu       sync.RWMutex
	closed   bool
	inFlight sync.WaitGroup
}

// Deps groups the collaborators of a Pipeline.
type Deps struct {
	Detector   Detector
	Recognizer Recognizer
	Annotator  Annotator
	Matcher    Matcher
	Dispatcher Dispatcher
	Log        repository.DetectionRepository
	Cache      *frame.Cache
	Sink       Sink
}

func New(deps Deps, log *logger.Logger) *Pipeline {
	return &Pipeline{
		detector:   deps.Detector,
		recognizer: deps.Recognizer,
		annotator:  deps.Annotator,
		matcher:    deps.Matcher,
		dispatcher: deps.Dispatcher,
		log:        deps.Log,
		cache:      deps.Cache,
		sink:       deps.Sink,
		quality:    frame.DefaultQuality,
		logger:     log,
		now:        time.Now,
	}
}

// ProcessBytes decodes an encoded image and processes it.
func (p *Pipeline) ProcessBytes(ctx context.Context, data []byte) (*Result, error) {
	f, err := frame.Decode(data)
	if err != nil {
		metrics.FramesProcessed.WithLabelValues(outcomeDecodeError).Inc()
		return nil, err
	}
	return p.Process(ctx, f)
}

// ProcessDataURI decodes a base64 data URI and processes it.
func (p *Pipeline) ProcessDataURI(ctx context.Context, uri string) (*Result, error) {
	f, err := frame.DecodeDataURI(uri)
	if err != nil {
		metrics.FramesProcessed.WithLabelValues(outcomeDecodeError).Inc()
		return nil, err
	}
	return p.Process(ctx, f)
}

// Process runs the full chain on a decoded frame. Only an encoding failure of the
// output frame is returned as an error; per-region failures are logged and skipped.
func (p *Pipeline) Process(ctx context.Context, f frame.Frame) (*Result, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	defer p.inFlight.Done()

	start := time.Now()
	defer func() { metrics.PipelineDuration.Observe(time.Since(start).Seconds()) }()

	result := &Result{}

	regions, err := p.detector.Detect(ctx, f)
	if err != nil {
		p.logger.Warning("Detection failed, publishing unannotated frame: %v", err)
		result.DetectionError = err
		regions = nil
	}
	result.Regions = len(regions)

	var annotations []model.Annotation
	for _, region := range regions {
		anns, events := p.processRegion(ctx, f, region)
		annotations = append(annotations, anns...)
		result.Events = append(result.Events, events...)
	}

	annotated := f
	if len(annotations) > 0 {
		if out, err := p.annotator.Annotate(f, annotations); err != nil {
			p.logger.Warning("Annotation failed, publishing unannotated frame: %v", err)
		} else {
			annotated = out
		}
	}

	jpeg, err := p.publish(annotated)
	if err != nil {
		return result, err
	}
	result.JPEG = jpeg

	if result.DetectionError != nil {
		metrics.FramesProcessed.WithLabelValues(outcomePerception).Inc()
	} else {
		metrics.FramesProcessed.WithLabelValues(outcomeOK).Inc()
	}
	return result, nil
}

// Passthrough caches and broadcasts a frame without running perception.
func (p *Pipeline) Passthrough(data []byte) error {
	if err := p.begin(); err != nil {
		return err
	}
	defer p.inFlight.Done()

	f, err := frame.Decode(data)
	if err != nil {
		metrics.FramesProcessed.WithLabelValues(outcomeDecodeError).Inc()
		return err
	}
	if _, err := p.publish(f); err != nil {
		return err
	}
	metrics.FramesProcessed.WithLabelValues(outcomePassthrough).Inc()
	return nil
}

func (p *Pipeline) begin() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.inFlight.Add(1)
	return nil
}

// Close rejects new frames and waits for the ones in flight. Perception engines
// may be released once it returns.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.inFlight.Wait()
}

func (p *Pipeline) publish(f frame.Frame) ([]byte, error) {
	jpeg, err := frame.EncodeJPEG(f, p.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output frame: %w", err)
	}
	p.cache.Publish(f, jpeg)
	p.sink.BroadcastFrame(jpeg)
	return jpeg, nil
}

// processRegion recognizes text inside one region and acts on every matching token.
// Each matching token gets at most one dispatch attempt.
func (p *Pipeline) processRegion(ctx context.Context, f frame.Frame, region model.Region) ([]model.Annotation, []model.DetectionEvent) {
	sub, ok := f.Crop(region.Box)
	if !ok {
		return nil, nil
	}

	texts, err := p.recognizer.Recognize(ctx, sub)
	if err != nil {
		p.logger.Warning("Recognition failed for %s at %s: %v", region.Label, region.Box, err)
		return nil, nil
	}

	var annotations []model.Annotation
	var events []model.DetectionEvent
	for _, text := range texts {
		if text.Normalized == "" {
			continue
		}

		ann := model.Annotation{Box: region.Box, Label: region.Label, Text: text.Normalized}

		id, matched := p.matcher.Match(text.Normalized)
		if matched {
			evt := p.actuate(ctx, region, text, id)
			ann.Dispatched = evt.Dispatched
			events = append(events, evt)
		}
		annotations = append(annotations, ann)
	}
	return annotations, events
}

func (p *Pipeline) actuate(ctx context.Context, region model.Region, text model.RecognizedText, id int) model.DetectionEvent {
	evt := model.DetectionEvent{
		Text:       text.Normalized,
		ActuatorID: id,
		Confidence: text.Confidence,
		Box:        region.Box,
		Label:      region.Label,
		Timestamp:  p.now(),
	}

	if err := p.dispatcher.Dispatch(ctx, model.Activate(id)); err != nil {
		evt.Error = err.Error()
		return evt
	}
	evt.Dispatched = true

	record := &model.Detection{
		Text:       evt.Text,
		ActuatorID: id,
		Confidence: evt.Confidence,
		Box:        evt.Box,
	}
	if err := p.log.Insert(ctx, record); err != nil {
		err = fmt.Errorf("%w: %v", apperror.ErrLog, err)
		metrics.LogAppends.WithLabelValues(metrics.ResultError).Inc()
		p.logger.Error("Servo %d was activated for %s but the log write failed: %v", id, evt.Text, err)
		evt.Error = err.Error()
	} else {
		metrics.LogAppends.WithLabelValues(metrics.ResultOK).Inc()
		evt.Logged = true
		evt.RecordID = record.ID
		evt.Timestamp = record.Timestamp
	}

	p.sink.BroadcastEvent(evt)
	return evt
}
