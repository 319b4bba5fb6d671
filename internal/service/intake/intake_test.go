package intake

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"sorter/internal/config"
	"sorter/internal/logger"
	"sorter/internal/model"
	"sorter/internal/service/pipeline"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

type fakeProcessor struct {
	mu      sync.Mutex
	bytes   [][]byte
	uris    []string
	release chan struct{}
}

func (f *fakeProcessor) wait() {
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeProcessor) ProcessBytes(_ context.Context, data []byte) (*pipeline.Result, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bytes = append(f.bytes, data)
	return &pipeline.Result{Events: []model.DetectionEvent{{Dispatched: true}}}, nil
}

func (f *fakeProcessor) ProcessDataURI(_ context.Context, uri string) (*pipeline.Result, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uris = append(f.uris, uri)
	return &pipeline.Result{}, nil
}

func (f *fakeProcessor) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bytes), len(f.uris)
}

func TestManager_ProcessesQueuedFrames(t *testing.T) {
	proc := &fakeProcessor{}
	m := NewManager(proc, 2, 10, newTestLogger(t))

	if !m.HandleFrame([]byte{0xff, 0xd8, 0xff, 0xd9}, "test") {
		t.Fatal("expected frame to be accepted")
	}
	m.HandleMessage("esp8266/camera/frame", []byte("data:image/jpeg;base64,AAAA"))
	m.Stop()

	raw, uris := proc.counts()
	if raw != 1 || uris != 1 {
		t.Errorf("expected 1 raw and 1 data URI frame, got %d and %d", raw, uris)
	}

	if m.HandleFrame([]byte{0xff}, "late") {
		t.Error("expected frames after Stop to be rejected")
	}
}

func TestManager_DropsWhenQueueIsFull(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	m := NewManager(proc, 1, 1, newTestLogger(t))

	accepted := 0
	for i := 0; i < 10; i++ {
		if m.HandleFrame([]byte{byte(i)}, "burst") {
			accepted++
		}
	}

	// One frame held by the worker, one in the queue.
	if accepted > 2 {
		t.Errorf("expected at most 2 accepted frames, got %d", accepted)
	}
	if accepted == 0 {
		t.Error("expected at least one accepted frame")
	}

	close(proc.release)
	m.Stop()

	if raw, _ := proc.counts(); raw != accepted {
		t.Errorf("expected %d processed frames, got %d", accepted, raw)
	}
}

func TestAssembler(t *testing.T) {
	a := newAssembler(1024)

	if _, ok := a.add("cam", []byte{0x01, 0x02}); ok {
		t.Error("a fragment without a start marker must be ignored")
	}
	if _, ok := a.add("cam", []byte{0xFF, 0xD8, 0x10}); ok {
		t.Error("an unfinished frame must not be emitted")
	}
	if _, ok := a.add("other", []byte{0xFF, 0xD8, 0x20}); ok {
		t.Error("an unfinished frame must not be emitted")
	}

	frame, ok := a.add("cam", []byte{0x11, 0xFF, 0xD9})
	if !ok {
		t.Fatal("expected a complete frame")
	}
	want := []byte{0xFF, 0xD8, 0x10, 0x11, 0xFF, 0xD9}
	if string(frame) != string(want) {
		t.Errorf("expected %x, got %x", want, frame)
	}

	frame, ok = a.add("other", []byte{0xFF, 0xD9})
	if !ok || len(frame) != 5 {
		t.Errorf("expected the second sender's frame, got %x (ok=%v)", frame, ok)
	}
}

func TestAssembler_DropsOversizedFrames(t *testing.T) {
	a := newAssembler(16)
	source := "udp:1.2.3.4"

	if _, ok := a.add(source, []byte{0xFF, 0xD8, 0x00}); ok {
		t.Fatal("an unfinished frame must not be emitted")
	}
	for i := 0; i < 100; i++ {
		if _, ok := a.add(source, make([]byte, 8)); ok {
			t.Fatal("a frame without a footer must not be emitted")
		}
	}
	if p, ok := a.buffers[source]; ok && p.buf.Len() > 16 {
		t.Fatalf("partial frame grew to %d bytes past the limit", p.buf.Len())
	}

	// The tail of the discarded frame must not complete anything.
	if _, ok := a.add(source, []byte{0x01, 0xFF, 0xD9}); ok {
		t.Error("the end of an oversized frame must be dropped")
	}

	frame, ok := a.add(source, []byte{0xFF, 0xD8, 0x42, 0xFF, 0xD9})
	if !ok || len(frame) != 5 {
		t.Errorf("expected the next frame to get through, got %x (ok=%v)", frame, ok)
	}
	if len(a.buffers) != 0 {
		t.Errorf("expected no partial frames left, got %d", len(a.buffers))
	}
}

func TestAssembler_EvictsLeastRecentSender(t *testing.T) {
	a := newAssembler(1024)
	base := time.Now()
	tick := 0
	a.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	for i := 0; i <= maxSenders; i++ {
		a.add(fmt.Sprintf("udp:10.0.0.%d", i), []byte{0xFF, 0xD8})
	}

	if len(a.buffers) != maxSenders {
		t.Fatalf("expected %d partial frames, got %d", maxSenders, len(a.buffers))
	}
	if _, ok := a.buffers["udp:10.0.0.0"]; ok {
		t.Error("expected the least recently active sender to be evicted")
	}
}

type recordingHandler struct {
	frames chan []byte
}

func (r *recordingHandler) HandleFrame(image []byte, _ string) bool {
	r.frames <- image
	return true
}

func TestUDPListener_ReassemblesFrames(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket failed: %v", err)
	}

	handler := &recordingHandler{frames: make(chan []byte, 1)}
	listener := NewUDPListener(0, handler, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Serve(ctx, conn) }()

	sender, err := net.Dial("udp", conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sender.Close()

	sender.Write([]byte{0xFF, 0xD8, 0x01})
	sender.Write([]byte{0x02, 0xFF, 0xD9})

	select {
	case frame := <-handler.frames:
		if len(frame) != 6 {
			t.Errorf("expected a 6 byte frame, got %x", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
