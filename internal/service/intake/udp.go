package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"sorter/internal/frame"
	"sorter/internal/logger"
	"sorter/internal/metrics"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

const (
	maxDatagram = 2048
	// maxSenders bounds the partial frames kept at once; the least recently
	// active sender is evicted first.
	maxSenders = 64
)

// FrameHandler receives complete JPEG frames.
type FrameHandler interface {
	HandleFrame(image []byte, source string) bool
}

// UDPListener reassembles JPEG frames sent as a sequence of datagrams. A datagram
// starting with FF D8 begins a frame, one ending with FF D9 completes it.
type UDPListener struct {
	port    int
	handler FrameHandler
	logger  *logger.Logger
}

func NewUDPListener(port int, handler FrameHandler, logger *logger.Logger) *UDPListener {
	return &UDPListener{port: port, handler: handler, logger: logger}
}

// Run listens until ctx is done.
func (l *UDPListener) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", ":"+strconv.Itoa(l.port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", l.port, err)
	}
	return l.Serve(ctx, conn)
}

// Serve reads from an already bound connection until ctx is done. It closes conn.
func (l *UDPListener) Serve(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	defer conn.Close()

	l.logger.Info("UDP camera listener started on %s", conn.LocalAddr())

	assembler := newAssembler(frame.MaxEncodedSize)
	buffer := make([]byte, maxDatagram)
	for {
		n, remote, err := conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		source := "udp:" + hostOf(remote)
		if image, ok := assembler.add(source, buffer[:n]); ok {
			l.handler.HandleFrame(image, source)
		}
	}
}

// assembler keeps one partial frame per sender. A frame growing past maxSize is
// discarded and the sender has to start over with a new FF D8.
type assembler struct {
	maxSize int
	buffers map[string]*partial
	now     func() time.Time
}

type partial struct {
	buf      bytes.Buffer
	lastSeen time.Time
}

func newAssembler(maxSize int) *assembler {
	return &assembler{
		maxSize: maxSize,
		buffers: make(map[string]*partial),
		now:     time.Now,
	}
}

func (a *assembler) add(source string, data []byte) ([]byte, bool) {
	p, ok := a.buffers[source]
	if !ok {
		if !bytes.HasPrefix(data, jpegHeader) {
			// Middle of a frame whose start we missed.
			return nil, false
		}
		if len(a.buffers) >= maxSenders {
			a.evictOldest()
		}
		p = &partial{}
		a.buffers[source] = p
	}
	p.lastSeen = a.now()

	if bytes.HasPrefix(data, jpegHeader) {
		p.buf.Reset()
	}

	if p.buf.Len()+len(data) > a.maxSize {
		delete(a.buffers, source)
		metrics.FramesDropped.WithLabelValues("udp_oversized").Inc()
		return nil, false
	}
	p.buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}

	image := make([]byte, p.buf.Len())
	copy(image, p.buf.Bytes())
	delete(a.buffers, source)
	return image, true
}

func (a *assembler) evictOldest() {
	var oldest string
	var oldestSeen time.Time
	for source, p := range a.buffers {
		if oldest == "" || p.lastSeen.Before(oldestSeen) {
			oldest, oldestSeen = source, p.lastSeen
		}
	}
	delete(a.buffers, oldest)
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
