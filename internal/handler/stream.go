package handler

import (
	"fmt"
	"net/http"
	"time"

	"sorter/internal/frame"
)

const mjpegBoundary = "frame"

// VideoFeedHandler serves the frame cache as an MJPEG stream. The cache is polled every
// interval and a part is written only when a newer frame was published.
func VideoFeedHandler(cache *frame.Cache, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)

		rc := http.NewResponseController(w)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last uint64
		for {
			if jpeg, seq, ok := cache.JPEG(); ok && seq != last {
				last = seq
				if err := writePart(w, jpeg); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			}

			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", mjpegBoundary); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
