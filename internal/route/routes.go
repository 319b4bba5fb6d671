package route

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sorter/internal/frame"
	"sorter/internal/handler"
	"sorter/internal/logger"
	"sorter/internal/middleware"
	"sorter/internal/repository"
	"sorter/internal/service/actuator"
	"sorter/internal/service/websocket"
)

// Dependencies groups what the HTTP surface needs.
type Dependencies struct {
	Processor      handler.FrameProcessor
	Cache          *frame.Cache
	StreamInterval time.Duration
	Detections     repository.DetectionRepository
	Actuator       handler.ManualActuator
	Requester      actuator.StatusRequester
	State          handler.StatusReader
	Mapping        handler.MappingStore
	Hub            *websocket.HubService
	StaticDir      string
	Logger         *logger.Logger
}

// dynamicHTMLHandler serves /path as {staticDir}/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}
		if strings.Contains(path, "..") {
			http.NotFound(w, r)
			return
		}

		filePath := filepath.Join(staticDir, path+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers camera intake, live view, API, log and metrics endpoints and
// wraps the mux with CORS and request logging.
func SetupRoutes(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	log := deps.Logger

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(deps.StaticDir))))

	// Camera intake
	mux.HandleFunc("POST /upload", handler.UploadHandler(deps.Processor, log))
	mux.HandleFunc("POST /upload_web", handler.UploadWebHandler(deps.Processor, log))
	mux.HandleFunc("POST /stream", handler.StreamHandler(deps.Processor, log))

	// Live view
	mux.HandleFunc("GET /video_feed", handler.VideoFeedHandler(deps.Cache, deps.StreamInterval))
	mux.HandleFunc("GET /ws", handler.ObserverWebsocketHandler(deps.Hub, log))

	// API endpoints
	mux.HandleFunc("GET /api/logs", handler.DetectionLogHandler(deps.Detections, log))
	mux.HandleFunc("GET /api/servo_status", handler.ServoStatusHandler(deps.Requester, deps.State, log))
	mux.HandleFunc("GET /api/manual_servo/{id}", handler.ManualServoHandler(deps.Actuator, log))
	mux.HandleFunc("GET /api/config", handler.GetMappingHandler(deps.Mapping))
	mux.HandleFunc("POST /api/config", handler.UpdateMappingHandler(deps.Mapping, log))

	// Server log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(log))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(log))

	mux.Handle("GET /metrics", promhttp.Handler())

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("GET /", dynamicHTMLHandler(deps.StaticDir))

	return middleware.CORSMiddleware(middleware.LoggingMiddleware(log, mux))
}
