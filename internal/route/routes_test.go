package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sorter/internal/config"
	"sorter/internal/frame"
	"sorter/internal/logger"
	"sorter/internal/model"
	"sorter/internal/service/actuator"
	"sorter/internal/service/matcher"
	"sorter/internal/service/pipeline"
	"sorter/internal/service/websocket"
)

type nopProcessor struct{}

func (nopProcessor) ProcessBytes(context.Context, []byte) (*pipeline.Result, error) {
	return &pipeline.Result{}, nil
}

func (nopProcessor) ProcessDataURI(context.Context, string) (*pipeline.Result, error) {
	return &pipeline.Result{}, nil
}

func (nopProcessor) Passthrough([]byte) error { return nil }

type nopRepo struct{}

func (nopRepo) Insert(context.Context, *model.Detection) error { return nil }

func (nopRepo) Recent(context.Context, int) ([]model.Detection, error) { return nil, nil }

func (nopRepo) Close() error { return nil }

type recordingDispatcher struct {
	commands []model.ActuatorCommand
}

func (d *recordingDispatcher) Dispatch(_ context.Context, cmd model.ActuatorCommand) error {
	d.commands = append(d.commands, cmd)
	return nil
}

type nopRequester struct{}

func (nopRequester) RequestStatus(context.Context) error { return nil }

func setup(t *testing.T) (http.Handler, *recordingDispatcher) {
	t.Helper()

	staticDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>dashboard</h1>"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	log, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(log.Close)

	tokens, err := matcher.New(config.DefaultMapping(), 6)
	if err != nil {
		t.Fatalf("matcher.New failed: %v", err)
	}

	dispatcher := &recordingDispatcher{}
	router := SetupRoutes(Dependencies{
		Processor:      nopProcessor{},
		Cache:          frame.NewCache(),
		StreamInterval: 10 * time.Millisecond,
		Detections:     nopRepo{},
		Actuator:       actuator.NewService(dispatcher, 6, 180, log),
		Requester:      nopRequester{},
		State:          actuator.NewStateCache(),
		Mapping:        tokens,
		Hub:            websocket.NewHubService(4, log),
		StaticDir:      staticDir,
		Logger:         log,
	})
	return router, dispatcher
}

func TestSetupRoutes(t *testing.T) {
	router, dispatcher := setup(t)

	tests := []struct {
		name   string
		method string
		path   string
		code   int
		body   string
	}{
		{"dashboard index", http.MethodGet, "/", http.StatusOK, "dashboard"},
		{"missing page", http.MethodGet, "/settings", http.StatusNotFound, ""},
		{"manual servo", http.MethodGet, "/api/manual_servo/3?angle=45", http.StatusOK, "Sent to servo 3: angle 45"},
		{"manual servo out of range", http.MethodGet, "/api/manual_servo/7", http.StatusBadRequest, "Invalid servo ID"},
		{"manual servo wrong method", http.MethodPost, "/api/manual_servo/3", http.StatusMethodNotAllowed, ""},
		{"servo status pending", http.MethodGet, "/api/servo_status", http.StatusAccepted, "pending"},
		{"mapping", http.MethodGet, "/api/config", http.StatusOK, `"A1":1`},
		{"detection log", http.MethodGet, "/api/logs", http.StatusOK, "[]"},
		{"stream", http.MethodPost, "/stream", http.StatusOK, `"ok"`},
		{"server log", http.MethodGet, "/logs/warning", http.StatusOK, ""},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "go_goroutines"},
		{"preflight", http.MethodOptions, "/api/config", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *strings.Reader
			if tt.method == http.MethodPost {
				body = strings.NewReader("frame")
			} else {
				body = strings.NewReader("")
			}

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, body))

			if rr.Code != tt.code {
				t.Errorf("expected %d, got %d (%s)", tt.code, rr.Code, rr.Body.String())
			}
			if tt.body != "" && !strings.Contains(rr.Body.String(), tt.body) {
				t.Errorf("expected body to contain %q, got %q", tt.body, rr.Body.String())
			}
		})
	}

	if len(dispatcher.commands) != 1 {
		t.Fatalf("expected exactly one dispatched command, got %d", len(dispatcher.commands))
	}
	if cmd := dispatcher.commands[0]; cmd.ActuatorID != 3 || cmd.Angle == nil || *cmd.Angle != 45 {
		t.Errorf("unexpected command %+v", cmd)
	}
}
