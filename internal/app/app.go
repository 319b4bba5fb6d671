package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"sorter/internal/config"
	"sorter/internal/frame"
	"sorter/internal/logger"
	"sorter/internal/repository"
	"sorter/internal/repository/postgres"
	"sorter/internal/repository/sqlite"
	"sorter/internal/route"
	"sorter/internal/service/actuator"
	"sorter/internal/service/intake"
	"sorter/internal/service/matcher"
	"sorter/internal/service/mqtt"
	"sorter/internal/service/pipeline"
	"sorter/internal/service/vision"
	"sorter/internal/service/websocket"
)

const (
	mqttConnectTimeout = 5 * time.Second
	shutdownTimeout    = 5 * time.Second
	statusQueueSize    = 16
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	detections repository.DetectionRepository
	mqtt       *mqtt.Client
	hub        *websocket.HubService
	consumer   *actuator.StatusConsumer
	detector   *vision.DetectorService
	recognizer *vision.RecognizerService
	pipeline   *pipeline.Pipeline
	manager    *intake.Manager
	udp        *intake.UDPListener
	router     http.Handler
}

// NewApp builds every component from cfg. Nothing runs until Run is called,
// except the MQTT client which starts connecting here.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, log := a.config, a.logger

	tokens, err := matcher.New(cfg.Mapping, cfg.MaxActuatorID)
	if err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}

	a.detections, err = OpenRepository(ctx, cfg)
	if err != nil {
		return err
	}

	a.mqtt = ConnectMQTT(cfg, log)

	dispatcher, err := NewDispatcher(cfg, a.mqtt)
	if err != nil {
		return err
	}
	servos := actuator.NewService(dispatcher, cfg.MaxActuatorID, cfg.DefaultAngle, log)

	state := actuator.NewStateCache()
	a.consumer = actuator.NewStatusConsumer(state, statusQueueSize, log)

	var requester actuator.StatusRequester
	if a.mqtt != nil {
		requester = actuator.NewMQTTStatusRequester(a.mqtt, cfg.StatusRequestTopic, log)
	} else {
		requester = actuator.NewHTTPStatusRequester(cfg.ControllerURL, cfg.DispatchTimeout, a.consumer, log)
	}

	a.detector = vision.NewDetectorService(cfg.ModelPath, cfg.ModelConfigPath, cfg.LabelsPath,
		cfg.DetectionThreshold, cfg.ProcessingWorkers, log)
	a.recognizer, err = vision.NewRecognizerService(cfg.OCRLanguage, cfg.OCRWhitelist, cfg.ProcessingWorkers, log)
	if err != nil {
		return err
	}

	cache := frame.NewCache()
	a.hub = websocket.NewHubService(cfg.ObserverBuffer, log)

	a.pipeline = pipeline.New(pipeline.Deps{
		Detector:   a.detector,
		Recognizer: a.recognizer,
		Annotator:  vision.NewAnnotator(),
		Matcher:    tokens,
		Dispatcher: servos,
		Log:        a.detections,
		Cache:      cache,
		Sink:       a.hub,
	}, log)

	a.manager = intake.NewManager(a.pipeline, cfg.ProcessingWorkers, cfg.ProcessingQueue, log)

	if a.mqtt != nil {
		if err := a.mqtt.Subscribe(cfg.StatusTopic, a.consumer.HandleMessage); err != nil {
			log.Warning("Subscribe to %s deferred until connected: %v", cfg.StatusTopic, err)
		}
		if cfg.FrameTopic != "" {
			if err := a.mqtt.Subscribe(cfg.FrameTopic, a.manager.HandleMessage); err != nil {
				log.Warning("Subscribe to %s deferred until connected: %v", cfg.FrameTopic, err)
			}
		}
	}

	if cfg.CamerasPort > 0 {
		a.udp = intake.NewUDPListener(cfg.CamerasPort, a.manager, log)
	}

	a.router = route.SetupRoutes(route.Dependencies{
		Processor:      a.pipeline,
		Cache:          cache,
		StreamInterval: cfg.StreamInterval,
		Detections:     a.detections,
		Actuator:       servos,
		Requester:      requester,
		State:          state,
		Mapping:        tokens,
		Hub:            a.hub,
		StaticDir:      cfg.StaticDir,
		Logger:         log,
	})
	return nil
}

// OpenRepository opens the detection log selected by cfg.DBDriver.
func OpenRepository(ctx context.Context, cfg *config.Config) (repository.DetectionRepository, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	default:
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return sqlite.NewDetectionRepository(db), nil
	}
}

// ConnectMQTT returns nil when no broker is configured. A broker that is not reachable
// yet is not an error; the client keeps retrying in the background.
func ConnectMQTT(cfg *config.Config, log *logger.Logger) *mqtt.Client {
	if cfg.MQTTBroker == "" {
		return nil
	}

	client := mqtt.NewClient(mqtt.Options{
		Broker:         cfg.MQTTBroker,
		ClientID:       cfg.MQTTClientID,
		PublishTimeout: cfg.DispatchTimeout,
	}, log)
	if err := client.Connect(mqttConnectTimeout); err != nil {
		log.Warning("MQTT broker %s not reachable yet: %v", cfg.MQTTBroker, err)
	}
	return client
}

// NewDispatcher selects the actuator transport.
func NewDispatcher(cfg *config.Config, client *mqtt.Client) (actuator.Dispatcher, error) {
	switch cfg.ActuatorTransport {
	case config.TransportMQTT:
		if client == nil {
			return nil, fmt.Errorf("mqtt transport requires MQTT_BROKER")
		}
		return actuator.NewMQTTDispatcher(client, cfg.ServoTopicPrefix, cfg.DefaultAngle), nil
	default:
		return actuator.NewHTTPDispatcher(cfg.ControllerURL, cfg.DispatchTimeout), nil
	}
}

// Handler returns the HTTP surface.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves until ctx is done, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	go a.hub.Run(ctx)
	go a.consumer.Run(ctx)

	if a.udp != nil {
		go func() {
			if err := a.udp.Run(ctx); err != nil {
				a.logger.Error("UDP camera listener stopped: %v", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams and observers end with ctx so Shutdown does not wait on them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	fmt.Printf("🚀 Sorting Station Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🦾 Actuators: %s (%d servos)\n", a.actuatorTarget(), a.config.MaxActuatorID)
	fmt.Printf("🗄️  Log: %s\n", a.config.DBDriver)
	fmt.Printf("🤖 AI Model: %s (ready: %v)\n", a.config.ModelPath, a.detector.Ready())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (a *App) actuatorTarget() string {
	if a.config.ActuatorTransport == config.TransportMQTT {
		return "mqtt " + a.config.MQTTBroker
	}
	return a.config.ControllerURL
}

// Close stops intake and releases every resource. It is safe to call more than once.
func (a *App) Close() {
	if a.manager != nil {
		a.manager.Stop()
	}
	// Uploads run detached from their request, so Shutdown may return before
	// they finish. The engines below must outlive them.
	if a.pipeline != nil {
		a.pipeline.Close()
	}
	if a.mqtt != nil {
		published, failed := a.mqtt.Stats()
		a.logger.Info("MQTT published %d messages, %d failed", published, failed)
		a.mqtt.Disconnect()
		a.mqtt = nil
	}
	if a.detections != nil {
		if err := a.detections.Close(); err != nil {
			a.logger.Error("Error closing detection log: %v", err)
		}
		a.detections = nil
	}
	if a.detector != nil {
		a.detector.Close()
		a.detector = nil
	}
	if a.recognizer != nil {
		a.recognizer.Close()
		a.recognizer = nil
	}
	a.logger.Close()
}
