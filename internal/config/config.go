package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transport names accepted in ACTUATOR_TRANSPORT.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// Database drivers accepted in DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port         int
	StaticDir    string
	LogDirectory string

	// Perception
	ModelPath          string
	ModelConfigPath    string
	LabelsPath         string
	DetectionThreshold float64
	OCRLanguage        string
	OCRWhitelist       string

	// Processing
	ProcessingWorkers int // Pipeline engines and intake workers
	ProcessingQueue   int // Intake queue capacity, frames beyond it are dropped
	StreamInterval    time.Duration
	CamerasPort       int // UDP camera intake, 0 disables

	// Actuators
	ActuatorTransport string
	ControllerURL     string
	DispatchTimeout   time.Duration
	MaxActuatorID     int
	DefaultAngle      int
	Mapping           map[string]int

	// MQTT
	MQTTBroker         string
	MQTTClientID       string
	ServoTopicPrefix   string
	StatusTopic        string
	StatusRequestTopic string
	FrameTopic         string

	// Detection log
	DBDriver    string
	DBPath      string
	DatabaseURL string

	// Broadcast
	ObserverBuffer int
}

// DefaultMapping is the token mapping used when no mapping file is configured.
func DefaultMapping() map[string]int {
	return map[string]int{
		"A1": 1,
		"A2": 2,
		"A3": 3,
		"A4": 4,
		"A5": 5,
		"A6": 6,
	}
}

// Load reads an optional .env file, then builds the configuration from the environment.
func Load() (*Config, error) {
	// A missing .env is fine, the environment alone is enough.
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 5000),
		StaticDir:    getEnv("STATIC_DIR", "static"),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),

		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ModelConfigPath:    getEnv("MODEL_CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v2_coco.pbtxt")),
		LabelsPath:         getEnv("LABELS_PATH", ""),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.5),
		OCRLanguage:        getEnv("OCR_LANGUAGE", "eng"),
		OCRWhitelist:       getEnv("OCR_WHITELIST", ""),

		ProcessingWorkers: getEnvAsInt("PROCESSING_WORKERS", 3),
		ProcessingQueue:   getEnvAsInt("PROCESSING_QUEUE", 100),
		StreamInterval:    getEnvAsDuration("STREAM_INTERVAL", 33*time.Millisecond),
		CamerasPort:       getEnvAsInt("CAMERAS_UDP_PORT", 0),

		ActuatorTransport: strings.ToLower(getEnv("ACTUATOR_TRANSPORT", TransportHTTP)),
		ControllerURL:     strings.TrimRight(getEnv("CONTROLLER_URL", "http://192.168.21.111"), "/"),
		DispatchTimeout:   getEnvAsDuration("DISPATCH_TIMEOUT", 3*time.Second),
		MaxActuatorID:     getEnvAsInt("MAX_ACTUATOR_ID", 6),
		DefaultAngle:      getEnvAsInt("DEFAULT_ANGLE", 180),
		Mapping:           DefaultMapping(),

		MQTTBroker:         getEnv("MQTT_BROKER", ""),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", "sorter"),
		ServoTopicPrefix:   strings.TrimRight(getEnv("SERVO_TOPIC_PREFIX", "iot/servo"), "/"),
		StatusTopic:        getEnv("STATUS_TOPIC", "esp8266/status"),
		StatusRequestTopic: getEnv("STATUS_REQUEST_TOPIC", "iot/servo/get_status"),
		FrameTopic:         getEnv("FRAME_TOPIC", "esp8266/camera/frame"),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:      getEnv("DB_PATH", filepath.Join(".", "data", "detection_log.db")),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		ObserverBuffer: getEnvAsInt("OBSERVER_BUFFER", 8),
	}

	if path := getEnv("MAPPING_FILE", ""); path != "" {
		mapping, err := LoadMapping(path)
		if err != nil {
			return nil, err
		}
		cfg.Mapping = mapping
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// mappingFile is the YAML layout of MAPPING_FILE.
type mappingFile struct {
	Mapping map[string]int `yaml:"mapping"`
}

// LoadMapping reads a token mapping from a YAML file of the form:
//
//	mapping:
//	  A1: 1
//	  A2: 2
func LoadMapping(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	if len(file.Mapping) == 0 {
		return nil, fmt.Errorf("mapping file %s has no entries", path)
	}
	return file.Mapping, nil
}

// Validate checks value ranges that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ProcessingWorkers < 1 {
		return fmt.Errorf("processing workers must be at least 1")
	}
	if c.MaxActuatorID < 1 {
		return fmt.Errorf("max actuator id must be at least 1")
	}
	if c.DispatchTimeout <= 0 || c.DispatchTimeout > 3*time.Second {
		return fmt.Errorf("dispatch timeout %s must be in (0, 3s]", c.DispatchTimeout)
	}
	if c.DetectionThreshold < 0 || c.DetectionThreshold > 1 {
		return fmt.Errorf("detection threshold %.2f must be in [0, 1]", c.DetectionThreshold)
	}
	if c.StreamInterval <= 0 {
		return fmt.Errorf("stream interval must be positive")
	}

	switch c.ActuatorTransport {
	case TransportHTTP:
		if c.ControllerURL == "" {
			return fmt.Errorf("CONTROLLER_URL is required for the http transport")
		}
	case TransportMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for the mqtt transport")
		}
	default:
		return fmt.Errorf("unknown actuator transport %q", c.ActuatorTransport)
	}

	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.DBDriver)
	}

	for token, id := range c.Mapping {
		if id < 1 || id > c.MaxActuatorID {
			return fmt.Errorf("mapping %s -> %d outside 1..%d", token, id, c.MaxActuatorID)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("250ms") or plain milliseconds ("250").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
