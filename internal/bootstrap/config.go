package bootstrap

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	VehicleHost string
	CommandPort int
	StreamPort  int

	IngressMode             string
	FrameMinInterval        time.Duration
	PollInterval            time.Duration
	KeyframeRequestInterval time.Duration
	DecodeWorkers           int

	RTCICEServers []string
	RTCPortMin    int
	RTCPortMax    int

	PerceptionMode     string
	PerceptionURL      string
	PerceptionGRPCAddr string
	PerceptionTimeout  time.Duration
	PerceptionToken    string

	TextFireDuration time.Duration
	TextRearmDelay   time.Duration

	RecordWidth   int
	RecordHeight  int
	RecordFPS     int
	RecordBitrate int
	RecordEncoder string
	RecordTmpDir  string

	GalleryDir  string
	DatabaseDSN string
	AutoMigrate bool

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	FrameTTL           time.Duration
	FrameStoreInterval time.Duration
}

const (
	PerceptionHTTP = "http"
	PerceptionGRPC = "grpc"
)

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		VehicleHost: getEnv("VEHICLE_HOST", "192.168.4.1"),
		CommandPort: getEnvInt("COMMAND_PORT", 1606),
		StreamPort:  getEnvInt("STREAM_PORT", 1607),

		IngressMode:             getEnv("INGRESS_MODE", "webrtc"),
		FrameMinInterval:        getEnvDuration("FRAME_MIN_INTERVAL", 66*time.Millisecond),
		PollInterval:            getEnvDuration("POLL_INTERVAL", 60*time.Millisecond),
		KeyframeRequestInterval: getEnvDuration("KEYFRAME_REQUEST_INTERVAL", 500*time.Millisecond),
		DecodeWorkers:           getEnvInt("DECODE_WORKERS", 2),

		RTCICEServers: parseICEServers(getEnv("RTC_ICE_SERVERS", "stun:stun.l.google.com:19302")),
		RTCPortMin:    getEnvInt("RTC_PORT_MIN", 0),
		RTCPortMax:    getEnvInt("RTC_PORT_MAX", 0),

		PerceptionMode:     getEnv("PERCEPTION_MODE", PerceptionHTTP),
		PerceptionURL:      strings.TrimRight(getEnv("PERCEPTION_URL", "http://localhost:8500"), "/"),
		PerceptionGRPCAddr: getEnv("PERCEPTION_GRPC_ADDR", "localhost:50061"),
		PerceptionTimeout:  getEnvDuration("PERCEPTION_TIMEOUT", 5*time.Second),
		PerceptionToken:    getEnv("PERCEPTION_TOKEN", ""),

		TextFireDuration: getEnvDuration("TEXT_FIRE_DURATION", 1500*time.Millisecond),
		TextRearmDelay:   getEnvDuration("TEXT_REARM_DELAY", 500*time.Millisecond),

		RecordWidth:   getEnvInt("RECORD_WIDTH", 640),
		RecordHeight:  getEnvInt("RECORD_HEIGHT", 480),
		RecordFPS:     getEnvInt("RECORD_FPS", 20),
		RecordBitrate: getEnvInt("RECORD_BITRATE", 1_500_000),
		RecordEncoder: getEnv("RECORD_ENCODER", "auto"),
		RecordTmpDir:  getEnv("RECORD_TMP_DIR", os.TempDir()),

		GalleryDir:  getEnv("GALLERY_DIR", "./gallery"),
		DatabaseDSN: getEnv("DATABASE_DSN", "gallery.db"),
		AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		FrameTTL:           getEnvDuration("FRAME_TTL", 60*time.Second),
		FrameStoreInterval: getEnvDuration("FRAME_STORE_INTERVAL", 500*time.Millisecond),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseICEServers(envValue string) []string {
	var servers []string
	for _, url := range strings.Split(envValue, ",") {
		url = strings.TrimSpace(url)
		if url != "" {
			servers = append(servers, url)
		}
	}
	if len(servers) == 0 {
		return []string{"stun:stun.l.google.com:19302"}
	}
	return servers
}
