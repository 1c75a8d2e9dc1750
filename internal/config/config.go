package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendCDP    = "cdp"
)

// Config holds all configuration for the annotator.
type Config struct {
	// Control API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	LogLevel string
	LogFile  string

	// Session
	Backend    string
	Symbol     string
	LayoutFile string

	// Empty disables snapshot storage or the state journal.
	SnapshotDir      string
	JournalDir       string
	JournalMaxSizeMB int

	// Hit testing, in (time/HitTimeScale, value) units
	HitEndpoint  float64
	HitBody      float64
	HitTimeScale float64
	EchoWindowMS int

	// Browser backend
	CDPAddress    string
	CDPPort       int
	// ChartURL defaults to the chart page served by the control API.
	ChartURL      string
	TabURLFilter  string
	EvalTimeoutMS int
	LaunchBrowser bool
	Headless      bool
	ProfileDir    string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:         getEnvOrDefault("ANNOTATOR_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   getEnvListOrDefault("ANNOTATOR_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192"}),
		PortAutoFallback: getEnvBoolOrDefault("ANNOTATOR_PORT_AUTO_FALLBACK", true),
		LogLevel:         strings.ToLower(getEnvOrDefault("ANNOTATOR_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("ANNOTATOR_LOG_FILE", "logs/annotator.log"),
		Backend:          strings.ToLower(getEnvOrDefault("ANNOTATOR_BACKEND", BackendMemory)),
		Symbol:           getEnvOrDefault("ANNOTATOR_SYMBOL", "BTCUSD"),
		LayoutFile:       getEnvOrDefault("ANNOTATOR_LAYOUT_FILE", "./config/panes.yaml"),
		SnapshotDir:      getEnvOrDefault("ANNOTATOR_SNAPSHOT_DIR", "./snapshots"),
		JournalDir:       getEnvOrDefault("ANNOTATOR_JOURNAL_DIR", ""),
		JournalMaxSizeMB: getEnvIntOrDefault("ANNOTATOR_JOURNAL_MAX_SIZE_MB", 50),
		HitEndpoint:      getEnvFloatOrDefault("ANNOTATOR_HIT_ENDPOINT_THRESHOLD", 5),
		HitBody:          getEnvFloatOrDefault("ANNOTATOR_HIT_BODY_THRESHOLD", 1),
		HitTimeScale:     getEnvFloatOrDefault("ANNOTATOR_HIT_TIME_SCALE", 1),
		EchoWindowMS:     getEnvIntOrDefault("ANNOTATOR_ECHO_WINDOW_MS", 500),
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		ChartURL:         getEnvOrDefault("ANNOTATOR_CHART_URL", ""),
		TabURLFilter:     getEnvOrDefault("ANNOTATOR_TAB_URL_FILTER", "/chart/"),
		EvalTimeoutMS:    getEnvIntOrDefault("ANNOTATOR_EVAL_TIMEOUT_MS", 5000),
		LaunchBrowser:    getEnvBoolOrDefault("ANNOTATOR_LAUNCH_BROWSER", false),
		Headless:         getEnvBoolOrDefault("ANNOTATOR_HEADLESS", false),
		ProfileDir:       getEnvOrDefault("ANNOTATOR_PROFILE_DIR", "./browser_profile"),
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendCDP:
	default:
		return fmt.Errorf("config: ANNOTATOR_BACKEND must be %q or %q, got %q", BackendMemory, BackendCDP, c.Backend)
	}
	if c.HitEndpoint <= 0 || c.HitBody <= 0 {
		return fmt.Errorf("config: hit thresholds must be positive (endpoint=%v body=%v)", c.HitEndpoint, c.HitBody)
	}
	if c.HitTimeScale <= 0 {
		return fmt.Errorf("config: ANNOTATOR_HIT_TIME_SCALE must be positive, got %v", c.HitTimeScale)
	}
	if c.EchoWindowMS < 0 {
		return fmt.Errorf("config: ANNOTATOR_ECHO_WINDOW_MS must not be negative")
	}
	return nil
}

// CDPURL returns the full CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
