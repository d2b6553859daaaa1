// Package config provides configuration for the invoice agent.
// Values are read from environment variables with sensible defaults; a
// .env file in the working directory is honoured when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort             = 8787
	DefaultLogLevel         = "info"
	DefaultDataDir          = ".invoice-agent"
	DefaultIncomingDir      = "./incoming"
	DefaultOutputDir        = "./generated"
	DefaultSupportedFormats = "jpg,jpeg,png,pdf,tiff"
	DefaultMaxFileSizeMB    = 10
	DefaultBatchSize        = 10
	DefaultSweepIntervalS   = 5
	DefaultSettleDelayMs    = 2000
	DefaultModelTimeoutS    = 1800
	DefaultFileTimeoutS     = 2400
	DefaultModelRetries     = 3
	DefaultGeminiModel      = "gemini-1.5-flash"

	EnvPort             = "INVOICE_AGENT_PORT"
	EnvLogLevel         = "INVOICE_AGENT_LOG_LEVEL"
	EnvDataDir          = "INVOICE_AGENT_DATA_DIR"
	EnvIncomingDir      = "INVOICE_AGENT_INCOMING_DIR"
	EnvOutputDir        = "INVOICE_AGENT_OUTPUT_DIR"
	EnvSupportedFormats = "INVOICE_AGENT_SUPPORTED_FORMATS"
	EnvMaxFileSizeMB    = "INVOICE_AGENT_MAX_FILE_SIZE_MB"
	EnvBatchSize        = "INVOICE_AGENT_BATCH_SIZE"
	EnvSweepIntervalS   = "INVOICE_AGENT_SWEEP_INTERVAL_S"
	EnvSettleDelayMs    = "INVOICE_AGENT_SETTLE_DELAY_MS"
	EnvModelTimeoutS    = "INVOICE_AGENT_MODEL_TIMEOUT_S"
	EnvFileTimeoutS     = "INVOICE_AGENT_FILE_TIMEOUT_S"
	EnvModelRetries     = "INVOICE_AGENT_MODEL_RETRIES"
	EnvHeadless         = "INVOICE_AGENT_HEADLESS"
	EnvGeminiAPIKey     = "GEMINI_API_KEY"
	EnvGeminiModel      = "GEMINI_MODEL"

	// Database filename inside the data dir.
	DBFilename = "invoice-agent.db"
)

// Config is the read-only configuration resolved once at startup.
type Config struct {
	port             int
	logLevel         string
	dataDir          string
	incomingDir      string
	outputDir        string
	supportedFormats []string
	maxFileSizeMB    int
	batchSize        int
	sweepInterval    time.Duration
	settleDelay      time.Duration
	modelTimeout     time.Duration
	fileTimeout      time.Duration
	modelRetries     int
	headless         bool
	geminiAPIKey     string
	geminiModel      string
}

// New builds a Config from defaults and environment overrides.
func New() (*Config, error) {
	cfg := &Config{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		incomingDir:   DefaultIncomingDir,
		outputDir:     DefaultOutputDir,
		maxFileSizeMB: DefaultMaxFileSizeMB,
		batchSize:     DefaultBatchSize,
		sweepInterval: DefaultSweepIntervalS * time.Second,
		settleDelay:   DefaultSettleDelayMs * time.Millisecond,
		modelTimeout:  DefaultModelTimeoutS * time.Second,
		fileTimeout:   DefaultFileTimeoutS * time.Second,
		modelRetries:  DefaultModelRetries,
		geminiModel:   DefaultGeminiModel,
	}
	cfg.supportedFormats = splitFormats(DefaultSupportedFormats)

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if d := os.Getenv(EnvIncomingDir); d != "" {
		cfg.incomingDir = d
	}
	if d := os.Getenv(EnvOutputDir); d != "" {
		cfg.outputDir = d
	}
	if f := os.Getenv(EnvSupportedFormats); f != "" {
		cfg.supportedFormats = splitFormats(f)
	}

	var err error
	if cfg.maxFileSizeMB, err = intEnv(EnvMaxFileSizeMB, cfg.maxFileSizeMB); err != nil {
		return nil, err
	}
	if cfg.batchSize, err = intEnv(EnvBatchSize, cfg.batchSize); err != nil {
		return nil, err
	}
	if cfg.batchSize < 1 {
		return nil, fmt.Errorf("invalid %s: batch size must be at least 1", EnvBatchSize)
	}
	if cfg.modelRetries, err = intEnv(EnvModelRetries, cfg.modelRetries); err != nil {
		return nil, err
	}
	if cfg.sweepInterval, err = durationEnv(EnvSweepIntervalS, time.Second, cfg.sweepInterval); err != nil {
		return nil, err
	}
	if cfg.settleDelay, err = durationEnv(EnvSettleDelayMs, time.Millisecond, cfg.settleDelay); err != nil {
		return nil, err
	}
	if cfg.modelTimeout, err = durationEnv(EnvModelTimeoutS, time.Second, cfg.modelTimeout); err != nil {
		return nil, err
	}
	if cfg.fileTimeout, err = durationEnv(EnvFileTimeoutS, time.Second, cfg.fileTimeout); err != nil {
		return nil, err
	}

	// The outer per-file bound must cover the inner model bound.
	if cfg.fileTimeout < cfg.modelTimeout {
		return nil, fmt.Errorf("%s (%s) must be >= %s (%s)",
			EnvFileTimeoutS, cfg.fileTimeout, EnvModelTimeoutS, cfg.modelTimeout)
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		cfg.headless = h == "1" || strings.EqualFold(h, "true")
	}
	cfg.geminiAPIKey = os.Getenv(EnvGeminiAPIKey)
	if m := os.Getenv(EnvGeminiModel); m != "" {
		cfg.geminiModel = m
	}

	return cfg, nil
}

func (c *Config) Port() int                  { return c.port }
func (c *Config) LogLevel() string           { return c.logLevel }
func (c *Config) DataDir() string            { return c.dataDir }
func (c *Config) IncomingDir() string        { return c.incomingDir }
func (c *Config) OutputDir() string          { return c.outputDir }
func (c *Config) SupportedFormats() []string { return c.supportedFormats }
func (c *Config) MaxFileSizeMB() int         { return c.maxFileSizeMB }
func (c *Config) BatchSize() int             { return c.batchSize }

// MaxFileSizeBytes is the size validation boundary: a file of exactly this
// size passes, one byte over fails.
func (c *Config) MaxFileSizeBytes() int64 { return int64(c.maxFileSizeMB) * 1024 * 1024 }

func (c *Config) SweepInterval() time.Duration { return c.sweepInterval }
func (c *Config) SettleDelay() time.Duration   { return c.settleDelay }
func (c *Config) ModelTimeout() time.Duration  { return c.modelTimeout }
func (c *Config) FileTimeout() time.Duration   { return c.fileTimeout }
func (c *Config) ModelRetries() int            { return c.modelRetries }
func (c *Config) Headless() bool               { return c.headless }
func (c *Config) GeminiAPIKey() string         { return c.geminiAPIKey }
func (c *Config) GeminiModel() string          { return c.geminiModel }

// DBPath returns the full path to the result archive database.
func (c *Config) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func splitFormats(raw string) []string {
	parts := strings.Split(raw, ",")
	formats := make([]string, 0, len(parts))
	for _, p := range parts {
		if f := strings.ToLower(strings.TrimSpace(p)); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, unit time.Duration, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return time.Duration(v) * unit, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
