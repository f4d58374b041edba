package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	ServerAddress string        `json:"serverAddress"`
	DatabasePath  string        `json:"databasePath"`
	DatabaseURL   string        `json:"databaseUrl"`
	Storage       Storage       `json:"storage"`
	Security      Security      `json:"security"`
	Ingestion     Ingestion     `json:"ingestion"`
	PreCheck      PreCheck      `json:"preCheck"`
	Jobs          Jobs          `json:"jobs"`
	FaceDetection FaceDetection `json:"faceDetection"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Storage configures the content-addressable store
type Storage struct {
	Root              string         `json:"root"`
	MaxFileSizeMB     int64          `json:"maxFileSizeMB"`
	AllowedExtensions []string       `json:"allowedExtensions"`
	ThumbnailSizes    map[string]int `json:"thumbnailSizes"`
}

// MaxFileSizeBytes returns the per-item size limit in bytes
func (s Storage) MaxFileSizeBytes() int64 {
	return s.MaxFileSizeMB * 1024 * 1024
}

// Security configuration
type Security struct {
	APIKey         string `json:"apiKey"`
	APIKeyHeader   string `json:"apiKeyHeader"`
	BootstrapEmail string `json:"bootstrapEmail"`
}

// Ingestion bounds the work done for a single bulk request
type Ingestion struct {
	MaxConcurrency int `json:"maxConcurrency"`
	MaxBulkItems   int `json:"maxBulkItems"`
}

// PreCheck configuration
type PreCheck struct {
	MaxHashes int `json:"maxHashes"`
}

// Jobs configures the downstream job worker pool
type Jobs struct {
	Workers           int `json:"workers"`
	QueueSize         int `json:"queueSize"`
	JobTimeoutSeconds int `json:"jobTimeoutSeconds"`

	// Photos left pending or failed longer than RequeueAfterMinutes are
	// re-enqueued every MaintenanceIntervalMinutes; 0 disables the sweep.
	RequeueAfterMinutes        int `json:"requeueAfterMinutes"`
	MaintenanceIntervalMinutes int `json:"maintenanceIntervalMinutes"`
}

// FaceDetection points at the external face detection service
type FaceDetection struct {
	Enabled        bool   `json:"enabled"`
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// DefaultThumbnailSizes maps size names to their maximum dimension
func DefaultThumbnailSizes() map[string]int {
	return map[string]int{
		"small":  200,
		"medium": 800,
		"large":  1600,
	}
}

func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":3000",
		DatabasePath:  "photonix.db",
		Storage: Storage{
			Root:          "./storage",
			MaxFileSizeMB: 50,
			AllowedExtensions: []string{
				".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif",
			},
			ThumbnailSizes: DefaultThumbnailSizes(),
		},
		Security: Security{
			APIKeyHeader:   "X-API-Key",
			BootstrapEmail: "owner@localhost",
		},
		Ingestion: Ingestion{
			MaxConcurrency: 4,
			MaxBulkItems:   100,
		},
		PreCheck: PreCheck{
			MaxHashes: 50,
		},
		Jobs: Jobs{
			Workers:                    2,
			QueueSize:                  256,
			JobTimeoutSeconds:          120,
			RequeueAfterMinutes:        30,
			MaintenanceIntervalMinutes: 60,
		},
		FaceDetection: FaceDetection{
			Enabled:        false,
			URL:            "http://localhost:5001",
			TimeoutSeconds: 30,
		},
	}
}

// Default returns the built-in configuration without touching the filesystem
func Default() *Config {
	return defaultConfig()
}

// Load loads configuration from .env, the JSON config file and the environment
func Load() (*Config, error) {
	loadDotEnv()

	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.Root, 0755); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(cfg.Storage.Root)
	if err != nil {
		return nil, err
	}
	cfg.Storage.Root = absPath

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if root := os.Getenv("STORAGE_ROOT"); root != "" {
		cfg.Storage.Root = root
	}
	if v := envInt("MAX_FILE_SIZE_MB"); v > 0 {
		cfg.Storage.MaxFileSizeMB = int64(v)
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if email := os.Getenv("BOOTSTRAP_EMAIL"); email != "" {
		cfg.Security.BootstrapEmail = email
	}
	if v := envInt("INGEST_MAX_CONCURRENCY"); v > 0 {
		cfg.Ingestion.MaxConcurrency = v
	}
	if v := envInt("PRECHECK_MAX_HASHES"); v > 0 {
		cfg.PreCheck.MaxHashes = v
	}
	if v := envInt("JOB_WORKERS"); v > 0 {
		cfg.Jobs.Workers = v
	}
	if raw := os.Getenv("MAINTENANCE_INTERVAL_MINUTES"); raw != "" {
		cfg.Jobs.MaintenanceIntervalMinutes = envInt("MAINTENANCE_INTERVAL_MINUTES")
	}
	if url := os.Getenv("FACE_DETECTION_URL"); url != "" {
		cfg.FaceDetection.URL = strings.TrimRight(url, "/")
		cfg.FaceDetection.Enabled = true
	}
	if enabled := os.Getenv("FACE_DETECTION_ENABLED"); enabled != "" {
		cfg.FaceDetection.Enabled = envBool(enabled)
	}
}

// Validate rejects configurations the services cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Root) == "" {
		return fmt.Errorf("storage root cannot be empty")
	}
	if c.Storage.MaxFileSizeMB <= 0 {
		return fmt.Errorf("maxFileSizeMB must be positive")
	}
	if len(c.Storage.ThumbnailSizes) == 0 {
		c.Storage.ThumbnailSizes = DefaultThumbnailSizes()
	}
	for name, dim := range c.Storage.ThumbnailSizes {
		if dim <= 0 {
			return fmt.Errorf("thumbnail size %q must be positive", name)
		}
	}
	if c.PreCheck.MaxHashes <= 0 {
		return fmt.Errorf("preCheck.maxHashes must be positive")
	}
	if c.Ingestion.MaxConcurrency <= 0 {
		c.Ingestion.MaxConcurrency = 1
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 1
	}
	return nil
}

// loadDotEnv reads .env (or DOTENV_PATH) when present; a missing file is not an error
func loadDotEnv() {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func envBool(raw string) bool {
	return raw == "true" || raw == "1"
}
