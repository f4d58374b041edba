package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// ClientConfig configures the device-side sync agent
type ClientConfig struct {
	ServerURL   string        `json:"serverUrl"`
	APIKey      string        `json:"apiKey"`
	StatePath   string        `json:"statePath"`
	DeviceType  string        `json:"deviceType"`
	BatchSize   int           `json:"batchSize"`
	MaxAttempts int           `json:"maxAttempts"`
	PreCheck    bool          `json:"preCheck"`
	Albums      []AlbumSource `json:"albums"`

	RetryBaseDelay Duration `json:"retryBaseDelay"`
	RequestTimeout Duration `json:"requestTimeout"`
	SyncInterval   Duration `json:"syncInterval"`
}

// AlbumSource describes one local folder treated as a device album
type AlbumSource struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	ServerAlbumID string `json:"serverAlbumId"`
	Frequency     string `json:"frequency"`
}

// Duration unmarshals from either a Go duration string or a number of seconds
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// DefaultClientConfig returns the agent defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ServerURL:      "http://localhost:3000",
		StatePath:      "photonix-sync.db",
		DeviceType:     "desktop",
		BatchSize:      3,
		MaxAttempts:    3,
		PreCheck:       true,
		RetryBaseDelay: Duration{time.Second},
		RequestTimeout: Duration{30 * time.Second},
		SyncInterval:   Duration{15 * time.Minute},
	}
}

// LoadClient loads the agent configuration from .env, SYNC_CONFIG_PATH and the environment
func LoadClient() (*ClientConfig, error) {
	loadDotEnv()

	cfg := DefaultClientConfig()

	configPath := os.Getenv("SYNC_CONFIG_PATH")
	if configPath == "" {
		configPath = "sync.json"
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	if url := os.Getenv("PHOTONIX_SERVER_URL"); url != "" {
		cfg.ServerURL = url
	}
	if key := os.Getenv("PHOTONIX_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if path := os.Getenv("PHOTONIX_STATE_PATH"); path != "" {
		cfg.StatePath = path
	}
	if v := envInt("PHOTONIX_BATCH_SIZE"); v > 0 {
		cfg.BatchSize = v
	}
	if v := envInt("PHOTONIX_MAX_ATTEMPTS"); v > 0 {
		cfg.MaxAttempts = v
	}
	if raw := os.Getenv("PHOTONIX_PRECHECK"); raw != "" {
		cfg.PreCheck = envBool(raw)
	}
	if raw := os.Getenv("PHOTONIX_SYNC_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.SyncInterval = Duration{d}
		}
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the agent configuration
func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("serverUrl is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batchSize must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("maxAttempts must be positive")
	}
	seen := make(map[string]bool, len(c.Albums))
	for _, a := range c.Albums {
		if a.ID == "" || a.Path == "" {
			return fmt.Errorf("album entries need an id and a path")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate album id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}
