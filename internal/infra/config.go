package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Toggle is a tri-state feature switch. Unset means "decide from credentials".
type Toggle int

const (
	ToggleUnset Toggle = iota
	ToggleOn
	ToggleOff
)

// Enabled reports whether the feature may run. An unset toggle is enabled so
// that a missing credential surfaces as a configuration error instead of a
// silent skip.
func (t Toggle) Enabled() bool {
	return t != ToggleOff
}

func (t Toggle) String() string {
	switch t {
	case ToggleOn:
		return "on"
	case ToggleOff:
		return "off"
	default:
		return "unset"
	}
}

// CutoutConfig configures background removal.
type CutoutConfig struct {
	Toggle         Toggle
	OnDevice       Toggle
	APIKey         string
	Endpoint       string
	Model          string
	Resolution     string
	PollInterval   time.Duration
	MaxPolls       int
	RequestTimeout time.Duration
}

// TryOnConfig configures the virtual try-on compositing service.
type TryOnConfig struct {
	Toggle         Toggle
	AccessKey      string
	SecretKey      string
	BaseURL        string
	Model          string
	PollInterval   time.Duration
	MaxPolls       int
	RequestTimeout time.Duration
}

// TaggingConfig configures the synchronous remote classifier.
type TaggingConfig struct {
	Toggle         Toggle
	Endpoint       string
	APIKey         string
	RequestTimeout time.Duration
}

// Config represents the immutable configuration snapshot loaded at startup.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	StoragePath      string
	CapabilityFile   string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	MaxUploadBytes   int64
	CORSOrigins      []string

	Cutout  CutoutConfig
	TryOn   TryOnConfig
	Tagging TaggingConfig
}

// capabilityFile mirrors the optional TOML document pointed to by
// PIPELINE_CONFIG. Every field is optional; environment variables win.
type capabilityFile struct {
	BackgroundRemoval struct {
		Enabled      *bool   `toml:"enabled"`
		OnDevice     *bool   `toml:"on_device"`
		Endpoint     string  `toml:"endpoint"`
		Model        string  `toml:"model"`
		Resolution   string  `toml:"resolution"`
		PollInterval *string `toml:"poll_interval"`
		MaxPolls     *int    `toml:"max_polls"`
	} `toml:"background_removal"`
	VirtualTryOn struct {
		Enabled      *bool   `toml:"enabled"`
		BaseURL      string  `toml:"base_url"`
		Model        string  `toml:"model"`
		PollInterval *string `toml:"poll_interval"`
		MaxPolls     *int    `toml:"max_polls"`
	} `toml:"virtual_try_on"`
	Categorization struct {
		Enabled  *bool  `toml:"enabled"`
		Endpoint string `toml:"endpoint"`
	} `toml:"categorization"`
}

const (
	defaultCutoutEndpoint = "https://queue.fal.run/fal-ai/birefnet/v2"
	defaultTryOnBaseURL   = "https://api.klingai.com"
)

// LoadEnvFiles loads .env files when present. Missing files are not an error.
func LoadEnvFiles() {
	_ = godotenv.Load(".env", ".env.local")
}

// LoadConfig loads configuration from environment variables, layered over the
// optional capability file, and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		CapabilityFile:   os.Getenv("PIPELINE_CONFIG"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_MB", 15)) << 20,
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Cutout: CutoutConfig{
			Endpoint:       defaultCutoutEndpoint,
			Model:          "General Use (Light)",
			Resolution:     "1024x1024",
			PollInterval:   200 * time.Millisecond,
			MaxPolls:       300,
			RequestTimeout: 30 * time.Second,
		},
		TryOn: TryOnConfig{
			BaseURL:        defaultTryOnBaseURL,
			Model:          "kolors-virtual-try-on-v1",
			PollInterval:   time.Second,
			MaxPolls:       30,
			RequestTimeout: 30 * time.Second,
		},
		Tagging: TaggingConfig{
			RequestTimeout: 20 * time.Second,
		},
	}

	if cfg.CapabilityFile != "" {
		if err := cfg.applyCapabilityFile(cfg.CapabilityFile); err != nil {
			return nil, err
		}
	}

	cfg.Cutout.Toggle = getEnvToggle("BG_REMOVAL", cfg.Cutout.Toggle)
	cfg.Cutout.OnDevice = getEnvToggle("BG_REMOVAL_ON_DEVICE", cfg.Cutout.OnDevice)
	cfg.Cutout.APIKey = strings.TrimSpace(os.Getenv("FAL_API_KEY"))
	cfg.Cutout.Endpoint = getEnv("FAL_BIREFNET_URL", cfg.Cutout.Endpoint)
	cfg.Cutout.PollInterval = getEnvDuration("BG_REMOVAL_POLL_INTERVAL", cfg.Cutout.PollInterval)
	cfg.Cutout.MaxPolls = getEnvInt("BG_REMOVAL_MAX_POLLS", cfg.Cutout.MaxPolls)

	cfg.TryOn.Toggle = getEnvToggle("VIRTUAL_TRYON", cfg.TryOn.Toggle)
	cfg.TryOn.AccessKey = strings.TrimSpace(os.Getenv("KLING_ACCESS_KEY"))
	cfg.TryOn.SecretKey = strings.TrimSpace(os.Getenv("KLING_SECRET_KEY"))
	cfg.TryOn.BaseURL = getEnv("KLING_BASE_URL", cfg.TryOn.BaseURL)
	cfg.TryOn.PollInterval = getEnvDuration("VIRTUAL_TRYON_POLL_INTERVAL", cfg.TryOn.PollInterval)
	cfg.TryOn.MaxPolls = getEnvInt("VIRTUAL_TRYON_MAX_POLLS", cfg.TryOn.MaxPolls)

	cfg.Tagging.Toggle = getEnvToggle("REMOTE_TAGGING", cfg.Tagging.Toggle)
	cfg.Tagging.Endpoint = getEnv("TAGGING_API_URL", cfg.Tagging.Endpoint)
	cfg.Tagging.APIKey = strings.TrimSpace(os.Getenv("TAGGING_API_TOKEN"))

	if cfg.Cutout.MaxPolls <= 0 {
		return nil, fmt.Errorf("BG_REMOVAL_MAX_POLLS must be positive")
	}
	if cfg.TryOn.MaxPolls <= 0 {
		return nil, fmt.Errorf("VIRTUAL_TRYON_MAX_POLLS must be positive")
	}
	if cfg.Cutout.PollInterval <= 0 || cfg.TryOn.PollInterval <= 0 {
		return nil, fmt.Errorf("poll intervals must be positive")
	}

	return cfg, nil
}

// TaggingConfigured reports whether the remote classifier can be called.
func (c *Config) TaggingConfigured() bool {
	return strings.TrimSpace(c.Tagging.Endpoint) != ""
}

func (c *Config) applyCapabilityFile(path string) error {
	var file capabilityFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	bg := file.BackgroundRemoval
	c.Cutout.Toggle = toggleFromBool(bg.Enabled)
	c.Cutout.OnDevice = toggleFromBool(bg.OnDevice)
	c.Cutout.Endpoint = coalesce(bg.Endpoint, c.Cutout.Endpoint)
	c.Cutout.Model = coalesce(bg.Model, c.Cutout.Model)
	c.Cutout.Resolution = coalesce(bg.Resolution, c.Cutout.Resolution)
	if bg.MaxPolls != nil {
		c.Cutout.MaxPolls = *bg.MaxPolls
	}
	if bg.PollInterval != nil {
		d, err := time.ParseDuration(*bg.PollInterval)
		if err != nil {
			return fmt.Errorf("background_removal.poll_interval: %w", err)
		}
		c.Cutout.PollInterval = d
	}

	vt := file.VirtualTryOn
	c.TryOn.Toggle = toggleFromBool(vt.Enabled)
	c.TryOn.BaseURL = coalesce(vt.BaseURL, c.TryOn.BaseURL)
	c.TryOn.Model = coalesce(vt.Model, c.TryOn.Model)
	if vt.MaxPolls != nil {
		c.TryOn.MaxPolls = *vt.MaxPolls
	}
	if vt.PollInterval != nil {
		d, err := time.ParseDuration(*vt.PollInterval)
		if err != nil {
			return fmt.Errorf("virtual_try_on.poll_interval: %w", err)
		}
		c.TryOn.PollInterval = d
	}

	c.Tagging.Toggle = toggleFromBool(file.Categorization.Enabled)
	c.Tagging.Endpoint = coalesce(file.Categorization.Endpoint, c.Tagging.Endpoint)
	return nil
}

func toggleFromBool(v *bool) Toggle {
	switch {
	case v == nil:
		return ToggleUnset
	case *v:
		return ToggleOn
	default:
		return ToggleOff
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

func getEnvToggle(key string, fallback Toggle) Toggle {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes", "enabled":
		return ToggleOn
	case "0", "false", "off", "no", "disabled":
		return ToggleOff
	default:
		return fallback
	}
}
