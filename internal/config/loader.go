package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// Environment variables consulted for secrets so they can stay out of
// config files.
const (
	EnvJWTSecret       = "SHOWCASE_JWT_SECRET"
	EnvInferenceAPIKey = "SHOWCASE_INFERENCE_API_KEY"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr     *string
	ExternalOrigin *string
	DatabaseDriver *string
	DataDir        *string
	CacheDriver    *string
	TLSMode        *string
	LoggingLevel   *string
	AdminUsername  *string
	AdminPassword  *string
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	Mode string `toml:"mode"`

	ExternalOrigin string `toml:"external_origin"`
	ListenAddr     string `toml:"listen_addr"`

	Logging      *LoggingConfig      `toml:"logging"`
	TLS          *TLSConfig          `toml:"tls"`
	Database     *DatabaseConfig     `toml:"database"`
	Cache        *cacheFileConfig    `toml:"cache"`
	Inference    *InferenceConfig    `toml:"inference"`
	Auth         *AuthConfig         `toml:"auth"`
	RateLimit    *RateLimitConfig    `toml:"rate_limit"`
	OutboundHTTP *OutboundHTTPConfig `toml:"outbound_http"`
}

// cacheFileConfig holds cache settings from TOML.
type cacheFileConfig struct {
	Driver  string                    `toml:"driver"`
	Drivers map[string]map[string]any `toml:"drivers"`
}

// Load builds the effective configuration with precedence:
// mode preset -> TOML file -> CLI flags -> secret env vars.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mode, err := ParseMode(opts.ModeFlag)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	if opts.ConfigPath != "" {
		meta, err := toml.DecodeFile(opts.ConfigPath, &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", opts.ConfigPath, err)
		}
		for _, key := range meta.Undecoded() {
			logger.Warn("unknown config key", "key", key.String())
		}
		// File mode applies only when the flag did not set one
		if opts.ModeFlag == "" && fc.Mode != "" {
			mode, err = ParseMode(fc.Mode)
			if err != nil {
				return nil, err
			}
		}
	}

	cfg := presetFor(mode)
	applyFile(cfg, &fc)
	applyFlags(cfg, &opts.FlagOverrides)
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetFor returns the baseline configuration for a mode.
func presetFor(mode Mode) *Config {
	cfg := &Config{
		ExternalOrigin: "http://localhost:8080",
		ListenAddr:     ":8080",
		Logging:        LoggingConfig{Level: "info"},
		TLS:            TLSConfig{Mode: "off", HTTPPort: 80},
		Database:       DatabaseConfig{Driver: "sqlite", DataDir: "data"},
		Cache:          CacheConfig{Driver: "memory"},
		Inference: InferenceConfig{
			BaseURL:       "https://router.huggingface.co",
			Model:         "mistralai/Mistral-7B-Instruct-v0.3",
			TimeoutMS:     15000,
			MaxTokens:     150,
			SystemPrompt:  "You are a helpful assistant.",
			FallbackReply: "Sorry, I can't answer right now. Please try again in a moment.",
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 60,
			BcryptCost:      12,
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: 5,
			JoinPerMinute:  30,
		},
		OutboundHTTP: OutboundHTTPConfig{
			SSRFMode:         "strict",
			TimeoutMS:        20000,
			ConnectTimeoutMS: 2000,
			MaxResponseBytes: 1048576,
		},
	}

	if mode == ModeDev {
		cfg.Logging.Level = "debug"
		cfg.Database.Driver = "memory"
		cfg.Auth.BcryptCost = 4 // fast hashing for local iteration
		cfg.OutboundHTTP.SSRFMode = "off"
	}

	return cfg
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.ExternalOrigin != "" {
		cfg.ExternalOrigin = fc.ExternalOrigin
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}
	if fc.TLS != nil {
		applyTLS(&cfg.TLS, fc.TLS)
	}
	if fc.Database != nil {
		if fc.Database.Driver != "" {
			cfg.Database.Driver = fc.Database.Driver
		}
		if fc.Database.DataDir != "" {
			cfg.Database.DataDir = fc.Database.DataDir
		}
	}
	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if fc.Cache.Drivers != nil {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}
	if fc.Inference != nil {
		applyInference(&cfg.Inference, fc.Inference)
	}
	if fc.Auth != nil {
		applyAuth(&cfg.Auth, fc.Auth)
	}
	if fc.RateLimit != nil {
		if fc.RateLimit.LoginPerMinute > 0 {
			cfg.RateLimit.LoginPerMinute = fc.RateLimit.LoginPerMinute
		}
		if fc.RateLimit.JoinPerMinute > 0 {
			cfg.RateLimit.JoinPerMinute = fc.RateLimit.JoinPerMinute
		}
	}
	if fc.OutboundHTTP != nil {
		applyOutbound(&cfg.OutboundHTTP, fc.OutboundHTTP)
	}
}

func applyTLS(dst *TLSConfig, src *TLSConfig) {
	if src.Mode != "" {
		dst.Mode = src.Mode
	}
	if src.CertFile != "" {
		dst.CertFile = src.CertFile
	}
	if src.KeyFile != "" {
		dst.KeyFile = src.KeyFile
	}
	if src.SelfSignedDir != "" {
		dst.SelfSignedDir = src.SelfSignedDir
	}
	if src.HTTPPort != 0 {
		dst.HTTPPort = src.HTTPPort
	}
	if src.ACME.Domain != "" {
		dst.ACME.Domain = src.ACME.Domain
	}
	if src.ACME.Email != "" {
		dst.ACME.Email = src.ACME.Email
	}
	if src.ACME.StorageDir != "" {
		dst.ACME.StorageDir = src.ACME.StorageDir
	}
	if src.ACME.Directory != "" {
		dst.ACME.Directory = src.ACME.Directory
	}
	if src.ACME.UseStaging {
		dst.ACME.UseStaging = true
	}
}

func applyInference(dst *InferenceConfig, src *InferenceConfig) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.TimeoutMS > 0 {
		dst.TimeoutMS = src.TimeoutMS
	}
	if src.MaxTokens > 0 {
		dst.MaxTokens = src.MaxTokens
	}
	if src.SystemPrompt != "" {
		dst.SystemPrompt = src.SystemPrompt
	}
	if src.FallbackReply != "" {
		dst.FallbackReply = src.FallbackReply
	}
}

func applyAuth(dst *AuthConfig, src *AuthConfig) {
	if src.JWTSecret != "" {
		dst.JWTSecret = src.JWTSecret
	}
	if src.TokenTTLMinutes > 0 {
		dst.TokenTTLMinutes = src.TokenTTLMinutes
	}
	if src.BcryptCost > 0 {
		dst.BcryptCost = src.BcryptCost
	}
	if src.AdminUsername != "" {
		dst.AdminUsername = src.AdminUsername
	}
	if src.AdminPassword != "" {
		dst.AdminPassword = src.AdminPassword
	}
}

func applyOutbound(dst *OutboundHTTPConfig, src *OutboundHTTPConfig) {
	if src.SSRFMode != "" {
		dst.SSRFMode = src.SSRFMode
	}
	if src.TimeoutMS > 0 {
		dst.TimeoutMS = src.TimeoutMS
	}
	if src.ConnectTimeoutMS > 0 {
		dst.ConnectTimeoutMS = src.ConnectTimeoutMS
	}
	if src.MaxResponseBytes > 0 {
		dst.MaxResponseBytes = src.MaxResponseBytes
	}
	if src.InsecureSkipVerify {
		dst.InsecureSkipVerify = true
	}
}

func applyFlags(cfg *Config, flags *FlagOverrides) {
	if flags == nil {
		return
	}
	if flags.ListenAddr != nil && *flags.ListenAddr != "" {
		cfg.ListenAddr = *flags.ListenAddr
	}
	if flags.ExternalOrigin != nil && *flags.ExternalOrigin != "" {
		cfg.ExternalOrigin = *flags.ExternalOrigin
	}
	if flags.DatabaseDriver != nil && *flags.DatabaseDriver != "" {
		cfg.Database.Driver = *flags.DatabaseDriver
	}
	if flags.DataDir != nil && *flags.DataDir != "" {
		cfg.Database.DataDir = *flags.DataDir
	}
	if flags.CacheDriver != nil && *flags.CacheDriver != "" {
		cfg.Cache.Driver = *flags.CacheDriver
	}
	if flags.TLSMode != nil && *flags.TLSMode != "" {
		cfg.TLS.Mode = *flags.TLSMode
	}
	if flags.LoggingLevel != nil && *flags.LoggingLevel != "" {
		cfg.Logging.Level = *flags.LoggingLevel
	}
	if flags.AdminUsername != nil && *flags.AdminUsername != "" {
		cfg.Auth.AdminUsername = *flags.AdminUsername
	}
	if flags.AdminPassword != nil && *flags.AdminPassword != "" {
		cfg.Auth.AdminPassword = *flags.AdminPassword
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvJWTSecret); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvInferenceAPIKey); v != "" {
		cfg.Inference.APIKey = v
	}
}

func validate(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off", "static", "selfsigned", "acme":
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	switch cfg.OutboundHTTP.SSRFMode {
	case "strict", "off":
	default:
		return fmt.Errorf("invalid outbound_http.ssrf_mode %q: must be strict or off", cfg.OutboundHTTP.SSRFMode)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", cfg.Logging.Level)
	}

	if cfg.TLS.Mode == "acme" {
		if cfg.TLS.ACME.Domain == "" || cfg.TLS.ACME.Email == "" {
			return fmt.Errorf("tls.mode=acme requires acme.domain and acme.email")
		}
	}

	return nil
}
