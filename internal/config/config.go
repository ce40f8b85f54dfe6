// Package config provides configuration loading and validation.
package config

// Config holds the server configuration.
type Config struct {
	// ExternalOrigin is the public origin (scheme + host + port) for this
	// instance. Example: "https://showcase.example.com"
	ExternalOrigin string `json:"external_origin"`

	// ListenAddr is the address to listen on.
	// Example: ":8080"
	ListenAddr string `json:"listen_addr"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// TLS configuration
	TLS TLSConfig `json:"tls"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Cache configuration
	Cache CacheConfig `json:"cache"`

	// Inference (reply generation) configuration
	Inference InferenceConfig `json:"inference"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`

	// RateLimit configuration
	RateLimit RateLimitConfig `json:"rate_limit"`

	// OutboundHTTP configuration for the inference client
	OutboundHTTP OutboundHTTPConfig `json:"outbound_http"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error
	Level string `json:"level"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme
	Mode string `json:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`

	// SelfSignedDir is where generated certificates are stored
	SelfSignedDir string `json:"self_signed_dir"`

	// HTTPPort for the plain HTTP listener (ACME challenges)
	HTTPPort int `json:"http_port"`

	// ACME settings (acme mode only)
	ACME ACMEConfig `json:"acme"`
}

// ACMEConfig holds ACME certificate settings.
type ACMEConfig struct {
	// Domain is the domain to obtain a certificate for
	Domain string `json:"domain"`

	// Email is the ACME account email
	Email string `json:"email"`

	// StorageDir is where account and certificate data are stored
	StorageDir string `json:"storage_dir"`

	// Directory overrides the ACME directory URL (testing)
	Directory string `json:"directory"`

	// UseStaging selects the Let's Encrypt staging directory
	UseStaging bool `json:"use_staging"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	// Driver is one of: memory, sqlite
	Driver string `json:"driver"`

	// DataDir is the directory for data files (sqlite db)
	DataDir string `json:"data_dir"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is one of: memory, valkey
	Driver string `json:"driver"`

	// Drivers holds driver-specific settings keyed by driver name
	Drivers map[string]map[string]any `json:"drivers"`
}

// InferenceConfig holds reply-generation collaborator settings.
type InferenceConfig struct {
	// BaseURL of the chat-completion API
	BaseURL string `json:"base_url"`

	// Model identifier sent with each completion request
	Model string `json:"model"`

	// APIKey is the bearer token for the API (redacted in logs)
	APIKey string `json:"api_key"`

	// TimeoutMS bounds a single completion call; on expiry the chat
	// falls back to the deterministic reply
	TimeoutMS int `json:"timeout_ms"`

	// MaxTokens caps the completion length
	MaxTokens int `json:"max_tokens"`

	// SystemPrompt is prepended to each completion request
	SystemPrompt string `json:"system_prompt"`

	// FallbackReply is returned when the collaborator fails or times out
	FallbackReply string `json:"fallback_reply"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// JWTSecret signs session tokens (redacted in logs)
	JWTSecret string `json:"jwt_secret"`

	// TokenTTLMinutes is the session token lifetime
	TokenTTLMinutes int `json:"token_ttl_minutes"`

	// BcryptCost is the password hashing cost factor
	BcryptCost int `json:"bcrypt_cost"`

	// AdminUsername/AdminPassword bootstrap an admin account at startup
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
}

// RateLimitConfig holds per-endpoint rate limit settings.
type RateLimitConfig struct {
	// LoginPerMinute limits login attempts per client IP
	LoginPerMinute int64 `json:"login_per_minute"`

	// JoinPerMinute limits guest join attempts per client IP
	JoinPerMinute int64 `json:"join_per_minute"`
}

// OutboundHTTPConfig holds settings for outbound HTTP requests.
type OutboundHTTPConfig struct {
	// SSRFMode is one of: strict, off
	SSRFMode string `json:"ssrf_mode"`

	// TimeoutMS is the overall request timeout in milliseconds
	TimeoutMS int `json:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds
	ConnectTimeoutMS int `json:"connect_timeout_ms"`

	// MaxResponseBytes is the maximum response body size
	MaxResponseBytes int64 `json:"max_response_bytes"`

	// InsecureSkipVerify disables TLS verification (dev-only)
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

// Redacted returns a copy of the config safe for logging.
func (c *Config) Redacted() Config {
	redacted := *c

	if redacted.Inference.APIKey != "" {
		redacted.Inference.APIKey = "[redacted]"
	}
	if redacted.Auth.JWTSecret != "" {
		redacted.Auth.JWTSecret = "[redacted]"
	}
	if redacted.Auth.AdminPassword != "" {
		redacted.Auth.AdminPassword = "[redacted]"
	}

	// Driver config maps may contain passwords
	if redacted.Cache.Drivers != nil {
		cleaned := make(map[string]map[string]any, len(redacted.Cache.Drivers))
		for driver, settings := range redacted.Cache.Drivers {
			copied := make(map[string]any, len(settings))
			for k, v := range settings {
				if k == "password" {
					copied[k] = "[redacted]"
					continue
				}
				copied[k] = v
			}
			cleaned[driver] = copied
		}
		redacted.Cache.Drivers = cleaned
	}

	return redacted
}
