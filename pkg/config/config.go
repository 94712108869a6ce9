package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Presentation struct {
	HeaderName string `yaml:"headerName,omitempty"`
	Timezone   string `yaml:"timezone"`
	BannerHTML string `yaml:"bannerHtml,omitempty"`
}

type SessionsConfig struct {
	TokenTTL                 time.Duration `yaml:"tokenTTL"`
	WebSocketReadBufferSize  int           `yaml:"webSocketReadBufferSize"`
	WebSocketWriteBufferSize int           `yaml:"webSocketWriteBufferSize"`
	MaxConnections           int           `yaml:"maxConnections"`
	SendBufferSize           int           `yaml:"sendBufferSize"`
	SweepInterval            time.Duration `yaml:"sweepInterval"`
}

type RateLimiterConfig struct {
	Limit float64 `yaml:"limit"` // Requests per second
	Burst int     `yaml:"burst"` // Burst size
}

type RateLimiters struct {
	Auth    RateLimiterConfig `yaml:"auth"`
	Data    RateLimiterConfig `yaml:"data"`
	Default RateLimiterConfig `yaml:"default"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type Server struct {
	HttpBinding string `yaml:"httpBinding"`
	DataDir     string `yaml:"dataDir"`
	StaticDir   string `yaml:"staticDir,omitempty"`

	// Exactly one of these must end up set after the env overlay. The hash
	// form is an argon2id encoded string; the plaintext form is compared
	// constant-time at login.
	AdminPassword     string `yaml:"adminPassword,omitempty"`
	AdminPasswordHash string `yaml:"adminPasswordHash,omitempty"`

	Presentation Presentation   `yaml:"presentation"`
	Sessions     SessionsConfig `yaml:"sessions"`
	RateLimiters RateLimiters   `yaml:"rateLimiters"`
	Logging      LoggingConfig  `yaml:"logging"`
}

var (
	ErrConfigFileUnreadable     = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable = errors.New("config file is unmarshallable")
	ErrAdminSecretMissing       = errors.New("admin password is not configured (set adminPassword/adminPasswordHash or the ADMIN_PASSWORD env var)")
	ErrBindingMissing           = errors.New("httpBinding is missing in config")
	ErrDataDirMissing           = errors.New("dataDir is missing in config")
	ErrTokenTTLInvalid          = errors.New("sessions.tokenTTL must be positive")
	ErrSweepIntervalInvalid     = errors.New("sessions.sweepInterval must be positive")
)

// Default returns the configuration used when no file is supplied. The admin
// secret has no default on purpose; boot fails without one.
func Default() *Server {
	return &Server{
		HttpBinding: "0.0.0.0:8080",
		DataDir:     "data",
		Presentation: Presentation{
			Timezone: "UTC",
		},
		Sessions: SessionsConfig{
			TokenTTL:                 8 * time.Hour,
			WebSocketReadBufferSize:  4096,
			WebSocketWriteBufferSize: 4096,
			MaxConnections:           100,
			SendBufferSize:           256,
			SweepInterval:            30 * time.Second,
		},
		RateLimiters: RateLimiters{
			Auth:    RateLimiterConfig{Limit: 5.0, Burst: 10},
			Data:    RateLimiterConfig{Limit: 100.0, Burst: 200},
			Default: RateLimiterConfig{Limit: 100.0, Burst: 200},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the yaml config at configFile, overlays environment variables,
// and validates the result. An empty configFile, or one that simply does not
// exist, yields the defaults plus the env overlay — the original deployment
// ran on environment variables alone and that still works.
func Load(configFile string) (*Server, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, ErrConfigFileUnreadable
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, ErrConfigFileUnmarshallable
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Server) applyEnv() {
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		c.AdminPassword = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		c.AdminPasswordHash = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.HttpBinding = "0.0.0.0:" + v
	}
	if v := os.Getenv("PAGE_HEADER_NAME"); v != "" {
		c.Presentation.HeaderName = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		c.Presentation.Timezone = v
	}
	if v := os.Getenv("PAGE_BANNER_HTML"); v != "" {
		c.Presentation.BannerHTML = v
	}
	if v := os.Getenv("WALLCAL_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("WALLCAL_STATIC_DIR"); v != "" {
		c.StaticDir = v
	}
}

func (c *Server) validate() error {
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return ErrAdminSecretMissing
	}
	if c.HttpBinding == "" {
		return ErrBindingMissing
	}
	if c.DataDir == "" {
		return ErrDataDirMissing
	}
	if c.Sessions.TokenTTL <= 0 {
		return ErrTokenTTLInvalid
	}
	if c.Sessions.SweepInterval <= 0 {
		return ErrSweepIntervalInvalid
	}
	if c.Sessions.SendBufferSize <= 0 {
		c.Sessions.SendBufferSize = Default().Sessions.SendBufferSize
	}
	if c.Sessions.MaxConnections <= 0 {
		c.Sessions.MaxConnections = Default().Sessions.MaxConnections
	}
	if c.Presentation.Timezone == "" {
		c.Presentation.Timezone = "UTC"
	}
	return nil
}
