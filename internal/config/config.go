package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"readTimeout"`
		WriteTimeout   time.Duration `yaml:"writeTimeout"`
		IdleTimeout    time.Duration `yaml:"idleTimeout"`
		AllowedOrigins []string      `yaml:"allowedOrigins"`
		// RateLimit is the request burst allowed per super user; 0 disables it
		RateLimit int `yaml:"rateLimit"`
		// RateRefill is tokens added back per second
		RateRefill int           `yaml:"rateRefill"`
		EventPoll  time.Duration `yaml:"eventPoll"`
	} `yaml:"server"`

	Database struct {
		// Driver is mysql, postgres or sqlite
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		// Path of the sqlite file
		Path string `yaml:"path"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		OpenAI     Provider `yaml:"openai"`
		Perplexity Provider `yaml:"perplexity"`
		Anthropic  Provider `yaml:"anthropic"`
		// Responder answers the generated prompts: perplexity, anthropic or openai
		Responder          string  `yaml:"responder"`
		Concurrency        int     `yaml:"concurrency"`
		RequestsPerSecond  float64 `yaml:"requestsPerSecond"`
		PromptsPerCategory int     `yaml:"promptsPerCategory"`
		MaxPrompts         int     `yaml:"maxPrompts"`
	} `yaml:"ai"`

	Slack struct {
		WebhookURL   string `yaml:"webhookURL"`
		DashboardURL string `yaml:"dashboardURL"`
	} `yaml:"slack"`

	Auth struct {
		// APIKeys maps super user id to its API key
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Provider holds the credentials of one AI provider
type Provider struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"`
}

// Load reads config.yaml. A .env file next to the working directory is loaded
// first and ${VAR} references in the yaml are expanded from the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "load .env")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes yaml config data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, eris.Wrap(err, "parse config")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// complete can run for minutes
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Minute
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RateRefill == 0 {
		c.Server.RateRefill = 1
	}
	if c.Server.EventPoll == 0 {
		c.Server.EventPoll = time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Path == "" {
		c.Database.Path = "snowball.db"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.AI.Responder == "" {
		c.AI.Responder = "perplexity"
	}
	if c.AI.OpenAI.Model == "" {
		c.AI.OpenAI.Model = "gpt-4o-mini"
	}
	if c.AI.Perplexity.Model == "" {
		c.AI.Perplexity.Model = "sonar-pro"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return eris.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	switch c.AI.Responder {
	case "perplexity", "anthropic", "openai":
	default:
		return eris.Errorf("config: unsupported responder %q", c.AI.Responder)
	}
	if len(c.Auth.APIKeys) == 0 {
		return eris.New("config: auth.apiKeys must list at least one super user")
	}
	return nil
}

// MinioEnabled reports whether report caching in object storage is configured.
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != "" && c.Minio.BucketName != ""
}

// MySQLDSN builds the go-sql-driver DSN from the database section.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// NewLogger builds the zap logger described by the logging section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(c.Logging.Level))
	if err != nil {
		return nil, eris.Wrapf(err, "logging level %q", c.Logging.Level)
	}

	var zc zap.Config
	switch strings.ToLower(c.Logging.Format) {
	case "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, eris.Errorf("logging format: unsupported value %q", c.Logging.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// InitLogger installs the configured logger as zap's global logger.
func (c *Config) InitLogger() (*zap.Logger, error) {
	logger, err := c.NewLogger()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
