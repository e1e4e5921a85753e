package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LinkedIn  LinkedInConfig  `yaml:"linkedin" mapstructure:"linkedin"`
	Pacing    PacingConfig    `yaml:"pacing" mapstructure:"pacing"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// LinkedInConfig holds the upstream origin and session credentials.
type LinkedInConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	SessionCookie string  `yaml:"session_cookie" mapstructure:"session_cookie"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	RPS           float64 `yaml:"rps" mapstructure:"rps"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PacingConfig sets the randomized delays before upstream calls.
type PacingConfig struct {
	StructuredMinMs int `yaml:"structured_min_ms" mapstructure:"structured_min_ms"`
	StructuredMaxMs int `yaml:"structured_max_ms" mapstructure:"structured_max_ms"`
	SemiMinMs       int `yaml:"semi_min_ms" mapstructure:"semi_min_ms"`
	SemiMaxMs       int `yaml:"semi_max_ms" mapstructure:"semi_max_ms"`
	RenderedMinMs   int `yaml:"rendered_min_ms" mapstructure:"rendered_min_ms"`
	RenderedMaxMs   int `yaml:"rendered_max_ms" mapstructure:"rendered_max_ms"`
	StrategyGapMs   int `yaml:"strategy_gap_ms" mapstructure:"strategy_gap_ms"`
}

// ResolveConfig configures the orchestrator.
type ResolveConfig struct {
	Mode            string `yaml:"mode" mapstructure:"mode"`
	CallTimeoutSecs int    `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetryConfig mirrors resilience.RetryConfig in config-friendly units.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the per-strategy circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// BrowserConfig configures the rendered strategy's browser.
type BrowserConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Headless bool   `yaml:"headless" mapstructure:"headless"`
	ExecPath string `yaml:"exec_path" mapstructure:"exec_path"`
	Width    int    `yaml:"width" mapstructure:"width"`
	Height   int    `yaml:"height" mapstructure:"height"`
}

// PolicyConfig points at the heuristics file.
type PolicyConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	ServiceName  string            `yaml:"service_name" mapstructure:"service_name"`
	OTLPEndpoint string            `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	OTLPHeaders  map[string]string `yaml:"otlp_headers" mapstructure:"otlp_headers"`
}

// CallTimeout returns the per-strategy timeout.
func (c ResolveConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// Timeout returns the whole-resolution timeout; zero means none.
func (c ResolveConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ORGMETRICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("linkedin.base_url", "https://www.linkedin.com")
	v.SetDefault("linkedin.session_cookie", "")
	v.SetDefault("linkedin.user_agent", "")
	v.SetDefault("linkedin.rps", 1.0)
	v.SetDefault("linkedin.burst", 2)
	v.SetDefault("linkedin.timeout_secs", 20)
	v.SetDefault("pacing.structured_min_ms", 200)
	v.SetDefault("pacing.structured_max_ms", 800)
	v.SetDefault("pacing.semi_min_ms", 1000)
	v.SetDefault("pacing.semi_max_ms", 3000)
	v.SetDefault("pacing.rendered_min_ms", 1000)
	v.SetDefault("pacing.rendered_max_ms", 3000)
	v.SetDefault("pacing.strategy_gap_ms", 1500)
	v.SetDefault("resolve.mode", "auto")
	v.SetDefault("resolve.call_timeout_secs", 90)
	v.SetDefault("resolve.timeout_secs", 300)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.width", 1366)
	v.SetDefault("browser.height", 900)
	v.SetDefault("policy.path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("telemetry.service_name", "orgmetrics")
	v.SetDefault("telemetry.otlp_endpoint", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on. mode is "resolve" or
// "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "resolve":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be > 0 and <= 65535 (got %d)", c.Server.Port))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Resolve.Mode {
	case "", "auto", "structured-only", "semi-structured-only", "rendered-only":
	default:
		errs = append(errs, fmt.Sprintf("resolve.mode %q is not one of auto, structured-only, semi-structured-only, rendered-only", c.Resolve.Mode))
	}
	if c.Resolve.Mode == "rendered-only" && !c.Browser.Enabled {
		errs = append(errs, "resolve.mode rendered-only requires browser.enabled")
	}
	if c.LinkedIn.RPS <= 0 {
		errs = append(errs, "linkedin.rps must be > 0")
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be >= 1")
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		errs = append(errs, "retry.jitter_fraction must be between 0 and 1")
	}
	if c.Pacing.SemiMinMs < 0 || c.Pacing.SemiMaxMs < 0 || c.Pacing.RenderedMinMs < 0 || c.Pacing.RenderedMaxMs < 0 {
		errs = append(errs, "pacing delays must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
