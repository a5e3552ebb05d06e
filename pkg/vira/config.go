package vira

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/harunnryd/vira/pkg/configutil"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	LogFormat   string           `mapstructure:"log_format"`
	Server      ServerConfig     `mapstructure:"server"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Vendors     VendorsConfig    `mapstructure:"vendors"`
	Classifier  ClassifierConfig `mapstructure:"classifier"`
	Session     SessionConfig    `mapstructure:"session"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Privacy     PrivacyConfig    `mapstructure:"privacy"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SessionPath    string   `mapstructure:"session_path"`
	DrainTimeoutMS int      `mapstructure:"drain_timeout_ms"`
}

type AuthConfig struct {
	// JWTSecret enables token checks on /api and the session socket when set.
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	LLM VendorConfig `mapstructure:"llm"`
}

type ClassifierConfig struct {
	TimeoutMS int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	MinRequests int     `mapstructure:"min_requests"`
	FailureRate float64 `mapstructure:"failure_rate"`
	CooldownMS  int     `mapstructure:"cooldown_ms"`
	WindowMS    int     `mapstructure:"window_ms"`
}

type SessionConfig struct {
	AssistantName     string `mapstructure:"assistant_name"`
	CreatorName       string `mapstructure:"creator_name"`
	MaxCaptureMS      int    `mapstructure:"max_capture_ms"`
	DispatchTimeoutMS int    `mapstructure:"dispatch_timeout_ms"`
	SubscriberBuffer  int    `mapstructure:"subscriber_buffer"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	// LogEvents also writes every metrics event as a JSON line to stderr.
	LogEvents bool `mapstructure:"log_events"`
	// TimelineDir, when set, receives one JSONL trace per session.
	TimelineDir            string `mapstructure:"timeline_dir"`
	TimelineRetentionHours int    `mapstructure:"timeline_retention_hours"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// LoadConfig reads path (optional) on top of defaults. ${VAR} references in
// string values are expanded and VIRA_* variables override keys, e.g.
// VIRA_SERVER_ADDR for server.addr.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.session_path", "/ws/session")
	v.SetDefault("server.drain_timeout_ms", 10000)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl_hours", 168)
	v.SetDefault("vendors.llm.provider", "gemini")
	v.SetDefault("classifier.timeout_ms", 15000)
	v.SetDefault("classifier.breaker.enabled", true)
	v.SetDefault("classifier.breaker.min_requests", 5)
	v.SetDefault("classifier.breaker.failure_rate", 0.6)
	v.SetDefault("classifier.breaker.cooldown_ms", 30000)
	v.SetDefault("classifier.breaker.window_ms", 60000)
	v.SetDefault("session.assistant_name", "Vira")
	v.SetDefault("session.creator_name", "")
	v.SetDefault("session.max_capture_ms", 15000)
	v.SetDefault("session.dispatch_timeout_ms", 20000)
	v.SetDefault("session.subscriber_buffer", 16)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "vira")
	v.SetDefault("metrics.log_events", false)
	v.SetDefault("metrics.timeline_retention_hours", 72)
	v.SetDefault("privacy.redact_pii", true)

	v.SetEnvPrefix("VIRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)
	if cfg.Session.CreatorName == "" {
		cfg.Session.CreatorName = cfg.Session.AssistantName
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := configutil.RequireString(c.Vendors.LLM.Provider, "vendors.llm.provider"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Session.AssistantName, "session.assistant_name"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Server.Addr, "server.addr"); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Server.SessionPath, "/") {
		return fmt.Errorf("server.session_path must start with /")
	}
	if c.Classifier.TimeoutMS < 0 || c.Session.MaxCaptureMS < 0 || c.Session.DispatchTimeoutMS < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func (c Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutMS) * time.Millisecond
}

func (c Config) DrainTimeout() time.Duration {
	if c.Server.DrainTimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.DrainTimeoutMS) * time.Millisecond
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
