package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "GATEWAY"

type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	Log          LogConfig          `mapstructure:"log"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Notification NotificationConfig `mapstructure:"notification"`
	AMQP         AMQPConfig         `mapstructure:"amqp"`
	Otel         OtelConfig         `mapstructure:"otel"`
	CORS         CORSConfig         `mapstructure:"cors"`

	v *viper.Viper
}

type HTTPConfig struct {
	Address           string        `mapstructure:"address"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	KeepAlive         time.Duration `mapstructure:"keep_alive"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is "json" or "text".
	Format string `mapstructure:"format"`
}

// AuthConfig holds the three signing secrets. They must be pairwise distinct:
// a leaked bearer token must never verify as a publish credential.
type AuthConfig struct {
	BearerSecret  string `mapstructure:"bearer_secret"`
	RefreshSecret string `mapstructure:"refresh_secret"`
	SenderSecret  string `mapstructure:"sender_secret"`
}

type NotificationConfig struct {
	// DirectoryAddress is the gRPC target of the notification service.
	// Empty selects the in-memory directory (development only).
	DirectoryAddress string        `mapstructure:"directory_address"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	PageSize         int64         `mapstructure:"page_size"`
	MailboxSize      int           `mapstructure:"mailbox_size"`
	GroupCacheSize   int           `mapstructure:"group_cache_size"`
	GroupCacheTTL    time.Duration `mapstructure:"group_cache_ttl"`
}

type AMQPConfig struct {
	// URL of the RabbitMQ broker. Empty runs the bus in-process.
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type OtelConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.keep_alive", 25*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("notification.call_timeout", 5*time.Second)
	v.SetDefault("notification.page_size", 10)
	v.SetDefault("notification.mailbox_size", 256)
	v.SetDefault("notification.group_cache_size", 10000)
	v.SetDefault("notification.group_cache_ttl", 30*time.Second)

	v.SetDefault("amqp.exchange", "notification.commands")

	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// LoadConfig reads defaults, then the optional file at path, then GATEWAY_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{"auth.bearer_secret", "auth.refresh_secret", "auth.sender_secret", "notification.directory_address", "amqp.url", "otel.endpoint"} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Auth.BearerSecret == "" {
		errs = append(errs, errors.New("auth.bearer_secret is required"))
	}
	if c.Auth.SenderSecret == "" {
		errs = append(errs, errors.New("auth.sender_secret is required"))
	}
	if c.Auth.SenderSecret != "" && (c.Auth.SenderSecret == c.Auth.BearerSecret || c.Auth.SenderSecret == c.Auth.RefreshSecret) {
		errs = append(errs, errors.New("auth.sender_secret must differ from the bearer and refresh secrets"))
	}
	if c.Notification.PageSize <= 0 {
		errs = append(errs, errors.New("notification.page_size must be positive"))
	}
	if c.Notification.MailboxSize <= 0 {
		errs = append(errs, errors.New("notification.mailbox_size must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// OnChange watches the config file and hands every successfully decoded revision to fn.
// It is a no-op when no file was loaded.
func (c *Config) OnChange(fn func(next *Config)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(c.v)
		if err != nil {
			slog.Warn("CONFIG_RELOAD_REJECTED", "file", e.Name, "err", err)
			return
		}
		fn(next)
	})
	c.v.WatchConfig()
}

// ParseLevel maps the configured level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}
