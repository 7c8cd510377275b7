// Package config loads service settings: defaults, then an optional YAML file, then
// STOREFRONT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

type Config struct {
	Service   string          `mapstructure:"service"`
	Env       string          `mapstructure:"env"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Orders    OrdersConfig    `mapstructure:"orders"`
	Log       LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects postgres when URL is set; otherwise the in-memory stores are used.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

type GatewayConfig struct {
	Mode       string        `mapstructure:"mode"`
	BaseURL    string        `mapstructure:"base_url"`
	MerchantID string        `mapstructure:"merchant_id"`
	PublicKey  string        `mapstructure:"public_key"`
	PrivateKey string        `mapstructure:"private_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	EventsTopic       string   `mapstructure:"events_topic"`
	NotificationTopic string   `mapstructure:"notification_topic"`
}

type NotifierConfig struct {
	Channel       string     `mapstructure:"channel"`
	OperatorEmail string     `mapstructure:"operator_email"`
	SMTP          SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type ReconcileConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	OlderThan time.Duration `mapstructure:"older_than"`
	Limit     int           `mapstructure:"limit"`
}

type OrdersConfig struct {
	LeadTime         time.Duration `mapstructure:"lead_time"`
	StockConcurrency int           `mapstructure:"stock_concurrency"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

const (
	GatewaySandbox = "sandbox"
	GatewayHTTP    = "http"

	NotifierLog   = "log"
	NotifierSMTP  = "smtp"
	NotifierKafka = "kafka"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("service", "storefront-orders")
	v.SetDefault("env", "dev")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_header_timeout", 5*time.Second)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrate", false)
	v.SetDefault("gateway.mode", GatewaySandbox)
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.merchant_id", "")
	v.SetDefault("gateway.public_key", "")
	v.SetDefault("gateway.private_key", "")
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.events_topic", "storefront.orders")
	v.SetDefault("kafka.notification_topic", "storefront.notifications")
	v.SetDefault("notifier.channel", NotifierLog)
	v.SetDefault("notifier.operator_email", "")
	v.SetDefault("notifier.smtp.host", "")
	v.SetDefault("notifier.smtp.port", 587)
	v.SetDefault("notifier.smtp.username", "")
	v.SetDefault("notifier.smtp.password", "")
	v.SetDefault("notifier.smtp.from", "")
	v.SetDefault("reconcile.interval", time.Minute)
	v.SetDefault("reconcile.older_than", 2*time.Minute)
	v.SetDefault("reconcile.limit", 100)
	v.SetDefault("orders.lead_time", 7*24*time.Hour)
	v.SetDefault("orders.stock_concurrency", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads path when it is non-empty (falling back to STOREFRONT_CONFIG) and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	switch c.Gateway.Mode {
	case GatewaySandbox:
	case GatewayHTTP:
		if c.Gateway.BaseURL == "" || c.Gateway.MerchantID == "" {
			errs = append(errs, errors.New("gateway.base_url and gateway.merchant_id are required in http mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("gateway.mode %q is not one of sandbox, http", c.Gateway.Mode))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, errors.New("gateway.timeout must be positive"))
	}
	switch c.Notifier.Channel {
	case NotifierLog:
	case NotifierSMTP:
		if c.Notifier.SMTP.Host == "" || c.Notifier.SMTP.From == "" {
			errs = append(errs, errors.New("notifier.smtp.host and notifier.smtp.from are required for smtp"))
		}
	case NotifierKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("notifier.channel %q is not one of log, smtp, kafka", c.Notifier.Channel))
	}
	if c.HTTP.ReadHeaderTimeout <= 0 || c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		errs = append(errs, errors.New("http.read_header_timeout, http.read_timeout and http.write_timeout must be positive"))
	}
	if c.Reconcile.Interval < 0 || c.Reconcile.OlderThan < 0 {
		errs = append(errs, errors.New("reconcile durations must not be negative"))
	}
	if err := c.CheckSweepCutoff(c.Reconcile.OlderThan); err != nil {
		errs = append(errs, err)
	}
	if c.Orders.LeadTime <= 0 {
		errs = append(errs, errors.New("orders.lead_time must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// CheckSweepCutoff rejects a reconcile cutoff that could reach intents whose charge is still in
// flight at the gateway.
func (c *Config) CheckSweepCutoff(olderThan time.Duration) error {
	if olderThan <= c.Gateway.Timeout {
		return fmt.Errorf("reconcile.older_than (%s) must exceed gateway.timeout (%s)", olderThan, c.Gateway.Timeout)
	}
	return nil
}

// splitList accepts both YAML lists and the comma separated form env vars produce.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
