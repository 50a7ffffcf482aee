// Package config loads wsrpcd settings from the environment.
//
// A .env file in the working directory is read first when present;
// variables already set in the process environment take precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transport names.
const (
	TransportWebSocket = "websocket"
	TransportStdio     = "stdio"
)

// Config holds every runtime setting.
type Config struct {
	Host string
	Port int

	LogLevel   string
	LogFormat  string
	LogBackend string

	RequestTimeout time.Duration
	MaxBodySize    int64
	WSPath         string
	AllowedOrigins []string

	// RateLimitRPS and RateLimitBurst bound calls per method. Zero
	// disables the limiter.
	RateLimitRPS   int
	RateLimitBurst int

	// ConnMessagesPerSec paces inbound frames on each connection. Zero
	// disables pacing.
	ConnMessagesPerSec float64
	ConnMessageBurst   int

	ShutdownTimeout time.Duration

	EtcdEndpoints []string
	ServiceName   string
	AnnounceTTL   time.Duration

	Transport string
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Host:             "127.0.0.1",
		Port:             3000,
		LogLevel:         "info",
		LogFormat:        "json",
		LogBackend:       "zap",
		RequestTimeout:   30 * time.Second,
		MaxBodySize:      2 << 20,
		WSPath:           "/live",
		AllowedOrigins:   []string{"http://localhost:3000"},
		ConnMessageBurst: 1,
		ShutdownTimeout:  30 * time.Second,
		ServiceName:      "wsrpc",
		AnnounceTTL:      10 * time.Second,
		Transport:        TransportWebSocket,
	}
}

// Load reads .env (if any) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// LoadFile reads the named env files before the process environment.
func LoadFile(filenames ...string) (Config, error) {
	if err := godotenv.Load(filenames...); err != nil {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.str("HOST", &cfg.Host)
	p.integer("PORT", &cfg.Port)
	p.str("LOG_LEVEL", &cfg.LogLevel)
	p.str("LOG_FORMAT", &cfg.LogFormat)
	p.str("LOG_BACKEND", &cfg.LogBackend)
	p.seconds("REQUEST_TIMEOUT_SECS", &cfg.RequestTimeout)
	p.int64("MAX_BODY_SIZE", &cfg.MaxBodySize)
	p.str("WS_PATH", &cfg.WSPath)
	p.list("ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	p.integer("RATE_LIMIT_RPS", &cfg.RateLimitRPS)
	p.integer("RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	p.float("CONN_MESSAGES_PER_SEC", &cfg.ConnMessagesPerSec)
	p.integer("CONN_MESSAGE_BURST", &cfg.ConnMessageBurst)
	p.seconds("SHUTDOWN_TIMEOUT_SECS", &cfg.ShutdownTimeout)
	p.list("ETCD_ENDPOINTS", &cfg.EtcdEndpoints)
	p.str("SERVICE_NAME", &cfg.ServiceName)
	p.seconds("ANNOUNCE_TTL_SECS", &cfg.AnnounceTTL)
	p.str("TRANSPORT", &cfg.Transport)

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_SIZE must be positive, got %d", c.MaxBodySize))
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		errs = append(errs, fmt.Errorf("WS_PATH %q must start with /", c.WSPath))
	}
	if c.RequestTimeout < 0 || c.ShutdownTimeout < 0 || c.AnnounceTTL < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 || c.ConnMessagesPerSec < 0 || c.ConnMessageBurst < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	switch c.Transport {
	case TransportWebSocket, TransportStdio:
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSPORT %q", c.Transport))
	}
	return errors.Join(errs...)
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RateLimited reports whether the per-method limiter is enabled.
func (c Config) RateLimited() bool {
	return c.RateLimitRPS > 0
}

// Announce reports whether etcd announcement is enabled.
func (c Config) Announce() bool {
	return len(c.EtcdEndpoints) > 0
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (p *parser) int64(key string, dst *int64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (p *parser) float(key string, dst *float64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return
	}
	*dst = f
}

func (p *parser) seconds(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = time.Duration(n) * time.Second
}

func (p *parser) list(key string, dst *[]string) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
