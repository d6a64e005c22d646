package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultQueryTimeout       = 15 * time.Second
	defaultSlowQueryThreshold = time.Second
	defaultShutdownTimeout    = 10 * time.Second
	minJWTSecretLength        = 32

	jwtSecretEnv = "AUTH_JWT_SECRET"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig は HTTP / gRPC サーバーに関する設定です。
type ServerConfig struct {
	HTTPAddr           string        `yaml:"http_addr"`
	GRPCAddr           string        `yaml:"grpc_addr"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host                  string        `yaml:"host"`
	Port                  int           `yaml:"port"`
	User                  string        `yaml:"user"`
	Password              string        `yaml:"password"`
	Name                  string        `yaml:"name"`
	SSLMode               string        `yaml:"ssl_mode"`
	MaxOpenConns          int           `yaml:"max_open_conns"`
	MaxIdleConns          int           `yaml:"max_idle_conns"`
	ConnMaxLifetime       time.Duration `yaml:"-"`
	ConnMaxIdleTime       time.Duration `yaml:"-"`
	QueryTimeout          time.Duration `yaml:"-"`
	SlowQueryThreshold    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw    string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw    string        `yaml:"conn_max_idle_time"`
	QueryTimeoutRaw       string        `yaml:"query_timeout"`
	SlowQueryThresholdRaw string        `yaml:"slow_query_threshold"`
}

// AuthConfig はトークン検証に関する設定です。
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// HTTPConfig は HTTP API のミドルウェア設定です。
type HTTPConfig struct {
	CORSOrigins        []string       `yaml:"cors_origins"`
	RateLimitPerSecond int            `yaml:"rate_limit_per_second"`
	RateLimitBurst     int            `yaml:"rate_limit_burst"`
	TrustedProxies     []netip.Prefix `yaml:"-"`
	TrustedProxiesRaw  []string       `yaml:"trusted_proxies"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if secret := os.Getenv(jwtSecretEnv); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}

	db := &c.Database
	if err := db.validateAndNormalize(); err != nil {
		return err
	}

	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("config: auth.jwt_secret must be at least %d characters", minJWTSecretLength)
	}

	if err := c.HTTP.validateAndNormalize(); err != nil {
		return err
	}
	c.Log.normalize()

	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.HTTPAddr == "" {
		return fmt.Errorf("config: server.http_addr must be set")
	}
	if s.GRPCAddr == "" {
		return fmt.Errorf("config: server.grpc_addr must be set")
	}

	timeout, err := parseDurationAllowEmpty(s.ShutdownTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}
	s.ShutdownTimeout = timeout

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	queryTimeout, err := parseDurationAllowEmpty(d.QueryTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: database.query_timeout: %w", err)
	}
	if queryTimeout == 0 {
		queryTimeout = defaultQueryTimeout
	}
	d.QueryTimeout = queryTimeout

	slow, err := parseDurationAllowEmpty(d.SlowQueryThresholdRaw)
	if err != nil {
		return fmt.Errorf("config: database.slow_query_threshold: %w", err)
	}
	if slow == 0 {
		slow = defaultSlowQueryThreshold
	}
	d.SlowQueryThreshold = slow

	return nil
}

func (h *HTTPConfig) validateAndNormalize() error {
	origins := make([]string, 0, len(h.CORSOrigins))
	for _, o := range h.CORSOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h.CORSOrigins = origins

	if h.RateLimitPerSecond <= 0 {
		h.RateLimitPerSecond = 50
	}
	if h.RateLimitBurst <= 0 {
		h.RateLimitBurst = h.RateLimitPerSecond * 2
	}

	proxies := make([]netip.Prefix, 0, len(h.TrustedProxiesRaw))
	for _, raw := range h.TrustedProxiesRaw {
		p, err := parseProxy(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("config: http.trusted_proxies: %w", err)
		}
		proxies = append(proxies, p)
	}
	h.TrustedProxies = proxies

	return nil
}

// parseProxy は CIDR または単一アドレスを受け付けます。
func parseProxy(raw string) (netip.Prefix, error) {
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (l *LogConfig) normalize() {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = "info"
	}
	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if l.Format != "text" {
		l.Format = "json"
	}
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
