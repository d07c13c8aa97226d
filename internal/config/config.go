// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JeanGrijp/request-throttle/internal/core/domain"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Port                   string `yaml:"port"`
	Router                 string `yaml:"router"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_s"`
}

type StorageConfig struct {
	Type  string      `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ThrottleConfig struct {
	MaxRequests       int    `yaml:"max_requests"`
	PeriodSeconds     int    `yaml:"period_seconds"`
	KeyPrefix         string `yaml:"key_prefix"`
	FailOpen          bool   `yaml:"fail_open"`
	TrustProxyHeaders bool   `yaml:"trust_proxy_headers"`
	StoreTimeoutMs    int    `yaml:"store_timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controla o tracer provider do otel. Sem Endpoint nem LogSpans os
// spans são amostrados mas não saem do processo.
type TracingConfig struct {
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	LogSpans    bool    `yaml:"log_spans"`
}

const (
	RouterChi = "chi"
	RouterGin = "gin"

	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// LoadOptions aponta para arquivos de configuração opcionais. Caminhos vazios
// usam o ".env" do diretório atual e nenhum arquivo YAML.
type LoadOptions struct {
	EnvFile    string
	ConfigFile string
}

// Warning registra uma configuração inválida que foi substituída pelo padrão.
type Warning struct {
	Key      string
	Value    string
	Fallback string
}

func (w Warning) String() string {
	return fmt.Sprintf("invalid %s=%q, using %s", w.Key, w.Value, w.Fallback)
}

// Default devolve a configuração usada quando nada é informado.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:                   "8080",
			Router:                 RouterChi,
			ShutdownTimeoutSeconds: 10,
		},
		Storage: StorageConfig{
			Type: StorageRedis,
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		Throttle: ThrottleConfig{
			MaxRequests:   domain.DefaultMaxRequests,
			PeriodSeconds: domain.DefaultPeriodSeconds,
			KeyPrefix:     "throttle",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			ServiceName: "throttled",
			SampleRatio: 1,
		},
	}
}

// Load resolve a configuração a partir dos padrões, do arquivo YAML e do
// ambiente, em ordem crescente de precedência.
func Load(opts LoadOptions) (Config, []Warning, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return Config{}, nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	file, err := readFile(opts.ConfigFile)
	if err != nil {
		return Config{}, nil, err
	}

	r := resolver{file: file.values()}
	defaults := Default()

	cfg := Config{
		Server: ServerConfig{
			Port:                   r.str("SERVER_PORT", defaults.Server.Port),
			Router:                 strings.ToLower(r.str("SERVER_ROUTER", defaults.Server.Router)),
			ShutdownTimeoutSeconds: r.lenientInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", defaults.Server.ShutdownTimeoutSeconds),
		},
		Storage: StorageConfig{
			Type: strings.ToLower(r.str("STORAGE_TYPE", defaults.Storage.Type)),
		},
		Throttle: ThrottleConfig{
			MaxRequests:       r.lenientInt("THROTTLE_MAX_REQUESTS", defaults.Throttle.MaxRequests),
			PeriodSeconds:     r.lenientInt("THROTTLE_PERIOD_SECONDS", defaults.Throttle.PeriodSeconds),
			KeyPrefix:         r.str("THROTTLE_KEY_PREFIX", defaults.Throttle.KeyPrefix),
			FailOpen:          r.lenientBool("THROTTLE_FAIL_OPEN", defaults.Throttle.FailOpen),
			TrustProxyHeaders: r.lenientBool("THROTTLE_TRUST_PROXY_HEADERS", defaults.Throttle.TrustProxyHeaders),
			StoreTimeoutMs:    r.lenientInt("THROTTLE_STORE_TIMEOUT_MS", defaults.Throttle.StoreTimeoutMs),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(r.str("LOG_LEVEL", defaults.Logging.Level)),
			Format: strings.ToLower(r.str("LOG_FORMAT", defaults.Logging.Format)),
		},
		Tracing: TracingConfig{
			ServiceName: r.str("TRACING_SERVICE_NAME", defaults.Tracing.ServiceName),
			Endpoint:    r.str("TRACING_ENDPOINT", defaults.Tracing.Endpoint),
			Insecure:    r.lenientBool("TRACING_INSECURE", defaults.Tracing.Insecure),
			SampleRatio: r.lenientFloat("TRACING_SAMPLE_RATIO", defaults.Tracing.SampleRatio),
			LogSpans:    r.lenientBool("TRACING_LOG_SPANS", defaults.Tracing.LogSpans),
		},
	}

	redisConfig, err := buildRedisConfig(&r, defaults.Storage.Redis)
	if err != nil {
		return Config{}, nil, err
	}
	cfg.Storage.Redis = redisConfig

	if cfg.Server.Router != RouterChi && cfg.Server.Router != RouterGin {
		return Config{}, nil, fmt.Errorf("unsupported SERVER_ROUTER: %s", cfg.Server.Router)
	}

	return cfg, r.warnings, nil
}

func buildRedisConfig(r *resolver, defaults RedisConfig) (RedisConfig, error) {
	port, err := strconv.Atoi(r.str("REDIS_PORT", strconv.Itoa(defaults.Port)))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(r.str("REDIS_DB", strconv.Itoa(defaults.DB)))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return RedisConfig{
		Host:     r.str("REDIS_HOST", defaults.Host),
		Port:     port,
		Password: r.str("REDIS_PASSWORD", defaults.Password),
		DB:       db,
	}, nil
}

func (c Config) ThrottleRule() domain.ThrottleConfig {
	return domain.ThrottleConfig{
		MaxRequests:   c.Throttle.MaxRequests,
		PeriodSeconds: c.Throttle.PeriodSeconds,
	}
}

func (c Config) StoreTimeout() time.Duration {
	if c.Throttle.StoreTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(c.Throttle.StoreTimeoutMs) * time.Millisecond
}

func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Storage.Redis.Host, c.Storage.Redis.Port)
}

// Redacted devolve uma cópia segura para imprimir.
func (c Config) Redacted() Config {
	if c.Storage.Redis.Password != "" {
		c.Storage.Redis.Password = "********"
	}
	return c
}

func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

type resolver struct {
	file     map[string]string
	warnings []Warning
}

func (r *resolver) str(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if value := strings.TrimSpace(r.file[key]); value != "" {
		return value
	}
	return fallback
}

func (r *resolver) lenientInt(key string, fallback int) int {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		r.warnings = append(r.warnings, Warning{Key: key, Value: raw, Fallback: strconv.Itoa(fallback)})
		return fallback
	}
	return value
}

func (r *resolver) lenientBool(key string, fallback bool) bool {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		r.warnings = append(r.warnings, Warning{Key: key, Value: raw, Fallback: strconv.FormatBool(fallback)})
		return fallback
	}
	return value
}

func (r *resolver) lenientFloat(key string, fallback float64) float64 {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.warnings = append(r.warnings, Warning{Key: key, Value: raw, Fallback: strconv.FormatFloat(fallback, 'g', -1, 64)})
		return fallback
	}
	return value
}

// scalar guarda o texto cru de um valor YAML, para que um número inválido no
// arquivo degrade igual a uma variável de ambiente inválida.
type scalar string

func (s *scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	*s = scalar(node.Value)
	return nil
}

type fileConfig struct {
	Server struct {
		Port            scalar `yaml:"port"`
		Router          scalar `yaml:"router"`
		ShutdownTimeout scalar `yaml:"shutdown_timeout_s"`
	} `yaml:"server"`
	Storage struct {
		Type  scalar `yaml:"type"`
		Redis struct {
			Host     scalar `yaml:"host"`
			Port     scalar `yaml:"port"`
			Password scalar `yaml:"password"`
			DB       scalar `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Throttle struct {
		MaxRequests       scalar `yaml:"max_requests"`
		PeriodSeconds     scalar `yaml:"period_seconds"`
		KeyPrefix         scalar `yaml:"key_prefix"`
		FailOpen          scalar `yaml:"fail_open"`
		TrustProxyHeaders scalar `yaml:"trust_proxy_headers"`
		StoreTimeoutMs    scalar `yaml:"store_timeout_ms"`
	} `yaml:"throttle"`
	Logging struct {
		Level  scalar `yaml:"level"`
		Format scalar `yaml:"format"`
	} `yaml:"logging"`
	Tracing struct {
		ServiceName scalar `yaml:"service_name"`
		Endpoint    scalar `yaml:"endpoint"`
		Insecure    scalar `yaml:"insecure"`
		SampleRatio scalar `yaml:"sample_ratio"`
		LogSpans    scalar `yaml:"log_spans"`
	} `yaml:"tracing"`
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return fc, nil
}

func (f fileConfig) values() map[string]string {
	return map[string]string{
		"SERVER_PORT":                     string(f.Server.Port),
		"SERVER_ROUTER":                   string(f.Server.Router),
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": string(f.Server.ShutdownTimeout),
		"STORAGE_TYPE":                    string(f.Storage.Type),
		"REDIS_HOST":                      string(f.Storage.Redis.Host),
		"REDIS_PORT":                      string(f.Storage.Redis.Port),
		"REDIS_PASSWORD":                  string(f.Storage.Redis.Password),
		"REDIS_DB":                        string(f.Storage.Redis.DB),
		"THROTTLE_MAX_REQUESTS":           string(f.Throttle.MaxRequests),
		"THROTTLE_PERIOD_SECONDS":         string(f.Throttle.PeriodSeconds),
		"THROTTLE_KEY_PREFIX":             string(f.Throttle.KeyPrefix),
		"THROTTLE_FAIL_OPEN":              string(f.Throttle.FailOpen),
		"THROTTLE_TRUST_PROXY_HEADERS":    string(f.Throttle.TrustProxyHeaders),
		"THROTTLE_STORE_TIMEOUT_MS":       string(f.Throttle.StoreTimeoutMs),
		"LOG_LEVEL":                       string(f.Logging.Level),
		"LOG_FORMAT":                      string(f.Logging.Format),
		"TRACING_SERVICE_NAME":            string(f.Tracing.ServiceName),
		"TRACING_ENDPOINT":                string(f.Tracing.Endpoint),
		"TRACING_INSECURE":                string(f.Tracing.Insecure),
		"TRACING_SAMPLE_RATIO":            string(f.Tracing.SampleRatio),
		"TRACING_LOG_SPANS":               string(f.Tracing.LogSpans),
	}
}
