package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "FLEX_CONFIG"

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	DBDriver    string // mysql | postgres; empty DSN runs without a durable store
	DatabaseDSN string

	RedisAddr string
	RedisPass string
	RedisDB   int

	HostawayBase    string
	HostawayAccount string
	HostawayKey     string
	HostawayRPS     int

	FetchTimeout   time.Duration
	RequestTimeout time.Duration
	CacheTTL       time.Duration // 0 disables the review cache
	Debounce       time.Duration
	WriteTimeout   time.Duration
	FallbackKey    string
}

// fileConfig is the optional YAML overlay; absent keys keep defaults.
type fileConfig struct {
	AppEnv   *string `yaml:"appEnv"`
	LogLevel *string `yaml:"logLevel"`
	HTTP     struct {
		Addr             *string `yaml:"addr"`
		MetricsAddr      *string `yaml:"metricsAddr"`
		RequestTimeoutMs *int    `yaml:"requestTimeoutMs"`
	} `yaml:"http"`
	Database struct {
		Driver *string `yaml:"driver"`
		DSN    *string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		Addr     *string `yaml:"addr"`
		Password *string `yaml:"password"`
		DB       *int    `yaml:"db"`
	} `yaml:"redis"`
	Hostaway struct {
		BaseURL        *string `yaml:"baseUrl"`
		AccountID      *string `yaml:"accountId"`
		APIKey         *string `yaml:"apiKey"`
		RPS            *int    `yaml:"rps"`
		FetchTimeoutMs *int    `yaml:"fetchTimeoutMs"`
	} `yaml:"hostaway"`
	Curation struct {
		DebounceMs     *int    `yaml:"debounceMs"`
		WriteTimeoutMs *int    `yaml:"writeTimeoutMs"`
		FallbackKey    *string `yaml:"fallbackKey"`
	} `yaml:"curation"`
	CacheTTLSeconds *int `yaml:"cacheTtlSeconds"`
}

func defaults() Config {
	return Config{
		AppEnv:         "prod",
		LogLevel:       "info",
		HTTPAddr:       ":8080",
		MetricsAddr:    "",
		DBDriver:       "mysql",
		RedisAddr:      "localhost:6379",
		HostawayBase:   "https://api.hostaway.com/v1",
		HostawayRPS:    5,
		FetchTimeout:   5 * time.Second,
		RequestTimeout: 15 * time.Second,
		Debounce:       500 * time.Millisecond,
		WriteTimeout:   5 * time.Second,
		FallbackKey:    "selectedReviews",
	}
}

// Load resolves configuration as defaults < YAML file (FLEX_CONFIG) < environment.
// A .env file in the working directory is read first and never overrides
// variables that are already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	c := defaults()
	if path := os.Getenv(configPathEnv); path != "" {
		if err := c.overlayFile(path); err != nil {
			return c, err
		}
	}
	c.overlayEnv()

	if c.HostawayKey == "" {
		log.Warn().Msg("HOSTAWAY_API_KEY is empty; serving bundled reviews only")
	}
	return c, nil
}

func (c *Config) overlayFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setStr(&c.AppEnv, f.AppEnv)
	setStr(&c.LogLevel, f.LogLevel)
	setStr(&c.HTTPAddr, f.HTTP.Addr)
	setStr(&c.MetricsAddr, f.HTTP.MetricsAddr)
	setMs(&c.RequestTimeout, f.HTTP.RequestTimeoutMs)
	setStr(&c.DBDriver, f.Database.Driver)
	setStr(&c.DatabaseDSN, f.Database.DSN)
	setStr(&c.RedisAddr, f.Redis.Addr)
	setStr(&c.RedisPass, f.Redis.Password)
	setInt(&c.RedisDB, f.Redis.DB)
	setStr(&c.HostawayBase, f.Hostaway.BaseURL)
	setStr(&c.HostawayAccount, f.Hostaway.AccountID)
	setStr(&c.HostawayKey, f.Hostaway.APIKey)
	setInt(&c.HostawayRPS, f.Hostaway.RPS)
	setMs(&c.FetchTimeout, f.Hostaway.FetchTimeoutMs)
	setMs(&c.Debounce, f.Curation.DebounceMs)
	setMs(&c.WriteTimeout, f.Curation.WriteTimeoutMs)
	setStr(&c.FallbackKey, f.Curation.FallbackKey)
	if f.CacheTTLSeconds != nil {
		c.CacheTTL = time.Duration(*f.CacheTTLSeconds) * time.Second
	}
	return nil
}

func (c *Config) overlayEnv() {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer setting")
		}
		return def
	}
	ms := func(k string, def time.Duration) time.Duration {
		return time.Duration(atoi(k, int(def/time.Millisecond))) * time.Millisecond
	}

	c.AppEnv = env("APP_ENV", c.AppEnv)
	c.LogLevel = env("LOG_LEVEL", c.LogLevel)
	c.HTTPAddr = env("HTTP_ADDR", c.HTTPAddr)
	c.MetricsAddr = env("METRICS_ADDR", c.MetricsAddr)
	c.RequestTimeout = ms("REQUEST_TIMEOUT_MS", c.RequestTimeout)
	c.DBDriver = env("DB_DRIVER", c.DBDriver)
	c.DatabaseDSN = env("DATABASE_DSN", c.DatabaseDSN)
	c.RedisAddr = env("REDIS_ADDR", c.RedisAddr)
	c.RedisPass = env("REDIS_PASSWORD", c.RedisPass)
	c.RedisDB = atoi("REDIS_DB", c.RedisDB)
	c.HostawayBase = env("HOSTAWAY_BASE_URL", c.HostawayBase)
	c.HostawayAccount = env("HOSTAWAY_ACCOUNT_ID", c.HostawayAccount)
	c.HostawayKey = env("HOSTAWAY_API_KEY", c.HostawayKey)
	c.HostawayRPS = atoi("HOSTAWAY_RPS", c.HostawayRPS)
	c.FetchTimeout = ms("FETCH_TIMEOUT_MS", c.FetchTimeout)
	c.CacheTTL = time.Duration(atoi("CACHE_TTL_SECONDS", int(c.CacheTTL/time.Second))) * time.Second
	c.Debounce = ms("DEBOUNCE_MS", c.Debounce)
	c.WriteTimeout = ms("WRITE_TIMEOUT_MS", c.WriteTimeout)
	c.FallbackKey = env("FALLBACK_KEY", c.FallbackKey)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setMs(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Millisecond
	}
}
