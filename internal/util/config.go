package util

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultLoginPath    = "/auth/login"
	defaultRegisterPath = "/auth/register"
	defaultRefreshPath  = "/auth/refresh"
	defaultLogoutPath   = "/auth/logout"

	defaultRequestTimeout = 15 * time.Second
	defaultRefreshTimeout = 10 * time.Second

	defaultRateLimit     = 100
	defaultRateInterval  = 1 * time.Minute
	defaultRateBlockTime = 5 * time.Minute

	// DefaultExpiryBuffer is how close to expiry an access token may get
	// before the gateway stops sending it.
	DefaultExpiryBuffer = 60 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

// GatewayConfig describes the remote practice API and how sessions against it
// are kept alive.
type GatewayConfig struct {
	BaseURL          *url.URL
	LoginPath        string
	RegisterPath     string
	RefreshPath      string
	LogoutPath       string
	RequestTimeout   time.Duration
	RefreshTimeout   time.Duration
	ExpiryBuffer     time.Duration
	ProactiveRefresh bool
}

func NewGatewayConfig() *GatewayConfig {
	raw := os.Getenv("API_BASE_URL")
	if raw == "" {
		log.Fatal("API_BASE_URL is not set")
	}
	baseURL, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		log.Fatalf("API_BASE_URL is not a valid absolute url: %q", raw)
	}

	return &GatewayConfig{
		BaseURL:          baseURL,
		LoginPath:        getEnvOrDefault("LOGIN_PATH", defaultLoginPath),
		RegisterPath:     getEnvOrDefault("REGISTER_PATH", defaultRegisterPath),
		RefreshPath:      getEnvOrDefault("REFRESH_PATH", defaultRefreshPath),
		LogoutPath:       getEnvOrDefault("LOGOUT_PATH", defaultLogoutPath),
		RequestTimeout:   parseDurationOrDefault("REQUEST_TIMEOUT", defaultRequestTimeout),
		RefreshTimeout:   parseDurationOrDefault("REFRESH_TIMEOUT", defaultRefreshTimeout),
		ExpiryBuffer:     parseDurationOrDefault("EXPIRY_BUFFER", DefaultExpiryBuffer),
		ProactiveRefresh: parseBoolOrDefault("PROACTIVE_REFRESH", false),
	}
}

type RateLimiterConfig struct {
	Limit     int
	Interval  time.Duration
	BlockTime time.Duration
}

func NewRateLimiterConfig() *RateLimiterConfig {
	limitStr := os.Getenv("RATE_LIMIT_LIMIT")
	limit := defaultRateLimit
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		} else {
			log.Printf("Invalid RATE_LIMIT_LIMIT: %s, using default %d", limitStr, defaultRateLimit)
		}
	}

	interval := parseDurationOrDefault("RATE_LIMIT_INTERVAL", defaultRateInterval)
	blockTime := parseDurationOrDefault("RATE_LIMIT_BLOCK_TIME", defaultRateBlockTime)

	return &RateLimiterConfig{
		Limit:     limit,
		Interval:  interval,
		BlockTime: blockTime,
	}
}

func GetWebhookURL() string {
	return os.Getenv("WEBHOOK_URL")
}

// GetAPIKey returns the key local UI clients must present. Empty disables the check.
func GetAPIKey() string {
	return os.Getenv("BFF_API_KEY")
}

func getEnvOrDefault(varName, def string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

func parseBoolOrDefault(varName string, def bool) bool {
	if v := os.Getenv(varName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("Invalid bool in %s: %s, using default %t", varName, v, def)
	}
	return def
}
