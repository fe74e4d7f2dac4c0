package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/seantiz/runbroker/internal/model"
)

const (
	defaultListenAddr      = ":3001"
	defaultDBPath          = "runbroker.db"
	defaultCallTimeout     = 10 * time.Second
	defaultPollMaxAttempts = 15
	defaultPollInterval    = time.Second
	defaultMaxSourceBytes  = 64 << 10
	defaultRateLimitRPS    = 5.0
	defaultRateLimitBurst  = 10

	envPrefix     = "RUNBROKER"
	envConfigFile = "RUNBROKER_CONFIG"
)

// Config keys, also reachable as RUNBROKER_<KEY> with dots replaced by
// underscores.
const (
	keyListenAddr      = "listen_addr"
	keyDBPath          = "db_path"
	keyLogLevel        = "log_level"
	keyDriver          = "driver"
	keyMirrorEndpoints = "mirror.endpoints"
	keyPollEndpoints   = "poll.endpoints"
	keyPollAuthToken   = "poll.auth_token"
	keyPollMaxAttempts = "poll.max_attempts"
	keyPollInterval    = "poll.interval"
	keyCallTimeout     = "call_timeout"
	keyMaxSourceBytes  = "max_source_bytes"
	keyRateLimitRPS    = "rate_limit.rps"
	keyRateLimitBurst  = "rate_limit.burst"
	keyRateLimitTrust  = "rate_limit.trust_proxy"
)

var (
	defaultMirrorEndpoints = []string{
		"https://emkc.org/api/v2/piston/execute",
		"https://piston.odin.surf/api/v2/execute",
	}
	defaultPollEndpoints = []string{"https://ce.judge0.com"}
)

// Config holds application configuration. It is built once at startup and
// never mutated afterwards.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// Driver selects the active backend protocol family for the deployment.
	Driver          string
	MirrorEndpoints []string
	PollEndpoints   []string
	PollAuthToken   string

	CallTimeout     time.Duration
	PollMaxAttempts int
	PollInterval    time.Duration
	MaxSourceBytes  int

	RateLimitRPS   float64
	RateLimitBurst int
	// RateLimitTrustProxy keys the limiter on proxy-supplied client
	// addresses instead of the connection's peer.
	RateLimitTrustProxy bool
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by RUNBROKER_CONFIG, and RUNBROKER_* environment variables, in
// increasing order of precedence.
func Load() (Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyListenAddr, defaultListenAddr)
	v.SetDefault(keyDBPath, defaultDBPath)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyDriver, model.DriverMirror)
	v.SetDefault(keyMirrorEndpoints, defaultMirrorEndpoints)
	v.SetDefault(keyPollEndpoints, defaultPollEndpoints)
	v.SetDefault(keyPollAuthToken, "")
	v.SetDefault(keyPollMaxAttempts, defaultPollMaxAttempts)
	v.SetDefault(keyPollInterval, defaultPollInterval)
	v.SetDefault(keyCallTimeout, defaultCallTimeout)
	v.SetDefault(keyMaxSourceBytes, defaultMaxSourceBytes)
	v.SetDefault(keyRateLimitRPS, defaultRateLimitRPS)
	v.SetDefault(keyRateLimitBurst, defaultRateLimitBurst)
	v.SetDefault(keyRateLimitTrust, false)

	if path := os.Getenv(envConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		ListenAddr:      v.GetString(keyListenAddr),
		DBPath:          v.GetString(keyDBPath),
		LogLevel:        parseLogLevel(v.GetString(keyLogLevel)),
		Driver:          strings.ToLower(strings.TrimSpace(v.GetString(keyDriver))),
		MirrorEndpoints: stringList(v, keyMirrorEndpoints),
		PollEndpoints:   stringList(v, keyPollEndpoints),
		PollAuthToken:   v.GetString(keyPollAuthToken),
		CallTimeout:     v.GetDuration(keyCallTimeout),
		PollMaxAttempts: v.GetInt(keyPollMaxAttempts),
		PollInterval:    v.GetDuration(keyPollInterval),
		MaxSourceBytes:  v.GetInt(keyMaxSourceBytes),
		RateLimitRPS:    v.GetFloat64(keyRateLimitRPS),
		RateLimitBurst:  v.GetInt(keyRateLimitBurst),

		RateLimitTrustProxy: v.GetBool(keyRateLimitTrust),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every configuration problem found.
func (c Config) Validate() error {
	var errs []error

	switch c.Driver {
	case model.DriverMirror:
		if len(c.MirrorEndpoints) == 0 {
			errs = append(errs, errors.New("mirror driver requires at least one endpoint"))
		}
	case model.DriverPoll:
		if len(c.PollEndpoints) == 0 {
			errs = append(errs, errors.New("poll driver requires at least one endpoint"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q: must be %q or %q", c.Driver, model.DriverMirror, model.DriverPoll))
	}

	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call_timeout must be positive, got %s", c.CallTimeout))
	}
	if c.PollMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("poll.max_attempts must be positive, got %d", c.PollMaxAttempts))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive, got %s", c.PollInterval))
	}
	if c.MaxSourceBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_source_bytes must be positive, got %d", c.MaxSourceBytes))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.rps must not be negative, got %g", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("rate_limit.burst must be at least 1 when rate limiting is on, got %d", c.RateLimitBurst))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RunBudget is the longest a single execution can take with the configured
// driver: every mirror timing out in turn, or a submit followed by the whole
// poll budget.
func (c Config) RunBudget() time.Duration {
	if c.Driver == model.DriverPoll {
		return c.CallTimeout + time.Duration(c.PollMaxAttempts)*(c.PollInterval+c.CallTimeout)
	}
	return time.Duration(len(c.MirrorEndpoints)) * c.CallTimeout
}

// stringList reads a list value that may come from YAML (a sequence) or from
// the environment (a comma-separated string).
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
