// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	MintSession = pflag.String("mint-session", "", "Prints a session token for the given discord_id:name and exits")

	validLogLevels     = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers     = []string{"sqlite", "postgres"}
	validCounterStores = []string{"memory", "redis"}
)

// ErrNoJWTSecret is returned when no secret is configured. The message
// carries a freshly generated one that can be pasted into the config.
var ErrNoJWTSecret = errors.New("no JWT secret configured")

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	return Load()
}

// Load reads config.toml from the working directory, if present, on top of
// the defaults and the environment and validates the result
func Load() error {
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	bindEnvs()
	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	return validate()
}

func bindEnvs() {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.cors", "host_cors")
	v.BindEnv("host.trusted_proxies", "host_trusted_proxies")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("jwt.secret", "jwt_secret")

	v.BindEnv("redis.addr", "redis_addr")
	v.BindEnv("redis.password", "redis_password")
	v.BindEnv("redis.db", "redis_db")

	v.BindEnv("ratelimit.store", "ratelimit_store")
	v.BindEnv("ratelimit.default_limit", "ratelimit_default_limit")
	v.BindEnv("ratelimit.strict_limit", "ratelimit_strict_limit")

	v.BindEnv("scrape.base_url", "scrape_base_url")
	v.BindEnv("scrape.host", "scrape_host")
	v.BindEnv("scrape.bio_marker", "scrape_bio_marker")
	v.BindEnv("scrape.chrome_path", "scrape_chrome_path")
	v.BindEnv("scrape.track_words", "scrape_track_words")

	v.BindEnv("mail.host", "mail_host")
	v.BindEnv("mail.port", "mail_port")
	v.BindEnv("mail.username", "mail_username")
	v.BindEnv("mail.password", "mail_password")
	v.BindEnv("mail.sender_address", "mail_sender_address")

	v.BindEnv("verification.email_domain", "verification_email_domain")

	v.BindEnv("turnstile.enabled", "turnstile_enabled")
	v.BindEnv("turnstile.secret_token", "turnstile_secret_token")

	v.BindEnv("snapshots.enabled", "snapshots_enabled")
	v.BindEnv("snapshots.access_key_id", "snapshots_access_key_id")
	v.BindEnv("snapshots.secret_access_key", "snapshots_secret_access_key")
	v.BindEnv("snapshots.region", "snapshots_region")
	v.BindEnv("snapshots.bucket", "snapshots_bucket")
	v.BindEnv("snapshots.endpoint", "snapshots_endpoint")
}

func setDefaults() {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.site_name", "Typing Leaderboard")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors", "http://localhost:3000")
	v.SetDefault("host.max_body_bytes", 16<<10)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("jwt.session_ttl", 30*24*time.Hour)

	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.store", "memory")
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.default_limit", 60)
	v.SetDefault("ratelimit.strict_limit", 5)

	v.SetDefault("scrape.base_url", "https://monkeytype.com")
	v.SetDefault("scrape.host", "monkeytype.com")
	v.SetDefault("scrape.bio_marker", "manipal")
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	v.SetDefault("scrape.load_timeout", 60*time.Second)
	v.SetDefault("scrape.settle_delay", 5*time.Second)
	v.SetDefault("scrape.rps", 1.0)
	v.SetDefault("scrape.burst", 2)
	v.SetDefault("scrape.track_words", true)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.interval", time.Minute)
	v.SetDefault("breaker.timeout", 30*time.Second)

	v.SetDefault("ingest.lease_ttl", 3*time.Minute)

	v.SetDefault("mail.port", 587)

	v.SetDefault("verification.email_domain", "learner.manipal.edu")
	v.SetDefault("verification.cleanup_schedule", "@every 1h")

	v.SetDefault("turnstile.enabled", false)

	v.SetDefault("snapshots.enabled", false)
	v.SetDefault("snapshots.region", "auto")

	v.SetDefault("leaderboard.cache_ttl", 5*time.Minute)
	v.SetDefault("search.fuzzy_candidates", 1000)
}

func validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if p := v.GetInt("host.port"); p <= 0 || p > 65535 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDBDrivers, v.GetString("db.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("db.dsn can't be empty")
	}

	if v.GetString("jwt.secret") == "" {
		return fmt.Errorf("%w, set jwt.secret or JWT_SECRET. Random secret you can use:\n\n%s", ErrNoJWTSecret, genSecret())
	}

	if !slices.Contains(validCounterStores, v.GetString("ratelimit.store")) {
		return errors.New("invalid ratelimit.store provided")
	}

	if v.GetString("ratelimit.store") == "redis" && v.GetString("redis.addr") == "" {
		return errors.New("redis.addr is required when ratelimit.store is redis")
	}

	if v.GetInt("ratelimit.default_limit") <= 0 || v.GetInt("ratelimit.strict_limit") <= 0 {
		return errors.New("rate limits must be bigger than 0")
	}

	if v.GetString("scrape.host") == "" {
		return errors.New("scrape.host can't be empty")
	}

	if v.GetDuration("scrape.load_timeout") <= 0 {
		return errors.New("scrape.load_timeout must be bigger than 0")
	}

	if v.GetFloat64("scrape.rps") <= 0 {
		return errors.New("scrape.rps must be bigger than 0")
	}

	if v.GetString("verification.email_domain") == "" {
		return errors.New("verification.email_domain can't be empty")
	}

	if v.GetBool("turnstile.enabled") && v.GetString("turnstile.secret_token") == "" {
		return errors.New("turnstile secret token is missing")
	}

	if v.GetBool("snapshots.enabled") {
		if v.GetString("snapshots.bucket") == "" {
			return errors.New("snapshots.bucket can't be empty")
		}
		if v.GetString("snapshots.access_key_id") == "" || v.GetString("snapshots.secret_access_key") == "" {
			return errors.New("snapshot storage credentials are missing")
		}
	}

	return nil
}
