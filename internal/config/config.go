// Package config loads the consent core's runtime configuration, adapted
// from cmd/web/main.go's initConfig: viper defaults, an optional YAML
// file, then environment variables overriding both.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// RegisteredDeveloper is one entry of the static developer registry, the
// Go equivalent of REGISTERED_DEVELOPERS in the original Python service
// (never retrieved in full; reconstructed as config here since spec §4.5
// only requires that developer_token resolve to an approved-scope set,
// not any particular storage).
type RegisteredDeveloper struct {
	Token          string   `mapstructure:"token"`
	Name           string   `mapstructure:"name"`
	ApprovedScopes []string `mapstructure:"approved_scopes"`
}

// Config is the resolved set of settings cmd/consentcore needs to boot.
type Config struct {
	Port           int
	LogLevel       string
	SecretKey      string
	ConsentTimeout time.Duration
	DatabaseURL    string
	RedisAddr      string
	FrontendURL    string
	ProductionMode bool
	VaultAddr      string
	Developers     []RegisteredDeveloper
}

// Load builds a Config from (in increasing precedence) built-in defaults,
// an optional ./config.yaml, and the process environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("consent_timeout_seconds", 120)
	v.SetDefault("production_mode", true)
	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("redis_addr", "localhost:6379")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.BindEnv("secret_key", "SECRET_KEY")
	v.BindEnv("consent_timeout_seconds", "CONSENT_TIMEOUT_SECONDS")
	v.BindEnv("database_url", "DATABASE_URL")
	v.BindEnv("frontend_url", "FRONTEND_URL")
	v.BindEnv("production_mode", "PRODUCTION_MODE")
	v.BindEnv("redis_addr", "REDIS_ADDR")
	v.BindEnv("vault_addr", "VAULT_ADDR")
	v.BindEnv("port", "PORT")
	v.BindEnv("log_level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			log.Printf("config: warning: could not read config file: %v", err)
		}
	}

	secretKey := v.GetString("secret_key")
	if secretKey == "" {
		return nil, fmt.Errorf("config: SECRET_KEY is required and was not set")
	}

	var developers []RegisteredDeveloper
	if err := v.UnmarshalKey("developers", &developers); err != nil {
		return nil, fmt.Errorf("config: parse developers: %w", err)
	}

	return &Config{
		Port:           v.GetInt("port"),
		LogLevel:       v.GetString("log_level"),
		SecretKey:      secretKey,
		ConsentTimeout: time.Duration(v.GetInt("consent_timeout_seconds")) * time.Second,
		DatabaseURL:    v.GetString("database_url"),
		RedisAddr:      v.GetString("redis_addr"),
		FrontendURL:    v.GetString("frontend_url"),
		ProductionMode: v.GetBool("production_mode"),
		VaultAddr:      v.GetString("vault_addr"),
		Developers:     developers,
	}, nil
}
