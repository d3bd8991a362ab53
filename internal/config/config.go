package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`
	Backend struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"backend"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Auth struct {
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Log struct {
		Level string `mapstructure:"level"`
		Dir   string `mapstructure:"dir"`
	} `mapstructure:"log"`
	Pipeline struct {
		HistoryLimit int           `mapstructure:"history_limit"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
		WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	} `mapstructure:"pipeline"`
}

// HasDatabase reports whether a Postgres snapshot store is configured.
func (c *Config) HasDatabase() bool {
	return c.DB.Host != ""
}

// DatabaseDSN returns the libpq connection string for the DB section.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.ToUpper(c.Environment) == "DEV"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "DEV")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("backend.url", "http://localhost:5000")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("pipeline.history_limit", 50)
	v.SetDefault("pipeline.poll_interval", 2*time.Second)
	v.SetDefault("pipeline.wait_timeout", 5*time.Minute)

	// Unmarshal only sees env overrides for keys viper already knows about.
	for _, key := range []string{
		"dev_mode_bypass", "db.host", "db.user", "db.password", "db.name",
		"auth.okta_domain", "auth.client_id", "auth.client_secret", "auth.redirect_url",
		"auth.swagger_client_id", "tls.enable", "tls.cert_file", "tls.key_file", "log.dir",
	} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
}

// LoadConfig loads the configuration from a file and the environment.
// An explicit path takes precedence over the config.yaml search in "." and
// "./config". A missing config file is not an error; defaults and POMFLOW_*
// environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	return Load(viper.GetViper(), path)
}

// Load is LoadConfig on an explicit viper instance. Values already Set on v
// win over the file and the environment.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("POMFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Auth.OktaDomain = normalizeURL(config.Auth.OktaDomain)
	config.Backend.URL = normalizeURL(config.Backend.URL)

	if config.Backend.URL == "" {
		return nil, errors.New("backend.url must be set")
	}

	return &config, nil
}

// normalizeURL trims whitespace and any trailing slash so paths can be
// appended without producing "//".
func normalizeURL(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
