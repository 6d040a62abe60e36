package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/udem-taln/nerbridge/internal"
)

// We're bootstrapping so avoid any imports from other packages
var log = logrus.New()

const (
	EnvPrefix = "NERBRIDGE"

	EngineHTTP      = "http"
	EngineGazetteer = "gazetteer"

	DefaultGatewayAddress = "127.0.0.1:25333"
)

// envKeys are bound explicitly so that ENV overrides are seen by Unmarshal even when the
// key is absent from the config file.
var envKeys = []string{
	"nlp.engine",
	"nlp.server_url",
	"nlp.model_dir",
	"nlp.language",
	"nlp.retry_max",
	"nlp.timeout",
	"nlp.models.small",
	"nlp.models.medium",
	"nlp.models.large",
	"server.host",
	"server.port",
	"server.callback_url",
	"gateway.address",
	"gateway.register",
	"gateway.register_retries",
	"gateway.register_delay",
	"gateway.wait_timeout",
	"gateway.call_timeout",
	"log.level",
	"auth.secret",
	"auth.required",
	"tracing.enabled",
	"tracing.endpoint",
	"tracing.service_name",
}

// Defaults returns the configuration used for any value not set in the config file or ENV.
func Defaults() *Config {
	return &Config{
		NLP: NLPConfig{
			Engine:    EngineHTTP,
			ServerURL: "http://localhost:5557",
			ModelDir:  "./models",
			Language:  "en",
			RetryMax:  3,
			Timeout:   30 * time.Second,
			Models: ModelsConfig{
				Small:  "en_core_web_sm",
				Medium: "en_core_web_md",
				Large:  "en_core_web_lg",
			},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 25334,
		},
		Gateway: GatewayConfig{
			Address:         DefaultGatewayAddress,
			Register:        true,
			RegisterRetries: 10,
			RegisterDelay:   500 * time.Millisecond,
			WaitTimeout:     30 * time.Second,
			CallTimeout:     2 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			ServiceName: "nerbridge",
		},
	}
}

// LoadConfig loads the config file and ENV variables into a Config struct. A missing
// default config.yaml is not an error; a missing explicit configFile is.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans can't be filled in by mergo since false is their zero value
	v.SetDefault("gateway.register", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		log.Debug("config.yaml not found, using defaults and ENV")
	}

	// Environment variables take precedence over config file
	loadDotEnv()

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return nil, fmt.Errorf("error applying config defaults: %w", err)
	}
	cfg.Gateway.Register = v.GetBool("gateway.register")
	restoreExplicitZeros(v, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// restoreExplicitZeros puts back numeric settings where zero is meaningful and mergo
// replaced an explicit 0 with the default.
func restoreExplicitZeros(v *viper.Viper, cfg *Config) {
	if v.IsSet("nlp.retry_max") {
		cfg.NLP.RetryMax = v.GetInt("nlp.retry_max")
	}
	if v.IsSet("gateway.register_retries") {
		cfg.Gateway.RegisterRetries = v.GetUint("gateway.register_retries")
	}
	if v.IsSet("gateway.register_delay") {
		cfg.Gateway.RegisterDelay = v.GetDuration("gateway.register_delay")
	}
}

// Validate checks values that would otherwise fail much later, on first use.
func (c *Config) Validate() error {
	switch c.NLP.Engine {
	case EngineHTTP, EngineGazetteer:
	default:
		return fmt.Errorf("nlp.engine (%s) is not supported", c.NLP.Engine)
	}
	if c.Auth.Required && c.Auth.Secret == "" {
		return errors.New("auth.secret must be set when auth.required is true")
	}
	return nil
}

// CallbackURL is the URL the gateway uses to reach this worker.
func (c *Config) CallbackURL() string {
	if c.Server.CallbackURL != "" {
		return strings.TrimSuffix(c.Server.CallbackURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// loadDotEnv loads environment variables from .env file
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Debug(".env file not found or unable to load")
	}
}

// SetLogLevel sets the log level based on the config file. Defaults to INFO if not set or invalid
func SetLogLevel(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	internal.SetLogLevel(level)
	internal.GetLogger().Debug("Log level set to: ", level)
}
