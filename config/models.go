package config

import "time"

// Config holds the configuration of the application
// Use LoadConfig to create a new instance
type Config struct {
	NLP     NLPConfig     `mapstructure:"nlp"     json:"nlp"`
	Server  ServerConfig  `mapstructure:"server"  json:"server"`
	Gateway GatewayConfig `mapstructure:"gateway" json:"gateway"`
	Log     LogConfig     `mapstructure:"log"     json:"log"`
	Auth    AuthConfig    `mapstructure:"auth"    json:"auth"`
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// NLPConfig selects the NLP engine and the model identifier used for each size.
type NLPConfig struct {
	// Engine is either "http" (a spaCy NLP server) or "gazetteer" (YAML pattern files).
	Engine    string        `mapstructure:"engine"     json:"engine"     jsonschema:"enum=http,enum=gazetteer"`
	ServerURL string        `mapstructure:"server_url" json:"server_url"`
	ModelDir  string        `mapstructure:"model_dir"  json:"model_dir"`
	Language  string        `mapstructure:"language"   json:"language"`
	RetryMax  int           `mapstructure:"retry_max"  json:"retry_max"`
	Timeout   time.Duration `mapstructure:"timeout"    json:"timeout"`
	Models    ModelsConfig  `mapstructure:"models"     json:"models"`
}

type ModelsConfig struct {
	Small  string `mapstructure:"small"  json:"small"`
	Medium string `mapstructure:"medium" json:"medium"`
	Large  string `mapstructure:"large"  json:"large"`
}

// ServerConfig is the worker's callback server.
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
	// CallbackURL is advertised to the gateway. Derived from Host and Port when empty.
	CallbackURL string `mapstructure:"callback_url" json:"callback_url"`
}

// GatewayConfig points at the gateway host the worker registers with. The gateway
// command listens on Address. CallTimeout bounds one relayed call, including a first-call
// model load on the worker.
type GatewayConfig struct {
	Address         string        `mapstructure:"address"          json:"address"`
	Register        bool          `mapstructure:"register"         json:"register"`
	RegisterRetries uint          `mapstructure:"register_retries" json:"register_retries"`
	RegisterDelay   time.Duration `mapstructure:"register_delay"   json:"register_delay"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout"     json:"wait_timeout"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"     json:"call_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level" json:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
}

type AuthConfig struct {
	Secret   string `mapstructure:"secret"   json:"secret"`
	Required bool   `mapstructure:"required" json:"required"`
}

// TracingConfig exports OpenTelemetry spans over OTLP/HTTP. Endpoint is host:port; the
// exporter's environment defaults apply when it is empty.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"      json:"enabled"`
	Endpoint    string `mapstructure:"endpoint"     json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
