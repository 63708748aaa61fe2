package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SCENEFLOW_BROKER_HOST.
const EnvPrefix = "SCENEFLOW"

type Config struct {
	Environment string         `mapstructure:"environment"`
	Log         LogConfig      `mapstructure:"log"`
	Broker      BrokerConfig   `mapstructure:"broker"`
	LLM         LLMConfig      `mapstructure:"llm"`
	Fetch       FetchConfig    `mapstructure:"fetch"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Export      ExportConfig   `mapstructure:"export"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Health      HealthConfig   `mapstructure:"health"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type BrokerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	VHost              string        `mapstructure:"vhost"`
	InputQueue         string        `mapstructure:"input_queue"`
	OutputQueue        string        `mapstructure:"output_queue"`
	Exchange           string        `mapstructure:"exchange"`
	Prefetch           int           `mapstructure:"prefetch"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	PublishTimeout     time.Duration `mapstructure:"publish_timeout"`
	DeliveryLimit      int           `mapstructure:"delivery_limit"`
	DeadLetterExchange string        `mapstructure:"dead_letter_exchange"`
}

type LLMConfig struct {
	Provider              string        `mapstructure:"provider"`
	BaseURL               string        `mapstructure:"base_url"`
	APIKey                string        `mapstructure:"api_key"`
	Model                 string        `mapstructure:"model"`
	Temperature           float64       `mapstructure:"temperature"`
	ProductionTemperature float64       `mapstructure:"production_temperature"`
	Timeout               time.Duration `mapstructure:"timeout"`
	RetryMaxElapsed       time.Duration `mapstructure:"retry_max_elapsed"`
	RateLimitRPS          float64       `mapstructure:"rate_limit_rps"`
	Language              string        `mapstructure:"language"`
	ProductionDetails     bool          `mapstructure:"production_details"`
}

type FetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	ChunkSizeKB int           `mapstructure:"chunk_size_kb"`
	MaxBytes    int64         `mapstructure:"max_bytes"`
}

type StorageConfig struct {
	Backend        string        `mapstructure:"backend"`
	Endpoint       string        `mapstructure:"endpoint"`
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	Bucket         string        `mapstructure:"bucket"`
	Region         string        `mapstructure:"region"`
	UseSSL         bool          `mapstructure:"use_ssl"`
	PublicURL      string        `mapstructure:"public_url"`
	LocalDir       string        `mapstructure:"local_dir"`
	UploadAttempts int           `mapstructure:"upload_attempts"`
	UploadDelay    time.Duration `mapstructure:"upload_delay"`
}

type ExportConfig struct {
	Formats []string `mapstructure:"formats"`
}

type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type HealthConfig struct {
	Addr string `mapstructure:"addr"`
}

// defaults doubles as the list of keys viper binds to the environment.
var defaults = map[string]any{
	"environment": "local",
	"log.level":   "info",

	"broker.host":                 "localhost",
	"broker.port":                 5672,
	"broker.username":             "guest",
	"broker.password":             "guest",
	"broker.vhost":                "/",
	"broker.input_queue":          "scenario_files",
	"broker.output_queue":         "scenario_processed",
	"broker.exchange":             "",
	"broker.prefetch":             1,
	"broker.reconnect_delay":      "5s",
	"broker.publish_timeout":      "10s",
	"broker.delivery_limit":       0,
	"broker.dead_letter_exchange": "",

	"llm.provider":               "openai",
	"llm.base_url":               "http://localhost:11434/v1",
	"llm.api_key":                "ollama",
	"llm.model":                  "",
	"llm.temperature":            0.1,
	"llm.production_temperature": 0.2,
	"llm.timeout":                "120s",
	"llm.retry_max_elapsed":      "30s",
	"llm.rate_limit_rps":         0.0,
	"llm.language":               "Russian",
	"llm.production_details":     false,

	"fetch.timeout":       "60s",
	"fetch.chunk_size_kb": 64,
	"fetch.max_bytes":     int64(64 << 20),

	"storage.backend":         "s3",
	"storage.endpoint":        "",
	"storage.access_key":      "",
	"storage.secret_key":      "",
	"storage.bucket":          "",
	"storage.region":          "",
	"storage.use_ssl":         true,
	"storage.public_url":      "",
	"storage.local_dir":       "./artifacts",
	"storage.upload_attempts": 3,
	"storage.upload_delay":    "1s",

	"export.formats": []string{"json"},

	"pipeline.concurrency": 4,

	"health.addr": ":8080",
}

// Load reads an optional .env file, an optional config file and SCENEFLOW_*
// environment variables, in increasing order of precedence.
func Load(cfgFile, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sceneflow")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sceneflow")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Export.Formats = normalizeList(cfg.Export.Formats)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// env overrides for lists arrive as one comma separated string
func normalizeList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func loadDotEnv(path string) error {
	if path == "" {
		_ = godotenv.Load() // optional .env in cwd
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings every component needs at construction time.
func (c *Config) Validate() error {
	var errs []error
	if c.Broker.Host == "" || c.Broker.Port <= 0 {
		errs = append(errs, errors.New("broker.host and broker.port are required"))
	}
	if c.Broker.InputQueue == "" || c.Broker.OutputQueue == "" {
		errs = append(errs, errors.New("broker.input_queue and broker.output_queue are required"))
	}
	if c.Broker.ReconnectDelay < time.Second {
		errs = append(errs, errors.New("broker.reconnect_delay must be at least 1s"))
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Fetch.Timeout <= 0 || c.Fetch.ChunkSizeKB <= 0 {
		errs = append(errs, errors.New("fetch.timeout and fetch.chunk_size_kb must be positive"))
	}
	switch c.Storage.Backend {
	case "s3":
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.endpoint and storage.bucket are required for s3"))
		}
	case "local":
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir is required for local storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend))
	}
	if len(c.Export.Formats) == 0 {
		errs = append(errs, errors.New("export.formats must name at least one format"))
	}
	if c.Pipeline.Concurrency <= 0 {
		errs = append(errs, errors.New("pipeline.concurrency must be positive"))
	}
	return errors.Join(errs...)
}
