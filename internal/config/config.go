package config

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "MEDRAG_CONFIG"
	indexEndpointEnv = "MEDRAG_INDEX_ENDPOINT"
	indexUserEnv     = "MEDRAG_INDEX_USERNAME"
	indexPassEnv     = "MEDRAG_INDEX_PASSWORD"
	embedEndpointEnv = "MEDRAG_EMBED_ENDPOINT"
	llmEndpointEnv   = "MEDRAG_LLM_ENDPOINT"
	sourceBaseEnv    = "MEDRAG_SOURCE_BASE_URL"
	sourceUserEnv    = "MEDRAG_SOURCE_API_USER"
	sourceKeyEnv     = "MEDRAG_SOURCE_API_KEY"
	listenAddrEnv    = "MEDRAG_LISTEN_ADDR"
	logLevelEnv      = "MEDRAG_LOG_LEVEL"
)

// Config holds the settings required across the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Source    SourceConfig    `yaml:"source"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// IndexConfig describes the search backend connection and schema.
type IndexConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Name      string `yaml:"name"`
	VectorDim int    `yaml:"vectorDim"`
}

// EmbeddingConfig describes the embedding service.
type EmbeddingConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LLMConfig describes the completion service used for answers.
type LLMConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"maxTokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SourceConfig describes the external literature API.
type SourceConfig struct {
	BaseURL      string        `yaml:"baseUrl"`
	APIUser      string        `yaml:"apiUser"`
	APIKey       string        `yaml:"apiKey"`
	PageSize     int           `yaml:"pageSize"`
	RequestDelay time.Duration `yaml:"requestDelay"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SearchConfig holds query-time defaults.
type SearchConfig struct {
	Limit            int     `yaml:"limit"`
	Threshold        float64 `yaml:"threshold"`
	MaxSources       int     `yaml:"maxSources"`
	SourceCharBudget int     `yaml:"sourceCharBudget"`
}

// IngestConfig bounds the discovery loop and storage retries.
type IngestConfig struct {
	MaxExtraPages int           `yaml:"maxExtraPages"`
	UpsertRetries int           `yaml:"upsertRetries"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides on top of the defaults.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Warn("config: cannot read file, using defaults")
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			logrus.WithError(err).WithField("path", path).Warn("config: cannot parse file, using defaults")
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	setIfEnv(&c.Index.Endpoint, indexEndpointEnv)
	setIfEnv(&c.Index.Username, indexUserEnv)
	setIfEnv(&c.Index.Password, indexPassEnv)
	setIfEnv(&c.Embedding.Endpoint, embedEndpointEnv)
	setIfEnv(&c.LLM.Endpoint, llmEndpointEnv)
	setIfEnv(&c.Source.BaseURL, sourceBaseEnv)
	setIfEnv(&c.Source.APIUser, sourceUserEnv)
	setIfEnv(&c.Source.APIKey, sourceKeyEnv)
	setIfEnv(&c.Server.Addr, listenAddrEnv)
	setIfEnv(&c.Logging.Level, logLevelEnv)
}

func setIfEnv(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Index: IndexConfig{
			Endpoint:  "http://127.0.0.1:9200",
			Name:      "medical-articles",
			VectorDim: 1536,
		},
		Embedding: EmbeddingConfig{
			Endpoint: "http://127.0.0.1:11434",
			Model:    "nomic-embed-text",
			Timeout:  30 * time.Second,
		},
		LLM: LLMConfig{
			Endpoint:  "http://127.0.0.1:11434",
			Model:     "llama3.2",
			MaxTokens: 1000,
			Timeout:   60 * time.Second,
		},
		Source: SourceConfig{
			BaseURL:      "https://onesearch-api.example.org",
			PageSize:     50,
			RequestDelay: 500 * time.Millisecond,
			Timeout:      30 * time.Second,
		},
		Search: SearchConfig{
			Limit:            10,
			Threshold:        0.4,
			MaxSources:       3,
			SourceCharBudget: 8000,
		},
		Ingest: IngestConfig{
			MaxExtraPages: 3,
			UpsertRetries: 2,
			RetryDelay:    time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
