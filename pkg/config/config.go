package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port          string        `yaml:"port"`
		PublicBaseURL string        `yaml:"public_base_url" validate:"omitempty,url"`
		ReadTimeout   time.Duration `yaml:"read_timeout" validate:"min=1s"`
		WriteTimeout  time.Duration `yaml:"write_timeout" validate:"min=1s"`
	} `yaml:"server"`

	LLM struct {
		BaseURL     string        `yaml:"base_url" validate:"required,url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model" validate:"required"`
		MaxTokens   int           `yaml:"max_tokens" validate:"min=1,max=4096"`
		Temperature float64       `yaml:"temperature" validate:"min=0,max=2"`
		Timeout     time.Duration `yaml:"timeout" validate:"min=1s,max=5m"`
		Referer     string        `yaml:"referer"`
		Title       string        `yaml:"title"`
	} `yaml:"llm"`

	Chat struct {
		SystemPrompt string `yaml:"system_prompt" validate:"required"`
	} `yaml:"chat"`

	Database struct {
		URL       string `yaml:"url"`
		VectorDim int    `yaml:"vector_dim" validate:"min=1"`
	} `yaml:"database"`

	Retrieval struct {
		ChunkLimit      int      `yaml:"chunk_limit" validate:"min=1"`
		DocumentLimit   int      `yaml:"document_limit" validate:"min=1"`
		DocumentExcerpt int      `yaml:"document_excerpt" validate:"min=1"`
		Keywords        []string `yaml:"keywords"`
	} `yaml:"retrieval"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size" validate:"min=1"`
		ChunkOverlap int `yaml:"chunk_overlap" validate:"min=0,ltfield=ChunkSize"`
	} `yaml:"processor"`

	Upload struct {
		MaxFileSize       int64    `yaml:"max_file_size" validate:"min=1"`
		MaxFiles          int      `yaml:"max_files" validate:"min=1"`
		AllowedExtensions []string `yaml:"allowed_extensions" validate:"dive,startswith=."`
	} `yaml:"upload"`

	Messaging struct {
		BaseURL      string        `yaml:"base_url" validate:"omitempty,url"`
		APIKey       string        `yaml:"api_key"`
		SystemPrompt string        `yaml:"system_prompt"`
		Timeout      time.Duration `yaml:"timeout" validate:"min=1s"`
		RateLimit    float64       `yaml:"rate_limit" validate:"gt=0"`
	} `yaml:"messaging"`

	Log struct {
		Level string `yaml:"level" validate:"oneof=debug info warn error"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
}

const (
	DefaultModel        = "openai/gpt-4"
	DefaultSystemPrompt = "You are a helpful assistant that answers questions using the context of the provided documents when available."
)

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docchat/config.yaml"),
			"/etc/docchat/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	var set explicit
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config, set)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config, explicit{})
	return config, nil
}

// explicit records settings whose zero value is meaningful, so a file can
// set them to zero without the default taking over.
type explicit struct {
	LLM struct {
		Temperature *float64 `yaml:"temperature"`
	} `yaml:"llm"`
	Processor struct {
		ChunkOverlap *int `yaml:"chunk_overlap"`
	} `yaml:"processor"`
}

func applyDefaults(config *Config, set explicit) {
	if config.Server.Port == "" {
		config.Server.Port = "3001"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 90 * time.Second
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = DefaultModel
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1000
	}
	if config.LLM.Temperature == 0 && set.LLM.Temperature == nil {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 30 * time.Second
	}
	if config.LLM.Referer == "" {
		config.LLM.Referer = "http://localhost:" + config.Server.Port
	}
	if config.LLM.Title == "" {
		config.LLM.Title = "DocChat"
	}

	if config.Chat.SystemPrompt == "" {
		config.Chat.SystemPrompt = DefaultSystemPrompt
	}

	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}

	if config.Retrieval.ChunkLimit == 0 {
		config.Retrieval.ChunkLimit = 3
	}
	if config.Retrieval.DocumentLimit == 0 {
		config.Retrieval.DocumentLimit = 2
	}
	if config.Retrieval.DocumentExcerpt == 0 {
		config.Retrieval.DocumentExcerpt = 1000
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 && set.Processor.ChunkOverlap == nil {
		config.Processor.ChunkOverlap = 100
	}

	if config.Upload.MaxFileSize == 0 {
		config.Upload.MaxFileSize = 10 << 20
	}
	if config.Upload.MaxFiles == 0 {
		config.Upload.MaxFiles = 10
	}
	if len(config.Upload.AllowedExtensions) == 0 {
		config.Upload.AllowedExtensions = []string{".pdf", ".txt", ".md"}
	}

	if config.Messaging.SystemPrompt == "" {
		config.Messaging.SystemPrompt = "You are a helpful WhatsApp assistant. Answer concisely and kindly."
	}
	if config.Messaging.Timeout == 0 {
		config.Messaging.Timeout = 10 * time.Second
	}
	if config.Messaging.RateLimit == 0 {
		config.Messaging.RateLimit = 5
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if publicURL := os.Getenv("PUBLIC_BASE_URL"); publicURL != "" {
		config.Server.PublicBaseURL = publicURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("OPENROUTER_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("OPENROUTER_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if evoURL := os.Getenv("EVOLUTION_API_URL"); evoURL != "" {
		config.Messaging.BaseURL = evoURL
	}
	if evoKey := os.Getenv("EVOLUTION_API_KEY"); evoKey != "" {
		config.Messaging.APIKey = evoKey
	}
	if prompt := os.Getenv("WHATSAPP_SYSTEM_PROMPT"); prompt != "" {
		config.Messaging.SystemPrompt = prompt
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
