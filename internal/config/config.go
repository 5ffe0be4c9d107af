package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"condo-rag/internal/models"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	RAG      RAGConfig      `yaml:"rag"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // openai or ollama
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	MaxChunks    int    `yaml:"max_chunks"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`
	DailyLimit   int    `yaml:"daily_limit"`
	Storage      string `yaml:"storage"` // postgres or local
	LocalDBPath  string `yaml:"local_db_path"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = models.DefaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = models.DefaultChunkOverlap
	}
	if c.RAG.MaxChunks == 0 {
		c.RAG.MaxChunks = models.DefaultMaxChunks
	}
	if c.RAG.CacheTTLSecs == 0 {
		c.RAG.CacheTTLSecs = models.DefaultCacheTTLSecs
	}
	if c.RAG.DailyLimit == 0 {
		c.RAG.DailyLimit = models.DefaultDailyLimit
	}
	if c.RAG.Storage == "" {
		c.RAG.Storage = "postgres"
	}
}
