package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3/log"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type serverConfig struct {
	Port        int    `koanf:"port" validate:"required"`
	Mode        string `koanf:"mode" validate:"required"`
	Concurrency int    `koanf:"concurrency"`
	BodyLimit   int    `koanf:"body_limit" validate:"required"`
	AppName     string `koanf:"app_name" validate:"required"`
}

type logLevel string

const (
	Debug logLevel = "debug"
	Info  logLevel = "info"
	Warn  logLevel = "warn"
	Error logLevel = "error"
	Fatal logLevel = "fatal"
	Panic logLevel = "panic"
)

type Module string

const (
	ModuleServer    Module = "server"
	ModuleSetting   Module = "setting"
	ModuleDatabase  Module = "database"
	ModuleStorage   Module = "storage"
	ModuleIndex     Module = "index"
	ModuleEmbedding Module = "embedding"
	ModuleLLM       Module = "llm"
	ModuleIngest    Module = "ingest"
	ModuleDocuments Module = "documents"
	ModuleSearch    Module = "search"
	ModuleRanking   Module = "ranking"
	ModuleAnswer    Module = "answer"
)

type databaseConfig struct {
	Host         string `koanf:"host" validate:"required"`
	Port         int    `koanf:"port" validate:"required"`
	User         string `koanf:"user" validate:"required"`
	Password     string `koanf:"password"`
	Name         string `koanf:"name" validate:"required"`
	MaxIdleConns int    `koanf:"max_idle_conns" validate:"required"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"required"`
	MaxLifetime  int    `koanf:"max_lifetime" validate:"required"`
}

type openaiConfig struct {
	Key                string `koanf:"key"`
	Model              string `koanf:"model" validate:"required"`
	EmbeddingModel     string `koanf:"embedding_model" validate:"required"`
	EmbeddingDimension int    `koanf:"embedding_dimension" validate:"required"`
	EmbeddingBatchSize int    `koanf:"embedding_batch_size" validate:"required"`
}

type elasticsearchConfig struct {
	Addresses []string `koanf:"addresses" validate:"required"`
	Index     string   `koanf:"index" validate:"required"`
	Username  string   `koanf:"username"`
	Password  string   `koanf:"password"`
}

type s3Config struct {
	Endpoint  string `koanf:"endpoint" validate:"required"`
	AccessKey string `koanf:"access_key" validate:"required"`
	SecretKey string `koanf:"secret_key" validate:"required"`
	Region    string `koanf:"region" validate:"required"`
	Bucket    string `koanf:"bucket" validate:"required"`
}

type corsConfig struct {
	AllowOrigins []string `koanf:"allow_origins" validate:"required"`
	AllowMethods []string `koanf:"allow_methods" validate:"required"`
	AllowHeaders []string `koanf:"allow_headers" validate:"required"`
}

type ingestConfig struct {
	ChunkSize    int `koanf:"chunk_size" validate:"required"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

type ragConfig struct {
	TopK                 int `koanf:"top_k" validate:"required"`
	CandidateMultiplier  int `koanf:"candidate_multiplier" validate:"required"`
	RetrievalTimeoutSec  int `koanf:"retrieval_timeout_sec" validate:"required"`
	GenerationTimeoutSec int `koanf:"generation_timeout_sec" validate:"required"`
}

type config struct {
	Server        serverConfig        `koanf:"server"`
	Database      databaseConfig      `koanf:"database"`
	OpenAI        openaiConfig        `koanf:"openai"`
	Elasticsearch elasticsearchConfig `koanf:"elasticsearch"`
	S3            s3Config            `koanf:"s3"`
	Cors          corsConfig          `koanf:"cors"`
	Ingest        ingestConfig        `koanf:"ingest"`
	RAG           ragConfig           `koanf:"rag"`
	LogLevel      logLevel            `koanf:"log_level"`
	Dns           string              `koanf:"dns"`
}

func buildMySQLDSN(cfg databaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)
}

var defaultConfig = config{
	Server: serverConfig{
		Port:        8000,
		Mode:        "release",
		Concurrency: 256,
		BodyLimit:   64 << 20,
		AppName:     "pdfrag",
	},
	Database: databaseConfig{
		Host:         "127.0.0.1",
		Port:         3306,
		User:         "root",
		Password:     "",
		Name:         "pdfrag",
		MaxIdleConns: 4,
		MaxOpenConns: 16,
		MaxLifetime:  30,
	},
	OpenAI: openaiConfig{
		Key:                "",
		Model:              "gpt-4o",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
		EmbeddingBatchSize: 100,
	},
	Elasticsearch: elasticsearchConfig{
		Addresses: []string{"http://localhost:9200"},
		Index:     "documents",
	},
	S3: s3Config{
		Endpoint:  "http://localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
		Bucket:    "documents",
	},
	Cors: corsConfig{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	},
	Ingest: ingestConfig{
		ChunkSize:    1000,
		ChunkOverlap: 100,
	},
	RAG: ragConfig{
		TopK:                 5,
		CandidateMultiplier:  4,
		RetrievalTimeoutSec:  5,
		GenerationTimeoutSec: 60,
	},
	LogLevel: Info,
}

var (
	Cfg  = defaultConfig
	once sync.Once
)

func init() {
	path := "config.yaml"

	once.Do(func() {
		k := koanf.New(".")

		validate := validator.New()
		// defaults
		Cfg = defaultConfig

		// file
		if e := k.Load(file.Provider(path), yaml.Parser()); e != nil && !os.IsNotExist(e) {
			return
		}

		// env APP_SERVER__PORT -> server.port
		if e := k.Load(env.Provider("APP_", ".", func(s string) string {
			return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "APP_")), "__", ".")
		}), nil); e != nil {
			return
		}

		// bind
		if e := k.Unmarshal("", &Cfg); e != nil {
			log.Errorf("failed to unmarshal config: %v", e)
		}

		if Cfg.Dns == "" {
			Cfg.Dns = buildMySQLDSN(Cfg.Database)
		}

		// validate config
		if err := validate.Struct(Cfg); err != nil {
			if errs, ok := err.(validator.ValidationErrors); ok {
				var sb strings.Builder
				sb.WriteString(fmt.Sprintf("%v Config validation failed:\n", ModuleSetting))

				for _, e := range errs {
					sb.WriteString(
						fmt.Sprintf("  - %s: failed '%s' (value: %v)\n", e.Field(), e.Tag(), e.Value()),
					)
				}

				log.Error(sb.String())
			} else {
				log.Errorf("config validation failed: %v", err)
			}
		}

		// overlap must leave room for new content in every chunk
		if Cfg.Ingest.ChunkOverlap >= Cfg.Ingest.ChunkSize {
			log.Errorf("%v: chunk_overlap (%d) must be smaller than chunk_size (%d)",
				ModuleSetting, Cfg.Ingest.ChunkOverlap, Cfg.Ingest.ChunkSize)
		}
	})
}
