// Package config loads server configuration from flags and the
// environment, with a .env file picked up when present.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port  string
	Env   string
	LLM   LLMConfig
	Store StoreConfig
	Cards CardsConfig
}

// LLMConfig selects the model backend and its limits. Backend is "gemini",
// "openai", or "none" (every call fails loudly).
type LLMConfig struct {
	Backend string
	APIKey  string
	Model   string
	BaseURL string
	RPS     int
}

// StoreConfig points at session/build persistence. DSN empty means the
// JSON file backend at Path.
type StoreConfig struct {
	Path string
	DSN  string
}

// CardsConfig configures the exported-card object store.
type CardsConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	storePath := flag.String("store", "data/dreamcard.json", "file store path")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:  *port,
		Env:   env,
		LLM:   loadLLMConfig(),
		Store: loadStoreConfig(*storePath),
		Cards: loadCardsConfig(env),
	}, nil
}

func loadLLMConfig() LLMConfig {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_BACKEND")))
	if backend == "" {
		switch {
		case os.Getenv("GEMINI_API_KEY") != "":
			backend = "gemini"
		case os.Getenv("OPENAI_API_KEY") != "":
			backend = "openai"
		default:
			backend = "none"
		}
	}

	key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if backend == "openai" {
		key = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}

	rps := 0
	if raw := strings.TrimSpace(os.Getenv("LLM_RPS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			rps = v
		}
	}

	return LLMConfig{
		Backend: backend,
		APIKey:  key,
		Model:   strings.TrimSpace(os.Getenv("LLM_MODEL")),
		BaseURL: strings.TrimSpace(os.Getenv("LLM_BASE_URL")),
		RPS:     rps,
	}
}

func loadStoreConfig(path string) StoreConfig {
	if envPath := strings.TrimSpace(os.Getenv("DREAMCARD_STORE_PATH")); envPath != "" {
		path = envPath
	}
	return StoreConfig{
		Path: path,
		DSN:  strings.TrimSpace(os.Getenv("DREAMCARD_PG_DSN")),
	}
}

func loadCardsConfig(env string) CardsConfig {
	endpoint := resolveCardsEndpoint(env)
	return CardsConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("CARD_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("CARD_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("CARD_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("CARD_S3_BUCKET")), "dreamcard-cards"),
		UseSSL:    resolveCardsUseSSL(env),
	}
}

func resolveCardsEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("CARD_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("CARD_S3_ENDPOINT"))
}

func resolveCardsUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("CARD_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
