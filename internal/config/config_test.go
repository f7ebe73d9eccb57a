package config

import (
	"testing"

	"dreamcard/internal/tester"
)

func TestLLMBackendAutoDetect(t *testing.T) {
	t.Setenv("LLM_BACKEND", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	tester.Eq(t, loadLLMConfig().Backend, "none")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := loadLLMConfig()
	tester.Eq(t, cfg.Backend, "openai")
	tester.Eq(t, cfg.APIKey, "sk-test")

	t.Setenv("GEMINI_API_KEY", "g-test")
	cfg = loadLLMConfig()
	tester.Eq(t, cfg.Backend, "gemini", "gemini wins when both keys are set")
	tester.Eq(t, cfg.APIKey, "g-test")

	t.Setenv("LLM_BACKEND", "openai")
	cfg = loadLLMConfig()
	tester.Eq(t, cfg.Backend, "openai", "explicit backend overrides detection")
	tester.Eq(t, cfg.APIKey, "sk-test")
}

func TestLLMRPSParsing(t *testing.T) {
	t.Setenv("LLM_RPS", "7")
	tester.Eq(t, loadLLMConfig().RPS, 7)

	t.Setenv("LLM_RPS", "not a number")
	tester.Eq(t, loadLLMConfig().RPS, 0)

	t.Setenv("LLM_RPS", "-3")
	tester.Eq(t, loadLLMConfig().RPS, 0)
}

func TestStoreConfigEnvOverride(t *testing.T) {
	t.Setenv("DREAMCARD_STORE_PATH", "")
	t.Setenv("DREAMCARD_PG_DSN", "")
	cfg := loadStoreConfig("data/dreamcard.json")
	tester.Eq(t, cfg.Path, "data/dreamcard.json")
	tester.Eq(t, cfg.DSN, "")

	t.Setenv("DREAMCARD_STORE_PATH", "/tmp/other.json")
	t.Setenv("DREAMCARD_PG_DSN", "postgres://localhost/dreamcard")
	cfg = loadStoreConfig("data/dreamcard.json")
	tester.Eq(t, cfg.Path, "/tmp/other.json")
	tester.Eq(t, cfg.DSN, "postgres://localhost/dreamcard")
}

func TestCardsConfigLocal(t *testing.T) {
	t.Setenv("CARD_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("CARD_S3_ACCESS_KEY", "")
	t.Setenv("MINIO_ROOT_USER", "root")
	t.Setenv("CARD_S3_BUCKET", "")

	cfg := loadCardsConfig("local")
	tester.True(t, cfg.Enabled)
	tester.Eq(t, cfg.Endpoint, "minio:9000")
	tester.Eq(t, cfg.AccessKey, "root")
	tester.Eq(t, cfg.Bucket, "dreamcard-cards")
	tester.False(t, cfg.UseSSL, "local never uses TLS")
}

func TestCardsConfigProdDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("CARD_S3_ENDPOINT", "")
	cfg := loadCardsConfig("production")
	tester.False(t, cfg.Enabled)
	tester.True(t, loadCardsConfig("production").UseSSL)
}
