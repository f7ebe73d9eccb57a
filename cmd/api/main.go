package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"dreamcard/internal/actions"
	"dreamcard/internal/agents"
	"dreamcard/internal/buildflow"
	"dreamcard/internal/cardstore"
	"dreamcard/internal/config"
	"dreamcard/internal/devstate"
	"dreamcard/internal/llm"
	"dreamcard/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	client := buildLLMClient(cfg)
	defer client.Close()

	st, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	engineer := &agents.Engineer{LLM: client}
	watcher := &agents.Watcher{Engineer: engineer}
	iterator := &agents.Iterator{LLM: client, Engineer: engineer, Watcher: watcher}

	s := &apiServer{
		store:     st,
		collector: &agents.Collector{LLM: client},
		architect: &agents.Architect{LLM: client},
		iterator:  iterator,
		actions:   &actions.Runner{LLM: client},
		builds: &buildflow.Runner{
			Store:     st,
			Architect: &agents.Architect{LLM: client},
			Engineer:  engineer,
			Iterator:  iterator,
			Watcher:   watcher,
			Broker:    llm.NewBroker(nil),
		},
		dev:        devstate.NewSlot(),
		devEnabled: strings.EqualFold(cfg.Env, "local"),
	}

	if cfg.Cards.Enabled {
		cards, cardErr := cardstore.New(cardstore.Config{
			Endpoint:  cfg.Cards.Endpoint,
			Region:    cfg.Cards.Region,
			AccessKey: cfg.Cards.AccessKey,
			SecretKey: cfg.Cards.SecretKey,
			Bucket:    cfg.Cards.Bucket,
			UseSSL:    cfg.Cards.UseSSL,
		})
		if cardErr != nil {
			log.Printf("card store disabled: %v", cardErr)
		} else {
			s.cards = cards
		}
	}

	h := withCORS(buildMux(s))
	log.Printf("Starting API server on %s (backend %s)", cfg.Port, cfg.LLM.Backend)
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}

// buildLLMClient selects the configured backend and wraps it with the
// shared middleware chain. Pipeline stages run at most once per model call,
// so no retry layer here.
func buildLLMClient(cfg *config.Config) llm.LLMClient {
	var base llm.LLMClient
	switch cfg.LLM.Backend {
	case "gemini":
		cli, err := llm.NewGeminiClient(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			log.Printf("gemini init failed, model calls disabled: %v", err)
			base = llm.Disabled{}
		} else {
			base = cli
		}
	case "openai":
		cli, err := llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
		if err != nil {
			log.Printf("openai init failed, model calls disabled: %v", err)
			base = llm.Disabled{}
		} else {
			base = cli
		}
	default:
		log.Printf("no model backend configured; generate calls will fail loudly")
		base = llm.Disabled{}
	}

	return llm.Wrap(base,
		llm.MultiLimitFromEnv("LLM"),
		llm.WithLogging(nil),
		llm.WithHooks(),
	)
}

func buildStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.DSN != "" {
		return store.NewPostgres(cfg.Store.DSN)
	}
	return store.New(cfg.Store.Path), nil
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization, X-Stream, X-Device-Id")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
