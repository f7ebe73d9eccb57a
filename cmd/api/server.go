package main

import (
	"encoding/json"
	"log"
	"net/http"

	"dreamcard/internal/actions"
	"dreamcard/internal/agents"
	"dreamcard/internal/buildflow"
	"dreamcard/internal/cardstore"
	"dreamcard/internal/devstate"
	"dreamcard/internal/store"
)

// apiServer wires the chat agents, the build orchestrator, and persistence
// behind plain HTTP handlers.
type apiServer struct {
	store     *store.Store
	collector *agents.Collector
	architect *agents.Architect
	iterator  *agents.Iterator
	actions   *actions.Runner
	builds    *buildflow.Runner
	cards     *cardstore.Store

	dev        *devstate.Slot
	devEnabled bool
}

func buildMux(s *apiServer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat/send", s.handleChatSend)
	mux.HandleFunc("/ws/chat", s.handleChatWS)

	mux.HandleFunc("/api/build/start", s.handleBuildStart)
	mux.HandleFunc("/api/build/", s.handleBuildGet)
	mux.HandleFunc("/api/editor/send", s.handleEditorSend)

	mux.HandleFunc("/api/cards/from-summary", s.handleCardFromSummary)
	mux.HandleFunc("/api/card/action", s.handleCardAction)
	mux.HandleFunc("/api/card/export", s.handleCardExport)

	mux.HandleFunc("/api/dev/pipeline", s.devGuard(s.handleDevPipeline))
	mux.HandleFunc("/api/dev/iterate", s.devGuard(s.handleDevIterate))
	mux.HandleFunc("/api/dev/current", s.devGuard(s.handleDevCurrent))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	return mux
}

func (s *apiServer) devGuard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.devEnabled {
			http.NotFound(w, r)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}
