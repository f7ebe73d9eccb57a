package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dreamcard/internal/store"
	t "dreamcard/internal/types"
)

type chatSendRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
	Text      string `json:"text"`
}

type chatSendResponse struct {
	SessionID        string             `json:"sessionId"`
	Message          t.ChatMessage      `json:"message"`
	ShowConfirmation bool               `json:"showConfirmation,omitempty"`
	Summary          *t.CreativeSummary `json:"summary,omitempty"`
}

// handleChatSend is the collector turn endpoint. With the X-Stream header
// set the reply is delivered as NDJSON chunk lines followed by a done line;
// otherwise a single JSON response.
func (s *apiServer) handleChatSend(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var in chatSendRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	sess, err := s.loadOrCreateSession(r.Context(), in.SessionID, in.DeviceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Stream")), "true") {
		s.chatSendStream(w, r, sess, text)
		return
	}

	res, err := s.collector.Reply(r.Context(), sess.CollectorMessages, text)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.recordCollectorTurn(r.Context(), sess.ID, text, res.Message, res.Summary); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatSendResponse{
		SessionID:        sess.ID,
		Message:          res.Message,
		ShowConfirmation: res.ShowConfirmation,
		Summary:          res.Summary,
	})
}

func (s *apiServer) chatSendStream(w http.ResponseWriter, r *http.Request, sess t.Session, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	emit := func(v any) {
		_ = enc.Encode(v)
		flusher.Flush()
	}

	res, err := s.collector.ReplyStream(r.Context(), sess.CollectorMessages, text, func(chunk string) {
		emit(map[string]any{"type": "chunk", "text": chunk})
	})
	if err != nil {
		emit(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	if err := s.recordCollectorTurn(r.Context(), sess.ID, text, res.Message, res.Summary); err != nil {
		emit(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	emit(map[string]any{
		"type":             "done",
		"sessionId":        sess.ID,
		"message":          res.Message,
		"showConfirmation": res.ShowConfirmation,
		"summary":          res.Summary,
	})
}

func (s *apiServer) loadOrCreateSession(ctx context.Context, sessionID, deviceID string) (t.Session, error) {
	if id := strings.TrimSpace(sessionID); id != "" {
		sess, err := s.store.GetSession(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return t.Session{}, err
		}
	}
	sess := t.Session{
		ID:        fmt.Sprintf("ses_%d", time.Now().UnixNano()),
		DeviceID:  strings.TrimSpace(deviceID),
		Phase:     t.PhaseCollector,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.PutSession(ctx, sess); err != nil {
		return t.Session{}, err
	}
	return sess, nil
}

func (s *apiServer) recordCollectorTurn(ctx context.Context, sessionID t.SessionID, userText string, reply t.ChatMessage, summary *t.CreativeSummary) error {
	_, err := s.store.UpdateSession(ctx, sessionID, func(sess *t.Session) {
		sess.CollectorMessages = append(sess.CollectorMessages,
			t.ChatMessage{
				ID:        fmt.Sprintf("user-%d", time.Now().UnixNano()),
				Text:      userText,
				Sender:    "user",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
			reply,
		)
		if summary != nil {
			sess.CreativeSummary = summary
			sess.Phase = t.PhaseApproved
		}
	})
	return err
}
