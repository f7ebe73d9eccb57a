package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dreamcard/internal/blueprint"
	t "dreamcard/internal/types"
)

const (
	chatWSWriteWait = 10 * time.Second
	chatWSPongWait  = 60 * time.Second
	chatWSPingEvery = (chatWSPongWait * 9) / 10
)

var chatWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type chatWSInbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type chatWSOutbound struct {
	Type             string             `json:"type"`
	SessionID        string             `json:"sessionId,omitempty"`
	Text             string             `json:"text,omitempty"`
	Message          *t.ChatMessage     `json:"message,omitempty"`
	ShowConfirmation bool               `json:"showConfirmation,omitempty"`
	Summary          *t.CreativeSummary `json:"summary,omitempty"`
	Code             string             `json:"code,omitempty"`
	ErrMessage       string             `json:"errorMessage,omitempty"`
}

// handleChatWS streams collector or editor turns over a websocket. The
// session id arrives as a query parameter; each inbound "send" produces
// chunk frames followed by a message frame.
func (s *apiServer) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	conn, err := chatWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(chatWSPongWait)); err != nil {
		log.Printf("chat ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(chatWSPongWait))
	})

	writeCh := make(chan chatWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(chatWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(chatWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(chatWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	sess, err := s.loadOrCreateSession(ctx, sessionID, "")
	if err != nil {
		pushChatWS(writeCh, chatWSOutbound{Type: "error", Code: "internal", ErrMessage: err.Error()})
		cancel()
		<-writerDone
		return
	}
	pushChatWS(writeCh, chatWSOutbound{Type: "subscribed", SessionID: sess.ID})

	for {
		var in chatWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushChatWS(writeCh, chatWSOutbound{Type: "pong"})
		case "send":
			text := strings.TrimSpace(in.Text)
			if text == "" {
				pushChatWS(writeCh, chatWSOutbound{Type: "error", Code: "invalid_argument", ErrMessage: "text is required"})
				continue
			}
			s.chatWSTurn(ctx, writeCh, sess.ID, text)
		default:
			pushChatWS(writeCh, chatWSOutbound{Type: "error", Code: "invalid_argument", ErrMessage: "unsupported type"})
		}
	}
}

func (s *apiServer) chatWSTurn(ctx context.Context, writeCh chan chatWSOutbound, sessionID t.SessionID, text string) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		pushChatWS(writeCh, chatWSOutbound{Type: "error", Code: "internal", ErrMessage: err.Error()})
		return
	}

	onChunk := func(chunk string) {
		pushChatWS(writeCh, chatWSOutbound{Type: "chunk", SessionID: sessionID, Text: chunk})
	}

	if sess.Phase == t.PhaseEditor {
		res, err := s.iterator.Reply(ctx, sess.CollectorMessages, text, s.sessionBlueprint(ctx, sess))
		if err != nil {
			pushChatWS(writeCh, chatWSOutbound{Type: "error", Code: "internal", ErrMessage: err.Error()})
			return
		}
		pushChatWS(writeCh, chatWSOutbound{Type: "message", SessionID: sessionID, Message: &res.Message})
		return
	}

	res, err := s.collector.ReplyStream(ctx, sess.CollectorMessages, text, onChunk)
	if err != nil {
		pushChatWS(writeCh, chatWSOutbound{Type: "error", Code: "internal", ErrMessage: err.Error()})
		return
	}
	if err := s.recordCollectorTurn(ctx, sessionID, text, res.Message, res.Summary); err != nil {
		pushChatWS(writeCh, chatWSOutbound{Type: "error", Code: "internal", ErrMessage: err.Error()})
		return
	}
	pushChatWS(writeCh, chatWSOutbound{
		Type:             "message",
		SessionID:        sessionID,
		Message:          &res.Message,
		ShowConfirmation: res.ShowConfirmation,
		Summary:          res.Summary,
	})
}

// sessionBlueprint fetches the current blueprint for an editor session, nil
// when the build has none yet.
func (s *apiServer) sessionBlueprint(ctx context.Context, sess t.Session) *blueprint.Blueprint {
	if sess.BuildID == "" {
		return nil
	}
	b, err := s.store.GetBuild(ctx, sess.BuildID)
	if err != nil {
		return nil
	}
	return b.Blueprint
}

func pushChatWS(writeCh chan chatWSOutbound, out chatWSOutbound) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
