package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"dreamcard/internal/actions"
	"dreamcard/internal/agents"
	"dreamcard/internal/blueprint"
	"dreamcard/internal/buildflow"
	"dreamcard/internal/devstate"
	"dreamcard/internal/llm"
	"dreamcard/internal/store"
	"dreamcard/internal/tester"
	t2 "dreamcard/internal/types"
)

func newTestServer(t *testing.T, fake *llm.FakeClient) *apiServer {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "store.json"))
	engineer := &agents.Engineer{LLM: fake}
	watcher := &agents.Watcher{Engineer: engineer}
	iterator := &agents.Iterator{LLM: fake, Engineer: engineer, Watcher: watcher}
	return &apiServer{
		store:     st,
		collector: &agents.Collector{LLM: fake},
		architect: &agents.Architect{LLM: fake},
		iterator:  iterator,
		actions:   &actions.Runner{LLM: fake},
		builds: &buildflow.Runner{
			Store:     st,
			Architect: &agents.Architect{LLM: fake},
			Engineer:  engineer,
			Iterator:  iterator,
			Watcher:   watcher,
		},
		dev:        devstate.NewSlot(),
		devEnabled: true,
	}
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	tester.NoErr(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChatSendCreatesSessionAndRecordsTurn(t *testing.T) {
	fake := llm.NewFakeClient().
		Respond("collector", "Who is the card for?").
		Respond("collector-check", `{"hasEnoughInfo": false, "missingPoints": ["recipient name"]}`)
	s := newTestServer(t, fake)
	mux := buildMux(s)

	rec := postJSON(t, mux, "/api/chat/send", chatSendRequest{Text: "I want to make a card"}, nil)
	tester.Eq(t, rec.Code, http.StatusOK)

	var out chatSendResponse
	tester.NoErr(t, json.Unmarshal(rec.Body.Bytes(), &out))
	tester.True(t, out.SessionID != "")
	tester.Eq(t, out.Message.Text, "Who is the card for?")
	tester.False(t, out.ShowConfirmation)

	sess, err := s.store.GetSession(context.Background(), out.SessionID)
	tester.NoErr(t, err)
	tester.Eq(t, len(sess.CollectorMessages), 2, "user turn plus assistant turn")
	tester.Eq(t, sess.CollectorMessages[0].Sender, "user")
}

func TestChatSendStreamEmitsChunksThenDone(t *testing.T) {
	fake := llm.NewFakeClient().
		Respond("collector", "Tell me about the vibe.").
		Respond("collector-check", `{"hasEnoughInfo": false}`)
	s := newTestServer(t, fake)
	mux := buildMux(s)

	rec := postJSON(t, mux, "/api/chat/send", chatSendRequest{Text: "hello"},
		map[string]string{"X-Stream": "true"})
	tester.Eq(t, rec.Code, http.StatusOK)
	tester.Eq(t, rec.Header().Get("Content-Type"), "application/x-ndjson")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	tester.True(t, len(lines) >= 2, "chunk lines plus done line")

	var first, last map[string]any
	tester.NoErr(t, json.Unmarshal([]byte(lines[0]), &first))
	tester.NoErr(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	tester.Eq(t, first["type"].(string), "chunk")
	tester.Eq(t, last["type"].(string), "done")
}

func TestChatSendConfirmationCarriesSummary(t *testing.T) {
	fake := llm.NewFakeClient().
		Respond("collector", "Sounds lovely. Ready to build?").
		Respond("collector-check", `{"hasEnoughInfo": true, "missingPoints": []}`).
		Respond("collector-extract", `{"recipientName":"Danielle","senderName":"Alex","senderVibe":"playful","centralSubject":"orb","tone":"playful","productConfirmed":true}`).
		Respond("collector-prose", "A playful orb for Danielle. Shall we build it?")
	s := newTestServer(t, fake)
	mux := buildMux(s)

	rec := postJSON(t, mux, "/api/chat/send", chatSendRequest{Text: "It is for Danielle, from Alex, playful orb"}, nil)
	tester.Eq(t, rec.Code, http.StatusOK)

	var out chatSendResponse
	tester.NoErr(t, json.Unmarshal(rec.Body.Bytes(), &out))
	tester.True(t, out.ShowConfirmation)
	tester.True(t, out.Summary != nil)
	tester.Eq(t, out.Summary.RecipientName, "Danielle")

	sess, err := s.store.GetSession(context.Background(), out.SessionID)
	tester.NoErr(t, err)
	tester.Eq(t, string(sess.Phase), string(t2.PhaseApproved))
}

func TestBuildStartRequiresApprovedSummary(t *testing.T) {
	fake := llm.NewFakeClient()
	s := newTestServer(t, fake)
	mux := buildMux(s)

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	sess, err := s.loadOrCreateSession(ctx, "", "dev-1")
	tester.NoErr(t, err)

	rec := postJSON(t, mux, "/api/build/start", buildStartRequest{SessionID: sess.ID}, nil)
	tester.Eq(t, rec.Code, http.StatusConflict)
}

func TestBuildStartRunsPipeline(t *testing.T) {
	fake := llm.NewFakeClient().
		Respond("architect", `{"heading":"For Danielle","buttons":[{"type":"text","label":"say hi"}]}`).
		Respond("engineer", "function Card() { return null; }")
	s := newTestServer(t, fake)
	mux := buildMux(s)

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	sess, err := s.loadOrCreateSession(ctx, "", "dev-1")
	tester.NoErr(t, err)
	_, err = s.store.UpdateSession(ctx, sess.ID, func(u *t2.Session) {
		u.CreativeSummary = &t2.CreativeSummary{RecipientName: "Danielle", SenderName: "Alex"}
		u.Phase = t2.PhaseApproved
	})
	tester.NoErr(t, err)

	rec := postJSON(t, mux, "/api/build/start", buildStartRequest{SessionID: sess.ID}, nil)
	tester.Eq(t, rec.Code, http.StatusOK)

	var out struct {
		Build t2.Build `json:"build"`
	}
	tester.NoErr(t, json.Unmarshal(rec.Body.Bytes(), &out))
	tester.Eq(t, string(out.Build.Status), string(t2.BuildReady))
	tester.True(t, out.Build.Artifact != nil)
	tester.Eq(t, out.Build.Artifact.Blueprint.Heading, "For Danielle")

	sess, err = s.store.GetSession(ctx, sess.ID)
	tester.NoErr(t, err)
	tester.Eq(t, string(sess.Phase), string(t2.PhaseEditor))
	tester.Eq(t, sess.BuildID, out.Build.ID)
}

func TestCardFromSummaryRejectsInvalidBlueprint(t *testing.T) {
	s := newTestServer(t, llm.NewFakeClient())
	mux := buildMux(s)

	rec := postJSON(t, mux, "/api/cards/from-summary", map[string]any{
		"blueprint": map[string]any{
			"buttons": []any{
				map[string]any{"id": "b1", "type": "music", "label": "one"},
				map[string]any{"id": "b2", "type": "music", "label": "two"},
			},
			"primaryBackground": "not-a-color",
		},
	}, nil)
	tester.Eq(t, rec.Code, http.StatusUnprocessableEntity)

	var out struct {
		Errors []struct {
			Path    string `json:"path"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	tester.NoErr(t, json.Unmarshal(rec.Body.Bytes(), &out))
	tester.True(t, len(out.Errors) >= 2)
}

func TestCardActionUsesStoredWill(t *testing.T) {
	fake := llm.NewFakeClient().Respond("action-text", "beep boop, with love")
	s := newTestServer(t, fake)
	mux := buildMux(s)

	ctx := context.Background()
	bp := blueprint.Normalize(nil, blueprint.Seed{RecipientName: "Danielle"})
	bp.RuntimeInstructions = map[string]string{blueprint.ButtonText: "Speak as a gentle robot."}
	b := t2.Build{ID: "bld_t", Status: t2.BuildReady, Blueprint: &bp}
	tester.NoErr(t, s.store.PutBuild(ctx, b))

	rec := postJSON(t, mux, "/api/card/action", cardActionRequest{
		BuildID:    "bld_t",
		ButtonType: "text",
		Input:      "say something nice",
	}, nil)
	tester.Eq(t, rec.Code, http.StatusOK)
	tester.Contains(t, rec.Body.String(), "beep boop")
}

func TestDevEndpointsHiddenWhenDisabled(t *testing.T) {
	s := newTestServer(t, llm.NewFakeClient())
	s.devEnabled = false
	mux := buildMux(s)

	req := httptest.NewRequest(http.MethodGet, "/api/dev/current", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	tester.Eq(t, rec.Code, http.StatusNotFound)
}

func TestDevPipelineAndIterate(t *testing.T) {
	fake := llm.NewFakeClient().
		Respond("architect", `{"heading":"Dev card"}`).
		Respond("engineer", "function Card() { return null; }").
		Respond("realign", "function Card() { return null; }")
	s := newTestServer(t, fake)
	mux := buildMux(s)

	rec := postJSON(t, mux, "/api/dev/pipeline", devPipelineRequest{
		Summary: &t2.CreativeSummary{RecipientName: "Sam"},
	}, nil)
	tester.Eq(t, rec.Code, http.StatusOK)

	rec = postJSON(t, mux, "/api/dev/iterate", devIterateRequest{Text: "change the heading to Hey Sam"}, nil)
	tester.Eq(t, rec.Code, http.StatusOK)
	tester.Contains(t, rec.Body.String(), "Hey Sam")

	req := httptest.NewRequest(http.MethodGet, "/api/dev/current", nil)
	get := httptest.NewRecorder()
	mux.ServeHTTP(get, req)
	tester.Eq(t, get.Code, http.StatusOK)
}
