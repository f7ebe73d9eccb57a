package main

import (
	"errors"
	"net/http"
	"strings"

	"dreamcard/internal/buildflow"
	"dreamcard/internal/store"
	t "dreamcard/internal/types"
)

type buildStartRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
}

// handleBuildStart creates a build from the session's approved summary and
// runs the pipeline to the first artifact.
func (s *apiServer) handleBuildStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var in buildStartRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	sess, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess.CreativeSummary == nil {
		writeError(w, http.StatusConflict, "session has no approved summary yet")
		return
	}

	b, err := s.builds.CreateBuild(r.Context(), sess.ID, strings.TrimSpace(in.UserID), *sess.CreativeSummary)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.store.UpdateSession(r.Context(), sess.ID, func(u *t.Session) {
		u.BuildID = b.ID
		u.Phase = t.PhaseBuilding
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	b, err = s.builds.RunBuild(r.Context(), b.ID)
	if err != nil {
		// The build record carries the failure; report it with the id so
		// the client can poll or retry.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"build": b,
			"error": err.Error(),
		})
		return
	}
	if _, err := s.store.UpdateSession(r.Context(), sess.ID, func(u *t.Session) {
		u.Phase = t.PhaseEditor
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"build": b})
}

// handleBuildGet serves GET /api/build/{id}.
func (s *apiServer) handleBuildGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/build/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	b, err := s.store.GetBuild(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "build not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"build": b})
}

type editorSendRequest struct {
	BuildID string `json:"buildId"`
	Text    string `json:"text"`
}

// handleEditorSend applies one edit request to a ready build. A cost cap
// hit is reported as a distinct limit response, not a generic failure.
func (s *apiServer) handleEditorSend(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var in editorSendRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	buildID := strings.TrimSpace(in.BuildID)
	text := strings.TrimSpace(in.Text)
	if buildID == "" || text == "" {
		writeError(w, http.StatusBadRequest, "buildId and text are required")
		return
	}

	b, err := s.builds.Iterate(r.Context(), buildID, text)
	if err != nil {
		switch {
		case errors.Is(err, buildflow.ErrLimitReached):
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"limitReached": true,
			})
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "build not found")
		case errors.Is(err, store.ErrVersionConflict):
			writeError(w, http.StatusConflict, "build was updated concurrently, retry")
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"build": b})
}
