package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dreamcard/internal/blueprint"
	"dreamcard/internal/store"
	t "dreamcard/internal/types"
)

type cardFromSummaryRequest struct {
	Summary   *t.CreativeSummary `json:"summary,omitempty"`
	Blueprint map[string]any     `json:"blueprint,omitempty"`
}

// handleCardFromSummary is the strict external card API. A client-supplied
// blueprint is validated outright and rejected with (path, message) pairs;
// a summary goes through the Architect in strict mode instead.
func (s *apiServer) handleCardFromSummary(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var in cardFromSummaryRequest
	if !decodeJSON(w, r, &in) {
		return
	}

	if in.Blueprint != nil {
		if errs := blueprint.Validate(in.Blueprint); len(errs) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": errs})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"blueprint": in.Blueprint})
		return
	}

	if in.Summary == nil {
		writeError(w, http.StatusBadRequest, "summary or blueprint is required")
		return
	}
	bp, errs, err := s.architect.Strict(r.Context(), *in.Summary)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": errs})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blueprint": bp})
}

type cardActionRequest struct {
	BuildID    string `json:"buildId"`
	ButtonType string `json:"buttonType"`
	Input      string `json:"input,omitempty"`
}

// handleCardAction runs a receiver-side button through its stored Will.
func (s *apiServer) handleCardAction(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var in cardActionRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	buildID := strings.TrimSpace(in.BuildID)
	buttonType := strings.ToLower(strings.TrimSpace(in.ButtonType))
	if buildID == "" || buttonType == "" {
		writeError(w, http.StatusBadRequest, "buildId and buttonType are required")
		return
	}

	b, err := s.store.GetBuild(r.Context(), buildID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "build not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if b.Blueprint == nil {
		writeError(w, http.StatusConflict, "build has no blueprint yet")
		return
	}

	var out string
	if buttonType == "teaser" {
		out, err = s.actions.Teaser(r.Context(), b.Blueprint)
	} else {
		out, err = s.actions.Run(r.Context(), b.Blueprint, buttonType, in.Input)
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": out})
}

type cardExportRequest struct {
	BuildID string `json:"buildId"`
}

// handleCardExport freezes the build's current artifact into object storage
// and returns the card id plus a share link.
func (s *apiServer) handleCardExport(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.cards == nil {
		writeError(w, http.StatusServiceUnavailable, "card export storage is not configured")
		return
	}
	var in cardExportRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	buildID := strings.TrimSpace(in.BuildID)
	if buildID == "" {
		writeError(w, http.StatusBadRequest, "buildId is required")
		return
	}

	b, err := s.store.GetBuild(r.Context(), buildID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "build not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if b.Status != t.BuildReady || b.Artifact == nil {
		writeError(w, http.StatusConflict, "build has no exportable artifact")
		return
	}

	cardID := fmt.Sprintf("crd_%d", time.Now().UnixNano())
	if err := s.cards.Export(r.Context(), cardID, *b.Artifact); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	shareURL, err := s.cards.ShareURL(r.Context(), cardID, time.Hour)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if b.SessionID != "" {
		_, _ = s.store.UpdateSession(r.Context(), b.SessionID, func(u *t.Session) {
			u.Phase = t.PhaseExported
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cardId":   cardID,
		"shareUrl": shareURL,
	})
}
