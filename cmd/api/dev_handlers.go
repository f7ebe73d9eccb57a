package main

import (
	"net/http"
	"strings"

	"dreamcard/internal/devstate"
	t "dreamcard/internal/types"
)

type devPipelineRequest struct {
	Transcript string             `json:"transcript,omitempty"`
	Summary    *t.CreativeSummary `json:"summary,omitempty"`
}

// handleDevPipeline runs Architect and Engineer directly, outside any
// session or build record, and parks the result in the dev slot.
func (s *apiServer) handleDevPipeline(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var in devPipelineRequest
	if !decodeJSON(w, r, &in) {
		return
	}

	ctx := r.Context()
	switch {
	case in.Summary != nil:
		got, gerr := s.architect.FromSummary(ctx, *in.Summary)
		if gerr != nil {
			writeError(w, http.StatusBadGateway, gerr.Error())
			return
		}
		art, gerr := s.builds.Engineer.Generate(ctx, got, "", nil)
		if gerr != nil {
			writeError(w, http.StatusBadGateway, gerr.Error())
			return
		}
		s.dev.Set(devstate.Snapshot{Summary: in.Summary, Blueprint: &got, Artifact: &art})
	case strings.TrimSpace(in.Transcript) != "":
		got, gerr := s.architect.FromTranscript(ctx, in.Transcript)
		if gerr != nil {
			writeError(w, http.StatusBadGateway, gerr.Error())
			return
		}
		art, gerr := s.builds.Engineer.Generate(ctx, got, "", nil)
		if gerr != nil {
			writeError(w, http.StatusBadGateway, gerr.Error())
			return
		}
		s.dev.Set(devstate.Snapshot{Blueprint: &got, Artifact: &art})
	default:
		writeError(w, http.StatusBadRequest, "transcript or summary is required")
		return
	}

	snap, _ := s.dev.Get()
	writeJSON(w, http.StatusOK, snap)
}

type devIterateRequest struct {
	Text string `json:"text"`
}

// handleDevIterate applies one edit to the dev slot's artifact.
func (s *apiServer) handleDevIterate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var in devIterateRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	snap, ok := s.dev.Get()
	if !ok || snap.Artifact == nil {
		writeError(w, http.StatusConflict, "no pipeline result to iterate on")
		return
	}
	next, err := s.iterator.Apply(r.Context(), text, *snap.Artifact)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.dev.Update(func(sn *devstate.Snapshot) {
		sn.Blueprint = &next.Blueprint
		sn.Artifact = &next
	})

	snap, _ = s.dev.Get()
	writeJSON(w, http.StatusOK, snap)
}

// handleDevCurrent dumps the dev slot.
func (s *apiServer) handleDevCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap, ok := s.dev.Get()
	if !ok {
		writeError(w, http.StatusNotFound, "no pipeline run yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
