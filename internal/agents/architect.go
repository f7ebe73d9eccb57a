package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dreamcard/internal/blueprint"
	"dreamcard/internal/llm"
	t "dreamcard/internal/types"
)

// architectPrompt is rendered from the allowlist slices so the values the
// model is told are legal and the values the validator accepts can never
// drift apart.
func architectPrompt() string {
	return fmt.Sprintf(`You are a design architect. Turn the creative summary into a fixed card blueprint.

Output ONLY valid JSON with exactly these keys:
- "heading": string (short title, e.g. "For Danielle")
- "description": string (1-2 sentences, from senderVibe/tone)
- "statusBar": string (e.g. "From Alex · warm")
- "centralImage": string (description of the central visual: avatar, card, orb, etc.)
- "buttons": array of { "id": string, "type": "text"|"music"|"image", "label": string } (1-4 buttons; at most one music, one image)
- "primaryBackground", "secondaryBackground", "textColor", "accent": hex colors (#RRGGBB)
- "themeName": string
- "fontHeading", "fontBody": one of: %s
- "effect": one of: %s
- "statusBarStyle": one of: %s
- "buttonShape": one of: %s`,
		strings.Join(blueprint.AllowedFonts, ", "),
		strings.Join(blueprint.AllowedEffects, ", "),
		strings.Join(blueprint.AllowedStatusBarStyles, ", "),
		strings.Join(blueprint.AllowedButtonShapes, ", "),
	)
}

// Architect maps a creative summary (or a raw transcript) to a structurally
// valid Blueprint. One JSON-mode call, then Normalize; the result is always
// fully populated regardless of what the model returned.
type Architect struct {
	LLM llm.LLMClient
}

// FromSummary produces a Blueprint from the Collector's distilled output.
func (a *Architect) FromSummary(ctx context.Context, summary t.CreativeSummary) (blueprint.Blueprint, error) {
	ctx = llm.WithPhase(ctx, "architect")
	raw, err := a.LLM.GenerateJSON(ctx, architectPrompt(), summary)
	if err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("architect: %w", err)
	}
	var candidate map[string]any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("architect: %w", llm.ErrInvalidJSON)
	}
	return blueprint.Normalize(candidate, seedFrom(summary)), nil
}

// FromTranscript skips the Collector and builds a Blueprint straight from a
// raw conversation transcript. Used by the offline pipeline tooling.
func (a *Architect) FromTranscript(ctx context.Context, tx string) (blueprint.Blueprint, error) {
	ctx = llm.WithPhase(ctx, "architect")
	prompt := architectPrompt() + "\n\nThe input is a raw chat transcript; infer the summary fields from it."
	raw, err := a.LLM.GenerateJSON(ctx, prompt, map[string]string{"transcript": tx})
	if err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("architect: %w", err)
	}
	var candidate map[string]any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("architect: %w", llm.ErrInvalidJSON)
	}
	return blueprint.Normalize(candidate, blueprint.Seed{}), nil
}

// Strict runs FromSummary and then validates the result in strict mode.
// Used by the external card API where a structurally invalid Blueprint must
// be rejected, not repaired.
func (a *Architect) Strict(ctx context.Context, summary t.CreativeSummary) (blueprint.Blueprint, []blueprint.ValidationError, error) {
	bp, err := a.FromSummary(ctx, summary)
	if err != nil {
		return blueprint.Blueprint{}, nil, err
	}
	if errs := blueprint.ValidateBlueprint(bp); len(errs) > 0 {
		return blueprint.Blueprint{}, errs, nil
	}
	return bp, nil, nil
}

func seedFrom(s t.CreativeSummary) blueprint.Seed {
	return blueprint.Seed{
		RecipientName:  s.RecipientName,
		SenderName:     s.SenderName,
		Tone:           s.Tone,
		Vibe:           s.SenderVibe,
		CentralSubject: s.CentralSubject,
	}
}
