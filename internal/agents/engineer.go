package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"dreamcard/internal/blueprint"
	"dreamcard/internal/llm"
	t "dreamcard/internal/types"
)

const engineerSystem = `You are an expert React 19 and Tailwind developer. Generate a single, production-ready App.tsx file. Use Tailwind CSS (via CDN) and Framer Motion. Use dreamlike, subtle entrance animations. Use glassmorphism for overlays and modals where appropriate. Output ONLY raw code: no markdown, no explanations, no code fences. Start with "import" or "export". Use camelCase for JSX/SVG props (e.g. strokeWidth not stroke-width). Use {/* */} for comments, never HTML <!-- -->.`

const effectsHints = `
Implement blueprint.effects when present (omit effect when value is "none"):
- buttonStyle: gradient = CSS gradient on button bg; outline = border only; glass = backdrop-blur; softGlow = box-shadow glow; bordered = border; minimal = flat; pill = rounded-full; neon = bright border/glow.
- frameBackdrop: glow = soft box-shadow behind central frame; pulse = animate opacity/scale; softGlow = subtle glow; particles = small animated dots; gradientRing = gradient circle behind; shimmer = shimmer animation; halo = soft halo; subtleShadow = shadow.
- entranceEffect: confetti = light confetti on first mount; particles = particle burst; fade = opacity 0 to 1; scaleIn = scale 0.9 to 1; subtleDrift = slight drift; blurIn = blur to sharp; stagger = stagger children; floatUp = translateY animate.
- cardContainer: glass = backdrop-blur border; softBorder = rounded border; elevated = shadow; minimal = flat; gradientBorder = gradient border.
- typographyTreatment: subtleShadow = text-shadow; gradientText = gradient on text; letterSpacing = tracking; allCaps = uppercase; serif = font-serif; rounded = rounded font.
`

const engineerPrompt = `Generate a single App.tsx for a personalized card experience.

Requirements:
- One central visual (avatar, card, orb, etc.) and 1-4 action buttons from the blueprint.
- The central visual MUST be inside a circular frame (e.g. rounded-full overflow-hidden or a circle wrapper).
- Tailwind for layout and colors; Framer Motion for dreamlike entrance animations; glassmorphism for modal/overlay styling.
- No external CSS imports (no import "./App.css").
- Use React 19, framer-motion, lucide-react. All styling via Tailwind or inline style.
- When the blueprint includes an "effects" object, implement each effect per the hints below (skip when value is "none").
` + effectsHints + `
Blueprint (JSON):
`

// Engineer turns a Blueprint into runnable card UI code. The model call is
// followed by code-shape repair; errors propagate with no retry inside the
// stage.
type Engineer struct {
	LLM llm.LLMClient
}

// Generate produces a new artifact from the blueprint. previousCode is
// recorded on the artifact for the Watcher's diff; avoidErrors are past
// error strings injected into the system instruction as an accumulating
// negative-feedback channel.
func (e *Engineer) Generate(ctx context.Context, bp blueprint.Blueprint, previousCode string, avoidErrors []string) (t.BuildArtifact, error) {
	ctx = llm.WithPhase(ctx, "engineer")

	bpJSON, _ := json.MarshalIndent(bp, "", "  ")
	prompt := engineerPrompt + string(bpJSON) + "\n\nGenerate the complete App.tsx code. Return ONLY the code."

	code, err := e.LLM.GenerateText(ctx, withAvoidErrors(engineerSystem, avoidErrors),
		[]llm.Message{{Role: "user", Text: prompt}})
	if err != nil {
		return t.BuildArtifact{}, fmt.Errorf("engineer: %w", err)
	}

	return t.BuildArtifact{
		Code:         RepairCode(code),
		Blueprint:    bp,
		CreatedAt:    time.Now().UTC(),
		PreviousCode: previousCode,
	}, nil
}

// Realign regenerates constrained to the previous code's structure, applying
// only the blueprint's field values. Invoked by the Watcher when free
// regeneration drifted too far.
func (e *Engineer) Realign(ctx context.Context, oldCode string, bp blueprint.Blueprint) (t.BuildArtifact, error) {
	ctx = llm.WithPhase(ctx, "realign")

	trimmed := oldCode
	if len(trimmed) > 4000 {
		trimmed = trimmed[:4000]
	}
	bpJSON, _ := json.MarshalIndent(bp, "", "  ")
	prompt := "The following React App.tsx was over-modified. Produce a corrected version that keeps the same structure and layout as the \"Previous code\" but applies the variable values from the \"Blueprint\". Output ONLY the code, no markdown.\n\nPrevious code:\n```\n" +
		trimmed + "\n```\n\nBlueprint:\n" + string(bpJSON) + "\n\nGenerate the aligned App.tsx."

	code, err := e.LLM.GenerateText(ctx, engineerSystem, []llm.Message{{Role: "user", Text: prompt}})
	if err != nil {
		return t.BuildArtifact{}, fmt.Errorf("engineer realign: %w", err)
	}

	return t.BuildArtifact{
		Code:         RepairCode(code),
		Blueprint:    bp,
		CreatedAt:    time.Now().UTC(),
		PreviousCode: oldCode,
	}, nil
}

func withAvoidErrors(system string, avoid []string) string {
	if len(avoid) == 0 {
		return system
	}
	var sb strings.Builder
	sb.WriteString(system)
	sb.WriteString("\n\nDo not repeat these previously observed errors:")
	for _, e := range avoid {
		sb.WriteString("\n- ")
		sb.WriteString(e)
	}
	return sb.String()
}

var (
	fencedBlockRe   = regexp.MustCompile("(?is)^```(?:tsx|ts|typescript|javascript|js)?\\n?(.*?)\\n?```$")
	leadingFenceRe  = regexp.MustCompile("(?i)^```(?:tsx|ts|typescript|javascript|js)?\\n?")
	trailingFenceRe = regexp.MustCompile("\\n?```$")
	langLabelRe     = regexp.MustCompile(`(?i)^(?:typescript|tsx|javascript|js|ts)\s+`)
	htmlCommentRe   = regexp.MustCompile(`(?s)<!--(.*?)-->`)
	cssImportRe     = regexp.MustCompile(`(?m)^import\s+['"][^'"]*\.css['"];?\n?`)
	reactImportRe   = regexp.MustCompile(`(?i)import\s+React`)
	motionImportRe  = regexp.MustCompile(`(?i)import\s+\{[^}]*motion`)
	defaultExportRe = regexp.MustCompile(`export\s+default\s`)
	componentDeclRe = regexp.MustCompile(`(?m)^(?:function|const)\s+([A-Z][A-Za-z0-9]*)\s*[(=]`)
)

// svg attribute names models commonly emit in kebab-case.
var kebabAttrs = []string{
	"stroke-width", "stroke-linecap", "stroke-linejoin", "stroke-opacity",
	"fill-opacity", "fill-rule", "clip-rule", "font-size", "font-family",
	"text-anchor", "stop-color", "stop-opacity",
}

// StripCodeFences removes markdown fences and a leading language label.
func StripCodeFences(code string) string {
	out := strings.TrimSpace(code)
	if m := fencedBlockRe.FindStringSubmatch(out); m != nil {
		out = m[1]
	} else {
		out = leadingFenceRe.ReplaceAllString(out, "")
		out = trailingFenceRe.ReplaceAllString(out, "")
	}
	out = strings.TrimSpace(out)
	out = langLabelRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// RepairCode fixes the model mistakes that break compilation: fences, HTML
// comments, kebab-case SVG attributes, stylesheet imports, missing imports
// and a missing default export.
func RepairCode(code string) string {
	out := StripCodeFences(code)

	out = cssImportRe.ReplaceAllString(out, "")

	out = htmlCommentRe.ReplaceAllStringFunc(out, func(m string) string {
		inner := htmlCommentRe.FindStringSubmatch(m)[1]
		return "{/* " + strings.TrimSpace(inner) + " */}"
	})

	for _, attr := range kebabAttrs {
		camel := kebabToCamel(attr)
		out = strings.ReplaceAll(out, " "+attr+"=", " "+camel+"=")
	}

	if !reactImportRe.MatchString(out) {
		out = "import React, { useState, useEffect } from 'react';\n" + out
	}
	if !motionImportRe.MatchString(out) {
		out = "import { motion, AnimatePresence } from 'framer-motion';\n" + out
	}

	if !defaultExportRe.MatchString(out) {
		if m := componentDeclRe.FindStringSubmatch(out); m != nil {
			out += "\n\nexport default " + m[1] + ";\n"
		}
	}

	return out
}

func kebabToCamel(s string) string {
	parts := strings.Split(s, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
