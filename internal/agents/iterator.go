package agents

import (
	"context"
	"fmt"
	"strings"

	"dreamcard/internal/blueprint"
	"dreamcard/internal/llm"
	t "dreamcard/internal/types"
)

// EditIntent is the Iterator's classification of an edit request.
type EditIntent int

const (
	HeadingEdit EditIntent = iota
	DescriptionEdit
	ColorEdit
	// GenericAppend is the explicit fallback: the raw request text is
	// appended to the description so no input is ever silently dropped.
	GenericAppend
)

func (i EditIntent) String() string {
	switch i {
	case HeadingEdit:
		return "heading"
	case DescriptionEdit:
		return "description"
	case ColorEdit:
		return "color"
	default:
		return "generic"
	}
}

// ClassifyEdit maps a natural-language edit request to an intent via keyword
// matching. Deliberately a coarse rule-based layer, not a model call, so
// small edits stay cheap and predictable.
func ClassifyEdit(request string) EditIntent {
	lower := strings.ToLower(request)
	switch {
	case strings.Contains(lower, "heading"), strings.Contains(lower, "title"):
		return HeadingEdit
	case strings.Contains(lower, "description"):
		return DescriptionEdit
	case strings.Contains(lower, "color"), strings.Contains(lower, "background"):
		return ColorEdit
	default:
		return GenericAppend
	}
}

const iteratorSystem = `You are the editor-side assistant for a card builder. Use effortless authority: don't just do the change, elevate it. Offer a vision; never ask for permission. Suggest concrete tweaks (heading, description, palette) and keep suggestions brief. When the user seems satisfied, prompt them to say "export" to materialize the card.`

const iteratorFallbackReply = "I'm seeing that. Want to sharpen the heading, description, or palette? Or say 'export' when you're ready to materialize."

// Iterator applies a single natural-language edit to the current artifact
// and produces the editor chat reply.
type Iterator struct {
	LLM      llm.LLMClient
	Engineer *Engineer
	Watcher  *Watcher
}

// Apply patches the current blueprint per the classified intent, regenerates
// through the Engineer and lets the Watcher accept or realign the result.
// The current artifact is never mutated; a new one supersedes it.
func (it *Iterator) Apply(ctx context.Context, request string, current t.BuildArtifact) (t.BuildArtifact, error) {
	bp := PatchBlueprint(current.Blueprint, request)

	next, err := it.Engineer.Generate(ctx, bp, current.Code, nil)
	if err != nil {
		return t.BuildArtifact{}, fmt.Errorf("iterate: %w", err)
	}
	return it.Watcher.Run(ctx, &current, next)
}

// PatchBlueprint returns a copy of bp with the single field change the
// request asks for.
func PatchBlueprint(bp blueprint.Blueprint, request string) blueprint.Blueprint {
	text := strings.TrimSpace(request)
	switch ClassifyEdit(request) {
	case HeadingEdit:
		if text != "" {
			bp.Heading = truncate(text, 60)
		}
	case DescriptionEdit:
		if text != "" {
			bp.Description = truncate(text, 120)
		}
	case ColorEdit:
		bp.PrimaryBackground = pickHex(text, blueprint.DefaultPrimaryBackground)
	default:
		bp.Description = truncate(strings.TrimSpace(bp.Description+" "+text), 120)
	}
	return bp
}

// pickHex uses a hex color literal from the request when one is present.
func pickHex(text, fallback string) string {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,;:!?")
		if blueprint.IsHexColor(word) {
			return word
		}
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Reply generates the editor chat response. The trigger word short-circuits;
// "export" in the request gets an immediate export-typed reply without a
// model call; a model failure degrades to a canned suggestion instead of
// erroring the chat turn.
func (it *Iterator) Reply(ctx context.Context, history []t.ChatMessage, userText string, bp *blueprint.Blueprint) (CollectorResult, error) {
	trimmed := strings.TrimSpace(userText)
	lower := strings.ToLower(trimmed)

	if IsTrigger(trimmed) {
		return CollectorResult{Message: aiMessage("", ""), Pop: true}, nil
	}
	if strings.Contains(lower, "export") {
		return CollectorResult{
			Message: aiMessage("The dream is ready. Hit export when you want to materialize it.", t.MessageTypeExport),
		}, nil
	}

	system := iteratorSystem
	if bp != nil && (bp.Heading != "" || bp.ThemeName != "") {
		system += fmt.Sprintf("\n\nCurrent card: heading %q, theme %s.", bp.Heading, bp.ThemeName)
	}

	recent := history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	msgs := append(historyToMessages(recent), llm.Message{Role: "user", Text: trimmed})

	ctx = llm.WithPhase(ctx, "editor")
	replyText, err := it.LLM.GenerateText(ctx, system, msgs)
	if err != nil {
		return CollectorResult{Message: aiMessage(iteratorFallbackReply, "")}, nil
	}

	replyText = strings.TrimSpace(replyText)
	if replyText == "" {
		replyText = "Say 'export' when you're ready to materialize."
	}
	msgType := ""
	if suggestsExport(replyText, lower) {
		msgType = t.MessageTypeExport
	}
	return CollectorResult{Message: aiMessage(replyText, msgType)}, nil
}

func suggestsExport(reply, userLower string) bool {
	r := strings.ToLower(reply)
	return strings.Contains(r, "export") || strings.Contains(r, "materialize") ||
		strings.Contains(userLower, "ready") || strings.Contains(userLower, "done")
}
