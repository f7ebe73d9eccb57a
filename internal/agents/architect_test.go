package agents

import (
	"context"
	"testing"

	"dreamcard/internal/blueprint"
	"dreamcard/internal/llm"
	"dreamcard/internal/tester"
	t2 "dreamcard/internal/types"
)

func checkStructurallyValid(t *testing.T, bp blueprint.Blueprint) {
	t.Helper()
	tester.True(t, len(bp.Buttons) >= 1 && len(bp.Buttons) <= 4, "button count")

	music, image := 0, 0
	for _, b := range bp.Buttons {
		switch b.Type {
		case blueprint.ButtonMusic:
			music++
		case blueprint.ButtonImage:
			image++
		case blueprint.ButtonText:
		default:
			t.Fatalf("unexpected button type %q", b.Type)
		}
	}
	tester.True(t, music <= 1, "at most one music button")
	tester.True(t, image <= 1, "at most one image button")

	for _, c := range []string{bp.PrimaryBackground, bp.SecondaryBackground, bp.TextColor, bp.Accent} {
		tester.True(t, blueprint.IsHexColor(c), c)
	}
	tester.True(t, blueprint.IsAllowedFont(bp.FontHeading), bp.FontHeading)
	tester.True(t, blueprint.IsAllowedFont(bp.FontBody), bp.FontBody)
}

func TestFromTranscriptEndToEnd(t *testing.T) {
	// Model output with deliberate violations: five buttons, two music, a
	// named color, an unknown font.
	fake := llm.NewFakeClient().Respond("architect", `{
		"heading": "For Danielle",
		"description": "A fun birthday card, sarcastic robot vibe.",
		"statusBar": "From your sibling",
		"centralImage": "sarcastic robot avatar",
		"buttons": [
			{"id": "b1", "type": "music", "label": "play a tune"},
			{"id": "b2", "type": "music", "label": "another tune"},
			{"id": "b3", "type": "image", "label": "see a pic"},
			{"id": "b4", "type": "text", "label": "tell a joke"},
			{"id": "b5", "type": "text", "label": "one too many"}
		],
		"primaryBackground": "rebeccapurple",
		"secondaryBackground": "#1a0f1b",
		"textColor": "#FFFADC",
		"accent": "#F4B860",
		"themeName": "sarcastic robot",
		"fontHeading": "Comic Sans MS",
		"fontBody": "Inter"
	}`)
	a := &Architect{LLM: fake}

	tx := "User: a fun birthday card for my sister Danielle, sarcastic robot vibe\nAssistant: got it, one button to tell a joke?"
	bp, err := a.FromTranscript(context.Background(), tx)
	tester.NoErr(t, err)
	checkStructurallyValid(t, bp)

	tester.Eq(t, len(bp.Buttons), 4)
	tester.Eq(t, bp.Buttons[0].Type, blueprint.ButtonMusic)
	tester.Eq(t, bp.Buttons[1].Type, blueprint.ButtonText, "second music demoted")
	tester.Eq(t, bp.Buttons[2].Type, blueprint.ButtonImage)
	tester.Eq(t, bp.PrimaryBackground, blueprint.DefaultPrimaryBackground)
	tester.Eq(t, bp.FontHeading, blueprint.DefaultFontHeading)
}

func TestFromSummarySeedsDefaults(t *testing.T) {
	// Model returns an empty object; every field must still be populated
	// from the summary seed or the hardcoded fallbacks.
	fake := llm.NewFakeClient().Respond("architect", `{}`)
	a := &Architect{LLM: fake}

	sum := t2.CreativeSummary{
		RecipientName:  "Danielle",
		SenderName:     "Alex",
		SenderVibe:     "sarcastic robot",
		CentralSubject: "avatar",
		Tone:           "playful",
	}
	bp, err := a.FromSummary(context.Background(), sum)
	tester.NoErr(t, err)
	checkStructurallyValid(t, bp)

	tester.Eq(t, bp.Heading, "For Danielle")
	tester.Eq(t, bp.StatusBar, "Alex · playful")
	tester.Eq(t, bp.CentralImage, "avatar")
	tester.Eq(t, bp.FontHeading, blueprint.DefaultFontHeading)
	tester.Eq(t, bp.FontBody, blueprint.DefaultFontBody)
}

func TestFromSummaryStructurallyIdempotent(t *testing.T) {
	fake := llm.NewFakeClient().Respond("architect", `{"heading":"Hey","fontHeading":"Lora"}`)
	a := &Architect{LLM: fake}
	sum := t2.CreativeSummary{RecipientName: "Sam"}

	first, err := a.FromSummary(context.Background(), sum)
	tester.NoErr(t, err)
	second, err := a.FromSummary(context.Background(), sum)
	tester.NoErr(t, err)

	checkStructurallyValid(t, first)
	checkStructurallyValid(t, second)
	tester.Eq(t, first, second)
}

func TestFromSummaryModelFailure(t *testing.T) {
	a := &Architect{LLM: llm.Disabled{}}
	_, err := a.FromSummary(context.Background(), t2.CreativeSummary{})
	tester.ErrIs(t, err, llm.ErrNotConfigured)
}

func TestStrictPassesValidBlueprint(t *testing.T) {
	fake := llm.NewFakeClient().Respond("architect", `{"heading":"Hi","buttons":[{"id":"b1","type":"text","label":"wave"}]}`)
	a := &Architect{LLM: fake}

	bp, verrs, err := a.Strict(context.Background(), t2.CreativeSummary{RecipientName: "Kim"})
	tester.NoErr(t, err)
	tester.Eq(t, len(verrs), 0)
	checkStructurallyValid(t, bp)
}
