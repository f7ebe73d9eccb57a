package blueprint

import (
	"fmt"
	"strings"
)

// Fallback values used when the model omits or mangles a field. Every
// Blueprint field has one; Normalize never leaves a field empty.
const (
	DefaultPrimaryBackground   = "#2D1B2E"
	DefaultSecondaryBackground = "#1a0f1b"
	DefaultTextColor           = "#FFFADC"
	DefaultAccent              = "#F4B860"
	DefaultFontHeading         = "Playfair Display"
	DefaultFontBody            = "Inter"
	DefaultEffect              = "none"
	DefaultStatusBarStyle      = "pill"
	DefaultButtonShape         = "rounded"
	DefaultThemeName           = "warm"
)

// Seed carries conversation-derived fallbacks so defaults can still feel
// personal when the model output is unusable.
type Seed struct {
	RecipientName  string
	SenderName     string
	Tone           string
	Vibe           string
	CentralSubject string
}

// Normalize builds a valid Blueprint from untrusted model JSON decoded into
// a generic map. Construction mode: violations are repaired, not rejected.
// Extra music/image buttons are demoted to text, the list is clamped to
// four, unknown enum values fall back to defaults, and every missing field
// gets its hardcoded fallback.
func Normalize(raw map[string]any, seed Seed) Blueprint {
	if raw == nil {
		raw = map[string]any{}
	}

	recipient := seed.RecipientName
	if recipient == "" {
		recipient = "your loved one"
	}
	sender := seed.SenderName
	if sender == "" {
		sender = "you"
	}
	tone := seed.Tone
	if tone == "" {
		tone = DefaultThemeName
	}
	subject := seed.CentralSubject
	if subject == "" {
		subject = "avatar"
	}

	b := Blueprint{
		Heading:      clamp(str(raw, "heading"), maxHeadingLen),
		Description:  clamp(str(raw, "description"), maxDescriptionLen),
		StatusBar:    clamp(str(raw, "statusBar"), maxStatusBarLen),
		CentralImage: clamp(str(raw, "centralImage"), maxCentralImage),

		PrimaryBackground:   hexOr(str(raw, "primaryBackground"), DefaultPrimaryBackground),
		SecondaryBackground: hexOr(str(raw, "secondaryBackground"), DefaultSecondaryBackground),
		TextColor:           hexOr(str(raw, "textColor"), DefaultTextColor),
		Accent:              hexOr(str(raw, "accent"), DefaultAccent),

		ThemeName:      str(raw, "themeName"),
		FontHeading:    enumOr(str(raw, "fontHeading"), IsAllowedFont, DefaultFontHeading),
		FontBody:       enumOr(str(raw, "fontBody"), IsAllowedFont, DefaultFontBody),
		Effect:         enumOr(str(raw, "effect"), IsAllowedEffect, DefaultEffect),
		StatusBarStyle: enumOr(str(raw, "statusBarStyle"), IsAllowedStatusBarStyle, DefaultStatusBarStyle),
		ButtonShape:    enumOr(str(raw, "buttonShape"), IsAllowedButtonShape, DefaultButtonShape),
	}

	if b.Heading == "" {
		b.Heading = "For " + recipient
	}
	if b.Description == "" {
		if seed.Vibe != "" {
			b.Description = clamp(seed.Vibe, maxDescriptionLen)
		} else {
			b.Description = "A little something for you."
		}
	}
	if b.StatusBar == "" {
		b.StatusBar = sender + " · " + tone
	}
	if b.CentralImage == "" {
		b.CentralImage = subject
	}
	if b.ThemeName == "" {
		b.ThemeName = tone
	}

	b.Buttons = NormalizeButtons(rawButtons(raw))
	if ri := rawStringMap(raw, "runtimeInstructions"); len(ri) > 0 {
		b.RuntimeInstructions = ri
	}
	if eff, ok := raw["effects"].(map[string]any); ok {
		b.Effects = normalizeEffects(eff)
	}
	return b
}

// NormalizeButtons enforces the 1-4 length and one-music/one-image caps by
// demotion. Extras beyond the first music or image button become text; an
// empty list gets the default two-button set.
func NormalizeButtons(in []ButtonSlot) []ButtonSlot {
	if len(in) == 0 {
		return []ButtonSlot{
			{ID: "btn1", Type: ButtonText, Label: "send love"},
			{ID: "btn2", Type: ButtonText, Label: "surprise me"},
		}
	}
	if len(in) > MaxButtons {
		in = in[:MaxButtons]
	}
	out := make([]ButtonSlot, 0, len(in))
	musicSeen, imageSeen := false, false
	for i, b := range in {
		t := b.Type
		switch t {
		case ButtonMusic:
			if musicSeen {
				t = ButtonText
			}
			musicSeen = true
		case ButtonImage:
			if imageSeen {
				t = ButtonText
			}
			imageSeen = true
		case ButtonText:
		default:
			t = ButtonText
		}
		id := b.ID
		if id == "" {
			id = fmt.Sprintf("btn%d", i+1)
		}
		label := clamp(b.Label, maxButtonLabelLen)
		if label == "" {
			label = "Button"
		}
		out = append(out, ButtonSlot{ID: id, Type: t, Label: label, SenderLogic: b.SenderLogic})
	}
	return out
}

func normalizeEffects(raw map[string]any) *Effects {
	pick := func(key string, allowed []string) string {
		s, _ := raw[key].(string)
		if contains(allowed, s) {
			return s
		}
		return "none"
	}
	return &Effects{
		ButtonStyle:         pick("buttonStyle", AllowedButtonStyles),
		FrameBackdrop:       pick("frameBackdrop", AllowedFrameBackdrops),
		EntranceEffect:      pick("entranceEffect", AllowedEntranceEffects),
		CardContainer:       pick("cardContainer", AllowedCardContainers),
		TypographyTreatment: pick("typographyTreatment", AllowedTypographyTreatments),
	}
}

func rawButtons(raw map[string]any) []ButtonSlot {
	arr, ok := raw["buttons"].([]any)
	if !ok {
		return nil
	}
	out := make([]ButtonSlot, 0, len(arr))
	for _, it := range arr {
		m, _ := it.(map[string]any)
		if m == nil {
			continue
		}
		t, _ := m["type"].(string)
		if t == "" {
			t, _ = m["outputType"].(string)
		}
		id, _ := m["id"].(string)
		label, _ := m["label"].(string)
		logic, _ := m["senderLogic"].(string)
		out = append(out, ButtonSlot{ID: id, Type: t, Label: label, SenderLogic: logic})
	}
	return out
}

func rawStringMap(raw map[string]any, key string) map[string]string {
	m, ok := raw[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && IsAllowedOutputType(k) {
			out[k] = s
		}
	}
	return out
}

func str(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return strings.TrimSpace(s)
}

func clamp(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func hexOr(s, fallback string) string {
	if IsHexColor(s) {
		return s
	}
	return fallback
}

func enumOr(s string, allowed func(string) bool, fallback string) string {
	if allowed(s) {
		return s
	}
	return fallback
}
