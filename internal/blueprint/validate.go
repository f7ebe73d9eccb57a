package blueprint

import "fmt"

// ValidationError is one (path, message) pair from strict validation.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string { return e.Path + ": " + e.Message }

// Validate runs strict-mode validation over an externally submitted
// candidate, typically decoded from client JSON into a generic map.
// Returns an empty slice when the candidate is valid. Nothing is coerced:
// a blueprint arriving through the public API is rejected outright, unlike
// model output which goes through Normalize.
func Validate(candidate any) []ValidationError {
	var errs []ValidationError

	b, ok := candidate.(map[string]any)
	if !ok || b == nil {
		return []ValidationError{{Path: "", Message: "blueprint must be an object"}}
	}

	buttons, ok := b["buttons"].([]any)
	if !ok {
		errs = append(errs, ValidationError{Path: "buttons", Message: "buttons must be an array"})
	} else {
		if len(buttons) < 1 || len(buttons) > MaxButtons {
			errs = append(errs, ValidationError{Path: "buttons", Message: "buttons must have 1 to 4 items"})
		}
		imageCount, musicCount := 0, 0
		for i, it := range buttons {
			btn, _ := it.(map[string]any)
			outputType, _ := btn["type"].(string)
			if outputType == "" {
				outputType, _ = btn["outputType"].(string)
			}
			switch outputType {
			case ButtonImage:
				imageCount++
			case ButtonMusic:
				musicCount++
			case ButtonText:
			default:
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("buttons[%d].outputType", i),
					Message: "must be text, music, or image",
				})
			}
		}
		if imageCount > 1 {
			errs = append(errs, ValidationError{Path: "buttons", Message: "at most one image button"})
		}
		if musicCount > 1 {
			errs = append(errs, ValidationError{Path: "buttons", Message: "at most one music button"})
		}
	}

	checkAllowed := func(key string, allowed func(string) bool, msg string) {
		v, present := b[key]
		if !present {
			return
		}
		s, _ := v.(string)
		if !allowed(s) {
			errs = append(errs, ValidationError{Path: key, Message: msg})
		}
	}
	checkAllowed("fontHeading", IsAllowedFont, "font not in allowlist")
	checkAllowed("fontBody", IsAllowedFont, "font not in allowlist")
	checkAllowed("effect", IsAllowedEffect, "effect not in allowlist")
	checkAllowed("statusBarStyle", IsAllowedStatusBarStyle, "status bar style not in allowlist")
	checkAllowed("buttonShape", IsAllowedButtonShape, "button shape not in allowlist")

	for _, key := range []string{"primaryBackground", "secondaryBackground", "textColor", "accent"} {
		v, present := b[key]
		if !present || v == nil {
			continue
		}
		s, _ := v.(string)
		if !IsHexColor(s) {
			errs = append(errs, ValidationError{Path: key, Message: "must be a hex color #RRGGBB"})
		}
	}

	return errs
}

// ValidateBlueprint is the typed convenience form used after Normalize or
// before persisting a blueprint that claims to be final.
func ValidateBlueprint(b Blueprint) []ValidationError {
	m := map[string]any{
		"fontHeading":       b.FontHeading,
		"fontBody":          b.FontBody,
		"effect":            b.Effect,
		"statusBarStyle":    b.StatusBarStyle,
		"buttonShape":       b.ButtonShape,
		"primaryBackground": b.PrimaryBackground,
		"textColor":         b.TextColor,
		"accent":            b.Accent,
	}
	if b.SecondaryBackground != "" {
		m["secondaryBackground"] = b.SecondaryBackground
	}
	buttons := make([]any, 0, len(b.Buttons))
	for _, btn := range b.Buttons {
		buttons = append(buttons, map[string]any{"type": btn.Type, "label": btn.Label})
	}
	m["buttons"] = buttons
	return Validate(m)
}
