package blueprint

import "regexp"

// Allowlists shared by the Architect prompt and the validator. The prompt is
// rendered from these slices, so the values the model is told about and the
// values the validator accepts cannot diverge.

var AllowedFonts = []string{
	"Playfair Display",
	"Inter",
	"Dancing Script",
	"Space Mono",
	"Lora",
	"Poppins",
	"Montserrat",
	"Open Sans",
	"Roboto",
	"Crimson Text",
	"Libre Baskerville",
	"Raleway",
	"Nunito",
	"Merriweather",
	"Oswald",
}

var AllowedEffects = []string{"none", "particles-soft", "confetti", "gradient-mesh"}

var AllowedStatusBarStyles = []string{"pill", "bar", "minimal", "none"}

var AllowedButtonShapes = []string{"pill", "rounded", "squircle", "sharp"}

var AllowedButtonOutputTypes = []string{ButtonText, ButtonMusic, ButtonImage}

// Per-dimension effect vocabularies for the richer Effects block. "none" is
// always legal and is the fallback for anything unrecognized.
var (
	AllowedButtonStyles = []string{
		"none", "gradient", "outline", "glass", "softGlow", "bordered", "minimal", "pill", "neon",
	}
	AllowedFrameBackdrops = []string{
		"none", "glow", "pulse", "softGlow", "particles", "gradientRing", "shimmer", "halo", "subtleShadow",
	}
	AllowedEntranceEffects = []string{
		"none", "confetti", "particles", "fade", "scaleIn", "subtleDrift", "blurIn", "stagger", "floatUp",
	}
	AllowedCardContainers = []string{
		"none", "glass", "softBorder", "elevated", "minimal", "gradientBorder",
	}
	AllowedTypographyTreatments = []string{
		"none", "subtleShadow", "gradientText", "letterSpacing", "allCaps", "serif", "rounded",
	}
)

var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// IsHexColor reports whether s is a #RRGGBB color. Short hex, named colors,
// and alpha channels are rejected.
func IsHexColor(s string) bool { return hexColorRe.MatchString(s) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func IsAllowedFont(s string) bool           { return contains(AllowedFonts, s) }
func IsAllowedEffect(s string) bool         { return contains(AllowedEffects, s) }
func IsAllowedStatusBarStyle(s string) bool { return contains(AllowedStatusBarStyles, s) }
func IsAllowedButtonShape(s string) bool    { return contains(AllowedButtonShapes, s) }
func IsAllowedOutputType(s string) bool     { return contains(AllowedButtonOutputTypes, s) }
