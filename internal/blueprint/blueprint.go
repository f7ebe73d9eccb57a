package blueprint

// Button output kinds. At most one music and one image button per blueprint;
// everything else is text.
const (
	ButtonText  = "text"
	ButtonMusic = "music"
	ButtonImage = "image"
)

// ButtonSlot is one action button on the card.
type ButtonSlot struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
	// SenderLogic carries free-text sender constraints for the task
	// envelope (e.g. "only electronic music").
	SenderLogic string `json:"senderLogic,omitempty"`
}

// Effects is the richer per-dimension styling block produced by the
// conversational path. Each dimension is an allowlisted value or "none";
// anything missing or unknown normalizes to "none", never to a guess.
type Effects struct {
	ButtonStyle         string `json:"buttonStyle"`
	FrameBackdrop       string `json:"frameBackdrop"`
	EntranceEffect      string `json:"entranceEffect"`
	CardContainer       string `json:"cardContainer"`
	TypographyTreatment string `json:"typographyTreatment"`
}

// Blueprint is the structured design contract consumed by the Engineer.
// Immutable once handed to a generation; Iterator edits produce a new value.
type Blueprint struct {
	Heading      string       `json:"heading"`
	Description  string       `json:"description"`
	StatusBar    string       `json:"statusBar"`
	CentralImage string       `json:"centralImage"`
	Buttons      []ButtonSlot `json:"buttons"`

	PrimaryBackground   string `json:"primaryBackground"`
	SecondaryBackground string `json:"secondaryBackground"`
	TextColor           string `json:"textColor"`
	Accent              string `json:"accent"`

	ThemeName      string `json:"themeName"`
	FontHeading    string `json:"fontHeading"`
	FontBody       string `json:"fontBody"`
	Effect         string `json:"effect"`
	StatusBarStyle string `json:"statusBarStyle"`
	ButtonShape    string `json:"buttonShape"`

	// RuntimeInstructions maps a button type to its "Will": the system
	// instruction used when the receiver presses that button. Set once by
	// the sender side; receiver input must never be able to override it.
	RuntimeInstructions map[string]string `json:"runtimeInstructions,omitempty"`

	Effects *Effects `json:"effects,omitempty"`
}

// Will returns the immutable runtime instruction for a button type, or the
// given fallback when the sender never set one.
func (b *Blueprint) Will(buttonType, fallback string) string {
	if b == nil || b.RuntimeInstructions == nil {
		return fallback
	}
	if w, ok := b.RuntimeInstructions[buttonType]; ok && w != "" {
		return w
	}
	return fallback
}

// Free-text length caps applied during normalization.
const (
	maxHeadingLen     = 80
	maxDescriptionLen = 200
	maxStatusBarLen   = 80
	maxCentralImage   = 200
	maxButtonLabelLen = 40
	MaxButtons        = 4
)
