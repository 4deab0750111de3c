package mraid

// Version is the protocol version the bridge reports to creatives.
const Version = "3.0"

// State is the creative's position in the lifecycle state machine.
type State string

const (
	StateLoading  State = "loading"
	StateDefault  State = "default"
	StateExpanded State = "expanded"
	// StateResized is accepted by the API surface but no transition enters
	// it: resize() emits an intent and leaves the state alone. Preserved as a
	// known gap, not a bug.
	StateResized State = "resized"
	// StateHidden is terminal and only reached through a load error.
	StateHidden State = "hidden"
)

// Placement describes where the creative renders.
type Placement string

const (
	PlacementInline       Placement = "inline"
	PlacementInterstitial Placement = "interstitial"
)

// ParsePlacement maps a string to a known placement, defaulting to inline.
func ParsePlacement(s string) Placement {
	if Placement(s) == PlacementInterstitial {
		return PlacementInterstitial
	}
	return PlacementInline
}

// Size is a width/height pair in CSS pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position is a rectangle anchored at the surface origin.
type Position struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// features is the fixed capability table returned by supports(). Unknown
// feature names report false.
var features = map[string]bool{
	"sms":          false,
	"tel":          false,
	"calendar":     true,
	"storePicture": true,
	"inlineVideo":  true,
	"vpaid":        false,
	"location":     false,
}

// Supports reports whether the emulated container claims a feature.
func Supports(feature string) bool {
	return features[feature]
}
