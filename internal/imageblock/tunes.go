package imageblock

// Built-in tune names double as persisted field keys.
const (
	TuneBorder     = "withBorder"
	TuneStretched  = "stretched"
	TuneBackground = "withBackground"
	TuneCaption    = "caption"
	TuneLink       = "link"
)

// Icon identifiers, resolved to assets by the renderer.
const (
	IconPicture    = "picture"
	IconBorder     = "add-border"
	IconStretch    = "stretch"
	IconBackground = "add-background"
	IconCaption    = "caption"
	IconLink       = "link"
)

// TriState models a tune override that may not have been touched yet.
// The zero value is TriUnset.
type TriState uint8

const (
	TriUnset TriState = iota
	TriOn
	TriOff
)

// Bool resolves the tri-state against a fallback used when it is unset.
func (t TriState) Bool(fallback bool) bool {
	switch t {
	case TriOn:
		return true
	case TriOff:
		return false
	default:
		return fallback
	}
}

func (t TriState) String() string {
	switch t {
	case TriOn:
		return "on"
	case TriOff:
		return "off"
	default:
		return "unset"
	}
}

func triFromBool(on bool) TriState {
	if on {
		return TriOn
	}
	return TriOff
}

type tune struct {
	name  string
	icon  string
	title string
}

// builtinTunes lists the settings menu entries in display order.
var builtinTunes = []tune{
	{name: TuneBorder, icon: IconBorder, title: "With border"},
	{name: TuneStretched, icon: IconStretch, title: "Stretch image"},
	{name: TuneBackground, icon: IconBackground, title: "With background"},
	{name: TuneCaption, icon: IconCaption, title: "With caption"},
	{name: TuneLink, icon: IconLink, title: "With link"},
}
