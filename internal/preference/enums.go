package preference

import "github.com/tartampluch/go-lifegrid/internal/config"

// GridLayout selects how the week grid is arranged.
type GridLayout string

const (
	LayoutStandard  GridLayout = "standard"
	LayoutCompact   GridLayout = "compact"
	LayoutQuarterly GridLayout = "quarterly"
)

// ParseGridLayout maps unknown values to LayoutStandard.
func ParseGridLayout(s string) GridLayout {
	switch l := GridLayout(s); l {
	case LayoutStandard, LayoutCompact, LayoutQuarterly:
		return l
	default:
		return LayoutStandard
	}
}

// PastWeekStyle selects the decoration of lived weeks.
type PastWeekStyle string

const (
	PastNone   PastWeekStyle = "none"
	PastHatch  PastWeekStyle = "hatch"
	PastCorner PastWeekStyle = "corner"
)

// ParsePastWeekStyle maps unknown values to PastHatch.
func ParsePastWeekStyle(s string) PastWeekStyle {
	switch p := PastWeekStyle(s); p {
	case PastNone, PastHatch, PastCorner:
		return p
	default:
		return PastHatch
	}
}

// ThemePreset names one of the colour themes.
type ThemePreset string

const (
	PresetEmerald ThemePreset = "emerald"
	PresetOcean   ThemePreset = "ocean"
	PresetSunset  ThemePreset = "sunset"
	PresetPurple  ThemePreset = "purple"
)

type presetStyle struct {
	gradient string
	accent   string
}

var presets = map[ThemePreset]presetStyle{
	PresetEmerald: {gradient: "from-emerald-500 to-teal-600", accent: "green"},
	PresetOcean:   {gradient: "from-blue-500 to-cyan-600", accent: "blue"},
	PresetSunset:  {gradient: "from-orange-500 to-red-600", accent: "orange"},
	PresetPurple:  {gradient: "from-purple-500 to-violet-600", accent: "purple"},
}

// Presets lists every preset in display order.
func Presets() []ThemePreset {
	return []ThemePreset{PresetEmerald, PresetOcean, PresetSunset, PresetPurple}
}

// ParseThemePreset maps unknown values to PresetEmerald.
func ParseThemePreset(s string) ThemePreset {
	if _, ok := presets[ThemePreset(s)]; ok {
		return ThemePreset(s)
	}
	return PresetEmerald
}

// Gradient returns the gradient design token of the preset.
func (p ThemePreset) Gradient() string {
	return presets[ParseThemePreset(string(p))].gradient
}

// Accent returns the accent colour name of the preset.
func (p ThemePreset) Accent() string {
	return presets[ParseThemePreset(string(p))].accent
}

// Translator resolves message ids. Missing ids report ok=false.
type Translator interface {
	Lookup(id string) (string, bool)
}

// Label returns the localized preset name, or the raw key when untranslated.
func (p ThemePreset) Label(tr Translator) string {
	if tr != nil {
		if s, ok := tr.Lookup(config.TKeyPresetPrefix + string(p)); ok {
			return s
		}
	}
	return string(p)
}
