package annotation

import (
	"maps"

	"github.com/tartampluch/go-lifegrid/internal/config"
)

// MoodCategory describes a paintable category.
// Color is a design token such as "bg-green-400"; Icon is an optional symbol name.
type MoodCategory struct {
	Color string  `json:"color"`
	Label string  `json:"label"`
	Icon  *string `json:"icon,omitempty"`
}

func (c MoodCategory) clone() MoodCategory {
	c.Icon = cloneString(c.Icon)
	return c
}

func (c MoodCategory) equal(o MoodCategory) bool {
	return c.Color == o.Color && c.Label == o.Label && equalString(c.Icon, o.Icon)
}

// Translator resolves message ids. Missing ids report ok=false.
type Translator interface {
	Lookup(id string) (string, bool)
}

func builtin(color, label, icon string) MoodCategory {
	return MoodCategory{Color: color, Label: label, Icon: &icon}
}

// builtins is the shipped catalog. It is never mutated; callers get copies.
var builtins = map[string]MoodCategory{
	// Emotional states
	"happy":     builtin("bg-green-400", "Happy", "smile"),
	"sad":       builtin("bg-blue-400", "Sad", "frown"),
	"love":      builtin("bg-pink-400", "Love", "heart"),
	"energetic": builtin("bg-yellow-400", "Energetic", "bolt"),
	"difficult": builtin("bg-red-400", "Difficult", "cloud.rain"),

	// Life experiences
	"growth":   builtin("bg-purple-500", "Growth", "tree"),
	"creative": builtin("bg-orange-500", "Creative", "lightbulb"),
	"peaceful": builtin("bg-teal-400", "Peaceful", "leaf"),

	"inlove":   builtin("bg-pink-500", "In Love", "heart.fill"),
	"focused":  builtin("bg-blue-500", "Focused", "target"),
	"grateful": builtin("bg-orange-500", "Grateful", "wind"),

	"excited": builtin("bg-orange-400", "Excited", "sun.max"),
	"calm":    builtin("bg-blue-300", "Calm", "moon"),
	"neutral": builtin("bg-gray-400", "Neutral", "circle"),
	"social":  builtin("bg-purple-400", "Social", "person.2"),
}

// BuiltinCategories returns a copy of the shipped catalog.
func BuiltinCategories() map[string]MoodCategory {
	return cloneCategories(builtins)
}

// IsBuiltin reports whether key names a shipped category.
func IsBuiltin(key string) bool {
	_, ok := builtins[key]
	return ok
}

// mergeCategories overlays custom on base; custom wins on key collision.
func mergeCategories(base, custom map[string]MoodCategory) map[string]MoodCategory {
	out := cloneCategories(base)
	for k, c := range custom {
		out[k] = c.clone()
	}
	return out
}

// localize replaces the labels of built-in entries with their translation.
// Custom entries keep the label the user typed.
func localize(cats, custom map[string]MoodCategory, tr Translator) map[string]MoodCategory {
	out := make(map[string]MoodCategory, len(cats))
	for k, c := range cats {
		if _, isCustom := custom[k]; !isCustom && tr != nil {
			if label, ok := tr.Lookup(config.TKeyCategoryPrefix + k); ok {
				c.Label = label
			}
		}
		out[k] = c
	}
	return out
}

func cloneCategories(in map[string]MoodCategory) map[string]MoodCategory {
	out := make(map[string]MoodCategory, len(in))
	for k, c := range in {
		out[k] = c.clone()
	}
	return out
}

func equalCategories(a, b map[string]MoodCategory) bool {
	return maps.EqualFunc(a, b, MoodCategory.equal)
}
