package rules

import "strings"

const (
	GlyphBottle  = "\U0001F37C" // 🍼
	GlyphChili   = "\U0001F336" // 🌶
	GlyphDislike = "\U0001F44E" // 👎
)

// CountGlyph counts occurrences of glyph in text. Variation selectors after
// the glyph do not matter.
func CountGlyph(text, glyph string) int {
	if glyph == "" {
		return 0
	}
	return strings.Count(text, glyph)
}

// IsDislike reports whether a reaction emoji is the negative reaction. Any
// other emoji, including custom emoji ids, counts as a like.
func IsDislike(emoji string) bool {
	return strings.TrimSuffix(emoji, "\uFE0F") == GlyphDislike
}
