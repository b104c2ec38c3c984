package moderation

import (
	"regexp"
	"strings"
)

// FastVerdict is the outcome of the zero-I/O heuristic filter.
type FastVerdict int

const (
	FastInconclusive FastVerdict = iota
	FastSafe
	FastHarmful
)

const safeWordLimit = 50

var harmfulPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(fuck|shit|bitch|asshole|faggot|nigger|kill yourself)\b`),
	regexp.MustCompile(`(?i)\b(earn \d+\$|make money fast|click here|buy now|bitcoin|crypto scam)\b`),
}

var safePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(peace|mindful|meditation|breathe|calm|gratitude|love|joy|happiness)\b`),
	regexp.MustCompile(`(?i)\b(good morning|have a great day|stay positive|keep going)\b`),
}

// ClassifyFast runs the heuristic filter. Harmful patterns are checked before
// safe ones so a positive-sounding message containing a slur is still rejected.
// The safe path only applies to short, media-free text; hasMedia is supplied by
// the caller because an attached image or video always needs a deeper look.
func ClassifyFast(text string, hasMedia bool) FastVerdict {
	for _, p := range harmfulPatterns {
		if p.MatchString(text) {
			return FastHarmful
		}
	}

	if hasMedia {
		return FastInconclusive
	}
	if len(strings.Fields(text)) >= safeWordLimit {
		return FastInconclusive
	}
	for _, p := range safePatterns {
		if p.MatchString(text) {
			return FastSafe
		}
	}

	return FastInconclusive
}
