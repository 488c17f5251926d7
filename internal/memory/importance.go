package memory

import (
	"math"
	"regexp"
	"strings"
)

// salienceKeywords each add 0.2 when present anywhere in the message,
// counted once per keyword regardless of how often it occurs. Matching is
// case-insensitive substring containment, so "key" also fires inside
// "keyword"; this mirrors the reference scoring and stays monotonic.
var salienceKeywords = []string{
	"remember", "important", "crucial", "key", "vital",
	"essential", "never forget", "always", "must", "note",
	"critical", "significant", "priority", "urgent",
}

// emotionWords each add 0.1, counted once per word.
var emotionWords = []string{
	"love", "hate", "angry", "happy", "sad", "excited", "worried", "concerned",
}

var (
	digitsExpr     = regexp.MustCompile(`\d+`)
	properNameExpr = regexp.MustCompile(`[A-Z][a-z]+ [A-Z][a-z]+`)
	urlExpr        = regexp.MustCompile(`https?://\S+`)
	acronymExpr    = regexp.MustCompile(`\b[A-Z]{2,}\b`)
)

// ScoreImportance computes the heuristic salience of a message as a value in
// [0.0, 1.0]. The function is a deterministic sum of independent feature
// contributions, clamped at 1.0; adding a triggering feature never lowers
// the score.
func ScoreImportance(message string) float64 {
	var score float64
	lower := strings.ToLower(message)

	for _, kw := range salienceKeywords {
		if strings.Contains(lower, kw) {
			score += 0.2
		}
	}

	score += math.Min(float64(len(strings.Fields(message)))/100, 0.3)

	if digitsExpr.MatchString(message) {
		score += 0.15
	}
	if properNameExpr.MatchString(message) {
		score += 0.2
	}
	if urlExpr.MatchString(message) {
		score += 0.15
	}
	if acronymExpr.MatchString(message) {
		score += 0.1
	}
	if strings.Contains(message, "?") {
		score += 0.15
	}
	if strings.Contains(message, "!") {
		score += 0.1
	}

	for _, w := range emotionWords {
		if strings.Contains(lower, w) {
			score += 0.1
		}
	}

	return math.Min(score, 1.0)
}
