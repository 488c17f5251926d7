package memory

import (
	"math"
	"strings"
	"testing"
)

func TestScoreImportance_Bounds(t *testing.T) {
	t.Parallel()
	cases := []string{
		"",
		"plain message",
		"REMEMBER! This is CRUCIAL and URGENT: call Alice Smith at 555-0100, see https://example.com now?!",
		strings.Repeat("word ", 500),
		"?!?!?!",
	}
	for _, msg := range cases {
		got := ScoreImportance(msg)
		if got < 0.0 || got > 1.0 {
			t.Fatalf("ScoreImportance(%q) = %f, want value in [0, 1]", msg, got)
		}
	}
	if got := ScoreImportance(""); got != 0.0 {
		t.Fatalf("ScoreImportance(empty) = %f, want 0.0", got)
	}
}

func TestScoreImportance_MonotonicContributions(t *testing.T) {
	t.Parallel()
	// Keyword + digits + question mark must reach at least their summed
	// weights: 0.2 + 0.15 + 0.15.
	got := ScoreImportance("remember 42?")
	if got < 0.5 {
		t.Fatalf("ScoreImportance() = %f, want >= 0.5", got)
	}

	base := ScoreImportance("plain sentence here")
	withURL := ScoreImportance("plain sentence here https://example.com")
	if withURL < base {
		t.Fatalf("adding a feature lowered the score: %f -> %f", base, withURL)
	}
}

func TestScoreImportance_ExactWeights(t *testing.T) {
	t.Parallel()
	// "must" keyword (0.2) + "Alice Smith" name pair (0.2) + 4 words (0.04).
	got := ScoreImportance("must call Alice Smith")
	if math.Abs(got-0.44) > 1e-9 {
		t.Fatalf("ScoreImportance() = %f, want 0.44", got)
	}
}

func TestScoreImportance_KeywordCountedOncePerMessage(t *testing.T) {
	t.Parallel()
	// One "remember" keyword hit (0.2) + 3 words (0.03), regardless of
	// how many times the keyword repeats.
	got := ScoreImportance("remember remember remember")
	if math.Abs(got-0.23) > 1e-9 {
		t.Fatalf("ScoreImportance() = %f, want 0.23", got)
	}
}

func TestScoreImportance_ClampedEmphasisScenario(t *testing.T) {
	t.Parallel()
	// urgent + remember keywords (0.4), 8 words (0.08), digits (0.15),
	// URL (0.15), acronym URGENT (0.1), "!" (0.1), "love" (0.1): the sum
	// 1.08 clamps to 1.0.
	got := ScoreImportance("I love this, it's URGENT! Remember http://x.co 42")
	if got != 1.0 {
		t.Fatalf("ScoreImportance() = %f, want clamp to 1.0", got)
	}
}

func TestScoreImportance_FeatureDetectors(t *testing.T) {
	t.Parallel()
	// Length contribution only: 2 words.
	if got := ScoreImportance("hello there"); math.Abs(got-0.02) > 1e-9 {
		t.Fatalf("expected length-only score 0.02, got %f", got)
	}
	// Acronym detector needs two or more consecutive uppercase letters.
	withAcronym := ScoreImportance("ship via HTTPS")
	withoutAcronym := ScoreImportance("ship via https")
	if math.Abs((withAcronym-withoutAcronym)-0.1) > 1e-9 {
		t.Fatalf("expected acronym to add 0.1, got %f vs %f", withAcronym, withoutAcronym)
	}
}
