package store

import (
	"math"
	"testing"
)

func TestVectorCodec_RoundTrip(t *testing.T) {
	t.Parallel()
	in := []float32{0.25, -1.5, 3.75, 0}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("expected %d values, got %d", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("value %d changed: %f != %f", i, in[i], out[i])
		}
	}
}

func TestVectorCodec_EmptyAndMalformed(t *testing.T) {
	t.Parallel()
	if got := encodeVector(nil); len(got) != 0 {
		t.Fatalf("expected empty blob for nil vector, got %d bytes", len(got))
	}
	if got := decodeVector([]byte{}); got != nil {
		t.Fatalf("expected nil vector for empty blob, got %v", got)
	}
	if got := decodeVector([]byte{1, 2, 3}); got != nil {
		t.Fatalf("expected nil vector for truncated blob, got %v", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()
	a := []float32{1, 0, 0}
	if got := cosineSimilarity(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("self similarity = %f, want 1.0", got)
	}
	if got := cosineSimilarity(a, []float32{0, 1, 0}); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal similarity = %f, want 0", got)
	}
	if got := cosineSimilarity(a, []float32{-1, 0, 0}); math.Abs(got+1.0) > 1e-9 {
		t.Fatalf("opposite similarity = %f, want -1.0", got)
	}
	if got := cosineSimilarity(nil, a); got != 0 {
		t.Fatalf("empty query similarity = %f, want 0", got)
	}
	if got := cosineSimilarity(a, []float32{1, 0}); got != 0 {
		t.Fatalf("mismatched length similarity = %f, want 0", got)
	}
}
