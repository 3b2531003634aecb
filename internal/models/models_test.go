package models

import (
	"errors"
	"testing"
)

// TestPhaseEncodingVectors verifies the mapping from each canonical code to
// its signed unit vector is total and exact.
func TestPhaseEncodingVectors(t *testing.T) {
	cases := []struct {
		code string
		want [3]int
	}{
		{"i", [3]int{1, 0, 0}},
		{"i-", [3]int{-1, 0, 0}},
		{"j", [3]int{0, 1, 0}},
		{"j-", [3]int{0, -1, 0}},
		{"k", [3]int{0, 0, 1}},
		{"k-", [3]int{0, 0, -1}},
	}

	for _, c := range cases {
		pe, err := ParsePhaseEncoding(c.code)
		if err != nil {
			t.Fatalf("ParsePhaseEncoding(%q) returned error: %v", c.code, err)
		}

		got := pe.Vector()
		if got != c.want {
			t.Errorf("Vector(%q) = %v, want %v", c.code, got, c.want)
		}
	}
}

// TestPhaseEncodingRejectsUnknownCodes verifies that anything outside the six
// canonical codes is a validation failure.
func TestPhaseEncodingRejectsUnknownCodes(t *testing.T) {
	for _, code := range []string{"", "x", "ij", "i+", "-i", "J", "k--"} {
		_, err := ParsePhaseEncoding(code)
		if err == nil {
			t.Errorf("ParsePhaseEncoding(%q) succeeded, want validation error", code)
			continue
		}

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("ParsePhaseEncoding(%q) returned %T, want *ValidationError", code, err)
		}
	}
}
