package security

import (
	"strings"
	"testing"
)

func TestHashCode_Deterministic(t *testing.T) {
	a := HashCode("483920")
	b := HashCode("483920")
	if a != b {
		t.Errorf("HashCode not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("HashCode length = %d, want 64 hex chars", len(a))
	}
	if strings.Contains(a, "483920") {
		t.Errorf("HashCode output contains the raw code")
	}
}

func TestCodeHashEqual(t *testing.T) {
	stored := HashCode("112233")

	if !CodeHashEqual("112233", stored) {
		t.Errorf("CodeHashEqual = false for matching code")
	}
	if CodeHashEqual("112234", stored) {
		t.Errorf("CodeHashEqual = true for wrong code")
	}
	if CodeHashEqual("", stored) {
		t.Errorf("CodeHashEqual = true for empty code")
	}
	if CodeHashEqual("112233", "") {
		t.Errorf("CodeHashEqual = true for empty stored hash")
	}
}
