package mcp

import "testing"

func TestSanitizeToolName_Stable(t *testing.T) {
	once := SanitizeToolName("My Server!", "Do Thing")
	twice := SanitizeToolName("My Server!", once)
	if once != twice {
		t.Fatalf("sanitize not stable: %q vs %q", once, twice)
	}
}

func TestSanitizeToolName_NoCollisionAcrossServers(t *testing.T) {
	a := SanitizeToolName("alpha", "search")
	b := SanitizeToolName("beta", "search")
	if a == b {
		t.Fatalf("expected distinct names, got %q for both", a)
	}
}

func TestSanitizeToolName_OnlyLowerAlnumUnderscore(t *testing.T) {
	name := SanitizeToolName("svc-1!!", "Fetch URL??")
	for _, r := range name {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if !ok {
			t.Fatalf("name %q contains invalid rune %q", name, r)
		}
	}
}
