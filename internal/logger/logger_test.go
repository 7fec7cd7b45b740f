package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVs(t *testing.T) {
	got := sanitizeKVs([]interface{}{
		"user_id", "user_2abc",
		"razorpay_signature", "deadbeef",
		"user_email", "a@b.com",
		"plan", "Pro",
		"dangling",
	})

	if len(got) != 9 {
		t.Fatalf("expected 9 entries, got %d: %v", len(got), got)
	}
	if s, _ := got[1].(string); !strings.HasPrefix(s, "hash:") || strings.Contains(s, "user_2abc") {
		t.Errorf("expected hashed user id, got %v", got[1])
	}
	if got[3] != "[REDACTED]" {
		t.Errorf("expected signature to be redacted, got %v", got[3])
	}
	if got[5] != "[REDACTED]" {
		t.Errorf("expected email to be redacted, got %v", got[5])
	}
	if got[7] != "Pro" {
		t.Errorf("expected plan to pass through, got %v", got[7])
	}
	if got[8] != "dangling" {
		t.Errorf("expected trailing key to be kept, got %v", got[8])
	}
}

func TestHashValue_Stable(t *testing.T) {
	if hashValue("u1") != hashValue("u1") {
		t.Fatalf("hash must be deterministic")
	}
	if hashValue("") != "" {
		t.Fatalf("empty value should hash to empty string")
	}
}
