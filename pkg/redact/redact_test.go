package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	got := Text(in)
	if got == in {
		t.Fatalf("expected redaction")
	}
	if want := "[REDACTED_EMAIL]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
	if want := "[REDACTED_PHONE]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
}

func TestClip(t *testing.T) {
	SetEnabled(false)
	if got := Clip("hello world", 5); got != "hello…" {
		t.Fatalf("unexpected clip %q", got)
	}
	if got := Clip("short", 0); got != "short" {
		t.Fatalf("expected unbounded clip, got %q", got)
	}
}

func TestURLMasksKey(t *testing.T) {
	got := URL("https://generativelanguage.googleapis.com/v1beta/models/gemini:generateContent?key=secret123")
	if strings.Contains(got, "secret123") {
		t.Fatalf("key leaked: %s", got)
	}
	if !strings.Contains(got, "key=REDACTED") {
		t.Fatalf("expected masked key, got %s", got)
	}
	plain := "http://localhost:8080/generate"
	if got := URL(plain); got != plain {
		t.Fatalf("expected untouched url, got %s", got)
	}
}
