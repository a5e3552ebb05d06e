package intent

import (
	"errors"
	"testing"
)

func TestValidateAcceptsWellFormed(t *testing.T) {
	got, err := Validate(map[string]any{
		"kind":            "web-search",
		"normalizedInput": "butterflies",
		"spokenReply":     "Here are search results for butterflies",
	})
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	want := Intent{Kind: KindWebSearch, NormalizedInput: "butterflies", SpokenReply: "Here are search results for butterflies"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	cases := []struct {
		name      string
		candidate any
		field     string
	}{
		{"not an object", []any{"general"}, ""},
		{"string candidate", "general", ""},
		{"nil candidate", nil, ""},
		{"missing kind", map[string]any{"normalizedInput": "x", "spokenReply": "y"}, FieldKind},
		{"missing input", map[string]any{"kind": "general", "spokenReply": "y"}, FieldNormalizedInput},
		{"missing reply", map[string]any{"kind": "general", "normalizedInput": "x"}, FieldSpokenReply},
		{"empty reply", map[string]any{"kind": "general", "normalizedInput": "x", "spokenReply": "  "}, FieldSpokenReply},
		{"numeric input", map[string]any{"kind": "general", "normalizedInput": 4.0, "spokenReply": "y"}, FieldNormalizedInput},
		{"unknown kind", map[string]any{"kind": "google-search", "normalizedInput": "x", "spokenReply": "y"}, FieldKind},
		{"kind case differs", map[string]any{"kind": "General", "normalizedInput": "x", "spokenReply": "y"}, FieldKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.candidate)
			var se *ShapeError
			if !errors.As(err, &se) {
				t.Fatalf("expected ShapeError, got %v", err)
			}
			if se.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, se.Field)
			}
		})
	}
}

func TestFallbackShape(t *testing.T) {
	fb := Fallback("open the pod bay doors")
	if fb.Kind != KindGeneral {
		t.Fatalf("expected general kind, got %s", fb.Kind)
	}
	if fb.NormalizedInput != "open the pod bay doors" {
		t.Fatalf("expected original utterance, got %q", fb.NormalizedInput)
	}
	if fb.SpokenReply != FallbackReply {
		t.Fatalf("unexpected reply %q", fb.SpokenReply)
	}
	if !fb.IsFallback() {
		t.Fatalf("expected IsFallback true")
	}
	if err := Check(fb); err != nil {
		t.Fatalf("fallback must itself be valid: %v", err)
	}
}

func TestKindsAreClosed(t *testing.T) {
	if len(Kinds()) != 11 {
		t.Fatalf("expected 11 kinds, got %d", len(Kinds()))
	}
	for _, k := range Kinds() {
		if !k.Valid() {
			t.Fatalf("kind %s should be valid", k)
		}
	}
	if Kind("youtube-open").Valid() {
		t.Fatalf("legacy tag must not be valid")
	}
}

func TestSite(t *testing.T) {
	cases := map[string]string{
		"youtube.com":                 "youtube",
		"https://www.instagram.com/x": "instagram",
		"Facebook.com":                "facebook",
	}
	for in, want := range cases {
		got := Intent{Kind: KindSiteOpen, NormalizedInput: in, SpokenReply: "ok"}.Site()
		if got != want {
			t.Fatalf("site(%q): expected %q, got %q", in, want, got)
		}
	}
	if got := (Intent{Kind: KindGeneral, NormalizedInput: "youtube.com"}).Site(); got != "" {
		t.Fatalf("expected empty site for non site-open intent, got %q", got)
	}
}
