package configutil

import (
	"errors"
	"testing"
)

func TestValidateSettings(t *testing.T) {
	schema := Schema{Required: []string{"endpoint"}, Optional: []string{"api_key", "model"}}

	if err := ValidateSettings(map[string]any{"Endpoint": "http://x", "apiKey": "k"}, schema); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}

	err := ValidateSettings(map[string]any{"endpoint": "  ", "temperature": 0.2}, schema)
	var serr *SettingsError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SettingsError, got %v", err)
	}
	if len(serr.Missing) != 1 || serr.Missing[0] != "endpoint" {
		t.Fatalf("unexpected missing keys: %v", serr.Missing)
	}
	if len(serr.Unknown) != 1 || serr.Unknown[0] != "temperature" {
		t.Fatalf("unexpected unknown keys: %v", serr.Unknown)
	}
	if err.Error() != "missing: endpoint; unknown: temperature" {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	schema.AllowUnknown = true
	if err := ValidateSettings(map[string]any{"endpoint": "x", "extra": 1}, schema); err != nil {
		t.Fatalf("expected unknown keys to be allowed, got %v", err)
	}
}

func TestDecodeSettings(t *testing.T) {
	var out struct {
		APIKey    string `mapstructure:"api_key"`
		TimeoutMS int    `mapstructure:"timeout_ms"`
	}
	err := DecodeSettings(map[string]any{"API-Key": "secret", "timeoutMs": "1500"}, &out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.APIKey != "secret" || out.TimeoutMS != 1500 {
		t.Fatalf("unexpected decode result: %+v", out)
	}
	if err := RequireString(" ", "vendors.llm.settings.endpoint"); err == nil {
		t.Fatalf("expected blank value to be rejected")
	}
}
