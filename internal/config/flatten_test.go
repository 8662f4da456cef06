package config

import (
	"testing"
)

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"backend": map[string]any{
			"base_url": "http://localhost:5000",
			"api_key":  "key-123",
		},
		"log_level": "info",
	}
	got := Flatten(m)
	if got["backend.base_url"] != "http://localhost:5000" {
		t.Errorf("expected backend.base_url, got %v", got["backend.base_url"])
	}
	if got["backend.api_key"] != "key-123" {
		t.Errorf("expected backend.api_key=key-123, got %v", got["backend.api_key"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
	if len(got) != 3 {
		t.Errorf("expected 3 keys, got %d", len(got))
	}
}

func TestFlatten_EmptyNestedMap(t *testing.T) {
	got := Flatten(map[string]any{"storage": map[string]any{}})
	if len(got) != 0 {
		t.Errorf("expected 0 keys (empty nested map produces nothing), got %d", len(got))
	}
}

func TestUnflatten_Nested(t *testing.T) {
	got := Unflatten(map[string]any{
		"storage.driver": "sqlite",
		"storage.key":    "chats_v1",
		"data_dir":       "/tmp",
	})
	storage, ok := got["storage"].(map[string]any)
	if !ok {
		t.Fatalf("expected storage to be map, got %T", got["storage"])
	}
	if storage["driver"] != "sqlite" || storage["key"] != "chats_v1" {
		t.Errorf("unexpected storage map %v", storage)
	}
	if got["data_dir"] != "/tmp" {
		t.Errorf("expected data_dir=/tmp, got %v", got["data_dir"])
	}
}

func TestUnflatten_OverwritesScalarWithMap(t *testing.T) {
	got := Unflatten(map[string]any{"a.b.c": "deep"})
	a := got["a"].(map[string]any)
	b := a["b"].(map[string]any)
	if b["c"] != "deep" {
		t.Errorf("expected a.b.c=deep, got %v", b["c"])
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir": "/home/test/.docchat",
		"backend": map[string]any{
			"base_url":        "http://127.0.0.1:5000",
			"timeout_seconds": 60.0,
		},
		"telegram": map[string]any{
			"token": "bot-token-abc",
		},
	}

	restored := Unflatten(Flatten(original))

	if restored["data_dir"] != original["data_dir"] {
		t.Errorf("data_dir mismatch: %v != %v", restored["data_dir"], original["data_dir"])
	}
	b := restored["backend"].(map[string]any)
	if b["base_url"] != "http://127.0.0.1:5000" || b["timeout_seconds"] != 60.0 {
		t.Errorf("backend mismatch: %v", b)
	}
	tg := restored["telegram"].(map[string]any)
	if tg["token"] != "bot-token-abc" {
		t.Errorf("telegram.token mismatch: %v", tg["token"])
	}
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"backend.base_url": "http://127.0.0.1:5000",
		"backend.api_key":  "sk-test123456",
		"telegram.token":   "123456:ABCdefGHIjkl",
		"log_level":        "info",
	}
	got := MaskSecrets(flat)

	if got["backend.base_url"] != "http://127.0.0.1:5000" {
		t.Errorf("expected base_url unchanged, got %v", got["backend.base_url"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
	if got["backend.api_key"] != "***3456" {
		t.Errorf("expected backend.api_key=***3456, got %v", got["backend.api_key"])
	}
	if got["telegram.token"] != "***Ijkl" {
		t.Errorf("expected telegram.token=***Ijkl, got %v", got["telegram.token"])
	}
}

func TestMaskSecrets_ShortAndEmpty(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"ab", "***ab"},
		{"abcd", "***abcd"},
	}
	for _, tt := range tests {
		got := MaskSecrets(map[string]any{"backend.api_key": tt.in})
		if got["backend.api_key"] != tt.want {
			t.Errorf("mask(%q) = %v, want %q", tt.in, got["backend.api_key"], tt.want)
		}
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("backend.api_key") || !IsSecretKey("telegram.token") {
		t.Error("expected api key and token to be secret")
	}
	if IsSecretKey("backend.base_url") {
		t.Error("base_url is not secret")
	}
}
