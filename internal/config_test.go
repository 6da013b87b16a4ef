package internal

import (
	"strings"
	"testing"
	"time"

	"github.com/halvard/muninn/internal/models"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Source.Owner == "" || cfg.Source.Repo == "" {
		t.Error("default config should point at a source repository")
	}
	if got := cfg.App.HTTP.Address(); got != ":8080" {
		t.Errorf("Address() = %q, want %q", got, ":8080")
	}
}

func TestSourceConfig_MissingOwner(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Source.Owner = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty source owner should fail validation")
	}
}

func TestSourceConfig_FetchSource(t *testing.T) {
	cfg := SourceConfig{
		Owner:    "halvard",
		Repo:     "governance-docs",
		Branch:   "main",
		APIBase:  "https://api.github.com",
		RawBase:  "https://raw.githubusercontent.com",
		HTMLBase: "https://github.com",
	}
	src := cfg.FetchSource()
	want := "https://api.github.com/repos/halvard/governance-docs/contents/risks?ref=main"
	if got := src.ContentsURL("risks"); got != want {
		t.Errorf("ContentsURL = %q, want %q", got, want)
	}
}

func TestDirsConfig_Overrides(t *testing.T) {
	dirs := DirsConfig{Risks: "content/risks"}
	got := dirs.Overrides()
	if len(got) != 1 {
		t.Fatalf("Overrides() len = %d, want 1", len(got))
	}
	if got[models.CategoryRisk] != "content/risks" {
		t.Errorf("risk override = %q, want %q", got[models.CategoryRisk], "content/risks")
	}
}

func TestFetchConfig_NegativeTimeout(t *testing.T) {
	cfg := FetchConfig{TimeoutSeconds: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative timeout should fail validation")
	}
}

func TestFetchConfig_ZeroValuesAllowed(t *testing.T) {
	// Zeros defer to the fetch package defaults.
	cfg := FetchConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero fetch config should pass: %v", err)
	}
}

func TestFetchConfig_ClientConfig(t *testing.T) {
	cfg := FetchConfig{TimeoutSeconds: 30, MaxAttempts: 3, BackoffBaseMS: 500, BackoffFactor: 2}
	cc := cfg.ClientConfig("secret")
	if cc.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want %v", cc.Timeout, 30*time.Second)
	}
	if cc.BackoffBase != 500*time.Millisecond {
		t.Errorf("BackoffBase = %v, want %v", cc.BackoffBase, 500*time.Millisecond)
	}
	if cc.Token != "secret" {
		t.Errorf("Token = %q, want %q", cc.Token, "secret")
	}
}

func TestCacheConfig_RequiresPositiveTTL(t *testing.T) {
	cfg := CacheConfig{TTLSeconds: 0, MaxEntries: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero TTL should fail validation")
	}
	cfg = CacheConfig{TTLSeconds: 900, MaxEntries: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero max entries should fail validation")
	}
}

func TestSeedConfig_WatchRequiresPath(t *testing.T) {
	cfg := SeedConfig{Watch: true}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("watch without path should fail validation")
	}
	if !strings.Contains(err.Error(), "path is empty") {
		t.Errorf("unexpected error: %v", err)
	}
	cfg = SeedConfig{Watch: true, Path: "seed.yaml"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("watch with path should pass: %v", err)
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
