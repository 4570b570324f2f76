package main

import (
	"testing"

	"github.com/spf13/viper"

	"govsure/internal/config"
)

func TestResolveTokenPrecedence(t *testing.T) {
	cfg := config.Default()
	cfg.API.Token = "inline-token"

	viper.Set("token", "flag-token")
	t.Cleanup(func() { viper.Set("token", "") })
	t.Setenv("GOVSURE_ACCESS_TOKEN", "env-token")

	if got := resolveToken(cfg); got != "flag-token" {
		t.Fatalf("flag token should win, got %q", got)
	}

	viper.Set("token", "")
	if got := resolveToken(cfg); got != "env-token" {
		t.Fatalf("env token should beat the inline token, got %q", got)
	}

	t.Setenv("GOVSURE_ACCESS_TOKEN", "")
	if got := resolveToken(cfg); got != "inline-token" {
		t.Fatalf("inline token expected, got %q", got)
	}

	cfg.API.Token = ""
	if got := resolveToken(cfg); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}
