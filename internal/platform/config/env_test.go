package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Addr string `env:"APURA_TEST_ADDR" envDefault:":8092"`
	TTL  int    `env:"APURA_TEST_TTL" envDefault:"600"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":8092" {
		t.Fatalf("expected default addr :8092, got %q", cfg.Addr)
	}
	if cfg.TTL != 600 {
		t.Fatalf("expected default ttl 600, got %d", cfg.TTL)
	}
}

func TestParseEnvOverride(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("APURA_TEST_ADDR", ":9000")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("expected addr :9000, got %q", cfg.Addr)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("APURA_TEST_TTL", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
