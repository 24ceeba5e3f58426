package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "sl-dev",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.Environment != "local" {
		t.Errorf("expected default environment local, got %s", cfg.Server.Environment)
	}
	if cfg.Events.ProjectID != "sl-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.Topic != defaultEventTopic {
		t.Errorf("unexpected default events topic: %s", cfg.Events.Topic)
	}
	if cfg.Pricing.DefaultCurrency != "TRY" {
		t.Errorf("expected default currency TRY, got %s", cfg.Pricing.DefaultCurrency)
	}
	if cfg.Pricing.DefaultLocale != "tr" {
		t.Errorf("expected default locale tr, got %s", cfg.Pricing.DefaultLocale)
	}
	if cfg.Shipping.ZoneSelection != "most_specific" {
		t.Errorf("expected default zone selection most_specific, got %s", cfg.Shipping.ZoneSelection)
	}
	if !cfg.Features.EnableDiscounts {
		t.Error("expected discounts flag enabled by default")
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":              "9090",
		"API_SERVER_READ_TIMEOUT":      "20s",
		"API_SERVER_WRITE_TIMEOUT":     "25s",
		"API_SERVER_IDLE_TIMEOUT":      "2m",
		"API_SERVER_ENVIRONMENT":       "PROD",
		"API_FIRESTORE_PROJECT_ID":     "sl-fire",
		"API_FIRESTORE_DATABASE_ID":    "catalog",
		"API_EVENTS_PROJECT_ID":        "sl-events",
		"API_EVENTS_TOPIC":             "catalog-events-prod",
		"API_PRICING_DEFAULT_CURRENCY": "usd",
		"API_PRICING_DEFAULT_LOCALE":   "EN",
		"API_SHIPPING_ZONE_SELECTION":  "first_match",
		"API_FEATURE_DISCOUNTS":        "false",
		"API_FEATURE_EVENTS":           "false",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Server.Environment != "prod" {
		t.Errorf("expected lowercased environment, got %s", cfg.Server.Environment)
	}
	if cfg.Firestore.DatabaseID != "catalog" {
		t.Errorf("unexpected database id %s", cfg.Firestore.DatabaseID)
	}
	if cfg.Events.ProjectID != "sl-events" {
		t.Errorf("expected events project override, got %s", cfg.Events.ProjectID)
	}
	if cfg.Pricing.DefaultCurrency != "USD" {
		t.Errorf("expected uppercased currency USD, got %s", cfg.Pricing.DefaultCurrency)
	}
	if cfg.Pricing.DefaultLocale != "en" {
		t.Errorf("expected lowercased locale en, got %s", cfg.Pricing.DefaultLocale)
	}
	if cfg.Shipping.ZoneSelection != "first_match" {
		t.Errorf("unexpected zone selection %s", cfg.Shipping.ZoneSelection)
	}
	if cfg.Features.EnableDiscounts {
		t.Error("expected discounts flag disabled")
	}
	if cfg.Features.EnableEvents {
		t.Error("expected events flag disabled")
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=sl-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "sl-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadRejectsUnknownZoneSelection(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":    "sl-dev",
		"API_SHIPPING_ZONE_SELECTION": "closest",
	}

	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error for unknown zone selection")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if fields := verr.Fields(); len(fields) != 1 || fields[0] != "Shipping.ZoneSelection" {
		t.Fatalf("unexpected invalid fields %v", fields)
	}
}
