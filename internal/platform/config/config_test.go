package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "pb-dev",
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
	if cfg.PubSub.ProjectID != "pb-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.Topic != defaultOrdersTopic {
		t.Errorf("expected default topic, got %s", cfg.PubSub.Topic)
	}
	if cfg.Carriers.Timeout != defaultCarrierTimeout {
		t.Errorf("unexpected default carrier timeout: %s", cfg.Carriers.Timeout)
	}
	if len(cfg.Carriers.BaseURLs) != 0 {
		t.Errorf("expected no carrier base urls, got %v", cfg.Carriers.BaseURLs)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":           "9090",
		"API_SERVER_READ_TIMEOUT":   "20s",
		"API_FIRESTORE_PROJECT_ID":  "pb-prod",
		"API_PUBSUB_PROJECT_ID":     "pb-events",
		"API_PUBSUB_ORDERS_TOPIC":   "orders-prod",
		"API_STRIPE_API_KEY":        "sk_live_123",
		"API_STRIPE_WEBHOOK_SECRET": "whsec_456",
		"API_CARRIER_BASE_URLS":     "correios=https://tracking.example.com/correios, jadlog=https://tracking.example.com/jadlog",
		"API_CARRIER_TIMEOUT":       "5s",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("expected read timeout override, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "pb-events" {
		t.Errorf("expected pubsub project override, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Stripe.APIKey != "sk_live_123" {
		t.Errorf("unexpected stripe key: %s", cfg.Stripe.APIKey)
	}
	if cfg.Carriers.Timeout != 5*time.Second {
		t.Errorf("expected carrier timeout override, got %s", cfg.Carriers.Timeout)
	}
	if got := cfg.Carriers.BaseURLs["jadlog"]; got != "https://tracking.example.com/jadlog" {
		t.Errorf("unexpected jadlog base url: %s", got)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := validation.Fields()
	if len(fields) == 0 || fields[0] != "Firestore.ProjectID" {
		t.Fatalf("expected Firestore.ProjectID missing, got %v", fields)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport API_FIRESTORE_PROJECT_ID=pb-local\nAPI_SERVER_PORT=\"7070\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithEnvFile(path), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firestore.ProjectID != "pb-local" {
		t.Errorf("expected dotenv project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected dotenv port with quotes stripped, got %s", cfg.Server.Port)
	}
}
