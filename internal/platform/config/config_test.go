package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "dido-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "dido-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.OrderEventsTopic != defaultOrderTopic {
		t.Errorf("expected default order events topic, got %s", cfg.PubSub.OrderEventsTopic)
	}
	if cfg.SiteName != defaultSiteName {
		t.Errorf("expected default site name, got %s", cfg.SiteName)
	}
	if !cfg.Gateway.Enabled {
		t.Errorf("expected gateway enabled by default")
	}
	if cfg.Gateway.Title != defaultGatewayTitle {
		t.Errorf("unexpected default gateway title: %s", cfg.Gateway.Title)
	}
	if cfg.Gateway.Description != defaultGatewayDesc {
		t.Errorf("unexpected default gateway description: %s", cfg.Gateway.Description)
	}
	if cfg.Gateway.ThankYouMode != RedirectModeLink {
		t.Errorf("unexpected default thank-you mode: %s", cfg.Gateway.ThankYouMode)
	}
	if cfg.Gateway.WebEndpoint != defaultWebEndpoint {
		t.Errorf("unexpected default web endpoint: %s", cfg.Gateway.WebEndpoint)
	}
	if len(cfg.Gateway.EnableForMethods) != 0 {
		t.Errorf("expected no method restriction, got %v", cfg.Gateway.EnableForMethods)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                 "9090",
		"API_SERVER_READ_TIMEOUT":         "20s",
		"API_SERVER_WRITE_TIMEOUT":        "25s",
		"API_SERVER_IDLE_TIMEOUT":         "2m",
		"API_FIRESTORE_PROJECT_ID":        "dido-fire",
		"API_PUBSUB_PROJECT_ID":           "dido-pub",
		"API_PUBSUB_ORDER_EVENTS_TOPIC":   "orders-prod",
		"API_SITE_NAME":                   "Dido Store",
		"API_GATEWAY_WHATSAPP_NUMBER":     "5511999998888",
		"API_GATEWAY_TITLE":               "Pedir por WhatsApp",
		"API_GATEWAY_THANK_YOU_MODE":      "auto_redirect_to_whatsapp",
		"API_GATEWAY_REDIRECT_MODE":       "new_tab",
		"API_GATEWAY_ENABLE_FOR_VIRTUAL":  "false",
		"API_GATEWAY_ENABLE_FOR_METHODS":  "flat_rate:3, local_pickup:7",
		"API_GATEWAY_EXCLUSIVE_CHECKOUT":  "true",
		"API_GATEWAY_SEND_PAYMENT_LINK":   "yes",
		"API_GATEWAY_SEND_ORDER_META":     "1",
		"API_GATEWAY_IGNORED_META_FIELDS": "internal_ref, sync_token",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.PubSub.ProjectID != "dido-pub" {
		t.Errorf("unexpected pubsub project: %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.OrderEventsTopic != "orders-prod" {
		t.Errorf("unexpected topic: %s", cfg.PubSub.OrderEventsTopic)
	}
	if cfg.SiteName != "Dido Store" {
		t.Errorf("unexpected site name: %s", cfg.SiteName)
	}
	if cfg.Gateway.WhatsAppNumber != "5511999998888" {
		t.Errorf("unexpected gateway number: %s", cfg.Gateway.WhatsAppNumber)
	}
	if cfg.Gateway.ThankYouMode != RedirectModeAuto {
		t.Errorf("unexpected thank-you mode: %s", cfg.Gateway.ThankYouMode)
	}
	if cfg.Gateway.CheckoutRedirect != CheckoutRedirectNew {
		t.Errorf("unexpected checkout redirect: %s", cfg.Gateway.CheckoutRedirect)
	}
	if cfg.Gateway.EnableForVirtual {
		t.Errorf("expected virtual orders disabled")
	}
	if !cfg.Gateway.ExclusiveCheckout {
		t.Errorf("expected exclusive checkout enabled")
	}
	if !cfg.Gateway.SendPaymentLink {
		t.Errorf("expected payment link enabled")
	}
	if !cfg.Gateway.SendOrderMetaData {
		t.Errorf("expected order metadata enabled")
	}
	expectedMethods := []string{"flat_rate:3", "local_pickup:7"}
	if !reflect.DeepEqual(cfg.Gateway.EnableForMethods, expectedMethods) {
		t.Errorf("unexpected methods: %v", cfg.Gateway.EnableForMethods)
	}
	expectedIgnored := []string{"internal_ref", "sync_token"}
	if !reflect.DeepEqual(cfg.Gateway.IgnoredMetaFields, expectedIgnored) {
		t.Errorf("unexpected ignored fields: %v", cfg.Gateway.IgnoredMetaFields)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	fields := validationErr.Fields()
	if len(fields) == 0 || fields[0] != "Firestore.ProjectID" {
		t.Errorf("expected Firestore.ProjectID to be reported, got %v", fields)
	}
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":   "dido-dev",
		"API_GATEWAY_THANK_YOU_MODE": "shout",
		"API_GATEWAY_REDIRECT_MODE":  "popup",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	fields := validationErr.Fields()
	if len(fields) != 2 {
		t.Fatalf("expected two invalid fields, got %v", fields)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	contents := "API_FIRESTORE_PROJECT_ID=dido-local\nAPI_GATEWAY_WHATSAPP_NUMBER=\"14155550100\"\n# comment\nexport API_SERVER_PORT=7070\n"
	if err := os.WriteFile(envPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Firestore.ProjectID != "dido-local" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Gateway.WhatsAppNumber != "14155550100" {
		t.Errorf("unexpected gateway number: %s", cfg.Gateway.WhatsAppNumber)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("API_SERVER_PORT=1111\n"), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "dido-dev",
		"API_SERVER_PORT":          "2222",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "2222" {
		t.Errorf("expected env map to win over dotenv, got %s", cfg.Server.Port)
	}
}

func TestGatewayReady(t *testing.T) {
	cases := []struct {
		name     string
		gateway  GatewayConfig
		ready    bool
		warnings int
	}{
		{
			name:    "valid number",
			gateway: GatewayConfig{Enabled: true, WhatsAppNumber: "14155550100"},
			ready:   true,
		},
		{
			name:     "empty number",
			gateway:  GatewayConfig{Enabled: true},
			ready:    false,
			warnings: 1,
		},
		{
			name:     "plus prefix",
			gateway:  GatewayConfig{Enabled: true, WhatsAppNumber: "+14155550100"},
			ready:    false,
			warnings: 1,
		},
		{
			name:     "leading zero",
			gateway:  GatewayConfig{Enabled: true, WhatsAppNumber: "0415550100"},
			ready:    false,
			warnings: 1,
		},
		{
			name:    "disabled gateway",
			gateway: GatewayConfig{Enabled: false, WhatsAppNumber: "bad"},
			ready:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if ready := tc.gateway.Ready(); ready != tc.ready {
				t.Errorf("Ready() = %v, expected %v", ready, tc.ready)
			}
			if warnings := tc.gateway.Warnings(); len(warnings) != tc.warnings {
				t.Errorf("Warnings() = %v, expected %d entries", warnings, tc.warnings)
			}
		})
	}
}
