package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "cm-dev",
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
	if cfg.Firestore.ProjectID != "cm-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "cm-dev" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.NotificationsTopic != "order-notifications" {
		t.Errorf("unexpected default notifications topic: %s", cfg.PubSub.NotificationsTopic)
	}
	if cfg.Redis.URL != "" {
		t.Errorf("expected redis disabled by default, got %s", cfg.Redis.URL)
	}
	if cfg.Redis.GuestCartTTL != defaultGuestCartTTL {
		t.Errorf("unexpected default guest cart ttl: %s", cfg.Redis.GuestCartTTL)
	}
	if cfg.Checkout.DefaultCurrency != "USD" {
		t.Errorf("unexpected default currency: %s", cfg.Checkout.DefaultCurrency)
	}
	if cfg.Checkout.LowStockThreshold != defaultLowStockThreshold {
		t.Errorf("unexpected low stock threshold: %d", cfg.Checkout.LowStockThreshold)
	}
	if cfg.Shipping.TablePath != defaultShippingTablePath {
		t.Errorf("unexpected shipping table path: %s", cfg.Shipping.TablePath)
	}
	if cfg.RateLimits.DefaultPerMinute != 120 {
		t.Errorf("unexpected default rate limit: %d", cfg.RateLimits.DefaultPerMinute)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                  "9090",
		"API_SERVER_READ_TIMEOUT":          "20s",
		"API_SERVER_WRITE_TIMEOUT":         "25s",
		"API_SERVER_IDLE_TIMEOUT":          "2m",
		"API_FIREBASE_PROJECT_ID":          "cm-prod",
		"API_FIRESTORE_PROJECT_ID":         "cm-fire",
		"API_PUBSUB_PROJECT_ID":            "cm-events",
		"API_PUBSUB_NOTIFICATIONS_TOPIC":   "notify",
		"API_PUBSUB_LOYALTY_TOPIC":         "points",
		"API_PUBSUB_LOW_STOCK_TOPIC":       "restock",
		"API_REDIS_URL":                    "redis://localhost:6379/2",
		"API_REDIS_GUEST_CART_TTL":         "48h",
		"API_PSP_STRIPE_API_KEY":           "secret://stripe/api",
		"API_PSP_STRIPE_WEBHOOK_SECRET":    "sm://stripe/webhook",
		"API_SHIPPING_TABLE_PATH":          "testdata/shipping.yaml",
		"API_CHECKOUT_DEFAULT_CURRENCY":    "eur",
		"API_CHECKOUT_LOW_STOCK_THRESHOLD": "12",
		"API_RATELIMIT_DEFAULT_PER_MIN":    "150",
		"API_IDEMPOTENCY_HEADER":           "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":              "48h",
	}

	secrets := map[string]string{
		"secret://stripe/api":     "stripe-key",
		"secret://stripe/webhook": "stripe-webhook",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.ProjectID != "cm-fire" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "cm-events" {
		t.Errorf("unexpected pubsub project: %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.LoyaltyTopic != "points" {
		t.Errorf("unexpected loyalty topic: %s", cfg.PubSub.LoyaltyTopic)
	}
	if cfg.Redis.GuestCartTTL != 48*time.Hour {
		t.Errorf("unexpected guest cart ttl: %s", cfg.Redis.GuestCartTTL)
	}
	if cfg.PSP.StripeAPIKey != "stripe-key" {
		t.Errorf("stripe api key not resolved: %s", cfg.PSP.StripeAPIKey)
	}
	if cfg.PSP.StripeWebhookSecret != "stripe-webhook" {
		t.Errorf("sm:// webhook secret not resolved: %s", cfg.PSP.StripeWebhookSecret)
	}
	if cfg.Checkout.DefaultCurrency != "EUR" {
		t.Errorf("currency not upper-cased: %s", cfg.Checkout.DefaultCurrency)
	}
	if cfg.Checkout.LowStockThreshold != 12 {
		t.Errorf("unexpected low stock threshold: %d", cfg.Checkout.LowStockThreshold)
	}
	if cfg.Shipping.TablePath != "testdata/shipping.yaml" {
		t.Errorf("unexpected shipping table path: %s", cfg.Shipping.TablePath)
	}
	if cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency ttl: %s", cfg.Idempotency.TTL)
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "API_FIREBASE_PROJECT_ID=cm-local\nexport API_SERVER_PORT=7070\n# comment\nAPI_REDIS_URL=\"redis://localhost:6379/0\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.ProjectID != "cm-local" {
		t.Errorf("unexpected project id: %s", cfg.Firebase.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("quotes not stripped from redis url: %s", cfg.Redis.URL)
	}
}

func TestLoadFailsValidationWithoutProject(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := validation.Fields()
	found := false
	for _, field := range fields {
		if field == "Firebase.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Firebase.ProjectID in %v", fields)
	}
}

func TestLoadFailsWhenSecretUnresolvable(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":       "cm-dev",
		"API_PSP_STRIPE_WEBHOOK_SECRET": "sm://stripe/webhook",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://stripe/webhook" {
		t.Errorf("unexpected normalised ref: %s", secretErr.Ref)
	}
}

func TestLoadEnforcesRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "cm-dev",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("PSP.StripeWebhookSecret"))
	if err == nil {
		t.Fatal("expected missing secrets error")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "PSP.StripeWebhookSecret" {
		t.Errorf("unexpected missing secret names: %v", names)
	}
}
