package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_UsesPaymentAPISecretKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PAYMENT_API_KEY")
	setEnvWithCleanup(t, "PAYMENT_API_SECRET_KEY", "sk_test_alias")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PaymentAPIKey != "sk_test_alias" {
		t.Fatalf("expected PaymentAPIKey from alias env var, got %q", cfg.PaymentAPIKey)
	}
}

func TestLoadConfig_PaymentAPIKeyTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "PAYMENT_API_KEY", "sk_test_primary")
	setEnvWithCleanup(t, "PAYMENT_API_SECRET_KEY", "sk_test_alias")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PaymentAPIKey != "sk_test_primary" {
		t.Fatalf("expected PaymentAPIKey to prioritize PAYMENT_API_KEY, got %q", cfg.PaymentAPIKey)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "WEBHOOK_SIGNATURE_TOLERANCE_SECONDS")
	unsetEnvWithCleanup(t, "CHARGE_CORRELATION_WINDOW_SECONDS")
	unsetEnvWithCleanup(t, "CHECKOUT_CREATE_RATE_LIMIT_PER_MINUTE")
	unsetEnvWithCleanup(t, "REDIS_RATE_LIMIT_PREFIX")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WebhookSignatureToleranceSeconds != 300 {
		t.Fatalf("expected default signature tolerance of 300, got %d", cfg.WebhookSignatureToleranceSeconds)
	}
	if cfg.ChargeCorrelationWindowSeconds != 30 {
		t.Fatalf("expected default correlation window of 30, got %d", cfg.ChargeCorrelationWindowSeconds)
	}
	if cfg.CheckoutCreateRateLimitPerMinute != 20 {
		t.Fatalf("expected default checkout rate limit of 20, got %d", cfg.CheckoutCreateRateLimitPerMinute)
	}
	if cfg.RedisRateLimitPrefix != "payment:rate_limit" {
		t.Fatalf("expected default rate limit prefix, got %q", cfg.RedisRateLimitPrefix)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
