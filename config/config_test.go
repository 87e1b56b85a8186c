package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENV", "STORE", "TAX_RATE", "SHIPPING_FLAT", "FREE_SHIPPING_OVER", "ORDER_NUMBER_RETRIES", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	t.Setenv("JWT_SECRET", "jwt-key")
	t.Setenv("INVOICE_SECRET", "invoice-key")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "mongo", cfg.Store)
	assert.False(t, cfg.IsDev())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 0.05, cfg.Pricing.TaxRate)
	assert.Equal(t, 4.99, cfg.Pricing.ShippingFlat)
	assert.Equal(t, 50.0, cfg.Pricing.FreeShippingOver)
	assert.Equal(t, 5, cfg.OrderNumberRetries)
	assert.Equal(t, []byte("jwt-key"), cfg.JWTSecret)
	assert.Equal(t, []byte("invoice-key"), cfg.InvoiceSecret)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "development")
	t.Setenv("STORE", "Memory")
	t.Setenv("TAX_RATE", "0.2")
	t.Setenv("ORDER_NUMBER_RETRIES", "3")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 0.2, cfg.Pricing.TaxRate)
	assert.Equal(t, 3, cfg.OrderNumberRetries)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []byte("s3cret"), cfg.JWTSecret)
}

func TestLoad_SecretsRequiredOutsideDevelopment(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		jwt     string
		invoice string
		wantErr string
	}{
		{"production without jwt secret", "production", "", "invoice-key", "JWT_SECRET"},
		{"production without invoice secret", "production", "jwt-key", "", "INVOICE_SECRET"},
		{"unset env counts as production", "", "", "", "JWT_SECRET"},
		{"staging without secrets", "staging", "", "", "JWT_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			t.Setenv("JWT_SECRET", tt.jwt)
			t.Setenv("INVOICE_SECRET", tt.invoice)

			cfg, err := Load(zap.NewNop())
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_DevelopmentSecretDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("INVOICE_SECRET", "")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NotEmpty(t, cfg.InvoiceSecret)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("TAX_RATE", "lots")
	t.Setenv("ORDER_NUMBER_RETRIES", "-1")
	t.Setenv("RATE_LIMIT_BURST", "x")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Pricing.TaxRate)
	assert.Equal(t, 5, cfg.OrderNumberRetries)
	assert.Equal(t, 10, cfg.RateLimitBurst)
}
