package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

func baseEnv() map[string]string {
	return map[string]string{
		"STORE_DRIVER":           "memory",
		"DATABASE_URL":           "",
		"REDIS_URL":              "",
		"AUTH_JWT_SECRET":        "secret",
		"AUTH_JWKS_URL":          "",
		"CART_TAX_RATE":          "",
		"CART_SHIPPING_FEE":      "",
		"CART_MAX_LINE_AMOUNT":   "",
		"CART_PRODUCT_CACHE_TTL": "",
		"CART_WRITE_RATE":        "",
		"PORT":                   "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, "0.1", cfg.TaxRate.String())
	require.Equal(t, pricing.Money(500), cfg.ShippingFee)
	require.Equal(t, 30*time.Second, cfg.ProductCacheTTL)
	require.Equal(t, "120-M", cfg.WriteRate)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.EqualValues(t, 4096, cfg.MaxBodyBytes)
	require.Equal(t, 99, cfg.MaxLineAmount)
}

func TestLoadCartOverrides(t *testing.T) {
	env := baseEnv()
	env["CART_TAX_RATE"] = "0.08"
	env["CART_SHIPPING_FEE"] = "0"
	env["CART_MAX_LINE_AMOUNT"] = "1000000"
	env["CART_PRODUCT_CACHE_TTL"] = "2m"
	env["PORT"] = ":9090"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, ,https://b.example"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "0.08", cfg.TaxRate.String())
	require.Zero(t, cfg.ShippingFee)
	require.Equal(t, 1000000, cfg.MaxLineAmount)
	require.Equal(t, 2*time.Minute, cfg.ProductCacheTTL)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadTaxRateAtStoredPrecision(t *testing.T) {
	env := baseEnv()
	env["CART_TAX_RATE"] = "0.082513"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "0.082513", cfg.TaxRate.String())
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres needs url": {"STORE_DRIVER": "postgres"},
		"unknown driver":     {"STORE_DRIVER": "mysql"},
		"negative tax":       {"CART_TAX_RATE": "-0.1"},
		"bad tax":            {"CART_TAX_RATE": "ten"},
		"tax too precise":    {"CART_TAX_RATE": "0.0825125"},
		"tax too large":      {"CART_TAX_RATE": "100"},
		"zero line cap":      {"CART_MAX_LINE_AMOUNT": "0"},
		"line cap too large": {"CART_MAX_LINE_AMOUNT": "1000001"},
		"bad line cap":       {"CART_MAX_LINE_AMOUNT": "lots"},
		"negative fee":       {"CART_SHIPPING_FEE": "-1"},
		"no auth":            {"AUTH_JWT_SECRET": ""},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			env := baseEnv()
			for k, v := range overrides {
				env[k] = v
			}
			_, err := LoadForTests(env)
			require.Error(t, err)
		})
	}
}
