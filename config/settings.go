package config

import (
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultFallbackUsdIdrRate = "15500"

// FallbackUsdIdrRate is the USD->IDR rate used when a business has no rate on record.
// Override with FALLBACK_USD_IDR_RATE.
func FallbackUsdIdrRate() decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv("FALLBACK_USD_IDR_RATE"))
	if raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil && d.IsPositive() {
			return d
		}
	}
	return decimal.RequireFromString(defaultFallbackUsdIdrRate)
}

// InvoiceRetryAttempts bounds how many times a sale is retried after losing
// the invoice counter race or a deadlock.
func InvoiceRetryAttempts() int {
	n := intFromEnv("INVOICE_RETRY_ATTEMPTS", 5)
	if n < 1 {
		return 1
	}
	return n
}

// RateCacheTTL is how long the latest exchange rate stays in redis.
func RateCacheTTL() time.Duration {
	return time.Duration(intFromEnv("RATE_CACHE_SECONDS", 60)) * time.Second
}

// SaleLockTTL bounds the best-effort redis lock held around a sale.
func SaleLockTTL() time.Duration {
	return time.Duration(intFromEnv("SALE_LOCK_SECONDS", 10)) * time.Second
}
