package config

import (
	"context"
	"testing"

	"github.com/dealerbooks/dealer_backend/appctx"
	"github.com/shopspring/decimal"
)

func TestFallbackUsdIdrRate(t *testing.T) {
	t.Setenv("FALLBACK_USD_IDR_RATE", "")
	if !FallbackUsdIdrRate().Equal(decimal.NewFromInt(15500)) {
		t.Fatalf("expected default 15500, got %s", FallbackUsdIdrRate())
	}
	t.Setenv("FALLBACK_USD_IDR_RATE", "16250.5")
	if !FallbackUsdIdrRate().Equal(decimal.RequireFromString("16250.5")) {
		t.Fatalf("expected override, got %s", FallbackUsdIdrRate())
	}
	t.Setenv("FALLBACK_USD_IDR_RATE", "-1")
	if !FallbackUsdIdrRate().Equal(decimal.NewFromInt(15500)) {
		t.Fatalf("non-positive override must be ignored, got %s", FallbackUsdIdrRate())
	}
}

func TestInvoiceRetryAttempts(t *testing.T) {
	t.Setenv("INVOICE_RETRY_ATTEMPTS", "0")
	if InvoiceRetryAttempts() != 1 {
		t.Fatalf("expected at least one attempt, got %d", InvoiceRetryAttempts())
	}
	t.Setenv("INVOICE_RETRY_ATTEMPTS", "")
	if InvoiceRetryAttempts() != 5 {
		t.Fatalf("expected default 5, got %d", InvoiceRetryAttempts())
	}
}

func TestOutboxPublishEnabled(t *testing.T) {
	t.Setenv("PUBSUB_TOPIC", "")
	t.Setenv("OUTBOX_DISABLED", "")
	if OutboxPublishEnabled() {
		t.Fatalf("no topic means no relay")
	}
	t.Setenv("PUBSUB_TOPIC", "cash-flows")
	if !OutboxPublishEnabled() {
		t.Fatalf("expected relay with a topic")
	}
	t.Setenv("OUTBOX_DISABLED", "yes")
	if OutboxPublishEnabled() {
		t.Fatalf("OUTBOX_DISABLED must win")
	}
}

func TestTenantScopeBypass(t *testing.T) {
	ctx := appctx.Set(context.Background(), appctx.ContextKeyBusinessId, "biz-1")
	if businessIdFromContext(ctx) != "biz-1" {
		t.Fatalf("business id not read from context")
	}
	if shouldBypassTenantScope(ctx) {
		t.Fatalf("scope must apply by default")
	}
	if !shouldBypassTenantScope(appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)) {
		t.Fatalf("skip flag must bypass the scope")
	}
}
