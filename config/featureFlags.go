package config

import (
	"os"
	"strings"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StrictCostLockAfterSale freezes the whole cost ledger of a sold asset.
// When off, only adding new costs is rejected after the sale; corrections to
// existing costs are accepted and re-derive the sale's profit.
//
// Set via env:
// - STRICT_COST_LOCK_AFTER_SALE=true
func StrictCostLockAfterSale() bool {
	return envBool("STRICT_COST_LOCK_AFTER_SALE")
}

// OutboxPublishEnabled reports whether cash-flow change events are relayed to Pub/Sub.
// Requires PUBSUB_TOPIC; OUTBOX_DISABLED=true turns the relay off regardless.
func OutboxPublishEnabled() bool {
	if envBool("OUTBOX_DISABLED") {
		return false
	}
	return strings.TrimSpace(os.Getenv("PUBSUB_TOPIC")) != ""
}
