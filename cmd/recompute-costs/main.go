// recompute-costs re-projects every asset of a business at the current exchange
// rate and re-derives the profit of sold assets from their cost entries.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/recompute-costs --business-id=<uuid>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/dealerbooks/dealer_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	assetType := flag.String("asset-type", "", "Optional: MOTORCYCLE, PRODUCT or SPAREPART; requires --asset-id")
	assetID := flag.Int("asset-id", 0, "Optional: recompute a single asset")
	concurrency := flag.Int("concurrency", 4, "Assets recomputed in parallel")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != "" {
		config.ConnectRedisWithRetry()
	}

	ctx := utils.SetUserNameInContext(context.Background(), "recompute-costs")
	engine := workflow.NewEngine(db, config.GetLogger())

	if *assetID > 0 {
		var t models.AssetType
		if err := t.UnmarshalText([]byte(*assetType)); err != nil {
			fmt.Fprintf(os.Stderr, "invalid --asset-type %q\n", *assetType)
			os.Exit(1)
		}
		ref := models.AssetRef{Type: t, Id: *assetID}
		total, err := engine.RecomputeTotal(ctx, *businessID, ref)
		if err != nil {
			fmt.Fprintf(os.Stderr, "recompute %s failed: %v\n", ref, err)
			os.Exit(1)
		}
		fmt.Printf("%s total_cost_idr=%s\n", ref, total.StringFixed(4))
		return
	}

	summary, err := engine.RecomputeBusiness(ctx, *businessID, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recompute failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("recomputed %d assets, %d failed\n", summary.Assets, summary.Failed)
	if summary.Failed > 0 {
		os.Exit(2)
	}
}
