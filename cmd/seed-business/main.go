// seed-business sets up a new business: migrates the schema, stores an opening
// USD->IDR rate and prints a bearer token for it.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-business --user-name=owner
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
	"github.com/google/uuid"
)

func main() {
	businessID := flag.String("business-id", "", "Optional: business id (uuid); a new one is generated when empty")
	rate := flag.String("usd-rate", "15500", "Opening USD->IDR rate")
	userID := flag.Int("user-id", 1, "User id carried by the token")
	userName := flag.String("user-name", "owner", "User name carried by the token")
	migrate := flag.Bool("migrate", true, "Run AutoMigrate first")
	flag.Parse()

	id := strings.TrimSpace(*businessID)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		fmt.Fprintf(os.Stderr, "invalid --business-id: %v\n", err)
		os.Exit(1)
	}
	usdRate, err := utils.ParseDecimal(*rate)
	if err != nil || !usdRate.IsPositive() {
		fmt.Fprintf(os.Stderr, "invalid --usd-rate %q\n", *rate)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), id)
	ctx = utils.SetUserIdInContext(ctx, *userID)
	ctx = utils.SetUserNameInContext(ctx, *userName)

	if _, err := models.CreateExchangeRate(ctx, id, &models.NewExchangeRate{
		FromCurrency: models.CurrencyUSD,
		ToCurrency:   models.CanonicalCurrency,
		Rate:         usdRate,
		Source:       "seed",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to store opening rate: %v\n", err)
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(*userID, *userName, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("business_id=%s\n", id)
	fmt.Printf("token=%s\n", token)
}
