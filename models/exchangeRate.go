package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExchangeRate is how many units of ToCurrency buy one unit of FromCurrency,
// effective from EffectiveDate until a newer row supersedes it.
type ExchangeRate struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"size:64;not null;index:idx_rate_lookup,priority:1" json:"business_id"`
	FromCurrency  CurrencyCode    `gorm:"size:3;not null;index:idx_rate_lookup,priority:2" json:"from_currency"`
	ToCurrency    CurrencyCode    `gorm:"size:3;not null;index:idx_rate_lookup,priority:3" json:"to_currency"`
	Rate          decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"rate"`
	EffectiveDate time.Time       `gorm:"not null;index:idx_rate_lookup,priority:4" json:"effective_date"`
	Source        string          `gorm:"size:50" json:"source"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewExchangeRate struct {
	FromCurrency  CurrencyCode    `json:"from_currency" validate:"required"`
	ToCurrency    CurrencyCode    `json:"to_currency"`
	Rate          decimal.Decimal `json:"rate" validate:"gt=0"`
	EffectiveDate *time.Time      `json:"effective_date"`
	Source        string          `json:"source" validate:"max=50"`
}

func (input *NewExchangeRate) validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	input.ToCurrency = currencyOrDefault(input.ToCurrency)
	if !input.FromCurrency.IsValid() || !input.ToCurrency.IsValid() {
		return utils.ValidationError("unsupported currency")
	}
	if input.FromCurrency == input.ToCurrency {
		return utils.ValidationError("from and to currency must differ")
	}
	return nil
}

func CreateExchangeRate(ctx context.Context, businessId string, input *NewExchangeRate) (*ExchangeRate, error) {
	if businessId == "" {
		return nil, utils.ValidationError("business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	rate := ExchangeRate{
		BusinessId:    businessId,
		FromCurrency:  input.FromCurrency,
		ToCurrency:    input.ToCurrency,
		Rate:          input.Rate.Round(RateScale),
		EffectiveDate: utils.DereferencePtr(input.EffectiveDate, time.Now()),
		Source:        input.Source,
	}
	if rate.Source == "" {
		rate.Source = "MANUAL"
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&rate).Error; err != nil {
		return nil, err
	}
	invalidateRateCache(ctx, businessId, rate.FromCurrency, rate.ToCurrency)
	return &rate, nil
}

func ListExchangeRates(ctx context.Context, businessId string, from CurrencyCode, limit int) ([]*ExchangeRate, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Where("business_id = ?", businessId)
	if from != "" {
		q = q.Where("from_currency = ?", from)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rates []*ExchangeRate
	err := q.Order("effective_date DESC").Order("id DESC").Limit(limit).Find(&rates).Error
	return rates, err
}

type LatestExchangeRate struct {
	FromCurrency  CurrencyCode    `json:"from_currency"`
	ToCurrency    CurrencyCode    `json:"to_currency"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate *time.Time      `json:"effective_date"`
	IsFallback    bool            `json:"is_fallback"`
}

// GetLatestExchangeRate reports the rate conversions would use right now for from->to.
func GetLatestExchangeRate(ctx context.Context, businessId string, from CurrencyCode, to CurrencyCode) (*LatestExchangeRate, error) {
	to = currencyOrDefault(to)
	if !from.IsValid() || !to.IsValid() {
		return nil, utils.ValidationError("unsupported currency")
	}
	converter := NewCurrencyConverter(NewDBRateProvider(config.GetDB()))
	q, err := converter.quote(ctx, businessId, from, to)
	if err != nil {
		return nil, err
	}
	latest := &LatestExchangeRate{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         q.effectiveRate(),
		IsFallback:   q.fallback,
	}
	if q.effectiveDate != nil {
		latest.EffectiveDate = q.effectiveDate
	}
	return latest, nil
}

/* rate provider */

// DBRateProvider reads rates from exchange_rates through db, which may be a transaction.
// Found rates are cached in redis for config.RateCacheTTL().
type DBRateProvider struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewDBRateProvider(db *gorm.DB) *DBRateProvider {
	return &DBRateProvider{db: db, ttl: config.RateCacheTTL(), now: time.Now}
}

type cachedRate struct {
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate time.Time       `json:"effective_date"`
	Found         bool            `json:"found"`
}

func rateCacheKey(businessId string, from CurrencyCode, to CurrencyCode) string {
	return fmt.Sprintf("ExchangeRate:%s:%s:%s", businessId, from, to)
}

func invalidateRateCache(ctx context.Context, businessId string, from CurrencyCode, to CurrencyCode) {
	if err := config.RemoveRedisKey(ctx, rateCacheKey(businessId, from, to), rateCacheKey(businessId, to, from)); err != nil {
		config.LogError(config.GetLogger(), "ExchangeRate", "invalidateRateCache", "redis delete", businessId, err)
	}
}

func (p *DBRateProvider) LatestRate(ctx context.Context, businessId string, from CurrencyCode, to CurrencyCode) (RateQuote, error) {
	cached, err := utils.CachedFetch(ctx, rateCacheKey(businessId, from, to), func() (cachedRate, time.Duration, error) {
		now := p.now()
		pair := func() *gorm.DB {
			return p.db.WithContext(ctx).Model(&ExchangeRate{}).
				Where("business_id = ? AND from_currency = ? AND to_currency = ?", businessId, from, to)
		}

		var next []time.Time
		if err := pair().Where("effective_date > ?", now).
			Order("effective_date ASC").Limit(1).Pluck("effective_date", &next).Error; err != nil {
			return cachedRate{}, 0, err
		}
		var pending *time.Time
		if len(next) > 0 {
			pending = &next[0]
		}
		ttl := rateCacheTTL(p.ttl, now, pending)

		var row ExchangeRate
		err := pair().Where("effective_date <= ?", now).
			Order("effective_date DESC").Order("id DESC").
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cachedRate{}, ttl, nil
		}
		if err != nil {
			return cachedRate{}, 0, err
		}
		return cachedRate{Rate: row.Rate, EffectiveDate: row.EffectiveDate, Found: true}, ttl, nil
	})
	if err != nil {
		return RateQuote{}, utils.ExternalDependencyError(err, "exchange rate lookup failed")
	}
	if !cached.Found {
		return RateQuote{}, nil
	}
	effective := cached.EffectiveDate
	return RateQuote{Rate: cached.Rate, EffectiveDate: &effective, Found: true}, nil
}

// rateCacheTTL keeps a cached rate no longer than until the next dated rate of
// the pair takes effect.
func rateCacheTTL(ttl time.Duration, now time.Time, pending *time.Time) time.Duration {
	if pending == nil {
		return ttl
	}
	if untilPending := pending.Sub(now); untilPending < ttl {
		return untilPending
	}
	return ttl
}
