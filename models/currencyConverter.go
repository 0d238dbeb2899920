package models

import (
	"context"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var decimalOne = decimal.NewFromInt(1)

// RateQuote is one stored rate. Found is false when the pair has no rate on record.
type RateQuote struct {
	Rate          decimal.Decimal
	EffectiveDate *time.Time
	Found         bool
}

type RateProvider interface {
	LatestRate(ctx context.Context, businessId string, from CurrencyCode, to CurrencyCode) (RateQuote, error)
}

// Conversion is the result of converting one amount. Rate is the multiplier that
// was applied (target units per source unit) and is what callers freeze.
type Conversion struct {
	Amount     decimal.Decimal
	Rate       decimal.Decimal
	IsFallback bool
}

type CurrencyConverter struct {
	Rates    RateProvider
	Fallback decimal.Decimal
	Logger   *logrus.Logger
}

func NewCurrencyConverter(rates RateProvider) *CurrencyConverter {
	return &CurrencyConverter{
		Rates:    rates,
		Fallback: config.FallbackUsdIdrRate(),
		Logger:   config.GetLogger(),
	}
}

// Convert converts amount from one currency into another.
// Same currency converts at exactly 1 without a lookup. A missing pair is served
// by its inverse, then by the USD/IDR fallback constant.
func (c *CurrencyConverter) Convert(ctx context.Context, businessId string, amount decimal.Decimal, from CurrencyCode, to CurrencyCode) (Conversion, error) {
	from, to = currencyOrDefault(from), currencyOrDefault(to)
	if !from.IsValid() || !to.IsValid() {
		return Conversion{}, utils.ValidationError("unsupported currency %s->%s", from, to)
	}
	if from == to {
		return Conversion{Amount: amount, Rate: decimalOne}, nil
	}
	q, err := c.quote(ctx, businessId, from, to)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{Amount: q.apply(amount), Rate: q.effectiveRate(), IsFallback: q.fallback}, nil
}

// RateScale is the precision rates are stored with.
const RateScale = 6

// ToCanonical converts amount into the ledger currency. The rate is rounded to
// RateScale and the amount derived from the rounded rate, so a figure recomputed
// later from the stored rate comes out the same.
func (c *CurrencyConverter) ToCanonical(ctx context.Context, businessId string, amount decimal.Decimal, from CurrencyCode) (Conversion, error) {
	conv, err := c.Convert(ctx, businessId, amount, from, CanonicalCurrency)
	if err != nil {
		return Conversion{}, err
	}
	conv.Rate = conv.Rate.Round(RateScale)
	conv.Amount = amount.Mul(conv.Rate)
	return conv, nil
}

// FromCanonical projects a canonical amount into currency at the current rate.
func (c *CurrencyConverter) FromCanonical(ctx context.Context, businessId string, amount decimal.Decimal, to CurrencyCode) (Conversion, error) {
	return c.Convert(ctx, businessId, amount, CanonicalCurrency, to)
}

// resolved rate; inverse quotes divide instead of multiply so that
// 1/rate is never rounded before it touches an amount
type rateQuote struct {
	rate          decimal.Decimal
	inverse       bool
	fallback      bool
	effectiveDate *time.Time
}

func (q rateQuote) apply(amount decimal.Decimal) decimal.Decimal {
	if q.inverse {
		return amount.Div(q.rate)
	}
	return amount.Mul(q.rate)
}

func (q rateQuote) effectiveRate() decimal.Decimal {
	if q.inverse {
		return decimalOne.Div(q.rate)
	}
	return q.rate
}

func (c *CurrencyConverter) quote(ctx context.Context, businessId string, from CurrencyCode, to CurrencyCode) (rateQuote, error) {
	if from == to {
		return rateQuote{rate: decimalOne}, nil
	}
	var lookupErr error
	if c.Rates != nil {
		direct, err := c.Rates.LatestRate(ctx, businessId, from, to)
		if err == nil && direct.Found && direct.Rate.IsPositive() {
			return rateQuote{rate: direct.Rate, effectiveDate: direct.EffectiveDate}, nil
		}
		lookupErr = err

		inverse, err := c.Rates.LatestRate(ctx, businessId, to, from)
		if err == nil && inverse.Found && inverse.Rate.IsPositive() {
			return rateQuote{rate: inverse.Rate, inverse: true, effectiveDate: inverse.EffectiveDate}, nil
		}
		if lookupErr == nil {
			lookupErr = err
		}
	}
	return c.fallbackQuote(businessId, from, to, lookupErr)
}

func (c *CurrencyConverter) fallbackQuote(businessId string, from CurrencyCode, to CurrencyCode, lookupErr error) (rateQuote, error) {
	fallback := c.Fallback
	if !fallback.IsPositive() {
		fallback = config.FallbackUsdIdrRate()
	}
	var q rateQuote
	switch {
	case from == CurrencyUSD && to == CurrencyIDR:
		q = rateQuote{rate: fallback, fallback: true}
	case from == CurrencyIDR && to == CurrencyUSD:
		q = rateQuote{rate: fallback, inverse: true, fallback: true}
	default:
		if lookupErr != nil {
			return rateQuote{}, lookupErr
		}
		return rateQuote{}, utils.ExternalDependencyError(nil, "no exchange rate for %s->%s", from, to)
	}

	if c.Logger != nil {
		entry := c.Logger.WithFields(logrus.Fields{
			"module":      "CurrencyConverter",
			"business_id": businessId,
			"from":        from,
			"to":          to,
			"rate":        fallback.String(),
		})
		if lookupErr != nil {
			entry = entry.WithError(lookupErr)
		}
		entry.Warn("using fallback exchange rate")
	}
	return q, nil
}
