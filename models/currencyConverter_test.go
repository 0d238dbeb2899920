package models

import (
	"context"
	"errors"
	"testing"

	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
)

type fakeRates struct {
	rates map[string]decimal.Decimal
	err   error
	calls int
}

func (f *fakeRates) LatestRate(ctx context.Context, businessId string, from CurrencyCode, to CurrencyCode) (RateQuote, error) {
	f.calls++
	if f.err != nil {
		return RateQuote{}, f.err
	}
	r, ok := f.rates[string(from)+"->"+string(to)]
	if !ok {
		return RateQuote{}, nil
	}
	return RateQuote{Rate: r, Found: true}, nil
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestConvert_SameCurrencyIsIdentityWithoutLookup(t *testing.T) {
	rates := &fakeRates{}
	c := &CurrencyConverter{Rates: rates, Fallback: decimal.NewFromInt(15500)}

	got, err := c.Convert(context.Background(), "biz", mustDec(t, "1234.5678"), CurrencyIDR, CurrencyIDR)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !got.Amount.Equal(mustDec(t, "1234.5678")) || !got.Rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected identity, got amount=%s rate=%s", got.Amount, got.Rate)
	}
	if rates.calls != 0 {
		t.Fatalf("expected no rate lookups, got %d", rates.calls)
	}
}

func TestConvert_DirectRate(t *testing.T) {
	c := &CurrencyConverter{Rates: &fakeRates{rates: map[string]decimal.Decimal{"USD->IDR": decimal.NewFromInt(15500)}}}

	got, err := c.ToCanonical(context.Background(), "biz", decimal.NewFromInt(100), CurrencyUSD)
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(1550000)) {
		t.Fatalf("expected 1550000, got %s", got.Amount)
	}
	if !got.Rate.Equal(decimal.NewFromInt(15500)) || got.IsFallback {
		t.Fatalf("unexpected rate %s fallback=%v", got.Rate, got.IsFallback)
	}
}

func TestConvert_InverseRateDividesExactly(t *testing.T) {
	c := &CurrencyConverter{Rates: &fakeRates{rates: map[string]decimal.Decimal{"USD->IDR": decimal.NewFromInt(16000)}}}

	got, err := c.FromCanonical(context.Background(), "biz", decimal.NewFromInt(1550000), CurrencyUSD)
	if err != nil {
		t.Fatalf("FromCanonical: %v", err)
	}
	if !got.Amount.Equal(mustDec(t, "96.875")) {
		t.Fatalf("expected 96.875, got %s", got.Amount)
	}
	if got.IsFallback {
		t.Fatalf("inverse of a stored rate is not a fallback")
	}
}

func TestConvert_MissingRateUsesFallback(t *testing.T) {
	c := &CurrencyConverter{Rates: &fakeRates{}, Fallback: decimal.NewFromInt(15000)}

	got, err := c.ToCanonical(context.Background(), "biz", decimal.NewFromInt(2), CurrencyUSD)
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if !got.IsFallback || !got.Amount.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("expected fallback 30000, got %s fallback=%v", got.Amount, got.IsFallback)
	}

	back, err := c.FromCanonical(context.Background(), "biz", decimal.NewFromInt(30000), CurrencyUSD)
	if err != nil {
		t.Fatalf("FromCanonical: %v", err)
	}
	if !back.IsFallback || !back.Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected fallback 2, got %s fallback=%v", back.Amount, back.IsFallback)
	}
}

func TestConvert_LookupErrorStillFallsBackForUsdIdr(t *testing.T) {
	c := &CurrencyConverter{Rates: &fakeRates{err: errors.New("db down")}, Fallback: decimal.NewFromInt(15500)}

	got, err := c.ToCanonical(context.Background(), "biz", decimal.NewFromInt(1), CurrencyUSD)
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if !got.IsFallback {
		t.Fatalf("expected fallback rate")
	}
}

func TestConvert_UnsupportedCurrency(t *testing.T) {
	c := &CurrencyConverter{Rates: &fakeRates{}}

	_, err := c.Convert(context.Background(), "biz", decimal.NewFromInt(1), CurrencyCode("EUR"), CurrencyIDR)
	if utils.KindOf(err) != utils.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConvert_EmptyCurrencyIsCanonical(t *testing.T) {
	c := &CurrencyConverter{Rates: &fakeRates{}}

	got, err := c.Convert(context.Background(), "biz", decimal.NewFromInt(5), "", CurrencyIDR)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !got.Rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected rate 1, got %s", got.Rate)
	}
}

func TestConvert_RoundTripThroughEitherStoredPair(t *testing.T) {
	cases := map[string]map[string]decimal.Decimal{
		"direct pair only":  {"USD->IDR": mustDec(t, "15503.5")},
		"inverse pair only": {"IDR->USD": mustDec(t, "0.0000625")},
	}
	for name, rates := range cases {
		t.Run(name, func(t *testing.T) {
			c := &CurrencyConverter{Rates: &fakeRates{rates: rates}}
			idr, err := c.ToCanonical(context.Background(), "biz", mustDec(t, "123.45"), CurrencyUSD)
			if err != nil {
				t.Fatalf("ToCanonical: %v", err)
			}
			if idr.IsFallback {
				t.Fatalf("a stored pair must not fall back")
			}
			back, err := c.FromCanonical(context.Background(), "biz", idr.Amount, CurrencyUSD)
			if err != nil {
				t.Fatalf("FromCanonical: %v", err)
			}
			if !back.Amount.Equal(mustDec(t, "123.45")) {
				t.Fatalf("expected 123.45 back, got %s (via %s IDR)", back.Amount, idr.Amount)
			}
		})
	}
}

func TestToCanonical_InverseRateIsFrozenAtStoredPrecision(t *testing.T) {
	c := &CurrencyConverter{Rates: &fakeRates{rates: map[string]decimal.Decimal{"IDR->USD": mustDec(t, "0.0000645")}}}

	got, err := c.ToCanonical(context.Background(), "biz", decimal.NewFromInt(100), CurrencyUSD)
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if !got.Rate.Equal(mustDec(t, "15503.875969")) {
		t.Fatalf("expected rate rounded to 6 places, got %s", got.Rate)
	}
	// recomputing from the stored rate must give the same amount
	if !got.Amount.Equal(decimal.NewFromInt(100).Mul(got.Rate)) || !got.Amount.Equal(mustDec(t, "1550387.5969")) {
		t.Fatalf("amount must be derived from the frozen rate, got %s", got.Amount)
	}
}
