package models

import (
	"errors"
	"strings"
)

type CurrencyCode string

const (
	CurrencyIDR CurrencyCode = "IDR"
	CurrencyUSD CurrencyCode = "USD"
)

// CanonicalCurrency is the ledger currency every amount is reported in.
const CanonicalCurrency = CurrencyIDR

func (c CurrencyCode) IsValid() bool {
	return c == CurrencyIDR || c == CurrencyUSD
}

func (c CurrencyCode) IsCanonical() bool {
	return c == CanonicalCurrency
}

func (c *CurrencyCode) UnmarshalText(b []byte) error {
	v := CurrencyCode(strings.ToUpper(strings.TrimSpace(string(b))))
	if !v.IsValid() {
		return errors.New("unsupported currency")
	}
	*c = v
	return nil
}

// currencyOrDefault treats an empty code as canonical.
func currencyOrDefault(c CurrencyCode) CurrencyCode {
	if c == "" {
		return CanonicalCurrency
	}
	return c
}
