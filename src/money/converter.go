package money

import (
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// PivotCurrency is the common intermediate every cross rate is derived
// through: quotes are stored as units of currency per 1 USD.
const PivotCurrency = "USD"

// FxQuote is one stored USD-quoted rate. Synthetic marks a rate the system
// fabricated because no real quote exists.
type FxQuote struct {
	Rate      decimal.Decimal
	AsOf      int64
	Source    string
	Synthetic bool
}

// MoneyAmount is a major-unit amount in a currency.
type MoneyAmount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// Conversion is the result of converting an amount between currencies,
// carrying everything an FX snapshot records.
type Conversion struct {
	Amount    MoneyAmount
	Rate      decimal.Decimal
	AsOf      int64
	Source    string
	Synthetic bool
}

// Converter resolves currency precision and converts amounts through the USD
// pivot. Overrides come from the currencies table; anything else falls back
// to the ISO registry, then to 2 digits.
type Converter struct {
	overrides map[string]int
}

func NewConverter(overrides map[string]int) *Converter {
	norm := make(map[string]int, len(overrides))
	for code, digits := range overrides {
		norm[NormalizeCurrency(code)] = digits
	}
	return &Converter{overrides: norm}
}

// NormalizeCurrency uppercases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FractionDigits returns the minor-unit precision of a currency, clamped to
// [0,8]. Unknown currencies get 2.
func (c *Converter) FractionDigits(code string) int {
	code = NormalizeCurrency(code)
	digits := 2
	if d, ok := c.overrides[code]; ok {
		digits = d
	} else if cur := gomoney.GetCurrency(code); cur != nil {
		digits = cur.Fraction
	}
	if digits < 0 {
		return 0
	}
	if digits > 8 {
		return 8
	}
	return digits
}

// ToMinorUnits converts a major-unit amount to integer minor units, rounding
// half away from zero.
func (c *Converter) ToMinorUnits(major decimal.Decimal, code string) int64 {
	return major.Shift(int32(c.FractionDigits(code))).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a major-unit amount.
func (c *Converter) FromMinorUnits(minor int64, code string) decimal.Decimal {
	return decimal.New(minor, -int32(c.FractionDigits(code)))
}

// Convert converts an amount between currencies using USD-quoted rates.
// Same-currency conversion is the identity. A missing or non-positive quote
// degrades to rate 1 flagged synthetic; conversion never fails for missing
// FX data, it only marks the result as untrustworthy.
func (c *Converter) Convert(amount decimal.Decimal, from, to string, quotes map[string]FxQuote) Conversion {
	from = NormalizeCurrency(from)
	to = NormalizeCurrency(to)

	if from == to {
		return c.finish(amount, to, decimal.NewFromInt(1), 0, "identity", false)
	}

	if from == PivotCurrency {
		q, ok := usableQuote(quotes, to)
		if !ok {
			return c.synthetic(amount, to)
		}
		return c.finish(amount, to, q.Rate, q.AsOf, q.Source, q.Synthetic)
	}

	if to == PivotCurrency {
		q, ok := usableQuote(quotes, from)
		if !ok {
			return c.synthetic(amount, to)
		}
		return c.finish(amount, to, decimal.NewFromInt(1).Div(q.Rate), q.AsOf, q.Source, q.Synthetic)
	}

	qFrom, okFrom := usableQuote(quotes, from)
	qTo, okTo := usableQuote(quotes, to)
	if !okFrom || !okTo {
		return c.synthetic(amount, to)
	}

	rate := qTo.Rate.Div(qFrom.Rate)
	asOf := qFrom.AsOf
	if qTo.AsOf < asOf {
		asOf = qTo.AsOf
	}
	source := qFrom.Source
	if qFrom.Source != qTo.Source {
		source = qFrom.Source + "|" + qTo.Source
	}
	return c.finish(amount, to, rate, asOf, source, qFrom.Synthetic || qTo.Synthetic)
}

func usableQuote(quotes map[string]FxQuote, code string) (FxQuote, bool) {
	q, ok := quotes[code]
	if !ok || !q.Rate.IsPositive() {
		return FxQuote{}, false
	}
	return q, true
}

func (c *Converter) finish(amount decimal.Decimal, to string, rate decimal.Decimal, asOf int64, source string, synthetic bool) Conversion {
	value := amount.Mul(rate).Round(int32(c.FractionDigits(to)))
	return Conversion{
		Amount:    MoneyAmount{Value: value, Currency: to},
		Rate:      rate,
		AsOf:      asOf,
		Source:    source,
		Synthetic: synthetic,
	}
}

func (c *Converter) synthetic(amount decimal.Decimal, to string) Conversion {
	conv := c.finish(amount, to, decimal.NewFromInt(1), 0, "synthetic", true)
	return conv
}

// SplitAllocate divides a total into weighted shares on the currency's
// minor-unit grid. Every share is rounded individually and the residual goes
// entirely to the last share, so the shares always sum exactly to the total.
// A zero weight sum falls back to equal weights.
func (c *Converter) SplitAllocate(totalMajor decimal.Decimal, code string, weights []decimal.Decimal) []int64 {
	if len(weights) == 0 {
		return nil
	}
	totalMinor := c.ToMinorUnits(totalMajor, code)
	totalMinorDec := decimal.NewFromInt(totalMinor)

	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		equal := make([]decimal.Decimal, len(weights))
		one := decimal.NewFromInt(1)
		for i := range equal {
			equal[i] = one
		}
		weights = equal
		sum = decimal.NewFromInt(int64(len(weights)))
	}

	shares := make([]int64, len(weights))
	var allocated int64
	for i, w := range weights {
		minor := w.Div(sum).Mul(totalMinorDec).Round(0).IntPart()
		shares[i] = minor
		allocated += minor
	}
	shares[len(shares)-1] += totalMinor - allocated
	return shares
}
