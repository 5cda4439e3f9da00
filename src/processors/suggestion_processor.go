package processors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/ledgerly/backend/src/models"
)

// priceEpsilon is half a cent: amount deltas below it are treated as
// unchanged.
var priceEpsilon = decimal.New(5, -3)

// SuggestionInputs is the per-user state snapshot the suggestion checks run
// over.
type SuggestionInputs struct {
	Incomes []models.Income
	Rules   []models.AllocationRule
	Bills   []models.Bill

	// LatestPrices holds the most recent observed subscription price per
	// bill id.
	LatestPrices map[int64]models.SubscriptionPrice

	// OpenFingerprints suppresses duplicates: a suggestion whose
	// fingerprint is already open is not emitted again.
	OpenFingerprints map[string]bool

	// MonthlyBillsTotal sizes the essentials share of allocation proposals.
	MonthlyBillsTotal decimal.Decimal
}

// SuggestionProcessor detects income sources without an allocation rule and
// subscription bills whose price moved since the last observation.
type SuggestionProcessor struct{}

func NewSuggestionProcessor() *SuggestionProcessor {
	return &SuggestionProcessor{}
}

// DesiredSuggestions returns the suggestions one sweep should create.
// Emitting is idempotent: identical input state yields identical
// fingerprints, and open fingerprints are suppressed.
func (p *SuggestionProcessor) DesiredSuggestions(userID int64, in SuggestionInputs) []models.Suggestion {
	var out []models.Suggestion
	out = append(out, p.incomeCoverage(userID, in)...)
	out = append(out, p.subscriptionPriceChanges(userID, in)...)
	return out
}

func (p *SuggestionProcessor) incomeCoverage(userID int64, in SuggestionInputs) []models.Suggestion {
	var out []models.Suggestion
	for _, income := range in.Incomes {
		if !income.Amount.IsPositive() {
			continue
		}
		if coveredByRule(income.Source, in.Rules) {
			continue
		}
		fingerprint := fmt.Sprintf("income-allocation:%d", income.ID)
		if in.OpenFingerprints[fingerprint] {
			continue
		}
		out = append(out, models.Suggestion{
			UserID:      userID,
			Fingerprint: fingerprint,
			Kind:        models.KindIncomeAllocation,
			Status:      models.SuggestionOpen,
			Payload: models.MustPayload(models.AllocationProposal{
				IncomeID:     income.ID,
				IncomeSource: income.Source,
				Buckets:      proposeBuckets(in.MonthlyBillsTotal, income.Amount),
			}),
		})
	}
	return out
}

func coveredByRule(source string, rules []models.AllocationRule) bool {
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if RuleMatches(rule, source) {
			return true
		}
	}
	return false
}

// RuleMatches tests an allocation rule's pattern against an income source,
// case-insensitively. An invalid regex pattern is a non-match, never an
// error: a user's bad pattern must not abort the sweep.
func RuleMatches(rule models.AllocationRule, source string) bool {
	pattern := strings.ToLower(strings.TrimSpace(rule.Pattern))
	subject := strings.ToLower(source)
	if pattern == "" {
		return false
	}
	switch models.NormalizeMatchMode(string(rule.MatchMode)) {
	case models.MatchEquals:
		return subject == pattern
	case models.MatchStartsWith:
		return strings.HasPrefix(subject, pattern)
	case models.MatchEndsWith:
		return strings.HasSuffix(subject, pattern)
	case models.MatchRegex:
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(source)
	default:
		return strings.Contains(subject, pattern)
	}
}

// proposeBuckets derives a default essentials/buffer/flexible split from how
// much of the income the user's bills consume. Essentials is clamped to
// [20,70]%; buffer takes at least 10%; flexible gets the remainder. Shares
// that end up at or below zero are dropped.
func proposeBuckets(monthlyBillsTotal, incomeAmount decimal.Decimal) []models.AllocationBucket {
	essentials := 20
	if incomeAmount.IsPositive() {
		pct := int(monthlyBillsTotal.Div(incomeAmount).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
		essentials = pct
		if essentials < 20 {
			essentials = 20
		}
		if essentials > 70 {
			essentials = 70
		}
	}
	buffer := int(decimal.NewFromInt(int64(100 - essentials)).Mul(decimal.New(4, -1)).Round(0).IntPart())
	if buffer < 10 {
		buffer = 10
	}
	flexible := 100 - essentials - buffer

	var buckets []models.AllocationBucket
	for _, b := range []models.AllocationBucket{
		{Name: "essentials", Percent: essentials},
		{Name: "buffer", Percent: buffer},
		{Name: "flexible", Percent: flexible},
	} {
		if b.Percent > 0 {
			buckets = append(buckets, b)
		}
	}
	return buckets
}

func (p *SuggestionProcessor) subscriptionPriceChanges(userID int64, in SuggestionInputs) []models.Suggestion {
	var out []models.Suggestion
	for _, bill := range in.Bills {
		if !isSubscription(bill) {
			continue
		}

		prior, seen := in.LatestPrices[bill.ID]
		if !seen {
			fingerprint := fmt.Sprintf("subscription:%d:baseline:%s", bill.ID, bill.Amount.String())
			if in.OpenFingerprints[fingerprint] {
				continue
			}
			out = append(out, models.Suggestion{
				UserID:      userID,
				Fingerprint: fingerprint,
				Kind:        models.KindSubscriptionPrice,
				Status:      models.SuggestionOpen,
				Payload: models.MustPayload(models.PriceChangePayload{
					BillID:    bill.ID,
					BillName:  bill.Name,
					Currency:  bill.Currency,
					NewAmount: bill.Amount,
					Baseline:  true,
				}),
			})
			continue
		}

		delta := bill.Amount.Sub(prior.Amount)
		if delta.Abs().LessThan(priceEpsilon) {
			continue
		}

		fingerprint := fmt.Sprintf("subscription:%d:change:%s", bill.ID, bill.Amount.String())
		if in.OpenFingerprints[fingerprint] {
			continue
		}

		var deltaPct *decimal.Decimal
		if !prior.Amount.IsZero() {
			pct := delta.Div(prior.Amount).Mul(decimal.NewFromInt(100)).Round(2)
			deltaPct = &pct
		}
		previous := prior.Amount
		out = append(out, models.Suggestion{
			UserID:      userID,
			Fingerprint: fingerprint,
			Kind:        models.KindSubscriptionPrice,
			Status:      models.SuggestionOpen,
			Payload: models.MustPayload(models.PriceChangePayload{
				BillID:         bill.ID,
				BillName:       bill.Name,
				Currency:       bill.Currency,
				NewAmount:      bill.Amount,
				PreviousAmount: &previous,
				DeltaAmount:    &delta,
				DeltaPct:       deltaPct,
			}),
		})
	}
	return out
}

func isSubscription(bill models.Bill) bool {
	return bill.IsSubscription || strings.Contains(strings.ToLower(bill.Category), "subscription")
}
