package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/money"
	"github.com/username/ledgerly/backend/src/storage"
)

type ledgerServiceImpl struct {
	store        storage.Store
	converter    *money.Converter
	fx           FxService
	audit        AuditService
	baseFallback string
	now          func() int64
}

func NewLedgerService(store storage.Store, converter *money.Converter, fx FxService, audit AuditService, baseFallback string) LedgerService {
	return &ledgerServiceImpl{
		store:        store,
		converter:    converter,
		fx:           fx,
		audit:        audit,
		baseFallback: baseFallback,
		now:          func() int64 { return time.Now().UnixMilli() },
	}
}

// PostPurchase validates the input, allocates the purchase across its splits
// in integer minor units and writes the purchase plus its double-sided ledger
// entry in one transaction. The funding credit line and the allocation debit
// lines always sum to exactly zero.
func (s *ledgerServiceImpl) PostPurchase(ctx context.Context, userID int64, input PurchaseInput) (*models.PurchasePosting, error) {
	merchant := strings.TrimSpace(input.Merchant)
	if merchant == "" {
		return nil, ErrMissingMerchant
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	currency := money.NormalizeCurrency(input.Currency)
	totalMinor := s.converter.ToMinorUnits(input.Amount, currency)
	if totalMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	accounts, err := s.store.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	known := make(map[int64]bool, len(accounts))
	for _, acct := range accounts {
		known[acct.ID] = true
	}
	if !known[input.AccountID] {
		return nil, fmt.Errorf("funding account %d: %w", input.AccountID, ErrUnknownAccount)
	}

	splits := input.Splits
	if len(splits) == 0 {
		splits = []PurchaseSplit{{Label: merchant, Weight: decimal.NewFromInt(1)}}
	}
	weights := make([]decimal.Decimal, len(splits))
	for i, split := range splits {
		if split.Weight.IsNegative() {
			return nil, fmt.Errorf("split %d weight: %w", i+1, ErrInvalidAmount)
		}
		if split.AccountID != nil && !known[*split.AccountID] {
			return nil, fmt.Errorf("split account %d: %w", *split.AccountID, ErrUnknownAccount)
		}
		weights[i] = split.Weight
	}
	shares := s.converter.SplitAllocate(input.Amount, currency, weights)

	prefs, err := s.store.UserPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	dash, err := s.store.DashboardPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading dashboard preferences: %w", err)
	}
	baseCurrency := models.EffectiveBaseCurrency("", prefs, dash, s.baseFallback)
	quotes := s.fx.Quotes(ctx)

	nowMs := s.now()
	purchase := models.Purchase{
		UserID:      userID,
		Merchant:    merchant,
		AmountMinor: totalMinor,
		Currency:    currency,
		AccountID:   input.AccountID,
		Fx:          s.snapshot(input.Amount, currency, baseCurrency, quotes),
		CreatedAt:   nowMs,
	}

	fundingAccount := input.AccountID
	lines := make([]models.LedgerLine, 0, len(shares)+1)
	lines = append(lines, models.LedgerLine{
		Direction:   models.DirectionCredit,
		AmountMinor: -totalMinor,
		Currency:    currency,
		AccountID:   &fundingAccount,
		Label:       "funding",
		Fx:          s.snapshotMinor(-totalMinor, currency, baseCurrency, quotes),
	})
	for i, share := range shares {
		label := strings.TrimSpace(splits[i].Label)
		if label == "" {
			label = fmt.Sprintf("split %d", i+1)
		}
		lines = append(lines, models.LedgerLine{
			Direction:   models.DirectionDebit,
			AmountMinor: share,
			Currency:    currency,
			AccountID:   splits[i].AccountID,
			Label:       label,
			Fx:          s.snapshotMinor(share, currency, baseCurrency, quotes),
		})
	}

	entry := models.LedgerEntry{
		UserID:      userID,
		AmountMinor: -totalMinor,
		Currency:    currency,
		CreatedAt:   nowMs,
		Lines:       lines,
	}

	if err := s.store.InsertPosting(ctx, &purchase, &entry); err != nil {
		return nil, fmt.Errorf("persisting posting: %w", err)
	}

	s.audit.Record(ctx, models.AuditRecord{
		UserID: userID,
		Action: "purchase.posted",
		Detail: fmt.Sprintf("purchase=%d merchant=%q amount_minor=%d %s lines=%d", purchase.ID, merchant, totalMinor, currency, len(lines)),
	})
	return &models.PurchasePosting{Purchase: purchase, Entry: entry}, nil
}

func (s *ledgerServiceImpl) snapshot(amount decimal.Decimal, from, base string, quotes map[string]money.FxQuote) models.FxSnapshot {
	conv := s.converter.Convert(amount, from, base, quotes)
	return models.FxSnapshot{
		BaseMinor:    s.converter.ToMinorUnits(conv.Amount.Value, base),
		BaseCurrency: base,
		Rate:         conv.Rate,
		AsOf:         conv.AsOf,
		Source:       conv.Source,
		Synthetic:    conv.Synthetic,
	}
}

func (s *ledgerServiceImpl) snapshotMinor(minor int64, from, base string, quotes map[string]money.FxQuote) models.FxSnapshot {
	return s.snapshot(s.converter.FromMinorUnits(minor, from), from, base, quotes)
}
