package services

import (
	"context"
	"testing"
)

func TestFxQuotesLoadedAndCached(t *testing.T) {
	store, db := openTestStore(t)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO fx_rates (currency, rate, as_of, source) VALUES ('EUR', '0.92', 1000, 'ecb'), ('JPY', '150', 1500, 'ecb')`); err != nil {
		t.Fatalf("seeding quotes: %v", err)
	}

	fx := NewFxService(store)
	quotes := fx.Quotes(ctx)
	if len(quotes) != 2 {
		t.Fatalf("got %d quotes, want 2", len(quotes))
	}
	if !quotes["EUR"].Rate.Equal(dec("0.92")) || quotes["EUR"].AsOf != 1000 || quotes["EUR"].Source != "ecb" {
		t.Errorf("EUR quote = %+v", quotes["EUR"])
	}

	// Same-day calls serve the cached table even after the rows change.
	if _, err := db.Exec(`DELETE FROM fx_rates`); err != nil {
		t.Fatalf("clearing quotes: %v", err)
	}
	again := fx.Quotes(ctx)
	if len(again) != 2 {
		t.Errorf("got %d quotes after delete, want the 2 cached ones", len(again))
	}
}

func TestFxQuotesStoreFailureDegrades(t *testing.T) {
	store, db := openTestStore(t)
	db.Close()

	fx := NewFxService(store)
	quotes := fx.Quotes(context.Background())
	if quotes == nil {
		t.Fatal("quotes is nil, want an empty map")
	}
	if len(quotes) != 0 {
		t.Errorf("got %d quotes from a closed store, want 0", len(quotes))
	}
}
