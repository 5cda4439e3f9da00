package processors

import (
	"encoding/json"
	"testing"

	"github.com/username/ledgerly/backend/src/models"
)

func TestIncomeCoverageSuggestion(t *testing.T) {
	p := NewSuggestionProcessor()

	in := SuggestionInputs{
		Incomes:           []models.Income{{ID: 1, Source: "Acme Salary", Amount: dec("3000")}},
		MonthlyBillsTotal: dec("1500"),
	}

	suggestions := p.DesiredSuggestions(42, in)
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}
	s := suggestions[0]
	if s.Fingerprint != "income-allocation:1" {
		t.Errorf("Fingerprint = %q, want income-allocation:1", s.Fingerprint)
	}
	if s.Kind != models.KindIncomeAllocation || s.Status != models.SuggestionOpen {
		t.Errorf("Kind/Status = %s/%s", s.Kind, s.Status)
	}

	var proposal models.AllocationProposal
	if err := json.Unmarshal(s.Payload, &proposal); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	// bills/income = 50% essentials, 40% of the rest buffered = 20, flexible 30
	want := []models.AllocationBucket{
		{Name: "essentials", Percent: 50},
		{Name: "buffer", Percent: 20},
		{Name: "flexible", Percent: 30},
	}
	if len(proposal.Buckets) != len(want) {
		t.Fatalf("Buckets = %+v, want %+v", proposal.Buckets, want)
	}
	for i := range want {
		if proposal.Buckets[i] != want[i] {
			t.Errorf("Buckets[%d] = %+v, want %+v", i, proposal.Buckets[i], want[i])
		}
	}
}

func TestIncomeCoverageSuppression(t *testing.T) {
	p := NewSuggestionProcessor()
	income := models.Income{ID: 1, Source: "Acme Salary", Amount: dec("3000")}

	t.Run("covered by rule", func(t *testing.T) {
		in := SuggestionInputs{
			Incomes: []models.Income{income},
			Rules:   []models.AllocationRule{{Pattern: "acme", MatchMode: models.MatchContains, Enabled: true}},
		}
		if got := p.DesiredSuggestions(42, in); len(got) != 0 {
			t.Errorf("covered income still produced suggestions: %+v", got)
		}
	})

	t.Run("disabled rule does not cover", func(t *testing.T) {
		in := SuggestionInputs{
			Incomes: []models.Income{income},
			Rules:   []models.AllocationRule{{Pattern: "acme", MatchMode: models.MatchContains, Enabled: false}},
		}
		if got := p.DesiredSuggestions(42, in); len(got) != 1 {
			t.Errorf("disabled rule should not cover: got %d suggestions", len(got))
		}
	})

	t.Run("open fingerprint suppressed", func(t *testing.T) {
		in := SuggestionInputs{
			Incomes:          []models.Income{income},
			OpenFingerprints: map[string]bool{"income-allocation:1": true},
		}
		if got := p.DesiredSuggestions(42, in); len(got) != 0 {
			t.Errorf("open fingerprint re-emitted: %+v", got)
		}
	})

	t.Run("non-positive income skipped", func(t *testing.T) {
		in := SuggestionInputs{Incomes: []models.Income{{ID: 2, Source: "Old Job", Amount: dec("0")}}}
		if got := p.DesiredSuggestions(42, in); len(got) != 0 {
			t.Errorf("zero income produced suggestions: %+v", got)
		}
	})
}

func TestRuleMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		mode    models.MatchMode
		source  string
		want    bool
	}{
		{"contains hit", "salary", models.MatchContains, "Acme Salary", true},
		{"contains miss", "rent", models.MatchContains, "Acme Salary", false},
		{"equals case-insensitive", "acme salary", models.MatchEquals, "ACME Salary", true},
		{"starts with", "acme", models.MatchStartsWith, "Acme Salary", true},
		{"ends with", "salary", models.MatchEndsWith, "Acme Salary", true},
		{"regex", "^acme.*y$", models.MatchRegex, "Acme Salary", true},
		{"invalid regex is a non-match", "[unclosed", models.MatchRegex, "Acme Salary", false},
		{"empty pattern never matches", "", models.MatchContains, "Acme Salary", false},
		{"unknown mode defaults to contains", "salary", models.MatchMode("fuzzy"), "Acme Salary", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := models.AllocationRule{Pattern: tt.pattern, MatchMode: tt.mode, Enabled: true}
			if got := RuleMatches(rule, tt.source); got != tt.want {
				t.Errorf("RuleMatches(%q, %s, %q) = %v, want %v", tt.pattern, tt.mode, tt.source, got, tt.want)
			}
		})
	}
}

func TestProposeBucketsClamping(t *testing.T) {
	tests := []struct {
		name       string
		bills      string
		income     string
		essentials int
		buffer     int
		flexible   int
	}{
		{"low bills clamp to 20", "100", "3000", 20, 32, 48},
		{"high bills clamp to 70", "2900", "3000", 70, 12, 18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := proposeBuckets(dec(tt.bills), dec(tt.income))
			if len(buckets) != 3 {
				t.Fatalf("got %d buckets: %+v", len(buckets), buckets)
			}
			if buckets[0].Percent != tt.essentials || buckets[1].Percent != tt.buffer || buckets[2].Percent != tt.flexible {
				t.Errorf("buckets = %+v, want %d/%d/%d", buckets, tt.essentials, tt.buffer, tt.flexible)
			}
			total := 0
			for _, b := range buckets {
				total += b.Percent
			}
			if total != 100 {
				t.Errorf("bucket percents sum to %d, want 100", total)
			}
		})
	}
}

func subscriptionBill(id int64, amount string) models.Bill {
	return models.Bill{ID: id, Name: "Streaming", Amount: dec(amount), Currency: "USD", IsSubscription: true}
}

func TestSubscriptionBaseline(t *testing.T) {
	p := NewSuggestionProcessor()

	in := SuggestionInputs{Bills: []models.Bill{subscriptionBill(5, "9.99")}}
	suggestions := p.DesiredSuggestions(42, in)
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}
	s := suggestions[0]
	if s.Fingerprint != "subscription:5:baseline:9.99" {
		t.Errorf("Fingerprint = %q", s.Fingerprint)
	}

	var payload models.PriceChangePayload
	if err := json.Unmarshal(s.Payload, &payload); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if !payload.Baseline || payload.PreviousAmount != nil || !payload.NewAmount.Equal(dec("9.99")) {
		t.Errorf("payload = %+v, want baseline with 9.99", payload)
	}
}

func TestSubscriptionPriceChange(t *testing.T) {
	p := NewSuggestionProcessor()

	in := SuggestionInputs{
		Bills: []models.Bill{subscriptionBill(5, "11.99")},
		LatestPrices: map[int64]models.SubscriptionPrice{
			5: {BillID: 5, Amount: dec("9.99")},
		},
	}
	suggestions := p.DesiredSuggestions(42, in)
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}
	s := suggestions[0]
	if s.Fingerprint != "subscription:5:change:11.99" {
		t.Errorf("Fingerprint = %q", s.Fingerprint)
	}

	var payload models.PriceChangePayload
	if err := json.Unmarshal(s.Payload, &payload); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if payload.PreviousAmount == nil || !payload.PreviousAmount.Equal(dec("9.99")) {
		t.Errorf("PreviousAmount = %v, want 9.99", payload.PreviousAmount)
	}
	if payload.DeltaAmount == nil || !payload.DeltaAmount.Equal(dec("2.00")) {
		t.Errorf("DeltaAmount = %v, want 2.00", payload.DeltaAmount)
	}
	if payload.DeltaPct == nil || !payload.DeltaPct.Equal(dec("20.02")) {
		t.Errorf("DeltaPct = %v, want 20.02", payload.DeltaPct)
	}
}

func TestSubscriptionPriceEdges(t *testing.T) {
	p := NewSuggestionProcessor()

	t.Run("sub-epsilon delta ignored", func(t *testing.T) {
		in := SuggestionInputs{
			Bills:        []models.Bill{subscriptionBill(5, "9.994")},
			LatestPrices: map[int64]models.SubscriptionPrice{5: {BillID: 5, Amount: dec("9.99")}},
		}
		if got := p.DesiredSuggestions(42, in); len(got) != 0 {
			t.Errorf("sub-epsilon delta produced suggestions: %+v", got)
		}
	})

	t.Run("one cent change gets a new fingerprint", func(t *testing.T) {
		prior := map[int64]models.SubscriptionPrice{5: {BillID: 5, Amount: dec("9.99")}}
		first := p.DesiredSuggestions(42, SuggestionInputs{
			Bills: []models.Bill{subscriptionBill(5, "10.99")}, LatestPrices: prior})
		second := p.DesiredSuggestions(42, SuggestionInputs{
			Bills: []models.Bill{subscriptionBill(5, "11.00")}, LatestPrices: prior})
		if len(first) != 1 || len(second) != 1 {
			t.Fatalf("got %d/%d suggestions", len(first), len(second))
		}
		if first[0].Fingerprint == second[0].Fingerprint {
			t.Errorf("fingerprints should differ: %q", first[0].Fingerprint)
		}
	})

	t.Run("zero prior omits percent", func(t *testing.T) {
		in := SuggestionInputs{
			Bills:        []models.Bill{subscriptionBill(5, "4.99")},
			LatestPrices: map[int64]models.SubscriptionPrice{5: {BillID: 5, Amount: dec("0")}},
		}
		got := p.DesiredSuggestions(42, in)
		if len(got) != 1 {
			t.Fatalf("got %d suggestions, want 1", len(got))
		}
		var payload models.PriceChangePayload
		if err := json.Unmarshal(got[0].Payload, &payload); err != nil {
			t.Fatalf("unmarshalling payload: %v", err)
		}
		if payload.DeltaPct != nil {
			t.Errorf("DeltaPct = %v, want nil for a zero prior", payload.DeltaPct)
		}
	})

	t.Run("category marks subscription", func(t *testing.T) {
		bill := models.Bill{ID: 6, Name: "Gym", Amount: dec("30"), Currency: "USD", Category: "Subscriptions"}
		got := p.DesiredSuggestions(42, SuggestionInputs{Bills: []models.Bill{bill}})
		if len(got) != 1 {
			t.Errorf("category-tagged bill not treated as subscription: %+v", got)
		}
	})

	t.Run("non-subscription ignored", func(t *testing.T) {
		bill := models.Bill{ID: 7, Name: "Rent", Amount: dec("1200"), Currency: "USD", Category: "Housing"}
		if got := p.DesiredSuggestions(42, SuggestionInputs{Bills: []models.Bill{bill}}); len(got) != 0 {
			t.Errorf("non-subscription produced suggestions: %+v", got)
		}
	})
}
