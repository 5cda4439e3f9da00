package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AllocationBucket is one proposed budget bucket inside an
// income-allocation suggestion payload.
type AllocationBucket struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
}

// AllocationProposal is the payload of an income_allocation suggestion.
type AllocationProposal struct {
	IncomeID     int64              `json:"income_id"`
	IncomeSource string             `json:"income_source"`
	Buckets      []AllocationBucket `json:"buckets"`
}

// PriceChangePayload is the payload of a subscription_price suggestion.
// Baseline observations carry only BillID/BillName/NewAmount.
type PriceChangePayload struct {
	BillID         int64            `json:"bill_id"`
	BillName       string           `json:"bill_name"`
	Currency       string           `json:"currency"`
	NewAmount      decimal.Decimal  `json:"new_amount"`
	PreviousAmount *decimal.Decimal `json:"previous_amount,omitempty"`
	DeltaAmount    *decimal.Decimal `json:"delta_amount,omitempty"`
	DeltaPct       *decimal.Decimal `json:"delta_pct,omitempty"`
	Baseline       bool             `json:"baseline"`
}

// MustPayload marshals a suggestion payload. Marshalling these types cannot
// fail; an empty object is returned if it somehow does.
func MustPayload(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

// DecodePayload tolerantly decodes a stored payload. Malformed JSON resolves
// to an empty object so downstream aggregation always has something to show.
func DecodePayload(raw json.RawMessage) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
