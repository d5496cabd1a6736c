package models

import "github.com/shopspring/decimal"

// RawMerchant is the nested merchant object Monzo returns when the
// transaction list is fetched with merchant expansion.
type RawMerchant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// RawTransaction is a transaction exactly as fetched from the Monzo API for
// one source account. Amounts are integer minor units with debits negative.
// Amount and LocalAmount are pointers so that a response missing them can be
// rejected instead of silently treated as zero.
type RawTransaction struct {
	ID            string         `json:"id"`
	Created       string         `json:"created"`
	Description   string         `json:"description"`
	Amount        *int64         `json:"amount"`
	Currency      string         `json:"currency"`
	LocalAmount   *int64         `json:"local_amount"`
	LocalCurrency string         `json:"local_currency"`
	Notes         string         `json:"notes"`
	Category      string         `json:"category"`
	DeclineReason string         `json:"decline_reason"`
	SuggestedTags string         `json:"suggested_tags"`
	Metadata      map[string]any `json:"metadata"`
	Merchant      *RawMerchant   `json:"merchant"`
}

// Transaction is the canonical record the pipeline works with after
// normalization. Amount is in major currency units with spend positive.
// Date holds the raw timestamp until the mapper truncates it to a calendar
// date and derives Timestamp from it.
type Transaction struct {
	ID            string
	Date          string
	Timestamp     string
	Description   string
	Amount        decimal.Decimal
	Currency      string
	Category      string
	Notes         string
	DeclineReason string
	Decline       bool
	Tags          string
	Source        string
}

// TrackedEquals reports whether every field considered for change detection
// matches. Timestamp is excluded: it is derived from Date during mapping, so
// it cannot differ on its own.
func (t Transaction) TrackedEquals(o Transaction) bool {
	return t.Date == o.Date &&
		t.Description == o.Description &&
		t.Amount.Equal(o.Amount) &&
		t.Currency == o.Currency &&
		t.Category == o.Category &&
		t.Notes == o.Notes &&
		t.DeclineReason == o.DeclineReason &&
		t.Decline == o.Decline &&
		t.Tags == o.Tags &&
		t.Source == o.Source
}

// StoredTransaction is a row of the local transactions table. LunchMoneyID
// is nil until the first successful upload reports the sink-assigned id.
type StoredTransaction struct {
	Transaction
	LunchMoneyID *int64
}
