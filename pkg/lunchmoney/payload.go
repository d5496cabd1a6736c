package lunchmoney

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/monzosync/pkg/models"
)

// Payload is the transaction shape the Lunch Money API expects. Payee and
// Notes are pointers so blank values serialize as null instead of "".
// LunchMoneyID is only set on update payloads, where it targets the
// update-in-place call.
type Payload struct {
	LunchMoneyID *int64          `json:"lunch_money_id,omitempty"`
	Date         string          `json:"date"`
	Payee        *string         `json:"payee"`
	Amount       decimal.Decimal `json:"amount"`
	Notes        *string         `json:"notes"`
	CategoryID   int64           `json:"category_id"`
	Tags         []string        `json:"tags"`
	ExternalID   string          `json:"external_id"`
	AssetID      int             `json:"asset_id"`
	Currency     string          `json:"currency"`
}

// Tables holds the Lunch Money side of the configuration: which category id
// and which asset id each canonical category name and source account maps
// to.
type Tables struct {
	Categories map[string]int64
	Assets     map[string]int
}

var hashtagRe = regexp.MustCompile(`#(\w+)`)

// NewPayloads builds create payloads for new transactions. Declined
// transactions are never pushed to Lunch Money, so they are filtered out
// here; they stay tracked in the store regardless.
func NewPayloads(txs []models.Transaction, tables Tables) ([]Payload, error) {
	out := make([]Payload, 0, len(txs))
	for _, tx := range txs {
		if tx.Decline {
			continue
		}
		p, err := build(tx, tables)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ChangedPayloads builds update payloads for changed transactions. Unlike
// the create path it keeps declined transactions, and every payload must
// carry the sink-assigned id resolved from the store: an update without one
// cannot be targeted and means local state has drifted.
func ChangedPayloads(txs []models.Transaction, sinkIDs map[string]int64, tables Tables) ([]Payload, error) {
	out := make([]Payload, 0, len(txs))
	for _, tx := range txs {
		p, err := build(tx, tables)
		if err != nil {
			return nil, err
		}
		id, ok := sinkIDs[tx.ID]
		if !ok {
			return nil, fmt.Errorf("no lunch money id recorded for changed transaction %q", tx.ID)
		}
		p.LunchMoneyID = &id
		out = append(out, p)
	}
	return out, nil
}

// build maps one canonical transaction to the sink shape. An unmapped
// category or source is configuration drift between the known-category set
// and what Lunch Money has registered, and has to abort rather than mis-map.
func build(tx models.Transaction, tables Tables) (Payload, error) {
	categoryID, ok := tables.Categories[tx.Category]
	if !ok {
		return Payload{}, fmt.Errorf("category %q of transaction %q has no lunch money category id", tx.Category, tx.ID)
	}
	assetID, ok := tables.Assets[tx.Source]
	if !ok {
		return Payload{}, fmt.Errorf("source %q of transaction %q has no lunch money asset id", tx.Source, tx.ID)
	}

	return Payload{
		Date:       tx.Date,
		Payee:      blankToNil(tx.Description),
		Amount:     tx.Amount,
		Notes:      blankToNil(tx.Notes),
		CategoryID: categoryID,
		Tags:       extractTags(tx.Tags),
		ExternalID: tx.ID,
		AssetID:    assetID,
		Currency:   tx.Currency,
	}, nil
}

// extractTags pulls the first hashtag out of the free-text tags field. At
// most one tag survives; free text without a hashtag yields an empty list.
func extractTags(text string) []string {
	if m := hashtagRe.FindStringSubmatch(text); m != nil {
		return []string{"#" + m[1]}
	}
	return []string{}
}

func blankToNil(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
