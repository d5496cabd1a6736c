package normalize

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/monzosync/pkg/models"
)

// Normalizer flattens raw Monzo transactions into canonical records. The
// steps run in a fixed order: flatten the nested meta and merchant objects,
// rename the colliding fields, format amounts, resolve the currency and
// amount against the local currency, derive the decline flag, backfill
// fields the source account variant never populates, prefer the merchant
// name over the wire description, and rename suggested_tags to tags.
type Normalizer struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// flatRecord is the intermediate shape after flattening and renaming, before
// amounts and currencies are resolved. The merchant's id and category keep
// the merchant_ prefix so they cannot shadow the transaction's own.
type flatRecord struct {
	id                  string
	date                string
	description         string
	merchantID          string
	merchantCategory    string
	merchantDescription string
	amount              int64
	localAmount         int64
	currency            string
	localCurrency       string
	notes               string
	category            string
	declineReason       string
	suggestedTags       string
	source              string
}

// NormalizeBatch converts one account's raw batch into canonical records,
// labelled with the account's source name.
func (n *Normalizer) NormalizeBatch(source string, raws []models.RawTransaction) ([]models.Transaction, error) {
	n.logger.Debug("normalizing batch", "source", source, "count", len(raws))

	out := make([]models.Transaction, 0, len(raws))
	for _, raw := range raws {
		flat, err := flatten(raw, source)
		if err != nil {
			return nil, fmt.Errorf("flattening transaction %q: %w", raw.ID, err)
		}
		out = append(out, resolve(flat))
	}
	return out, nil
}

// flatten expands the nested merchant object into top-level fields. A
// missing id or amount means the record cannot be reconciled or priced and
// is a hard failure; a missing or malformed merchant just leaves the
// merchant fields empty.
func flatten(raw models.RawTransaction, source string) (flatRecord, error) {
	if raw.ID == "" {
		return flatRecord{}, fmt.Errorf("missing id")
	}
	if raw.Amount == nil {
		return flatRecord{}, fmt.Errorf("missing amount")
	}

	f := flatRecord{
		id:            raw.ID,
		date:          raw.Created,
		description:   raw.Description,
		amount:        *raw.Amount,
		localAmount:   *raw.Amount,
		currency:      raw.Currency,
		localCurrency: raw.LocalCurrency,
		notes:         raw.Notes,
		category:      raw.Category,
		declineReason: raw.DeclineReason,
		suggestedTags: raw.SuggestedTags,
		source:        source,
	}
	if raw.LocalAmount != nil {
		f.localAmount = *raw.LocalAmount
	}
	if raw.LocalCurrency == "" {
		f.localCurrency = raw.Currency
	}
	if raw.Merchant != nil {
		f.merchantID = raw.Merchant.ID
		f.merchantCategory = raw.Merchant.Category
		f.merchantDescription = raw.Merchant.Name
	}
	if f.suggestedTags == "" {
		// Older Monzo payloads carry suggested_tags inside metadata.
		if tags, ok := raw.Metadata["suggested_tags"].(string); ok {
			f.suggestedTags = tags
		}
	}
	return f, nil
}

// resolve applies the value-level transformations: minor units become major
// units with spend positive, the local amount and currency win whenever the
// local currency is not GBP, decline derives from decline_reason, and the
// merchant name replaces the description when present.
func resolve(f flatRecord) models.Transaction {
	amount := decimal.New(-f.amount, -2)
	currency := strings.ToLower(f.currency)
	if f.localCurrency != "GBP" {
		amount = decimal.New(-f.localAmount, -2)
		currency = strings.ToLower(f.localCurrency)
	}

	description := f.description
	if f.merchantDescription != "" {
		description = f.merchantDescription
	}

	return models.Transaction{
		ID:            f.id,
		Date:          f.date,
		Description:   description,
		Amount:        amount,
		Currency:      currency,
		Category:      f.category,
		Notes:         f.notes,
		DeclineReason: f.declineReason,
		Decline:       f.declineReason != "",
		Tags:          f.suggestedTags,
		Source:        f.source,
	}
}
