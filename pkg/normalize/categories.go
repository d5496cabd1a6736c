package normalize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/yurifrl/monzosync/pkg/models"
)

// Categories is the full set of category names transactions are allowed to
// carry. A fetched transaction whose formatted category is not in this list
// is dropped and alerted on rather than pushed downstream.
var Categories = []string{
	"Education",
	"Clothes",
	"Withdrawals",
	"Gym",
	"Hotels",
	"Healthcare",
	"ISA",
	"Bills",
	"Entertainment",
	"Transfers",
	"Eating Out",
	"Savings",
	"Travel",
	"Subscriptions",
	"Groceries",
	"Income",
	"Gifts",
	"Home",
	"Crypto",
	"Pets",
	"Transport",
	"Fees",
	"Shopping",
}

// Notifier delivers out-of-band alerts for records the mapper rejects.
type Notifier interface {
	Notify(message string) error
}

// Mapper turns normalized records from every source account into the single
// canonical record set: pot account ids become readable names, category
// codes become display names, dates are truncated to calendar dates with the
// full timestamp kept for ordering, and records with unknown categories are
// dropped with an alert.
type Mapper struct {
	logger       *log.Logger
	potNames     map[string]string
	replacements map[string]string
	notifier     Notifier
	title        cases.Caser
}

func NewMapper(logger *log.Logger, potNames, replacements map[string]string, notifier Notifier) *Mapper {
	return &Mapper{
		logger:       logger,
		potNames:     potNames,
		replacements: replacements,
		notifier:     notifier,
		title:        cases.Title(language.English),
	}
}

// Apply runs the mapping passes in order and returns the filtered, sorted
// canonical set. The date-ascending sort is only a staging pass; the
// timestamp-descending sort at the end is the order callers see.
func (m *Mapper) Apply(txs []models.Transaction) ([]models.Transaction, error) {
	m.logger.Debug("mapping transactions", "count", len(txs))

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date < txs[j].Date })

	for i := range txs {
		m.mapPotAccount(&txs[i])
		replacePBDescription(&txs[i])
		if err := deriveDates(&txs[i]); err != nil {
			return nil, err
		}
		m.formatCategory(&txs[i])
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Timestamp > txs[j].Timestamp })

	txs = m.dropUnknownCategories(txs)

	m.logger.Debug("mapped transactions", "count", len(txs))
	return txs, nil
}

// mapPotAccount swaps a pot-account id appearing as the description for the
// pot's configured name. Anything that is not a known pot id passes through.
func (m *Mapper) mapPotAccount(tx *models.Transaction) {
	if name, ok := m.potNames[tx.Description]; ok {
		tx.Description = name
	}
}

// replacePBDescription overrides the description with the notes for records
// using the "PB" external-transfer notation, where the notes hold the actual
// counterparty.
func replacePBDescription(tx *models.Transaction) {
	if strings.HasPrefix(tx.Description, "PB") {
		tx.Description = tx.Notes
	}
}

// deriveDates keeps the full timestamp for ordering and truncates the date
// to calendar-day granularity. Both end up as plain strings so rows
// serialize the same way everywhere downstream.
func deriveDates(tx *models.Transaction) error {
	ts, err := parseDate(tx.Date)
	if err != nil {
		return fmt.Errorf("parsing date of transaction %q: %w", tx.ID, err)
	}
	tx.Timestamp = ts.Format(time.RFC3339)
	tx.Date = ts.Format("2006-01-02")
	return nil
}

func parseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", s)
}

// formatCategory substitutes known category codes with their display names,
// then turns the remaining code style into words: underscores become spaces
// and each word is title-cased.
func (m *Mapper) formatCategory(tx *models.Transaction) {
	if repl, ok := m.replacements[tx.Category]; ok {
		tx.Category = repl
	}
	tx.Category = m.title.String(strings.ReplaceAll(tx.Category, "_", " "))
}

// dropUnknownCategories removes records whose category is not in the known
// set. The drop is non-fatal: one alert listing every rejected record goes
// out and the rest of the batch continues.
func (m *Mapper) dropUnknownCategories(txs []models.Transaction) []models.Transaction {
	known := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		known[c] = true
	}

	kept := make([]models.Transaction, 0, len(txs))
	var dropped []string
	for _, tx := range txs {
		if known[tx.Category] {
			kept = append(kept, tx)
			continue
		}
		dropped = append(dropped, fmt.Sprintf("(%s, %s, %s, %s, %s, %t)",
			tx.ID, tx.Date, tx.Category, tx.Description, tx.Source, tx.Decline))
	}

	if len(dropped) > 0 {
		message := fmt.Sprintf("%d or more undefined category in transactions: [%s]",
			len(dropped), strings.Join(dropped, ", "))
		if err := m.notifier.Notify(message); err != nil {
			m.logger.Error("failed to send unknown category alert", "error", err)
		}
		m.logger.Warn("there are rows with unknown categories - omitting these transactions", "count", len(dropped))
	}

	return kept
}
