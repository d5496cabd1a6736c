package executors

import (
	"github.com/charmbracelet/log"

	"github.com/yurifrl/monzosync/pkg/config"
	"github.com/yurifrl/monzosync/pkg/lunchmoney"
	"github.com/yurifrl/monzosync/pkg/models"
	"github.com/yurifrl/monzosync/pkg/notify"
)

// Source fetches raw transactions for every configured account.
type Source interface {
	Fetch(accounts *config.SourceAccounts, daysLookback int, includePots bool) (map[string][]models.RawTransaction, error)
}

// Store is the local transaction database.
type Store interface {
	SelectAll(table string) ([]models.StoredTransaction, error)
	Insert(table string, rows []models.StoredTransaction) error
	Delete(table string, ids []string) error
	LunchMoneyID(table, externalID string) (*int64, error)
	SetLunchMoneyID(table, externalID string, lunchMoneyID int64) error
}

// Sink is the Lunch Money transactions API.
type Sink interface {
	CreateTransactions(payloads []lunchmoney.Payload, chunkSize int) map[string]int64
	UpdateTransaction(id int64, p lunchmoney.Payload) error
}

// Executor sequences a sync cycle across the source, the store and the
// sink.
type Executor struct {
	logger   *log.Logger
	config   *config.Config
	lookups  *config.Lookups
	store    Store
	source   Source
	sink     Sink
	notifier notify.Notifier
}

func New(logger *log.Logger, cfg *config.Config, lookups *config.Lookups, store Store, source Source, sink Sink, notifier notify.Notifier) *Executor {
	return &Executor{
		logger:   logger,
		config:   cfg,
		lookups:  lookups,
		store:    store,
		source:   source,
		sink:     sink,
		notifier: notifier,
	}
}
