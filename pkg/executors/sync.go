package executors

import (
	"fmt"

	"github.com/yurifrl/monzosync/pkg/lunchmoney"
	"github.com/yurifrl/monzosync/pkg/models"
	"github.com/yurifrl/monzosync/pkg/normalize"
	"github.com/yurifrl/monzosync/pkg/reconcile"
)

// Sync runs one full cycle: fetch every account's transactions, normalize
// and map them into the canonical set, partition against the store, insert
// and upload new transactions, and update changed ones both locally and in
// Lunch Money. The store write always happens before the sink call so a sink
// failure never leaves an uploaded transaction untracked.
func (e *Executor) Sync(daysLookback int, includePots bool) error {
	fetched, err := e.source.Fetch(e.lookups.Accounts, daysLookback, includePots)
	if err != nil {
		return fmt.Errorf("fetching transactions: %w", err)
	}

	total := 0
	for _, batch := range fetched {
		total += len(batch)
	}
	if total == 0 {
		e.logger.Info("no transactions fetched")
		return nil
	}
	e.logger.Debug("fetched transactions", "count", total, "accounts", len(fetched))

	normalizer := normalize.New(e.logger)
	var txs []models.Transaction
	for source, batch := range fetched {
		normalized, err := normalizer.NormalizeBatch(source, batch)
		if err != nil {
			return fmt.Errorf("normalizing %s transactions: %w", source, err)
		}
		txs = append(txs, normalized...)
	}

	mapper := normalize.NewMapper(e.logger, e.lookups.PotNames, e.lookups.CategoryReplacements, e.notifier)
	txs, err = mapper.Apply(txs)
	if err != nil {
		return fmt.Errorf("mapping transactions: %w", err)
	}

	table := e.config.Database.Table
	stored, err := e.store.SelectAll(table)
	if err != nil {
		return fmt.Errorf("loading stored transactions: %w", err)
	}

	report := reconcile.Build(txs, stored)

	if err := e.uploadNew(table, report.NewTransactions()); err != nil {
		return err
	}
	if err := e.updateChanged(table, report.ChangedTransactions()); err != nil {
		return err
	}

	e.logger.Info("sync complete",
		"new", report.NewCount(),
		"changed", report.ChangedCount(),
		"unchanged", report.InSyncCount())
	return nil
}

// uploadNew inserts the new transactions into the store, uploads them to
// Lunch Money, and records the sink-assigned id for every transaction the
// sink accepted. Declined transactions are inserted but never uploaded.
func (e *Executor) uploadNew(table string, newTxs []models.Transaction) error {
	if len(newTxs) == 0 {
		e.logger.Info("no new transactions to upload")
		return nil
	}

	rows := make([]models.StoredTransaction, 0, len(newTxs))
	for _, tx := range newTxs {
		rows = append(rows, models.StoredTransaction{Transaction: tx})
	}
	if err := e.store.Insert(table, rows); err != nil {
		return fmt.Errorf("inserting new transactions: %w", err)
	}

	payloads, err := lunchmoney.NewPayloads(newTxs, e.tables())
	if err != nil {
		return fmt.Errorf("building new transaction payloads: %w", err)
	}

	sinkIDs := e.sink.CreateTransactions(payloads, e.config.LunchMoney.ChunkSize)
	for externalID, lunchMoneyID := range sinkIDs {
		if err := e.store.SetLunchMoneyID(table, externalID, lunchMoneyID); err != nil {
			return fmt.Errorf("recording lunch money id: %w", err)
		}
	}

	e.logger.Info("new transactions uploaded to lunch money", "count", len(newTxs), "accepted", len(sinkIDs))
	return nil
}

// updateChanged supersedes the stored rows for changed transactions with a
// delete and reinsert, keeping each row's recorded Lunch Money id, then
// pushes an update-in-place for every one of them. An update failure is
// fatal: the error carries the sink id it was targeting.
func (e *Executor) updateChanged(table string, changed []models.Transaction) error {
	if len(changed) == 0 {
		e.logger.Info("no modified transactions to update")
		return nil
	}

	sinkIDs := make(map[string]int64, len(changed))
	rows := make([]models.StoredTransaction, 0, len(changed))
	ids := make([]string, 0, len(changed))
	for _, tx := range changed {
		id, err := e.store.LunchMoneyID(table, tx.ID)
		if err != nil {
			return fmt.Errorf("resolving lunch money id for %q: %w", tx.ID, err)
		}
		row := models.StoredTransaction{Transaction: tx, LunchMoneyID: id}
		if id != nil {
			sinkIDs[tx.ID] = *id
		}
		rows = append(rows, row)
		ids = append(ids, tx.ID)
	}

	payloads, err := lunchmoney.ChangedPayloads(changed, sinkIDs, e.tables())
	if err != nil {
		return fmt.Errorf("building changed transaction payloads: %w", err)
	}

	if err := e.store.Delete(table, ids); err != nil {
		return fmt.Errorf("deleting changed transactions: %w", err)
	}
	if err := e.store.Insert(table, rows); err != nil {
		return fmt.Errorf("reinserting changed transactions: %w", err)
	}

	for _, p := range payloads {
		if err := e.sink.UpdateTransaction(*p.LunchMoneyID, p); err != nil {
			return err
		}
	}

	e.logger.Info("modified transactions updated in lunch money", "count", len(changed))
	return nil
}

func (e *Executor) tables() lunchmoney.Tables {
	return lunchmoney.Tables{
		Categories: e.lookups.LunchMoneyCategories,
		Assets:     e.lookups.Assets,
	}
}
