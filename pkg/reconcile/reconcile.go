// Package reconcile partitions a fetched canonical record set against the
// rows already persisted for the same table. It is pure and stateless so the
// CLI executor and tests can share it without touching the store or the
// Lunch Money API.
package reconcile

import (
	"github.com/yurifrl/monzosync/pkg/models"
)

// Status indicates the reconciliation result for a fetched transaction.
//
//   - Synced:  present in the store with identical tracked fields.
//   - New:     id absent from the store, needs to be created.
//   - Changed: id present but at least one tracked field differs, needs an
//     update-in-place.
type Status int

const (
	Synced Status = iota
	New
	Changed
)

// Entry links a fetched transaction with its stored counterpart (if any) and
// records the reconciliation status.
type Entry struct {
	Fetched models.Transaction
	Stored  *models.StoredTransaction // nil when Status == New
	Status  Status
}

// Report is the partitioned result produced by Build.
type Report struct {
	Items    []Entry
	toCreate []models.Transaction
	toUpdate []models.Transaction
	inSync   int
}

// Build walks the fetched transactions and classifies each against the
// stored rows, indexed by id. A record is New or Changed, never both: the id
// either exists in the store or it does not.
func Build(fetched []models.Transaction, stored []models.StoredTransaction) *Report {
	idx := make(map[string]*models.StoredTransaction, len(stored))
	for i := range stored {
		idx[stored[i].ID] = &stored[i]
	}

	r := &Report{Items: make([]Entry, 0, len(fetched))}
	for _, tx := range fetched {
		row, ok := idx[tx.ID]
		switch {
		case !ok:
			r.Items = append(r.Items, Entry{Fetched: tx, Status: New})
			r.toCreate = append(r.toCreate, tx)
		case !tx.TrackedEquals(row.Transaction):
			r.Items = append(r.Items, Entry{Fetched: tx, Stored: row, Status: Changed})
			r.toUpdate = append(r.toUpdate, tx)
		default:
			r.Items = append(r.Items, Entry{Fetched: tx, Stored: row, Status: Synced})
			r.inSync++
		}
	}
	return r
}

// NewTransactions returns the fetched transactions absent from the store.
func (r *Report) NewTransactions() []models.Transaction {
	return r.toCreate
}

// ChangedTransactions returns the fetched transactions whose stored row has
// drifted from the fetched values.
func (r *Report) ChangedTransactions() []models.Transaction {
	return r.toUpdate
}

// NewCount returns how many fetched transactions still need to be created.
func (r *Report) NewCount() int {
	return len(r.toCreate)
}

// ChangedCount returns how many fetched transactions need an update.
func (r *Report) ChangedCount() int {
	return len(r.toUpdate)
}

// InSyncCount returns how many fetched transactions match their stored row.
func (r *Report) InSyncCount() int {
	return r.inSync
}
