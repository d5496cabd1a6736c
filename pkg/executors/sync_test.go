package executors

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/monzosync/pkg/config"
	"github.com/yurifrl/monzosync/pkg/lunchmoney"
	"github.com/yurifrl/monzosync/pkg/models"
)

type fakeSource struct {
	batches map[string][]models.RawTransaction
}

func (f *fakeSource) Fetch(accounts *config.SourceAccounts, daysLookback int, includePots bool) (map[string][]models.RawTransaction, error) {
	return f.batches, nil
}

// fakeStore keeps rows in memory and records every mutating call.
type fakeStore struct {
	rows    map[string]models.StoredTransaction
	inserts int
	deletes []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]models.StoredTransaction{}}
}

func (f *fakeStore) SelectAll(table string) ([]models.StoredTransaction, error) {
	out := make([]models.StoredTransaction, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) Insert(table string, rows []models.StoredTransaction) error {
	f.inserts++
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return nil
}

func (f *fakeStore) Delete(table string, ids []string) error {
	f.deletes = append(f.deletes, ids...)
	for _, id := range ids {
		delete(f.rows, id)
	}
	return nil
}

func (f *fakeStore) LunchMoneyID(table, externalID string) (*int64, error) {
	r, ok := f.rows[externalID]
	if !ok {
		return nil, nil
	}
	return r.LunchMoneyID, nil
}

func (f *fakeStore) SetLunchMoneyID(table, externalID string, lunchMoneyID int64) error {
	r := f.rows[externalID]
	r.LunchMoneyID = &lunchMoneyID
	f.rows[externalID] = r
	return nil
}

type fakeSink struct {
	nextID  int64
	created []lunchmoney.Payload
	updated map[int64]lunchmoney.Payload
}

func (f *fakeSink) CreateTransactions(payloads []lunchmoney.Payload, chunkSize int) map[string]int64 {
	ids := make(map[string]int64, len(payloads))
	for _, p := range payloads {
		f.nextID++
		f.created = append(f.created, p)
		ids[p.ExternalID] = f.nextID
	}
	return ids
}

func (f *fakeSink) UpdateTransaction(id int64, p lunchmoney.Payload) error {
	if f.updated == nil {
		f.updated = map[int64]lunchmoney.Payload{}
	}
	f.updated[id] = p
	return nil
}

type silentNotifier struct{}

func (silentNotifier) Notify(message string) error { return nil }

func testExecutor(store *fakeStore, source *fakeSource, sink *fakeSink) *Executor {
	cfg := &config.Config{
		Database:   config.DatabaseConfig{Table: "transactions"},
		LunchMoney: config.LunchMoneyConfig{ChunkSize: 1},
	}
	lookups := &config.Lookups{
		Accounts:             &config.SourceAccounts{Main: map[string]string{"Personal": "acc_1"}},
		PotNames:             map[string]string{},
		CategoryReplacements: map[string]string{},
		LunchMoneyCategories: map[string]int64{"Groceries": 1},
		Assets:               map[string]int{"Personal": 7},
	}
	return New(log.New(io.Discard), cfg, lookups, store, source, sink, silentNotifier{})
}

func rawTx(notes string) models.RawTransaction {
	amount := int64(-500)
	return models.RawTransaction{
		ID:            "tx_1",
		Created:       "2024-07-01T10:00:00Z",
		Description:   "TESCO",
		Amount:        &amount,
		Currency:      "GBP",
		LocalCurrency: "GBP",
		Notes:         notes,
		Category:      "groceries",
	}
}

func TestSyncNewThenChanged(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{batches: map[string][]models.RawTransaction{
		"Personal": {rawTx("")},
	}}
	sink := &fakeSink{nextID: 100}

	e := testExecutor(store, source, sink)

	// First cycle: the transaction is new, so it is inserted, uploaded and
	// its sink id recorded.
	if err := e.Sync(30, true); err != nil {
		t.Fatalf("first Sync failed: %v", err)
	}
	if len(sink.created) != 1 {
		t.Fatalf("expected 1 created payload, got %d", len(sink.created))
	}
	if got := sink.created[0].ExternalID; got != "tx_1" {
		t.Errorf("expected external id tx_1, got %q", got)
	}
	stored, ok := store.rows["tx_1"]
	if !ok {
		t.Fatal("expected tx_1 in the store")
	}
	if stored.LunchMoneyID == nil || *stored.LunchMoneyID != 101 {
		t.Fatalf("expected lunch money id 101 recorded, got %v", stored.LunchMoneyID)
	}

	// Second cycle: same transaction with edited notes. The stored row is
	// superseded and the sink receives an update against the recorded id.
	source.batches = map[string][]models.RawTransaction{
		"Personal": {rawTx("edited")},
	}
	if err := e.Sync(30, true); err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	if len(sink.created) != 1 {
		t.Errorf("expected no further creates, got %d total", len(sink.created))
	}
	if len(store.deletes) != 1 || store.deletes[0] != "tx_1" {
		t.Errorf("expected tx_1 to be deleted and reinserted, got deletes %v", store.deletes)
	}
	p, ok := sink.updated[101]
	if !ok {
		t.Fatalf("expected an update against sink id 101, got %v", sink.updated)
	}
	if p.Notes == nil || *p.Notes != "edited" {
		t.Errorf("expected update payload to carry the edited notes, got %v", p.Notes)
	}
	got := store.rows["tx_1"]
	if got.Notes != "edited" {
		t.Errorf("expected the store to hold the edited notes, got %q", got.Notes)
	}
	if got.LunchMoneyID == nil || *got.LunchMoneyID != 101 {
		t.Errorf("expected the lunch money id to survive the update, got %v", got.LunchMoneyID)
	}

	// Third cycle: nothing changed, so neither the store nor the sink is
	// touched again.
	insertsBefore := store.inserts
	if err := e.Sync(30, true); err != nil {
		t.Fatalf("third Sync failed: %v", err)
	}
	if store.inserts != insertsBefore {
		t.Errorf("expected no inserts for an unchanged transaction")
	}
	if len(sink.updated) != 1 {
		t.Errorf("expected no further updates, got %d", len(sink.updated))
	}
}

func TestSyncEmptyFetch(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{batches: map[string][]models.RawTransaction{"Personal": {}}}
	sink := &fakeSink{}

	if err := testExecutor(store, source, sink).Sync(30, true); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(store.rows) != 0 || len(sink.created) != 0 {
		t.Error("expected an empty fetch to leave everything untouched")
	}
}

func TestSyncDeclinedTransactionsAreStoredNotUploaded(t *testing.T) {
	store := newFakeStore()
	declined := rawTx("")
	declined.DeclineReason = "INSUFFICIENT_FUNDS"
	source := &fakeSource{batches: map[string][]models.RawTransaction{
		"Personal": {declined},
	}}
	sink := &fakeSink{}

	if err := testExecutor(store, source, sink).Sync(30, true); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if _, ok := store.rows["tx_1"]; !ok {
		t.Error("expected the declined transaction in the store")
	}
	if len(sink.created) != 0 {
		t.Errorf("expected declined transactions to be skipped by the sink, got %d", len(sink.created))
	}
}
