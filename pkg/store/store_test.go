package store

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/monzosync/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "monzosync.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func row(id string) models.StoredTransaction {
	return models.StoredTransaction{Transaction: models.Transaction{
		ID:          id,
		Date:        "2024-07-01",
		Timestamp:   "2024-07-01T10:30:00Z",
		Description: "Tesco",
		Amount:      decimal.RequireFromString("5.00"),
		Currency:    "gbp",
		Category:    "Groceries",
		Notes:       "weekly shop",
		Tags:        "#food",
		Source:      "Personal",
	}}
}

func TestInsertAndSelectAll(t *testing.T) {
	s := testStore(t)

	declined := row("tx_2")
	declined.Decline = true
	declined.DeclineReason = "INSUFFICIENT_FUNDS"

	if err := s.Insert("transactions", []models.StoredTransaction{row("tx_1"), declined}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	rows, err := s.SelectAll("transactions")
	if err != nil {
		t.Fatalf("SelectAll failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	byID := map[string]models.StoredTransaction{}
	for _, r := range rows {
		byID[r.ID] = r
	}

	got := byID["tx_1"]
	if !got.Transaction.TrackedEquals(row("tx_1").Transaction) {
		t.Errorf("round trip changed tracked fields:\nwant %+v\ngot  %+v", row("tx_1").Transaction, got.Transaction)
	}
	if got.LunchMoneyID != nil {
		t.Errorf("expected no lunch money id yet, got %d", *got.LunchMoneyID)
	}
	if !byID["tx_2"].Decline {
		t.Error("expected decline flag to survive the round trip")
	}
}

func TestSetAndGetLunchMoneyID(t *testing.T) {
	s := testStore(t)
	if err := s.Insert("transactions", []models.StoredTransaction{row("tx_1")}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	id, err := s.LunchMoneyID("transactions", "tx_1")
	if err != nil {
		t.Fatalf("LunchMoneyID failed: %v", err)
	}
	if id != nil {
		t.Fatalf("expected nil before write-back, got %d", *id)
	}

	if err := s.SetLunchMoneyID("transactions", "tx_1", 555); err != nil {
		t.Fatalf("SetLunchMoneyID failed: %v", err)
	}

	id, err = s.LunchMoneyID("transactions", "tx_1")
	if err != nil {
		t.Fatalf("LunchMoneyID failed: %v", err)
	}
	if id == nil || *id != 555 {
		t.Fatalf("expected 555, got %v", id)
	}

	// Unknown ids are nil, not an error.
	id, err = s.LunchMoneyID("transactions", "tx_missing")
	if err != nil {
		t.Fatalf("LunchMoneyID failed: %v", err)
	}
	if id != nil {
		t.Errorf("expected nil for an unknown id, got %d", *id)
	}
}

func TestSetLunchMoneyIDUnknownTransaction(t *testing.T) {
	s := testStore(t)
	if err := s.SetLunchMoneyID("transactions", "tx_missing", 555); err == nil {
		t.Fatal("expected an error writing an id for an unknown transaction")
	}
}

func TestDeleteAndReinsert(t *testing.T) {
	s := testStore(t)

	first := row("tx_1")
	if err := s.Insert("transactions", []models.StoredTransaction{first, row("tx_2")}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := s.SetLunchMoneyID("transactions", "tx_1", 555); err != nil {
		t.Fatalf("SetLunchMoneyID failed: %v", err)
	}

	// The changed-transaction path: delete, then reinsert the edited row
	// keeping its lunch money id.
	if err := s.Delete("transactions", []string{"tx_1"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	edited := row("tx_1")
	edited.Notes = "edited"
	lmID := int64(555)
	edited.LunchMoneyID = &lmID
	if err := s.Insert("transactions", []models.StoredTransaction{edited}); err != nil {
		t.Fatalf("reinsert failed: %v", err)
	}

	rows, err := s.SelectAll("transactions")
	if err != nil {
		t.Fatalf("SelectAll failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.ID == "tx_1" {
			if r.Notes != "edited" {
				t.Errorf("expected edited notes, got %q", r.Notes)
			}
			if r.LunchMoneyID == nil || *r.LunchMoneyID != 555 {
				t.Errorf("expected lunch money id 555 to survive, got %v", r.LunchMoneyID)
			}
		}
	}
}

func TestInvalidTableName(t *testing.T) {
	s := testStore(t)
	if _, err := s.SelectAll("transactions; DROP TABLE transactions"); err == nil {
		t.Fatal("expected an invalid table name to be rejected")
	}
}
