package sheets

import (
	"testing"
)

func row(cells ...string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func TestParseAccountRows(t *testing.T) {
	rows := [][]interface{}{
		row("acc-1", "Everyday Checking", "depository", "$1,204.55", "First National", ""),
		row("", "", ""), // blank row is skipped
		row("acc-2", "Travel Card", "credit", "-420.10", "Big Bank", "https://example.com/logo.png"),
	}

	accounts, err := parseAccountRows(rows)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Balance.String() != "1204.55" {
		t.Errorf("balance: got %s", accounts[0].Balance)
	}
	if accounts[1].Balance.String() != "-420.1" {
		t.Errorf("negative balance: got %s", accounts[1].Balance)
	}
	if accounts[1].LogoURL == "" {
		t.Errorf("logo url dropped")
	}
}

func TestParseAccountRowsRejectsBadAmount(t *testing.T) {
	rows := [][]interface{}{row("acc-1", "Checking", "depository", "not-a-number")}
	if _, err := parseAccountRows(rows); err == nil {
		t.Fatalf("expected error for bad balance")
	}
}

func TestParseTransactionRows(t *testing.T) {
	rows := [][]interface{}{
		row("tx-1", "acc-1", "Blue Bottle", "4.50", "2025-06-03", "Coffee Shops", "Blue Bottle", "FALSE", "", "work, coffee"),
		row("tx-2", "acc-1", "Paycheck", "-2500.00", "2025-06-01", "Payroll", "Acme Corp", "", "", ""),
	}

	txs, err := parseTransactionRows(rows)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if !txs[0].IsExpense() {
		t.Errorf("tx-1 should be an expense")
	}
	if !txs[1].IsIncome() {
		t.Errorf("tx-2 should be income")
	}
	if len(txs[0].Tags) != 2 || txs[0].Tags[1] != "coffee" {
		t.Errorf("tags: %v", txs[0].Tags)
	}
	if txs[1].Date.Format("2006-01-02") != "2025-06-01" {
		t.Errorf("date: %v", txs[1].Date)
	}
}

func TestParseTransactionRowsRejectsBadDate(t *testing.T) {
	rows := [][]interface{}{row("tx-1", "acc-1", "Coffee", "4.50", "June 3rd")}
	if _, err := parseTransactionRows(rows); err == nil {
		t.Fatalf("expected error for bad date")
	}
}

func TestParseBoolCell(t *testing.T) {
	cases := map[string]bool{
		"TRUE": true, "true": true, "Yes": true, "1": true,
		"FALSE": false, "": false, "no": false,
	}
	for in, want := range cases {
		if got := parseBoolCell(in); got != want {
			t.Errorf("%q: got %v, want %v", in, got, want)
		}
	}
}
