package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

// Account rows: ID | Name | Type | Balance | Institution | LogoURL
// Transaction rows: ID | AccountID | Name | Amount | Date | Category |
//                   Merchant | Pending | Notes | Tags (comma separated)

const rowDateLayout = "2006-01-02"

func parseAccountRows(rows [][]interface{}) ([]core.Account, error) {
	accounts := make([]core.Account, 0, len(rows))
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if len(row) < 4 {
			return nil, fmt.Errorf("account row %d: expected at least 4 columns, got %d", i+2, len(row))
		}
		balance, err := parseAmountCell(cell(row, 3))
		if err != nil {
			return nil, fmt.Errorf("account row %d: %w", i+2, err)
		}
		accounts = append(accounts, core.Account{
			ID:          cell(row, 0),
			Name:        cell(row, 1),
			Type:        cell(row, 2),
			Balance:     balance,
			Institution: cell(row, 4),
			LogoURL:     cell(row, 5),
		})
	}
	return accounts, nil
}

func parseTransactionRows(rows [][]interface{}) ([]core.Transaction, error) {
	txs := make([]core.Transaction, 0, len(rows))
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if len(row) < 5 {
			return nil, fmt.Errorf("transaction row %d: expected at least 5 columns, got %d", i+2, len(row))
		}
		amount, err := parseAmountCell(cell(row, 3))
		if err != nil {
			return nil, fmt.Errorf("transaction row %d: %w", i+2, err)
		}
		date, err := time.Parse(rowDateLayout, cell(row, 4))
		if err != nil {
			return nil, fmt.Errorf("transaction row %d: invalid date %q", i+2, cell(row, 4))
		}
		txs = append(txs, core.Transaction{
			ID:        cell(row, 0),
			AccountID: cell(row, 1),
			Name:      cell(row, 2),
			Amount:    amount,
			Date:      date,
			Category:  cell(row, 5),
			Merchant:  cell(row, 6),
			Pending:   parseBoolCell(cell(row, 7)),
			Notes:     cell(row, 8),
			Tags:      parseTagsCell(cell(row, 9)),
		})
	}
	return txs, nil
}

func cell(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	s, _ := row[idx].(string)
	return strings.TrimSpace(s)
}

func isBlankRow(row []interface{}) bool {
	for i := range row {
		if cell(row, i) != "" {
			return false
		}
	}
	return true
}

// parseAmountCell tolerates currency symbols and thousands separators as they
// appear in exported sheets.
func parseAmountCell(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", "€", "", ",", "", " ", "").Replace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func parseBoolCell(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "1":
		return true
	}
	return false
}

func parseTagsCell(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
