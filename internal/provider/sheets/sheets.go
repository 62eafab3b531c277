// Package sheets implements the provider boundary on top of a Google
// spreadsheet: one sheet carries the account snapshot, another the
// transaction snapshot. Useful wherever the "provider" is an exported feed
// rather than a live aggregator API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledgersync/internal/core"
	"ledgersync/internal/provider"
)

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	accountsSheet     string
	transactionsSheet string
}

var _ provider.Provider = (*Client)(nil)

// NewFromEnv creates a Sheets-backed provider.
// Required: LEDGERSYNC_SPREADSHEET_ID.
// Optional sheet names: LEDGERSYNC_ACCOUNTS_SHEET (default "Accounts"),
// LEDGERSYNC_TRANSACTIONS_SHEET (default "Transactions").
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("LEDGERSYNC_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing LEDGERSYNC_SPREADSHEET_ID")
	}

	accountsSheet := strings.TrimSpace(os.Getenv("LEDGERSYNC_ACCOUNTS_SHEET"))
	if accountsSheet == "" {
		accountsSheet = "Accounts"
	}
	transactionsSheet := strings.TrimSpace(os.Getenv("LEDGERSYNC_TRANSACTIONS_SHEET"))
	if transactionsSheet == "" {
		transactionsSheet = "Transactions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:               svc,
		spreadsheetID:     spreadsheetID,
		accountsSheet:     accountsSheet,
		transactionsSheet: transactionsSheet,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
}

// FetchAccounts reads the account snapshot rows. Header row is skipped via
// the A2 range start; an empty sheet is a valid empty snapshot.
func (c *Client) FetchAccounts(ctx context.Context) ([]core.Account, error) {
	readRange := fmt.Sprintf("%s!A2:F", c.accountsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read accounts range: %v", core.ErrProvider, err)
	}
	accounts, err := parseAccountRows(resp.Values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProvider, err)
	}
	return accounts, nil
}

// FetchTransactions reads the transaction snapshot rows.
func (c *Client) FetchTransactions(ctx context.Context) ([]core.Transaction, error) {
	readRange := fmt.Sprintf("%s!A2:J", c.transactionsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read transactions range: %v", core.ErrProvider, err)
	}
	txs, err := parseTransactionRows(resp.Values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProvider, err)
	}
	return txs, nil
}
