// Package google exports payment rows to a Google spreadsheet using service
// account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	ports "kotizy/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.LedgerWriter = (*Client)(nil)

// New creates a Sheets client for the given spreadsheet. Credentials come
// from an inline JSON blob or a service account file; exactly one is needed.
func New(ctx context.Context, spreadsheetID, sheetName, credentialsFile, credentialsJSON string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Cotisations"
	}

	creds, err := loadCredentials(credentialsFile, credentialsJSON)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func loadCredentials(credentialsFile, credentialsJSON string) ([]byte, error) {
	switch {
	case strings.TrimSpace(credentialsJSON) != "":
		return []byte(credentialsJSON), nil
	case strings.TrimSpace(credentialsFile) != "":
		creds, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return creds, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// AppendPayment writes the payment as the next row of the sheet and returns
// the row reference.
func (c *Client) AppendPayment(ctx context.Context, row ports.PaymentRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	// Find the next empty row from the sheet dimensions.
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.sheetName, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d:F%d", c.sheetName, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(row)}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	return dataRange, nil
}

// rowValues lays out one payment as sheet columns: date, payment id, member,
// year, amount and the contribution status after the payment.
func rowValues(row ports.PaymentRow) []any {
	return []any{
		row.PaymentDate.Format("2006-01-02"),
		row.PaymentID,
		row.MemberName,
		row.Year,
		row.Amount.Ariary,
		string(row.Status),
	}
}
