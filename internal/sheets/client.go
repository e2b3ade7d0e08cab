package sheets

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/whetherapp/whether-backend/internal/errs"
	"github.com/whetherapp/whether-backend/internal/retry"
)

// Client is the store.Adapter backed by a single Google spreadsheet.
type Client struct {
	service       *sheets.Service
	spreadsheetID string
	readRetry     retry.Config
}

// NewClient builds a Sheets service for spreadsheetID. Callers supply
// credentials through opts, e.g. option.WithCredentialsJSON.
func NewClient(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service:       service,
		spreadsheetID: spreadsheetID,
	}, nil
}

// WithReadRetry enables retrying ReadRange on transient failures.
// Writes and appends are never retried since a repeated append duplicates a row.
func (c *Client) WithReadRetry(cfg retry.Config) *Client {
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = isTransient
	}
	c.readRetry = cfg
	return c
}

func (c *Client) ReadRange(ctx context.Context, range_ string) ([][]string, error) {
	values, err := retry.WithRetry(ctx, c.readRetry, func(ctx context.Context) ([][]interface{}, error) {
		resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, range_).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return resp.Values, nil
	})
	if err != nil {
		log.Debug().Err(err).Str("range", range_).Msg("Sheets read failed")
		return nil, errs.Upstream("failed to read sheet", err)
	}

	rows := toStrings(values)
	log.Debug().Str("range", range_).Int("rows", len(rows)).Msg("Read range from sheet")
	return rows, nil
}

func (c *Client) WriteRange(ctx context.Context, range_ string, rows [][]string) error {
	valueRange := &sheets.ValueRange{
		Values: toValues(rows),
	}

	_, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, range_, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return errs.Upstream("failed to update range", err)
	}

	return nil
}

func (c *Client) AppendRow(ctx context.Context, range_ string, row []string) error {
	valueRange := &sheets.ValueRange{
		Values: toValues([][]string{row}),
	}

	_, err := c.service.Spreadsheets.Values.Append(c.spreadsheetID, range_, valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return errs.Upstream("failed to append rows", err)
	}

	return nil
}
