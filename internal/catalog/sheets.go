package catalog

import (
	"context"
	"fmt"

	"protein-advisor/internal/common/config"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource reads the product table from a Google spreadsheet. The first
// row of the range is the header.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
}

// SheetsClientOptions maps the sheets config onto API client options.
// Credentials JSON wins over a credentials file; an API key is used for
// public sheets.
func SheetsClientOptions(cfg config.SheetsConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	return opts
}

func NewSheetsSource(ctx context.Context, cfg config.SheetsConfig, opts ...option.ClientOption) (*SheetsSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	if len(opts) == 0 {
		opts = SheetsClientOptions(cfg)
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &SheetsSource{
		service:       svc,
		spreadsheetID: cfg.SpreadsheetID,
		readRange:     cfg.Range,
	}, nil
}

func (s *SheetsSource) Name() string { return config.CatalogSourceSheets }

func (s *SheetsSource) FetchTable(ctx context.Context) (*Table, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s: %w", s.readRange, err)
	}
	if len(resp.Values) == 0 {
		return &Table{}, nil
	}

	header := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		header[i] = cellString(cell)
	}

	table := &Table{Columns: header, Rows: make([]map[string]string, 0, len(resp.Values)-1)}
	for _, values := range resp.Values[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(values) {
				row[col] = cellString(values[i])
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
