package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgellow/oauth-bench/internal/benchmark"
	"github.com/dgellow/oauth-bench/internal/config"
	"github.com/dgellow/oauth-bench/internal/log"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// ErrSpreadsheetNotFound is returned when no spreadsheet matches the configured name
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

var _ benchmark.Sink = (*SheetsSink)(nil)

// SheetsSink appends one row per record to a Google Sheets worksheet.
// The first row is the header; an empty worksheet gets benchmark.Fields.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string

	init   singleflight.Group
	mu     sync.RWMutex
	header []string
}

// NewSheetsSink opens the spreadsheet named by cfg, by ID or by name.
// Extra options are applied to both the Sheets and Drive clients.
func NewSheetsSink(ctx context.Context, cfg config.SinkConfig, opts ...option.ClientOption) (*SheetsSink, error) {
	if cfg.SpreadsheetID == "" && cfg.SpreadsheetName == "" {
		return nil, fmt.Errorf("spreadsheetId or spreadsheetName is required")
	}

	clientOpts := []option.ClientOption{
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveMetadataReadonlyScope),
	}
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets client: %w", err)
	}

	id := cfg.SpreadsheetID
	if id == "" {
		drv, err := drive.NewService(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Drive client: %w", err)
		}
		id, err = FindSpreadsheet(ctx, drv, cfg.SpreadsheetName)
		if err != nil {
			return nil, err
		}
	}

	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = config.DefaultSheetName
	}

	log.LogInfoWithFields("sink", "Using Google Sheets sink", map[string]any{
		"spreadsheet_id": id,
		"sheet":          sheetName,
	})
	return newSheetsSink(svc, id, sheetName), nil
}

func newSheetsSink(svc *sheets.Service, spreadsheetID, sheetName string) *SheetsSink {
	return &SheetsSink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}
}

// FindSpreadsheet resolves a spreadsheet name to its ID through Drive
func FindSpreadsheet(ctx context.Context, drv *drive.Service, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)

	list, err := drv.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to search for spreadsheet %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: %q", ErrSpreadsheetNotFound, name)
	}
	return list.Files[0].Id, nil
}

func (s *SheetsSink) Write(ctx context.Context, rec benchmark.Record) error {
	header, err := s.ensureHeader(ctx)
	if err != nil {
		return err
	}

	row := make([]any, len(header))
	for i, col := range header {
		row[i] = cell(rec.Value(col))
	}

	_, err = s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName+"!A1", &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

// ensureHeader reads the header row once, writing benchmark.Fields into
// an empty worksheet. Concurrent first writers share one lookup.
func (s *SheetsSink) ensureHeader(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	header := s.header
	s.mu.RUnlock()
	if header != nil {
		return header, nil
	}

	v, err, _ := s.init.Do("header", func() (any, error) {
		header, err := s.loadHeader(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.header = header
		s.mu.Unlock()
		return header, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (s *SheetsSink) loadHeader(ctx context.Context) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!1:1").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		header := make([]string, len(resp.Values[0]))
		for i, v := range resp.Values[0] {
			header[i] = fmt.Sprint(v)
		}
		return header, nil
	}

	row := make([]any, len(benchmark.Fields))
	for i, f := range benchmark.Fields {
		row[i] = f
	}
	_, err = s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, s.sheetName+"!A1", &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	log.LogInfoWithFields("sink", "Wrote header row", map[string]any{
		"spreadsheet_id": s.spreadsheetID,
		"sheet":          s.sheetName,
	})
	return append([]string(nil), benchmark.Fields...), nil
}

// cell maps absent values to an empty cell
func cell(v any) any {
	if v == nil {
		return ""
	}
	return v
}
