package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/angelmondragon/miyf-books/pkg/config"
	"github.com/angelmondragon/miyf-books/pkg/googleauth"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	valueInputRaw      = "RAW"
	valueRenderRaw     = "UNFORMATTED_VALUE"
	dateRenderAsString = "FORMATTED_STRING"
	insertRows         = "INSERT_ROWS"
	dimensionRows      = "ROWS"
)

var updatedRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// Backend implements rowstore.Backend on top of one Google spreadsheet.
// Each sheet (tab) is a table; row 1 is its header.
type Backend struct {
	svc           *gsheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

var _ rowstore.Backend = (*Backend)(nil)

// New builds a backend authenticated as the configured service account.
func New(ctx context.Context, cfg config.SheetsConfig, opts ...option.ClientOption) (*Backend, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	clientOpts := googleauth.Endpoint(cfg.Endpoint)
	if clientOpts == nil {
		auth, err := googleauth.ServiceAccount(ctx, cfg.ServiceEmail, cfg.PrivateKey, gsheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("sheets credentials: %w", err)
		}
		clientOpts = append(clientOpts, auth)
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheets.Service, spreadsheetID string) *Backend {
	return &Backend{svc: svc, spreadsheetID: spreadsheetID, sheetIDs: map[string]int64{}}
}

func (b *Backend) ReadAll(ctx context.Context, sheet string, width int) ([][]string, error) {
	rng := fmt.Sprintf("%s!A1:%s", quoteSheet(sheet), lastColumn(width))
	resp, err := b.svc.Spreadsheets.Values.Get(b.spreadsheetID, rng).
		ValueRenderOption(valueRenderRaw).
		DateTimeRenderOption(dateRenderAsString).
		Context(ctx).
		Do()
	if err != nil {
		return nil, translate(sheet, err)
	}
	grid := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		grid[i] = toStrings(r)
	}
	return grid, nil
}

func (b *Backend) ReadRow(ctx context.Context, sheet string, row, width int) ([]string, error) {
	rng := fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, lastColumn(width), row)
	resp, err := b.svc.Spreadsheets.Values.Get(b.spreadsheetID, rng).
		ValueRenderOption(valueRenderRaw).
		DateTimeRenderOption(dateRenderAsString).
		Context(ctx).
		Do()
	if err != nil {
		return nil, translate(sheet, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

func (b *Backend) AppendRow(ctx context.Context, sheet string, cells []string) (int, error) {
	rng := fmt.Sprintf("%s!A:%s", quoteSheet(sheet), lastColumn(len(cells)))
	resp, err := b.svc.Spreadsheets.Values.Append(b.spreadsheetID, rng, &gsheets.ValueRange{
		Values: [][]interface{}{toValues(cells)},
	}).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	if err != nil {
		return 0, translate(sheet, err)
	}
	if resp.Updates == nil {
		return 0, fmt.Errorf("sheets: append to %s returned no update range", sheet)
	}
	return rowFromRange(resp.Updates.UpdatedRange)
}

func (b *Backend) WriteRow(ctx context.Context, sheet string, row int, cells []string) error {
	rng := fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, lastColumn(len(cells)), row)
	_, err := b.svc.Spreadsheets.Values.Update(b.spreadsheetID, rng, &gsheets.ValueRange{
		Values: [][]interface{}{toValues(cells)},
	}).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return translate(sheet, err)
	}
	return nil
}

func (b *Backend) WriteCells(ctx context.Context, sheet string, updates []rowstore.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	data := make([]*gsheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &gsheets.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", quoteSheet(sheet), rowstore.ColumnName(u.Column), u.Row),
			Values: [][]interface{}{{u.Value}},
		})
	}
	_, err := b.svc.Spreadsheets.Values.BatchUpdate(b.spreadsheetID, &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputRaw,
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return translate(sheet, err)
	}
	return nil
}

func (b *Backend) DeleteRow(ctx context.Context, sheet string, row int) error {
	if row < 2 {
		return fmt.Errorf("sheets: row %d out of range", row)
	}
	sheetID, err := b.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	_, err = b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteDimension: &gsheets.DeleteDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  dimensionRows,
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// the first tab has id 0, which would otherwise be omitted
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return translate(sheet, err)
	}
	return nil
}

func (b *Backend) EnsureSheet(ctx context.Context, sheet string, header []string) error {
	_, err := b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{Properties: &gsheets.SheetProperties{Title: sheet}},
		}},
	}).Context(ctx).Do()
	if err != nil && !alreadyExists(err) {
		return translate(sheet, err)
	}
	b.forgetSheetID(sheet)

	first, err := b.ReadRow(ctx, sheet, 1, len(header))
	if err != nil {
		return err
	}
	if len(first) > 0 {
		return nil
	}
	return b.WriteRow(ctx, sheet, 1, header)
}

func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.svc.Spreadsheets.Get(b.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets ping: %w", err)
	}
	return nil
}

func (b *Backend) sheetID(ctx context.Context, sheet string) (int64, error) {
	b.mu.Lock()
	id, ok := b.sheetIDs[sheet]
	b.mu.Unlock()
	if ok {
		return id, nil
	}

	resp, err := b.svc.Spreadsheets.Get(b.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, translate(sheet, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			b.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	id, ok = b.sheetIDs[sheet]
	if !ok {
		return 0, fmt.Errorf("%w: %s", rowstore.ErrSheetNotFound, sheet)
	}
	return id, nil
}

func (b *Backend) forgetSheetID(sheet string) {
	b.mu.Lock()
	delete(b.sheetIDs, sheet)
	b.mu.Unlock()
}

// quoteSheet wraps a sheet name for A1 notation, doubling embedded quotes.
func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func lastColumn(width int) string {
	if width < 1 {
		width = 1
	}
	return rowstore.ColumnName(width - 1)
}

func rowFromRange(updatedRange string) (int, error) {
	m := updatedRowRe.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0, fmt.Errorf("sheets: cannot parse row from range %q", updatedRange)
	}
	return strconv.Atoi(m[1])
}

func toValues(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = cellString(v)
	}
	return out
}

// cellString renders an unformatted cell value. Numbers typed by hand come
// back as float64; they are rendered without exponent or trailing zeros.
func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return rowstore.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func translate(sheet string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range") {
		return fmt.Errorf("%w: %s", rowstore.ErrSheetNotFound, sheet)
	}
	return fmt.Errorf("sheets %s: %w", sheet, err)
}

func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(gerr.Message), "already exists")
}
