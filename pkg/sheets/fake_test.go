package sheets

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	gsheets "google.golang.org/api/sheets/v4"
)

// fakeSpreadsheet emulates the subset of the Sheets v4 REST surface the
// backend uses.
type fakeSpreadsheet struct {
	mu      sync.Mutex
	id      string
	order   []string
	ids     map[string]int64
	grids   map[string][][]interface{}
	deletes []gsheets.DimensionRange
}

func newFakeSpreadsheet(t *testing.T) (*fakeSpreadsheet, *httptest.Server) {
	t.Helper()
	f := &fakeSpreadsheet{id: "sheet-1", ids: map[string]int64{}, grids: map[string][][]interface{}{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSpreadsheet) addSheet(title string, rows ...[]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[title]; !ok {
		f.ids[title] = int64(len(f.order))
		f.order = append(f.order, title)
	}
	f.grids[title] = rows
}

func (f *fakeSpreadsheet) grid(title string) [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grids[title]
}

func (f *fakeSpreadsheet) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/v4/spreadsheets/" + f.id
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeAPIError(w, http.StatusNotFound, "Requested entity was not found.")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case rest == "" && r.Method == http.MethodGet:
		f.getSpreadsheet(w)
	case rest == ":batchUpdate":
		f.batchUpdate(w, r)
	case rest == "/values:batchUpdate":
		f.batchUpdateValues(w, r)
	case strings.HasPrefix(rest, "/values/") && strings.HasSuffix(rest, ":append"):
		f.appendValues(w, r, strings.TrimSuffix(strings.TrimPrefix(rest, "/values/"), ":append"))
	case strings.HasPrefix(rest, "/values/") && r.Method == http.MethodGet:
		f.getValues(w, strings.TrimPrefix(rest, "/values/"))
	case strings.HasPrefix(rest, "/values/") && r.Method == http.MethodPut:
		f.updateValues(w, r, strings.TrimPrefix(rest, "/values/"))
	default:
		writeAPIError(w, http.StatusNotFound, "unsupported "+r.Method+" "+rest)
	}
}

func (f *fakeSpreadsheet) getSpreadsheet(w http.ResponseWriter) {
	resp := gsheets.Spreadsheet{SpreadsheetId: f.id}
	for _, title := range f.order {
		resp.Sheets = append(resp.Sheets, &gsheets.Sheet{Properties: &gsheets.SheetProperties{
			Title: title, SheetId: f.ids[title], ForceSendFields: []string{"SheetId"},
		}})
	}
	writeJSON(w, resp)
}

func (f *fakeSpreadsheet) batchUpdate(w http.ResponseWriter, r *http.Request) {
	var req gsheets.BatchUpdateSpreadsheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, op := range req.Requests {
		switch {
		case op.AddSheet != nil:
			title := op.AddSheet.Properties.Title
			if _, ok := f.ids[title]; ok {
				writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("Invalid requests[0].addSheet: A sheet with the name %q already exists. Please enter another name.", title))
				return
			}
			f.ids[title] = int64(len(f.order))
			f.order = append(f.order, title)
			f.grids[title] = nil
		case op.DeleteDimension != nil:
			rng := *op.DeleteDimension.Range
			f.deletes = append(f.deletes, rng)
			title := ""
			for name, id := range f.ids {
				if id == rng.SheetId {
					title = name
				}
			}
			grid := f.grids[title]
			if int(rng.EndIndex) > len(grid) {
				writeAPIError(w, http.StatusBadRequest, "Invalid requests[0].deleteDimension: range out of bounds")
				return
			}
			f.grids[title] = append(grid[:rng.StartIndex], grid[rng.EndIndex:]...)
		}
	}
	writeJSON(w, gsheets.BatchUpdateSpreadsheetResponse{SpreadsheetId: f.id})
}

func (f *fakeSpreadsheet) batchUpdateValues(w http.ResponseWriter, r *http.Request) {
	var req gsheets.BatchUpdateValuesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, vr := range req.Data {
		a1, ok := f.parse(w, vr.Range)
		if !ok {
			return
		}
		f.write(a1, vr.Values)
	}
	writeJSON(w, gsheets.BatchUpdateValuesResponse{SpreadsheetId: f.id, TotalUpdatedCells: int64(len(req.Data))})
}

func (f *fakeSpreadsheet) appendValues(w http.ResponseWriter, r *http.Request, rng string) {
	if got := r.URL.Query().Get("insertDataOption"); got != insertRows {
		writeAPIError(w, http.StatusBadRequest, "expected INSERT_ROWS, got "+got)
		return
	}
	a1, ok := f.parse(w, rng)
	if !ok {
		return
	}
	var body gsheets.ValueRange
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	row := len(f.grids[a1.sheet]) + 1
	a1.row0, a1.row1 = row, row
	f.write(a1, body.Values)
	writeJSON(w, gsheets.AppendValuesResponse{
		SpreadsheetId: f.id,
		Updates: &gsheets.UpdateValuesResponse{
			UpdatedRange: fmt.Sprintf("%s!A%d:%s%d", quoteSheet(a1.sheet), row, lastColumn(len(body.Values[0])), row),
		},
	})
}

func (f *fakeSpreadsheet) updateValues(w http.ResponseWriter, r *http.Request, rng string) {
	if got := r.URL.Query().Get("valueInputOption"); got != valueInputRaw {
		writeAPIError(w, http.StatusBadRequest, "expected RAW input, got "+got)
		return
	}
	a1, ok := f.parse(w, rng)
	if !ok {
		return
	}
	var body gsheets.ValueRange
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.write(a1, body.Values)
	writeJSON(w, gsheets.UpdateValuesResponse{UpdatedRange: rng})
}

func (f *fakeSpreadsheet) getValues(w http.ResponseWriter, rng string) {
	a1, ok := f.parse(w, rng)
	if !ok {
		return
	}
	grid := f.grids[a1.sheet]
	first, last := 1, len(grid)
	if a1.row0 > 0 {
		first = a1.row0
	}
	if a1.row1 > 0 && a1.row1 < last {
		last = a1.row1
	}
	var out [][]interface{}
	for r := first; r <= last; r++ {
		row := grid[r-1]
		cells := []interface{}{}
		for c := a1.col0; c <= a1.col1 && c < len(row); c++ {
			cells = append(cells, row[c])
		}
		for len(cells) > 0 && (cells[len(cells)-1] == nil || cells[len(cells)-1] == "") {
			cells = cells[:len(cells)-1]
		}
		out = append(out, cells)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	writeJSON(w, gsheets.ValueRange{Range: rng, Values: out})
}

func (f *fakeSpreadsheet) write(a1 a1Range, values [][]interface{}) {
	grid := f.grids[a1.sheet]
	for i, vals := range values {
		r := a1.row0 + i
		for len(grid) < r {
			grid = append(grid, nil)
		}
		row := grid[r-1]
		for j, v := range vals {
			c := a1.col0 + j
			for len(row) <= c {
				row = append(row, "")
			}
			row[c] = v
		}
		grid[r-1] = row
	}
	f.grids[a1.sheet] = grid
}

type a1Range struct {
	sheet      string
	col0, col1 int
	row0, row1 int
}

func (f *fakeSpreadsheet) parse(w http.ResponseWriter, rng string) (a1Range, bool) {
	bang := strings.LastIndex(rng, "!")
	if bang < 0 {
		writeAPIError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return a1Range{}, false
	}
	sheet := strings.ReplaceAll(strings.Trim(rng[:bang], "'"), "''", "'")
	if _, ok := f.ids[sheet]; !ok {
		writeAPIError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return a1Range{}, false
	}
	out := a1Range{sheet: sheet}
	parts := strings.SplitN(rng[bang+1:], ":", 2)
	out.col0, out.row0 = splitCell(parts[0])
	out.col1, out.row1 = out.col0, out.row0
	if len(parts) == 2 {
		out.col1, out.row1 = splitCell(parts[1])
	}
	return out, true
}

func splitCell(ref string) (col, row int) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	row, _ = strconv.Atoi(ref[i:])
	return col - 1, row
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": msg, "status": "INVALID_ARGUMENT"},
	})
}
