package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"uangku/internal/core"
)

// fakeSheets emulates the subset of the Sheets REST API used by Client.
type fakeSheets struct {
	mu      sync.Mutex
	rows    [][]any
	sheetID int64
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{
			"sheets": []any{map[string]any{"properties": map[string]any{"sheetId": f.sheetID, "title": DefaultSheetName}}},
		})
	case rest == ":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if d := rq.DeleteDimension; d != nil {
				f.rows = append(f.rows[:d.Range.StartIndex], f.rows[d.Range.EndIndex:]...)
			}
		}
		writeJSON(w, map[string]any{"spreadsheetId": "sheet-1"})
	case strings.HasPrefix(rest, "/values/"):
		rng := strings.TrimPrefix(rest, "/values/")
		switch {
		case strings.HasSuffix(rng, ":append"):
			var vr gsheet.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&vr)
			f.rows = append(f.rows, vr.Values...)
			writeJSON(w, map[string]any{"spreadsheetId": "sheet-1"})
		case r.Method == http.MethodPut:
			var vr gsheet.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&vr)
			row := rowNumber(rng)
			for len(f.rows) < row {
				f.rows = append(f.rows, []any{})
			}
			f.rows[row-1] = vr.Values[0]
			writeJSON(w, map[string]any{"spreadsheetId": "sheet-1"})
		default:
			writeJSON(w, map[string]any{"range": rng, "majorDimension": "ROWS", "values": f.slice(rng)})
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSheets) slice(rng string) [][]any {
	cells := rng[strings.Index(rng, "!")+1:]
	switch cells {
	case "A:A":
		out := make([][]any, 0, len(f.rows))
		for _, row := range f.rows {
			if len(row) == 0 {
				out = append(out, []any{})
				continue
			}
			out = append(out, row[:1])
		}
		return out
	case "A1:I1":
		if len(f.rows) == 0 {
			return nil
		}
		return f.rows[:1]
	default:
		return f.rows
	}
}

// rowNumber extracts n from "Sheet!An:In".
func rowNumber(rng string) int {
	cells := rng[strings.Index(rng, "!")+2:]
	n, _ := strconv.Atoi(cells[:strings.Index(cells, ":")])
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{sheetID: 42}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-1",
		Options: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithoutAuthentication(),
		},
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, fake
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if err := c.EnsureHeader(ctx); err != nil || len(fake.rows) != 1 {
		t.Fatalf("header should be written once, rows=%d err=%v", len(fake.rows), err)
	}

	a := core.NewIncome("a", "Salary", core.MustAmount("5000000"), core.NewDate(2025, 6, 1), "SALARY", "u1", "Company")
	b := core.NewExpense("b", "Rent", core.MustAmount("900"), core.NewDate(2025, 6, 2), "RENT", "u1", "Transfer")
	other := core.NewExpense("c", "Rent", core.MustAmount("900"), core.NewDate(2025, 6, 2), "RENT", "u2", "Transfer")
	for _, tx := range []core.Transaction{a, b, other} {
		if err := c.Save(ctx, tx); err != nil {
			t.Fatalf("save %s: %v", tx.ID, err)
		}
	}

	got, err := c.ListByUser(ctx, "u1")
	if err != nil || len(got) != 2 {
		t.Fatalf("list: %v %+v", err, got)
	}

	b.Amount = core.MustAmount("950")
	if err := c.Update(ctx, "b", b); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = c.ListByUser(ctx, "u1")
	if !got[1].Amount.Equal(core.MustAmount("950")) {
		t.Fatalf("update not visible: %+v", got[1])
	}

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = c.ListByUser(ctx, "u1")
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected rows after delete: %+v", got)
	}

	if err := c.Delete(ctx, "a"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := c.Update(ctx, "zz", core.NewExpense("zz", "x", core.MustAmount("1"), core.NewDate(2025, 1, 1), "C", "u1", "Cash")); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}
