package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

// fakeSheets serves the values endpoints of one spreadsheet with a single
// sheet named Sheet1.
type fakeSheets struct {
	mu      sync.Mutex
	values  [][]any
	denied  bool
	appends int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.denied {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`)
		return
	}

	rng, ok := strings.CutPrefix(r.URL.Path, "/v4/spreadsheets/sheet-id/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Values [][]any `json:"values"`
	}
	switch {
	case r.Method == http.MethodGet && rng == "Sheet1!1:1":
		var vals [][]any
		if len(f.values) > 0 {
			vals = f.values[:1]
		}
		writeJSON(w, map[string]any{"range": rng, "values": vals})
	case r.Method == http.MethodGet && rng == "Sheet1":
		writeJSON(w, map[string]any{"range": rng, "values": f.values})
	case r.Method == http.MethodPut && rng == "Sheet1!A1":
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(f.values) == 0 {
			f.values = append(f.values, body.Values...)
		} else {
			f.values[0] = body.Values[0]
		}
		writeJSON(w, map[string]any{"updatedRange": "Sheet1!A1"})
	case r.Method == http.MethodPost && rng == "Sheet1:append":
		if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" || r.URL.Query().Get("insertDataOption") != "INSERT_ROWS" {
			http.Error(w, "unexpected options", http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.values = append(f.values, body.Values...)
		f.appends++
		n := len(f.values)
		writeJSON(w, map[string]any{
			"spreadsheetId": "sheet-id",
			"updates":       map[string]any{"updatedRange": fmt.Sprintf("Sheet1!A%d:AD%d", n, n)},
		})
	default:
		http.Error(w, "unexpected "+r.Method+" "+rng, http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestSheets(t *testing.T, fake *fakeSheets) *Sheets {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := NewSheets(context.Background(), "sheet-id", "Sheet1", defaultCatalog(t),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return s
}

func TestSheets(t *testing.T) {
	fake := &fakeSheets{}
	s := newTestSheets(t, fake)

	require.Len(t, fake.values, 1, "header written on empty sheet")
	assert.Equal(t, "Timestamp", fake.values[0][0])
	assert.Len(t, fake.values[0], 30)

	exerciseBackend(t, s)
	assert.Equal(t, 3, fake.appends)
}

func TestSheetsKeepsExistingHeader(t *testing.T) {
	fake := &fakeSheets{values: [][]any{{"Timestamp", "Division"}}}
	newTestSheets(t, fake)
	assert.Equal(t, []any{"Timestamp", "Division"}, fake.values[0])
}

func TestSheetsFailurePreservesResponse(t *testing.T) {
	fake := &fakeSheets{}
	s := newTestSheets(t, fake)
	cat := defaultCatalog(t)

	form := survey.NewForm(cat, s, survey.WithClock(func() time.Time { return submittedAt }))
	sess := form.NewSession("respondent")
	changes := survey.ChangeSet{
		Demographics: map[string]string{
			"division": "Sales Division", "level": "Manager", "gender": "Άλλο",
			"generation": "Gen Z", "tenure": "0–1 έτος",
		},
		Allocations: map[string]int{},
	}
	for _, sec := range cat.Sections {
		for _, key := range sec.AllocationKeys() {
			changes.Allocations[key] = 25
		}
	}
	_, err := form.Apply(sess, changes.Events()...)
	require.NoError(t, err)
	before := sess.Response.Clone()

	fake.mu.Lock()
	fake.denied = true
	fake.mu.Unlock()

	_, err = form.Submit(context.Background(), sess)
	var gwErr *survey.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "sheets", gwErr.Gateway)
	assert.Contains(t, err.Error(), "The caller does not have permission")
	assert.Equal(t, before, sess.Response)
	assert.Equal(t, survey.PhaseEditing, sess.Phase)
	assert.Contains(t, form.View(sess).Error, "The caller does not have permission")
}
