package documents

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/garagedesk/garagedesk/testing"
)

func newTestRouter(t *testing.T) (http.Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc)
	r := chi.NewRouter()
	r.Route("/documents", h.MountRoutes)
	r.Route("/pricing", h.MountPricingRoutes)
	return r, f
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) View {
	t.Helper()
	var view View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	return view
}

func TestHandlerDocumentLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/documents", `{"kind":"INVOICE","doc_date":"2026-03-01","tax_enabled":true,"bank_charge_enabled":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decodeView(t, rec)
	assert.Equal(t, "INV-2603-0001", doc.DocNumber)

	rec = do(t, r, http.MethodPost, "/documents/1/lines", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added struct {
		Document View `json:"document"`
		Line     struct {
			ID string `json:"id"`
		} `json:"line"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&added))
	lineID := added.Line.ID
	require.NotEmpty(t, lineID)

	rec = do(t, r, http.MethodPatch, "/documents/1/lines/"+lineID, `{"quantity":4,"unit_price":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodPut, "/documents/1/lines/"+lineID+"/total", `{"total":100}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeView(t, rec)
	assert.Equal(t, 25.0, view.Lines[0].UnitPrice)
	assert.Equal(t, 117.3, view.Totals.GrandTotal)

	rec = do(t, r, http.MethodPut, "/documents/1/lines/"+lineID+"/total", `{"total":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, r, http.MethodPatch, "/documents/1/lines/"+lineID, `{"quantity":2,"line_total":10}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, r, http.MethodPost, "/documents/1/finalize", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, StatusFinalized, decodeView(t, rec).Status)

	rec = do(t, r, http.MethodDelete, "/documents/1/lines/"+lineID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, "/documents/1/reopen", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodDelete, "/documents/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, r, http.MethodGet, "/documents/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandlerListQuery(t *testing.T) {
	r, f := newTestRouter(t)
	f.create(t, CreateDocumentRequest{Kind: KindInvoice})
	f.create(t, CreateDocumentRequest{Kind: KindQuotation})

	rec := do(t, r, http.MethodGet, "/documents?kind=quotation&sort_by=grand_total&sort_dir=asc", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Items []Summary `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, KindQuotation, body.Items[0].Kind)

	for _, q := range []string{"kind=receipt", "status=void", "sort_by=notes", "sort_dir=up", "date_from=01-02-2026", "customer_id=x"} {
		rec = do(t, r, http.MethodGet, "/documents?"+q, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)
	}
}

func TestHandlerPreviewAndBadInput(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/pricing/preview", `{"tax_enabled":true,"lines":[{"quantity":1,"unit_price":100}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var totals map[string]float64
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&totals))
	assert.Equal(t, 15.0, totals["tax_total"])
	assert.Equal(t, 115.0, totals["grand_total"])

	rec = do(t, r, http.MethodPost, "/pricing/preview", `{"lines":[],"surprise":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, r, http.MethodGet, "/documents/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
