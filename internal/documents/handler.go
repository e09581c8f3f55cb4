package documents

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/garagedesk/garagedesk/internal/platform/httpx"
)

// IdempotencyHeader carries the client-chosen key for create requests.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves the document editor API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req, err := parseListQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, "list documents failed", err)
		return
	}
	if items == nil {
		items = []Summary{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.Create(r.Context(), req, strings.TrimSpace(r.Header.Get(IdempotencyHeader)))
	if err != nil {
		h.fail(w, "create document failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get document failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	var req UpdateDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.UpdateHeader(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update document failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete document failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	var req AddLineRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	view, line, err := h.service.AddLine(r.Context(), id, req)
	if err != nil {
		h.fail(w, "add line failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"document": view, "line": line})
}

func (h *Handler) PatchLine(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	var req PatchLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.PatchLine(r.Context(), id, chi.URLParam(r, "lineID"), req)
	if err != nil {
		h.fail(w, "patch line failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) EditLineTotal(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	var req EditTotalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.EditLineTotal(r.Context(), id, chi.URLParam(r, "lineID"), req)
	if err != nil {
		h.fail(w, "edit line total failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	view, err := h.service.RemoveLine(r.Context(), id, chi.URLParam(r, "lineID"))
	if err != nil {
		h.fail(w, "remove line failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Finalize(r.Context(), id)
	if err != nil {
		h.fail(w, "finalize document failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Reopen(r.Context(), id)
	if err != nil {
		h.fail(w, "reopen document failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	totals, err := h.service.Preview(r.Context(), req)
	if err != nil {
		h.fail(w, "preview totals failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Warn(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
		return 0, false
	}
	return id, true
}

func parseListQuery(q url.Values) (ListDocumentsRequest, error) {
	var req ListDocumentsRequest
	if v := q.Get("kind"); v != "" {
		kind := Kind(strings.ToUpper(v))
		if !kind.Valid() {
			return req, fmt.Errorf("%w: unknown kind %q", httpx.ErrValidation, v)
		}
		req.Kind = &kind
	}
	if v := q.Get("status"); v != "" {
		status := Status(strings.ToUpper(v))
		if status != StatusDraft && status != StatusFinalized {
			return req, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, v)
		}
		req.Status = &status
	}
	for name, dest := range map[string]**int64{
		"customer_id": &req.CustomerID,
		"vehicle_id":  &req.VehicleID,
		"job_id":      &req.JobID,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: %s must be an integer", httpx.ErrValidation, name)
		}
		*dest = &id
	}
	for name, dest := range map[string]**time.Time{
		"date_from": &req.DateFrom,
		"date_to":   &req.DateTo,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return req, fmt.Errorf("%w: %s must be YYYY-MM-DD", httpx.ErrValidation, name)
		}
		*dest = &t
	}
	req.Search = strings.TrimSpace(q.Get("search"))
	req.SortBy = q.Get("sort_by")
	if _, ok := sortColumns[req.SortBy]; req.SortBy != "" && !ok {
		return req, fmt.Errorf("%w: cannot sort by %q", httpx.ErrValidation, req.SortBy)
	}
	req.SortDir = strings.ToLower(q.Get("sort_dir"))
	if req.SortDir != "" && req.SortDir != "asc" && req.SortDir != "desc" {
		return req, fmt.Errorf("%w: sort_dir must be asc or desc", httpx.ErrValidation)
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return req, nil
}
