package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Israelam72/mini-seller-console/internal/conversion"
	"github.com/Israelam72/mini-seller-console/internal/crm"
	"github.com/Israelam72/mini-seller-console/internal/export"
	"github.com/Israelam72/mini-seller-console/internal/persistence"
	"github.com/Israelam72/mini-seller-console/internal/query"
)

const maxRequestBodySize = 1 << 20 // 1MB

const (
	maxPageSize = 100
	maxPage     = 1_000_000
)

// UpdateLeadRequest is the PATCH /leads/{id} body. Omitted fields keep
// their stored value.
type UpdateLeadRequest struct {
	Email  *string `json:"email"`
	Status *string `json:"status"`
}

type AppDeps struct {
	Query      *query.Service
	Conversion *conversion.Workflow
	Store      *persistence.Store
	Token      string
	Logger     *slog.Logger // optional; defaults to slog.Default()
}

// NewAppHandler returns the CRM REST API. Every route except /health
// requires the bearer token when deps.Token is set.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requestLogger(deps.Logger))
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Get("/leads", handleListLeads(deps))
		r.Delete("/leads", handleResetLeads(deps))
		r.Get("/leads/export", handleExportLeads(deps))
		r.Patch("/leads/{id}", handleUpdateLead(deps))
		r.Post("/leads/{id}/convert", handleConvertLead(deps))
		r.Get("/opportunities", handleListOpportunities(deps))
	})

	return r
}

// requestLogger tags each request with an id and logs it at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", id)

			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "id", id, "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListLeads(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lq := query.LeadQuery{
			Search:    q.Get("search"),
			Statuses:  parseStatuses(q.Get("status")),
			SortBy:    q.Get("sort_by"),
			SortOrder: q.Get("sort_order"),
		}

		leads, err := deps.Query.QueryLeads(r.Context(), lq)
		if err != nil {
			writeError(w, err)
			return
		}

		page := parseIntParam(r, "page", 1, maxPage)
		size := parseIntParam(r, "page_size", query.DefaultPageSize, maxPageSize)
		writeJSON(w, query.Paginate(leads, page, size))
	}
}

func handleUpdateLead(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := leadID(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req UpdateLeadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Email == nil && req.Status == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of email or status is required")
			return
		}

		if err := updateLead(r.Context(), deps.Store, deps.Query, id, req); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleConvertLead(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := leadID(w, r)
		if !ok {
			return
		}

		res, err := deps.Conversion.ConvertByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, res)
	}
}

func handleExportLeads(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leads := export.Leads(r.Context(), deps.Store, nil)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
		if err := export.WriteLeads(w, leads); err != nil {
			deps.Logger.Error("exporting leads failed", "error", err)
		}
	}
}

func handleResetLeads(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") != "true" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "refusing to clear leads without confirm=true")
			return
		}

		if err := deps.Store.ClearLeads(r.Context()); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleListOpportunities(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		oq := query.OpportunityQuery{
			Search:    q.Get("search"),
			SortBy:    q.Get("sort_by"),
			SortOrder: q.Get("sort_order"),
		}

		opps, err := deps.Query.QueryOpportunities(r.Context(), oq)
		if err != nil {
			writeError(w, err)
			return
		}

		page := parseIntParam(r, "page", 1, maxPage)
		size := parseIntParam(r, "page_size", query.DefaultPageSize, maxPageSize)
		writeJSON(w, query.Paginate(opps, page, size))
	}
}

// updateLead fills the fields req omits from the stored lead and saves the
// result through the query service.
func updateLead(ctx context.Context, store *persistence.Store, svc *query.Service, id int, req UpdateLeadRequest) error {
	current, err := store.GetLead(ctx, id)
	if err != nil {
		return err
	}
	update := crm.LeadUpdate{Email: current.Email, Status: string(current.Status)}
	if req.Email != nil {
		update.Email = *req.Email
	}
	if req.Status != nil {
		update.Status = *req.Status
	}
	return svc.SaveLead(ctx, id, update)
}

func leadID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "lead id must be an integer")
		return 0, false
	}
	return id, true
}

// parseStatuses splits a comma-separated status list. Unknown names are kept
// so the query service can reject them.
func parseStatuses(s string) []crm.Status {
	if s == "" {
		return nil
	}
	var out []crm.Status
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, crm.Status(part))
		}
	}
	return out
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
