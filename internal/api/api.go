// Package api exposes the engine's entry points over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"escalator/internal/domain"
	"escalator/internal/escalation"
	"escalator/internal/hierarchy"
	"escalator/internal/metrics"
)

// Engine defines the operations the HTTP surface triggers.
type Engine interface {
	RunSLASweep(ctx context.Context) (domain.Result, error)
	EscalateCase(ctx context.Context, caseID string, kind domain.EscalationType) (domain.Result, error)
	NotifyWorkOrderCompleted(ctx context.Context, ev domain.WorkOrderEvent) (domain.Result, error)
	NotifyTagged(ctx context.Context, ev domain.TagEvent) (domain.Result, error)
}

type API struct {
	engine Engine
	token  string
}

// New creates the API. An empty token leaves the /v1 routes open.
func New(engine Engine, token string) *API {
	if engine == nil {
		panic("api: engine is required")
	}
	return &API{engine: engine, token: token}
}

// Handler builds the router: /healthz and /metrics are public, /v1 is
// guarded by the bearer token when one is configured.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.requireToken)
		r.Post("/sweeps", a.handleSweep)
		r.Post("/cases/{caseID}/escalations", a.handleEscalate)
		r.Post("/work-orders/{workOrderID}/status", a.handleWorkOrderStatus)
		r.Post("/notes/tags", a.handleTag)
	})
	return r
}

func (a *API) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleSweep(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.RunSLASweep(r.Context())
	if err != nil {
		log.Printf("api: sweep failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newResultView(res))
}

type escalateRequest struct {
	Type string `json:"type"`
}

func (a *API) handleEscalate(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	var req escalateRequest
	if !decode(w, r, &req) {
		return
	}
	kind, ok := domain.ParseEscalationType(req.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, `type must be "critical" or "sla_violation"`)
		return
	}

	res, err := a.engine.EscalateCase(r.Context(), caseID, kind)
	switch {
	case errors.Is(err, domain.ErrCaseNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, hierarchy.ErrRecipientResolution):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		log.Printf("api: escalate case=%s failed: %v", caseID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newResultView(res))
}

type workOrderStatusRequest struct {
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
	CreatorID      string `json:"creator_id"`
	Title          string `json:"title"`
}

func (a *API) handleWorkOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req workOrderStatusRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	res, err := a.engine.NotifyWorkOrderCompleted(r.Context(), domain.WorkOrderEvent{
		WorkOrderID:    chi.URLParam(r, "workOrderID"),
		Title:          req.Title,
		CreatorID:      req.CreatorID,
		PreviousStatus: req.PreviousStatus,
		Status:         req.Status,
	})
	if errors.Is(err, escalation.ErrMissingCreator) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newResultView(res))
}

type tagRequest struct {
	CaseID       string `json:"case_id"`
	NoteID       string `json:"note_id"`
	TaggedUserID string `json:"tagged_user_id"`
	AuthorName   string `json:"author_name"`
	Excerpt      string `json:"excerpt"`
}

func (a *API) handleTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CaseID == "" || req.TaggedUserID == "" {
		writeError(w, http.StatusBadRequest, "case_id and tagged_user_id are required")
		return
	}

	res, err := a.engine.NotifyTagged(r.Context(), domain.TagEvent{
		CaseID:       req.CaseID,
		NoteID:       req.NoteID,
		TaggedUserID: req.TaggedUserID,
		AuthorName:   req.AuthorName,
		Excerpt:      req.Excerpt,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newResultView(res))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
