package period

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/tesouraria/internal/http/api"
	"github.com/MrJamesThe3rd/tesouraria/internal/http/auth"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

type Handler struct {
	svc       *period.Service
	adminRole string
}

func NewHandler(svc *period.Service, adminRole string) *Handler {
	return &Handler{svc: svc, adminRole: adminRole}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)

	r.Route("/{year}/{month}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/close", h.close)
		r.With(auth.RequireRole(h.adminRole)).Post("/reopen", h.reopen)
	})
}

type periodResponse struct {
	Period   string       `json:"period"`
	Closed   bool         `json:"closed"`
	ClosedAt *time.Time   `json:"closed_at,omitempty"`
	ClosedBy string       `json:"closed_by,omitempty"`
	Notes    string       `json:"notes,omitempty"`
	Snapshot *api.Figures `json:"snapshot,omitempty"`
	Live     *api.Figures `json:"live,omitempty"`
}

func toResponse(p *period.Period) periodResponse {
	return periodResponse{
		Period:   p.Key.String(),
		Closed:   p.Closed,
		ClosedAt: p.ClosedAt,
		ClosedBy: p.ClosedBy,
		Notes:    p.Notes,
		Snapshot: api.ToFigures(p.Figures),
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()

	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid year")
			return
		}

		year = y
	}

	periods, err := h.svc.List(r.Context(), year)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	resp := make([]periodResponse, len(periods))
	for i, p := range periods {
		resp[i] = toResponse(p)
	}

	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	key, err := api.PeriodKey(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.svc.Status(r.Context(), key)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	resp := toResponse(status.Period)
	resp.Live = api.ToFigures(&status.Live)

	api.JSON(w, http.StatusOK, resp)
}

type closeRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	key, err := api.PeriodKey(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	var req closeRequest
	if r.ContentLength != 0 && !api.Decode(w, r, &req) {
		return
	}

	p, err := h.svc.Close(r.Context(), key, auth.Name(r.Context()), req.Notes)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusCreated, toResponse(p))
}

type reopenRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	key, err := api.PeriodKey(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	var req reopenRequest
	if !api.Decode(w, r, &req) {
		return
	}

	p, err := h.svc.Reopen(r.Context(), key, req.Reason, auth.Name(r.Context()))
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, toResponse(p))
}
