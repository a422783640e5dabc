package movement

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/http/api"
	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

type Handler struct {
	svc *movement.Service
}

func NewHandler(svc *movement.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/annul", h.annul)
}

type createMovementRequest struct {
	Kind        movement.Kind   `json:"kind" validate:"required,oneof=income expense opening_balance"`
	Amount      decimal.Decimal `json:"amount" validate:"-"`
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	Description string          `json:"description" validate:"required,max=500"`
	Category    string          `json:"category" validate:"max=100"`
	// Period tags an opening balance with the period it opens, as YYYY-MM.
	Period string `json:"period" validate:"omitempty,datetime=2006-01"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createMovementRequest
	if !api.Decode(w, r, &req) {
		return
	}

	date, _ := time.Parse(time.DateOnly, req.Date)

	params := movement.CreateParams{
		Kind:        req.Kind,
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		Category:    req.Category,
		Source:      movement.SourceManual,
	}

	if req.Period != "" {
		key, err := period.ParseKey(req.Period)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, err.Error())
			return
		}

		params.Period = &key
	}

	m, err := h.svc.Create(r.Context(), params)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusCreated, toResponse(m))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := movement.ListFilter{}
	q := r.URL.Query()

	if s := q.Get("period"); s != "" {
		key, err := period.ParseKey(s)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, err.Error())
			return
		}

		filter.Period = &key
	}

	if s := q.Get("kind"); s != "" {
		kind := movement.Kind(s)
		filter.Kind = &kind
	}

	if s := q.Get("start_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.StartDate = &t
		}
	}

	if s := q.Get("end_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.EndDate = &t
		}
	}

	if s := q.Get("include_annulled"); s != "" {
		filter.IncludeAnnulled, _ = strconv.ParseBool(s)
	}

	ms, err := h.svc.List(r.Context(), filter)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, toResponseList(ms))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid id")
		return
	}

	m, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, toResponse(m))
}

type updateMovementRequest struct {
	Kind        *movement.Kind   `json:"kind,omitempty" validate:"omitempty,oneof=income expense opening_balance"`
	Amount      *decimal.Decimal `json:"amount,omitempty" validate:"-"`
	Date        *string          `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=500"`
	Category    *string          `json:"category,omitempty" validate:"omitempty,max=100"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req updateMovementRequest
	if !api.Decode(w, r, &req) {
		return
	}

	params := movement.UpdateParams{
		Kind:        req.Kind,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
	}

	if req.Date != nil {
		date, _ := time.Parse(time.DateOnly, *req.Date)
		params.Date = &date
	}

	m, err := h.svc.Update(r.Context(), id, params)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, toResponse(m))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type annulRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) annul(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req annulRequest
	if !api.Decode(w, r, &req) {
		return
	}

	if err := h.svc.Annul(r.Context(), id, req.Reason); err != nil {
		api.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
