package matching

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/tesouraria/internal/http/api"
	"github.com/MrJamesThe3rd/tesouraria/internal/matching"
)

type Handler struct {
	svc *matching.Service
}

func NewHandler(svc *matching.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/suggest", h.suggest)
	r.Post("/", h.learn)
}

type suggestResponse struct {
	RawDescription string `json:"raw_description"`
	Category       string `json:"category"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	rawDesc := r.URL.Query().Get("raw_description")
	if rawDesc == "" {
		api.Fail(w, http.StatusBadRequest, "raw_description query parameter is required")
		return
	}

	category, err := h.svc.Suggest(r.Context(), rawDesc)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, suggestResponse{
		RawDescription: rawDesc,
		Category:       category,
	})
}

type learnRequest struct {
	RawPattern string `json:"raw_pattern" validate:"required,max=200"`
	Category   string `json:"category" validate:"required,max=100"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if !api.Decode(w, r, &req) {
		return
	}

	if err := h.svc.Learn(r.Context(), req.RawPattern, req.Category); err != nil {
		api.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
