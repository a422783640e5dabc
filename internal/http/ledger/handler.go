package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/http/api"
	"github.com/MrJamesThe3rd/tesouraria/internal/ledger"
)

type Handler struct {
	aggregator *ledger.Aggregator
	validator  ledger.Validator
}

func NewHandler(aggregator *ledger.Aggregator, validator ledger.Validator) *Handler {
	return &Handler{aggregator: aggregator, validator: validator}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{year}/{month}", h.aggregate)
}

type aggregateResponse struct {
	Period  string           `json:"period"`
	Figures *api.Figures     `json:"figures"`
	Warning *warningResponse `json:"warning,omitempty"`
}

type warningResponse struct {
	Computed api.Money `json:"computed"`
	Expected api.Money `json:"expected"`
	Delta    api.Money `json:"delta"`
}

func toWarning(w *ledger.DiscrepancyWarning) *warningResponse {
	if w == nil {
		return nil
	}

	return &warningResponse{
		Computed: api.Money(w.Computed.StringFixed(2)),
		Expected: api.Money(w.Expected.StringFixed(2)),
		Delta:    api.Money(w.Delta.StringFixed(2)),
	}
}

// aggregate computes the figures of a period. With ?expected= the closing
// balance is also checked against the given amount.
func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) {
	key, err := api.PeriodKey(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	var expected *decimal.Decimal

	if s := r.URL.Query().Get("expected"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid expected balance")
			return
		}

		expected = &d
	}

	figures, err := h.aggregator.Aggregate(r.Context(), key)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	resp := aggregateResponse{
		Period:  key.String(),
		Figures: api.ToFigures(&figures),
	}

	if expected != nil {
		resp.Warning = toWarning(h.validator.Validate(figures.Closing, *expected))
	}

	api.JSON(w, http.StatusOK, resp)
}
