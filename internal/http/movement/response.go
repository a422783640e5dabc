package movement

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tesouraria/internal/http/api"
	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
)

type movementResponse struct {
	ID          uuid.UUID       `json:"id"`
	Kind        movement.Kind   `json:"kind"`
	Amount      api.Money       `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Period      string          `json:"period"`
	ContentHash string          `json:"content_hash"`
	Source      movement.Source `json:"source"`
	SourceRef   string          `json:"source_ref,omitempty"`
	AnnulledAt  *time.Time      `json:"annulled_at,omitempty"`
	AnnulReason string          `json:"annul_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

func toResponse(m *movement.Movement) movementResponse {
	return movementResponse{
		ID:          m.ID,
		Kind:        m.Kind,
		Amount:      api.Money(m.Amount.StringFixed(2)),
		Date:        m.Date.Format(time.DateOnly),
		Description: m.Description,
		Category:    m.Category,
		Period:      m.Period.String(),
		ContentHash: m.ContentHash,
		Source:      m.Source,
		SourceRef:   m.SourceRef,
		AnnulledAt:  m.AnnulledAt,
		AnnulReason: m.AnnulReason,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toResponseList(ms []*movement.Movement) []movementResponse {
	resp := make([]movementResponse, len(ms))
	for i, m := range ms {
		resp[i] = toResponse(m)
	}

	return resp
}
