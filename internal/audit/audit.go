package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a single audit record.
type Entry struct {
	ID         uuid.UUID
	EntityType string
	EntityID   string
	Action     string
	User       string
	OldValues  any
	NewValues  any
	Note       string
	CreatedAt  time.Time
}

// Record is an Entry with its values already encoded, ready to be stored.
type Record struct {
	ID         uuid.UUID
	EntityType string
	EntityID   string
	Action     string
	User       string
	OldValues  []byte
	NewValues  []byte
	Note       string
	CreatedAt  time.Time
}

//go:generate mockgen -source=audit.go -destination=audit_mock.go -package=audit
type Repository interface {
	Insert(ctx context.Context, rec Record) error
}

// Service writes audit records in the background. Callers never see its
// failures; they are logged instead.
type Service struct {
	repo    Repository
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewService(repo Repository, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Service{repo: repo, timeout: timeout}
}

// LogAsync stores the entry without blocking the caller. The write outlives
// the caller's context cancellation but not the service timeout.
func (s *Service) LogAsync(ctx context.Context, e Entry) {
	rec, err := encode(e)
	if err != nil {
		slog.Error("failed to encode audit entry", "entity", e.EntityType, "id", e.EntityID, "action", e.Action, "error", err)
		return
	}

	bg := context.WithoutCancel(ctx)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(bg, s.timeout)
		defer cancel()

		if err := s.repo.Insert(ctx, rec); err != nil {
			slog.Error("failed to write audit entry", "entity", rec.EntityType, "id", rec.EntityID, "action", rec.Action, "error", err)
		}
	}()
}

// Wait blocks until every pending write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func encode(e Entry) (Record, error) {
	rec := Record{
		ID:         e.ID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		User:       e.User,
		Note:       e.Note,
		CreatedAt:  e.CreatedAt,
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var err error

	if rec.OldValues, err = marshal(e.OldValues); err != nil {
		return Record{}, fmt.Errorf("old values: %w", err)
	}

	if rec.NewValues, err = marshal(e.NewValues); err != nil {
		return Record{}, fmt.Errorf("new values: %w", err)
	}

	return rec, nil
}

func marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}
