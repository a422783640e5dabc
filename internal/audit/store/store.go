package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrJamesThe3rd/tesouraria/internal/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, rec audit.Record) error {
	query := `
		INSERT INTO audit_log (id, entity_type, entity_id, action, username, old_values, new_values, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.EntityType,
		rec.EntityID,
		rec.Action,
		rec.User,
		nullJSON(rec.OldValues),
		nullJSON(rec.NewValues),
		sql.NullString{String: rec.Note, Valid: rec.Note != ""},
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// nullJSON keeps empty payloads as SQL NULL instead of an invalid empty jsonb.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}

	return string(b)
}
