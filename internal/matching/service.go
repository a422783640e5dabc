package matching

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyMapping = errors.New("pattern and category are required")

//go:generate mockgen -source=service.go -destination=service_mock.go -package=matching
type Repository interface {
	FindCategory(ctx context.Context, rawDescription string) (string, error)
	UpsertMapping(ctx context.Context, rawPattern, category string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns the category learned for the longest pattern contained in
// rawDescription. Returns empty string if no match found.
func (s *Service) Suggest(ctx context.Context, rawDescription string) (string, error) {
	rawDescription = strings.TrimSpace(rawDescription)
	if rawDescription == "" {
		return "", nil
	}

	return s.repo.FindCategory(ctx, rawDescription)
}

// Learn remembers that descriptions containing rawPattern belong to category.
// Learning the same pattern again replaces its category.
func (s *Service) Learn(ctx context.Context, rawPattern, category string) error {
	rawPattern = strings.TrimSpace(rawPattern)
	category = strings.TrimSpace(category)

	if rawPattern == "" || category == "" {
		return ErrEmptyMapping
	}

	return s.repo.UpsertMapping(ctx, rawPattern, category)
}
