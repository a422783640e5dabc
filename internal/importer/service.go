package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Categorizer suggests a category for a raw concept, or "" when it has none.
type Categorizer interface {
	Suggest(ctx context.Context, rawDescription string) (string, error)
}

type Service struct {
	parsers     map[Format]Parser
	categorizer Categorizer
	committer   *Committer
}

func NewService(parsers map[Format]Parser, categorizer Categorizer, committer *Committer) *Service {
	return &Service{
		parsers:     parsers,
		categorizer: categorizer,
		committer:   committer,
	}
}

// Parse reads a source file and returns its candidates grouped by period.
// Candidates without a category get the suggested one, if any.
func (s *Service) Parse(ctx context.Context, format Format, r io.Reader) ([]Batch, error) {
	parser, ok := s.parsers[format]
	if !ok {
		return nil, fmt.Errorf("unknown format: %s", format)
	}

	batches, err := parser.Parse(r)
	if err != nil {
		return nil, err
	}

	if s.categorizer == nil {
		return batches, nil
	}

	for bi := range batches {
		for ci := range batches[bi].Candidates {
			cand := &batches[bi].Candidates[ci]
			if cand.Category != "" {
				continue
			}

			category, err := s.categorizer.Suggest(ctx, cand.Concept)
			if err != nil {
				slog.Warn("category suggestion failed", "concept", cand.Concept, "error", err)
				continue
			}

			cand.Category = category
		}
	}

	return batches, nil
}

// Import parses the file and commits it.
func (s *Service) Import(ctx context.Context, format Format, r io.Reader, dryRun bool) (Report, error) {
	batches, err := s.Parse(ctx, format, r)
	if err != nil {
		return nil, err
	}

	return s.committer.Import(ctx, batches, dryRun)
}

// Formats lists the registered formats.
func (s *Service) Formats() []Format {
	out := make([]Format, 0, len(s.parsers))
	for _, f := range []Format{FormatTesouraria, FormatCGD, FormatAuto} {
		if _, ok := s.parsers[f]; ok {
			out = append(out, f)
		}
	}

	return out
}
