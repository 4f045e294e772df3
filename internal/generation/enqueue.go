package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// Queue accepts jobs.
type Queue interface {
	sectionLookup
	EnqueueJob(ctx context.Context, jobType string, payload json.RawMessage) (*types.Job, error)
}

type sectionLookup interface {
	GetSection(ctx context.Context, id string) (*types.Section, error)
}

// checkStartSection rejects a start section that is not a section of the
// payload's document.
func checkStartSection(ctx context.Context, lookup sectionLookup, p types.GenerationPayload) error {
	if p.StartSectionID == "" {
		return nil
	}
	sec, err := lookup.GetSection(ctx, p.StartSectionID)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return fmt.Errorf("loading start section %s: %w", p.StartSectionID, err)
	case sec.DocumentID == p.DocumentID:
		return nil
	}
	return fmt.Errorf("start section %s is not a section of document %s: %w", p.StartSectionID, p.DocumentID, types.ErrValidation)
}

// Enqueue validates p, including its start section, and queues a run_generation_graph job for it.
func Enqueue(ctx context.Context, q Queue, p types.GenerationPayload) (*types.Job, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkStartSection(ctx, q, p); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding generation payload: %w", err)
	}
	return q.EnqueueJob(ctx, types.JobTypeGeneration, raw)
}
