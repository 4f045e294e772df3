// Package execution orchestrates the execution lifecycle operations that
// span the store and the chunking collaborator: approval, disapproval and
// rendering a document's content.
package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// Chunker derives search chunks from an execution's section outputs. It is
// implemented outside the generation core.
type Chunker interface {
	GenerateChunks(ctx context.Context, exec *types.Execution) error
	DeleteChunks(ctx context.Context, executionID string) error
}

// NopChunker is a Chunker that keeps no chunks.
type NopChunker struct{}

func (NopChunker) GenerateChunks(context.Context, *types.Execution) error { return nil }
func (NopChunker) DeleteChunks(context.Context, string) error { return nil }

// Store is the persistence the service needs.
type Store interface {
	CreateExecution(ctx context.Context, documentID, llmID, userInstructions string) (*types.Execution, error)
	GetExecution(ctx context.Context, id string) (*types.Execution, error)
	ListExecutions(ctx context.Context, documentID string) ([]types.Execution, error)
	ApproveExecution(ctx context.Context, id string) (string, error)
	DisapproveExecution(ctx context.Context, id string) (bool, error)
	ContentExecution(ctx context.Context, documentID string) (*types.Execution, error)
	SetCustomOutput(ctx context.Context, id string, text *string) (*types.SectionExecution, error)
	SetSectionLocked(ctx context.Context, id string, locked bool) error
}

// Service is the execution lifecycle service.
type Service struct {
	store   Store
	chunker Chunker
	logger  zerolog.Logger
}

// NewService returns a service over store. A nil chunker keeps no chunks.
func NewService(store Store, chunker Chunker, logger zerolog.Logger) *Service {
	if chunker == nil {
		chunker = NopChunker{}
	}
	return &Service{store: store, chunker: chunker, logger: logger.With().Str("component", "execution").Logger()}
}

// Create opens a PENDING execution of a document.
func (s *Service) Create(ctx context.Context, documentID, llmID, userInstructions string) (*types.Execution, error) {
	return s.store.CreateExecution(ctx, documentID, llmID, userInstructions)
}

// Get returns the execution with its status, message and ordered section
// results.
func (s *Service) Get(ctx context.Context, id string) (*types.Execution, error) {
	return s.store.GetExecution(ctx, id)
}

// List returns a document's executions in creation order.
func (s *Service) List(ctx context.Context, documentID string) ([]types.Execution, error) {
	return s.store.ListExecutions(ctx, documentID)
}

// Approve makes a COMPLETED execution the document's approved one.
//
// Chunks are generated first and a chunking failure aborts the approval with
// nothing changed. The regression of any previously approved execution and
// the approval itself commit together; the regressed execution's chunks are
// dropped afterwards. Approving an APPROVED execution does nothing.
func (s *Service) Approve(ctx context.Context, id string) (*types.Execution, error) {
	exec, err := s.store.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if exec.Status == types.ExecutionApproved {
		return exec, nil
	}
	if !exec.Status.CanTransition(types.ExecutionApproved) {
		return nil, fmt.Errorf("approving execution %s in %s: %w", id, exec.Status, types.ErrInvalidTransition)
	}

	if err := s.chunker.GenerateChunks(ctx, exec); err != nil {
		return nil, fmt.Errorf("generating chunks for execution %s: %w", id, err)
	}

	regressed, err := s.store.ApproveExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	log := s.logger.With().Str("execution_id", id).Logger()
	if regressed != "" {
		if err := s.chunker.DeleteChunks(ctx, regressed); err != nil {
			log.Error().Err(err).Str("regressed_execution_id", regressed).Msg("Deleting chunks of regressed execution failed")
		}
		log.Info().Str("regressed_execution_id", regressed).Msg("Regressed previously approved execution")
	}
	log.Info().Msg("Execution approved")
	return s.store.GetExecution(ctx, id)
}

// Disapprove moves an APPROVED execution back to COMPLETED and drops its
// chunks. A COMPLETED execution is returned unchanged; any other status
// fails ErrInvalidTransition.
func (s *Service) Disapprove(ctx context.Context, id string) (*types.Execution, error) {
	changed, err := s.store.DisapproveExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.chunker.DeleteChunks(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("execution_id", id).Msg("Deleting chunks of disapproved execution failed")
		}
		s.logger.Info().Str("execution_id", id).Msg("Execution disapproved")
	}
	return s.store.GetExecution(ctx, id)
}

// Content renders a document's current content: the sections of its
// APPROVED execution, else of its most recent COMPLETED one. Returns
// ErrNotFound when the document has neither.
func (s *Service) Content(ctx context.Context, documentID string) (string, error) {
	exec, err := s.store.ContentExecution(ctx, documentID)
	if err != nil {
		return "", err
	}
	return Render(exec.Sections), nil
}

// SetCustomOutput records a user edit of one section result.
func (s *Service) SetCustomOutput(ctx context.Context, sectionExecutionID string, text *string) (*types.SectionExecution, error) {
	return s.store.SetCustomOutput(ctx, sectionExecutionID, text)
}

// SetSectionLocked locks or unlocks one section result against edits.
func (s *Service) SetSectionLocked(ctx context.Context, sectionExecutionID string, locked bool) error {
	return s.store.SetSectionLocked(ctx, sectionExecutionID, locked)
}

// Render joins section results in the given order as markdown, one heading
// per section, custom output preferred. Sections without text are skipped.
func Render(sections []types.SectionExecution) string {
	var b strings.Builder
	for _, sec := range sections {
		text := strings.TrimSpace(sec.Text())
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(sec.Name)
		b.WriteString("\n\n")
		b.WriteString(text)
	}
	return b.String()
}
