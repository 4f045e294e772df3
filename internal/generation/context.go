package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/folio/internal/execution"
	"github.com/mesh-intelligence/folio/pkg/types"
)

// documentContext joins the context blobs of a document with the rendered
// content of every document it depends on. A dependency without approved or
// completed content contributes nothing.
func (r *Runner) documentContext(ctx context.Context, documentID string) (string, error) {
	blobs, err := r.store.ListDocumentContexts(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("loading context of document %s: %w", documentID, err)
	}
	parts := make([]string, 0, len(blobs))
	for _, b := range blobs {
		if text := strings.TrimSpace(b.Content); text != "" {
			parts = append(parts, text)
		}
	}

	deps, err := r.store.ListDocumentDependencies(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("loading dependencies of document %s: %w", documentID, err)
	}
	for _, dep := range deps {
		exec, err := r.store.ContentExecution(ctx, dep.DependsOnDocumentID)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("loading content of document %s: %w", dep.DependsOnDocumentID, err)
		}
		content := execution.Render(exec.Sections)
		if content == "" {
			continue
		}
		other, err := r.store.GetDocument(ctx, dep.DependsOnDocumentID)
		if err != nil {
			return "", fmt.Errorf("loading document %s: %w", dep.DependsOnDocumentID, err)
		}
		parts = append(parts, "# "+other.Name+"\n\n"+content)
	}
	return strings.Join(parts, "\n\n"), nil
}
