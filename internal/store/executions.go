// This file implements executions and their lifecycle transitions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/folio/pkg/types"
)

const executionColumns = "execution_id, document_id, llm_id, name, status, status_message, user_instructions, created_at, updated_at"

// CreateExecution opens a PENDING execution of a document named
// "Version N+1", where N counts the document's existing executions. One
// section result row per current section is materialised in the same
// transaction with an empty output.
func (s *Store) CreateExecution(ctx context.Context, documentID, llmID, userInstructions string) (*types.Execution, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	var exec *types.Execution
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getDocument(ctx, tx, documentID); err != nil {
			return err
		}
		var n int
		if err := s.queryRow(ctx, tx, "SELECT COUNT(*) FROM executions WHERE document_id = ?", documentID).Scan(&n); err != nil {
			return fmt.Errorf("counting executions of document %s: %w", documentID, err)
		}

		now, ts := s.now()
		exec = &types.Execution{
			ExecutionID:      id,
			DocumentID:       documentID,
			LLMID:            llmID,
			Name:             fmt.Sprintf("Version %d", n+1),
			Status:           types.ExecutionPending,
			UserInstructions: userInstructions,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		_, err := s.exec(ctx, tx,
			"INSERT INTO executions ("+executionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			exec.ExecutionID, exec.DocumentID, nullString(optional(llmID)), exec.Name, string(exec.Status),
			exec.StatusMessage, exec.UserInstructions, ts, ts,
		)
		if err != nil {
			return translate(err, "inserting execution")
		}

		sections, err := s.listSections(ctx, tx, documentID)
		if err != nil {
			return err
		}
		for _, sec := range sections {
			sectionID := sec.SectionID
			row := types.SectionExecution{
				ExecutionID: id,
				SectionID:   &sectionID,
				Name:        sec.Name,
				Prompt:      sec.Prompt,
				Order:       sec.Order,
			}
			if err := s.insertSectionExecution(ctx, tx, &row); err != nil {
				return err
			}
			exec.Sections = append(exec.Sections, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// GetExecution returns the execution with its section results ascending by
// order.
func (s *Store) GetExecution(ctx context.Context, id string) (*types.Execution, error) {
	exec, err := s.getExecution(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if exec.Sections, err = s.listSectionExecutions(ctx, s.db, id); err != nil {
		return nil, err
	}
	return exec, nil
}

func (s *Store) getExecution(ctx context.Context, q querier, id string) (*types.Execution, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.queryRow(ctx, q, "SELECT "+executionColumns+" FROM executions WHERE execution_id = ?", id)
	exec, err := hydrateExecution(row)
	if err != nil {
		return nil, notFound(err, "getting execution "+id)
	}
	return exec, nil
}

// ListExecutions returns a document's executions in creation order, without
// their section results.
func (s *Store) ListExecutions(ctx context.Context, documentID string) ([]types.Execution, error) {
	rows, err := s.query(ctx, s.db,
		"SELECT "+executionColumns+" FROM executions WHERE document_id = ? ORDER BY created_at, execution_id",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing executions of document %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []types.Execution
	for rows.Next() {
		exec, err := hydrateExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		out = append(out, *exec)
	}
	return out, rows.Err()
}

// UpdateExecutionStatus moves an execution to next with message. Illegal
// moves fail ErrInvalidTransition and leave the row untouched.
func (s *Store) UpdateExecutionStatus(ctx context.Context, id string, next types.ExecutionStatus, message string) (*types.Execution, error) {
	var exec *types.Execution
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if exec, err = s.getExecution(ctx, tx, id); err != nil {
			return err
		}
		return s.transitionExecution(ctx, tx, exec, next, message)
	})
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// transitionExecution applies the state machine to exec and persists the
// result. The update is guarded on the previous status so a concurrent change
// surfaces as ErrInvalidTransition.
func (s *Store) transitionExecution(ctx context.Context, q querier, exec *types.Execution, next types.ExecutionStatus, message string) error {
	prev := exec.Status
	if err := exec.Transition(next, message); err != nil {
		return fmt.Errorf("execution %s %s -> %s: %w", exec.ExecutionID, prev, next, err)
	}
	now, ts := s.now()
	res, err := s.exec(ctx, q,
		"UPDATE executions SET status = ?, status_message = ?, updated_at = ? WHERE execution_id = ? AND status = ?",
		string(next), message, ts, exec.ExecutionID, string(prev),
	)
	if err != nil {
		return translate(err, "updating execution "+exec.ExecutionID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating execution %s: %w", exec.ExecutionID, err)
	}
	if n == 0 {
		return fmt.Errorf("execution %s changed concurrently: %w", exec.ExecutionID, types.ErrInvalidTransition)
	}
	exec.UpdatedAt = now
	return nil
}

// ApproveExecution marks an execution APPROVED. In the same transaction any
// other APPROVED execution of the document is regressed to COMPLETED; its id
// is returned so the caller can drop derived data. Approving an execution
// that is already APPROVED does nothing and returns "".
func (s *Store) ApproveExecution(ctx context.Context, id string) (regressedID string, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		exec, err := s.getExecution(ctx, tx, id)
		if err != nil {
			return err
		}
		if exec.Status == types.ExecutionApproved {
			return nil
		}
		if !exec.Status.CanTransition(types.ExecutionApproved) {
			return fmt.Errorf("approving execution %s in %s: %w", id, exec.Status, types.ErrInvalidTransition)
		}

		row := s.queryRow(ctx, tx,
			"SELECT "+executionColumns+" FROM executions WHERE document_id = ? AND status = ? AND execution_id <> ?",
			exec.DocumentID, string(types.ExecutionApproved), id,
		)
		prior, err := hydrateExecution(row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("finding approved execution of document %s: %w", exec.DocumentID, err)
		default:
			if err := s.transitionExecution(ctx, tx, prior, types.ExecutionCompleted, prior.StatusMessage); err != nil {
				return err
			}
			regressedID = prior.ExecutionID
		}

		return s.transitionExecution(ctx, tx, exec, types.ExecutionApproved, exec.StatusMessage)
	})
	if err != nil {
		return "", err
	}
	return regressedID, nil
}

// DisapproveExecution moves an APPROVED execution back to COMPLETED and
// reports true. A COMPLETED execution is left alone and reports false; any
// other status fails ErrInvalidTransition.
func (s *Store) DisapproveExecution(ctx context.Context, id string) (bool, error) {
	changed := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		exec, err := s.getExecution(ctx, tx, id)
		if err != nil {
			return err
		}
		switch exec.Status {
		case types.ExecutionCompleted:
			return nil
		case types.ExecutionApproved:
			changed = true
			return s.transitionExecution(ctx, tx, exec, types.ExecutionCompleted, exec.StatusMessage)
		}
		return fmt.Errorf("disapproving execution %s in %s: %w", id, exec.Status, types.ErrInvalidTransition)
	})
	return changed, err
}

// ContentExecution returns the execution whose outputs represent a
// document's content: its APPROVED execution, else its most recent COMPLETED
// one, with section results. Returns ErrNotFound when neither exists.
func (s *Store) ContentExecution(ctx context.Context, documentID string) (*types.Execution, error) {
	row := s.queryRow(ctx, s.db,
		`SELECT `+executionColumns+` FROM executions
         WHERE document_id = ? AND status IN (?, ?)
         ORDER BY CASE status WHEN ? THEN 0 ELSE 1 END, created_at DESC, execution_id DESC
         LIMIT 1`,
		documentID, string(types.ExecutionApproved), string(types.ExecutionCompleted), string(types.ExecutionApproved),
	)
	exec, err := hydrateExecution(row)
	if err != nil {
		return nil, notFound(err, "finding content execution of document "+documentID)
	}
	if exec.Sections, err = s.listSectionExecutions(ctx, s.db, exec.ExecutionID); err != nil {
		return nil, err
	}
	return exec, nil
}

func hydrateExecution(row rowScanner) (*types.Execution, error) {
	var (
		exec                 types.Execution
		llmID                sql.NullString
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&exec.ExecutionID, &exec.DocumentID, &llmID, &exec.Name, &status, &exec.StatusMessage,
		&exec.UserInstructions, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	exec.LLMID = llmID.String
	exec.Status = types.ExecutionStatus(status)
	if exec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if exec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &exec, nil
}

// optional returns nil for the empty string.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
