// This file implements section results: the per-section rows of an
// execution, the runner's upsert and user edits.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/folio/pkg/types"
)

const sectionExecutionColumns = "section_execution_id, execution_id, section_id, name, prompt, section_order, output, custom_output, is_locked, created_at, updated_at"

func (s *Store) insertSectionExecution(ctx context.Context, q querier, row *types.SectionExecution) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now, ts := s.now()
	_, err = s.exec(ctx, q,
		"INSERT INTO section_executions ("+sectionExecutionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, row.ExecutionID, nullString(row.SectionID), row.Name, row.Prompt, row.Order, row.Output,
		nullString(row.CustomOutput), boolInt(row.IsLocked), ts, ts,
	)
	if err != nil {
		return translate(err, "inserting section execution "+row.Name)
	}
	row.SectionExecutionID = id
	row.CreatedAt = now
	row.UpdatedAt = now
	return nil
}

// SaveOrUpdateSectionExecution upserts row keyed on (execution, section).
// An existing row gets the new name, prompt, order and output; its
// custom_output and is_locked are never touched. On return row carries the
// stored id, custom output, lock flag and timestamps.
func (s *Store) SaveOrUpdateSectionExecution(ctx context.Context, row *types.SectionExecution) error {
	if row.ExecutionID == "" || row.SectionID == nil || *row.SectionID == "" {
		return fmt.Errorf("section execution key: %w", types.ErrInvalidID)
	}
	id, err := newID()
	if err != nil {
		return err
	}
	_, ts := s.now()
	result := s.queryRow(ctx, s.db,
		`INSERT INTO section_executions (`+sectionExecutionColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 0, ?, ?)
         ON CONFLICT (execution_id, section_id) DO UPDATE SET
             name = excluded.name,
             prompt = excluded.prompt,
             section_order = excluded.section_order,
             output = excluded.output,
             updated_at = excluded.updated_at
         RETURNING `+sectionExecutionColumns,
		id, row.ExecutionID, *row.SectionID, row.Name, row.Prompt, row.Order, row.Output, ts, ts,
	)
	stored, err := hydrateSectionExecution(result)
	if err != nil {
		return translate(err, "upserting section execution "+row.Name)
	}
	*row = *stored
	return nil
}

// GetSectionExecution returns one section result.
func (s *Store) GetSectionExecution(ctx context.Context, id string) (*types.SectionExecution, error) {
	return s.getSectionExecution(ctx, s.db, id)
}

func (s *Store) getSectionExecution(ctx context.Context, q querier, id string) (*types.SectionExecution, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.queryRow(ctx, q, "SELECT "+sectionExecutionColumns+" FROM section_executions WHERE section_execution_id = ?", id)
	se, err := hydrateSectionExecution(row)
	if err != nil {
		return nil, notFound(err, "getting section execution "+id)
	}
	return se, nil
}

// ListSectionExecutions returns an execution's section results ascending by
// order.
func (s *Store) ListSectionExecutions(ctx context.Context, executionID string) ([]types.SectionExecution, error) {
	return s.listSectionExecutions(ctx, s.db, executionID)
}

func (s *Store) listSectionExecutions(ctx context.Context, q querier, executionID string) ([]types.SectionExecution, error) {
	rows, err := s.query(ctx, q,
		"SELECT "+sectionExecutionColumns+" FROM section_executions WHERE execution_id = ? ORDER BY section_order, section_execution_id",
		executionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing section executions of %s: %w", executionID, err)
	}
	defer rows.Close()

	var out []types.SectionExecution
	for rows.Next() {
		se, err := hydrateSectionExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning section execution: %w", err)
		}
		out = append(out, *se)
	}
	return out, rows.Err()
}

// SectionOutputs returns the non-empty text of each section result of an
// execution keyed by section id, custom output taking precedence. Rows whose
// section was deleted are skipped.
func (s *Store) SectionOutputs(ctx context.Context, executionID string) (map[string]string, error) {
	rows, err := s.listSectionExecutions(ctx, s.db, executionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.SectionID == nil {
			continue
		}
		if text := r.Text(); text != "" {
			out[*r.SectionID] = text
		}
	}
	return out, nil
}

// SetCustomOutput records a user edit of a section result. A nil text
// clears the edit. Locked rows fail ErrSectionLocked.
func (s *Store) SetCustomOutput(ctx context.Context, id string, text *string) (*types.SectionExecution, error) {
	var se *types.SectionExecution
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if se, err = s.getSectionExecution(ctx, tx, id); err != nil {
			return err
		}
		if se.IsLocked {
			return fmt.Errorf("editing section execution %s: %w", id, types.ErrSectionLocked)
		}
		now, ts := s.now()
		if _, err := s.exec(ctx, tx,
			"UPDATE section_executions SET custom_output = ?, updated_at = ? WHERE section_execution_id = ?",
			nullString(text), ts, id,
		); err != nil {
			return fmt.Errorf("updating custom output of %s: %w", id, err)
		}
		se.CustomOutput = text
		se.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return se, nil
}

// SetSectionLocked sets the lock flag of a section result.
func (s *Store) SetSectionLocked(ctx context.Context, id string, locked bool) error {
	_, ts := s.now()
	res, err := s.exec(ctx, s.db,
		"UPDATE section_executions SET is_locked = ?, updated_at = ? WHERE section_execution_id = ?",
		boolInt(locked), ts, id,
	)
	if err != nil {
		return fmt.Errorf("locking section execution %s: %w", id, err)
	}
	return requireAffected(res, "locking section execution "+id)
}

func hydrateSectionExecution(row rowScanner) (*types.SectionExecution, error) {
	var (
		se                   types.SectionExecution
		sectionID, customOut sql.NullString
		locked               int
		createdAt, updatedAt string
	)
	err := row.Scan(&se.SectionExecutionID, &se.ExecutionID, &sectionID, &se.Name, &se.Prompt, &se.Order,
		&se.Output, &customOut, &locked, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	se.SectionID = stringPtr(sectionID)
	se.CustomOutput = stringPtr(customOut)
	se.IsLocked = locked != 0
	if se.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if se.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &se, nil
}
