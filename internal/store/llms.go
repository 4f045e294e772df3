package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/folio/pkg/types"
)

const llmColumns = "llm_id, provider_id, name, internal_name, is_default, created_at, updated_at"

// CreateLLM inserts m. When m is the default, any previous default is
// cleared in the same transaction.
func (s *Store) CreateLLM(ctx context.Context, m *types.LLM) error {
	if m.Name == "" || m.InternalName == "" {
		return types.ErrInvalidName
	}
	if m.ProviderID == "" {
		return fmt.Errorf("llm provider: %w", types.ErrInvalidID)
	}
	id, err := newID()
	if err != nil {
		return err
	}
	now, ts := s.now()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if m.IsDefault {
			if _, err := s.exec(ctx, tx, "UPDATE llms SET is_default = 0, updated_at = ? WHERE is_default = 1", ts); err != nil {
				return fmt.Errorf("clearing default llm: %w", err)
			}
		}
		_, err := s.exec(ctx, tx,
			"INSERT INTO llms ("+llmColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			id, m.ProviderID, m.Name, m.InternalName, boolInt(m.IsDefault), ts, ts,
		)
		return translate(err, "inserting llm "+m.Name)
	})
	if err != nil {
		return err
	}
	m.LLMID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetLLM returns the model with the given id.
func (s *Store) GetLLM(ctx context.Context, id string) (*types.LLM, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.queryRow(ctx, s.db, "SELECT "+llmColumns+" FROM llms WHERE llm_id = ?", id)
	m, err := hydrateLLM(row)
	if err != nil {
		return nil, notFound(err, "getting llm "+id)
	}
	return m, nil
}

// GetLLMByInternalName returns the first model (by creation) whose provider
// model id is name.
func (s *Store) GetLLMByInternalName(ctx context.Context, name string) (*types.LLM, error) {
	row := s.queryRow(ctx, s.db,
		"SELECT "+llmColumns+" FROM llms WHERE internal_name = ? ORDER BY created_at, llm_id LIMIT 1", name)
	m, err := hydrateLLM(row)
	if err != nil {
		return nil, notFound(err, "getting llm by internal name "+name)
	}
	return m, nil
}

// GetDefaultLLM returns the system default model.
func (s *Store) GetDefaultLLM(ctx context.Context) (*types.LLM, error) {
	row := s.queryRow(ctx, s.db, "SELECT "+llmColumns+" FROM llms WHERE is_default = 1")
	m, err := hydrateLLM(row)
	if err != nil {
		return nil, notFound(err, "getting default llm")
	}
	return m, nil
}

// ListLLMs returns every model ordered by name.
func (s *Store) ListLLMs(ctx context.Context) ([]types.LLM, error) {
	rows, err := s.query(ctx, s.db, "SELECT "+llmColumns+" FROM llms ORDER BY name, llm_id")
	if err != nil {
		return nil, fmt.Errorf("listing llms: %w", err)
	}
	defer rows.Close()

	var out []types.LLM
	for rows.Next() {
		m, err := hydrateLLM(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning llm: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// DeleteLLM removes a model. Executions that referenced it keep the id.
func (s *Store) DeleteLLM(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, "DELETE FROM llms WHERE llm_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting llm %s: %w", id, err)
	}
	return requireAffected(res, "deleting llm "+id)
}

func hydrateLLM(row rowScanner) (*types.LLM, error) {
	var (
		m                    types.LLM
		isDefault            int
		createdAt, updatedAt string
	)
	err := row.Scan(&m.LLMID, &m.ProviderID, &m.Name, &m.InternalName, &isDefault, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.IsDefault = isDefault != 0
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
