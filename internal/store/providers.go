package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/folio/pkg/types"
)

const providerColumns = "provider_id, name, key_handle, endpoint_handle, deployment_handle, created_at, updated_at"

// CreateProvider inserts p. The Key, Endpoint and Deployment fields must
// already hold secret handles.
func (s *Store) CreateProvider(ctx context.Context, p *types.LLMProvider) error {
	if p.Name == "" {
		return types.ErrInvalidName
	}
	id, err := newID()
	if err != nil {
		return err
	}
	now, ts := s.now()
	_, err = s.exec(ctx, s.db,
		"INSERT INTO llm_providers ("+providerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, p.Name, nullString(p.Key), nullString(p.Endpoint), nullString(p.Deployment), ts, ts,
	)
	if err != nil {
		return translate(err, "inserting provider "+p.Name)
	}
	p.ProviderID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetProvider returns the provider with the given id.
func (s *Store) GetProvider(ctx context.Context, id string) (*types.LLMProvider, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.queryRow(ctx, s.db, "SELECT "+providerColumns+" FROM llm_providers WHERE provider_id = ?", id)
	p, err := hydrateProvider(row)
	if err != nil {
		return nil, notFound(err, "getting provider "+id)
	}
	return p, nil
}

// ListProviders returns every provider ordered by name.
func (s *Store) ListProviders(ctx context.Context) ([]types.LLMProvider, error) {
	rows, err := s.query(ctx, s.db, "SELECT "+providerColumns+" FROM llm_providers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}
	defer rows.Close()

	var out []types.LLMProvider
	for rows.Next() {
		p, err := hydrateProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning provider: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateProvider overwrites the handle columns of p.
func (s *Store) UpdateProvider(ctx context.Context, p *types.LLMProvider) error {
	now, ts := s.now()
	res, err := s.exec(ctx, s.db,
		"UPDATE llm_providers SET key_handle = ?, endpoint_handle = ?, deployment_handle = ?, updated_at = ? WHERE provider_id = ?",
		nullString(p.Key), nullString(p.Endpoint), nullString(p.Deployment), ts, p.ProviderID,
	)
	if err != nil {
		return translate(err, "updating provider "+p.ProviderID)
	}
	if err := requireAffected(res, "updating provider "+p.ProviderID); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// DeleteProvider removes a provider and its models.
func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, "DELETE FROM llm_providers WHERE provider_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting provider %s: %w", id, err)
	}
	return requireAffected(res, "deleting provider "+id)
}

func hydrateProvider(row rowScanner) (*types.LLMProvider, error) {
	var (
		p                         types.LLMProvider
		key, endpoint, deployment sql.NullString
		createdAt, updatedAt      string
	)
	err := row.Scan(&p.ProviderID, &p.Name, &key, &endpoint, &deployment, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.Key = stringPtr(key)
	p.Endpoint = stringPtr(endpoint)
	p.Deployment = stringPtr(deployment)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
