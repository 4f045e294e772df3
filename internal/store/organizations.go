package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/folio/pkg/types"
)

const organizationColumns = "organization_id, name, created_at, updated_at"

// CreateOrganization inserts an organization with a generated id.
func (s *Store) CreateOrganization(ctx context.Context, name string) (*types.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.ErrInvalidName
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}
	now, ts := s.now()
	_, err = s.exec(ctx, s.db,
		"INSERT INTO organizations ("+organizationColumns+") VALUES (?, ?, ?, ?)",
		id, name, ts, ts,
	)
	if err != nil {
		return nil, translate(err, "inserting organization "+name)
	}
	return &types.Organization{OrganizationID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// GetOrganization returns the organization with the given id.
func (s *Store) GetOrganization(ctx context.Context, id string) (*types.Organization, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.queryRow(ctx, s.db, "SELECT "+organizationColumns+" FROM organizations WHERE organization_id = ?", id)
	org, err := hydrateOrganization(row)
	if err != nil {
		return nil, notFound(err, "getting organization "+id)
	}
	return org, nil
}

// ListOrganizations returns every organization ordered by name.
func (s *Store) ListOrganizations(ctx context.Context) ([]types.Organization, error) {
	rows, err := s.query(ctx, s.db, "SELECT "+organizationColumns+" FROM organizations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer rows.Close()

	var out []types.Organization
	for rows.Next() {
		org, err := hydrateOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		out = append(out, *org)
	}
	return out, rows.Err()
}

func hydrateOrganization(row rowScanner) (*types.Organization, error) {
	var (
		org                  types.Organization
		createdAt, updatedAt string
	)
	if err := row.Scan(&org.OrganizationID, &org.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if org.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if org.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &org, nil
}
