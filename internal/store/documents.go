// This file implements documents, their free-text context blobs and the
// document-to-document (outer) dependencies.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/folio/pkg/types"
)

const documentColumns = "document_id, organization_id, name, description, document_type, template_id, folder_id, created_at, updated_at"

// CreateDocument inserts doc, assigning its id and timestamps.
func (s *Store) CreateDocument(ctx context.Context, doc *types.Document) error {
	doc.Name = strings.TrimSpace(doc.Name)
	if doc.Name == "" {
		return types.ErrInvalidName
	}
	if doc.OrganizationID == "" {
		return fmt.Errorf("document organization: %w", types.ErrInvalidID)
	}
	id, err := newID()
	if err != nil {
		return err
	}
	now, ts := s.now()
	_, err = s.exec(ctx, s.db,
		"INSERT INTO documents ("+documentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, doc.OrganizationID, doc.Name, doc.Description, doc.DocumentType,
		nullString(doc.TemplateID), nullString(doc.FolderID), ts, ts,
	)
	if err != nil {
		return translate(err, "inserting document "+doc.Name)
	}
	doc.DocumentID = id
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

// GetDocument returns the document without its sections.
func (s *Store) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	return s.getDocument(ctx, s.db, id)
}

func (s *Store) getDocument(ctx context.Context, q querier, id string) (*types.Document, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.queryRow(ctx, q, "SELECT "+documentColumns+" FROM documents WHERE document_id = ?", id)
	doc, err := hydrateDocument(row)
	if err != nil {
		return nil, notFound(err, "getting document "+id)
	}
	return doc, nil
}

// ListDocuments returns the documents of an organization ordered by name.
func (s *Store) ListDocuments(ctx context.Context, organizationID string) ([]types.Document, error) {
	rows, err := s.query(ctx, s.db,
		"SELECT "+documentColumns+" FROM documents WHERE organization_id = ? ORDER BY name, document_id",
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var out []types.Document
	for rows.Next() {
		doc, err := hydrateDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document together with its sections, executions
// and contexts.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, "DELETE FROM documents WHERE document_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return requireAffected(res, "deleting document "+id)
}

// AddDocumentContext attaches a free-text context blob to a document.
func (s *Store) AddDocumentContext(ctx context.Context, documentID, content string) (*types.DocumentContext, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("context content must not be empty: %w", types.ErrValidation)
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}
	now, ts := s.now()
	_, err = s.exec(ctx, s.db,
		"INSERT INTO document_contexts (context_id, document_id, content, created_at) VALUES (?, ?, ?, ?)",
		id, documentID, content, ts,
	)
	if err != nil {
		return nil, translate(err, "inserting context for document "+documentID)
	}
	return &types.DocumentContext{ContextID: id, DocumentID: documentID, Content: content, CreatedAt: now}, nil
}

// ListDocumentContexts returns a document's context blobs in creation order.
func (s *Store) ListDocumentContexts(ctx context.Context, documentID string) ([]types.DocumentContext, error) {
	rows, err := s.query(ctx, s.db,
		"SELECT context_id, document_id, content, created_at FROM document_contexts WHERE document_id = ? ORDER BY created_at, context_id",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing contexts of document %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []types.DocumentContext
	for rows.Next() {
		var (
			c  types.DocumentContext
			ts string
		)
		if err := rows.Scan(&c.ContextID, &c.DocumentID, &c.Content, &ts); err != nil {
			return nil, fmt.Errorf("scanning context: %w", err)
		}
		if c.CreatedAt, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddDocumentDependency records that documentID composes the content of
// dependsOnID into its context. Adding an existing edge does nothing.
func (s *Store) AddDocumentDependency(ctx context.Context, documentID, dependsOnID string) error {
	if documentID == dependsOnID {
		return fmt.Errorf("document %s cannot depend on itself: %w", documentID, types.ErrValidation)
	}
	_, ts := s.now()
	_, err := s.exec(ctx, s.db,
		`INSERT INTO document_dependencies (document_id, depends_on_document_id, created_at)
         VALUES (?, ?, ?) ON CONFLICT (document_id, depends_on_document_id) DO NOTHING`,
		documentID, dependsOnID, ts,
	)
	return translate(err, "inserting dependency "+documentID+" -> "+dependsOnID)
}

// ListDocumentDependencies returns the documents documentID depends on, in
// the order the edges were added.
func (s *Store) ListDocumentDependencies(ctx context.Context, documentID string) ([]types.OuterDependency, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT document_id, depends_on_document_id, created_at FROM document_dependencies
         WHERE document_id = ? ORDER BY created_at, depends_on_document_id`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing dependencies of document %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []types.OuterDependency
	for rows.Next() {
		var (
			d  types.OuterDependency
			ts string
		)
		if err := rows.Scan(&d.DocumentID, &d.DependsOnDocumentID, &ts); err != nil {
			return nil, fmt.Errorf("scanning document dependency: %w", err)
		}
		if d.CreatedAt, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func hydrateDocument(row rowScanner) (*types.Document, error) {
	var (
		doc                  types.Document
		templateID, folderID sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&doc.DocumentID, &doc.OrganizationID, &doc.Name, &doc.Description, &doc.DocumentType,
		&templateID, &folderID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	doc.TemplateID = stringPtr(templateID)
	doc.FolderID = stringPtr(folderID)
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

// requireAffected returns ErrNotFound when res touched no rows.
func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, types.ErrNotFound)
	}
	return nil
}
