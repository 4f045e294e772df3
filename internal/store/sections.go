// This file implements sections and the inner dependency edges between
// sections of one document.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/folio/internal/graph"
	"github.com/mesh-intelligence/folio/pkg/types"
)

const sectionColumns = "section_id, document_id, name, prompt, section_order, template_section_id, created_at, updated_at"

// AddSection inserts sec into its document, assigning id and timestamps.
// Names and orders are unique within a document.
func (s *Store) AddSection(ctx context.Context, sec *types.Section) error {
	sec.Name = strings.TrimSpace(sec.Name)
	if sec.Name == "" {
		return types.ErrInvalidName
	}
	if sec.Order < 1 {
		return types.ErrInvalidOrder
	}
	if sec.DocumentID == "" {
		return fmt.Errorf("section document: %w", types.ErrInvalidID)
	}
	id, err := newID()
	if err != nil {
		return err
	}
	now, ts := s.now()
	_, err = s.exec(ctx, s.db,
		"INSERT INTO sections ("+sectionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		id, sec.DocumentID, sec.Name, sec.Prompt, sec.Order, nullString(sec.TemplateSectionID), ts, ts,
	)
	if err != nil {
		return translate(err, "inserting section "+sec.Name)
	}
	sec.SectionID = id
	sec.CreatedAt = now
	sec.UpdatedAt = now
	return nil
}

// GetSection returns a section without its dependency list.
func (s *Store) GetSection(ctx context.Context, id string) (*types.Section, error) {
	return s.getSection(ctx, s.db, id)
}

func (s *Store) getSection(ctx context.Context, q querier, id string) (*types.Section, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.queryRow(ctx, q, "SELECT "+sectionColumns+" FROM sections WHERE section_id = ?", id)
	sec, err := hydrateSection(row)
	if err != nil {
		return nil, notFound(err, "getting section "+id)
	}
	return sec, nil
}

// ListSections returns a document's sections ascending by order.
func (s *Store) ListSections(ctx context.Context, documentID string) ([]types.Section, error) {
	return s.listSections(ctx, s.db, documentID)
}

func (s *Store) listSections(ctx context.Context, q querier, documentID string) ([]types.Section, error) {
	rows, err := s.query(ctx, q,
		"SELECT "+sectionColumns+" FROM sections WHERE document_id = ? ORDER BY section_order",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sections of document %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []types.Section
	for rows.Next() {
		sec, err := hydrateSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		out = append(out, *sec)
	}
	return out, rows.Err()
}

// DeleteSection removes a section. Its edges go with it; section results
// that referenced it keep their row with a null section id.
func (s *Store) DeleteSection(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, "DELETE FROM sections WHERE section_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting section %s: %w", id, err)
	}
	return requireAffected(res, "deleting section "+id)
}

// AddSectionDependency records that sectionID depends on dependsOnID.
//
// Both sections must belong to the same document and the edge must not close
// a cycle: the existing edges are loaded in the same transaction and the edge
// is refused when dependsOnID already reaches sectionID. Adding an existing
// edge does nothing.
func (s *Store) AddSectionDependency(ctx context.Context, sectionID, dependsOnID string) error {
	if sectionID == dependsOnID {
		return fmt.Errorf("section %s: %w", sectionID, types.ErrSelfDependency)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		sec, err := s.getSection(ctx, tx, sectionID)
		if err != nil {
			return err
		}
		dep, err := s.getSection(ctx, tx, dependsOnID)
		if err != nil {
			return err
		}
		if sec.DocumentID != dep.DocumentID {
			return fmt.Errorf("section %s -> %s: %w", sectionID, dependsOnID, types.ErrCrossDocument)
		}

		g, err := s.loadGraph(ctx, tx, sec.DocumentID)
		if err != nil {
			return err
		}
		if g.Reaches(dependsOnID, sectionID) {
			return fmt.Errorf("section %s -> %s closes a cycle: %w", sectionID, dependsOnID, types.ErrCyclicDependency)
		}

		_, ts := s.now()
		_, err = s.exec(ctx, tx,
			`INSERT INTO section_dependencies (section_id, depends_on_section_id, created_at)
             VALUES (?, ?, ?) ON CONFLICT (section_id, depends_on_section_id) DO NOTHING`,
			sectionID, dependsOnID, ts,
		)
		return translate(err, "inserting section dependency")
	})
}

// RemoveSectionDependency deletes one edge.
func (s *Store) RemoveSectionDependency(ctx context.Context, sectionID, dependsOnID string) error {
	res, err := s.exec(ctx, s.db,
		"DELETE FROM section_dependencies WHERE section_id = ? AND depends_on_section_id = ?",
		sectionID, dependsOnID,
	)
	if err != nil {
		return fmt.Errorf("deleting section dependency: %w", err)
	}
	return requireAffected(res, "deleting section dependency "+sectionID+" -> "+dependsOnID)
}

// ListSectionDependencies returns the inner edges of a document, grouped by
// dependent section order and then by depended-on section order. Edges to a
// deleted section are kept and listed last in their group.
func (s *Store) ListSectionDependencies(ctx context.Context, documentID string) ([]types.InnerDependency, error) {
	return s.listSectionDependencies(ctx, s.db, documentID)
}

func (s *Store) listSectionDependencies(ctx context.Context, q querier, documentID string) ([]types.InnerDependency, error) {
	rows, err := s.query(ctx, q,
		`SELECT d.section_id, d.depends_on_section_id, d.created_at
         FROM section_dependencies d
         JOIN sections a ON a.section_id = d.section_id
         LEFT JOIN sections b ON b.section_id = d.depends_on_section_id
         WHERE a.document_id = ?
         ORDER BY a.section_order, b.section_order IS NULL, b.section_order, d.depends_on_section_id`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing section dependencies of document %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []types.InnerDependency
	for rows.Next() {
		var (
			d  types.InnerDependency
			ts string
		)
		if err := rows.Scan(&d.SectionID, &d.DependsOnSectionID, &ts); err != nil {
			return nil, fmt.Errorf("scanning section dependency: %w", err)
		}
		if d.CreatedAt, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LoadDocumentGraph returns the document with its sections ascending by
// order, each carrying its dependency ids. The document, its sections and
// their edges are read in one transaction.
func (s *Store) LoadDocumentGraph(ctx context.Context, documentID string) (*types.Document, error) {
	var doc *types.Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if doc, err = s.getDocument(ctx, tx, documentID); err != nil {
			return err
		}
		sections, err := s.listSections(ctx, tx, documentID)
		if err != nil {
			return err
		}
		edges, err := s.listSectionDependencies(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if err := attachDependencies(sections, edges); err != nil {
			return err
		}
		doc.Sections = sections
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// attachDependencies appends each edge's depended-on id to its section.
func attachDependencies(sections []types.Section, edges []types.InnerDependency) error {
	idx := make(map[string]int, len(sections))
	for i := range sections {
		idx[sections[i].SectionID] = i
	}
	for _, e := range edges {
		i, ok := idx[e.SectionID]
		if !ok {
			return fmt.Errorf("dependency %s -> %s: section %s: %w", e.SectionID, e.DependsOnSectionID, e.SectionID, types.ErrNotFound)
		}
		sections[i].DependsOn = append(sections[i].DependsOn, e.DependsOnSectionID)
	}
	return nil
}

// loadGraph builds the dependency graph of a document from q.
func (s *Store) loadGraph(ctx context.Context, q querier, documentID string) (*graph.Graph, error) {
	sections, err := s.listSections(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	edges, err := s.listSectionDependencies(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	for _, sec := range sections {
		g.AddNode(sec.SectionID)
	}
	for _, e := range edges {
		if err := g.AddEdge(e.SectionID, e.DependsOnSectionID); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func hydrateSection(row rowScanner) (*types.Section, error) {
	var (
		sec                  types.Section
		templateSectionID    sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&sec.SectionID, &sec.DocumentID, &sec.Name, &sec.Prompt, &sec.Order,
		&templateSectionID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sec.TemplateSectionID = stringPtr(templateSectionID)
	if sec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &sec, nil
}
