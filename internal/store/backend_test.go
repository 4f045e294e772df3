package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// setupStore opens a fresh SQLite store in a temp directory.
func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "folio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedDocument creates an organization and a document with one section per
// name, ordered as given.
func seedDocument(t *testing.T, s *Store, sections ...string) (*types.Document, []types.Section) {
	t.Helper()
	ctx := context.Background()
	org, err := s.CreateOrganization(ctx, "org-"+t.Name())
	require.NoError(t, err)
	doc := &types.Document{OrganizationID: org.OrganizationID, Name: "doc", Description: "a doc"}
	require.NoError(t, s.CreateDocument(ctx, doc))

	out := make([]types.Section, 0, len(sections))
	for i, name := range sections {
		sec := &types.Section{DocumentID: doc.DocumentID, Name: name, Prompt: "write " + name, Order: i + 1}
		require.NoError(t, s.AddSection(ctx, sec))
		out = append(out, *sec)
	}
	return doc, out
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn         string
		wantDialect Dialect
		wantSource  string
		wantErr     bool
	}{
		{dsn: "sqlite:///var/lib/folio/folio.db", wantDialect: DialectSQLite, wantSource: "/var/lib/folio/folio.db"},
		{dsn: "data/folio.db", wantDialect: DialectSQLite, wantSource: "data/folio.db"},
		{dsn: "postgres://u:p@localhost/folio?sslmode=disable", wantDialect: DialectPostgres, wantSource: "postgres://u:p@localhost/folio?sslmode=disable"},
		{dsn: "postgresql://localhost/folio", wantDialect: DialectPostgres, wantSource: "postgresql://localhost/folio"},
		{dsn: "mysql://localhost/folio", wantErr: true},
		{dsn: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			d, src, err := parseDSN(tt.dsn)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, types.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDialect, d)
			assert.Equal(t, tt.wantSource, src)
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)", pg.rebind("SELECT a FROM t WHERE x = ? AND y IN (?, ?)"))

	lite := &Store{dialect: DialectSQLite}
	assert.Equal(t, "SELECT ? ", lite.rebind("SELECT ? "))
}

func TestClockIsStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := newClock(func() time.Time { return fixed })

	first := c.Now()
	second := c.Now()
	third := c.Now()
	assert.Equal(t, fixed, first)
	assert.True(t, second.After(first))
	assert.True(t, third.After(second))
	assert.Equal(t, time.Microsecond, third.Sub(second))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "folio.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	_, err = s.CreateOrganization(context.Background(), "acme")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	orgs, err := s.ListOrganizations(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "acme", orgs[0].Name)
	assert.Equal(t, DialectSQLite, s.Dialect())
}

func TestDocumentConstraints(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc, _ := seedDocument(t, s)

	dup := &types.Document{OrganizationID: doc.OrganizationID, Name: "doc"}
	err := s.CreateDocument(ctx, dup)
	assert.True(t, errors.Is(err, types.ErrConflict), "same name in the root folder")

	folder := "f1"
	inFolder := &types.Document{OrganizationID: doc.OrganizationID, Name: "doc", FolderID: &folder}
	require.NoError(t, s.CreateDocument(ctx, inFolder), "same name in another folder")

	orphan := &types.Document{OrganizationID: "missing", Name: "x"}
	err = s.CreateDocument(ctx, orphan)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, err = s.GetDocument(ctx, "nope")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestDocumentContextsAndDependencies(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc, _ := seedDocument(t, s)
	other := &types.Document{OrganizationID: doc.OrganizationID, Name: "other"}
	require.NoError(t, s.CreateDocument(ctx, other))

	_, err := s.AddDocumentContext(ctx, doc.DocumentID, "first")
	require.NoError(t, err)
	_, err = s.AddDocumentContext(ctx, doc.DocumentID, "second")
	require.NoError(t, err)
	_, err = s.AddDocumentContext(ctx, doc.DocumentID, "  ")
	assert.True(t, errors.Is(err, types.ErrValidation))

	blobs, err := s.ListDocumentContexts(ctx, doc.DocumentID)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, "first", blobs[0].Content)
	assert.Equal(t, "second", blobs[1].Content)

	require.NoError(t, s.AddDocumentDependency(ctx, doc.DocumentID, other.DocumentID))
	require.NoError(t, s.AddDocumentDependency(ctx, doc.DocumentID, other.DocumentID))
	err = s.AddDocumentDependency(ctx, doc.DocumentID, doc.DocumentID)
	assert.True(t, errors.Is(err, types.ErrValidation))

	deps, err := s.ListDocumentDependencies(ctx, doc.DocumentID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, other.DocumentID, deps[0].DependsOnDocumentID)
}
