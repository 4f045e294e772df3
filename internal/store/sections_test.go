package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/folio/pkg/types"
)

func TestAddSectionValidation(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc, _ := seedDocument(t, s, "A")

	tests := []struct {
		name    string
		sec     types.Section
		wantErr error
	}{
		{"empty name", types.Section{DocumentID: doc.DocumentID, Name: " ", Order: 2}, types.ErrValidation},
		{"zero order", types.Section{DocumentID: doc.DocumentID, Name: "B", Order: 0}, types.ErrValidation},
		{"duplicate name", types.Section{DocumentID: doc.DocumentID, Name: "A", Order: 2}, types.ErrConflict},
		{"duplicate order", types.Section{DocumentID: doc.DocumentID, Name: "B", Order: 1}, types.ErrConflict},
		{"unknown document", types.Section{DocumentID: "missing", Name: "B", Order: 2}, types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec := tt.sec
			err := s.AddSection(ctx, &sec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestAddSectionDependency(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_, secs := seedDocument(t, s, "A", "B", "C")
	a, b, c := secs[0].SectionID, secs[1].SectionID, secs[2].SectionID

	require.NoError(t, s.AddSectionDependency(ctx, b, a))
	require.NoError(t, s.AddSectionDependency(ctx, c, b))
	require.NoError(t, s.AddSectionDependency(ctx, c, b), "re-adding an edge is a no-op")

	err := s.AddSectionDependency(ctx, a, a)
	assert.True(t, errors.Is(err, types.ErrValidation), "self edge")

	err = s.AddSectionDependency(ctx, a, c)
	assert.True(t, errors.Is(err, types.ErrCyclicDependency), "closing A -> C -> B -> A")

	err = s.AddSectionDependency(ctx, a, "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, otherSecs := seedOtherDocument(t, s)
	err = s.AddSectionDependency(ctx, a, otherSecs[0].SectionID)
	assert.True(t, errors.Is(err, types.ErrValidation), "cross document")

	edges, err := s.ListSectionDependencies(ctx, secs[0].DocumentID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func seedOtherDocument(t *testing.T, s *Store) (*types.Document, []types.Section) {
	t.Helper()
	ctx := context.Background()
	org, err := s.CreateOrganization(ctx, "other-org")
	require.NoError(t, err)
	doc := &types.Document{OrganizationID: org.OrganizationID, Name: "other"}
	require.NoError(t, s.CreateDocument(ctx, doc))
	sec := &types.Section{DocumentID: doc.DocumentID, Name: "X", Order: 1}
	require.NoError(t, s.AddSection(ctx, sec))
	return doc, []types.Section{*sec}
}

func TestLoadDocumentGraph(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc, secs := seedDocument(t, s, "A", "B", "C", "D")
	a, b, c, d := secs[0].SectionID, secs[1].SectionID, secs[2].SectionID, secs[3].SectionID
	require.NoError(t, s.AddSectionDependency(ctx, d, c))
	require.NoError(t, s.AddSectionDependency(ctx, d, b))
	require.NoError(t, s.AddSectionDependency(ctx, b, a))
	require.NoError(t, s.AddSectionDependency(ctx, c, a))

	got, err := s.LoadDocumentGraph(ctx, doc.DocumentID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 4)
	names := []string{}
	for _, sec := range got.Sections {
		names = append(names, sec.Name)
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, names)
	assert.Empty(t, got.Sections[0].DependsOn)
	assert.Equal(t, []string{a}, got.Sections[1].DependsOn)
	assert.Equal(t, []string{b, c}, got.Sections[3].DependsOn, "dependencies ascend by order")

	_, err = s.LoadDocumentGraph(ctx, "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestDeleteSectionKeepsResults(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	doc, secs := seedDocument(t, s, "A", "B")
	require.NoError(t, s.AddSectionDependency(ctx, secs[1].SectionID, secs[0].SectionID))

	exec, err := s.CreateExecution(ctx, doc.DocumentID, "", "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteSection(ctx, secs[0].SectionID))

	edges, err := s.ListSectionDependencies(ctx, doc.DocumentID)
	require.NoError(t, err)
	require.Len(t, edges, 1, "edges to a deleted section are kept")
	assert.Equal(t, secs[1].SectionID, edges[0].SectionID)
	assert.Equal(t, secs[0].SectionID, edges[0].DependsOnSectionID)

	loaded, err := s.LoadDocumentGraph(ctx, doc.DocumentID)
	require.NoError(t, err)
	require.Len(t, loaded.Sections, 1)
	assert.Equal(t, []string{secs[0].SectionID}, loaded.Sections[0].DependsOn)

	require.NoError(t, s.RemoveSectionDependency(ctx, secs[1].SectionID, secs[0].SectionID))
	edges, err = s.ListSectionDependencies(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	got, err := s.GetExecution(ctx, exec.ExecutionID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 2, "materialised rows survive section deletion")
	assert.Nil(t, got.Sections[0].SectionID)
	assert.Equal(t, "A", got.Sections[0].Name)

	err = s.DeleteSection(ctx, secs[0].SectionID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestAttachDependencies(t *testing.T) {
	tests := []struct {
		name     string
		sections []types.Section
		edges    []types.InnerDependency
		want     [][]string
		wantErr  error
	}{
		{
			name:     "grouped by section",
			sections: []types.Section{{SectionID: "a"}, {SectionID: "b"}, {SectionID: "c"}},
			edges: []types.InnerDependency{
				{SectionID: "b", DependsOnSectionID: "a"},
				{SectionID: "c", DependsOnSectionID: "a"},
				{SectionID: "c", DependsOnSectionID: "gone"},
			},
			want: [][]string{nil, {"a"}, {"a", "gone"}},
		},
		{
			name:     "edge of an unknown section",
			sections: []types.Section{{SectionID: "a"}},
			edges:    []types.InnerDependency{{SectionID: "x", DependsOnSectionID: "a"}},
			wantErr:  types.ErrNotFound,
		},
		{
			name:    "no sections",
			edges:   []types.InnerDependency{{SectionID: "x", DependsOnSectionID: "a"}},
			wantErr: types.ErrNotFound,
		},
		{
			name: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := attachDependencies(tt.sections, tt.edges)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			for i, sec := range tt.sections {
				assert.Equal(t, tt.want[i], sec.DependsOn, sec.SectionID)
			}
		})
	}
}
