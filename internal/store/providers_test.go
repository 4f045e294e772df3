package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/folio/pkg/types"
)

func TestProviderCRUD(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	key := "sec-aaaaaaaaaaaaaaaaaaaaaaaa"
	p := &types.LLMProvider{Name: types.ProviderOpenAI, Key: &key}
	require.NoError(t, s.CreateProvider(ctx, p))
	assert.NotEmpty(t, p.ProviderID)

	dup := &types.LLMProvider{Name: types.ProviderOpenAI}
	assert.True(t, errors.Is(s.CreateProvider(ctx, dup), types.ErrConflict))

	got, err := s.GetProvider(ctx, p.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, key, *got.Key)
	assert.Nil(t, got.Endpoint)

	endpoint := "sec-bbbbbbbbbbbbbbbbbbbbbbbb"
	got.Endpoint = &endpoint
	require.NoError(t, s.UpdateProvider(ctx, got))
	got, err = s.GetProvider(ctx, p.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, endpoint, *got.Endpoint)

	list, err := s.ListProviders(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteProvider(ctx, p.ProviderID))
	_, err = s.GetProvider(ctx, p.ProviderID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestSingleDefaultLLM(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p := &types.LLMProvider{Name: types.ProviderOllama}
	require.NoError(t, s.CreateProvider(ctx, p))

	m1 := &types.LLM{ProviderID: p.ProviderID, Name: "Llama", InternalName: "llama3", IsDefault: true}
	require.NoError(t, s.CreateLLM(ctx, m1))
	m2 := &types.LLM{ProviderID: p.ProviderID, Name: "Mistral", InternalName: "mistral", IsDefault: true}
	require.NoError(t, s.CreateLLM(ctx, m2))

	def, err := s.GetDefaultLLM(ctx)
	require.NoError(t, err)
	assert.Equal(t, m2.LLMID, def.LLMID)

	old, err := s.GetLLM(ctx, m1.LLMID)
	require.NoError(t, err)
	assert.False(t, old.IsDefault)

	byName, err := s.GetLLMByInternalName(ctx, "llama3")
	require.NoError(t, err)
	assert.Equal(t, m1.LLMID, byName.LLMID)

	require.NoError(t, s.DeleteProvider(ctx, p.ProviderID))
	_, err = s.GetLLM(ctx, m1.LLMID)
	assert.True(t, errors.Is(err, types.ErrNotFound), "models cascade with their provider")
}
