package provider

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/folio/internal/secrets"
	"github.com/mesh-intelligence/folio/internal/store"
	"github.com/mesh-intelligence/folio/pkg/types"
)

func setupCatalog(t *testing.T) (*Catalog, *store.Store, *secrets.Local) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "folio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	r, err := secrets.OpenLocal(filepath.Join(dir, "secrets.json"))
	require.NoError(t, err)
	return NewCatalog(s, r), s, r
}

func ptr(s string) *string { return &s }

func TestCreateValidation(t *testing.T) {
	c, _, _ := setupCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      Input
		wantErr error
	}{
		{"unsupported", Input{Name: "cohere", Key: ptr("k")}, types.ErrUnsupportedProvider},
		{"azure without deployment", Input{Name: types.ProviderAzureOpenAI, Key: ptr("k"), Endpoint: ptr("https://x")}, types.ErrValidation},
		{"openai without key", Input{Name: types.ProviderOpenAI}, types.ErrValidation},
		{"ollama without endpoint", Input{Name: types.ProviderOllama}, types.ErrValidation},
		{"openai with blank key", Input{Name: types.ProviderOpenAI, Key: ptr("  ")}, types.ErrValidation},
		{"deployment not accepted by openai", Input{Name: types.ProviderOpenAI, Key: ptr("k"), Deployment: ptr("d")}, types.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Create(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCreateStoresHandlesOnly(t *testing.T) {
	c, _, r := setupCatalog(t)
	ctx := context.Background()

	p, err := c.Create(ctx, Input{Name: types.ProviderAzureOpenAI, Key: ptr("az-key"), Endpoint: ptr("https://x.openai.azure.com"), Deployment: ptr("gpt4")})
	require.NoError(t, err)

	stored, err := c.Get(ctx, p.ProviderID)
	require.NoError(t, err)
	for _, v := range []*string{stored.Key, stored.Endpoint, stored.Deployment} {
		require.NotNil(t, v)
		assert.Regexp(t, `^sec-[a-z0-9]{24}$`, *v)
	}
	value, ok, err := r.Read(ctx, *stored.Key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "az-key", value)

	creds, err := c.GetWithSecrets(ctx, p.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, "az-key", *creds.Key)
	assert.Equal(t, "https://x.openai.azure.com", *creds.Endpoint)
	assert.Equal(t, "gpt4", *creds.Deployment)

	_, err = c.Create(ctx, Input{Name: types.ProviderAzureOpenAI, Key: ptr("k"), Endpoint: ptr("e"), Deployment: ptr("d")})
	assert.True(t, errors.Is(err, types.ErrConflict))
}

func TestGetWithSecretsMissingHandle(t *testing.T) {
	c, s, _ := setupCatalog(t)
	ctx := context.Background()

	p := &types.LLMProvider{Name: types.ProviderOpenAI, Key: ptr("sec-000000000000000000000000")}
	require.NoError(t, s.CreateProvider(ctx, p))

	creds, err := c.GetWithSecrets(ctx, p.ProviderID)
	require.NoError(t, err)
	assert.Nil(t, creds.Key, "unresolvable handle surfaces as absent")
}

func TestUpdateRotatesHandles(t *testing.T) {
	c, _, r := setupCatalog(t)
	ctx := context.Background()

	p, err := c.Create(ctx, Input{Name: types.ProviderOpenAI, Key: ptr("old")})
	require.NoError(t, err)
	oldHandle := *p.Key

	updated, err := c.Update(ctx, p.ProviderID, Input{Key: ptr("new")})
	require.NoError(t, err)
	assert.NotEqual(t, oldHandle, *updated.Key)

	creds, err := c.GetWithSecrets(ctx, p.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, "new", *creds.Key)

	old, ok, err := r.Read(ctx, oldHandle)
	require.NoError(t, err)
	assert.True(t, ok, "old handles are not revoked")
	assert.Equal(t, "old", old)

	_, err = c.Update(ctx, p.ProviderID, Input{Deployment: ptr("d")})
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestResolveModel(t *testing.T) {
	c, s, _ := setupCatalog(t)
	ctx := context.Background()

	_, err := c.ResolveModel(ctx, "", "")
	assert.True(t, errors.Is(err, types.ErrValidation), "no default model configured")

	p, err := c.Create(ctx, Input{Name: types.ProviderOllama, Endpoint: ptr("http://localhost:11434")})
	require.NoError(t, err)
	llama := &types.LLM{ProviderID: p.ProviderID, Name: "Llama", InternalName: "llama3", IsDefault: true}
	require.NoError(t, s.CreateLLM(ctx, llama))
	mistral := &types.LLM{ProviderID: p.ProviderID, Name: "Mistral", InternalName: "mistral"}
	require.NoError(t, s.CreateLLM(ctx, mistral))

	cfg, err := c.ResolveModel(ctx, mistral.LLMID, "")
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.InternalName)
	assert.Equal(t, types.ProviderOllama, cfg.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Endpoint)

	cfg, err = c.ResolveModel(ctx, "", "mistral")
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.InternalName)

	cfg, err = c.ResolveModel(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "llama3", cfg.InternalName)

	require.NoError(t, s.DeleteLLM(ctx, mistral.LLMID))
	_, err = c.ResolveModel(ctx, mistral.LLMID, "")
	assert.True(t, errors.Is(err, types.ErrValidation), "deleted model")
}
