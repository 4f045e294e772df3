package app

import (
	"context"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/folio/internal/config"
	"github.com/mesh-intelligence/folio/internal/llm"
	"github.com/mesh-intelligence/folio/internal/provider"
	"github.com/mesh-intelligence/folio/pkg/types"
)

type echoModel struct{ endpoint string }

func (m echoModel) Invoke(_ context.Context, prompt string) (llm.Response, error) {
	return llm.Response{Text: "generated via " + m.endpoint}, nil
}

func (m echoModel) Stream(ctx context.Context, prompt string) iter.Seq2[llm.Chunk, error] {
	return func(yield func(llm.Chunk, error) bool) {
		resp, err := m.Invoke(ctx, prompt)
		yield(llm.Chunk{Text: resp.Text}, err)
	}
}

type echoFactory struct{}

func (echoFactory) New(cfg llm.ModelConfig) (llm.ChatModel, error) {
	return echoModel{endpoint: cfg.Endpoint}, nil
}

func testConfig(t *testing.T) *config.Config {
	dataDir := t.TempDir()
	return &config.Config{
		DataDir:                  dataDir,
		DatabaseURL:              "sqlite://" + filepath.Join(dataDir, "folio.db"),
		JobWorkerCount:           2,
		JobPollInterval:          20 * time.Millisecond,
		SecretsProvider:          "local",
		SecretsFile:              filepath.Join(dataDir, "secrets.json"),
		GenerationRecursionLimit: 200,
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

func TestEndToEndGeneration(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zerolog.Nop(), Options{Models: echoFactory{}})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	endpoint := "http://ollama:11434"
	prov, err := a.Catalog.Create(ctx, provider.Input{Name: types.ProviderOllama, Endpoint: &endpoint})
	require.NoError(t, err)
	require.NotNil(t, prov.Endpoint)
	assert.NotEqual(t, endpoint, *prov.Endpoint, "only the handle is stored")
	require.NoError(t, a.Store.CreateLLM(ctx, &types.LLM{ProviderID: prov.ProviderID, Name: "Llama", InternalName: "llama3", IsDefault: true}))

	org, err := a.Store.CreateOrganization(ctx, "acme")
	require.NoError(t, err)
	doc := &types.Document{OrganizationID: org.OrganizationID, Name: "Plan"}
	require.NoError(t, a.Store.CreateDocument(ctx, doc))
	require.NoError(t, a.Store.AddSection(ctx, &types.Section{DocumentID: doc.DocumentID, Name: "Intro", Order: 1}))

	exec, err := a.Executions.Create(ctx, doc.DocumentID, "", "")
	require.NoError(t, err)
	job, err := a.Enqueue(ctx, types.GenerationPayload{DocumentID: doc.DocumentID, ExecutionID: exec.ExecutionID})
	require.NoError(t, err)

	pool := a.Pool()
	pool.Start(ctx)
	require.Eventually(t, func() bool {
		j, err := a.Store.GetJob(ctx, job.JobID)
		return err == nil && j.Status == types.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)
	pool.Stop()
	require.NoError(t, pool.Wait(ctx))

	got, err := a.Executions.Get(ctx, exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionCompleted, got.Status)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, "generated via "+endpoint, got.Sections[0].Output)

	_, err = a.Executions.Approve(ctx, exec.ExecutionID)
	require.NoError(t, err)
	content, err := a.Executions.Content(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "## Intro\n\ngenerated via "+endpoint, content)
}

func TestNewRejectsBadDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseURL = "mysql://nope"
	_, err := New(context.Background(), cfg, zerolog.Nop(), Options{})
	assert.Error(t, err)
}
