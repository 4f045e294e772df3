package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGenerationPayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    GenerationPayload
		wantErr bool
	}{
		{
			name: "minimal",
			raw:  `{"document_id":"d","execution_id":"e"}`,
			want: GenerationPayload{DocumentID: "d", ExecutionID: "e"},
		},
		{
			name: "all fields",
			raw:  `{"document_id":"d","execution_id":"e","llm_id":"m","user_instructions":"be brief","start_section_id":"s","single_section_mode":true}`,
			want: GenerationPayload{DocumentID: "d", ExecutionID: "e", LLMID: "m", UserInstructions: "be brief", StartSectionID: "s", SingleSectionMode: true},
		},
		{name: "unknown field", raw: `{"document_id":"d","execution_id":"e","extra":1}`, wantErr: true},
		{name: "missing document", raw: `{"execution_id":"e"}`, wantErr: true},
		{name: "missing execution", raw: `{"document_id":"d"}`, wantErr: true},
		{name: "single section without start", raw: `{"document_id":"d","execution_id":"e","single_section_mode":true}`, wantErr: true},
		{name: "not json", raw: `nope`, wantErr: true},
		{name: "trailing data", raw: `{"document_id":"d","execution_id":"e"}{}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeGenerationPayload([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobStatusValid(t *testing.T) {
	for _, s := range []JobStatus{JobPending, JobRunning, JobCompleted, JobFailed} {
		assert.True(t, s.Valid())
	}
	assert.False(t, JobStatus("DONE").Valid())
}

func TestCapability(t *testing.T) {
	c, ok := Capability(ProviderAzureOpenAI)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{FieldKey, FieldEndpoint, FieldDeployment}, c.Required)

	c, ok = Capability(ProviderOllama)
	require.True(t, ok)
	assert.Equal(t, []string{FieldEndpoint}, c.Required)
	assert.True(t, c.Accepts(FieldKey))
	assert.False(t, c.Accepts(FieldDeployment))

	_, ok = Capability("mystery")
	assert.False(t, ok)
	assert.Len(t, Capabilities(), 6)
}
