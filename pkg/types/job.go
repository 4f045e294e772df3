package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

// Job states.
const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Valid reports whether s is a known job state.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return true
	}
	return false
}

// JobTypeGeneration is the job type handled by the generation runner.
const JobTypeGeneration = "run_generation_graph"

// Job is a unit of queued work. Payload is handler-specific JSON; Result is
// the handler's string result or its failure reason.
type Job struct {
	JobID     string          `json:"job_id"`
	JobType   string          `json:"job_type"`
	Payload   json.RawMessage `json:"payload"`
	Status    JobStatus       `json:"status"`
	Result    *string         `json:"result,omitempty"`
	ClaimedBy *string         `json:"claimed_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GenerationPayload is the payload of a run_generation_graph job.
type GenerationPayload struct {
	DocumentID        string `json:"document_id"`
	ExecutionID       string `json:"execution_id"`
	LLMID             string `json:"llm_id,omitempty"`
	UserInstructions  string `json:"user_instructions,omitempty"`
	StartSectionID    string `json:"start_section_id,omitempty"`
	SingleSectionMode bool   `json:"single_section_mode,omitempty"`
}

// Validate checks the required fields.
func (p GenerationPayload) Validate() error {
	if p.DocumentID == "" {
		return fmt.Errorf("document_id is required: %w", ErrInvalidPayload)
	}
	if p.ExecutionID == "" {
		return fmt.Errorf("execution_id is required: %w", ErrInvalidPayload)
	}
	if p.SingleSectionMode && p.StartSectionID == "" {
		return fmt.Errorf("single_section_mode requires start_section_id: %w", ErrInvalidPayload)
	}
	return nil
}

// DecodeGenerationPayload decodes raw strictly: unknown fields and trailing
// data are rejected and required fields are validated.
func DecodeGenerationPayload(raw []byte) (GenerationPayload, error) {
	var p GenerationPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return GenerationPayload{}, fmt.Errorf("decoding generation payload: %v: %w", err, ErrInvalidPayload)
	}
	if dec.More() {
		return GenerationPayload{}, fmt.Errorf("trailing data after generation payload: %w", ErrInvalidPayload)
	}
	if err := p.Validate(); err != nil {
		return GenerationPayload{}, err
	}
	return p, nil
}
