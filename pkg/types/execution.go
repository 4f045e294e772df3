package types

import "time"

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

// Execution states.
const (
	ExecutionPending   ExecutionStatus = "PENDING"
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionApproved  ExecutionStatus = "APPROVED"
)

// Status messages written by the generation runner.
const (
	MessageRunning   = "Running execution"
	MessageCompleted = "Execution completed successfully"
)

// executionTransitions maps each state to the states it may move to.
// Nothing moves back to PENDING.
var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionPending:   {ExecutionRunning, ExecutionFailed},
	ExecutionRunning:   {ExecutionRunning, ExecutionCompleted, ExecutionFailed},
	ExecutionCompleted: {ExecutionApproved, ExecutionRunning},
	ExecutionFailed:    {ExecutionRunning},
	ExecutionApproved:  {ExecutionCompleted},
}

// Valid reports whether s is a known execution state.
func (s ExecutionStatus) Valid() bool {
	_, ok := executionTransitions[s]
	return ok
}

// CanTransition reports whether an execution in state s may move to next.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	for _, allowed := range executionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Execution is one attempt to generate the content of a document end-to-end.
type Execution struct {
	ExecutionID      string          `json:"execution_id"`
	DocumentID       string          `json:"document_id"`
	LLMID            string          `json:"llm_id,omitempty"`
	Name             string          `json:"name"`
	Status           ExecutionStatus `json:"status"`
	StatusMessage    string          `json:"status_message"`
	UserInstructions string          `json:"user_instructions,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// Sections is populated by queries that load the ordered section rows.
	Sections []SectionExecution `json:"sections,omitempty"`
}

// Transition moves the execution to next, recording message.
// Returns ErrInvalidTransition when the state machine forbids the move.
func (e *Execution) Transition(next ExecutionStatus, message string) error {
	if !e.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	e.Status = next
	e.StatusMessage = message
	return nil
}

// SectionExecution is the persisted result of one section within one execution.
type SectionExecution struct {
	SectionExecutionID string    `json:"section_execution_id"`
	ExecutionID        string    `json:"execution_id"`
	SectionID          *string   `json:"section_id"` // nil once the section is deleted
	Name               string    `json:"name"`
	Prompt             string    `json:"prompt"`
	Order              int       `json:"order"`
	Output             string    `json:"output"`
	CustomOutput       *string   `json:"custom_output,omitempty"`
	IsLocked           bool      `json:"is_locked"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Text returns the user-edited output when present, else the generated output.
func (s SectionExecution) Text() string {
	if s.CustomOutput != nil && *s.CustomOutput != "" {
		return *s.CustomOutput
	}
	return s.Output
}
