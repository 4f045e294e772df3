package types

import "time"

// Organization owns documents.
type Organization struct {
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Document is the unit of generation. It owns its sections, executions and
// context blobs.
type Document struct {
	DocumentID     string    `json:"document_id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	DocumentType   string    `json:"document_type"`
	TemplateID     *string   `json:"template_id,omitempty"`
	FolderID       *string   `json:"folder_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Sections is populated by graph loads, ascending by Order.
	Sections []Section `json:"sections,omitempty"`
}

// Section is one promptable part of a document.
type Section struct {
	SectionID         string    `json:"section_id"`
	DocumentID        string    `json:"document_id"`
	Name              string    `json:"name"`
	Prompt            string    `json:"prompt"`
	Order             int       `json:"order"`
	TemplateSectionID *string   `json:"template_section_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// DependsOn lists the ids of sections whose output this section's prompt
	// includes, ascending by the depended-on section's order.
	DependsOn []string `json:"depends_on,omitempty"`
}

// InnerDependency is an edge between two sections of the same document.
type InnerDependency struct {
	SectionID          string    `json:"section_id"`
	DependsOnSectionID string    `json:"depends_on_section_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// DocumentContext is a free-text blob composed into every prompt of a document.
type DocumentContext struct {
	ContextID  string    `json:"context_id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// OuterDependency links a document to another document whose content is
// composed into the former's context.
type OuterDependency struct {
	DocumentID          string    `json:"document_id"`
	DependsOnDocumentID string    `json:"depends_on_document_id"`
	CreatedAt           time.Time `json:"created_at"`
}
