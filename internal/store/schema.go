package store

import (
	"context"
	"fmt"
)

// schema is applied in order on every Open. Each statement is idempotent and
// valid in both dialects; timestamps are naive UTC text and booleans are
// integers.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
    organization_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS documents (
    document_id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL REFERENCES organizations(organization_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    document_type TEXT NOT NULL DEFAULT '',
    template_id TEXT,
    folder_id TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS documents_name_per_folder
    ON documents (organization_id, COALESCE(folder_id, ''), name)`,
	`CREATE TABLE IF NOT EXISTS document_contexts (
    context_id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS document_dependencies (
    document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
    depends_on_document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
    created_at TEXT NOT NULL,
    PRIMARY KEY (document_id, depends_on_document_id),
    CHECK (document_id <> depends_on_document_id)
)`,
	`CREATE TABLE IF NOT EXISTS sections (
    section_id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    prompt TEXT NOT NULL DEFAULT '',
    section_order INTEGER NOT NULL CHECK (section_order >= 1),
    template_section_id TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (document_id, name),
    UNIQUE (document_id, section_order)
)`,
	`CREATE TABLE IF NOT EXISTS section_dependencies (
    section_id TEXT NOT NULL REFERENCES sections(section_id) ON DELETE CASCADE,
    depends_on_section_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (section_id, depends_on_section_id),
    CHECK (section_id <> depends_on_section_id)
)`,
	`CREATE TABLE IF NOT EXISTS llm_providers (
    provider_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    key_handle TEXT,
    endpoint_handle TEXT,
    deployment_handle TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS llms (
    llm_id TEXT PRIMARY KEY,
    provider_id TEXT NOT NULL REFERENCES llm_providers(provider_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    internal_name TEXT NOT NULL,
    is_default INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (provider_id, internal_name)
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS llms_single_default ON llms (is_default) WHERE is_default = 1`,
	`CREATE TABLE IF NOT EXISTS executions (
    execution_id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
    llm_id TEXT,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    status_message TEXT NOT NULL DEFAULT '',
    user_instructions TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS executions_single_approved
    ON executions (document_id) WHERE status = 'APPROVED'`,
	`CREATE INDEX IF NOT EXISTS executions_by_document ON executions (document_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS section_executions (
    section_execution_id TEXT PRIMARY KEY,
    execution_id TEXT NOT NULL REFERENCES executions(execution_id) ON DELETE CASCADE,
    section_id TEXT REFERENCES sections(section_id) ON DELETE SET NULL,
    name TEXT NOT NULL,
    prompt TEXT NOT NULL DEFAULT '',
    section_order INTEGER NOT NULL,
    output TEXT NOT NULL DEFAULT '',
    custom_output TEXT,
    is_locked INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (execution_id, section_id)
)`,
	`CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    job_type TEXT NOT NULL,
    payload TEXT NOT NULL,
    status TEXT NOT NULL,
    result TEXT,
    claimed_by TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS jobs_pending_fifo ON jobs (status, created_at, job_id)`,
}

func (s *Store) applySchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
