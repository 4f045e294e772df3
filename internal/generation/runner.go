// Package generation runs the section graph of a document through a
// language model, one section at a time in dependency order.
//
// The runner is the handler of run_generation_graph jobs. Each run walks
// the document's sections in topological order, composes a prompt from the
// document, its context and the outputs of the section's dependencies, and
// upserts the model's answer as the section's result in the execution.
// Outputs are persisted as they are produced, so a failed run can be
// resumed from the first unfinished section.
package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/folio/internal/graph"
	"github.com/mesh-intelligence/folio/internal/llm"
	"github.com/mesh-intelligence/folio/internal/telemetry"
	"github.com/mesh-intelligence/folio/pkg/types"
)

// DefaultRecursionLimit bounds the section loop of one run.
const DefaultRecursionLimit = 200

// Store is the persistence the runner needs.
type Store interface {
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	LoadDocumentGraph(ctx context.Context, documentID string) (*types.Document, error)
	GetSection(ctx context.Context, id string) (*types.Section, error)
	ListDocumentContexts(ctx context.Context, documentID string) ([]types.DocumentContext, error)
	ListDocumentDependencies(ctx context.Context, documentID string) ([]types.OuterDependency, error)
	ContentExecution(ctx context.Context, documentID string) (*types.Execution, error)
	GetExecution(ctx context.Context, id string) (*types.Execution, error)
	UpdateExecutionStatus(ctx context.Context, id string, next types.ExecutionStatus, message string) (*types.Execution, error)
	SectionOutputs(ctx context.Context, executionID string) (map[string]string, error)
	SaveOrUpdateSectionExecution(ctx context.Context, row *types.SectionExecution) error
}

// ModelResolver turns a model selection into a client configuration.
type ModelResolver interface {
	ResolveModel(ctx context.Context, llmID, defaultName string) (llm.ModelConfig, error)
}

// ModelFactory builds a chat model from its configuration.
type ModelFactory interface {
	New(cfg llm.ModelConfig) (llm.ChatModel, error)
}

// Options tune the runner.
type Options struct {
	// DefaultLLM is the internal name of the model used when neither the
	// payload nor the execution names one.
	DefaultLLM string
	// RecursionLimit caps the loop iterations of one run. Zero means
	// DefaultRecursionLimit.
	RecursionLimit int
}

// Result is what a successful run reports to the job queue.
type Result struct {
	ExecutionID       string `json:"execution_id"`
	SectionsGenerated int    `json:"sections_generated"`
}

// Runner executes generation runs.
type Runner struct {
	store   Store
	models  ModelResolver
	factory ModelFactory
	opts    Options
	logger  zerolog.Logger
}

// NewRunner returns a runner over store that resolves models with models and
// builds them with factory.
func NewRunner(store Store, models ModelResolver, factory ModelFactory, opts Options, logger zerolog.Logger) *Runner {
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	return &Runner{
		store:   store,
		models:  models,
		factory: factory,
		opts:    opts,
		logger:  logger.With().Str("component", "generation").Logger(),
	}
}

// Handle is the run_generation_graph job handler. It decodes the payload
// strictly and runs it.
func (r *Runner) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := types.DecodeGenerationPayload(payload)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, p)
}

// Run generates the sections of one execution.
//
// A payload naming another document's execution or start section is
// rejected with the execution left as it was. Otherwise the execution moves
// to RUNNING before the document is loaded. Any later failure moves it to
// FAILED with the error message and is returned. Section results written
// before the failure are kept.
func (r *Runner) Run(ctx context.Context, p types.GenerationPayload) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	exec, err := r.store.GetExecution(ctx, p.ExecutionID)
	if err != nil {
		return Result{}, fmt.Errorf("loading execution %s: %w", p.ExecutionID, err)
	}
	if exec.DocumentID != p.DocumentID {
		return Result{}, fmt.Errorf("execution %s does not belong to document %s: %w", exec.ExecutionID, p.DocumentID, types.ErrValidation)
	}
	if err := checkStartSection(ctx, r.store, p); err != nil {
		return Result{}, err
	}

	log := r.logger.With().Str("execution_id", exec.ExecutionID).Str("document_id", exec.DocumentID).Logger()
	if _, err := r.store.UpdateExecutionStatus(ctx, exec.ExecutionID, types.ExecutionRunning, types.MessageRunning); err != nil {
		return Result{}, fmt.Errorf("starting execution %s: %w", exec.ExecutionID, err)
	}
	log.Info().Str("start_section_id", p.StartSectionID).Bool("single_section_mode", p.SingleSectionMode).Msg("Execution started")

	generated, err := r.run(ctx, log, exec, p)
	if err != nil {
		if _, ferr := r.store.UpdateExecutionStatus(context.WithoutCancel(ctx), exec.ExecutionID, types.ExecutionFailed, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("Marking execution failed")
		}
		log.Error().Err(err).Str("kind", types.KindOf(err)).Int("sections_generated", generated).Msg("Execution failed")
		return Result{}, err
	}

	if _, err := r.store.UpdateExecutionStatus(ctx, exec.ExecutionID, types.ExecutionCompleted, types.MessageCompleted); err != nil {
		return Result{}, fmt.Errorf("completing execution %s: %w", exec.ExecutionID, err)
	}
	log.Info().Int("sections_generated", generated).Msg("Execution completed")
	return Result{ExecutionID: exec.ExecutionID, SectionsGenerated: generated}, nil
}

// run holds the load, order and execute phases. It returns the number of
// sections generated, also on failure.
func (r *Runner) run(ctx context.Context, log zerolog.Logger, exec *types.Execution, p types.GenerationPayload) (int, error) {
	doc, err := r.store.LoadDocumentGraph(ctx, p.DocumentID)
	if err != nil {
		return 0, fmt.Errorf("loading document %s: %w", p.DocumentID, err)
	}

	llmID := p.LLMID
	if llmID == "" {
		llmID = exec.LLMID
	}
	cfg, err := r.models.ResolveModel(ctx, llmID, r.opts.DefaultLLM)
	if err != nil {
		return 0, err
	}
	model, err := r.factory.New(cfg)
	if err != nil {
		return 0, err
	}

	docContext, err := r.documentContext(ctx, doc.DocumentID)
	if err != nil {
		return 0, err
	}

	sections := make(map[string]types.Section, len(doc.Sections))
	g := graph.New()
	for _, sec := range doc.Sections {
		sections[sec.SectionID] = sec
		g.AddNode(sec.SectionID)
	}
	for _, sec := range doc.Sections {
		for _, dep := range sec.DependsOn {
			if err := g.AddEdge(sec.SectionID, dep); err != nil {
				return 0, fmt.Errorf("building section graph: %w", err)
			}
		}
	}

	outputs := map[string]string{}
	if p.StartSectionID != "" {
		if _, ok := sections[p.StartSectionID]; !ok {
			return 0, fmt.Errorf("start section %s is not a section of document %s: %w", p.StartSectionID, doc.DocumentID, types.ErrValidation)
		}
		if outputs, err = r.store.SectionOutputs(ctx, exec.ExecutionID); err != nil {
			return 0, fmt.Errorf("loading outputs of execution %s: %w", exec.ExecutionID, err)
		}
	}

	order, err := g.Order()
	if err != nil {
		return 0, fmt.Errorf("ordering sections of document %s: %w", doc.DocumentID, err)
	}
	done := make(map[string]bool, len(order))
	if p.StartSectionID != "" {
		for _, id := range order {
			if id == p.StartSectionID {
				break
			}
			done[id] = true
		}
	}
	log.Debug().Strs("order", order).Int("done", len(done)).Msg("Sections ordered")

	generated := 0
	for iteration := 0; ; iteration++ {
		current, ok := nextSection(order, done)
		if !ok {
			return generated, nil
		}
		if iteration >= r.opts.RecursionLimit {
			return generated, fmt.Errorf("%d sections generated, %d remaining: %w",
				generated, len(order)-len(done), types.ErrRecursionBudgetExceeded)
		}
		sec := sections[current]

		deps := make([]dependencyOutput, 0, len(sec.DependsOn))
		for _, dep := range sec.DependsOn {
			out, ok := outputs[dep]
			if !ok {
				return generated, fmt.Errorf("section %s depends on %s, which has no output: %w",
					sec.Name, sectionName(sections, dep), types.ErrMissingDependencyOutput)
			}
			deps = append(deps, dependencyOutput{Name: sectionName(sections, dep), Output: out})
		}

		prompt, err := composePrompt(promptData{
			Title:            doc.Name,
			Description:      doc.Description,
			Context:          docContext,
			Dependencies:     deps,
			SectionName:      sec.Name,
			SectionPrompt:    sec.Prompt,
			UserInstructions: p.UserInstructions,
		})
		if err != nil {
			return generated, err
		}

		resp, err := model.Invoke(ctx, prompt)
		if err != nil {
			return generated, fmt.Errorf("generating section %s: %w", sec.Name, err)
		}
		outputs[current] = resp.Text

		id := sec.SectionID
		row := &types.SectionExecution{
			ExecutionID: exec.ExecutionID,
			SectionID:   &id,
			Name:        sec.Name,
			Prompt:      sec.Prompt,
			Order:       sec.Order,
			Output:      resp.Text,
		}
		if err := r.store.SaveOrUpdateSectionExecution(ctx, row); err != nil {
			return generated, fmt.Errorf("saving section %s: %w", sec.Name, err)
		}
		done[current] = true
		generated++
		telemetry.SectionGenerated(ctx, cfg.Provider)
		log.Info().Str("section_id", current).Str("section", sec.Name).Str("stop_reason", resp.StopReason).Msg("Section generated")

		if p.SingleSectionMode {
			return generated, nil
		}
	}
}

// nextSection returns the first section in order that is not done.
func nextSection(order []string, done map[string]bool) (string, bool) {
	for _, id := range order {
		if !done[id] {
			return id, true
		}
	}
	return "", false
}

func sectionName(sections map[string]types.Section, id string) string {
	if sec, ok := sections[id]; ok {
		return sec.Name
	}
	return id
}
