// Package provider manages configured LLM providers and resolves a model
// selection into the configuration a model client is built from.
//
// Sensitive provider fields never reach the database: Create and Update
// write them to the secret resolver and persist only the handles, and
// GetWithSecrets dereferences the handles on every call.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/folio/internal/llm"
	"github.com/mesh-intelligence/folio/internal/secrets"
	"github.com/mesh-intelligence/folio/pkg/types"
)

// Store is the persistence the catalog needs.
type Store interface {
	CreateProvider(ctx context.Context, p *types.LLMProvider) error
	GetProvider(ctx context.Context, id string) (*types.LLMProvider, error)
	ListProviders(ctx context.Context) ([]types.LLMProvider, error)
	UpdateProvider(ctx context.Context, p *types.LLMProvider) error
	DeleteProvider(ctx context.Context, id string) error
	GetLLM(ctx context.Context, id string) (*types.LLM, error)
	GetLLMByInternalName(ctx context.Context, name string) (*types.LLM, error)
	GetDefaultLLM(ctx context.Context) (*types.LLM, error)
}

// Input carries the plaintext fields supplied on create or update. A nil
// field is not supplied.
type Input struct {
	Name       string
	Key        *string
	Endpoint   *string
	Deployment *string
}

func (in Input) field(name string) *string {
	switch name {
	case types.FieldKey:
		return in.Key
	case types.FieldEndpoint:
		return in.Endpoint
	case types.FieldDeployment:
		return in.Deployment
	}
	return nil
}

var secretFields = []string{types.FieldKey, types.FieldEndpoint, types.FieldDeployment}

// Credentials is a provider with its secret fields dereferenced. A field
// whose handle no longer resolves is nil.
type Credentials struct {
	Provider   types.LLMProvider
	Key        *string
	Endpoint   *string
	Deployment *string
}

// Catalog is the provider catalog.
type Catalog struct {
	store    Store
	resolver secrets.Resolver
}

// NewCatalog returns a catalog over store and resolver.
func NewCatalog(store Store, resolver secrets.Resolver) *Catalog {
	return &Catalog{store: store, resolver: resolver}
}

// List returns every provider with handles, not values.
func (c *Catalog) List(ctx context.Context) ([]types.LLMProvider, error) {
	return c.store.ListProviders(ctx)
}

// Get returns one provider with handles, not values.
func (c *Catalog) Get(ctx context.Context, id string) (*types.LLMProvider, error) {
	return c.store.GetProvider(ctx, id)
}

// Create validates in against the provider's capability record, writes each
// supplied field to the resolver and stores the handles.
func (c *Catalog) Create(ctx context.Context, in Input) (*types.LLMProvider, error) {
	capability, ok := types.Capability(in.Name)
	if !ok {
		return nil, fmt.Errorf("creating provider %q: %w", in.Name, types.ErrUnsupportedProvider)
	}
	if err := checkAccepted(capability, in); err != nil {
		return nil, err
	}
	for _, f := range capability.Required {
		if v := in.field(f); v == nil || strings.TrimSpace(*v) == "" {
			return nil, fmt.Errorf("provider %s requires %s: %w", in.Name, f, types.ErrValidation)
		}
	}

	existing, err := c.store.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.Name == in.Name {
			return nil, fmt.Errorf("provider %s already exists: %w", in.Name, types.ErrConflict)
		}
	}

	p := &types.LLMProvider{Name: in.Name}
	if err := c.writeFields(ctx, p, in); err != nil {
		return nil, err
	}
	if err := c.store.CreateProvider(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update rotates every supplied field to a fresh handle. Previous handles
// are left in the resolver.
func (c *Catalog) Update(ctx context.Context, id string, in Input) (*types.LLMProvider, error) {
	p, err := c.store.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	capability, ok := types.Capability(p.Name)
	if !ok {
		return nil, fmt.Errorf("updating provider %q: %w", p.Name, types.ErrUnsupportedProvider)
	}
	if err := checkAccepted(capability, in); err != nil {
		return nil, err
	}
	if err := c.writeFields(ctx, p, in); err != nil {
		return nil, err
	}
	if err := c.store.UpdateProvider(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a provider and its models.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	return c.store.DeleteProvider(ctx, id)
}

// GetWithSecrets returns the provider with its secret fields dereferenced.
func (c *Catalog) GetWithSecrets(ctx context.Context, id string) (*Credentials, error) {
	p, err := c.store.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	creds := &Credentials{Provider: *p}
	for _, f := range secretFields {
		handle := p.Field(f)
		if handle == nil {
			continue
		}
		value, ok, err := c.resolver.Read(ctx, *handle)
		if err != nil {
			return nil, fmt.Errorf("reading %s of provider %s: %w", f, p.Name, err)
		}
		if !ok {
			continue
		}
		switch f {
		case types.FieldKey:
			creds.Key = &value
		case types.FieldEndpoint:
			creds.Endpoint = &value
		case types.FieldDeployment:
			creds.Deployment = &value
		}
	}
	return creds, nil
}

// ResolveModel picks the model for a run and returns the configuration to
// build its client from. llmID wins when set; otherwise defaultName (a model
// internal name) and then the system default model are tried. A selection
// that resolves to no model fails ErrValidation.
func (c *Catalog) ResolveModel(ctx context.Context, llmID, defaultName string) (llm.ModelConfig, error) {
	var (
		m   *types.LLM
		err error
	)
	switch {
	case llmID != "":
		m, err = c.store.GetLLM(ctx, llmID)
	case defaultName != "":
		m, err = c.store.GetLLMByInternalName(ctx, defaultName)
	default:
		m, err = c.store.GetDefaultLLM(ctx)
	}
	if errors.Is(err, types.ErrNotFound) {
		return llm.ModelConfig{}, fmt.Errorf("resolving model %q: no such model: %w", firstNonEmpty(llmID, defaultName, "default"), types.ErrValidation)
	}
	if err != nil {
		return llm.ModelConfig{}, err
	}

	creds, err := c.GetWithSecrets(ctx, m.ProviderID)
	if errors.Is(err, types.ErrNotFound) {
		return llm.ModelConfig{}, fmt.Errorf("resolving provider of model %s: %w", m.Name, types.ErrValidation)
	}
	if err != nil {
		return llm.ModelConfig{}, err
	}
	return llm.ModelConfig{
		Provider:     creds.Provider.Name,
		InternalName: m.InternalName,
		Key:          deref(creds.Key),
		Endpoint:     deref(creds.Endpoint),
		Deployment:   deref(creds.Deployment),
	}, nil
}

func (c *Catalog) writeFields(ctx context.Context, p *types.LLMProvider, in Input) error {
	for _, f := range secretFields {
		v := in.field(f)
		if v == nil {
			continue
		}
		handle, err := c.resolver.Write(ctx, *v)
		if err != nil {
			return fmt.Errorf("storing %s of provider %s: %w", f, p.Name, err)
		}
		p.SetField(f, &handle)
	}
	return nil
}

func checkAccepted(capability types.ProviderCapability, in Input) error {
	for _, f := range secretFields {
		if in.field(f) != nil && !capability.Accepts(f) {
			return fmt.Errorf("provider %s does not accept %s: %w", capability.Name, f, types.ErrValidation)
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
