// Package secrets stores sensitive provider fields outside the database.
// Callers persist only the opaque handle Write returns and dereference it
// with Read when the value is needed.
package secrets

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// Backend names accepted by New.
const (
	BackendLocal           = "local"
	BackendVaultSelfHosted = "vault-self-hosted"
	BackendVaultCloud      = "vault-cloud"
)

// Resolver maps opaque handles to secret values.
type Resolver interface {
	// Read returns the value stored under handle. An unknown handle reports
	// ok=false with a nil error.
	Read(ctx context.Context, handle string) (value string, ok bool, err error)
	// Write stores value under a fresh handle and returns it. Empty or
	// whitespace values fail ErrInvalidSecret.
	Write(ctx context.Context, value string) (handle string, err error)
}

// Options selects and configures a backend.
type Options struct {
	Backend       string
	File          string // local
	VaultURL      string // vault-self-hosted
	VaultToken    string
	VaultMount    string
	AzureVaultURL string // vault-cloud
}

// New builds the resolver named by opts.Backend.
func New(ctx context.Context, opts Options) (Resolver, error) {
	switch opts.Backend {
	case BackendLocal, "":
		return OpenLocal(opts.File)
	case BackendVaultSelfHosted:
		return NewVault(opts.VaultURL, opts.VaultToken, opts.VaultMount)
	case BackendVaultCloud:
		return NewAzure(opts.AzureVaultURL)
	}
	return nil, fmt.Errorf("secrets backend %q: %w", opts.Backend, types.ErrValidation)
}

var (
	defaultMu       sync.Mutex
	defaultBuilt    bool
	defaultResolver Resolver
	defaultErr      error
)

// Default returns the process-wide resolver, building it from opts on the
// first call. Later calls ignore opts and return the same result.
func Default(ctx context.Context, opts Options) (Resolver, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if !defaultBuilt {
		defaultResolver, defaultErr = New(ctx, opts)
		defaultBuilt = true
	}
	return defaultResolver, defaultErr
}

// Close releases the process-wide resolver, flushing it when it buffers
// writes. The next Default call builds a new one.
func Close() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	r := defaultResolver
	defaultResolver, defaultErr, defaultBuilt = nil, nil, false
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

const (
	handlePrefix   = "sec-"
	handleLength   = 24
	handleAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// newHandle returns a random handle such as sec-k3v0x...
func newHandle() (string, error) {
	buf := make([]byte, handleLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret handle: %w", err)
	}
	var b strings.Builder
	b.Grow(len(handlePrefix) + handleLength)
	b.WriteString(handlePrefix)
	for _, c := range buf {
		b.WriteByte(handleAlphabet[int(c)%len(handleAlphabet)])
	}
	return b.String(), nil
}

func checkValue(value string) error {
	if strings.TrimSpace(value) == "" {
		return types.ErrInvalidSecret
	}
	return nil
}
