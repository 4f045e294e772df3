package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/mesh-intelligence/folio/pkg/types"
)

// secretClient is the subset of the Key Vault client Azure uses.
type secretClient interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// Azure stores secrets in Azure Key Vault, one secret per handle.
type Azure struct {
	client secretClient
}

// NewAzure connects to the Key Vault at vaultURL with the default Azure
// credential chain (environment, workload identity, managed identity, CLI).
func NewAzure(vaultURL string) (*Azure, error) {
	if vaultURL == "" {
		return nil, fmt.Errorf("azure vault url is required: %w", types.ErrValidation)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("loading azure credential: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating key vault client: %w", err)
	}
	return &Azure{client: client}, nil
}

// Read implements Resolver.
func (a *Azure) Read(ctx context.Context, handle string) (string, bool, error) {
	resp, err := a.client.GetSecret(ctx, handle, "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading key vault secret %s: %v: %w", handle, err, types.ErrSecretUnavailable)
	}
	if resp.Value == nil {
		return "", false, nil
	}
	return *resp.Value, true, nil
}

// Write implements Resolver.
func (a *Azure) Write(ctx context.Context, value string) (string, error) {
	if err := checkValue(value); err != nil {
		return "", err
	}
	handle, err := newHandle()
	if err != nil {
		return "", err
	}
	_, err = a.client.SetSecret(ctx, handle, azsecrets.SetSecretParameters{Value: &value}, nil)
	if err != nil {
		return "", fmt.Errorf("writing key vault secret: %v: %w", err, types.ErrSecretUnavailable)
	}
	return handle, nil
}
