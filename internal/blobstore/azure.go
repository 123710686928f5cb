package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"gocloud.dev/blob/azureblob"
)

// AzureOptions mirrors the azure_options block of a datasource document.
type AzureOptions struct {
	// AccountURL is the blob service host, with or without scheme.
	AccountURL string `yaml:"account_url,omitempty" json:"account_url,omitempty"`
	// ConnStr is a full connection string; it takes precedence over AccountURL.
	ConnStr string `yaml:"conn_str,omitempty" json:"conn_str,omitempty"`
	// Credential is an account key or a SAS token. Empty means anonymous access.
	Credential string `yaml:"credential,omitempty" json:"credential,omitempty"`

	UseManagedIdentity      bool   `yaml:"use_managed_identity,omitempty" json:"use_managed_identity,omitempty"`
	ManagedIdentityClientID string `yaml:"managed_identity_client_id,omitempty" json:"managed_identity_client_id,omitempty"`
}

// Configured reports whether the options name an account.
func (o *AzureOptions) Configured() bool {
	return o != nil && (o.AccountURL != "" || o.ConnStr != "")
}

// credentialKind classifies AzureOptions.Credential.
type credentialKind int

const (
	credentialAnonymous credentialKind = iota
	credentialSharedKey
	credentialSAS
)

func classifyCredential(cred string) credentialKind {
	cred = strings.TrimSpace(cred)
	switch {
	case cred == "":
		return credentialAnonymous
	case strings.HasPrefix(cred, "?"),
		strings.Contains(cred, "sv=") && strings.Contains(cred, "sig="):
		return credentialSAS
	default:
		return credentialSharedKey
	}
}

// azureServiceURL normalizes an account_url and extracts the account name.
// "acct.blob.core.windows.net" becomes "https://acct.blob.core.windows.net";
// emulator URLs such as "http://127.0.0.1:10000/devstoreaccount1" take the
// account from the first path segment.
func azureServiceURL(accountURL string) (serviceURL, account string, err error) {
	raw := strings.TrimSpace(accountURL)
	if raw == "" {
		return "", "", fmt.Errorf("account_url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid account_url: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid account_url %q: missing host", accountURL)
	}

	path := strings.Trim(u.Path, "/")
	if path != "" {
		account = strings.Split(path, "/")[0]
	} else {
		account = strings.Split(u.Hostname(), ".")[0]
	}
	serviceURL = strings.TrimRight(u.Scheme+"://"+u.Host+"/"+path, "/")
	return serviceURL, account, nil
}

func newAzureClient(opts *AzureOptions) (*azblob.Client, error) {
	clientOpts := &azblob.ClientOptions{ClientOptions: azcore.ClientOptions{}}

	if opts.ConnStr != "" {
		client, err := azblob.NewClientFromConnectionString(opts.ConnStr, clientOpts)
		if err != nil {
			return nil, wrapError(CodeAuthInvalid, false, fmt.Errorf("failed to create Azure client from connection string: %w", err))
		}
		return client, nil
	}

	serviceURL, account, err := azureServiceURL(opts.AccountURL)
	if err != nil {
		return nil, wrapError(CodeInvalidConfig, false, err)
	}

	if opts.UseManagedIdentity {
		var cred azcore.TokenCredential
		if opts.ManagedIdentityClientID != "" {
			cred, err = azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
				ID:            azidentity.ClientID(opts.ManagedIdentityClientID),
				ClientOptions: clientOpts.ClientOptions,
			})
		} else {
			cred, err = azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
				ClientOptions: clientOpts.ClientOptions,
			})
		}
		if err != nil {
			return nil, wrapError(CodeAuthInvalid, false, fmt.Errorf("failed to create Azure managed identity credential: %w", err))
		}
		client, err := azblob.NewClient(serviceURL, cred, clientOpts)
		if err != nil {
			return nil, wrapError(CodeInvalidConfig, false, err)
		}
		return client, nil
	}

	switch classifyCredential(opts.Credential) {
	case credentialSharedKey:
		cred, err := azblob.NewSharedKeyCredential(account, strings.TrimSpace(opts.Credential))
		if err != nil {
			return nil, wrapError(CodeAuthInvalid, false, fmt.Errorf("failed to create Azure shared key credential: %w", err))
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, clientOpts)
		if err != nil {
			return nil, wrapError(CodeInvalidConfig, false, err)
		}
		return client, nil
	case credentialSAS:
		sasURL := serviceURL + "?" + strings.TrimPrefix(strings.TrimSpace(opts.Credential), "?")
		client, err := azblob.NewClientWithNoCredential(sasURL, clientOpts)
		if err != nil {
			return nil, wrapError(CodeInvalidConfig, false, err)
		}
		return client, nil
	default:
		client, err := azblob.NewClientWithNoCredential(serviceURL, clientOpts)
		if err != nil {
			return nil, wrapError(CodeInvalidConfig, false, err)
		}
		return client, nil
	}
}

func openAzure(ctx context.Context, cfg Config) (Store, error) {
	if !cfg.Azure.Configured() {
		return nil, wrapError(CodeInvalidConfig, false, fmt.Errorf("azure_options.account_url or conn_str is required"))
	}
	client, err := newAzureClient(cfg.Azure)
	if err != nil {
		return nil, err
	}
	containerClient := client.ServiceClient().NewContainerClient(cfg.Bucket)
	bucket, err := azureblob.OpenBucket(ctx, containerClient, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to open Azure container %s: %w", cfg.Bucket, err), CodeBucketNotFound)
	}
	return NewBucket(bucket), nil
}
