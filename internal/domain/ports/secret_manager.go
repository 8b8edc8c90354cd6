package ports

import "context"

// Secret is a resolved secret value with provider metadata
type Secret struct {
	Metadata  map[string]string
	Value     string
	Version   string
	CreatedAt string
}

// SecretManager resolves credentials (gateway keys, webhook and JWT secrets)
// from a secret store. Path syntax is provider specific.
type SecretManager interface {
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
