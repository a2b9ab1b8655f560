package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// Error codes returned by AWS Secrets Manager.
const (
	ResourceNotFoundException = "ResourceNotFoundException"
	AccessDeniedException     = "AccessDeniedException"
)

// DefaultRegion is where the portal secrets live.
const DefaultRegion = "ca-central-1"

// ManagerAPI is the subset of the Secrets Manager client used here.
type ManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads secrets from AWS Secrets Manager.
type AWSProvider struct {
	api    ManagerAPI
	logger *slog.Logger
}

// NewAWSProvider wraps an existing client.
func NewAWSProvider(api ManagerAPI, logger *slog.Logger) *AWSProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &AWSProvider{api: api, logger: logger}
}

// NewAWSProviderFromEnv builds a client from the default credential chain.
// An empty region uses DefaultRegion.
func NewAWSProviderFromEnv(ctx context.Context, region string, logger *slog.Logger) (*AWSProvider, error) {
	if region == "" {
		region = DefaultRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewAWSProvider(secretsmanager.NewFromConfig(cfg), logger), nil
}

// GetSecret returns the string or binary value of a secret.
func (p *AWSProvider) GetSecret(ctx context.Context, name string) (string, error) {
	p.logger.DebugContext(ctx, "retrieving secret", "secret_name", name)

	out, err := p.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &name})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case ResourceNotFoundException:
				return "", ErrSecretNotFound
			case AccessDeniedException:
				return "", ErrAccessDenied
			}
		}
		p.logger.ErrorContext(ctx, "failed to retrieve secret", "secret_name", name, "error", err)
		return "", fmt.Errorf("get secret: %w", err)
	}

	switch {
	case out.SecretString != nil:
		return *out.SecretString, nil
	case out.SecretBinary != nil:
		return string(out.SecretBinary), nil
	default:
		return "", ErrSecretEmpty
	}
}
