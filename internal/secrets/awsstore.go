package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretsAPI is the minimal interface needed from the Secrets Manager client.
// Backend depends on this interface instead of the concrete client so unit
// tests can stub the fetch without real HTTP.
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSStore fetches secret payloads from AWS Secrets Manager using the default
// credential chain (environment, config files, task/instance roles).
type AWSStore struct {
	api secretsAPI
}

// NewAWSStore loads the default AWS configuration and builds a Secrets
// Manager backed Store. region may be empty, in which case the SDK's own
// resolution ($AWS_REGION, shared config) applies.
func NewAWSStore(ctx context.Context, region string) (*AWSStore, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWSStore{api: secretsmanager.NewFromConfig(cfg)}, nil
}

// Fetch retrieves the current version of the secret identified by handle
// (a secret name or full ARN).
//
// Any SDK failure is surfaced as *AccessError: from the job's point of view a
// denied fetch, a missing secret, and an unreachable endpoint all mean "the
// credentials cannot be resolved", and the run must fail before touching the
// database.
func (s *AWSStore) Fetch(ctx context.Context, handle string) ([]byte, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &handle,
	})
	if err != nil {
		return nil, &AccessError{Handle: handle, Err: err}
	}

	if out.SecretString != nil {
		return []byte(*out.SecretString), nil
	}
	if len(out.SecretBinary) > 0 {
		return out.SecretBinary, nil
	}
	return nil, &AccessError{Handle: handle, Err: fmt.Errorf("secret has no value")}
}
