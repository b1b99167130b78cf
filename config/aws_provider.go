package config

import (
	"context"
	"fmt"
	"os"
)

// AWSConfigProvider reads values from AWS Secrets Manager and falls back to
// the environment for keys the secret does not carry, such as TREE_TABLE.
type AWSConfigProvider struct {
	secretsProvider Provider
	fallback        Provider
}

// NewAWSConfigProvider creates a new AWS configuration provider
func NewAWSConfigProvider() (Provider, error) {
	// Get secret name from environment variable
	secretName := os.Getenv("AWS_SECRET_NAME")
	if secretName == "" {
		return nil, fmt.Errorf("AWS_SECRET_NAME environment variable not set")
	}

	// Create secrets provider
	secretsProvider, err := NewAWSSecretsProvider(secretName)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS secrets provider: %w", err)
	}

	return NewLayeredProvider(secretsProvider, NewEnvProvider("")), nil
}

// NewLayeredProvider combines a primary provider with a fallback
func NewLayeredProvider(primary, fallback Provider) *AWSConfigProvider {
	return &AWSConfigProvider{
		secretsProvider: primary,
		fallback:        fallback,
	}
}

// GetEnvironment returns the current environment
func (p *AWSConfigProvider) GetEnvironment() Environment {
	return p.secretsProvider.GetEnvironment()
}

// GetString retrieves a string configuration value
func (p *AWSConfigProvider) GetString(ctx context.Context, key string) (string, error) {
	value, err := p.secretsProvider.GetString(ctx, key)
	if err == nil {
		return value, nil
	}
	if fallbackValue, fallbackErr := p.fallback.GetString(ctx, key); fallbackErr == nil {
		return fallbackValue, nil
	}
	return "", err
}

// GetInt retrieves an integer configuration value
func (p *AWSConfigProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.secretsProvider.GetInt(ctx, key)
	if err == nil {
		return value, nil
	}
	if fallbackValue, fallbackErr := p.fallback.GetInt(ctx, key); fallbackErr == nil {
		return fallbackValue, nil
	}
	return 0, err
}

// GetBool retrieves a boolean configuration value
func (p *AWSConfigProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.secretsProvider.GetBool(ctx, key)
	if err == nil {
		return value, nil
	}
	if fallbackValue, fallbackErr := p.fallback.GetBool(ctx, key); fallbackErr == nil {
		return fallbackValue, nil
	}
	return false, err
}

// GetSecret retrieves a secret value; secrets never come from the fallback
func (p *AWSConfigProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.secretsProvider.GetSecret(ctx, key)
}
