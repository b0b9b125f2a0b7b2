package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretSource resolves a secret id to its string value.
type SecretSource interface {
	SecretValue(ctx context.Context, id string) (string, error)
}

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecrets reads secrets from AWS Secrets Manager.
type AWSSecrets struct {
	client SecretsManagerAPI
}

// NewAWSSecrets builds a client from the default AWS credential chain.
func NewAWSSecrets(ctx context.Context) (*AWSSecrets, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWSSecrets{client: secretsmanager.NewFromConfig(awsCfg)}, nil
}

// NewAWSSecretsFromClient wraps an existing client (useful for testing).
func NewAWSSecretsFromClient(client SecretsManagerAPI) *AWSSecrets {
	return &AWSSecrets{client: client}
}

func (a *AWSSecrets) SecretValue(ctx context.Context, id string) (string, error) {
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", id, err)
	}
	if out.SecretString == nil {
		return "", errors.New("secret " + id + " has no string value")
	}
	return *out.SecretString, nil
}

// applySecret fills credentials that are still empty from a JSON object
// keyed by environment variable name.
func (c *AppConfig) applySecret(raw string) error {
	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return fmt.Errorf("decode secret: %w", err)
	}

	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = values[key]
		}
	}
	fill(&c.OpenWeather.APIKey, "OPENWEATHER_API_KEY")
	fill(&c.DatabaseURL, "DATABASE_URL")
	fill(&c.SMTP.Password, "SMTP_PASSWORD")
	fill(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	return nil
}
