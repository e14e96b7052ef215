// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"ormbridge/shared/logger"
)

// SecretScheme prefixes credential values that reference a secret
const SecretScheme = "secret://"

// ErrSecretNotFound is returned when a secret or field does not exist
var ErrSecretNotFound = errors.New("config: secret not found")

// SecretsProvider fetches a secret as a map of string fields
type SecretsProvider interface {
	GetSecret(ctx context.Context, secretID string) (map[string]string, error)
}

// secretsAPI is the subset of the Secrets Manager client used here
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager implements SecretsProvider using AWS Secrets Manager
type AWSSecretsManager struct {
	client secretsAPI
	cache  map[string]*secretCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger
}

type secretCacheEntry struct {
	value     map[string]string
	expiresAt time.Time
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager
type AWSSecretsManagerOptions struct {
	Region   string
	Endpoint string
	CacheTTL time.Duration
	Logger   *logger.Logger

	// Static credentials; the default chain is used when empty
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewAWSSecretsManager loads the default AWS configuration and creates a
// Secrets Manager client
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)
		cfgOpts = append(cfgOpts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return newAWSSecretsManager(client, opts.CacheTTL, opts.Logger), nil
}

func newAWSSecretsManager(client secretsAPI, ttl time.Duration, l *logger.Logger) *AWSSecretsManager {
	if l == nil {
		l = logger.New("secrets")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AWSSecretsManager{
		client: client,
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
		now:    time.Now,
		logger: l,
	}
}

// GetSecret returns the secret's fields. JSON object secrets are decoded;
// any other string is returned under the "value" field.
func (s *AWSSecretsManager) GetSecret(ctx context.Context, secretID string) (map[string]string, error) {
	s.mu.RLock()
	entry, exists := s.cache[secretID]
	s.mu.RUnlock()

	if exists && s.now().Before(entry.expiresAt) {
		s.logger.Debug("", "Secret cache hit", map[string]interface{}{"secret": maskARN(secretID)})
		return entry.value, nil
	}

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskARN(secretID), err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskARN(secretID))
	}

	secretValue := *result.SecretString
	var fields map[string]string
	if err := json.Unmarshal([]byte(secretValue), &fields); err != nil {
		fields = map[string]string{"value": secretValue}
	}

	s.mu.Lock()
	s.cache[secretID] = &secretCacheEntry{value: fields, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	s.logger.Info("", "Fetched secret", map[string]interface{}{"secret": maskARN(secretID)})
	return fields, nil
}

// InvalidateSecret removes a secret from the cache
func (s *AWSSecretsManager) InvalidateSecret(secretID string) {
	s.mu.Lock()
	delete(s.cache, secretID)
	s.mu.Unlock()
}

// InvalidateAll clears the secret cache
func (s *AWSSecretsManager) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string]*secretCacheEntry)
	s.mu.Unlock()
}

// maskARN shows only the last 8 characters of a secret id
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}

// StaticSecrets is an in-memory SecretsProvider for development and tests
type StaticSecrets struct {
	mu      sync.RWMutex
	secrets map[string]map[string]string
}

// NewStaticSecrets creates an empty provider
func NewStaticSecrets() *StaticSecrets {
	return &StaticSecrets{secrets: make(map[string]map[string]string)}
}

// SetSecret stores a secret
func (s *StaticSecrets) SetSecret(secretID string, fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[secretID] = fields
}

func (s *StaticSecrets) GetSecret(_ context.Context, secretID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.secrets[secretID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, maskARN(secretID))
	}
	return fields, nil
}

// secretFields are the connection parameters that may hold a reference
var secretFields = []string{"connection_string", "username", "password"}

// ResolveSecrets replaces "secret://<id>#<field>" values in the
// connection_string, username and password parameters of every connection.
// The field defaults to the parameter name. Values are used exactly as
// stored in the secret.
func ResolveSecrets(ctx context.Context, provider SecretsProvider, connections map[string]any) error {
	names := make([]string, 0, len(connections))
	for name := range connections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		params, ok := connections[name].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range secretFields {
			ref, ok := params[key].(string)
			if !ok || !strings.HasPrefix(ref, SecretScheme) {
				continue
			}
			if provider == nil {
				return fmt.Errorf("connection %s: %s references a secret but no secrets provider is configured", name, key)
			}

			secretID, field := parseSecretRef(ref, key)
			fields, err := provider.GetSecret(ctx, secretID)
			if err != nil {
				return fmt.Errorf("connection %s: %w", name, err)
			}
			value, ok := fields[field]
			if !ok {
				return fmt.Errorf("connection %s: %w: field %q of %s", name, ErrSecretNotFound, field, maskARN(secretID))
			}
			params[key] = value
		}
	}
	return nil
}

func parseSecretRef(ref, defaultField string) (secretID, field string) {
	body := strings.TrimPrefix(ref, SecretScheme)
	secretID, field, found := strings.Cut(body, "#")
	if !found || field == "" {
		field = defaultField
	}
	return secretID, field
}
