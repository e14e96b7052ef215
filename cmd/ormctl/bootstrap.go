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

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"ormbridge/config"
	"ormbridge/engine"
	"ormbridge/host"
	"ormbridge/registry"
	"ormbridge/shared/logger"
)

type globalOptions struct {
	configPath string
	sourceURL  string
	awsRegion  string
	logLevel   string

	// engineOptions are appended when the engine is built
	engineOptions []engine.Option
	// fetchers override the object store clients used for remote configs
	fetchers map[string]config.ObjectFetcher
}

// bootstrap loads every connection source, resolves secrets and registers
// the registry with a fresh application. The returned cleanup closes
// database handles and the cache.
func bootstrap(ctx context.Context, opts *globalOptions) (*registry.Registry, func(), error) {
	log := logger.New("ormctl")
	if opts.logLevel != "" {
		log.SetLevel(logger.ParseLevel(opts.logLevel))
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	file, err := loadFile(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	sources := []map[string]any{file.ConnectionSettings()}

	if opts.sourceURL != "" {
		src, err := config.NewPostgresSource(ctx, opts.sourceURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open connection source: %w", err)
		}
		closers = append(closers, src.Close)

		stored, err := src.LoadConnections(ctx)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sources = append(sources, stored)
	}

	fromEnv, err := config.LoadConnectionsFromEnv()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	sources = append(sources, fromEnv)

	connections := config.MergeConnections(sources...)

	if hasSecretRefs(connections) {
		sm, err := config.NewAWSSecretsManager(ctx, config.AWSSecretsManagerOptions{
			Region: opts.awsRegion,
			Logger: log,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := config.ResolveSecrets(ctx, sm, connections); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	cache, closeCache, err := buildCache(ctx, file.ORM.Cache)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	engineOpts := append([]engine.Option{engine.WithCache(cache), engine.WithLogger(log)}, opts.engineOptions...)
	e := engine.New(nil, engineOpts...)
	closers = append(closers, e.Close)

	settings := make(map[string]any, len(file.Settings)+1)
	for k, v := range file.Settings {
		settings[k] = v
	}
	settings[registry.SettingConnections] = connections

	reg, err := registry.Register(host.NewApp(settings), registry.WithEngine(e), registry.WithLogger(log))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return reg, cleanup, nil
}

// loadFile reads the configuration file, locally or from an object store.
// A missing local file yields an empty configuration so that
// environment-only setups work.
func loadFile(ctx context.Context, opts *globalOptions) (*config.File, error) {
	path := opts.configPath
	if path == "" {
		return &config.File{}, nil
	}
	if config.IsRemote(path) {
		obj, err := config.ParseObjectURI(path)
		if err != nil {
			return nil, err
		}
		fetcher, err := opts.fetcher(ctx, obj.Scheme)
		if err != nil {
			return nil, err
		}
		return config.LoadRemoteFile(ctx, path, map[string]config.ObjectFetcher{obj.Scheme: fetcher})
	}

	loader, err := config.NewYAMLFileLoader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &config.File{}, nil
		}
		return nil, err
	}
	return loader.Config(), nil
}

// fetcher returns the injected fetcher for scheme or builds one from the
// environment
func (o *globalOptions) fetcher(ctx context.Context, scheme string) (config.ObjectFetcher, error) {
	if f, ok := o.fetchers[scheme]; ok {
		return f, nil
	}
	switch scheme {
	case config.SchemeS3:
		return config.NewS3Fetcher(ctx, config.S3FetcherOptions{
			Region:       o.awsRegion,
			Endpoint:     os.Getenv("ORMCTL_S3_ENDPOINT"),
			UsePathStyle: os.Getenv("ORMCTL_S3_PATH_STYLE") == "true",
		})
	case config.SchemeGCS:
		return config.NewGCSFetcher(ctx, config.GCSFetcherOptions{
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			Endpoint:        os.Getenv("ORMCTL_GCS_ENDPOINT"),
		})
	case config.SchemeAzureBlob:
		return config.NewAzureBlobFetcher(config.AzureBlobFetcherOptions{
			AccountName:      os.Getenv("AZURE_STORAGE_ACCOUNT"),
			AccountKey:       os.Getenv("AZURE_STORAGE_KEY"),
			ConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		})
	}
	return nil, fmt.Errorf("unsupported config scheme %q", scheme)
}

func buildCache(ctx context.Context, cfg config.CacheConfig) (engine.Cache, func() error, error) {
	if cfg.Backend != "redis" {
		return engine.NewMemoryCache(), nil, nil
	}

	ttl, err := cfg.TTLDuration()
	if err != nil {
		return nil, nil, err
	}
	rc, err := engine.NewRedisCache(ctx, engine.RedisCacheOptions{
		URL:    cfg.RedisURL,
		Prefix: cfg.Prefix,
		TTL:    ttl,
	})
	if err != nil {
		return nil, nil, err
	}
	return rc, rc.Close, nil
}

func hasSecretRefs(connections map[string]any) bool {
	for _, v := range connections {
		params, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for _, p := range params {
			if s, ok := p.(string); ok && strings.HasPrefix(s, config.SecretScheme) {
				return true
			}
		}
	}
	return false
}
