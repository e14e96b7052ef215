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

// Package config loads ORM connection definitions for a host application.
//
// Sources, in the order the CLI applies them:
//
//  1. a YAML file (YAMLFileLoader), with ${VAR} and ${VAR:-default}
//     expansion, or the same file kept in S3, GCS or Azure Blob Storage
//     (LoadRemoteFile)
//  2. a PostgreSQL table of centrally managed connections (PostgresSource)
//  3. environment variables, ORM_<NAME>_DSN and friends (LoadFromEnv)
//
// Later sources override earlier ones key by key. Credentials may reference
// a secret as "secret://<secret-id>#<field>"; ResolveSecrets replaces such
// references using a SecretsProvider such as AWSSecretsManager.
//
// Example file:
//
//	version: "1.0"
//	orm:
//	  cache:
//	    backend: redis
//	    redis_url: ${REDIS_URL:-redis://localhost:6379/0}
//	    ttl: 5m
//	  connections:
//	    default:
//	      connection_string: "mysql:host=${DB_HOST:-localhost};dbname=app"
//	      username: app
//	      password: secret://prod/app-db#password
//	      caching: true
package config
