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

// Package main implements ormctl, a command-line tool for inspecting and
// querying the database connections an application registers.
//
// Usage:
//
//	ormctl connections --config ormbridge.yaml
//	ormctl query users --connection reporting --limit 10
//	ormctl serve --addr :8090
//
// Environment Variables:
//
//	ORMCTL_CONFIG - configuration file or s3://, gs://, azblob:// URI (default: ormbridge.yaml)
//	ORMCTL_JWT_SECRET - HS256 secret required by serve for bearer tokens
//	ORMCTL_S3_ENDPOINT, ORMCTL_GCS_ENDPOINT - object store endpoint overrides
//	AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_KEY, AZURE_STORAGE_CONNECTION_STRING - Azure Blob access
//	ORM_CONNECTIONS - comma separated connection names read from ORM_<NAME>_* variables
//	ORM_CONNECTIONS_DATABASE_URL - PostgreSQL database holding shared connection definitions
//	AWS_REGION - region for resolving secret:// credential references
//	ORMBRIDGE_LOG_LEVEL - DEBUG, INFO, WARN or ERROR
package main
