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

/*
Package logger provides structured JSON logging for ormbridge components.

# Overview

Every entry is written as a single JSON line so that logs can be shipped to
CloudWatch, ELK or any other aggregator without a parsing step.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (registry, engine, ormctl, ...)
  - Instance ID and container name
  - Connection name the entry relates to, when there is one
  - Custom fields

# Usage

	log := logger.New("registry")

	log.Info("reporting", "Connection configured", map[string]interface{}{
	    "username_set": true,
	})

	log.InfoWithDuration("default", "Query executed", 1.7, nil)

Entries below the configured level are dropped:

	log.SetLevel(logger.WARN)

# Environment Variables

  - INSTANCE_ID: deployment instance identifier (a random UUID when unset)
  - ORMBRIDGE_LOG_LEVEL: minimum level for loggers created with New
  - HOSTNAME: container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
