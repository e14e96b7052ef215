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

// Package registry binds a set of named database connections to a host
// application.
//
// The registry reads the "orm.connections" setting from the application's
// configuration store, validates every entry, writes the connection
// parameters into the query engine's settings store and installs itself in
// the application's container under the "db" resource name.
//
// Example configuration (YAML):
//
//	orm:
//	  connections:
//	    default:
//	      connection_string: "mysql:host=localhost;dbname=app"
//	      username: app
//	      password: ${DB_PASSWORD}
//	    reporting:
//	      connection_string: "pgsql:host=reports;dbname=warehouse"
//	      caching: true
//	      error_mode: warning
package registry
