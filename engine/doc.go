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

// Package engine is a small SQL query engine configured through a
// per-connection key/value settings store.
//
// Connections are declared by writing settings (connection_string,
// username, password, driver_options and optional behaviour flags) under a
// connection name. Database handles are opened lazily on the first query.
//
// Basic usage:
//
//	e := engine.New(nil)
//	e.Configure(engine.KeyConnectionString, "sqlite:/var/lib/app.db", "")
//	rows, err := e.ForTable("users", "").Where("active", true).FindMany(ctx)
package engine
