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
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ormbridge/registry"
)

// connectionsCmd lists the registered connections
func connectionsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "connections",
		Short: "List configured connections",
		Long: `List every connection registered from the configuration file, the
shared connection table and ORM_<NAME>_* environment variables.
Passwords are masked.

Examples:
  ormctl connections
  ormctl connections --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, cleanup, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), describeAll(reg))
			}
			printConnections(cmd.OutOrStdout(), reg)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print settings as JSON")
	return cmd
}

func describeAll(reg *registry.Registry) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, name := range reg.Connections() {
		out[name] = reg.Describe(name)
	}
	return out
}

func printConnections(w io.Writer, reg *registry.Registry) {
	names := reg.Connections()
	if len(names) == 0 {
		fmt.Fprintln(w, "No connections configured.")
		return
	}

	fmt.Fprintf(w, "Connections (%d):\n", len(names))
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, name := range names {
		settings := reg.Describe(name)
		fmt.Fprintf(w, "%s\n", name)

		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "    %-28s %v\n", k, settings[k])
		}
	}
	fmt.Fprintln(w, strings.Repeat("-", 50))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
