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
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ormbridge/engine"
	"ormbridge/registry"
)

type queryParams struct {
	target     string
	connection string
	model      bool
	where      []string
	orderBy    string
	limit      int
	count      bool
}

// queryCmd runs a read-only query against a table or model
func queryCmd(opts *globalOptions) *cobra.Command {
	p := queryParams{}

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Query a table and print rows as JSON",
		Long: `Run a SELECT against a table (or a model with --model) on a configured
connection and print the rows as JSON.

Examples:
  ormctl query users --limit 10
  ormctl query orders --connection reporting --where status=open --count
  ormctl query app.UserProfile --model --order-by -created_at`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.target = args[0]

			reg, cleanup, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			return runQuery(cmd.Context(), reg, cmd.OutOrStdout(), p)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&p.connection, "connection", "", "Connection name (default connection when empty)")
	flags.BoolVar(&p.model, "model", false, "Treat the argument as a model identifier")
	flags.StringArrayVar(&p.where, "where", nil, "Equality filter column=value (repeatable)")
	flags.StringVar(&p.orderBy, "order-by", "", "Sort column, prefix with - for descending")
	flags.IntVar(&p.limit, "limit", 20, "Maximum rows to return (0 for no limit)")
	flags.BoolVar(&p.count, "count", false, "Print the number of matching rows instead")

	return cmd
}

func runQuery(ctx context.Context, reg *registry.Registry, w io.Writer, p queryParams) error {
	var q *engine.Query
	if p.model {
		q = reg.Model(p.target, p.connection)
	} else {
		q = reg.Table(p.target, p.connection)
	}

	for _, cond := range p.where {
		column, value, ok := strings.Cut(cond, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return fmt.Errorf("invalid --where %q, expected column=value", cond)
		}
		q.Where(strings.TrimSpace(column), value)
	}

	if p.count {
		n, err := q.Count(ctx)
		if err != nil {
			return err
		}
		return writeJSON(w, map[string]int64{"count": n})
	}

	switch {
	case strings.HasPrefix(p.orderBy, "-"):
		q.OrderByDesc(strings.TrimPrefix(p.orderBy, "-"))
	case p.orderBy != "":
		q.OrderByAsc(p.orderBy)
	}
	if p.limit > 0 {
		q.Limit(p.limit)
	}

	rows, err := q.FindMany(ctx)
	if err != nil {
		return err
	}
	if err := q.Err(); err != nil {
		return fmt.Errorf("query failed in silent mode: %w", err)
	}
	return writeJSON(w, rows)
}
