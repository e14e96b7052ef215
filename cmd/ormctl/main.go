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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ormbridge/config"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "ormctl",
		Short:         "ORM connection registry tool",
		Long:          `ormctl loads ORM connection definitions the same way an application does and lets you inspect and query them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", envOrDefault("ORMCTL_CONFIG", "ormbridge.yaml"), "Configuration file path or s3://, gs://, azblob:// URI")
	flags.StringVar(&opts.sourceURL, "connections-db", os.Getenv("ORM_CONNECTIONS_DATABASE_URL"), "PostgreSQL URL of the shared connection table")
	flags.StringVar(&opts.awsRegion, "aws-region", os.Getenv("AWS_REGION"), "AWS region for secret:// references")
	flags.StringVar(&opts.logLevel, "log-level", os.Getenv("ORMBRIDGE_LOG_LEVEL"), "Log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(connectionsCmd(opts))
	rootCmd.AddCommand(queryCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(exampleCmd())

	return rootCmd
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// exampleCmd prints an example configuration file
func exampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example-config",
		Short: "Print an example configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), config.ExampleFile())
			return err
		},
	}
}
