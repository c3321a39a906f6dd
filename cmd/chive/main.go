// Package main provides the chive CLI for editing and running image pipeline
// projects against a chive server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chive/backend/internal/util"
	"github.com/chive/backend/pkg/client"
	"github.com/chive/backend/pkg/logger"
	"github.com/chive/backend/pkg/logger/console"
)

// Exit codes
const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitDataError = 3
)

var (
	serverURL    string
	userID       string
	username     string
	outputFormat string
	verbose      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "chive",
	Short: "Edit and run image pipeline projects",
	Long: `chive works with image pipeline projects: graphs of processing nodes
stored on a chive server.

Project files are the JSON documents the server stores. Commands print JSON
by default; use --output yaml for YAML.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: verbose, Prefix: "chive"}))
		if outputFormat != "json" && outputFormat != "yaml" {
			return fmt.Errorf("unknown output format %q (want json or yaml)", outputFormat)
		}
		return nil
	},
}

func init() {
	util.LoadEnv()
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", util.GetEnvString("CHIVE_SERVER", client.DefaultBaseURL), "chive server URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user-id", util.GetEnv("CHIVE_USER_ID"), "user id sent to the server")
	rootCmd.PersistentFlags().StringVar(&username, "username", util.GetEnv("CHIVE_USERNAME"), "username sent to the server")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func newClient() *client.Client {
	return client.NewClient(
		client.WithBaseURL(serverURL),
		client.WithUser(userID, username),
	)
}
