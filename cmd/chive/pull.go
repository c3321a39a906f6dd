package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var pullOut string

func init() {
	pullCmd.Flags().StringVarP(&pullOut, "file", "f", "", "Write to this file instead of project-<id>.json")
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(listCmd)
}

var pullCmd = &cobra.Command{
	Use:   "pull <project-id>",
	Short: "Download a project into a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return dataError{fmt.Errorf("invalid project id %q", args[0])}
		}
		p, err := newClient().LoadProject(cmd.Context(), id)
		if err != nil {
			return err
		}

		path := pullOut
		if path == "" {
			path = fmt.Sprintf("project-%d.json", id)
		}
		if err := writeProject(path, p); err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), map[string]any{"status": "pulled", "path": path, "id": p.ID})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := newClient().ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), infos)
	},
}
