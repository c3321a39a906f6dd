package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chive/backend/pkg/editor"
	"github.com/chive/backend/pkg/project"
)

var (
	newTitle string
	newForce bool
)

func init() {
	newCmd.Flags().StringVarP(&newTitle, "title", "t", project.DefaultTitle, "Project title")
	newCmd.Flags().BoolVarP(&newForce, "force", "f", false, "Overwrite an existing file")
	rootCmd.AddCommand(newCmd)
}

var newCmd = &cobra.Command{
	Use:   "new <file>",
	Short: "Create a project file holding the starter graph",
	Long: `Create a project file holding the starter graph: a single Source node.

The project is not saved on the server until it is pushed.

Examples:
  chive new sharpen.json --title Sharpen
  chive push sharpen.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !newForce {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}
		p := project.ToProject(editor.StarterGraph(), newTitle, nil, time.Now())
		if err := writeProject(path, p); err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), map[string]string{"status": "created", "path": path})
	},
}
