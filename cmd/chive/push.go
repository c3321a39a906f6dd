package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/chive/backend/pkg/autosave"
	"github.com/chive/backend/pkg/editor"
	"github.com/chive/backend/pkg/project"
)

var pushTitle string

func init() {
	pushCmd.Flags().StringVarP(&pushTitle, "title", "t", "", "Rename the project before saving")
	rootCmd.AddCommand(pushCmd)
}

var pushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Save a project file on the server",
	Long: `Save a project file on the server and write the assigned id and
timestamps back into the file.

A file without an id, or with an id that belongs to someone else, is saved
as a new project.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		store, err := loadStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		if pushTitle != "" {
			store.SetTitle(pushTitle)
		}

		saver := autosave.New(store, newClient())
		if err := saver.Flush(cmd.Context()); err != nil {
			return err
		}

		snap := store.Snapshot()
		p := project.ToProject(snap.Graph, snap.Title, snap.Project, time.Now())
		if snap.Project != nil {
			p.UpdatedAt = snap.Project.UpdatedAt
		}
		if err := writeProject(path, p); err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), project.SaveResponse{
			Message: "Project saved",
			Project: project.Info{
				ID:              p.ID,
				Title:           p.Title,
				CreatedAt:       p.CreatedAt,
				UpdatedAt:       p.UpdatedAt,
				CreatorID:       p.CreatorID,
				CreatorUsername: p.CreatorUsername,
			},
		})
	},
}

// loadStore opens an editing session on the project file at path.
func loadStore(path string) (*editor.Store, error) {
	p, err := readProject(path)
	if err != nil {
		return nil, err
	}
	title, g, meta := project.FromProject(p)
	var mp *project.Meta
	if meta.Saved() {
		mp = &meta
	}
	store := editor.New()
	if err := store.Load(title, g, mp); err != nil {
		store.Close()
		return nil, dataError{err}
	}
	return store, nil
}
