package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chive/backend/pkg/pipeline"
)

var runDest string

func init() {
	runCmd.Flags().StringVarP(&runDest, "dest", "d", ".", "Directory for the result archive")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <file> <image>...",
	Short: "Run a saved project's pipeline over images",
	Long: `Run the pipeline of a saved project file over sample images and store
the zip archive of results in --dest.

Files that are not images are skipped. The project must have been pushed.

Examples:
  chive run sharpen.json cat.png dog.jpg --dest out/`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		dialog := pipeline.NewDialog(store, newClient(), pipeline.DirDownloader{Dir: runDest})
		dialog.Open()

		assets, err := readAssets(args[1:])
		if err != nil {
			return err
		}
		accepted := dialog.Add(assets...)
		if accepted == 0 {
			return dataError{pipeline.ErrNoAssets}
		}

		path, err := dialog.Submit(cmd.Context())
		if err != nil {
			if errors.Is(err, pipeline.ErrNoAssets) || errors.Is(err, pipeline.ErrUnsaved) {
				return dataError{err}
			}
			var se *pipeline.SubmitError
			if errors.As(err, &se) {
				return fmt.Errorf("%s: %w", se.Message, se.Err)
			}
			return err
		}
		return output(cmd.OutOrStdout(), map[string]any{
			"status": "processed",
			"path":   path,
			"images": accepted,
		})
	},
}

func readAssets(paths []string) ([]pipeline.Asset, error) {
	assets := make([]pipeline.Asset, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		assets = append(assets, pipeline.Asset{
			Name:      filepath.Base(path),
			MediaType: mime.TypeByExtension(filepath.Ext(path)),
			Data:      data,
		})
	}
	return assets, nil
}
