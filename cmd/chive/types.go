package main

import (
	"github.com/spf13/cobra"

	"github.com/chive/backend/pkg/nodetype"
)

var typesRemote bool

func init() {
	typesCmd.Flags().BoolVar(&typesRemote, "remote", false, "Fetch the catalogue from the server")
	rootCmd.AddCommand(typesCmd)
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List node types and their parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		types := nodetype.Describe()
		if typesRemote {
			var err error
			types, err = newClient().NodeTypes(cmd.Context())
			if err != nil {
				return err
			}
		}
		return output(cmd.OutOrStdout(), types)
	},
}
