package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validateResponse struct {
	Status string   `json:"status" yaml:"status"`
	Title  string   `json:"title" yaml:"title"`
	Nodes  int      `json:"nodes" yaml:"nodes"`
	Edges  int      `json:"edges" yaml:"edges"`
	Order  []string `json:"order" yaml:"order"`
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a project file and print its execution order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := readProject(args[0])
		if err != nil {
			return err
		}
		nodes, err := p.Data.Order()
		if err != nil {
			return dataError{err}
		}
		order := make([]string, 0, len(nodes))
		for _, n := range nodes {
			order = append(order, n.ID)
		}
		return output(cmd.OutOrStdout(), validateResponse{
			Status: "ok",
			Title:  p.Title,
			Nodes:  len(p.Data.Nodes),
			Edges:  len(p.Data.Edges),
			Order:  order,
		})
	},
}
