package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the operations in topological order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		_, builder, err := buildGraph(cfg)
		if err != nil {
			return err
		}

		order, err := builder.TopologicalOrder()
		if err != nil {
			return err
		}

		for _, name := range order {
			op, _ := builder.Get(name)
			deps := make([]string, 0, len(op.Dependencies))
			for dep := range op.Dependencies {
				deps = append(deps, dep.Name)
			}

			line := fmt.Sprintf("%s  (weight %d)", op.Name, op.Weight)
			if len(deps) > 0 {
				line += "  after: " + strings.Join(deps, ", ")
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}
