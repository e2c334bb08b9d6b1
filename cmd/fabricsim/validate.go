package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sarchlab/fabricsim/config"
	"github.com/sarchlab/fabricsim/topology"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <topology.yaml>",
	Short: "Check a topology file without running it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}

		registry := topology.DefaultRegistry()
		for _, c := range cfg.Components {
			if _, ok := registry.Lookup(c.Type); !ok {
				return errors.Errorf("component %s has unknown type %q",
					c.Name, c.Type)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"%s: %d components, %d connections\n",
			args[0], len(cfg.Components), len(cfg.Connections))

		return nil
	},
}
