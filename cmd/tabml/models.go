package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabml/registry"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect trained models in the models directory",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List models, newest first",
		Args:  argCount(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := registry.List(a.cfg.ModelsDir)
			if err != nil {
				return err
			}
			return a.emit(entries)
		},
	}

	show := &cobra.Command{
		Use:   "show <file>",
		Short: "Show one model with its metadata",
		Args:  argCount(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := registry.Describe(a.cfg.ModelsDir, args[0])
			if err != nil {
				return err
			}
			return a.emit(entry)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
