package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View tabml configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration as YAML",
		Args:  argCount(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			if _, err := a.stdout.Write(out); err != nil {
				return errors.NewUnexpectedFailure("write output", err)
			}
			return nil
		},
	})
	return cmd
}
