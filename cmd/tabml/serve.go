package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabml/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the train, predict and graph API over HTTP",
		Args:  argCount(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.ServerAddr = addr
			}
			s, err := server.New(a.cfg, a.logger)
			if err != nil {
				return err
			}
			return s.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config server_addr)")
	return cmd
}
