package main

import (
	"encoding/base64"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabml/chart"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

type graphOutput struct {
	Status string `json:"status"`
	Image  string `json:"image"`
}

func newGraphCmd(a *app) *cobra.Command {
	var pngPath string
	cmd := &cobra.Command{
		Use:   "graph <csv> <line|bar|scatter> <x> <y>",
		Short: "Render a chart of two columns as a base64 PNG",
		Args:  argCount(4, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := chart.ParseKind(args[1])
			if err != nil {
				return err
			}
			ds, err := dataset.LoadCSV(args[0],
				dataset.WithNumericThreshold(a.cfg.Training.NumericThreshold),
				dataset.WithWarner(a.logger),
			)
			if err != nil {
				return err
			}
			png, err := chart.Render(ds, kind, args[2], args[3], a.cfg.Chart, a.logger)
			if err != nil {
				return err
			}
			if pngPath != "" {
				if err := os.WriteFile(pngPath, png, 0o644); err != nil {
					return errors.NewUnexpectedFailure("write png", err)
				}
			}
			return a.emit(graphOutput{Status: "success", Image: base64.StdEncoding.EncodeToString(png)})
		},
	}
	cmd.Flags().StringVar(&pngPath, "png", "", "also write the PNG to this file")
	return cmd
}
