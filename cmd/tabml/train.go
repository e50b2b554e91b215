package main

import (
	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabml/interpreter"
	"github.com/YuminosukeSato/tabml/trainer"
)

type trainOutput struct {
	Status       string                  `json:"status"`
	ModelPath    string                  `json:"model_path"`
	MetadataPath string                  `json:"metadata_path"`
	ModelID      string                  `json:"model_id"`
	TargetColumn string                  `json:"target_column"`
	ProblemType  interpreter.ProblemType `json:"problem_type"`
	Metrics      *trainer.Metrics        `json:"metrics"`
}

func newTrainCmd(a *app) *cobra.Command {
	var (
		progress    bool
		nEstimators int
		cvFolds     int
	)
	cmd := &cobra.Command{
		Use:   "train <input.csv> <model-path> [target]",
		Short: "Train a model with automatic target and problem detection",
		Args:  argCount(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.traceback = true
			tc := a.cfg.Training
			if cmd.Flags().Changed("n-estimators") {
				tc.NEstimators = nEstimators
			}
			if cmd.Flags().Changed("cv-folds") {
				tc.CVFolds = cvFolds
			}

			opts := trainer.Options{
				Input:    args[0],
				Output:   args[1],
				Target:   interpreter.Auto,
				Training: tc,
			}
			if len(args) == 3 {
				opts.Target = args[2]
			}

			if progress {
				bar := pb.New(tc.NEstimators)
				bar.SetWriter(a.stderr)
				bar.Start()
				defer bar.Finish()
				opts.Progress = func(done, total int) { bar.SetCurrent(int64(done)) }
			}

			res, err := trainer.Run(cmd.Context(), opts, a.logger)
			if err != nil {
				return err
			}
			return a.emit(trainOutput{
				Status:       "success",
				ModelPath:    res.ModelPath,
				MetadataPath: res.MetadataPath,
				ModelID:      res.Metadata.ModelID,
				TargetColumn: res.Metadata.TargetColumn,
				ProblemType:  res.Metadata.ProblemType,
				Metrics:      res.Metadata.Metrics,
			})
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar on stderr while trees are fitted")
	cmd.Flags().IntVar(&nEstimators, "n-estimators", 0, "number of trees (overrides config)")
	cmd.Flags().IntVar(&cvFolds, "cv-folds", 0, "cross-validation folds, 0 disables (overrides config)")
	return cmd
}
