package main

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabml/pipeline"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

type predictOutput struct {
	Status     string `json:"status"`
	Prediction any    `json:"prediction"`
}

func newPredictCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <model-path> <record.json>",
		Short: "Predict one JSON record with a trained model",
		Args:  argCount(2, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.traceback = true
			record, err := readRecord(args[1])
			if err != nil {
				return err
			}
			p, err := pipeline.Load(args[0], a.logger)
			if err != nil {
				return err
			}
			pred, err := p.PredictRecord(record)
			if err != nil {
				return err
			}
			a.logger.Debug("Record predicted",
				log.OperationKey, log.OperationPredict,
				log.ModelPathKey, args[0],
				log.PredsKey, 1,
			)
			return a.emit(predictOutput{Status: "success", Prediction: pred})
		},
	}
}

// readRecord decodes a JSON object, keeping numbers as json.Number.
func readRecord(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.NewUnexpectedFailure("read record", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var record map[string]any
	if err := dec.Decode(&record); err != nil || record == nil {
		return nil, errors.NewValueError("predict", "record file must contain a JSON object")
	}
	return record, nil
}
