package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabml/config"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

// 終了コード
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// app は1回の起動で共有される状態
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Global
	logger log.Logger

	// traceback はエラーペイロードにスタックを含めるかどうか
	traceback bool
}

type errorPayload struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "tabml",
		Short:         "Train, predict and chart tabular data",
		Long:          `tabml trains random forest models on CSV files with automatic target detection, predicts single JSON records and renders charts as base64 PNG.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return errors.NewValueError(c.Name(), err.Error())
	})

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is ~/.tabml/config.yaml)")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	f.StringVar(&a.logFormat, "log-format", "", "log format: console or json (overrides config)")

	root.AddCommand(
		newTrainCmd(a),
		newPredictCmd(a),
		newGraphCmd(a),
		newServeCmd(a),
		newModelsCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger. Logs go to stderr so
// stdout carries only the JSON result.
func (a *app) setup() error {
	c, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		c.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		c.LogFormat = a.logFormat
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.NewValueError("config", err.Error())
	}
	a.cfg = c
	a.logger = log.New(log.Options{Level: level, Format: c.LogFormat, Backend: c.LogBackend}, a.stderr)
	return nil
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, logger: log.Nop()}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := errors.SafeExecute("tabml", func() error {
		return root.ExecuteContext(ctx)
	})
	if err == nil {
		return exitOK
	}
	return a.fail(err)
}

// fail logs err with its stack and writes the error payload to stderr.
func (a *app) fail(err error) int {
	code := errors.Code(err)
	a.logger.Error("Command failed", err, log.ErrorCodeKey, code)

	payload := errorPayload{Status: "error", Code: code, Message: err.Error()}
	if a.traceback {
		payload.Traceback = errors.Detail(err)
	}
	_ = json.NewEncoder(a.stderr).Encode(payload)

	if code == errors.CodeInvalidArgumentCount {
		return exitUsage
	}
	return exitError
}

// emit writes a success payload to stdout.
func (a *app) emit(v any) error {
	if err := json.NewEncoder(a.stdout).Encode(v); err != nil {
		return errors.NewUnexpectedFailure("write output", err)
	}
	return nil
}

// argCount validates the number of positional arguments.
func argCount(minArgs, maxArgs int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < minArgs || len(args) > maxArgs {
			return errors.NewInvalidArgumentCountError(cmd.Name(), cmd.UseLine(), minArgs, maxArgs, len(args))
		}
		return nil
	}
}
