// Command findhome trains and applies the property price regressor.
//
//	findhome train   -config findhome.yaml
//	findhome predict -bundle Artifacts/model.gob -input rows.csv -out predictions.csv
//	findhome synth   -rows 1000 -seed 1 -out data.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/findhome/dataset"
	"github.com/YuminosukeSato/findhome/internal/config"
	"github.com/YuminosukeSato/findhome/internal/telemetry"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
	"github.com/YuminosukeSato/findhome/training"
)

// PredictionColumn is appended to the input rows by predict.
const PredictionColumn = "predicted_price"

const usage = `usage: findhome <command> [flags]

commands:
  train    split, fit, tune and evaluate from a configuration file
  predict  estimate prices for rows with a saved bundle
  synth    write a synthetic housing dataset
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "train":
		err = trainCmd(ctx, args[1:], stdout, stderr)
	case "predict":
		err = predictCmd(args[1:], stdout, stderr)
	case "synth":
		err = synthCmd(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		log.GetLoggerWithName("findhome").Debug("Command failed", "error", err)
		fmt.Fprintf(stderr, "%s: %v\n", errors.Kind(err), err)
		return 1
	}
	return 0
}

func trainCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", "findhome.yaml", "configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	if _, err := log.SetupLogger(cfg.Logging.Level, cfg.Logging.Format, stderr); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("findhome")

	tracing, err := telemetry.NewTracing(cfg.Telemetry.TraceFile, uuid.NewString())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Trace export failed", "error", err)
		}
	}()

	metrics := telemetry.NewMetrics()
	r := training.NewRun(cfg)
	r.Logger = logger
	r.Metrics = metrics
	r.Tracer = tracing.Tracer

	bundle, report, err := r.Execute(ctx)
	if err != nil {
		return err
	}
	if err := metrics.WriteTextfile(cfg.Telemetry.MetricsFile); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "run:          %s\n", bundle.Metadata.RunID)
	fmt.Fprintf(stdout, "model:        %s (%s)\n", bundle.Model.Name(), bundle.Metadata.Family)
	fmt.Fprintf(stdout, "test MAE:     %.4f\n", report.Error)
	fmt.Fprintf(stdout, "baseline MAE: %.4f\n", report.BaselineError)
	fmt.Fprintf(stdout, "CV R2:        %.4f\n", report.FitQuality)
	for i, s := range report.FoldScores {
		fmt.Fprintf(stdout, "  fold %-2d     %.4f\n", i, s)
	}
	return nil
}

func predictCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bundlePath := fs.String("bundle", "Artifacts/"+training.BundleName, "bundle written by train")
	input := fs.String("input", "", "CSV or XLSX rows to price")
	out := fs.String("out", "", "output CSV; empty prints to stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return errors.NewConfigurationError("predict.input", *input, "is required")
	}

	bundle, err := training.LoadBundle(*bundlePath)
	if err != nil {
		return err
	}
	frame, err := dataset.Load(*input)
	if err != nil {
		return err
	}
	prices, err := bundle.PredictPrices(frame)
	if err != nil {
		return err
	}

	header := append(append([]string{}, frame.Header...), PredictionColumn)
	rows := make([][]string, len(frame.Rows))
	for i, row := range frame.Rows {
		rows[i] = append(append([]string{}, row...), strconv.FormatFloat(prices[i], 'f', 4, 64))
	}
	result, err := dataset.NewFrame(header, rows)
	if err != nil {
		return err
	}
	if *out == "" {
		return dataset.EncodeCSV(result, stdout)
	}
	return dataset.WriteCSV(result, *out)
}

func synthCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rows := fs.Int("rows", 1000, "number of rows")
	seed := fs.Uint64("seed", 1, "generator seed")
	out := fs.String("out", "data.csv", "output CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rows < 1 {
		return errors.NewConfigurationError("synth.rows", *rows, "must be positive")
	}
	if err := dataset.WriteCSV(dataset.Synthetic(*rows, *seed), *out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d rows to %s\n", *rows, *out)
	return nil
}
