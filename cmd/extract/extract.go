package extract

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eegprep/eegprep/internal/buildinfo"
	"github.com/eegprep/eegprep/internal/conf"
	"github.com/eegprep/eegprep/internal/datasets"
	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/logger"
	"github.com/eegprep/eegprep/internal/observability"
	"github.com/eegprep/eegprep/internal/pipeline"
	"github.com/eegprep/eegprep/internal/telemetry"
)

// allDatasets selects every registered dataset.
const allDatasets = "all"

const telemetryFlushTimeout = 5 * time.Second

// Command creates a new cobra.Command for epoch extraction.
func Command(ctx *conf.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [dataset...|all]",
		Short: "Extract labeled epochs from raw recordings",
		Long: "Extract, label and store motor imagery epochs for one or more datasets.\n" +
			"The output directory of every selected dataset is deleted and recreated.\n" +
			"Known datasets: " + strings.Join(datasets.Keys(), ", ") + ".",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: append(datasets.Keys(), allDatasets),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), ctx, args, cmd.OutOrStdout())
		},
	}

	if err := setupFlags(cmd, ctx); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags defines flags specific to the extract command.
func setupFlags(cmd *cobra.Command, ctx *conf.Context) error {
	flags := cmd.Flags()
	flags.IntP("workers", "w", 1, "Subjects processed concurrently, 0 sizes the pool automatically")
	flags.Uint64("seed", conf.DefaultSeed, "Seed of the normalization noise")
	flags.Float64("noise", conf.DefaultNoise, "Noise coefficient added after z-scoring")
	flags.Bool("manifest", true, "Record the run in <output>/<dataset>.manifest.db")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this file after the run")

	for key, name := range map[string]string{
		"pipeline.workers": "workers",
		"normalize.seed":   "seed",
		"normalize.noise":  "noise",
		"output.manifest":  "manifest",
		"metrics.textfile": "metrics-textfile",
	} {
		if err := ctx.Viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// selectSpecs resolves dataset arguments in argument order, dropping
// repeats.
func selectSpecs(args []string) ([]*datasets.Spec, error) {
	if slices.ContainsFunc(args, func(a string) bool { return strings.EqualFold(a, allDatasets) }) {
		return datasets.All(), nil
	}

	var specs []*datasets.Spec
	for _, arg := range args {
		spec, err := datasets.Lookup(arg)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(specs, spec) {
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

func run(ctx context.Context, appCtx *conf.Context, args []string, out io.Writer) error {
	specs, err := selectSpecs(args)
	if err != nil {
		return err
	}

	settings := appCtx.Settings
	log := appCtx.Log("extract")

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		DataRoot:   settings.Data.Root,
		OutputRoot: settings.Output.Root,
		Workers:    settings.Pipeline.Workers,
		Seed:       settings.Normalize.Seed,
		Noise:      settings.Normalize.Noise,
		Manifest:   settings.Output.Manifest,
	}

	if settings.Telemetry.Enabled {
		reporter, err := telemetry.New(telemetry.Options{
			DSN:         settings.Telemetry.DSN,
			Environment: settings.Telemetry.Environment,
			Release:     buildinfo.Current().Release(),
		})
		if err != nil {
			log.Warn("error reporting disabled", logger.Error(err))
		} else {
			opts.Reporter = reporter
			defer reporter.Flush(telemetryFlushTimeout)
		}
	}

	reports, runErr := pipeline.RunAll(ctx, specs, opts, appCtx.Log("pipeline"), m.Extraction)
	printSummary(out, reports)

	if path := settings.Metrics.TextFile; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			log.Warn("failed to write metrics textfile", logger.String("path", path), logger.Error(err))
		}
	}

	if runErr != nil && tolerable(args, reports) {
		return nil
	}
	return runErr
}

// tolerable reports whether every dataset failure was a missing dataset
// directory during an "all" run. Not every dataset needs to be downloaded.
func tolerable(args []string, reports []*pipeline.Report) bool {
	if !slices.ContainsFunc(args, func(a string) bool { return strings.EqualFold(a, allDatasets) }) {
		return false
	}
	for _, r := range reports {
		if r.Err != nil && !errors.IsCategory(r.Err, errors.CategoryMissingInput) {
			return false
		}
	}
	return true
}

func printSummary(w io.Writer, reports []*pipeline.Report) {
	for _, r := range reports {
		if r.Err != nil && r.Workers == 0 {
			fmt.Fprintf(w, "%-22s skipped: %v\n", r.Dataset, r.Err)
			continue
		}
		fmt.Fprintf(w, "%-22s %d ok, %d failed, %d excluded, %s epochs, %s in %s\n",
			r.Dataset,
			r.Succeeded(), r.Failed(), r.Excluded(),
			humanize.Comma(int64(r.Epochs())),
			humanize.Bytes(uint64(r.Bytes())),
			r.Duration().Round(time.Millisecond))
		for _, s := range r.Subjects {
			if s.Status == pipeline.StatusFailed {
				fmt.Fprintf(w, "  %s failed (%s): %v\n", s.Subject, s.Category, s.Err)
			}
		}
	}
}
