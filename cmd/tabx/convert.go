package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tabxdata/tabx/assembler"
	"github.com/tabxdata/tabx/cli/logflags"
	"github.com/tabxdata/tabx/compiler/dax"
	"github.com/tabxdata/tabx/converter"
	"github.com/tabxdata/tabx/twb"
)

func newConvertCmd(lf *logflags.Flags) *cobra.Command {
	var (
		outDir      string
		funcmapPath string
		verbose     bool
		jobs        int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "convert <workbook.twb>",
		Short: "Convert one workbook",
		Long: "Reads a Tableau workbook, translates its calculations, data model, and dashboards,\n" +
			"and writes model.json, report.json, and issues.json into the output directory.\n" +
			"The exit status is zero whenever output was produced, even with warnings.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				lf.Config.Level = zap.DebugLevel
			}
			log, err := lf.Open()
			if err != nil {
				return err
			}
			defer log.Sync()

			wb, err := twb.Load(args[0])
			if err != nil {
				return fmt.Errorf("reading workbook: %w", err)
			}
			fm := dax.Default()
			if funcmapPath != "" {
				if fm, err = dax.Load(funcmapPath); err != nil {
					return fmt.Errorf("loading function map: %w", err)
				}
			}

			res, err := converter.Run(cmd.Context(), wb, converter.Config{
				FuncMap:         fm,
				ClassifyTimeout: timeout,
				Parallelism:     jobs,
				Logger:          log,
			})
			if err != nil {
				return err
			}
			doc := res.Report.Document()
			if err := assembler.Write(outDir, res.Model, res.Pages, doc, log); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"converted %s: %d measures, %d calculated columns, %d pages, %d warnings, %d errors (run %s)\n",
				args[0], len(res.Model.Measures), len(res.Model.CalculatedColumns),
				len(res.Pages), doc.Warnings, doc.Errors, doc.RunID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "out", "Output directory for the generated artifacts")
	cmd.Flags().StringVar(&funcmapPath, "funcmap", "", "YAML file overriding function-name mappings")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Maximum parallel field and dashboard translations (0 = number of CPUs)")
	cmd.Flags().DurationVar(&timeout, "classify-timeout", 2*time.Second, "Per-visual classification timeout")

	return cmd
}
