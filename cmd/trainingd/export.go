package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantumtrader/academy/internal/app"
	"github.com/quantumtrader/academy/internal/report"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a learner's progress workbook",
		RunE:  runExport,
	}
	cmd.Flags().String("learner", "", "Learner id (required)")
	cmd.Flags().String("out", "", `Output file, "-" for stdout (default progress-<learner>.xlsx)`)
	cmd.MarkFlagRequired("learner")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	learnerID, _ := cmd.Flags().GetString("learner")
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = "progress-" + learnerID + ".xlsx"
	}

	ctx := cmd.Context()
	loader, _, err := newLoader(cfg.Content)
	if err != nil {
		return err
	}
	d, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	a := app.New(app.Config{
		LearnerID: learnerID,
		Loader:    loader,
		Storage:   d.backend.Storage(learnerID),
	})
	if err := a.Start(ctx); err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}
	if err := report.WriteWorkbook(w, a.Report()); err != nil {
		return err
	}
	if out != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
	}
	return nil
}
