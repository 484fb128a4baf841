package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/presentation"
)

func newResolveCmd(a *app) *cobra.Command {
	var (
		dryRun bool
		format string
	)
	c := &cobra.Command{
		Use:   "resolve",
		Short: "Run the consolidation pass against the current plugins",
		Long: `Resolve loads the saved scene, runs the consolidation pass with the
plugins and settings configured now and saves the result.

With --dry-run nothing is saved; the tree as saved and the tree after the
pass are printed as a diff.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := presentation.ParseFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			report, err := s.ctl.ConsolidationPass(ctx)
			if err != nil {
				return err
			}
			report = s.report.Add(report)
			out := cmd.OutOrStdout()

			if dryRun {
				tr := presentation.NewTreeRenderer(out, presentation.TreeOptions{})
				diff := presentation.DiffTrees(
					tr.Render(presentation.FromDocument(s.doc)),
					tr.Render(presentation.FromTree(s.env)))
				if !presentation.Changed(diff) {
					_, err := fmt.Fprintln(out, "No changes")
					return err
				}
				_, err := fmt.Fprint(out, presentation.FormatDiff(tr.Renderer(), diff))
				return err
			}

			if err := s.save(ctx); err != nil {
				return err
			}
			return presentation.NewFormatter(out, format).FormatReport(presentation.FromReport(report))
		},
	}
	c.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print what would change without saving")
	c.Flags().StringVarP(&format, "format", "f", presentation.FormatTable, "output format: table or json")
	return c
}
