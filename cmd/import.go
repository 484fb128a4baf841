package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/presentation"
	"github.com/zjrosen/subjecthierarchy/internal/scenefile"
)

func newImportCmd(a *app) *cobra.Command {
	var format string
	c := &cobra.Command{
		Use:   "import <scene.yaml>",
		Short: "Add the folders, data objects and legacy nodes of a scene file",
		Long: `Import reads a YAML scene file and adds its contents to the saved scene
inside one data store import. The hierarchy is built by the consolidation
pass that runs when the import ends.

Example scene:

  folders:
    - path: Jane Doe
      level: patient
      uid: P-1
  objects:
    - id: ct
      name: CT
      kind: volume
      folder: Jane Doe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := presentation.ParseFormat(format); err != nil {
				return err
			}
			scene, err := scenefile.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := a.openSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			res, err := scenefile.Import(ctx, s.ctl, scene)
			if err != nil {
				return fmt.Errorf("importing %s: %w", args[0], err)
			}
			if err := s.save(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format != presentation.FormatJSON {
				fmt.Fprintf(out, "Imported %d objects, %d legacy nodes, %d new folders\n", res.Objects, res.Legacy, res.Folders)
			}
			return presentation.NewFormatter(out, format).FormatReport(presentation.FromReport(res.Report))
		},
	}
	c.Flags().StringVarP(&format, "format", "f", presentation.FormatTable, "output format: table or json")
	return c
}
