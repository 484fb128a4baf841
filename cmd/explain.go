package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/presentation"
)

func newExplainCmd(a *app) *cobra.Command {
	var (
		format string
		width  int
		raw    bool
	)
	c := &cobra.Command{
		Use:   "explain <item>",
		Short: "Explain which plugin owns an item and why",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := presentation.ParseFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			id, err := s.item(args[0])
			if err != nil {
				return err
			}
			e, err := presentation.Explain(s.res, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == presentation.FormatJSON {
				return presentation.NewFormatter(out, format).JSON(e)
			}
			md := e.Markdown()
			if !raw {
				if md, err = presentation.RenderMarkdown(md, width, colorEnabled(out)); err != nil {
					return err
				}
			}
			_, err = fmt.Fprint(out, md)
			return err
		},
	}
	c.Flags().StringVarP(&format, "format", "f", presentation.FormatTable, "output format: table (rendered markdown) or json")
	c.Flags().IntVarP(&width, "width", "w", 80, "wrap rendered text at this width")
	c.Flags().BoolVar(&raw, "markdown", false, "print the markdown source")
	return c
}
