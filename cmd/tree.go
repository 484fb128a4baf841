package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/presentation"
)

func newTreeCmd(a *app) *cobra.Command {
	var (
		color  bool
		ids    bool
		width  int
		format string
		from   string
	)
	c := &cobra.Command{
		Use:   "tree",
		Short: "Print the hierarchy with owners and effective colors",
		Args:  cobra.NoArgs,
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

			root := presentation.FromTree(s.env)
			if from != "" {
				id, err := s.item(from)
				if err != nil {
					return err
				}
				root = presentation.ItemDTO{Name: "Scene", Children: []presentation.ItemDTO{presentation.FromItem(s.env, id)}}
			}

			out := cmd.OutOrStdout()
			if format == presentation.FormatJSON {
				return presentation.NewFormatter(out, format).JSON(root)
			}
			if !cmd.Flags().Changed("color") {
				color = colorEnabled(out)
			}
			r := presentation.NewTreeRenderer(out, presentation.TreeOptions{Color: color, Width: width, IDs: ids})
			_, err = fmt.Fprint(out, r.Render(root))
			return err
		},
	}
	c.Flags().BoolVar(&color, "color", false, "paint item names with their effective color (default: when the output is a terminal)")
	c.Flags().BoolVar(&ids, "ids", false, "prefix items with their ID")
	c.Flags().IntVarP(&width, "width", "w", 0, "truncate lines to this many columns")
	c.Flags().StringVarP(&format, "format", "f", presentation.FormatTable, "output format: table or json")
	c.Flags().StringVar(&from, "from", "", "print only the branch under this item")
	return c
}
