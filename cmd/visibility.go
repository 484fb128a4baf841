package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/plugins"
)

var visibilityNames = map[int]string{
	plugins.VisibilityNone:    "nothing to display",
	plugins.VisibilityHidden:  "hidden",
	plugins.VisibilityShown:   "visible",
	plugins.VisibilityPartial: "partly visible",
}

func newVisibilityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "visibility <item> [on|off]",
		Short: "Show or change the display visibility of a branch",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var visible bool
			if len(args) == 2 {
				var err error
				if visible, err = parseOnOff(args[1]); err != nil {
					return err
				}
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
			if len(args) == 2 {
				if err := plugins.SetBranchVisibility(s.env, id, visible); err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n",
				s.env.Tree.Path(id), visibilityNames[plugins.BranchVisibility(s.env, id)])
			return err
		},
	}
}
