package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

func newReparentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reparent <item> <new-parent>",
		Short: "Move an item under a new parent",
		Long: `Reparent moves an item. Items are named by ID, path or data object ID;
"/" names the scene root.

A plugin may carry the request out as an equivalent effect instead of a
move, for example applying a transform to the item.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			parent := s.env.Tree.Root()
			if args[1] != "/" {
				if parent, err = s.item(args[1]); err != nil {
					return err
				}
			}

			res, err := s.ctl.Reparent(ctx, id, parent)
			if err != nil {
				return err
			}
			if err := s.save(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch res.Outcome {
			case plugin.OutcomeEffectApplied:
				_, err = fmt.Fprintf(out, "%s applied its effect instead of moving %s\n", res.Plugin, s.env.Tree.Path(id))
			default:
				_, err = fmt.Fprintf(out, "Moved to %s\n", s.env.Tree.Path(id))
			}
			return err
		},
	}
}
