package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

func newRemoveCmd(a *app) *cobra.Command {
	var cascade bool
	c := &cobra.Command{
		Use:   "remove <item>",
		Short: "Remove an item and the data object it stands for",
		Long: `Remove deletes an item. An item standing for a data object is removed by
deleting the object from the scene. Children move up to the item's parent
unless --cascade is given, which removes the whole branch with its data.`,
		Args: cobra.ExactArgs(1),
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
			if id == s.env.Tree.Root() {
				return fmt.Errorf("%w: the scene item cannot be removed", hierarchy.ErrInvalidItem)
			}
			path := s.env.Tree.Path(id)

			settings := s.ctl.Settings()
			settings.AutoDeleteChildren = cascade
			s.ctl.SetSettings(settings)

			targets := []hierarchy.ItemID{id}
			if cascade {
				targets = append(targets, s.env.Tree.Descendants(id)...)
			}
			objects := 0
			// Deepest first, so no removal moves a child that is removed next.
			for _, t := range slices.Backward(targets) {
				obj, ok := plugin.DataObjectOf(s.env, t)
				if !ok {
					continue
				}
				if err := s.env.Store.RemoveObject(obj.ID); err != nil {
					return err
				}
				objects++
			}
			if s.env.Tree.Has(id) {
				if err := s.env.Tree.RemoveItem(id, cascade); err != nil {
					return err
				}
			}
			if err := s.save(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%d data objects)\n", path, objects)
			return err
		},
	}
	c.Flags().BoolVar(&cascade, "cascade", false, "remove the whole branch with its data")
	return c
}
